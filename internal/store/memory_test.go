package store

import (
	"context"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestStore(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "store")
}

var _ = Describe("MemoryStore", func() {
	var (
		ctx context.Context
		s   *MemoryStore
	)

	BeforeEach(func() {
		ctx = context.Background()
		s = NewMemoryStore()
	})

	Describe("Get/Set", func() {
		It("round-trips a value", func() {
			Expect(s.Set(ctx, "k", "v", 0)).To(Succeed())
			val, err := s.Get(ctx, "k")
			Expect(err).NotTo(HaveOccurred())
			Expect(val).To(Equal("v"))
		})

		It("returns empty string for a missing key", func() {
			val, err := s.Get(ctx, "missing")
			Expect(err).NotTo(HaveOccurred())
			Expect(val).To(Equal(""))
		})
	})

	Describe("BRPop", func() {
		When("a key already has a value", func() {
			It("pops immediately", func() {
				Expect(s.RPush(ctx, "q", "job-1")).To(Succeed())
				key, val, err := s.BRPop(ctx, "q")
				Expect(err).NotTo(HaveOccurred())
				Expect(key).To(Equal("q"))
				Expect(val).To(Equal("job-1"))
			})
		})

		When("multiple keys are watched in priority order", func() {
			It("prefers the first key that has data", func() {
				Expect(s.RPush(ctx, "queue:p0", "low")).To(Succeed())
				Expect(s.RPush(ctx, "queue:p10", "high")).To(Succeed())
				key, val, err := s.BRPop(ctx, "queue:p10", "queue:p0")
				Expect(err).NotTo(HaveOccurred())
				Expect(key).To(Equal("queue:p10"))
				Expect(val).To(Equal("high"))
			})
		})

		When("the context is cancelled before any data arrives", func() {
			It("returns ErrNoJob", func() {
				cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
				defer cancel()
				_, _, err := s.BRPop(cctx, "empty")
				Expect(err).To(MatchError(ErrNoJob))
			})
		})

		When("a push arrives while a caller is blocked", func() {
			It("wakes the caller without waiting for the poll interval", func() {
				done := make(chan struct{})
				var gotKey, gotVal string
				go func() {
					defer close(done)
					gotKey, gotVal, _ = s.BRPop(ctx, "late")
				}()
				time.Sleep(5 * time.Millisecond)
				Expect(s.LPush(ctx, "late", "arrived")).To(Succeed())
				Eventually(done, time.Second).Should(BeClosed())
				Expect(gotKey).To(Equal("late"))
				Expect(gotVal).To(Equal("arrived"))
			})
		})
	})

	Describe("ZAdd/ZRangeByScore", func() {
		It("returns members within the score range in ascending order", func() {
			Expect(s.ZAdd(ctx, "z", 3, "c")).To(Succeed())
			Expect(s.ZAdd(ctx, "z", 1, "a")).To(Succeed())
			Expect(s.ZAdd(ctx, "z", 2, "b")).To(Succeed())
			out, err := s.ZRangeByScore(ctx, "z", "-inf", "2")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal([]string{"a", "b"}))
		})
	})

	Describe("Pipeline", func() {
		It("executes batched writes atomically from the caller's view", func() {
			p := s.Pipeline()
			p.Set("a", "1", 0)
			p.SAdd("members", "x")
			p.LPush("list", "y")
			Expect(p.Exec(ctx)).To(Succeed())

			val, _ := s.Get(ctx, "a")
			Expect(val).To(Equal("1"))
			card, _ := s.SCard(ctx, "members")
			Expect(card).To(Equal(int64(1)))
		})
	})

	Describe("Publish/Subscribe", func() {
		It("delivers a published message to a live subscriber", func() {
			sctx, cancel := context.WithCancel(ctx)
			defer cancel()
			sub, err := s.Subscribe(sctx, "chan")
			Expect(err).NotTo(HaveOccurred())

			Expect(s.Publish(ctx, "chan", "hello")).To(Succeed())
			Eventually(sub.Channel(), time.Second).Should(Receive(Equal("hello")))
		})
	})
})
