package controller

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/grishkovelli/asc/internal/config"
	"github.com/grishkovelli/asc/internal/logging"
	"github.com/grishkovelli/asc/internal/model"
	"github.com/grishkovelli/asc/internal/store"
)

func TestController(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "controller")
}

var _ = Describe("Controller", func() {
	var (
		ctx  context.Context
		st   *store.MemoryStore
		keys store.Keys
		c    *Controller
	)

	BeforeEach(func() {
		ctx = context.Background()
		st = store.NewMemoryStore()
		keys = store.Keys{Prefix: "asc:"}
		log, _ := logging.New("error", false)
		c = New(st, keys, config.ControllerConfig{WorkerTimeout: 60 * time.Second, MetricsUpdateInterval: 30 * time.Second}, log, nil)
	})

	Describe("handleSubmission", func() {
		It("drops malformed JSON", func() {
			c.handleSubmission(ctx, "{not json")
			n, _ := st.LLen(ctx, keys.Queue(0))
			Expect(n).To(Equal(int64(0)))
		})

		It("drops a job that fails validation", func() {
			c.handleSubmission(ctx, `{"url":"not-a-url"}`)
			n, _ := st.LLen(ctx, keys.Queue(0))
			Expect(n).To(Equal(int64(0)))
		})

		It("generates an id, defaults priority, and enqueues atomically", func() {
			c.handleSubmission(ctx, `{"url":"http://t.example/ok"}`)

			_, jobID, err := st.BRPop(ctx, keys.Queue(0))
			Expect(err).NotTo(HaveOccurred())
			Expect(jobID).NotTo(BeEmpty())

			raw, err := st.Get(ctx, keys.Job(jobID))
			Expect(err).NotTo(HaveOccurred())
			var job model.Job
			Expect(json.Unmarshal([]byte(raw), &job)).To(Succeed())
			Expect(job.ID).To(Equal(jobID))
			Expect(job.Priority).To(Equal(0))
			Expect(job.Parser).To(Equal(model.DefaultParser))
		})

		It("respects an explicit priority and id", func() {
			c.handleSubmission(ctx, `{"id":"j9","url":"http://t.example/ok","priority":7}`)
			_, jobID, err := st.BRPop(ctx, keys.Queue(7))
			Expect(err).NotTo(HaveOccurred())
			Expect(jobID).To(Equal("j9"))
		})
	})

	Describe("reapOnce", func() {
		It("removes a worker whose heartbeat is older than workerTimeout", func() {
			stale := model.WorkerRecord{ID: "w1", Status: model.WorkerIdle, Timestamp: time.Now().Add(-2 * time.Minute).UnixMilli()}
			payload, _ := json.Marshal(stale)
			Expect(st.HSet(ctx, keys.WorkersActive(), map[string]string{"w1": string(payload)})).To(Succeed())

			fresh := model.WorkerRecord{ID: "w2", Status: model.WorkerIdle, Timestamp: time.Now().UnixMilli()}
			payload2, _ := json.Marshal(fresh)
			Expect(st.HSet(ctx, keys.WorkersActive(), map[string]string{"w2": string(payload2)})).To(Succeed())

			c.reapOnce(ctx)

			workers, _ := st.HGetAll(ctx, keys.WorkersActive())
			Expect(workers).NotTo(HaveKey("w1"))
			Expect(workers).To(HaveKey("w2"))
		})
	})

	Describe("logMetricsOnce", func() {
		It("does not error when the store is empty", func() {
			Expect(func() { c.logMetricsOnce(ctx) }).NotTo(Panic())
		})
	})
})
