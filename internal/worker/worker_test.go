package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/grishkovelli/asc/internal/asyncwriter"
	"github.com/grishkovelli/asc/internal/config"
	"github.com/grishkovelli/asc/internal/dispatcher"
	"github.com/grishkovelli/asc/internal/governor"
	"github.com/grishkovelli/asc/internal/logging"
	"github.com/grishkovelli/asc/internal/model"
	"github.com/grishkovelli/asc/internal/parser"
	"github.com/grishkovelli/asc/internal/store"
	"github.com/grishkovelli/asc/internal/useragent"
)

func TestWorker(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "worker")
}

var _ = Describe("Node", func() {
	var (
		ctx   context.Context
		st    *store.MemoryStore
		keys  store.Keys
		node  *Node
		srv   *httptest.Server
		log   *logging.Logger
	)

	BeforeEach(func() {
		ctx = context.Background()
		st = store.NewMemoryStore()
		keys = store.Keys{Prefix: "asc:"}
		log, _ = logging.New("error", false)

		bg := asyncwriter.New(log, "test", 1, 8)
		gov := governor.New(config.GovernorConfig{
			InitialDelay:  0,
			MaxDelay:      30000 * time.Millisecond,
			BackoffFactor: 1.5, CooldownFactor: 1.1,
			BlockDetection: config.BlockDetectionConfig{StatusCodes: []int{403, 429, 503}},
		}, st, keys, bg, log)
		disp := dispatcher.New(nil, useragent.New([]string{"UA/1"}), gov)

		registry := parser.New()
		registry.Register(parser.HTMLCheerioName, parser.HTMLCheerio)
		registry.Freeze()

		node = New(st, keys, disp, registry, 60*time.Second, log)
	})

	AfterEach(func() {
		if srv != nil {
			srv.Close()
		}
	})

	Describe("process", func() {
		It("publishes a success record for a job that dispatches and parses cleanly", func() {
			srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("<html><title>Hi</title><h1>H</h1></html>"))
			}))

			job := model.Job{ID: "j1", URL: srv.URL, Parser: parser.HTMLCheerioName, Metadata: map[string]any{"tag": "a"}}
			node.process(ctx, "worker-test-1", job)

			_, payload, err := st.BRPop(ctx, keys.ResultsSuccess())
			Expect(err).NotTo(HaveOccurred())

			var record model.SuccessRecord
			Expect(json.Unmarshal([]byte(payload), &record)).To(Succeed())
			Expect(record.JobID).To(Equal("j1"))
			Expect(record.StatusCode).To(Equal(http.StatusOK))
		})

		It("publishes a failure record when the parser is unknown", func() {
			srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			job := model.Job{ID: "j2", URL: srv.URL, Parser: "does-not-exist"}
			node.process(ctx, "worker-test-1", job)

			_, payload, err := st.BRPop(ctx, keys.ResultsFailed())
			Expect(err).NotTo(HaveOccurred())

			var record model.FailureRecord
			Expect(json.Unmarshal([]byte(payload), &record)).To(Succeed())
			Expect(record.JobID).To(Equal("j2"))
		})

		It("publishes a failure record when dispatch fails", func() {
			job := model.Job{ID: "j3", URL: "http://127.0.0.1:1", Parser: parser.HTMLCheerioName}
			node.process(ctx, "worker-test-1", job)

			_, payload, err := st.BRPop(ctx, keys.ResultsFailed())
			Expect(err).NotTo(HaveOccurred())

			var record model.FailureRecord
			Expect(json.Unmarshal([]byte(payload), &record)).To(Succeed())
			Expect(record.JobID).To(Equal("j3"))
		})

		It("publishes no record when dispatch is interrupted by a cancelled context", func() {
			cancelledCtx, cancel := context.WithCancel(ctx)
			cancel()

			job := model.Job{ID: "j5", URL: "http://t.example", Parser: parser.HTMLCheerioName}
			node.process(cancelledCtx, "worker-test-1", job)

			n, err := st.LLen(ctx, keys.ResultsFailed())
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(BeZero())

			n, err = st.LLen(ctx, keys.ResultsSuccess())
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(BeZero())
		})
	})

	Describe("in-progress recovery", func() {
		It("requeues a recorded in-progress job onto its original priority queue", func() {
			job := model.Job{ID: "j4", URL: "http://t.example", Priority: 7}
			payload, _ := json.Marshal(job)
			node.markInProgress(ctx, "worker-test-2", string(payload))

			node.recoverInFlight("worker-test-2")

			_, requeued, err := st.BRPop(ctx, keys.Queue(7))
			Expect(err).NotTo(HaveOccurred())
			Expect(requeued).To(Equal(string(payload)))
		})
	})
})
