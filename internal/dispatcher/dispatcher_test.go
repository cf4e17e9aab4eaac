package dispatcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/grishkovelli/asc/internal/asyncwriter"
	"github.com/grishkovelli/asc/internal/config"
	"github.com/grishkovelli/asc/internal/governor"
	"github.com/grishkovelli/asc/internal/logging"
	"github.com/grishkovelli/asc/internal/model"
	"github.com/grishkovelli/asc/internal/store"
	"github.com/grishkovelli/asc/internal/useragent"
)

func TestDispatcher(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "dispatcher")
}

var _ = Describe("Dispatcher", func() {
	var (
		ctx context.Context
		d   *Dispatcher
		gov *governor.Governor
		srv *httptest.Server
	)

	BeforeEach(func() {
		ctx = context.Background()
		log, _ := logging.New("error", false)
		bg := asyncwriter.New(log, "test", 1, 8)
		cfg := config.GovernorConfig{
			InitialDelay:   0,
			MaxDelay:       30000 * time.Millisecond,
			BackoffFactor:  1.5,
			CooldownFactor: 1.1,
			BlockDetection: config.BlockDetectionConfig{
				StatusCodes:  []int{403, 429, 503},
				BodyKeywords: []string{"captcha"},
			},
		}
		gov = governor.New(cfg, store.NewMemoryStore(), store.Keys{Prefix: "asc:"}, bg, log)
		d = New(nil, useragent.New([]string{"test-agent"}), gov)
	})

	AfterEach(func() {
		if srv != nil {
			srv.Close()
		}
	})

	Describe("Dispatch", func() {
		When("the job URL is malformed", func() {
			It("returns InvalidURLError", func() {
				_, err := d.Dispatch(ctx, model.Job{URL: "://bad"})
				Expect(err).To(HaveOccurred())
			})
		})

		When("the target returns a successful response", func() {
			It("reports success and returns the body", func() {
				srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					Expect(r.Header.Get("User-Agent")).To(Equal("test-agent"))
					w.WriteHeader(http.StatusOK)
					_, _ = w.Write([]byte("<html></html>"))
				}))

				job := model.Job{URL: srv.URL, HTTP: model.HTTPSpec{Method: http.MethodGet}}
				result, err := d.Dispatch(ctx, job)
				Expect(err).NotTo(HaveOccurred())
				Expect(result.StatusCode).To(Equal(http.StatusOK))
				Expect(result.Successful).To(BeTrue())
				Expect(result.Blocked).To(BeFalse())
			})
		})

		When("the target returns a block status code", func() {
			It("classifies the response as blocked and unsuccessful", func() {
				srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusTooManyRequests)
					_, _ = w.Write([]byte("Too Many Requests"))
				}))

				job := model.Job{URL: srv.URL}
				result, err := d.Dispatch(ctx, job)
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Blocked).To(BeTrue())
				Expect(result.Successful).To(BeFalse())
			})
		})

		When("the target is unreachable", func() {
			It("returns RequestFailedError", func() {
				job := model.Job{URL: "http://127.0.0.1:1"}
				_, err := d.Dispatch(ctx, job)
				Expect(err).To(HaveOccurred())
			})
		})
	})
})
