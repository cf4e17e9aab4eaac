// Package controller implements the Controller Node (§4.8): it
// ingests submitted jobs from the pub/sub submit channel, validates
// and enqueues them, reaps dead workers, and periodically logs
// cluster-wide metrics.
package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/grishkovelli/asc/internal/config"
	"github.com/grishkovelli/asc/internal/logging"
	"github.com/grishkovelli/asc/internal/model"
	"github.com/grishkovelli/asc/internal/store"
)

const jobTTL = 7 * 24 * time.Hour

// Broadcaster receives each metrics snapshot as it is computed. The
// live-metrics dashboard implements this; a nil Broadcaster is a
// valid no-op.
type Broadcaster interface {
	Broadcast(activeWorkers, pendingJobs, processing int64, statsCompleted, statsFailed string)
}

// Controller owns the submission intake, worker reaper, and metrics
// loops.
type Controller struct {
	st       store.Store
	keys     store.Keys
	cfg      config.ControllerConfig
	log      *logging.Logger
	validate *validator.Validate
	dash     Broadcaster

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New builds a Controller. dash may be nil to disable the live
// metrics feed.
func New(st store.Store, keys store.Keys, cfg config.ControllerConfig, log *logging.Logger, dash Broadcaster) *Controller {
	return &Controller{
		st:       st,
		keys:     keys,
		cfg:      cfg,
		log:      log,
		validate: validator.New(),
		dash:     dash,
	}
}

// Run subscribes to the submit channel and starts the reaper and
// metrics loops. It blocks until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	sub, err := c.st.Subscribe(runCtx, c.keys.JobsSubmit())
	if err != nil {
		return fmt.Errorf("controller: subscribe to submit channel: %w", err)
	}

	c.wg.Add(3)
	go c.submissionLoop(runCtx, sub)
	go c.reaperLoop(runCtx)
	go c.metricsLoop(runCtx)

	c.wg.Wait()
	return nil
}

// Shutdown stops all three loops.
func (c *Controller) Shutdown() {
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Controller) submissionLoop(ctx context.Context, sub store.Subscription) {
	defer c.wg.Done()
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			c.handleSubmission(ctx, msg)
		}
	}
}

// handleSubmission implements §4.8's four-step submission algorithm.
func (c *Controller) handleSubmission(ctx context.Context, raw string) {
	var job model.Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		c.log.Warn("dropping malformed job submission", "error", err)
		return
	}

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.ApplyDefaults()

	if err := c.validate.Struct(job); err != nil {
		c.log.Warn("dropping invalid job submission", "jobId", job.ID, "error", err)
		return
	}

	payload, err := json.Marshal(job)
	if err != nil {
		c.log.Error("failed to serialize validated job", "jobId", job.ID, "error", err)
		return
	}

	p := c.st.Pipeline()
	p.Set(c.keys.Job(job.ID), string(payload), jobTTL)
	p.LPush(c.keys.Queue(job.Priority), job.ID)
	if err := p.Exec(ctx); err != nil {
		c.log.Warn("failed to enqueue job", "jobId", job.ID, "error", err)
		return
	}
}

// reaperLoop removes worker records whose heartbeat has gone stale,
// per §4.8's worker reaper.
func (c *Controller) reaperLoop(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.WorkerTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.reapOnce(ctx)
		}
	}
}

func (c *Controller) reapOnce(ctx context.Context) {
	workers, err := c.st.HGetAll(ctx, c.keys.WorkersActive())
	if err != nil {
		c.log.Warn("reaper: failed to read workers hash", "error", err)
		return
	}

	cutoff := time.Now().Add(-c.cfg.WorkerTimeout).UnixMilli()
	for id, payload := range workers {
		var record model.WorkerRecord
		if err := json.Unmarshal([]byte(payload), &record); err != nil {
			continue
		}
		if record.Timestamp < cutoff {
			if err := c.st.HDel(ctx, c.keys.WorkersActive(), id); err != nil {
				c.log.Warn("reaper: failed to remove stale worker", "worker", id, "error", err)
				continue
			}
			c.log.Warn("reaped stale worker", "worker", id, "lastSeen", record.Timestamp)
		}
	}
}

// metricsLoop periodically pipeline-fetches cluster-wide counters and
// logs a single structured record, per §4.8.
func (c *Controller) metricsLoop(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.MetricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.logMetricsOnce(ctx)
		}
	}
}

func (c *Controller) logMetricsOnce(ctx context.Context) {
	activeWorkers, err := c.st.HLen(ctx, c.keys.WorkersActive())
	if err != nil {
		c.log.Warn("metrics: failed to count active workers", "error", err)
	}

	var pending int64
	for priority := 0; priority <= model.MaxPriority; priority++ {
		n, err := c.st.LLen(ctx, c.keys.Queue(priority))
		if err == nil {
			pending += n
		}
	}

	processing, err := c.st.SCard(ctx, c.keys.Processing())
	if err != nil {
		c.log.Warn("metrics: failed to count processing set", "error", err)
	}

	completed, _ := c.st.Get(ctx, c.keys.StatsCompleted())
	failed, _ := c.st.Get(ctx, c.keys.StatsFailed())

	c.log.Info("cluster metrics",
		"activeWorkers", activeWorkers,
		"pendingJobs", pending,
		"processing", processing,
		"statsCompleted", completed,
		"statsFailed", failed,
	)

	if c.dash != nil {
		c.dash.Broadcast(activeWorkers, pending, processing, completed, failed)
	}
}
