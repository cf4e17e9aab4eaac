// Package worker implements the Worker Node (§4.7): it drains the
// priority queues, dispatches each job, parses the response, and
// publishes a success or failure record, while maintaining a
// heartbeat record and recovering in-flight work on shutdown.
package worker

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/grishkovelli/asc/internal/apperrors"
	"github.com/grishkovelli/asc/internal/config"
	"github.com/grishkovelli/asc/internal/dispatcher"
	"github.com/grishkovelli/asc/internal/logging"
	"github.com/grishkovelli/asc/internal/model"
	"github.com/grishkovelli/asc/internal/parser"
	"github.com/grishkovelli/asc/internal/store"
)

const storeRetryBackoff = 5 * time.Second

// Node runs `concurrency` independent job loops against the shared
// queues, each with its own identity, in-progress key, and heartbeat,
// since a single Worker Record only has room for one currentJobId.
type Node struct {
	st       store.Store
	keys     store.Keys
	disp     *dispatcher.Dispatcher
	parsers  *parser.Registry
	cfg      config.ControllerConfig // reuses WorkerTimeout
	log      *logging.Logger
	hostname string

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New builds a Worker Node. workerTimeout is the controller-side
// setting because §6.2 places it there; the worker only reads it.
func New(st store.Store, keys store.Keys, disp *dispatcher.Dispatcher, parsers *parser.Registry, workerTimeout time.Duration, log *logging.Logger) *Node {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return &Node{
		st:       st,
		keys:     keys,
		disp:     disp,
		parsers:  parsers,
		cfg:      config.ControllerConfig{WorkerTimeout: workerTimeout},
		log:      log,
		hostname: hostname,
	}
}

// Run starts `concurrency` independent job loops and blocks until ctx
// is cancelled, then waits for in-flight jobs to recover before
// returning.
func (n *Node) Run(ctx context.Context, concurrency int) {
	if concurrency < 1 {
		concurrency = 1
	}

	runCtx, cancel := context.WithCancel(ctx)
	n.cancel = cancel

	for i := 0; i < concurrency; i++ {
		id := n.loopID(i, concurrency)
		n.wg.Add(1)
		go func(workerID string) {
			defer n.wg.Done()
			n.runLoop(runCtx, workerID)
		}(id)
	}

	n.wg.Wait()
}

// Shutdown signals every job loop to stop after recovering any
// in-flight job.
func (n *Node) Shutdown() {
	if n.cancel != nil {
		n.cancel()
	}
}

func (n *Node) loopID(index, concurrency int) string {
	suffix := make([]byte, 4)
	_, _ = rand.Read(suffix)
	base := fmt.Sprintf("worker-%s-%s", n.hostname, hex.EncodeToString(suffix))
	if concurrency > 1 {
		return fmt.Sprintf("%s-%d", base, index)
	}
	return base
}

// runLoop is one linear job-processing state machine: blocking pop,
// in-progress recovery key, dispatch, parse, publish, cleanup; plus
// its own heartbeat goroutine.
func (n *Node) runLoop(ctx context.Context, workerID string) {
	state := &loopState{}

	heartbeatCtx, stopHeartbeat := context.WithCancel(context.Background())
	defer stopHeartbeat()
	go n.heartbeat(heartbeatCtx, workerID, state)

	defer n.recoverInFlight(workerID)
	defer n.removeWorkerRecord(workerID)

	queues := store.Queues(n.keys.Prefix)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		key, payload, err := n.st.BRPop(ctx, queues...)
		if err != nil {
			if errors.Is(err, store.ErrNoJob) {
				if ctx.Err() != nil {
					return
				}
				continue
			}
			n.log.Warn("blocking pop failed, retrying", "worker", workerID, "error", err)
			select {
			case <-time.After(storeRetryBackoff):
			case <-ctx.Done():
				return
			}
			continue
		}
		_ = key

		// The controller enqueues bare job ids (the job itself lives
		// under jobs:<id>); recoverInFlight requeues full payloads.
		if payload == "" || payload[0] != '{' {
			raw, getErr := n.st.Get(ctx, n.keys.Job(payload))
			if getErr != nil || raw == "" {
				n.log.Warn("discarding job id with no stored job", "worker", workerID, "jobId", payload, "error", getErr)
				continue
			}
			payload = raw
		}

		var job model.Job
		if jsonErr := json.Unmarshal([]byte(payload), &job); jsonErr != nil {
			n.log.Warn("discarding unparseable job payload", "worker", workerID, "error", jsonErr)
			continue
		}

		n.markInProgress(ctx, workerID, payload)
		state.set(model.WorkerBusy, job.ID)
		n.setStatus(ctx, workerID, model.WorkerBusy, job.ID)

		n.process(ctx, workerID, job)

		if ctx.Err() != nil {
			// Shutting down mid-job: leave the in-progress key in
			// place so the deferred recoverInFlight requeues it,
			// instead of clearing it here and losing the job.
			return
		}

		n.clearInProgress(ctx, workerID)
		state.set(model.WorkerIdle, "")
		n.setStatus(ctx, workerID, model.WorkerIdle, "")
	}
}

// loopState is the current status a loop's heartbeat goroutine
// re-publishes on each tick, so the heartbeat never clobbers a busy
// status recorded between ticks.
type loopState struct {
	mu           sync.Mutex
	status       model.WorkerStatus
	currentJobID string
}

func (s *loopState) set(status model.WorkerStatus, jobID string) {
	s.mu.Lock()
	s.status, s.currentJobID = status, jobID
	s.mu.Unlock()
}

func (s *loopState) get() (model.WorkerStatus, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == "" {
		return model.WorkerIdle, ""
	}
	return s.status, s.currentJobID
}

// process dispatches, parses, and publishes the result for a single
// job, per §4.7 steps 4-6.
func (n *Node) process(ctx context.Context, workerID string, job model.Job) {
	result, err := n.disp.Dispatch(ctx, job)
	if err != nil {
		// A cancelled ctx means this loop is shutting down mid-dispatch,
		// not that the job failed: leave the in-progress key alone so
		// the deferred recoverInFlight requeues it instead of recording
		// a failure for a job that never actually ran.
		if ctx.Err() != nil {
			return
		}
		n.publishFailure(ctx, workerID, job, err)
		return
	}

	fn, err := n.parsers.Get(job.Parser)
	if err != nil {
		n.publishFailure(ctx, workerID, job, err)
		return
	}

	data, err := fn(result.Body, job)
	if err != nil {
		n.publishFailure(ctx, workerID, job, apperrors.NewParserError(err))
		return
	}

	record := model.SuccessRecord{
		JobID:      job.ID,
		WorkerID:   workerID,
		Status:     model.StatusSuccess,
		Timestamp:  time.Now().UnixMilli(),
		URL:        job.URL,
		FinalURL:   result.FinalURL,
		StatusCode: result.StatusCode,
		Metadata:   job.Metadata,
		Data:       data,
	}
	n.publish(ctx, n.keys.ResultsSuccess(), record)
}

func (n *Node) publishFailure(ctx context.Context, workerID string, job model.Job, cause error) {
	record := model.FailureRecord{
		JobID:     job.ID,
		WorkerID:  workerID,
		Status:    model.StatusFailed,
		Timestamp: time.Now().UnixMilli(),
		URL:       job.URL,
		Metadata:  job.Metadata,
		Error:     model.ErrorDetail{Message: cause.Error()},
	}
	n.publish(ctx, n.keys.ResultsFailed(), record)
}

func (n *Node) publish(ctx context.Context, key string, record any) {
	payload, err := json.Marshal(record)
	if err != nil {
		n.log.Error("failed to serialize result record", "error", err)
		return
	}
	if err := n.st.LPush(ctx, key, string(payload)); err != nil {
		n.log.Warn("failed to publish result record", "key", key, "error", err)
	}
}

func (n *Node) markInProgress(ctx context.Context, workerID, payload string) {
	ttl := 2 * n.cfg.WorkerTimeout
	if err := n.st.Set(ctx, n.keys.InProgress(workerID), payload, ttl); err != nil {
		n.log.Warn("failed to record in-progress job", "worker", workerID, "error", err)
	}
}

func (n *Node) clearInProgress(ctx context.Context, workerID string) {
	if err := n.st.Del(ctx, n.keys.InProgress(workerID)); err != nil {
		n.log.Warn("failed to clear in-progress job", "worker", workerID, "error", err)
	}
}

// recoverInFlight runs on shutdown: if a job was mid-flight, it is
// left-pushed back onto its original priority queue. Workers pop from
// the right, so the requeued job is taken after the jobs already
// waiting at that priority.
func (n *Node) recoverInFlight(workerID string) {
	ctx := context.Background()
	key := n.keys.InProgress(workerID)
	payload, err := n.st.Get(ctx, key)
	if err != nil || payload == "" {
		return
	}

	var job model.Job
	if jsonErr := json.Unmarshal([]byte(payload), &job); jsonErr != nil {
		n.log.Warn("could not recover malformed in-progress job", "worker", workerID)
		_ = n.st.Del(ctx, key)
		return
	}

	queue := n.keys.Queue(job.Priority)
	if err := n.st.LPush(ctx, queue, payload); err != nil {
		n.log.Warn("failed to requeue in-flight job on shutdown", "worker", workerID, "error", err)
		return
	}
	_ = n.st.Del(ctx, key)
}

func (n *Node) heartbeat(ctx context.Context, workerID string, state *loopState) {
	interval := n.cfg.WorkerTimeout / 2
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	status, jobID := state.get()
	n.setStatus(context.Background(), workerID, status, jobID)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status, jobID := state.get()
			n.setStatus(context.Background(), workerID, status, jobID)
		}
	}
}

func (n *Node) setStatus(ctx context.Context, workerID string, status model.WorkerStatus, currentJobID string) {
	record := model.WorkerRecord{
		ID:           workerID,
		Status:       status,
		CurrentJobID: currentJobID,
		Timestamp:    time.Now().UnixMilli(),
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return
	}
	if err := n.st.HSet(ctx, n.keys.WorkersActive(), map[string]string{workerID: string(payload)}); err != nil {
		n.log.Warn("failed to write worker heartbeat", "worker", workerID, "error", err)
	}
}

func (n *Node) removeWorkerRecord(workerID string) {
	_ = n.st.HDel(context.Background(), n.keys.WorkersActive(), workerID)
}
