// Package governor implements the Feedback Governor (§4.4): per-host
// adaptive politeness delay with block detection, exponential
// backoff, and success-streak-gated cooldown. In-memory state is
// mirrored to the Coordination Store so other processes converge on
// the same monotone-on-block value.
package governor

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/grishkovelli/asc/internal/asyncwriter"
	"github.com/grishkovelli/asc/internal/config"
	"github.com/grishkovelli/asc/internal/logging"
	"github.com/grishkovelli/asc/internal/model"
	"github.com/grishkovelli/asc/internal/store"
)

const hostStateTTL = 24 * time.Hour

// Governor tracks adaptive per-host delay state, serializing
// concurrent report() calls for the same host within a process (§9's
// "serialize these updates" instruction).
type Governor struct {
	mu     sync.Mutex
	hosts  map[string]*model.HostState
	cfg    config.GovernorConfig
	st     store.Store
	keys   store.Keys
	bg     *asyncwriter.Pool
	log    *logging.Logger
}

// New returns a Governor with no cached host state; state is lazily
// loaded from the store on first use of a given host.
func New(cfg config.GovernorConfig, st store.Store, keys store.Keys, bg *asyncwriter.Pool, log *logging.Logger) *Governor {
	return &Governor{
		hosts: make(map[string]*model.HostState),
		cfg:   cfg,
		st:    st,
		keys:  keys,
		bg:    bg,
		log:   log,
	}
}

// IsBlocked classifies a response as blocked per §4.4's detection
// rule: a configured status code, or a case-insensitive keyword match
// in the response body.
func (g *Governor) IsBlocked(statusCode int, body string) bool {
	for _, sc := range g.cfg.BlockDetection.StatusCodes {
		if sc == statusCode {
			return true
		}
	}
	lower := strings.ToLower(body)
	for _, kw := range g.cfg.BlockDetection.BodyKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// DelayFor returns the current per-host delay, loading it from the
// store on first access (defaulting to initialDelay).
func (g *Governor) DelayFor(ctx context.Context, host string) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	state := g.stateLocked(ctx, host)
	return time.Duration(state.CurrentDelay) * time.Millisecond
}

// Report records a success or block outcome for host, updating
// currentDelay and successStreak per the backoff/cooldown algorithm,
// and persists the new state in the background.
func (g *Governor) Report(host string, success bool) {
	g.mu.Lock()
	state := g.stateLocked(context.Background(), host)

	if success {
		state.SuccessStreak++
		if state.SuccessStreak > 0 && state.SuccessStreak%10 == 0 && state.CurrentDelay > g.cfg.InitialDelay.Milliseconds() {
			cooled := int64(math.Floor(float64(state.CurrentDelay) / g.cfg.CooldownFactor))
			if cooled < g.cfg.InitialDelay.Milliseconds() {
				cooled = g.cfg.InitialDelay.Milliseconds()
			}
			state.CurrentDelay = cooled
		}
	} else {
		state.SuccessStreak = 0
		backedOff := int64(math.Ceil(float64(state.CurrentDelay) * g.cfg.BackoffFactor))
		if backedOff > g.cfg.MaxDelay.Milliseconds() {
			backedOff = g.cfg.MaxDelay.Milliseconds()
		}
		state.CurrentDelay = backedOff
	}
	state.LastUpdated = time.Now().UnixMilli()

	snapshot := *state
	key := g.keys.GovernorHost(host)
	g.mu.Unlock()

	g.bg.Submit(func() {
		payload, err := json.Marshal(snapshot)
		if err != nil {
			return
		}
		if err := g.st.Set(context.Background(), key, string(payload), hostStateTTL); err != nil {
			g.log.Warn("governor state persist failed", "host", host, "error", err)
		}
	})
}

// stateLocked returns the cached Host State for host, hydrating from
// the store on a cache miss. Caller must hold g.mu.
func (g *Governor) stateLocked(ctx context.Context, host string) *model.HostState {
	if state, ok := g.hosts[host]; ok {
		return state
	}

	state := &model.HostState{Host: host, CurrentDelay: g.cfg.InitialDelay.Milliseconds()}
	if raw, err := g.st.Get(ctx, g.keys.GovernorHost(host)); err == nil && raw != "" {
		var persisted model.HostState
		if jsonErr := json.Unmarshal([]byte(raw), &persisted); jsonErr == nil {
			state = &persisted
		}
	}
	state.Clamp(g.cfg.InitialDelay.Milliseconds(), g.cfg.MaxDelay.Milliseconds())
	g.hosts[host] = state
	return state
}
