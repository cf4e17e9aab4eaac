// Package proxymanager implements the Proxy Manager (§4.2): an
// O(1) round-robin pool of configured upstream proxies, with
// success/failure counters persisted to the Coordination Store
// through a bounded background pool so the request path never blocks
// on a store round trip.
package proxymanager

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/grishkovelli/asc/internal/apperrors"
	"github.com/grishkovelli/asc/internal/asyncwriter"
	"github.com/grishkovelli/asc/internal/logging"
	"github.com/grishkovelli/asc/internal/model"
	"github.com/grishkovelli/asc/internal/store"
)

// statsTTL is the persisted counter lifetime (§4.2, §6.3: "30-day
// TTL").
const statsTTL = 30 * 24 * time.Hour

// entry tracks one proxy's in-memory counters, mirrored to the store
// on a best-effort basis.
type entry struct {
	url      *url.URL
	success  int64
	failure  int64
	lastUsed int64
}

// Manager hands out proxies from a fixed pool in round-robin order
// and records outcomes against them.
type Manager struct {
	entries []*entry
	next    uint64

	st   store.Store
	keys store.Keys
	bg   *asyncwriter.Pool
	log  *logging.Logger
}

// New parses the configured proxy URLs and hydrates counters from the
// store, so a restarted Proxy Manager picks up health history instead
// of starting cold. An empty pool is valid (§6.2: "may be empty; the
// dispatcher then uses direct connections") — Next then returns nil.
func New(ctx context.Context, log *logging.Logger, st store.Store, keys store.Keys, bg *asyncwriter.Pool, rawProxies []string) (*Manager, error) {
	m := &Manager{st: st, keys: keys, bg: bg, log: log}
	for _, raw := range rawProxies {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, apperrors.NewConfigurationError(fmt.Errorf("proxymanager: invalid proxy URL %s: %w", raw, err))
		}
		m.entries = append(m.entries, &entry{url: u})
	}

	m.hydrate(ctx)
	return m, nil
}

// hydrate batches one pipelined read per proxy to recover persisted
// counters in a single batched read (§4.2).
func (m *Manager) hydrate(ctx context.Context) {
	p := m.st.Pipeline()
	results := make([]*store.StringResult, len(m.entries))
	for i, e := range m.entries {
		results[i] = p.Get(m.keys.ProxyStats(e.url.String()))
	}
	if err := p.Exec(ctx); err != nil {
		m.log.Warn("proxy counter hydration failed", "error", err)
		return
	}
	for i, e := range m.entries {
		raw, err := results[i].Result()
		if err != nil || raw == "" {
			continue
		}
		success, failure, ok := decodeCounters(raw)
		if !ok {
			m.log.Warn("malformed proxy counter record, resetting to zero", "proxy", e.url.String())
			continue
		}
		atomic.StoreInt64(&e.success, success)
		atomic.StoreInt64(&e.failure, failure)
	}
}

// Next returns the next proxy in round-robin order, O(1) and
// allocation-free on the hot path, or nil if no proxies are
// configured.
func (m *Manager) Next() *url.URL {
	if len(m.entries) == 0 {
		return nil
	}
	i := atomic.AddUint64(&m.next, 1) - 1
	e := m.entries[i%uint64(len(m.entries))]
	atomic.StoreInt64(&e.lastUsed, time.Now().UnixMilli())
	return e.url
}

// Report records a request outcome against proxy and persists the
// updated counters to the store in the background. An unrecognized
// proxy is logged and ignored, per §4.2.
func (m *Manager) Report(proxy *url.URL, success bool) {
	e := m.find(proxy)
	if e == nil {
		m.log.Warn("ignoring report for unknown proxy", "proxy", proxy.String())
		return
	}

	var s, f int64
	if success {
		s = atomic.AddInt64(&e.success, 1)
		f = atomic.LoadInt64(&e.failure)
	} else {
		f = atomic.AddInt64(&e.failure, 1)
		s = atomic.LoadInt64(&e.success)
	}

	key := m.keys.ProxyStats(e.url.String())
	payload := encodeCounters(s, f)
	m.bg.Submit(func() {
		_ = m.st.Set(context.Background(), key, payload, statsTTL)
	})
}

// Stats returns a copy of every configured proxy's counters.
func (m *Manager) Stats() []model.ProxyEntry {
	out := make([]model.ProxyEntry, len(m.entries))
	for i, e := range m.entries {
		out[i] = model.ProxyEntry{
			URL:          e.url.String(),
			SuccessCount: atomic.LoadInt64(&e.success),
			FailureCount: atomic.LoadInt64(&e.failure),
			LastUsedAt:   atomic.LoadInt64(&e.lastUsed),
		}
	}
	return out
}

func (m *Manager) find(proxy *url.URL) *entry {
	target := proxy.String()
	for _, e := range m.entries {
		if e.url.String() == target {
			return e
		}
	}
	return nil
}

func encodeCounters(success, failure int64) string {
	return strconv.FormatInt(success, 10) + ":" + strconv.FormatInt(failure, 10)
}

func decodeCounters(raw string) (success, failure int64, ok bool) {
	idx := strings.IndexByte(raw, ':')
	if idx < 0 {
		return 0, 0, false
	}
	s, errS := strconv.ParseInt(raw[:idx], 10, 64)
	f, errF := strconv.ParseInt(raw[idx+1:], 10, 64)
	if errS != nil || errF != nil {
		return 0, 0, false
	}
	return s, f, true
}
