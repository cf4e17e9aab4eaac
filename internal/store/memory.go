package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process fake satisfying Store, used by the
// ginkgo/gomega suites of the packages that depend on store.Store so
// they never need a live Redis instance.
type MemoryStore struct {
	mu sync.Mutex

	strings map[string]string
	hashes  map[string]map[string]string
	lists   map[string][]string
	zsets   map[string]map[string]float64
	sets    map[string]map[string]struct{}

	subs map[string][]*memorySubscription

	waiters []*memoryWaiter
}

type memoryWaiter struct {
	keys []string
	ch   chan struct{}
}

type memorySubscription struct {
	out    chan string
	closed bool
}

func (s *memorySubscription) Channel() <-chan string { return s.out }
func (s *memorySubscription) Close() error {
	if !s.closed {
		s.closed = true
		close(s.out)
	}
	return nil
}

// NewMemoryStore returns a ready-to-use in-memory Store fake.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		strings: make(map[string]string),
		hashes:  make(map[string]map[string]string),
		lists:   make(map[string][]string),
		zsets:   make(map[string]map[string]float64),
		sets:    make(map[string]map[string]struct{}),
		subs:    make(map[string][]*memorySubscription),
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.strings[key], nil
}

func (s *MemoryStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	s.strings[key] = value
	s.mu.Unlock()
	if ttl > 0 {
		go func() {
			select {
			case <-time.After(ttl):
				s.mu.Lock()
				if s.strings[key] == value {
					delete(s.strings, key)
				}
				s.mu.Unlock()
			case <-ctx.Done():
			}
		}()
	}
	return nil
}

func (s *MemoryStore) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.strings, k)
		delete(s.hashes, k)
		delete(s.lists, k)
		delete(s.zsets, k)
		delete(s.sets, k)
	}
	return nil
}

func (s *MemoryStore) MGet(ctx context.Context, keys ...string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = s.strings[k]
	}
	return out, nil
}

func (s *MemoryStore) HSet(ctx context.Context, key string, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]string)
		s.hashes[key] = h
	}
	for k, v := range values {
		h[k] = v
	}
	return nil
}

func (s *MemoryStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.hashes[key]))
	for k, v := range s.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) HDel(ctx context.Context, key string, fields ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.hashes[key]
	for _, f := range fields {
		delete(h, f)
	}
	return nil
}

func (s *MemoryStore) LPush(ctx context.Context, key string, values ...string) error {
	s.mu.Lock()
	for _, v := range values {
		s.lists[key] = append([]string{v}, s.lists[key]...)
	}
	s.mu.Unlock()
	s.wake(key)
	return nil
}

func (s *MemoryStore) RPush(ctx context.Context, key string, values ...string) error {
	s.mu.Lock()
	s.lists[key] = append(s.lists[key], values...)
	s.mu.Unlock()
	s.wake(key)
	return nil
}

// wake notifies any blocked BRPop callers watching key that it may now
// have data.
func (s *MemoryStore) wake(key string) {
	s.mu.Lock()
	remaining := s.waiters[:0]
	var toNotify []*memoryWaiter
	for _, w := range s.waiters {
		hit := false
		for _, k := range w.keys {
			if k == key {
				hit = true
				break
			}
		}
		if hit {
			toNotify = append(toNotify, w)
		} else {
			remaining = append(remaining, w)
		}
	}
	s.waiters = remaining
	s.mu.Unlock()
	for _, w := range toNotify {
		close(w.ch)
	}
}

func (s *MemoryStore) tryPop(keys []string) (string, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		list := s.lists[k]
		if len(list) == 0 {
			continue
		}
		val := list[len(list)-1]
		s.lists[k] = list[:len(list)-1]
		return k, val, true
	}
	return "", "", false
}

// BRPop polls across keys, parking on a per-call waiter channel between
// attempts so it neither busy-spins nor misses a wake fired just before
// it registered.
func (s *MemoryStore) BRPop(ctx context.Context, keys ...string) (string, string, error) {
	for {
		if k, v, ok := s.tryPop(keys); ok {
			return k, v, nil
		}

		w := &memoryWaiter{keys: keys, ch: make(chan struct{})}
		s.mu.Lock()
		s.waiters = append(s.waiters, w)
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return "", "", ErrNoJob
		case <-w.ch:
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func (s *MemoryStore) ZAdd(ctx context.Context, key string, score float64, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	z, ok := s.zsets[key]
	if !ok {
		z = make(map[string]float64)
		s.zsets[key] = z
	}
	z[member] = score
	return nil
}

func (s *MemoryStore) ZRangeByScore(ctx context.Context, key string, min, max string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lo, hi, err := parseScoreRange(min, max)
	if err != nil {
		return nil, err
	}
	type entry struct {
		member string
		score  float64
	}
	var entries []entry
	for m, sc := range s.zsets[key] {
		if sc >= lo && sc <= hi {
			entries = append(entries, entry{m, sc})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].score < entries[j].score })
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.member
	}
	return out, nil
}

func (s *MemoryStore) ZRem(ctx context.Context, key string, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.zsets[key], member)
	return nil
}

func (s *MemoryStore) SAdd(ctx context.Context, key string, members ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[key]
	if !ok {
		set = make(map[string]struct{})
		s.sets[key] = set
	}
	for _, m := range members {
		set[m] = struct{}{}
	}
	return nil
}

func (s *MemoryStore) SRem(ctx context.Context, key string, members ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.sets[key]
	for _, m := range members {
		delete(set, m)
	}
	return nil
}

func (s *MemoryStore) SCard(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.sets[key])), nil
}

func (s *MemoryStore) LLen(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.lists[key])), nil
}

func (s *MemoryStore) HLen(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.hashes[key])), nil
}

func (s *MemoryStore) Incr(ctx context.Context, key string) (int64, error) {
	return s.IncrBy(ctx, key, 1)
}

func (s *MemoryStore) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := parseInt(s.strings[key])
	cur += delta
	s.strings[key] = formatInt(cur)
	return cur, nil
}

func (s *MemoryStore) Publish(ctx context.Context, channel, message string) error {
	s.mu.Lock()
	subs := append([]*memorySubscription(nil), s.subs[channel]...)
	s.mu.Unlock()
	for _, sub := range subs {
		select {
		case sub.out <- message:
		default:
		}
	}
	return nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	sub := &memorySubscription{out: make(chan string, 64)}
	s.mu.Lock()
	s.subs[channel] = append(s.subs[channel], sub)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = sub.Close()
	}()

	return sub, nil
}

func (s *MemoryStore) Pipeline() Pipeline {
	return &memoryPipeline{store: s}
}

func (s *MemoryStore) Close() error { return nil }

type memoryPipeline struct {
	store *MemoryStore
	ops   []func()
}

func (p *memoryPipeline) Set(key, value string, ttl time.Duration) {
	p.ops = append(p.ops, func() { _ = p.store.Set(context.Background(), key, value, ttl) })
}

func (p *memoryPipeline) Get(key string) *StringResult {
	result := &StringResult{}
	p.ops = append(p.ops, func() {
		v, _ := p.store.Get(context.Background(), key)
		result.val = v
	})
	return result
}

func (p *memoryPipeline) LPush(key string, values ...string) {
	p.ops = append(p.ops, func() { _ = p.store.LPush(context.Background(), key, values...) })
}

func (p *memoryPipeline) SAdd(key string, members ...string) {
	p.ops = append(p.ops, func() { _ = p.store.SAdd(context.Background(), key, members...) })
}

func (p *memoryPipeline) Exec(ctx context.Context) error {
	for _, op := range p.ops {
		op()
	}
	return nil
}
