// Package store is the Coordination Store Client: a typed wrapper over
// whatever shared key-value/list/hash/pub-sub backend the cluster
// runs against. The rest of the core depends only on the Store
// interface (§4.1) — any backend implementing it suffices, which is
// why a Redis client and an in-memory fake both satisfy it here.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNoJob is returned by BRPop when its context is done before any of
// the watched keys produced a value. It is not a failure of the
// store itself.
var ErrNoJob = errors.New("store: no job available")

// Store is the only contract the cluster core has with its shared
// coordination backend.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	MGet(ctx context.Context, keys ...string) ([]string, error)

	HSet(ctx context.Context, key string, values map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HDel(ctx context.Context, key string, fields ...string) error

	LPush(ctx context.Context, key string, values ...string) error
	RPush(ctx context.Context, key string, values ...string) error
	// BRPop blocks (honoring ctx cancellation) until one of keys has an
	// element, popping from the tail of whichever key is drained, and
	// reports which key produced the value.
	BRPop(ctx context.Context, keys ...string) (key, value string, err error)

	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZRangeByScore(ctx context.Context, key string, min, max string) ([]string, error)
	ZRem(ctx context.Context, key string, member string) error

	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SCard(ctx context.Context, key string) (int64, error)

	// LLen reports the length of the list at key, used by the
	// Controller's metrics loop to size the pending-job backlog.
	LLen(ctx context.Context, key string) (int64, error)
	// HLen reports the number of fields in the hash at key, used by
	// the Controller's metrics loop to count active workers.
	HLen(ctx context.Context, key string) (int64, error)

	Incr(ctx context.Context, key string) (int64, error)
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)

	Publish(ctx context.Context, channel, message string) error
	Subscribe(ctx context.Context, channel string) (Subscription, error)

	Pipeline() Pipeline

	Close() error
}

// Subscription is a live pub/sub subscription.
type Subscription interface {
	// Channel delivers published messages until the subscription is
	// closed or its context is done.
	Channel() <-chan string
	Close() error
}

// Pipeline batches commands for atomic, single-round-trip execution
// (used by the Controller's enqueue step and the Proxy Manager's
// batched counter hydration).
type Pipeline interface {
	Set(key, value string, ttl time.Duration)
	Get(key string) *StringResult
	LPush(key string, values ...string)
	SAdd(key string, members ...string)
	Exec(ctx context.Context) error
}

// StringResult defers a pipelined Get's outcome until after Exec.
type StringResult struct {
	val string
	err error
}

func (r *StringResult) Result() (string, error) { return r.val, r.err }
