package store

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisStore is the concrete Coordination Store Client backend, a thin
// wrapper over redis/go-redis/v9.
type RedisStore struct {
	rdb *goredis.Client
}

// NewRedisStore dials Redis and verifies connectivity with a bounded
// ping before returning, so startup failures surface immediately
// rather than on the first real command.
func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	return &RedisStore{rdb: rdb}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", nil
	}
	return val, err
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

func (s *RedisStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.rdb.Del(ctx, keys...).Err()
}

func (s *RedisStore) MGet(ctx context.Context, keys ...string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	raw, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]string, len(raw))
	for i, v := range raw {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			out[i] = s
		}
	}
	return out, nil
}

func (s *RedisStore) HSet(ctx context.Context, key string, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	fields := make([]interface{}, 0, len(values)*2)
	for k, v := range values {
		fields = append(fields, k, v)
	}
	return s.rdb.HSet(ctx, key, fields...).Err()
}

func (s *RedisStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return s.rdb.HGetAll(ctx, key).Result()
}

func (s *RedisStore) HDel(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	return s.rdb.HDel(ctx, key, fields...).Err()
}

func (s *RedisStore) LPush(ctx context.Context, key string, values ...string) error {
	args := toAny(values)
	return s.rdb.LPush(ctx, key, args...).Err()
}

func (s *RedisStore) RPush(ctx context.Context, key string, values ...string) error {
	args := toAny(values)
	return s.rdb.RPush(ctx, key, args...).Err()
}

// BRPop blocks indefinitely (timeout 0) across keys, relying on ctx
// cancellation to interrupt the wait, per §5's "indefinite, interruptible
// by shutdown signal" suspension point.
func (s *RedisStore) BRPop(ctx context.Context, keys ...string) (string, string, error) {
	res, err := s.rdb.BRPop(ctx, 0, keys...).Result()
	if errors.Is(err, goredis.Nil) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "", "", ErrNoJob
	}
	if err != nil {
		return "", "", err
	}
	if len(res) != 2 {
		return "", "", ErrNoJob
	}
	return res[0], res[1], nil
}

func (s *RedisStore) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return s.rdb.ZAdd(ctx, key, goredis.Z{Score: score, Member: member}).Err()
}

func (s *RedisStore) ZRangeByScore(ctx context.Context, key string, min, max string) ([]string, error) {
	return s.rdb.ZRangeByScore(ctx, key, &goredis.ZRangeBy{Min: min, Max: max}).Result()
}

func (s *RedisStore) ZRem(ctx context.Context, key string, member string) error {
	return s.rdb.ZRem(ctx, key, member).Err()
}

func (s *RedisStore) SAdd(ctx context.Context, key string, members ...string) error {
	args := toAny(members)
	return s.rdb.SAdd(ctx, key, args...).Err()
}

func (s *RedisStore) SRem(ctx context.Context, key string, members ...string) error {
	args := toAny(members)
	return s.rdb.SRem(ctx, key, args...).Err()
}

func (s *RedisStore) SCard(ctx context.Context, key string) (int64, error) {
	return s.rdb.SCard(ctx, key).Result()
}

func (s *RedisStore) LLen(ctx context.Context, key string) (int64, error) {
	return s.rdb.LLen(ctx, key).Result()
}

func (s *RedisStore) HLen(ctx context.Context, key string) (int64, error) {
	return s.rdb.HLen(ctx, key).Result()
}

func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	return s.rdb.Incr(ctx, key).Result()
}

func (s *RedisStore) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	return s.rdb.IncrBy(ctx, key, delta).Result()
}

func (s *RedisStore) Publish(ctx context.Context, channel, message string) error {
	return s.rdb.Publish(ctx, channel, message).Err()
}

func (s *RedisStore) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	sub := s.rdb.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan string)
	go func() {
		defer close(out)
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return &redisSubscription{sub: sub, out: out}, nil
}

func (s *RedisStore) Pipeline() Pipeline {
	return &redisPipeline{pipe: s.rdb.Pipeline()}
}

func (s *RedisStore) Close() error { return s.rdb.Close() }

type redisSubscription struct {
	sub *goredis.PubSub
	out chan string
}

func (s *redisSubscription) Channel() <-chan string { return s.out }
func (s *redisSubscription) Close() error           { return s.sub.Close() }

type redisPipeline struct {
	pipe    goredis.Pipeliner
	strCmds []*StringResult
	cmds    []*goredis.StringCmd
}

func (p *redisPipeline) Set(key, value string, ttl time.Duration) {
	p.pipe.Set(context.Background(), key, value, ttl)
}

func (p *redisPipeline) Get(key string) *StringResult {
	cmd := p.pipe.Get(context.Background(), key)
	result := &StringResult{}
	p.strCmds = append(p.strCmds, result)
	p.cmds = append(p.cmds, cmd)
	return result
}

func (p *redisPipeline) LPush(key string, values ...string) {
	p.pipe.LPush(context.Background(), key, toAny(values)...)
}

func (p *redisPipeline) SAdd(key string, members ...string) {
	p.pipe.SAdd(context.Background(), key, toAny(members)...)
}

func (p *redisPipeline) Exec(ctx context.Context) error {
	_, err := p.pipe.Exec(ctx)
	if err != nil && !errors.Is(err, goredis.Nil) {
		for i, cmd := range p.cmds {
			p.strCmds[i].err = err
			_ = cmd
		}
		return err
	}
	for i, cmd := range p.cmds {
		val, cmdErr := cmd.Result()
		if errors.Is(cmdErr, goredis.Nil) {
			cmdErr = nil
		}
		p.strCmds[i].val = val
		p.strCmds[i].err = cmdErr
	}
	return nil
}

func toAny(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
