package queue

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the default list key.
const DefaultRedisKey = "meshforge:jobs"

// DefaultPollTimeout bounds each BLPOP so Close is observed promptly.
// Redis takes BLPOP timeouts in whole seconds, so it is also the minimum.
const DefaultPollTimeout = time.Second

// closeTimeout bounds the DEL of an instance list on Close.
const closeTimeout = 5 * time.Second

// RedisConfig configures a Redis-backed queue.
type RedisConfig struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// Key is the list key (default meshforge:jobs).
	Key string
	// Instance, when set, scopes the list to one orchestrator process as
	// Key:Instance. The list is deleted on Close.
	Instance string
	// PollTimeout is the BLPOP timeout (default 1s). Values under 1s are
	// raised to 1s, the smallest timeout Redis honours.
	PollTimeout time.Duration
}

// Redis is a list-backed queue: RPUSH to enqueue, BLPOP to dequeue.
//
// Job state lives in the orchestrator's memory, so a list must have exactly
// one consuming orchestrator. Ids it does not know are dropped by the
// orchestrator, never run. Give each process its own Instance.
type Redis struct {
	config RedisConfig
	key    string
	client *goredis.Client
	closed atomic.Bool
}

// NewRedis creates a Redis queue from the given config.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis queue requires a URL")
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis queue: invalid URL: %w", err)
	}
	if cfg.Key == "" {
		cfg.Key = DefaultRedisKey
	}
	if cfg.PollTimeout < DefaultPollTimeout {
		cfg.PollTimeout = DefaultPollTimeout
	}
	key := cfg.Key
	if cfg.Instance != "" {
		key += ":" + cfg.Instance
	}
	return &Redis{config: cfg, key: key, client: goredis.NewClient(opts)}, nil
}

// Key returns the list key ids are pushed to.
func (q *Redis) Key() string { return q.key }

// Enqueue implements Queue.
func (q *Redis) Enqueue(ctx context.Context, id string) error {
	if q.closed.Load() {
		return ErrClosed
	}
	if err := q.client.RPush(ctx, q.key, id).Err(); err != nil {
		return fmt.Errorf("redis queue: rpush: %w", err)
	}
	return nil
}

// Dequeue implements Queue.
func (q *Redis) Dequeue(ctx context.Context) (string, error) {
	for {
		if q.closed.Load() {
			return "", ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		res, err := q.client.BLPop(ctx, q.config.PollTimeout, q.key).Result()
		if errors.Is(err, goredis.Nil) {
			continue
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			if q.closed.Load() {
				return "", ErrClosed
			}
			return "", fmt.Errorf("redis queue: blpop: %w", err)
		}
		// BLPOP returns [key, value].
		if len(res) == 2 {
			return res[1], nil
		}
	}
}

// Len implements Queue.
func (q *Redis) Len(ctx context.Context) (int, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis queue: llen: %w", err)
	}
	return int(n), nil
}

// Close implements Queue. An instance list is deleted first: its ids refer
// to jobs that die with this process.
func (q *Redis) Close() error {
	if q.closed.Swap(true) {
		return nil
	}
	var err error
	if q.config.Instance != "" {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		if derr := q.client.Del(ctx, q.key).Err(); derr != nil {
			err = fmt.Errorf("redis queue: del %s: %w", q.key, derr)
		}
		cancel()
	}
	return errors.Join(err, q.client.Close())
}

var _ Queue = (*Redis)(nil)
