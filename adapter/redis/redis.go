// Package redis delivers job completion events through Redis.
//
// In pubsub mode (default) the JSON event is PUBLISHed to a channel and is
// lost when nobody is subscribed. In stream mode it is appended with XADD to
// a capped stream, so consumers that were offline can catch up.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/justapithecus/meshforge/adapter"
)

// Delivery modes.
const (
	ModePubSub = "pubsub"
	ModeStream = "stream"
)

const (
	// DefaultChannel names the pub/sub channel or stream key.
	DefaultChannel = "meshforge:job_completed"
	// DefaultTimeout bounds one delivery attempt.
	DefaultTimeout = 5 * time.Second
	// DefaultRetries is the number of attempts after the first.
	DefaultRetries = 3
	// DefaultMaxLen caps the stream length (approximate trimming).
	DefaultMaxLen = 10000
)

// Config configures the Redis adapter.
type Config struct {
	// URL is redis://[:password@]host:port[/db] (required).
	URL string
	// Mode is pubsub (default) or stream.
	Mode string
	// Channel is the channel or stream key (default meshforge:job_completed).
	Channel string
	// MaxLen caps the stream in stream mode (default 10000).
	MaxLen int64
	// Timeout bounds one attempt (default 5s).
	Timeout time.Duration
	// Retries after the first attempt.
	Retries int
}

// Adapter delivers events through Redis.
type Adapter struct {
	config Config
	client *goredis.Client
}

// New validates cfg and builds an adapter. No connection is made until the
// first Publish.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis adapter requires a URL")
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis adapter: invalid URL: %w", err)
	}
	switch cfg.Mode {
	case "":
		cfg.Mode = ModePubSub
	case ModePubSub, ModeStream:
	default:
		return nil, fmt.Errorf("redis adapter: unknown mode %q", cfg.Mode)
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	if cfg.MaxLen < 0 {
		return nil, fmt.Errorf("max length must be >= 0, got %d", cfg.MaxLen)
	}
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxLen == 0 {
		cfg.MaxLen = DefaultMaxLen
	}
	return &Adapter{config: cfg, client: goredis.NewClient(opts)}, nil
}

// Publish delivers event, retrying every failure until retries run out.
func (a *Adapter) Publish(ctx context.Context, event *adapter.JobCompletedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}
	err = adapter.Retry(ctx, a.config.Retries, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
		return a.deliver(ctx, event, body)
	})
	if err != nil {
		return fmt.Errorf("redis %s: %w", a.config.Mode, err)
	}
	return nil
}

func (a *Adapter) deliver(ctx context.Context, event *adapter.JobCompletedEvent, body []byte) error {
	if a.config.Mode == ModePubSub {
		return a.client.Publish(ctx, a.config.Channel, body).Err()
	}
	// Job id and state are duplicated as fields so consumers can filter
	// without decoding the event.
	return a.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: a.config.Channel,
		MaxLen: a.config.MaxLen,
		Approx: true,
		Values: map[string]any{
			"job_id": event.JobID,
			"state":  event.State,
			"event":  string(body),
		},
	}).Err()
}

// Close releases the client.
func (a *Adapter) Close() error {
	return a.client.Close()
}

var _ adapter.Adapter = (*Adapter)(nil)
