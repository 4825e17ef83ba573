// Package redis publishes indicator updates to Redis: SET of the latest
// value per indicator plus PubSub fan-out for live subscribers.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unsafe"

	"ta-streamv1/internal/logger"
	"ta-streamv1/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const defaultLatestTTL = 30 * time.Minute

// PublisherConfig configures the Redis publisher.
type PublisherConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int

	// Breaker settings; zero values pick 5 failures / 10s.
	BreakerMaxFailures  int
	BreakerResetTimeout time.Duration
}

func (c *PublisherConfig) defaults() {
	if c.BreakerMaxFailures == 0 {
		c.BreakerMaxFailures = 5
	}
	if c.BreakerResetTimeout == 0 {
		c.BreakerResetTimeout = 10 * time.Second
	}
}

// Batch is one set of updates queued for publishing, tagged with the kind
// of tick that produced it ("live" or "confirmed") and a trace ID.
type Batch struct {
	Kind    string
	TraceID string
	Updates []model.Update
}

// Publisher writes indicator updates to Redis behind a circuit breaker.
type Publisher struct {
	client  *goredis.Client
	breaker *CircuitBreaker

	// OnResult, if set, is called after every batch attempt with the time
	// the pipeline took and the error, if any. Must be safe for use from
	// the Run goroutine.
	OnResult func(b Batch, elapsed time.Duration, err error)
}

// NewPublisher creates a Publisher and pings the server.
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	cfg.defaults()
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	slog.Info("redis connected", "addr", cfg.Addr)
	return &Publisher{
		client:  client,
		breaker: NewCircuitBreaker(cfg.BreakerMaxFailures, cfg.BreakerResetTimeout),
	}, nil
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// Breaker returns the circuit breaker so callers can hook state changes.
func (p *Publisher) Breaker() *CircuitBreaker { return p.breaker }

// PublishBatch writes a batch of updates in one pipeline.
//
// Live updates (repaints of the forming bar) are PubSub-only; confirmed
// updates also SET the latest-value key with a TTL. Updates that are
// neither ready nor live are skipped, the window is still warming up.
func (p *Publisher) PublishBatch(ctx context.Context, updates []model.Update) error {
	if len(updates) == 0 {
		return nil
	}

	return p.breaker.Execute(func() error {
		pipe := p.client.Pipeline()
		queued := 0
		for i := range updates {
			u := &updates[i]
			if !u.Ready && !u.Live {
				continue
			}

			jsonBytes := u.JSON()
			// Zero-copy []byte→string (safe: jsonBytes is not mutated after this)
			jsonData := *(*string)(unsafe.Pointer(&jsonBytes))

			if u.Live {
				pipe.Publish(ctx, u.Channel(), jsonData)
				queued++
				continue
			}

			pipe.Set(ctx, u.LatestKey(), jsonData, defaultLatestTTL)
			pipe.Publish(ctx, u.Channel(), jsonData)
			queued++
		}
		if queued == 0 {
			return nil
		}

		_, err := pipe.Exec(ctx)
		if err != nil {
			attrs := []any{slog.Int("updates", queued), slog.Any("err", err)}
			slog.Error("redis publish pipeline failed",
				append(attrs, logger.LogWithTrace(ctx)...)...)
		}
		return err
	})
}

// Run consumes batches from batchCh and publishes them, stamping each
// batch's trace ID into the context so pipeline failures carry it.
// Blocks until ctx is cancelled or batchCh is closed.
func (p *Publisher) Run(ctx context.Context, batchCh <-chan Batch) {
	for {
		select {
		case <-ctx.Done():
			return
		case b, ok := <-batchCh:
			if !ok {
				return
			}
			bctx := logger.WithTraceID(ctx, b.TraceID)
			start := time.Now()
			err := p.PublishBatch(bctx, b.Updates)
			if p.OnResult != nil {
				p.OnResult(b, time.Since(start), err)
			}
			// ErrCircuitOpen is expected while Redis is down; updates are
			// disposable and the latest key converges once writes resume.
		}
	}
}

// Close closes the Redis client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
