// Package ws provides the WebSocket bar feed client. It connects to a bar
// server (e.g. cmd/barsim), decodes JSON bar ticks and pushes them into the
// compute pipeline.
//
// The expected JSON message format on the wire is identical to model.Bar:
//
//	{"open":101.2,"high":101.9,"low":100.8,"close":101.5,"volume":12,"seq":4807}
//
// Messages whose seq goes backwards are dropped here, before they can reach
// an indicator: indicators treat a decreasing seq as corruption and panic.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"time"

	"ta-streamv1/internal/model"

	"github.com/gorilla/websocket"
)

// Config holds configuration for the WS bar feed.
type Config struct {
	// URL of the bar WebSocket server, e.g. "ws://localhost:9001/ws"
	URL string

	// ReconnectDelay is the initial delay before reconnection attempts.
	// Defaults to 2 seconds if zero.
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the exponential backoff. Defaults to 30s.
	MaxReconnectDelay time.Duration
}

func (c *Config) defaults() {
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = 30 * time.Second
	}
}

// Ingest connects to a JSON WebSocket bar server and pushes model.Bar
// values into barCh, reconnecting with exponential backoff.
type Ingest struct {
	cfg Config

	// seq high-water mark across reconnects; out-of-order bars are dropped
	lastSeq    uint64
	hasLastSeq bool

	// Optional hooks.
	OnConnect    func()
	OnReconnect  func()
	OnOutOfOrder func()
	OnDrop       func()
}

// New creates a new Ingest. Returns an error if the URL is unparseable.
func New(cfg Config) (*Ingest, error) {
	cfg.defaults()
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, err
	}
	return &Ingest{cfg: cfg}, nil
}

// Start connects to the WebSocket and streams bars into barCh.
// Blocks until ctx is cancelled. Reconnects automatically on disconnect.
func (ing *Ingest) Start(ctx context.Context, barCh chan<- model.Bar) error {
	delay := ing.cfg.ReconnectDelay

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		err := ing.runOnce(ctx, barCh)
		if err == nil {
			// Context cancelled cleanly
			return nil
		}

		slog.Warn("feed disconnected, reconnecting", "err", err, "delay", delay)
		if ing.OnReconnect != nil {
			ing.OnReconnect()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		// Exponential backoff
		delay *= 2
		if delay > ing.cfg.MaxReconnectDelay {
			delay = ing.cfg.MaxReconnectDelay
		}
	}
}

// runOnce makes a single connection attempt and reads until disconnect or ctx cancel.
func (ing *Ingest) runOnce(ctx context.Context, barCh chan<- model.Bar) error {
	dialer := websocket.DefaultDialer
	conn, _, err := dialer.DialContext(ctx, ing.cfg.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	slog.Info("feed connected", "url", ing.cfg.URL)
	if ing.OnConnect != nil {
		ing.OnConnect()
	}

	// Async context watcher — closes the connection when ctx is cancelled.
	go func() {
		<-ctx.Done()
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"))
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}

		var b model.Bar
		if err := json.Unmarshal(raw, &b); err != nil {
			slog.Warn("feed parse error", "err", err, "raw", string(raw))
			continue
		}

		if ing.hasLastSeq && b.Seq < ing.lastSeq {
			slog.Warn("dropping out-of-order bar", "seq", b.Seq, "last_seq", ing.lastSeq)
			if ing.OnOutOfOrder != nil {
				ing.OnOutOfOrder()
			}
			continue
		}
		ing.lastSeq = b.Seq
		ing.hasLastSeq = true

		select {
		case barCh <- b:
		default:
			slog.Warn("bar channel full, dropping bar", "seq", b.Seq)
			if ing.OnDrop != nil {
				ing.OnDrop()
			}
		}
	}
}
