// Package indstream is the indicator stream service: it consumes OHLCV bar
// ticks from a WebSocket feed, runs them through the configured streaming
// indicators and publishes the results to Redis.
//
// Pipeline: [WS feed] → [indicators] → [Redis SET + PubSub]
//
// Ticks for the same bar seq repaint the indicators in place and are
// published as live previews; when the seq advances, the closed bar's final
// values are published once more as confirmed.
package indstream

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ta-streamv1/internal/feed/ws"
	"ta-streamv1/internal/logger"
	"ta-streamv1/internal/metrics"
	"ta-streamv1/internal/model"
	redisstore "ta-streamv1/internal/store/redis"
)

// Service is the top-level orchestrator for the indicator stream.
// It wires all dependencies, manages lifecycle, and coordinates goroutines.
type Service struct {
	cfg Config
	log *slog.Logger

	bound     []*bound
	ingest    *ws.Ingest
	publisher *redisstore.Publisher
	prom      *metrics.Metrics
	health    *metrics.HealthStatus

	barCh chan model.Bar
	pubCh chan redisstore.Batch

	lastSeq    uint64
	hasLastSeq bool

	latest *latestStore
}

// New creates a Service from the given Config. It builds the configured
// indicators, connects to Redis and prepares the feed client.
func New(cfg Config, log *slog.Logger) (*Service, error) {
	svc := &Service{
		cfg:    cfg,
		log:    log,
		prom:   metrics.NewMetrics(),
		health: metrics.NewHealthStatus(),
		barCh:  make(chan model.Bar, cfg.BarChanBuf),
		pubCh:  make(chan redisstore.Batch, 256),
		latest: newLatestStore(),
	}

	names := make([]string, 0, len(cfg.Specs))
	for _, spec := range cfg.Specs {
		b, err := build(spec)
		if err != nil {
			return nil, fmt.Errorf("indicator %s: %w", spec.Name(), err)
		}
		svc.bound = append(svc.bound, b)
		names = append(names, spec.Name())
		log.Info("indicator configured", "name", spec.Name(), "detail", b.String())
	}
	if len(svc.bound) == 0 {
		return nil, fmt.Errorf("no indicators configured")
	}
	svc.health.SetIndicators(names)

	var err error
	svc.publisher, err = redisstore.NewPublisher(redisstore.PublisherConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, err
	}
	svc.publisher.OnResult = func(b redisstore.Batch, elapsed time.Duration, err error) {
		svc.prom.PublishDur.Observe(elapsed.Seconds())
		if err != nil {
			if err != redisstore.ErrCircuitOpen {
				svc.log.Error("publish failed",
					"kind", b.Kind, "trace_id", b.TraceID, "updates", len(b.Updates), "err", err)
			}
			return
		}
		svc.prom.UpdatesTotal.WithLabelValues(b.Kind).Add(float64(len(b.Updates)))
	}
	svc.publisher.Breaker().OnStateChange = func(from, to redisstore.State) {
		log.Warn("redis circuit breaker transition", "from", from.String(), "to", to.String())
		svc.prom.BreakerState.Set(float64(to))
		if to == redisstore.StateOpen {
			svc.prom.BreakerTrips.Inc()
		}
	}

	svc.ingest, err = ws.New(ws.Config{URL: cfg.FeedURL})
	if err != nil {
		svc.publisher.Close()
		return nil, err
	}
	svc.ingest.OnConnect = func() { svc.health.SetWSConnected(true) }
	svc.ingest.OnReconnect = func() {
		svc.health.SetWSConnected(false)
		svc.prom.WSReconnects.Inc()
	}
	svc.ingest.OnOutOfOrder = func() { svc.prom.OutOfOrderBars.Inc() }
	svc.ingest.OnDrop = func() { svc.prom.DroppedBars.Inc() }

	return svc, nil
}

// Run starts all subsystems and blocks until ctx is cancelled.
func (svc *Service) Run(ctx context.Context) error {
	svc.log.Info("starting indicator stream service",
		"feed", svc.cfg.FeedURL, "indicators", len(svc.bound))

	metricsSrv := metrics.NewServer(svc.cfg.MetricsAddr, svc.health)
	metricsSrv.Start()
	svc.health.StartLivenessChecker(ctx, svc.publisher.Client(), 10*time.Second)

	apiSrv := svc.startHTTP()

	go svc.publisher.Run(ctx, svc.pubCh)

	go func() {
		if err := svc.ingest.Start(ctx, svc.barCh); err != nil {
			svc.log.Error("feed ingest stopped", "err", err)
		}
	}()

	go svc.processLoop(ctx)

	<-ctx.Done()

	svc.log.Info("shutdown signal received")
	shutCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	apiSrv.Shutdown(shutCtx)
	metricsSrv.Stop(shutCtx)
	svc.publisher.Close()
	svc.log.Info("shutdown complete")
	return nil
}

// processLoop consumes bar ticks and drives compute + publish.
func (svc *Service) processLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case b, ok := <-svc.barCh:
			if !ok {
				return
			}
			svc.handleBar(ctx, b)
		}
	}
}

// handleBar runs one bar tick through every indicator. On an advance the
// just-closed bar's final values are published as confirmed before the new
// bar is applied.
func (svc *Service) handleBar(ctx context.Context, b model.Bar) {
	svc.prom.BarsTotal.Inc()

	// The ingest already filters per-connection, but the service-level
	// high-water mark is authoritative across feed restarts.
	if svc.hasLastSeq && b.Seq < svc.lastSeq {
		svc.prom.OutOfOrderBars.Inc()
		svc.log.Warn("dropping out-of-order bar", "seq", b.Seq, "last_seq", svc.lastSeq)
		return
	}
	advance := !svc.hasLastSeq || b.Seq > svc.lastSeq

	if advance {
		svc.prom.AdvancesTotal.Inc()
		if svc.hasLastSeq {
			confirmed := make([]model.Update, 0, len(svc.bound))
			for _, bi := range svc.bound {
				confirmed = append(confirmed, bi.confirm(svc.lastSeq)...)
			}
			svc.latest.put(confirmed)
			svc.publish(ctx, confirmed, "confirmed", svc.lastSeq)
		}
		svc.lastSeq = b.Seq
		svc.hasLastSeq = true
	} else {
		svc.prom.RepaintsTotal.Inc()
	}

	start := time.Now()
	live := make([]model.Update, 0, len(svc.bound))
	for _, bi := range svc.bound {
		live = append(live, bi.apply(b)...)
	}
	svc.prom.ComputeDur.Observe(time.Since(start).Seconds())

	svc.latest.put(live)
	svc.publish(ctx, live, "live", b.Seq)

	svc.health.SetLastBar(b.Seq, time.Now())
	svc.observeSaturation()
}

// publish hands a batch to the publisher goroutine. Metrics and error
// handling happen in the OnResult hook once the pipeline has run.
func (svc *Service) publish(ctx context.Context, updates []model.Update, kind string, seq uint64) {
	if len(updates) == 0 {
		return
	}
	select {
	case svc.pubCh <- redisstore.Batch{
		Kind:    kind,
		TraceID: logger.GenerateTraceID(kind, seq),
		Updates: updates,
	}:
	case <-ctx.Done():
	}
}

func (svc *Service) observeSaturation() {
	barPct := float64(len(svc.barCh)) / float64(cap(svc.barCh)) * 100
	svc.prom.ChannelSaturationPct.WithLabelValues("bar_ch").Set(barPct)
	pubPct := float64(len(svc.pubCh)) / float64(cap(svc.pubCh)) * 100
	svc.prom.ChannelSaturationPct.WithLabelValues("pub_ch").Set(pubPct)
}
