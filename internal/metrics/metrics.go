package metrics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the indicator stream service.
type Metrics struct {
	BarsTotal     prometheus.Counter
	AdvancesTotal prometheus.Counter
	RepaintsTotal prometheus.Counter

	// Feed hygiene
	OutOfOrderBars prometheus.Counter
	DroppedBars    prometheus.Counter
	WSReconnects   prometheus.Counter

	// Compute / publish pipeline
	ComputeDur   prometheus.Histogram
	PublishDur   prometheus.Histogram
	UpdatesTotal *prometheus.CounterVec // labels: kind=confirmed|live

	// Redis circuit breaker
	BreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	BreakerTrips prometheus.Counter

	// Backpressure
	ChannelSaturationPct *prometheus.GaugeVec // labels: channel_name
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		BarsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indstream_bars_total",
			Help: "Total bar ticks received from the feed",
		}),
		AdvancesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indstream_bar_advances_total",
			Help: "Bar ticks that opened a new bar (strictly greater seq)",
		}),
		RepaintsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indstream_bar_repaints_total",
			Help: "Bar ticks that repainted the forming bar (same seq)",
		}),
		OutOfOrderBars: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indstream_out_of_order_bars_total",
			Help: "Bars dropped because their seq went backwards",
		}),
		DroppedBars: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indstream_dropped_bars_total",
			Help: "Bars dropped because the ingest channel was full",
		}),
		WSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indstream_ws_reconnects_total",
			Help: "Total WebSocket reconnection attempts",
		}),
		ComputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "indstream_compute_duration_seconds",
			Help:    "Indicator compute latency per bar tick (all indicators)",
			Buckets: []float64{0.000001, 0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001},
		}),
		PublishDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "indstream_redis_publish_duration_seconds",
			Help:    "Redis publish pipeline latency per batch",
			Buckets: prometheus.DefBuckets,
		}),
		UpdatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indstream_updates_total",
			Help: "Indicator updates published (by kind)",
		}, []string{"kind"}),
		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "indstream_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		BreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "indstream_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
		ChannelSaturationPct: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "indstream_channel_saturation_pct",
			Help: "Channel fill percentage (len/cap * 100)",
		}, []string{"channel_name"}),
	}

	prometheus.MustRegister(
		m.BarsTotal,
		m.AdvancesTotal,
		m.RepaintsTotal,
		m.OutOfOrderBars,
		m.DroppedBars,
		m.WSReconnects,
		m.ComputeDur,
		m.PublishDur,
		m.UpdatesTotal,
		m.BreakerState,
		m.BreakerTrips,
		m.ChannelSaturationPct,
	)

	return m
}

// HealthStatus represents the service health.
type HealthStatus struct {
	mu sync.RWMutex

	WSConnected    bool
	RedisConnected bool
	LastBarAt      time.Time
	LastSeq        uint64
	Indicators     []string

	RedisLatencyMs float64
	LastCheckAt    time.Time
	StartedAt      time.Time
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetWSConnected(v bool) {
	h.mu.Lock()
	h.WSConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastBar(seq uint64, at time.Time) {
	h.mu.Lock()
	h.LastSeq = seq
	h.LastBarAt = at
	h.mu.Unlock()
}

func (h *HealthStatus) SetIndicators(names []string) {
	h.mu.Lock()
	h.Indicators = names
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.WSConnected || !h.RedisConnected {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if !h.WSConnected && !h.RedisConnected {
		overallStatus = "unhealthy"
	}

	barAge := ""
	if !h.LastBarAt.IsZero() {
		barAge = time.Since(h.LastBarAt).Round(time.Millisecond).String()
	}

	status := struct {
		Status         string   `json:"status"`
		Uptime         string   `json:"uptime"`
		WSConnected    bool     `json:"ws_connected"`
		RedisConnected bool     `json:"redis_connected"`
		RedisLatencyMs float64  `json:"redis_latency_ms"`
		LastSeq        uint64   `json:"last_seq"`
		BarAge         string   `json:"bar_age"`
		Indicators     []string `json:"indicators"`
		LastCheckAt    string   `json:"last_check_at"`
	}{
		Status:         overallStatus,
		Uptime:         time.Since(h.StartedAt).Round(time.Second).String(),
		WSConnected:    h.WSConnected,
		RedisConnected: h.RedisConnected,
		RedisLatencyMs: h.RedisLatencyMs,
		LastSeq:        h.LastSeq,
		BarAge:         barAge,
		Indicators:     h.Indicators,
		LastCheckAt:    h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		slog.Info("metrics server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("metrics server error", "err", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
