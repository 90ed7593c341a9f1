package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics tracks operational metrics for a harvest run. Each instance owns
// its own registry so several runs (or tests) never collide.
type Metrics struct {
	registry *prometheus.Registry

	// Scroll metrics
	ScrollRounds   prometheus.Counter
	HeightGrowths  prometheus.Counter
	ScrollFailures prometheus.Counter

	// Extraction metrics
	ItemsScanned prometheus.Counter
	ItemsEmitted prometheus.Counter
	ItemsSkipped prometheus.Counter
	ItemsFailed  prometheus.Counter

	// Download metrics
	Downloads        *prometheus.CounterVec
	BytesDownloaded  prometheus.Counter
	DownloadDuration prometheus.Histogram

	logger *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ScrollRounds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "imgharvest_scroll_rounds_total",
			Help: "Scroll rounds executed",
		}),
		HeightGrowths: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "imgharvest_scroll_height_growths_total",
			Help: "Scroll rounds that revealed new content",
		}),
		ScrollFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "imgharvest_scroll_failures_total",
			Help: "Scroll commands or metric reads that failed",
		}),
		ItemsScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "imgharvest_items_scanned_total",
			Help: "Product containers scanned",
		}),
		ItemsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "imgharvest_items_emitted_total",
			Help: "Image records emitted",
		}),
		ItemsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "imgharvest_items_skipped_total",
			Help: "Containers skipped for a missing image",
		}),
		ItemsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "imgharvest_items_failed_total",
			Help: "Containers whose image could not be read",
		}),
		Downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imgharvest_downloads_total",
			Help: "Download attempts by outcome",
		}, []string{"status"}),
		BytesDownloaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "imgharvest_bytes_downloaded_total",
			Help: "Bytes written to disk",
		}),
		DownloadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "imgharvest_download_duration_seconds",
			Help:    "Time spent per download attempt, excluding the throttle delay",
			Buckets: prometheus.DefBuckets,
		}),
		logger: logger.With("component", "metrics"),
	}

	m.registry.MustRegister(
		m.ScrollRounds, m.HeightGrowths, m.ScrollFailures,
		m.ItemsScanned, m.ItemsEmitted, m.ItemsSkipped, m.ItemsFailed,
		m.Downloads, m.BytesDownloaded, m.DownloadDuration,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer starts the metrics HTTP server.
func (m *Metrics) StartServer(port int, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	addr := fmt.Sprintf(":%d", port)
	m.logger.Info("metrics server starting", "addr", addr, "path", path)

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			m.logger.Error("metrics server error", "error", err)
		}
	}()

	return nil
}

// Snapshot returns all imgharvest counters as a map. Labelled counters are
// keyed as name{value}.
func (m *Metrics) Snapshot() map[string]int64 {
	out := make(map[string]int64)
	families, err := m.registry.Gather()
	if err != nil {
		m.logger.Warn("gather metrics", "error", err)
		return out
	}
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "imgharvest_") {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if metric.GetCounter() == nil {
				continue
			}
			key := mf.GetName()
			for _, lp := range metric.GetLabel() {
				key += "{" + lp.GetValue() + "}"
			}
			out[key] = int64(metric.GetCounter().GetValue())
		}
	}
	return out
}
