// Package observability provides structured logging and pipeline metrics.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// NewLogger builds a zap logger from config. JSON production encoding by
// default, console encoding for local development.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	var config zap.Config
	if cfg.Format == "console" {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	switch cfg.Level {
	case "debug":
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		config.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		config.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	config.InitialFields = map[string]interface{}{
		"service": "gridwatch",
	}

	return config.Build()
}

// Metrics holds the Prometheus instruments for the pipeline.
type Metrics struct {
	FetchesTotal       *prometheus.CounterVec
	ItemsIngested      *prometheus.CounterVec
	ItemsDeduplicated  prometheus.Counter
	SourcesOnline      prometheus.Gauge
	RiskScore          prometheus.Gauge
	CampaignCandidates *prometheus.GaugeVec
	PipelineDuration   prometheus.Histogram
	HistoryWrites      *prometheus.CounterVec
}

// NewMetrics registers the pipeline instruments on the default registry.
func NewMetrics() *Metrics {
	const namespace = "gridwatch"

	return &Metrics{
		FetchesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "feed_fetches_total",
				Help:      "Feed fetch attempts by source and outcome",
			},
			[]string{"source", "status"},
		),
		ItemsIngested: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "items_ingested_total",
				Help:      "Normalized items produced by source",
			},
			[]string{"source"},
		),
		ItemsDeduplicated: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "items_deduplicated_total",
				Help:      "Items merged away by cross-source deduplication",
			},
		),
		SourcesOnline: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sources_online",
				Help:      "Sources that responded in the last ingestion pass",
			},
		),
		RiskScore: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "risk_score",
				Help:      "Current energy-sector risk score (1.0-5.0)",
			},
		),
		CampaignCandidates: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "campaign_candidates",
				Help:      "Campaign candidates by confidence tier",
			},
			[]string{"confidence"},
		),
		PipelineDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pipeline_duration_seconds",
				Help:      "End-to-end pipeline run duration",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
			},
		),
		HistoryWrites: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "history_writes_total",
				Help:      "Score history write attempts by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
