// Package metrics provides Prometheus metrics for the briefing service.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StageDuration measures each pipeline stage.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "oddly",
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Duration of briefing pipeline stages in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80},
		},
		[]string{"stage", "status"},
	)

	// StageFailures counts failed pipeline stages.
	StageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oddly",
			Name:      "pipeline_stage_failures_total",
			Help:      "Total number of failed pipeline stages",
		},
		[]string{"stage"},
	)

	// BriefingsTotal counts briefings served, split by cache hit.
	BriefingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oddly",
			Name:      "briefings_total",
			Help:      "Total number of briefings served",
		},
		[]string{"topic", "cached"},
	)

	// HTTPRequests counts API requests by route and status.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oddly",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// RegistrarBalance tracks the registrar signer balance in ETH.
	RegistrarBalance = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "oddly",
			Name:      "registrar_balance_eth",
			Help:      "ENS registrar signer balance in ETH",
		},
	)
)

// PipelineObserver feeds pipeline timings into the package collectors.
type PipelineObserver struct{}

func (PipelineObserver) ObserveStage(stage string, took time.Duration, err error) {
	RecordStage(stage, took, err)
}

func (PipelineObserver) ObserveBriefing(topic string, cached bool) {
	BriefingsTotal.WithLabelValues(topic, strconv.FormatBool(cached)).Inc()
}

// RecordStage records one stage run.
func RecordStage(stage string, took time.Duration, err error) {
	StageDuration.WithLabelValues(stage, status(err)).Observe(took.Seconds())
	if err != nil {
		StageFailures.WithLabelValues(stage).Inc()
	}
}

// RecordRequest records a completed HTTP request.
func RecordRequest(method, route string, code int) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
}

// SetRegistrarBalance sets the registrar balance gauge.
func SetRegistrarBalance(eth float64) {
	RegistrarBalance.Set(eth)
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
