// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// This package adapts the generic metrics.Backend interface to Prometheus by:
//
//   - Using client_golang CounterVec and SummaryVec collectors.
//   - Mapping the common run labels (job, step, status, kind, artifact) onto
//     Prometheus labels.
//   - Pushing collected metrics to a Prometheus Pushgateway instance instead
//     of exposing an HTTP scrape endpoint; a batch job has nothing to scrape
//     once it exits.
//
// The package intentionally contains all Prometheus-specific dependencies so
// that the rest of the project remains decoupled from Prometheus and can swap
// to alternative backends (e.g. Datadog, StatsD) without changes to the core
// pipeline.
package prompush

import (
	"fmt"

	"searchetl/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	// Step-level metrics
	stepCounter  *prometheus.CounterVec // "searchetl_step_total"
	stepDuration *prometheus.SummaryVec // "searchetl_step_duration_seconds"

	// Row-level metrics
	rowCounter *prometheus.CounterVec // "searchetl_rows_total"

	// Artifact metrics
	artifactCounter *prometheus.CounterVec // "searchetl_artifacts_total"
	artifactBytes   *prometheus.SummaryVec // "searchetl_artifact_bytes"
}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName: the Pushgateway "job" name (often same as the configured job).
// gatewayURL: base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "searchetl"
	}

	reg := prometheus.NewRegistry()

	// job is the Pushgateway grouping key; the vectors carry the rest.
	stepCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchetl_step_total",
			Help: "Total number of run step executions, partitioned by step and status.",
		},
		[]string{"step", "status"},
	)
	stepDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "searchetl_step_duration_seconds",
			Help:       "Duration of run steps in seconds, partitioned by step and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"step", "status"},
	)

	rowCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchetl_rows_total",
			Help: "Row-level counts per kind (rows_in, users_kept, valid_searches, unique_ids, warehouse_rows).",
		},
		[]string{"kind"},
	)

	artifactCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searchetl_artifacts_total",
			Help: "Artifacts written, partitioned by artifact name.",
		},
		[]string{"artifact"},
	)
	artifactBytes := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name: "searchetl_artifact_bytes",
			Help: "Size in bytes of each written artifact.",
		},
		[]string{"artifact"},
	)

	for _, c := range []prometheus.Collector{
		stepCounter, stepDuration, rowCounter, artifactCounter, artifactBytes,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register collector: %w", err)
		}
	}

	return &Backend{
		gatewayURL:      gatewayURL,
		jobName:         jobName,
		reg:             reg,
		stepCounter:     stepCounter,
		stepDuration:    stepDuration,
		rowCounter:      rowCounter,
		artifactCounter: artifactCounter,
		artifactBytes:   artifactBytes,
	}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case "searchetl_step_total":
		if b.stepCounter == nil {
			return
		}
		b.stepCounter.WithLabelValues(labels["step"], labels["status"]).Add(delta)

	case "searchetl_rows_total":
		if b.rowCounter == nil {
			return
		}
		b.rowCounter.WithLabelValues(labels["kind"]).Add(delta)

	case "searchetl_artifacts_total":
		if b.artifactCounter == nil {
			return
		}
		b.artifactCounter.WithLabelValues(labels["artifact"]).Add(delta)

	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	switch name {
	case "searchetl_step_duration_seconds":
		if b.stepDuration == nil {
			return
		}
		b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)

	case "searchetl_artifact_bytes":
		if b.artifactBytes == nil {
			return
		}
		b.artifactBytes.WithLabelValues(labels["artifact"]).Observe(value)
	}
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
