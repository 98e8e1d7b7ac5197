// Package datadog emits the run's counters and step timings to a Datadog
// agent over DogStatsD. Deployments whose hosts already run the agent
// select it with `"metrics": {"backend": "datadog"}` in the job file; the
// pipeline itself only ever talks to the metrics.Backend interface, so the
// statsd dependency stays contained here.
package datadog

import (
	"fmt"

	"searchetl/internal/metrics"

	"github.com/DataDog/datadog-go/v5/statsd"
)

// Config holds the DogStatsD connection settings.
type Config struct {
	// Addr is the agent's DogStatsD endpoint, "host:port" for UDP or a
	// "unix://" socket path.
	Addr string

	// Namespace prefixes every metric name, e.g. "searchetl.".
	Namespace string

	// GlobalTags ride along on every metric, e.g. "job:search_activity_daily".
	GlobalTags []string
}

// Backend forwards metrics.Backend calls to a statsd client. One instance
// is installed process-wide via metrics.SetBackend by the CLI.
type Backend struct {
	client *statsd.Client
}

// NewBackend dials the agent described by cfg. Addr is required; DogStatsD
// has no sane default once the job runs off-host.
func NewBackend(cfg Config) (*Backend, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("datadog: Addr is required")
	}
	var opts []statsd.Option
	if cfg.Namespace != "" {
		opts = append(opts, statsd.WithNamespace(cfg.Namespace))
	}
	if len(cfg.GlobalTags) > 0 {
		opts = append(opts, statsd.WithTags(cfg.GlobalTags))
	}
	c, err := statsd.New(cfg.Addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("datadog: create client: %w", err)
	}
	return &Backend{client: c}, nil
}

// IncCounter emits a DogStatsD count. Every counter the pipeline records
// (steps, rows, artifacts) carries a whole-number delta, so the int64
// narrowing loses nothing.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if b.client == nil {
		return
	}
	b.client.Count(name, int64(delta), tags(labels), 1)
}

// ObserveHistogram emits a DogStatsD histogram; the pipeline uses it for
// step durations and artifact sizes.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if b.client == nil {
		return
	}
	b.client.Histogram(name, value, tags(labels), 1)
}

// Flush closes the client, which flushes any buffered datagrams. The CLI
// calls it once on exit; a batch job has no later flush point.
func (b *Backend) Flush() error {
	if b.client == nil {
		return nil
	}
	return b.client.Close()
}

// tags flattens labels into DogStatsD "key:value" form.
func tags(lbls metrics.Labels) []string {
	if len(lbls) == 0 {
		return nil
	}
	out := make([]string, 0, len(lbls))
	for k, v := range lbls {
		out = append(out, k+":"+v)
	}
	return out
}
