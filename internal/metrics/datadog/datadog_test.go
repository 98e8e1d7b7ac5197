package datadog

import (
	"reflect"
	"sort"
	"testing"

	"searchetl/internal/metrics"
)

// Emitting to the agent needs a live DogStatsD socket, so these tests stop
// at construction and tag mapping; the datagram path is covered by the
// statsd client itself.

func TestNewBackend(t *testing.T) {
	t.Parallel()

	if _, err := NewBackend(Config{}); err == nil {
		t.Fatal("NewBackend without Addr should fail")
	}

	// UDP clients do not dial, so construction succeeds without an agent.
	b, err := NewBackend(Config{
		Addr:       "127.0.0.1:8125",
		Namespace:  "searchetl.",
		GlobalTags: []string{"job:search_activity_daily"},
	})
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}
	if b.client == nil {
		t.Fatal("NewBackend() returned backend without client")
	}
	// statsd v5 keeps the namespace in an unexported field; read it via
	// reflection so the expectation stays the same.
	ns := reflect.ValueOf(b.client).Elem().FieldByName("namespace").String()
	if ns != "searchetl." {
		t.Fatalf("namespace = %q, want searchetl.", ns)
	}
}

func TestTags(t *testing.T) {
	t.Parallel()

	if got := tags(nil); got != nil {
		t.Fatalf("tags(nil) = %v, want nil", got)
	}

	got := tags(metrics.Labels{"step": "extract", "status": "success"})
	sort.Strings(got)
	if len(got) != 2 || got[0] != "status:success" || got[1] != "step:extract" {
		t.Fatalf("tags = %v, want [status:success step:extract]", got)
	}
}
