package httpds

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// TestFetch_Open verifies that Fetch streams the response body on 200 and
// surfaces non-OK statuses as errors with the body closed.
func TestFetch_Open(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/export.csv.gz":
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("payload"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(Config{Timeout: 2 * time.Second})

	t.Run("ok streams body", func(t *testing.T) {
		src := NewFetch(c, srv.URL+"/export.csv.gz")

		rc, err := src.Open(context.Background())
		if err != nil {
			t.Fatalf("Open error: %v", err)
		}
		defer rc.Close()

		got, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if string(got) != "payload" {
			t.Fatalf("body = %q, want %q", got, "payload")
		}
	})

	t.Run("non-OK status is an error", func(t *testing.T) {
		src := NewFetch(c, srv.URL+"/missing")

		rc, err := src.Open(context.Background())
		if err == nil {
			rc.Close()
			t.Fatalf("expected error for 404 response, got nil")
		}
	})
}

// TestNewFetch_NilClient ensures a usable default client is constructed.
func TestNewFetch_NilClient(t *testing.T) {
	t.Parallel()

	src := NewFetch(nil, "http://example.com/export.csv.gz")
	if src.client == nil {
		t.Fatalf("NewFetch(nil, ...) left client nil")
	}
}
