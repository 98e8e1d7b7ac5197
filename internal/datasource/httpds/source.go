package httpds

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Fetch adapts a Client to the datasource.Source interface, streaming the
// body of a single URL. Retries and backoff are handled by the underlying
// Client; Fetch adds the final status check.
type Fetch struct {
	client *Client
	url    string
}

// NewFetch returns a source that reads the given URL using c. When c is nil
// a client with default settings is used.
func NewFetch(c *Client, url string) *Fetch {
	if c == nil {
		c = NewClient(Config{})
	}
	return &Fetch{client: c, url: url}
}

// Open issues a GET for the configured URL and returns the response body.
// Any status other than 200 OK is an error; the body is closed in that case.
func (f *Fetch) Open(ctx context.Context) (io.ReadCloser, error) {
	resp, err := f.client.Get(ctx, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", f.url, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: unexpected status %d", f.url, resp.StatusCode)
	}
	return resp.Body, nil
}
