// Package sink abstracts where rendered artifacts land, so the pipeline can
// write to the object store in production and to a local directory in tests
// and dev runs.
package sink

import "context"

// Artifact names one output object and its upload attributes.
type Artifact struct {
	Bucket      string
	Key         string
	ContentType string

	// Metadata travels with the object (digest, run vars, row counts).
	Metadata map[string]string
}

// Sink writes one artifact. Implementations must be safe for concurrent
// Put calls with distinct artifacts.
type Sink interface {
	Put(ctx context.Context, a Artifact, data []byte) error
}
