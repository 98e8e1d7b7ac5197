package sink

import (
	"context"
	"fmt"

	"searchetl/internal/objstore"
)

// Store writes artifacts to the object store.
type Store struct {
	c *objstore.Client

	// ensure creates destination buckets on first use.
	ensure bool
}

// NewStore returns a Sink backed by the given store client. When ensure is
// true, Put creates the destination bucket if it does not exist.
func NewStore(c *objstore.Client, ensure bool) *Store {
	return &Store{c: c, ensure: ensure}
}

// Put implements Sink.
func (s *Store) Put(ctx context.Context, a Artifact, data []byte) error {
	if s.ensure {
		if err := s.c.EnsureBucket(ctx, a.Bucket); err != nil {
			return err
		}
	}
	if err := s.c.Put(ctx, a.Bucket, a.Key, data, a.ContentType, a.Metadata); err != nil {
		return fmt.Errorf("sink: %w", err)
	}
	return nil
}
