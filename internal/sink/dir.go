package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Dir writes artifacts under a local directory, one subdirectory per
// bucket. Useful for dev runs and tests; metadata is not persisted.
type Dir struct {
	root string
}

// NewDir returns a Sink rooted at the given directory.
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

// Put implements Sink. The artifact lands at root/bucket/key with parent
// directories created as needed.
func (d *Dir) Put(ctx context.Context, a Artifact, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := filepath.Join(d.root, a.Bucket, filepath.FromSlash(a.Key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("sink: mkdir for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("sink: write %s: %w", path, err)
	}
	return nil
}
