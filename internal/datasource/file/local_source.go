// Package file reads the search export from the local filesystem. Dev
// runs and fixtures use a downloaded sample, so the same pipeline that
// streams from the object store can open a file instead.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Local is a datasource.Source bound to one export file path.
type Local struct{ path string }

// NewLocal returns a source for the export at path. Rendering of {name}
// tokens in the path happens before construction; Local never sees a
// template.
func NewLocal(path string) *Local { return &Local{path: path} }

// Open opens the export for reading. A canceled context short-circuits
// before the filesystem is touched. Open errors keep their os sentinel,
// so callers can errors.Is against os.ErrNotExist when a day's export
// has not landed yet.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open export %s: %w", l.path, err)
	}
	return f, nil
}
