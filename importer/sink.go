package importer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// StagingSink opens durable append-only destinations for import runs. One run
// writes exactly one object; the returned writer must be closed on every exit
// path.
type StagingSink interface {
	Create(ctx context.Context, key string) (io.WriteCloser, error)
}

// FileSink stages imports on the local filesystem under a root directory.
// Used for development and tests; production deployments stage to object
// storage.
type FileSink struct {
	root string
}

func NewFileSink(root string) *FileSink {
	return &FileSink{root: root}
}

func (s *FileSink) Create(_ context.Context, key string) (io.WriteCloser, error) {
	path := filepath.Join(s.root, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create staging file: %w", err)
	}

	return f, nil
}
