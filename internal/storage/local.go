package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Compile-time check that LocalPublisher implements Publisher.
var _ Publisher = (*LocalPublisher)(nil)

// LocalPublisher leaves samples where the encoder wrote them.
type LocalPublisher struct{}

// NewLocalPublisher creates a new LocalPublisher.
func NewLocalPublisher() *LocalPublisher {
	return &LocalPublisher{}
}

// Publish confirms the file exists and returns its absolute path.
func (p *LocalPublisher) Publish(ctx context.Context, path string) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%w: context cancelled: %w", ErrPublish, ctx.Err())
	default:
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: resolve %s: %w", ErrPublish, path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: stat %s: %w", ErrPublish, abs, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrPublish, abs)
	}
	return abs, nil
}
