package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalPublisher_Publish(t *testing.T) {
	p := NewLocalPublisher()
	dir := t.TempDir()

	t.Run("returns absolute path of existing file", func(t *testing.T) {
		path := filepath.Join(dir, "clip-0-00-01-250.png")
		require.NoError(t, os.WriteFile(path, []byte("png"), 0o600))

		location, err := p.Publish(context.Background(), path)
		require.NoError(t, err)
		assert.True(t, filepath.IsAbs(location))
		assert.Equal(t, "clip-0-00-01-250.png", filepath.Base(location))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := p.Publish(context.Background(), filepath.Join(dir, "missing.png"))
		assert.ErrorIs(t, err, ErrPublish)
	})

	t.Run("directory", func(t *testing.T) {
		_, err := p.Publish(context.Background(), dir)
		assert.ErrorIs(t, err, ErrPublish)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := p.Publish(ctx, filepath.Join(dir, "clip-0-00-01-250.png"))
		assert.ErrorIs(t, err, ErrPublish)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
