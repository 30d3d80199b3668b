package sampler

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/video-sampler/internal/media"
)

func TestFileName(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		index  int
		pos    time.Duration
		want   string
	}{
		{"zero", "clip", 0, 0, "clip-0-00-00-000.png"},
		{"seconds and millis", "clip", 2, 7*time.Second + 45*time.Millisecond, "clip-2-00-07-045.png"},
		{"minutes", "trip", 11, 3*time.Minute + 59*time.Second + 999*time.Millisecond, "trip-11-03-59-999.png"},
		{"over an hour keeps total minutes", "movie", 1, 2*time.Hour + 5*time.Minute + 6*time.Second, "movie-1-125-06-000.png"},
		{"sub-millisecond truncates", "a", 0, 1500 * time.Microsecond, "a-0-00-00-001.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FileName(tt.prefix, tt.index, tt.pos))
		})
	}
}

func TestWriteFrame(t *testing.T) {
	frame := &media.Frame{
		Width:  2,
		Height: 2,
		Data: []byte{
			255, 0, 0, 0, 255, 0,
			0, 0, 255, 10, 20, 30,
		},
	}
	path := filepath.Join(t.TempDir(), "out.png")

	require.NoError(t, WriteFrame(path, frame))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Width)
	assert.Equal(t, 2, cfg.Height)

	_, err = f.Seek(0, 0)
	require.NoError(t, err)
	img, err := png.Decode(f)
	require.NoError(t, err)

	// Opaque RGB is stored as 8-bit truecolor without alpha.
	rgb, ok := img.(*image.RGBA)
	require.True(t, ok, "expected truecolor image, got %T", img)
	assert.Equal(t, []uint8{255, 0, 0, 255}, rgb.Pix[0:4])
	assert.Equal(t, []uint8{0, 255, 0, 255}, rgb.Pix[4:8])
	assert.Equal(t, []uint8{0, 0, 255, 255}, rgb.Pix[8:12])
	assert.Equal(t, []uint8{10, 20, 30, 255}, rgb.Pix[12:16])

	// Color type 2 (truecolor) with bit depth 8 in the IHDR chunk.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(raw), 26)
	assert.Equal(t, byte(8), raw[24], "bit depth")
	assert.Equal(t, byte(2), raw[25], "color type")
}

func TestWriteFrame_BufferMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.png")

	err := WriteFrame(path, &media.Frame{Width: 4, Height: 4, Data: make([]byte, 10)})
	assert.ErrorIs(t, err, ErrEncode)

	err = WriteFrame(path, &media.Frame{})
	assert.ErrorIs(t, err, ErrEncode)

	err = WriteFrame(path, nil)
	assert.ErrorIs(t, err, ErrEncode)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "no file may be created for an invalid buffer")
}

func TestWriteFrame_MissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "out.png")

	err := WriteFrame(path, &media.Frame{Width: 1, Height: 1, Data: []byte{1, 2, 3}})
	assert.ErrorIs(t, err, ErrEncode)
}

func TestFileName_SameMillisecondCollides(t *testing.T) {
	a := FileName("clip", 2, 61*time.Second+5*time.Millisecond+100*time.Microsecond)
	b := FileName("clip", 2, 61*time.Second+5*time.Millisecond+900*time.Microsecond)
	assert.Equal(t, "clip-2-01-01-005.png", a)
	assert.Equal(t, a, b, "positions within one millisecond share a file")
}
