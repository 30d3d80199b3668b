package sampler

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"time"

	"github.com/maauso/video-sampler/internal/media"
)

// ErrEncode is returned when a frame cannot be written as a PNG file.
var ErrEncode = errors.New("encode failed")

// FileName returns "{prefix}-{index}-{MM}-{SS}-{mmm}.png" for a frame
// captured at pos. MM counts total minutes and may exceed two digits.
// Positions within the same millisecond map to the same name.
func FileName(prefix string, index int, pos time.Duration) string {
	minutes := int64(pos / time.Minute)
	seconds := int64(pos/time.Second) % 60
	millis := int64(pos/time.Millisecond) % 1000
	return fmt.Sprintf("%s-%d-%02d-%02d-%03d.png", prefix, index, minutes, seconds, millis)
}

// WriteFrame encodes frame as an 8-bit truecolor PNG at path. The file is
// created or truncated; its directory must exist.
func WriteFrame(path string, frame *media.Frame) (err error) {
	img, err := rgbImage(frame)
	if err != nil {
		return err
	}

	f, err := os.Create(path) // #nosec G304 - path is built from the task target
	if err != nil {
		return fmt.Errorf("%w: create output file: %w", ErrEncode, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("%w: close output file: %w", ErrEncode, closeErr)
		}
	}()

	w := bufio.NewWriter(f)
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("%w: write image data: %w", ErrEncode, err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("%w: flush output file: %w", ErrEncode, err)
	}
	return nil
}

// rgbImage expands packed RGB into an opaque RGBA image. The PNG encoder
// writes opaque RGBA images as 8-bit RGB without an alpha channel.
func rgbImage(frame *media.Frame) (*image.RGBA, error) {
	if frame == nil || frame.Width <= 0 || frame.Height <= 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrEncode)
	}
	if want := frame.Width * frame.Height * 3; len(frame.Data) != want {
		return nil, fmt.Errorf("%w: buffer holds %d bytes, want %d for %dx%d RGB",
			ErrEncode, len(frame.Data), want, frame.Width, frame.Height)
	}

	img := image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height))
	src, dst := frame.Data, img.Pix
	for i, j := 0, 0; i < len(src); i, j = i+3, j+4 {
		dst[j] = src[i]
		dst[j+1] = src[i+1]
		dst[j+2] = src[i+2]
		dst[j+3] = 0xff
	}
	return img, nil
}
