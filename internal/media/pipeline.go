// Package media provides the decoding pipeline used to capture still frames
// from video files.
//
// A Pipeline is a blocking state-machine facade: every call issues one
// request to the underlying engine and waits for the completion signal it
// needs before returning. Callers drive it through
//
//	Null -> Paused (pre-roll) -> caps negotiated -> Paused (linked)
//
// and must force it back to Null on every exit path.
package media

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Static errors for pipeline operations.
var (
	// ErrPipelineBuild is returned when a pipeline stage cannot be created,
	// opened, or linked (missing binary, unreadable file, incompatible stream).
	ErrPipelineBuild = errors.New("pipeline build failed")
	// ErrNoVideoStream is returned when the source has no decodable video stream.
	ErrNoVideoStream = errors.New("no video stream found")
	// ErrDurationUnavailable is returned when the stream duration cannot be determined.
	ErrDurationUnavailable = errors.New("duration unavailable")
	// ErrSeek is returned when a seek fails or yields no frame.
	ErrSeek = errors.New("seek failed")
	// ErrInvalidDimensions is returned when a geometry value is not positive.
	ErrInvalidDimensions = errors.New("invalid dimensions: width and height must be positive")
	// ErrInvalidState is returned when an operation is issued in the wrong pipeline state.
	ErrInvalidState = errors.New("invalid pipeline state")
)

// State is the lifecycle state of a Pipeline.
type State int

const (
	// StateNull means no resources beyond the build-time handles are held.
	StateNull State = iota
	// StatePaused means the pipeline is prerolled and ready for random access.
	StatePaused
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateNull:
		return "NULL"
	case StatePaused:
		return "PAUSED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// FormatRGB is the only sink format: packed 8-bit RGB, three bytes per pixel.
const FormatRGB = "RGB"

// Caps is the capability constraint applied to the capture sink.
type Caps struct {
	Format string
	Width  int
	Height int
}

// FrameSize returns the number of bytes one frame with these caps occupies.
func (c Caps) FrameSize() int {
	return c.Width * c.Height * 3
}

// Frame is one captured raw frame.
type Frame struct {
	// Width and Height are the frame geometry in pixels.
	Width  int
	Height int
	// Data is row-major packed 8-bit RGB, len(Data) == Width*Height*3.
	Data []byte
	// Position is the seek position the frame was captured at.
	Position time.Duration
}

// Pipeline is a live decoding pipeline for one source file.
// Implementations are not safe for concurrent use; a pipeline is owned by
// exactly one worker.
type Pipeline interface {
	// SetState moves the pipeline to the requested state and blocks until
	// the transition completes. Setting StateNull releases every resource
	// and is safe to call more than once.
	SetState(ctx context.Context, state State) error

	// NativeSize returns the negotiated width and height of the first video
	// stream. Requires StatePaused.
	NativeSize() (width, height int, err error)

	// SetSinkCaps constrains the sink, forcing the scaler to produce exactly
	// this geometry and format.
	SetSinkCaps(caps Caps) error

	// Link completes the decoder to converter link and blocks until the whole
	// pipeline is paused.
	Link(ctx context.Context) error

	// Duration returns the stream duration. Requires a linked pipeline.
	Duration() (time.Duration, error)

	// Seek performs a flushing, frame-accurate seek and blocks until a frame
	// at pos is prerolled in the sink.
	Seek(ctx context.Context, pos time.Duration) error

	// PullPreroll returns and consumes the frame prerolled by the last Seek.
	PullPreroll(ctx context.Context) (*Frame, error)
}

// Builder creates pipelines for source files.
type Builder interface {
	// Build constructs a fully linked, not yet paused pipeline for source.
	// The returned pipeline is in StateNull and must be torn down by the caller.
	Build(ctx context.Context, source string) (Pipeline, error)
}

// DeriveWidth returns the output width that preserves the aspect ratio of
// origWidth x origHeight at targetHeight. Integer division rounds down.
func DeriveWidth(origWidth, origHeight, targetHeight int) (int, error) {
	if origWidth <= 0 || origHeight <= 0 || targetHeight <= 0 {
		return 0, fmt.Errorf("%w: source=%dx%d, target height=%d",
			ErrInvalidDimensions, origWidth, origHeight, targetHeight)
	}
	width := origWidth * targetHeight / origHeight
	if width <= 0 {
		return 0, fmt.Errorf("%w: derived width is zero for source=%dx%d, target height=%d",
			ErrInvalidDimensions, origWidth, origHeight, targetHeight)
	}
	return width, nil
}
