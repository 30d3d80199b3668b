package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"
)

// Compile-time checks.
var (
	_ Builder  = (*FFmpegBuilder)(nil)
	_ Pipeline = (*ffmpegPipeline)(nil)
)

const (
	// tailFrames is how many frame intervals the tail decode reaches back.
	tailFrames = 2
	// defaultFrameInterval stands in when the stream reports no frame rate.
	defaultFrameInterval = 100 * time.Millisecond
)

// FFmpegBuilder builds pipelines backed by the ffmpeg and ffprobe CLIs.
type FFmpegBuilder struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	// ffprobePath is the path to the ffprobe binary. Defaults to "ffprobe".
	ffprobePath string
	// waitTimeout bounds every blocking wait. Zero means unbounded.
	waitTimeout time.Duration
}

// BuilderOption configures an FFmpegBuilder.
type BuilderOption func(*FFmpegBuilder)

// WithFFprobePath sets the ffprobe binary path.
func WithFFprobePath(path string) BuilderOption {
	return func(b *FFmpegBuilder) {
		if path != "" {
			b.ffprobePath = path
		}
	}
}

// WithWaitTimeout bounds each blocking state or seek wait.
func WithWaitTimeout(d time.Duration) BuilderOption {
	return func(b *FFmpegBuilder) {
		if d > 0 {
			b.waitTimeout = d
		}
	}
}

// NewFFmpegBuilder creates a new FFmpegBuilder.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
func NewFFmpegBuilder(ffmpegPath string, opts ...BuilderOption) *FFmpegBuilder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	b := &FFmpegBuilder{
		ffmpegPath:  ffmpegPath,
		ffprobePath: "ffprobe",
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build resolves the engine binaries and opens the source file. The source
// handle stays open until the pipeline is set to StateNull.
func (b *FFmpegBuilder) Build(_ context.Context, source string) (Pipeline, error) {
	ffmpegPath, err := exec.LookPath(b.ffmpegPath)
	if err != nil {
		return nil, fmt.Errorf("%w: decoder %q: %w", ErrPipelineBuild, b.ffmpegPath, err)
	}
	ffprobePath, err := exec.LookPath(b.ffprobePath)
	if err != nil {
		return nil, fmt.Errorf("%w: demuxer %q: %w", ErrPipelineBuild, b.ffprobePath, err)
	}

	f, err := os.Open(source) // #nosec G304 - source is chosen by the task producer
	if err != nil {
		return nil, fmt.Errorf("%w: open source: %w", ErrPipelineBuild, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: stat source: %w", ErrPipelineBuild, err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("%w: source %s is a directory", ErrPipelineBuild, source)
	}

	return &ffmpegPipeline{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		waitTimeout: b.waitTimeout,
		source:      source,
		file:        f,
		state:       StateNull,
	}, nil
}

// ffmpegPipeline maps the pipeline stages onto ffmpeg invocations:
// the open file handle is the reader, ffprobe is the pre-roll demuxer,
// and each seek runs one ffmpeg decode/convert/scale pass whose single raw
// output frame fills the one-slot preroll buffer.
type ffmpegPipeline struct {
	ffmpegPath  string
	ffprobePath string
	waitTimeout time.Duration
	source      string

	file    *os.File
	state   State
	probe   *ProbeResult
	caps    *Caps
	linked  bool
	preroll *Frame
}

// SetState implements Pipeline.SetState.
func (p *ffmpegPipeline) SetState(ctx context.Context, state State) error {
	switch state {
	case StateNull:
		return p.teardown()
	case StatePaused:
		if p.state == StatePaused {
			return nil
		}
		if p.file == nil {
			return fmt.Errorf("%w: source already released", ErrInvalidState)
		}
		return p.pause(ctx)
	default:
		return fmt.Errorf("%w: unsupported target %s", ErrInvalidState, state)
	}
}

// pause inspects the container and negotiates stream formats.
func (p *ffmpegPipeline) pause(ctx context.Context) error {
	ctx, cancel := p.waitContext(ctx)
	defer cancel()

	args := []string{
		"-v", "error",
		"-print_format", "json",
		"-show_format", "-show_streams",
		p.source,
	}
	out, err := p.run(ctx, p.ffprobePath, args)
	if err != nil {
		return fmt.Errorf("%w: pause: %w", ErrPipelineBuild, err)
	}
	probe, err := ParseProbe(out)
	if err != nil {
		return fmt.Errorf("%w: pause: %w", ErrPipelineBuild, err)
	}

	p.probe = probe
	p.state = StatePaused
	return nil
}

// NativeSize implements Pipeline.NativeSize.
func (p *ffmpegPipeline) NativeSize() (int, int, error) {
	if p.state != StatePaused {
		return 0, 0, fmt.Errorf("%w: native size requires %s, pipeline is %s", ErrInvalidState, StatePaused, p.state)
	}
	v := p.probe.Video
	if v == nil || v.Width <= 0 || v.Height <= 0 {
		return 0, 0, fmt.Errorf("%w: %s", ErrNoVideoStream, p.source)
	}
	return v.Width, v.Height, nil
}

// SetSinkCaps implements Pipeline.SetSinkCaps.
func (p *ffmpegPipeline) SetSinkCaps(caps Caps) error {
	if caps.Format != FormatRGB {
		return fmt.Errorf("%w: unsupported sink format %q", ErrPipelineBuild, caps.Format)
	}
	if caps.Width <= 0 || caps.Height <= 0 {
		return fmt.Errorf("%w: width=%d, height=%d", ErrInvalidDimensions, caps.Width, caps.Height)
	}
	p.caps = &caps
	p.linked = false
	return nil
}

// Link implements Pipeline.Link.
func (p *ffmpegPipeline) Link(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: link: %w", ErrPipelineBuild, err)
	}
	if p.state != StatePaused {
		return fmt.Errorf("%w: link requires %s, pipeline is %s", ErrInvalidState, StatePaused, p.state)
	}
	if p.caps == nil {
		return fmt.Errorf("%w: sink caps not set", ErrPipelineBuild)
	}
	if p.probe.Video == nil {
		return fmt.Errorf("%w: %s", ErrNoVideoStream, p.source)
	}
	p.linked = true
	return nil
}

// Duration implements Pipeline.Duration. The video stream duration wins
// over the container duration, which may include a longer audio track.
func (p *ffmpegPipeline) Duration() (time.Duration, error) {
	if p.state != StatePaused || p.probe == nil {
		return 0, fmt.Errorf("%w: duration requires %s, pipeline is %s", ErrInvalidState, StatePaused, p.state)
	}
	if p.probe.Video != nil && p.probe.Video.Duration > 0 {
		return p.probe.Video.Duration, nil
	}
	if d := p.probe.Duration; d > 0 {
		return d, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrDurationUnavailable, p.source)
}

// Seek implements Pipeline.Seek. The previous preroll is flushed before the
// new frame is decoded.
//
// An accurate seek drops frames that start before pos, so a position inside
// the last frame's display interval decodes nothing. In that case the frame
// covering pos is taken from a short window ending at pos.
func (p *ffmpegPipeline) Seek(ctx context.Context, pos time.Duration) error {
	p.preroll = nil
	if !p.linked || p.state != StatePaused {
		return fmt.Errorf("%w: seek on unlinked pipeline", ErrInvalidState)
	}
	if pos < 0 {
		return fmt.Errorf("%w: negative position %s", ErrSeek, pos)
	}

	ctx, cancel := p.waitContext(ctx)
	defer cancel()

	caps := *p.caps
	args := p.decodeArgs(pos, "-frames:v", "1")
	out, err := p.run(ctx, p.ffmpegPath, args)
	if err != nil {
		return fmt.Errorf("%w: position %s: %w", ErrSeek, pos, err)
	}
	if len(out) == 0 {
		out, err = p.decodeTail(ctx, pos)
		if err != nil {
			return err
		}
	}
	if len(out) != caps.FrameSize() {
		return fmt.Errorf("%w: short frame at position %s: got %d bytes, want %d",
			ErrSeek, pos, len(out), caps.FrameSize())
	}

	p.preroll = &Frame{
		Width:    caps.Width,
		Height:   caps.Height,
		Data:     out,
		Position: pos,
	}
	return nil
}

// decodeTail decodes the frames starting from tailFrames intervals before pos
// and returns the last one, which is the frame still on screen at pos.
func (p *ffmpegPipeline) decodeTail(ctx context.Context, pos time.Duration) ([]byte, error) {
	interval := p.probe.Video.FrameInterval
	if interval <= 0 {
		interval = defaultFrameInterval
	}
	start := max(pos-tailFrames*interval, 0)

	args := p.decodeArgs(start, "-t", formatSeconds(pos-start+interval))
	out, err := p.run(ctx, p.ffmpegPath, args)
	if err != nil {
		return nil, fmt.Errorf("%w: position %s: %w", ErrSeek, pos, err)
	}
	size := p.caps.FrameSize()
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no frame at position %s", ErrSeek, pos)
	}
	if len(out)%size != 0 {
		return nil, fmt.Errorf("%w: short frame at position %s: got %d bytes, want a multiple of %d",
			ErrSeek, pos, len(out), size)
	}
	return bytes.Clone(out[len(out)-size:]), nil
}

// decodeArgs builds an accurate-seek decode of the video stream at from into
// packed RGB at the sink geometry. limit bounds the output.
func (p *ffmpegPipeline) decodeArgs(from time.Duration, limit ...string) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostdin",
		"-accurate_seek",
		"-ss", formatSeconds(from), // Input-side seek, decoded up to from
		"-i", p.source,
		"-map", fmt.Sprintf("0:%d", p.probe.Video.Index),
		"-an", "-sn", "-dn",
	}
	args = append(args, limit...)
	return append(args,
		"-vf", fmt.Sprintf("scale=%d:%d", p.caps.Width, p.caps.Height),
		"-pix_fmt", "rgb24",
		"-f", "rawvideo",
		"pipe:1",
	)
}

// PullPreroll implements Pipeline.PullPreroll.
func (p *ffmpegPipeline) PullPreroll(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: pull: %w", ErrSeek, err)
	}
	frame := p.preroll
	if frame == nil {
		return nil, fmt.Errorf("%w: no prerolled frame", ErrSeek)
	}
	p.preroll = nil
	return frame, nil
}

// teardown releases every resource. Safe to call more than once.
func (p *ffmpegPipeline) teardown() error {
	p.state = StateNull
	p.linked = false
	p.preroll = nil
	p.probe = nil
	if p.file == nil {
		return nil
	}
	err := p.file.Close()
	p.file = nil
	if err != nil {
		return fmt.Errorf("close source: %w", err)
	}
	return nil
}

// waitContext applies the configured wait bound to ctx.
func (p *ffmpegPipeline) waitContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.waitTimeout > 0 {
		return context.WithTimeout(ctx, p.waitTimeout)
	}
	return context.WithCancel(ctx)
}

// run executes an engine binary and returns its stdout. Failures carry the
// captured stderr.
func (p *ffmpegPipeline) run(ctx context.Context, bin string, args []string) ([]byte, error) {
	// #nosec G204 - binary paths are resolved at build time from configuration
	cmd := exec.CommandContext(ctx, bin, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return nil, fmt.Errorf("wait timed out after %s: %w", p.waitTimeout, ctxErr)
			}
			return nil, fmt.Errorf("cancelled: %w", ctxErr)
		}
		return nil, &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}
	return stdout.Bytes(), nil
}

// formatSeconds renders pos as ffmpeg seconds with microsecond precision.
func formatSeconds(pos time.Duration) string {
	return strconv.FormatFloat(pos.Seconds(), 'f', 6, 64)
}

// FFmpegError represents an error from running ffmpeg or ffprobe,
// including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}
