package sampler

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/maauso/video-sampler/internal/media"
	"github.com/maauso/video-sampler/internal/storage"
)

// ProgressFunc receives the completed fraction of a task's samples.
type ProgressFunc func(fraction float64)

// Executor runs sampling tasks to completion.
type Executor struct {
	builder   media.Builder
	publisher storage.Publisher
	logger    *slog.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithPublisher publishes every written sample. Without a publisher the
// samples only live in the task's target directory.
func WithPublisher(p storage.Publisher) ExecutorOption {
	return func(e *Executor) {
		e.publisher = p
	}
}

// NewExecutor creates a new Executor that builds pipelines with builder.
func NewExecutor(builder media.Builder, logger *slog.Logger, opts ...ExecutorOption) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Executor{
		builder: builder,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes task: build, pause, negotiate geometry, query duration,
// plan, then seek, capture, encode, and publish each sample in order,
// reporting (i+1)/samples after each one.
//
// The pipeline is returned to StateNull on every exit path. Any failure
// aborts the remaining samples; files already written are left in place.
func (e *Executor) Run(ctx context.Context, tc *TaskContext, task Task, report ProgressFunc) error {
	if err := task.Validate(); err != nil {
		return err
	}

	pipeline, err := e.builder.Build(ctx, task.Source)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	defer e.release(ctx, task, pipeline)

	if err := pipeline.SetState(ctx, media.StatePaused); err != nil {
		return fmt.Errorf("set pipeline state to paused: %w", err)
	}

	origWidth, origHeight, err := pipeline.NativeSize()
	if err != nil {
		return fmt.Errorf("find video dimensions: %w", err)
	}
	width, err := media.DeriveWidth(origWidth, origHeight, task.Height)
	if err != nil {
		return fmt.Errorf("derive output width: %w", err)
	}
	caps := media.Caps{Format: media.FormatRGB, Width: width, Height: task.Height}
	if err := pipeline.SetSinkCaps(caps); err != nil {
		return fmt.Errorf("set sink caps: %w", err)
	}
	if err := pipeline.Link(ctx); err != nil {
		return fmt.Errorf("link decoder to converter: %w", err)
	}

	duration, err := pipeline.Duration()
	if err != nil {
		return fmt.Errorf("query duration: %w", err)
	}
	plan, err := NewPlan(tc.Rand, duration, task.Samples)
	if err != nil {
		return fmt.Errorf("plan samples: %w", err)
	}

	e.logger.Debug("sampling task",
		slog.Int("ref_idx", task.RefIdx),
		slog.String("source", task.Source),
		slog.Int("native_width", origWidth),
		slog.Int("native_height", origHeight),
		slog.Int("width", width),
		slog.Int("height", task.Height),
		slog.Duration("duration", duration),
		slog.Int("samples", task.Samples),
	)

	for i, pos := range plan {
		if err := pipeline.Seek(ctx, pos); err != nil {
			return fmt.Errorf("sample %d: %w", i, err)
		}
		frame, err := pipeline.PullPreroll(ctx)
		if err != nil {
			return fmt.Errorf("sample %d: %w", i, err)
		}

		out := filepath.Join(task.Target, FileName(task.Prefix, task.Index, pos))
		if err := WriteFrame(out, frame); err != nil {
			return fmt.Errorf("sample %d: %w", i, err)
		}
		if e.publisher != nil {
			location, err := e.publisher.Publish(ctx, out)
			if err != nil {
				return fmt.Errorf("sample %d: %w", i, err)
			}
			e.logger.Debug("sample published",
				slog.Int("ref_idx", task.RefIdx),
				slog.String("location", location),
			)
		}

		if report != nil {
			report(float64(i+1) / float64(task.Samples))
		}
	}

	return nil
}

// release forces the pipeline back to StateNull. It runs even when ctx is
// already done.
func (e *Executor) release(ctx context.Context, task Task, pipeline media.Pipeline) {
	if err := pipeline.SetState(context.WithoutCancel(ctx), media.StateNull); err != nil {
		e.logger.Warn("failed to reset pipeline",
			slog.Int("ref_idx", task.RefIdx),
			slog.String("source", task.Source),
			slog.String("error", err.Error()),
		)
	}
}
