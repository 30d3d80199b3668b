// Package sampler turns one video file into a set of still-frame PNG samples.
//
// A Task is executed by an Executor: it builds a media pipeline, discovers
// geometry and duration, plans randomized sample positions, and for every
// position seeks, captures, and encodes one frame.
package sampler

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
)

// ErrInvalidTask is returned when a task is missing a required field.
var ErrInvalidTask = errors.New("invalid task")

// Task is one sampling job. It is immutable once enqueued and is consumed
// by exactly one worker.
type Task struct {
	// Prefix starts every output file name.
	Prefix string
	// Height is the output height in pixels; the width keeps the aspect ratio.
	Height int
	// Samples is the number of frames to extract.
	Samples int
	// Target is the existing directory the PNG files are written to.
	Target string
	// Index is the task's ordinal within its batch, used in file names.
	Index int
	// Source is the input video path.
	Source string
	// RefIdx routes progress events back to the producer's row.
	RefIdx int
}

// Validate reports whether the task can be executed.
func (t Task) Validate() error {
	switch {
	case t.Source == "":
		return fmt.Errorf("%w: source is required", ErrInvalidTask)
	case t.Target == "":
		return fmt.Errorf("%w: target is required", ErrInvalidTask)
	case strings.ContainsAny(t.Prefix, `/\`):
		return fmt.Errorf("%w: prefix %q must not contain path separators", ErrInvalidTask, t.Prefix)
	case t.Height <= 0:
		return fmt.Errorf("%w: height must be positive, got %d", ErrInvalidTask, t.Height)
	case t.Samples < 1:
		return fmt.Errorf("%w: samples must be at least 1, got %d", ErrInvalidTask, t.Samples)
	case t.Index < 0:
		return fmt.Errorf("%w: index must not be negative, got %d", ErrInvalidTask, t.Index)
	}
	return nil
}

// TaskContext is per-worker state reused across tasks.
type TaskContext struct {
	// Rand is the worker's random source for sample planning.
	Rand *rand.Rand
}

// NewTaskContext returns a context seeded with (seed, stream). A zero seed
// draws a nondeterministic seed.
func NewTaskContext(seed, stream uint64) *TaskContext {
	if seed == 0 {
		seed = rand.Uint64()
		stream = rand.Uint64()
	}
	return &TaskContext{Rand: rand.New(rand.NewPCG(seed, stream))}
}
