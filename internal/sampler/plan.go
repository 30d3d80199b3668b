package sampler

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"
)

// ErrInvalidPlan is returned when a plan cannot be generated.
var ErrInvalidPlan = errors.New("invalid sample plan")

// Plan is the ordered list of positions to capture, sorted ascending.
type Plan []time.Duration

// NewPlan draws samples uniformly random positions in [0, duration) and
// sorts them. Each position is a full 64-bit draw reduced modulo the
// duration in nanoseconds; the small modulo bias for durations that do not
// divide 2^64 is accepted. Coinciding draws are kept.
func NewPlan(rng *rand.Rand, duration time.Duration, samples int) (Plan, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive, got %s", ErrInvalidPlan, duration)
	}
	if samples < 1 {
		return nil, fmt.Errorf("%w: samples must be at least 1, got %d", ErrInvalidPlan, samples)
	}

	plan := make(Plan, samples)
	for i := range plan {
		plan[i] = time.Duration(rng.Uint64() % uint64(duration))
	}
	slices.Sort(plan)
	return plan, nil
}
