// Package batch tracks groups of sampling tasks submitted together and the
// per-file rows their progress events update.
package batch

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/maauso/video-sampler/internal/batch/id"
)

// Status is the state of one row.
type Status string

const (
	// StatusQueued indicates the task is waiting for a worker.
	StatusQueued Status = "QUEUED"
	// StatusRunning indicates at least one sample has been written.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates every sample was written.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the task aborted.
	StatusFailed Status = "FAILED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusQueued:    {StatusRunning, StatusFailed},
	StatusRunning:   {StatusRunning, StatusCompleted, StatusFailed},
	StatusCompleted: {},
	StatusFailed:    {},
}

func canTransition(from, to Status) bool {
	return slices.Contains(validTransitions[from], to)
}

// Row is the progress record of one source file.
type Row struct {
	// RefIdx is the task reference progress events carry.
	RefIdx int
	// Index is the task's ordinal within the batch.
	Index int
	// Name is the source base name.
	Name string
	// Source is the input path.
	Source string
	// Progress is the completed fraction of samples, in [0, 1].
	Progress float64
	// Status is the row state.
	Status Status
	// Error is set when the task failed.
	Error string
	// StartedAt is when the first sample was written.
	StartedAt time.Time
	// CompletedAt is when the row reached a terminal state.
	CompletedAt time.Time
}

// IsTerminal returns true if the row will receive no further updates.
func (r Row) IsTerminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}

// Batch is a set of tasks sharing prefix, geometry, sample count and target.
type Batch struct {
	mu sync.RWMutex

	// ID is the unique identifier for this batch.
	ID string
	// Prefix starts every output file name.
	Prefix string
	// Height is the output height in pixels.
	Height int
	// Samples is the number of frames per source.
	Samples int
	// Target is the output directory.
	Target string
	// Rows holds one row per source, ordered by Index.
	Rows []Row
	// CreatedAt is when the batch was submitted.
	CreatedAt time.Time
	// UpdatedAt is when any row last changed.
	UpdatedAt time.Time
}

// New creates a batch with a generated ID and no rows.
func New(prefix string, height, samples int, target string) *Batch {
	return NewWithID(id.Generate(), prefix, height, samples, target)
}

// NewWithID creates a batch with the specified ID.
func NewWithID(batchID, prefix string, height, samples int, target string) *Batch {
	now := time.Now()
	return &Batch{
		ID:        batchID,
		Prefix:    prefix,
		Height:    height,
		Samples:   samples,
		Target:    target,
		Rows:      make([]Row, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddRow appends a queued row.
func (b *Batch) AddRow(refIdx, index int, name, source string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Rows = append(b.Rows, Row{
		RefIdx: refIdx,
		Index:  index,
		Name:   name,
		Source: source,
		Status: StatusQueued,
	})
	b.UpdatedAt = time.Now()
}

// Advance records progress for the row with refIdx. The first update moves
// the row to RUNNING and a fraction of 1 completes it.
func (b *Batch) Advance(refIdx int, progress float64) (Row, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	row, err := b.row(refIdx)
	if err != nil {
		return Row{}, err
	}
	if !canTransition(row.Status, StatusRunning) {
		return *row, ErrInvalidTransition
	}

	now := time.Now()
	if row.Status == StatusQueued {
		row.StartedAt = now
	}
	row.Status = StatusRunning
	row.Progress = min(max(progress, 0), 1)
	if progress >= 1 {
		row.Status = StatusCompleted
		row.CompletedAt = now
	}
	b.UpdatedAt = now
	return *row, nil
}

// Fail moves the row with refIdx to FAILED.
func (b *Batch) Fail(refIdx int, errMsg string) (Row, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	row, err := b.row(refIdx)
	if err != nil {
		return Row{}, err
	}
	if !canTransition(row.Status, StatusFailed) {
		return *row, ErrInvalidTransition
	}

	now := time.Now()
	row.Status = StatusFailed
	row.Error = errMsg
	row.CompletedAt = now
	b.UpdatedAt = now
	return *row, nil
}

// row returns the row for refIdx. Callers hold mu.
func (b *Batch) row(refIdx int) (*Row, error) {
	for i := range b.Rows {
		if b.Rows[i].RefIdx == refIdx {
			return &b.Rows[i], nil
		}
	}
	return nil, ErrRowNotFound
}

// Counts returns the number of rows per status.
func (b *Batch) Counts() map[Status]int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	counts := make(map[Status]int, len(validTransitions))
	for _, r := range b.Rows {
		counts[r.Status]++
	}
	return counts
}

// IsDone returns true if every row is terminal.
func (b *Batch) IsDone() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, r := range b.Rows {
		if !r.IsTerminal() {
			return false
		}
	}
	return true
}

// Clone creates a deep copy of the batch for safe reads.
func (b *Batch) Clone() *Batch {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return &Batch{
		ID:        b.ID,
		Prefix:    b.Prefix,
		Height:    b.Height,
		Samples:   b.Samples,
		Target:    b.Target,
		Rows:      slices.Clone(b.Rows),
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}
