package batch

import (
	"context"
	"errors"
)

var (
	// ErrBatchNotFound is returned when a batch cannot be found by ID.
	ErrBatchNotFound = errors.New("batch not found")
	// ErrRowNotFound is returned when no row carries the given reference.
	ErrRowNotFound = errors.New("row not found")
)

// Repository defines the interface for batch persistence.
type Repository interface {
	// Save persists a batch, replacing any previous version.
	Save(ctx context.Context, b *Batch) error

	// FindByID retrieves a batch by its unique identifier.
	// Returns ErrBatchNotFound if the batch does not exist.
	FindByID(ctx context.Context, id string) (*Batch, error)

	// List returns all batches, oldest first.
	List(ctx context.Context) ([]*Batch, error)
}
