package batch

import (
	"cmp"
	"context"
	"slices"
	"sync"
)

// Compile-time check that MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository is an in-memory implementation of Repository.
// Batches are stored and returned as clones.
type MemoryRepository struct {
	mu      sync.RWMutex
	batches map[string]*Batch
}

// NewMemoryRepository creates a new in-memory batch repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		batches: make(map[string]*Batch),
	}
}

// Save persists a clone of b.
func (r *MemoryRepository) Save(_ context.Context, b *Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches[b.ID] = b.Clone()
	return nil
}

// FindByID retrieves a clone of the batch with the given ID.
func (r *MemoryRepository) FindByID(_ context.Context, id string) (*Batch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.batches[id]
	if !ok {
		return nil, ErrBatchNotFound
	}
	return b.Clone(), nil
}

// List returns clones of all batches ordered by creation time.
func (r *MemoryRepository) List(_ context.Context) ([]*Batch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Batch, 0, len(r.batches))
	for _, b := range r.batches {
		result = append(result, b.Clone())
	}
	slices.SortFunc(result, func(a, b *Batch) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return result, nil
}
