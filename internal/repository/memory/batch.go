package memory

import (
	"context"
	"sync"
	"time"

	"chainscope/internal/domain/option_chain"
	"chainscope/pkg/errors"
)

// BatchRepository implements option_chain.BatchRepository in process memory.
// When full, saving a new batch evicts the oldest one.
type BatchRepository struct {
	mu      sync.RWMutex
	max     int
	batches map[string]*option_chain.Batch
	order   []string // insertion order, oldest first
}

// NewBatchRepository creates a repository holding at most max batches (0 = unbounded)
func NewBatchRepository(max int) *BatchRepository {
	return &BatchRepository{
		max:     max,
		batches: make(map[string]*option_chain.Batch),
	}
}

// Save stores a batch, replacing any batch with the same ID
func (r *BatchRepository) Save(ctx context.Context, batch *option_chain.Batch) error {
	if batch == nil || batch.ID == "" {
		return errors.NewValidationError("batch", "id is required", nil)
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "save batch")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.batches[batch.ID]; ok {
		r.remove(batch.ID)
	}
	for r.max > 0 && len(r.order) >= r.max {
		r.remove(r.order[0])
	}

	r.batches[batch.ID] = batch
	r.order = append(r.order, batch.ID)
	return nil
}

// Get returns a batch by ID
func (r *BatchRepository) Get(ctx context.Context, id string) (*option_chain.Batch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	batch, ok := r.batches[id]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "batch %s", id)
	}
	return batch, nil
}

// Delete removes a batch
func (r *BatchRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.batches[id]; !ok {
		return errors.Wrapf(errors.ErrNotFound, "batch %s", id)
	}
	r.remove(id)
	return nil
}

// Count returns the number of batches held
func (r *BatchRepository) Count(ctx context.Context) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.batches)
}

// DeleteCreatedBefore drops every batch created before cutoff and returns their IDs
func (r *BatchRepository) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []string
	for _, id := range r.order {
		if r.batches[id].CreatedAt.Before(cutoff) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		r.remove(id)
	}
	return expired
}

// Stats reports batches and total rows held, for the working set collector
func (r *BatchRepository) Stats() (batches, rows int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, b := range r.batches {
		if b.Dataset != nil {
			rows += b.Dataset.Len()
		}
	}
	return len(r.batches), rows
}

// remove must be called with the write lock held
func (r *BatchRepository) remove(id string) {
	delete(r.batches, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}
