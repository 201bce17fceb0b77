package option_chain

import "context"

// BatchRepository keeps the working set of uploaded batches.
// Implementations must hand out datasets that are never mutated afterwards.
type BatchRepository interface {
	Save(ctx context.Context, batch *Batch) error
	Get(ctx context.Context, id string) (*Batch, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) int
}
