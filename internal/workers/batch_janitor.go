package workers

import (
	"context"
	"time"

	"chainscope/internal/metrics"
)

// BatchExpirer is the part of the batch store the janitor needs
type BatchExpirer interface {
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) []string
}

// BatchJanitor drops uploaded batches older than a TTL from the working set
type BatchJanitor struct {
	*BaseWorker
	store BatchExpirer
	ttl   time.Duration
	now   func() time.Time
}

// NewBatchJanitor creates the janitor. It is disabled when ttl or the base interval is not positive.
func NewBatchJanitor(store BatchExpirer, ttl time.Duration, base *BaseWorker) *BatchJanitor {
	if ttl <= 0 {
		base.enabled = false
	}
	return &BatchJanitor{
		BaseWorker: base,
		store:      store,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Run expires batches once
func (j *BatchJanitor) Run(ctx context.Context) error {
	expired := j.store.DeleteCreatedBefore(ctx, j.now().Add(-j.ttl))
	if len(expired) > 0 {
		metrics.RecordBatchesExpired(len(expired))
		j.Log().Infow("Expired batches", "count", len(expired), "batch_ids", expired, "ttl", j.ttl)
	}
	return nil
}
