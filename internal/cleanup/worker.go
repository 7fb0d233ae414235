// Package cleanup enforces notification retention.
package cleanup

import (
	"context"
	"time"

	"github.com/DivyPatel-31/coastwatch/internal/obs"
	"github.com/DivyPatel-31/coastwatch/internal/store"
	"go.uber.org/zap"
)

// Worker periodically deletes read notifications older than Retention.
// Unread notifications are never removed.
type Worker struct {
	Store           store.Storage
	Retention       time.Duration
	Interval        time.Duration
	DeleteBatchSize int
	MaxBatches      int
	BatchSleep      time.Duration
	Stats           *obs.Stats
	Log             *zap.Logger
	Now             func() time.Time
}

func NewWorker(s store.Storage, retention time.Duration) *Worker {
	return &Worker{
		Store:           s,
		Retention:       retention,
		Interval:        10 * time.Minute,
		DeleteBatchSize: 5000,
		MaxBatches:      50,
		Log:             zap.NewNop(),
		Now:             time.Now,
	}
}

func (w *Worker) String() string { return "notification-cleanup" }

func (w *Worker) Serve(ctx context.Context) error {
	if w.Retention <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	_, _ = w.runOnce(ctx)

	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_, _ = w.runOnce(ctx)
		}
	}
}

// runOnce deletes in batches until a batch comes back short or MaxBatches is
// reached; the remainder waits for the next tick.
func (w *Worker) runOnce(ctx context.Context) (int64, error) {
	runCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	maxBatches := w.MaxBatches
	if maxBatches <= 0 {
		maxBatches = 1
	}
	batchSize := w.DeleteBatchSize
	if batchSize <= 0 {
		batchSize = 5000
	}
	before := w.Now().UTC().Add(-w.Retention)

	var total int64
	for i := 0; i < maxBatches; i++ {
		n, err := w.Store.DeleteReadNotificationsBefore(runCtx, before, batchSize)
		if err != nil {
			w.Log.Warn("cleanup: delete read notifications", zap.Time("before", before), zap.Error(err))
			return total, err
		}
		total += n
		w.Stats.ObserveCleanupDeleted(n)
		if n < int64(batchSize) {
			break
		}
		if runCtx.Err() != nil {
			return total, runCtx.Err()
		}
		if w.BatchSleep > 0 {
			time.Sleep(w.BatchSleep)
		}
	}
	if total > 0 {
		w.Log.Info("cleanup: deleted read notifications", zap.Int64("deleted", total), zap.Time("before", before))
	}
	return total, nil
}
