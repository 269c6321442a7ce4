// Package reconcile removes stale rows after a sync run: anything persisted
// for the source that this run did not successfully produce gets deleted, in
// bounded batches with a per-id fallback.
package reconcile

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wardrobe-ai/catalog-sync/internal/catalog"
	"github.com/wardrobe-ai/catalog-sync/internal/metrics"
)

// DefaultBatchSize bounds one delete call.
const DefaultBatchSize = 100

// Report summarizes one reconciliation pass.
type Report struct {
	Persisted int
	Stale     int
	Deleted   int
	Failed    int
}

// Reconciler diffs persisted ids against a run's successful set.
type Reconciler struct {
	store     catalog.Store
	source    string
	batchSize int
	logger    *zap.Logger
}

// New builds a Reconciler for one source partition.
func New(store catalog.Store, source string, batchSize int, logger *zap.Logger) *Reconciler {
	metrics.Init()
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Reconciler{
		store:     store,
		source:    source,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Reconcile deletes every persisted id that is not in successfulIDs. Ids in
// successfulIDs are never deleted regardless of what the store reports. A
// failed batch falls back to per-id deletes so one poisoned id cannot block
// the rest of its batch. A canceled context aborts before anything is listed
// or deleted.
func (r *Reconciler) Reconcile(ctx context.Context, successfulIDs []string) (Report, error) {
	// Never delete on behalf of an interrupted run, even against stores
	// that do not check the context themselves.
	if err := ctx.Err(); err != nil {
		return Report{}, fmt.Errorf("reconcile aborted: %w", err)
	}
	persisted, err := r.store.ListIDs(ctx, r.source)
	if err != nil {
		return Report{}, fmt.Errorf("list persisted ids: %w", err)
	}

	keep := make(map[string]struct{}, len(successfulIDs))
	for _, id := range successfulIDs {
		keep[id] = struct{}{}
	}
	var stale []string
	for _, id := range persisted {
		if _, ok := keep[id]; !ok {
			stale = append(stale, id)
		}
	}

	report := Report{Persisted: len(persisted), Stale: len(stale)}
	if len(stale) == 0 {
		r.logger.Info("no stale products",
			zap.String("source", r.source),
			zap.Int("persisted", len(persisted)),
		)
		return report, nil
	}

	r.logger.Info("deleting stale products",
		zap.String("source", r.source),
		zap.Int("persisted", len(persisted)),
		zap.Int("stale", len(stale)),
	)

	for start := 0; start < len(stale); start += r.batchSize {
		end := min(start+r.batchSize, len(stale))
		batch := stale[start:end]

		err := r.store.DeleteBatch(ctx, r.source, batch)
		if err == nil {
			report.Deleted += len(batch)
			continue
		}
		r.logger.Warn("batch delete failed, falling back to per-id deletes",
			zap.Int("batch_size", len(batch)),
			zap.Error(err),
		)

		for _, id := range batch {
			if err := r.store.Delete(ctx, r.source, id); err != nil {
				r.logger.Warn("delete failed",
					zap.String("id", id),
					zap.Error(err),
				)
				report.Failed++
				continue
			}
			report.Deleted++
		}
	}

	metrics.ObserveStaleDeleted(report.Deleted)
	return report, nil
}
