package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wardrobe-ai/catalog-sync/internal/catalog"
	"github.com/wardrobe-ai/catalog-sync/internal/store/memory"
)

func seed(t *testing.T, s catalog.Store, source string, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, s.Upsert(context.Background(), catalog.Product{
			ID: id, Source: source, Title: "seeded", ProductURL: "https://shop.example/p/" + id,
		}))
	}
}

func TestReconcileDeletesExactlyTheStaleSet(t *testing.T) {
	s := memory.New()
	seed(t, s, "brand", "A", "B", "C")
	r := New(s, "brand", 0, zap.NewNop())

	report, err := r.Reconcile(context.Background(), []string{"B", "C", "D"})
	require.NoError(t, err)
	require.Equal(t, 3, report.Persisted)
	require.Equal(t, 1, report.Stale)
	require.Equal(t, 1, report.Deleted)
	require.Zero(t, report.Failed)

	remaining, err := s.ListIDs(context.Background(), "brand")
	require.NoError(t, err)
	require.Equal(t, []string{"B", "C"}, remaining, "only A is deleted; D was never persisted")
}

func TestReconcileNothingStale(t *testing.T) {
	s := memory.New()
	seed(t, s, "brand", "A", "B")
	r := New(s, "brand", 0, zap.NewNop())

	report, err := r.Reconcile(context.Background(), []string{"A", "B"})
	require.NoError(t, err)
	require.Zero(t, report.Stale)
	require.Zero(t, report.Deleted)
}

func TestReconcileBatches(t *testing.T) {
	s := memory.New()
	var all []string
	for i := 0; i < 250; i++ {
		all = append(all, "brand_"+string(rune('a'+i%26))+string(rune('0'+i/26)))
	}
	seed(t, s, "brand", all...)
	r := New(s, "brand", 100, zap.NewNop())

	report, err := r.Reconcile(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, len(all), report.Deleted)

	remaining, err := s.ListIDs(context.Background(), "brand")
	require.NoError(t, err)
	require.Empty(t, remaining)
}

// failingBatchStore wraps the memory store, failing every batch delete and
// one specific per-id delete.
type failingBatchStore struct {
	*memory.Store
	poisonID string
}

func (f *failingBatchStore) DeleteBatch(context.Context, string, []string) error {
	return errors.New("batch rejected")
}

func (f *failingBatchStore) Delete(ctx context.Context, source, id string) error {
	if id == f.poisonID {
		return errors.New("row locked")
	}
	return f.Store.Delete(ctx, source, id)
}

func TestReconcileFallsBackToPerIDDeletes(t *testing.T) {
	inner := memory.New()
	s := &failingBatchStore{Store: inner, poisonID: "B"}
	seed(t, s, "brand", "A", "B", "C")
	r := New(s, "brand", 0, zap.NewNop())

	report, err := r.Reconcile(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 2, report.Deleted)
	require.Equal(t, 1, report.Failed, "the poisoned id fails without blocking the others")

	remaining, err := inner.ListIDs(context.Background(), "brand")
	require.NoError(t, err)
	require.Equal(t, []string{"B"}, remaining)
}

func TestReconcileAbortsOnCanceledContext(t *testing.T) {
	s := memory.New()
	seed(t, s, "brand", "A", "B")
	r := New(s, "brand", 0, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Reconcile(ctx, []string{"A"})
	require.Error(t, err)

	remaining, listErr := s.ListIDs(context.Background(), "brand")
	require.NoError(t, listErr)
	require.Equal(t, []string{"A", "B"}, remaining, "nothing is deleted for a canceled run")
}

func TestReconcileListFailure(t *testing.T) {
	s := &failingListStore{}
	r := New(s, "brand", 0, zap.NewNop())

	_, err := r.Reconcile(context.Background(), nil)
	require.Error(t, err)
}

type failingListStore struct {
	catalog.Store
}

func (f *failingListStore) ListIDs(context.Context, string) ([]string, error) {
	return nil, errors.New("store offline")
}
