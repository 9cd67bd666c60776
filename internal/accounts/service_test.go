package accounts

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mutdb/internal/model"
	"mutdb/pkg/config"
	"mutdb/pkg/dberrors"
	"mutdb/pkg/store"
)

func openService(t *testing.T, dir string) *Service {
	t.Helper()

	cfg := config.DefaultStore(dir)
	cfg.Compression = "gzip"

	svc, err := Open(cfg, store.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	return svc
}

func TestService_Flow(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	svc := openService(t, dir)

	require.NoError(t, svc.Upsert(ctx,
		model.Account{ID: "a", Amount: 10, Currency: "USD"},
		model.Account{ID: "b", Amount: 20, Currency: "EUR"},
	))
	require.NoError(t, svc.Upsert(ctx, model.Account{ID: "a", Amount: 15, Currency: "USD"}))
	require.NoError(t, svc.Delete(ctx, "b"))

	got, err := svc.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(15), got.Amount)

	_, err = svc.Get(ctx, "b")
	assert.ErrorIs(t, err, dberrors.ErrNotFound)

	rows, err := svc.Scan(ctx, model.Filter{})
	require.NoError(t, err)
	assert.Equal(t, []model.Account{{ID: "a", Amount: 15, Currency: "USD"}}, rows)

	require.NoError(t, svc.Flush(ctx))
	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Rows)
	assert.Equal(t, 1, stats.LiveIDs)
	assert.Zero(t, stats.CommitLogBytes)
	require.NoError(t, svc.Close())

	reopened := openService(t, dir)
	rows, err = reopened.Scan(ctx, model.Filter{Currency: "USD"})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestService_ScanEmpty(t *testing.T) {
	svc := openService(t, t.TempDir())

	rows, err := svc.Scan(context.Background(), model.Filter{Currency: "JPY"})
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}
