package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nota/internal/core"
)

func newTestRepository(t *testing.T) (*SQLiteRepository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db", "nota.db")
	repo, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo, path
}

func TestSQLiteRepository_EmptyOnFirstOpen(t *testing.T) {
	repo, _ := newTestRepository(t)

	records, err := repo.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSQLiteRepository_RoundTripKeepsIDsAndOrder(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)
	want := sampleRecords()

	require.NoError(t, repo.SaveAll(ctx, want))

	got, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ID, got[i].ID)
		assert.True(t, want[i].Date.Equal(got[i].Date))
		assert.Equal(t, want[i].Item, got[i].Item)
		assert.Equal(t, want[i].Total, got[i].Total)
	}
}

func TestSQLiteRepository_SaveAllReplaces(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)
	records := sampleRecords()

	require.NoError(t, repo.SaveAll(ctx, records))
	require.NoError(t, repo.SaveAll(ctx, records[1:2]))

	got, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, records[1].ID, got[0].ID)
}

func TestSQLiteRepository_ReopenPersists(t *testing.T) {
	ctx := context.Background()
	repo, path := newTestRepository(t)
	records := sampleRecords()
	require.NoError(t, repo.SaveAll(ctx, records))
	require.NoError(t, repo.Close())

	reopened, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, got, len(records))
}

func TestSQLiteRepository_BadDateIsMalformed(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepository(t)

	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO notes (id, position, date, item, quantity, unit_price, total) VALUES ('x', 0, 'kemarin', '', 1, 1000, 1000)`)
	require.NoError(t, err)

	_, err = repo.LoadAll(ctx)
	require.ErrorIs(t, err, core.ErrMalformedStore)
}
