package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0x0BSoD/animeTimes/internal/ledger"
)

func newSQLiteStorage(t *testing.T) *LedgerStorage {
	t.Helper()

	db, err := Open(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewLedgerStorage(db)
}

func TestLedgerStorage_EmptyDatabaseLoadsEmptyLedger(t *testing.T) {
	s := newSQLiteStorage(t)

	l, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, l.Len())
}

func TestLedgerStorage_RoundTripKeepsOrder(t *testing.T) {
	s := newSQLiteStorage(t)
	l := ledger.New("first", "second", "third")

	require.NoError(t, s.Save(context.Background(), l))

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, got.IDs())
}

func TestLedgerStorage_SaveReplacesContent(t *testing.T) {
	s := newSQLiteStorage(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, ledger.New("a", "b", "c")))

	pruned := ledger.New("a", "b", "c", "d")
	pruned.Prune(2)
	require.NoError(t, s.Save(ctx, pruned))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d"}, got.IDs())
}

func TestLedgerStorage_SaveIsRepeatable(t *testing.T) {
	s := newSQLiteStorage(t)
	ctx := context.Background()
	l := ledger.New("a")

	require.NoError(t, s.Save(ctx, l))
	l.Record("b")
	require.NoError(t, s.Save(ctx, l))
	require.NoError(t, s.Save(ctx, l))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.IDs())
}

func TestLedgerStorage_ClosedDatabase(t *testing.T) {
	s := newSQLiteStorage(t)
	require.NoError(t, s.db.Close())

	_, err := s.Load(context.Background())
	assert.ErrorIs(t, err, ledger.ErrLoad)

	err = s.Save(context.Background(), ledger.New("a"))
	assert.ErrorIs(t, err, ledger.ErrSave)
}
