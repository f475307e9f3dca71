package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// createTestStore opens a fresh database in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func personTable() Table {
	return Table{Name: "Person", Columns: []Column{
		{Name: "name", Kind: KindString, Indexed: true},
		{Name: "age", Kind: KindInt},
		{Name: "spouse", Kind: KindLink, Target: "Person", Nullable: true},
		{Name: "friends", Kind: KindLinkList, Target: "Person"},
	}}
}

func personSpec() *Spec {
	return &Spec{Tables: []Table{personTable()}}
}

// reconcile runs Reconcile in its own transaction and commits it.
func reconcile(t *testing.T, s *Store, spec *Spec, version int64, fn MigrationFunc) bool {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Begin(ctx))
	changed, err := s.Reconcile(ctx, spec, version, fn)
	if err != nil {
		_ = s.Rollback()
		require.NoError(t, err)
	}
	require.NoError(t, s.Commit())
	return changed
}

// write runs fn in a committed transaction.
func write(t *testing.T, s *Store, fn func(ctx context.Context)) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Begin(ctx))
	fn(ctx)
	require.NoError(t, s.Commit())
}

func appendPerson(t *testing.T, ctx context.Context, s *Store, name string, age int64) int64 {
	t.Helper()
	table := personTable()
	key, err := s.AppendRow(ctx, "Person")
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "Person", key, table.Column("name"), name))
	require.NoError(t, s.Set(ctx, "Person", key, table.Column("age"), age))
	return key
}
