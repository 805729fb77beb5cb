package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morphexe/vestige/internal/storage"
)

func openTestStore(t *testing.T, tenant string) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vestige.db")
	s, err := Open(context.Background(), path, tenant, false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreInsertAndQueryTenantScoped(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, "tenant-a")

	_, err := s.Execute(ctx, `INSERT INTO knowledge_nodes (id, tenant_id, content, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		"item-1", "tenant-a", "hello world", "2026-01-01T00:00:00Z", "2026-01-01T00:00:00Z")
	require.NoError(t, err)

	rows, err := s.Query(ctx, `SELECT id, content FROM knowledge_nodes WHERE `+storage.TenantFilter+` AND id = ?`, "item-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "item-1", rows[0]["id"])
}

func TestStoreTenantIsolation(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vestige.db")

	a, err := Open(ctx, path, "tenant-a", false)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Execute(ctx, `INSERT INTO knowledge_nodes (id, tenant_id, content, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		"item-1", "tenant-a", "secret", "2026-01-01T00:00:00Z", "2026-01-01T00:00:00Z")
	require.NoError(t, err)

	b, err := Open(ctx, path, "tenant-b", false)
	require.NoError(t, err)
	defer b.Close()

	rows, err := b.Query(ctx, `SELECT id FROM knowledge_nodes WHERE `+storage.TenantFilter)
	require.NoError(t, err)
	assert.Len(t, rows, 0, "tenant-b must not see tenant-a's rows")
}

func TestStoreTransactionRollback(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, "tenant-a")

	err := s.Transaction(ctx, func(tx storage.Tx) error {
		_, err := tx.Execute(ctx, `INSERT INTO knowledge_nodes (id, tenant_id, content, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			"item-1", "tenant-a", "x", "2026-01-01T00:00:00Z", "2026-01-01T00:00:00Z")
		require.NoError(t, err)
		return assert.AnError
	})
	assert.Error(t, err)

	rows, err := s.Query(ctx, `SELECT id FROM knowledge_nodes WHERE `+storage.TenantFilter)
	require.NoError(t, err)
	assert.Len(t, rows, 0)
}

func TestStoreTransactionCommit(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, "tenant-a")

	err := s.Transaction(ctx, func(tx storage.Tx) error {
		_, err := tx.Execute(ctx, `INSERT INTO knowledge_nodes (id, tenant_id, content, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			"item-1", "tenant-a", "x", "2026-01-01T00:00:00Z", "2026-01-01T00:00:00Z")
		return err
	})
	require.NoError(t, err)

	rows, err := s.Query(ctx, `SELECT id FROM knowledge_nodes WHERE `+storage.TenantFilter)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestStoreCloseIsIdempotentAndBlocksFurtherOps(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, "tenant-a")

	require.NoError(t, s.Close())
	require.NoError(t, s.Close()) // idempotent

	_, err := s.Execute(ctx, `SELECT 1`)
	assert.ErrorIs(t, err, storage.ErrConnectionClosed)
}

func TestStoreIsHealthy(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, "tenant-a")
	assert.True(t, s.IsHealthy(ctx))
	s.Close()
	assert.False(t, s.IsHealthy(ctx))
}
