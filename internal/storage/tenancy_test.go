package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScopeToTenantNoSentinel(t *testing.T) {
	sql, params := ScopeToTenant("SELECT 1", "t1", nil)
	assert.Equal(t, "SELECT 1", sql)
	assert.Nil(t, params)
}

func TestScopeToTenantAppendsAtSentinelPosition(t *testing.T) {
	sql, params := ScopeToTenant("SELECT * FROM x WHERE {{tenant}} AND id = ?", "t1", []any{"item-1"})
	assert.Equal(t, "SELECT * FROM x WHERE tenant_id = ? AND id = ?", sql)
	assert.Equal(t, []any{"t1", "item-1"}, params)
}

func TestScopeToTenantSentinelAfterPlaceholders(t *testing.T) {
	sql, params := ScopeToTenant("SELECT * FROM x WHERE id = ? AND {{tenant}}", "t1", []any{"item-1"})
	assert.Equal(t, "SELECT * FROM x WHERE id = ? AND tenant_id = ?", sql)
	assert.Equal(t, []any{"item-1", "t1"}, params)
}
