package storage

import "strings"

// TenantFilter is the sentinel every repository-authored query embeds in
// its WHERE clause (e.g. "WHERE {{tenant}} AND id = ?") to request
// row-level tenancy enforcement. The embedded backend replaces it with
// "tenant_id = ?" and binds the tenant id at the sentinel's position
// (ScopeToTenant); the hosted backend's Rewriter replaces it with a
// predicate on the session's tenant setting. This centralizes the "every
// read/write is scoped by tenant_id" invariant in one place rather than
// trusting every call site to remember it.
const TenantFilter = "{{tenant}}"

// ScopeToTenant rewrites sql's single TenantFilter sentinel into a literal
// "tenant_id = ?" predicate and inserts tenantID into params at the
// position matching the sentinel's place among the query's existing "?"
// placeholders — not simply appended — so positional binding stays
// correct regardless of where in the WHERE clause the sentinel sits.
// Queries with no sentinel are returned unchanged (some operations, like
// health checks, are tenant-agnostic).
func ScopeToTenant(sql string, tenantID string, params []any) (string, []any) {
	idx := strings.Index(sql, TenantFilter)
	if idx < 0 {
		return sql, params
	}
	insertAt := strings.Count(sql[:idx], "?")
	rewritten := strings.Replace(sql, TenantFilter, "tenant_id = ?", 1)

	newParams := make([]any, 0, len(params)+1)
	newParams = append(newParams, params[:insertAt]...)
	newParams = append(newParams, tenantID)
	newParams = append(newParams, params[insertAt:]...)
	return rewritten, newParams
}
