package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/morphexe/vestige/internal/storage"
	"github.com/morphexe/vestige/internal/types"
)

// SearchOptions bounds a Search call: limit defaults 10, max 100;
// min_retention filters by retention_strength.
type SearchOptions struct {
	Tags         []string
	Limit        int
	MinRetention float64
}

// SearchResult pairs the page of matches with Total, the number of items
// in that page after the limit and the tag/retention filters; it is not a
// count of every matching row.
type SearchResult struct {
	Items []*types.KnowledgeItem
	Total int
}

// Search runs the FTS5 MATCH query over content/summary, falling back to
// a LIKE scan when MATCH fails or the query is empty.
func (r *Repository) Search(ctx context.Context, query string, opts SearchOptions) (*SearchResult, error) {
	limit := opts.Limit
	switch {
	case limit <= 0:
		limit = 10
	case limit > 100:
		limit = 100
	}

	var rows []storage.Row
	var err error
	if strings.TrimSpace(query) != "" {
		rows, err = r.searchFTS(ctx, normalizeQuery(query), limit)
	}
	if err != nil || len(rows) == 0 {
		rows, err = r.searchLike(ctx, query, limit)
		if err != nil {
			return nil, fmt.Errorf("search: %w", err)
		}
	}

	items := make([]*types.KnowledgeItem, 0, len(rows))
	for _, row := range rows {
		item := rowToItem(row)
		if len(opts.Tags) > 0 && !hasAnyTag(item.Tags, opts.Tags) {
			continue
		}
		if item.RetentionStrength < opts.MinRetention {
			continue
		}
		items = append(items, item)
	}
	return &SearchResult{Items: items, Total: len(items)}, nil
}

func (r *Repository) searchFTS(ctx context.Context, query string, limit int) ([]storage.Row, error) {
	return r.db.Query(ctx, `
		SELECT n.* FROM knowledge_nodes n
		JOIN knowledge_fts f ON f.rowid = n.rowid
		WHERE `+storage.TenantFilter+` AND knowledge_fts MATCH ? AND n.deleted_at IS NULL
		ORDER BY rank LIMIT ?`, query, limit)
}

func (r *Repository) searchLike(ctx context.Context, query string, limit int) ([]storage.Row, error) {
	like := "%" + query + "%"
	return r.db.Query(ctx, `
		SELECT * FROM knowledge_nodes
		WHERE `+storage.TenantFilter+` AND deleted_at IS NULL
		AND (content LIKE ? OR summary LIKE ?)
		ORDER BY updated_at DESC LIMIT ?`, like, like, limit)
}

func hasAnyTag(have, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, t := range have {
		set[t] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[w]; ok {
			return true
		}
	}
	return false
}

// Due returns items whose next_review has passed, ordered soonest-first.
func (r *Repository) Due(ctx context.Context, limit int) ([]*types.KnowledgeItem, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT * FROM knowledge_nodes
		WHERE `+storage.TenantFilter+` AND deleted_at IS NULL
		AND next_review IS NOT NULL AND next_review <= ?
		ORDER BY next_review ASC LIMIT ?`,
		time.Now().UTC().Format(time.RFC3339Nano), limit)
	if err != nil {
		return nil, fmt.Errorf("due: %w", err)
	}
	items := make([]*types.KnowledgeItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, rowToItem(row))
	}
	return items, nil
}

// ListAll returns every non-deleted item for the tenant, unpaginated.
// Used by aggregate/scan operations (stats, consolidate, context ranking,
// trigger_importance, tag stats) that need the full working set rather
// than a page of search results.
func (r *Repository) ListAll(ctx context.Context) ([]*types.KnowledgeItem, error) {
	rows, err := r.db.Query(ctx, `SELECT * FROM knowledge_nodes WHERE `+storage.TenantFilter+` AND deleted_at IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("list all: %w", err)
	}
	items := make([]*types.KnowledgeItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, rowToItem(row))
	}
	return items, nil
}

// Stats is the aggregate snapshot returned by stats(): total item count,
// a breakdown by retention bucket and card state, the due count, and the
// mean stability/retention across the tenant's items.
type Stats struct {
	Total        int
	ByBucket     map[types.RetentionBucket]int
	ByState      map[types.CardState]int
	TotalLapses  int
	DueCount     int
	AvgStability float64
	AvgRetention float64
}

// Stats computes retention/state bucket counts, the due count, and
// stability/retention averages over all non-deleted items. Bucket math
// runs in Go rather than SQL, since Bucket() is the single source of
// truth that the repository and the facade's StateOf both rely on.
func (r *Repository) Stats(ctx context.Context) (*Stats, error) {
	items, err := r.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	out := &Stats{
		ByBucket: make(map[types.RetentionBucket]int),
		ByState:  make(map[types.CardState]int),
	}
	now := time.Now().UTC()
	var stabilitySum, retentionSum float64
	for _, item := range items {
		out.Total++
		out.ByBucket[item.Bucket()]++
		out.ByState[item.State]++
		out.TotalLapses += item.Lapses
		stabilitySum += item.Stability
		retentionSum += item.RetentionStrength
		if item.NextReview != nil && !item.NextReview.After(now) {
			out.DueCount++
		}
	}
	if out.Total > 0 {
		out.AvgStability = stabilitySum / float64(out.Total)
		out.AvgRetention = retentionSum / float64(out.Total)
	}
	return out, nil
}

// normalizeQuery strips FTS5 special characters that would otherwise
// raise a syntax error from the virtual table, so a query built from
// free-form user text never crashes the MATCH path outright.
func normalizeQuery(q string) string {
	var b strings.Builder
	for _, r := range q {
		switch r {
		case '"', '*', '^', ':', '(', ')':
			continue
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
