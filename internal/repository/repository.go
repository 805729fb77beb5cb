// Package repository is the authoritative typed surface over
// storage.Storage: it is the only place in the memory core
// that knows the SQL shape of a knowledge item, and the only writer
// permitted to touch the five logical tables directly (other components
// call through it).
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/morphexe/vestige/internal/storage"
	"github.com/morphexe/vestige/internal/types"
)

// ErrNotFound wraps an id-not-found condition for operations that
// require the item to exist: review, promote, demote raise NotFound
// as an error; lookups return it as a nil value instead.
var ErrNotFound = errors.New("repository: not found")

// Repository is tenant-agnostic at the Go level — tenancy is bound into
// the underlying storage.Storage at construction (sqlite.Open,
// postgres.Open both take a tenant id) — so every call here is
// automatically scoped.
type Repository struct {
	db storage.Storage
}

// New wraps a storage.Storage backend as a Repository.
func New(db storage.Storage) *Repository {
	return &Repository{db: db}
}

func clampf(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// clampItem enforces the numeric ranges before a write, clamping rather
// than rejecting so a caller's rounding error never produces an
// out-of-range value.
func clampItem(item *types.KnowledgeItem) {
	item.Stability = clampf(item.Stability, 0.1, 36500)
	item.Difficulty = clampf(item.Difficulty, 1, 10)
	item.RetrievalStrength = clampf(item.RetrievalStrength, 0, 1)
	item.SentimentIntensity = clampf(item.SentimentIntensity, 0, 1)
	item.Confidence = clampf(item.Confidence, 0, 1)
	item.RetentionStrength = 0.7*item.RetrievalStrength + 0.3*clampf(item.StorageStrength/10, 0, 1)
}

// Insert assigns an id if absent, enforces field ranges, and persists a
// new knowledge item.
func (r *Repository) Insert(ctx context.Context, item *types.KnowledgeItem) (*types.KnowledgeItem, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	if item.State == types.CardState(0) && item.Stability == 0 {
		item.Stability = 2.3065 // initial_stability(Good), the scheduler's new-card default
		item.Difficulty = 5.0
	}
	clampItem(item)

	_, err := r.db.Execute(ctx, `
		INSERT INTO knowledge_nodes (
			id, tenant_id, content, summary, stability, difficulty, state, reps, lapses,
			last_review, next_review, storage_strength, retrieval_strength, retention_strength,
			stability_factor, access_count, last_accessed_at, created_at, updated_at,
			sentiment_intensity, confidence, is_contradicted, contradiction_ids,
			source_type, source_platform, source_url, source_chain,
			people, concepts, events, tags, embedding
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.TenantID, item.Content, item.Summary, item.Stability, item.Difficulty,
		int(item.State), item.Reps, item.Lapses,
		timeOrNil(item.LastReview), timeOrNil(item.NextReview),
		item.StorageStrength, item.RetrievalStrength, item.RetentionStrength,
		orDefault(item.StabilityFactor, 1.0), item.AccessCount, timeOrNil(item.LastAccessedAt),
		item.CreatedAt.Format(time.RFC3339Nano), item.UpdatedAt.Format(time.RFC3339Nano),
		item.SentimentIntensity, orDefault(item.Confidence, 1.0), item.IsContradicted, jsonOf(item.ContradictionIDs),
		string(item.SourceType), item.SourcePlatform, item.SourceURL, jsonOf(item.SourceChain),
		jsonOf(item.People), jsonOf(item.Concepts), jsonOf(item.Events), jsonOf(item.Tags), jsonOf(item.Embedding),
	)
	if err != nil {
		return nil, fmt.Errorf("insert knowledge item: %w", err)
	}
	return item, nil
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

// Get retrieves a knowledge item by id, recording the access
// (access_count += 1, last_accessed_at := now) atomically within a
// transaction. Returns (nil, nil) if not found — lookup
// operations return NotFound as a value, not an error.
func (r *Repository) Get(ctx context.Context, id string) (*types.KnowledgeItem, error) {
	var item *types.KnowledgeItem
	err := r.db.Transaction(ctx, func(tx storage.Tx) error {
		row, err := tx.QueryOne(ctx, `SELECT * FROM knowledge_nodes WHERE `+storage.TenantFilter+` AND id = ? AND deleted_at IS NULL`, id)
		if err != nil {
			return err
		}
		if row == nil {
			return nil
		}
		item = rowToItem(row)
		now := time.Now().UTC().Format(time.RFC3339Nano)
		_, err = tx.Execute(ctx, `UPDATE knowledge_nodes SET access_count = access_count + 1, last_accessed_at = ? WHERE `+storage.TenantFilter+` AND id = ?`,
			now, id)
		if err != nil {
			return err
		}
		if item != nil {
			item.AccessCount++
			t, _ := time.Parse(time.RFC3339Nano, now)
			item.LastAccessedAt = &t
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get knowledge item: %w", err)
	}
	return item, nil
}

// updatableColumns maps KnowledgeItem patch keys to column names. Update
// writes only the fields present in patch.
var updatableColumns = map[string]string{
	"content":             "content",
	"summary":             "summary",
	"stability":           "stability",
	"difficulty":          "difficulty",
	"state":               "state",
	"reps":                "reps",
	"lapses":              "lapses",
	"last_review":         "last_review",
	"next_review":         "next_review",
	"storage_strength":    "storage_strength",
	"retrieval_strength":  "retrieval_strength",
	"retention_strength":  "retention_strength",
	"stability_factor":    "stability_factor",
	"sentiment_intensity": "sentiment_intensity",
	"confidence":          "confidence",
	"is_contradicted":     "is_contradicted",
	"tags":                "tags",
	"people":              "people",
	"concepts":            "concepts",
	"events":              "events",
}

// Update writes only the fields present in patch.
func (r *Repository) Update(ctx context.Context, id string, patch map[string]any) error {
	if len(patch) == 0 {
		return nil
	}
	setClauses := make([]string, 0, len(patch)+1)
	params := make([]any, 0, len(patch)+2)
	for key, val := range patch {
		col, ok := updatableColumns[key]
		if !ok {
			continue
		}
		setClauses = append(setClauses, col+" = ?")
		params = append(params, val)
	}
	setClauses = append(setClauses, "updated_at = ?")
	params = append(params, time.Now().UTC().Format(time.RFC3339Nano))

	query := "UPDATE knowledge_nodes SET "
	for i, c := range setClauses {
		if i > 0 {
			query += ", "
		}
		query += c
	}
	query += " WHERE " + storage.TenantFilter + " AND id = ?"
	params = append(params, id)

	_, err := r.db.Execute(ctx, query, params...)
	if err != nil {
		return fmt.Errorf("update knowledge item %s: %w", id, err)
	}
	return nil
}

// Delete soft-deletes a knowledge item: deleted_at is set rather than
// the row hard-deleted, and tombstoned rows never surface from
// Get/Search/Due. Returns whether a row was affected; delete without
// prior existence check returns rows_affected = 0 rather than an error.
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.Execute(ctx,
		`UPDATE knowledge_nodes SET deleted_at = ?, delete_reason = ? WHERE `+storage.TenantFilter+` AND id = ? AND deleted_at IS NULL`,
		time.Now().UTC().Format(time.RFC3339Nano), "deleted", id)
	if err != nil {
		return false, fmt.Errorf("delete knowledge item %s: %w", id, err)
	}
	return res.RowsAffected > 0, nil
}

func rowToItem(row storage.Row) *types.KnowledgeItem {
	item := &types.KnowledgeItem{
		ID:                 stringOf(row, "id"),
		TenantID:           stringOf(row, "tenant_id"),
		Content:            stringOf(row, "content"),
		Summary:            asStringPtr(row["summary"]),
		Stability:          floatOf(row, "stability"),
		Difficulty:         floatOf(row, "difficulty"),
		State:              types.CardState(intOf(row, "state")),
		Reps:               intOf(row, "reps"),
		Lapses:             intOf(row, "lapses"),
		LastReview:         asTime(row["last_review"]),
		NextReview:         asTime(row["next_review"]),
		StorageStrength:    floatOf(row, "storage_strength"),
		RetrievalStrength:  floatOf(row, "retrieval_strength"),
		RetentionStrength:  floatOf(row, "retention_strength"),
		StabilityFactor:    floatOf(row, "stability_factor"),
		AccessCount:        intOf(row, "access_count"),
		LastAccessedAt:     asTime(row["last_accessed_at"]),
		SentimentIntensity: floatOf(row, "sentiment_intensity"),
		Confidence:         floatOf(row, "confidence"),
		IsContradicted:     boolOf(row, "is_contradicted"),
		ContradictionIDs:   asStringSlice(row["contradiction_ids"]),
		SourceType:         types.SourceType(stringOf(row, "source_type")),
		SourcePlatform:     stringOf(row, "source_platform"),
		SourceURL:          asStringPtr(row["source_url"]),
		SourceChain:        asStringSlice(row["source_chain"]),
		People:             asStringSlice(row["people"]),
		Concepts:           asStringSlice(row["concepts"]),
		Events:             asStringSlice(row["events"]),
		Tags:               asStringSlice(row["tags"]),
		DeletedAt:          asTime(row["deleted_at"]),
		DeletedBy:          stringOf(row, "deleted_by"),
		DeleteReason:       stringOf(row, "delete_reason"),
	}
	if t := asTime(row["created_at"]); t != nil {
		item.CreatedAt = *t
	}
	if t := asTime(row["updated_at"]); t != nil {
		item.UpdatedAt = *t
	}
	return item
}
