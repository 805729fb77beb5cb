package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/morphexe/vestige/internal/storage"
	"github.com/morphexe/vestige/internal/types"
)

// CreateIntention assigns an id if absent and persists a new deferred-action
// record (intention{create}).
func (r *Repository) CreateIntention(ctx context.Context, in *types.Intention) (*types.Intention, error) {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.Status == "" {
		in.Status = types.IntentionActive
	}
	if in.Priority == "" {
		in.Priority = types.PriorityNormal
	}

	_, err := r.db.Execute(ctx, `
		INSERT INTO intentions (
			id, tenant_id, content, trigger_type, trigger_data, priority, status,
			deadline, fulfilled_at, reminder_count, tags, snoozed_until
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.TenantID, in.Content, in.TriggerType, jsonOfMap(in.TriggerData),
		string(in.Priority), string(in.Status),
		timeOrNil(in.Deadline), timeOrNil(in.FulfilledAt), in.ReminderCount,
		jsonOf(in.Tags), timeOrNil(in.SnoozedUntil),
	)
	if err != nil {
		return nil, fmt.Errorf("create intention: %w", err)
	}
	return in, nil
}

// ListIntentions returns intentions, optionally filtered by status.
func (r *Repository) ListIntentions(ctx context.Context, status types.IntentionStatus) ([]*types.Intention, error) {
	var rows []storage.Row
	var err error
	if status == "" {
		rows, err = r.db.Query(ctx, `SELECT * FROM intentions WHERE `+storage.TenantFilter+` ORDER BY deadline IS NULL, deadline ASC`)
	} else {
		rows, err = r.db.Query(ctx, `SELECT * FROM intentions WHERE `+storage.TenantFilter+` AND status = ? ORDER BY deadline IS NULL, deadline ASC`, string(status))
	}
	if err != nil {
		return nil, fmt.Errorf("list intentions: %w", err)
	}
	out := make([]*types.Intention, 0, len(rows))
	for _, row := range rows {
		out = append(out, rowToIntention(row))
	}
	return out, nil
}

// CompleteIntention marks an intention fulfilled at the given time.
func (r *Repository) CompleteIntention(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.Execute(ctx,
		`UPDATE intentions SET status = ?, fulfilled_at = ? WHERE `+storage.TenantFilter+` AND id = ? AND status = ?`,
		string(types.IntentionFulfilled), at.UTC().Format(time.RFC3339Nano), id, string(types.IntentionActive))
	if err != nil {
		return false, fmt.Errorf("complete intention %s: %w", id, err)
	}
	return res.RowsAffected > 0, nil
}

// CancelIntention marks an intention cancelled.
func (r *Repository) CancelIntention(ctx context.Context, id string) (bool, error) {
	res, err := r.db.Execute(ctx,
		`UPDATE intentions SET status = ? WHERE `+storage.TenantFilter+` AND id = ? AND status IN (?, ?)`,
		string(types.IntentionCancelled), id, string(types.IntentionActive), string(types.IntentionSnoozed))
	if err != nil {
		return false, fmt.Errorf("cancel intention %s: %w", id, err)
	}
	return res.RowsAffected > 0, nil
}

func rowToIntention(row storage.Row) *types.Intention {
	return &types.Intention{
		ID:            stringOf(row, "id"),
		TenantID:      stringOf(row, "tenant_id"),
		Content:       stringOf(row, "content"),
		TriggerType:   stringOf(row, "trigger_type"),
		TriggerData:   asStringMap(row["trigger_data"]),
		Priority:      types.Priority(stringOf(row, "priority")),
		Status:        types.IntentionStatus(stringOf(row, "status")),
		Deadline:      asTime(row["deadline"]),
		FulfilledAt:   asTime(row["fulfilled_at"]),
		ReminderCount: intOf(row, "reminder_count"),
		Tags:          asStringSlice(row["tags"]),
		SnoozedUntil:  asTime(row["snoozed_until"]),
	}
}
