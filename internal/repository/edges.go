package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/morphexe/vestige/internal/storage"
	"github.com/morphexe/vestige/internal/types"
)

// ErrCycle is returned when inserting a DAG-constrained edge would close a
// cycle (supplement).
var ErrCycle = errors.New("repository: edge would introduce a cycle")

// ErrSelfLoop is returned when from_id == to_id.
var ErrSelfLoop = errors.New("repository: edge cannot connect an item to itself")

// InsertEdge persists a typed relation between two knowledge items. For
// the DAG-constrained edge types (prerequisite, causes, supersedes) the
// reverse reachability of the target from the source is checked first —
// adding from->to after to already reaches from would close a cycle.
func (r *Repository) InsertEdge(ctx context.Context, edge *types.Edge) (*types.Edge, error) {
	if edge.FromID == edge.ToID {
		return nil, ErrSelfLoop
	}
	if edge.ID == "" {
		edge.ID = uuid.NewString()
	}
	if edge.CreatedAt.IsZero() {
		edge.CreatedAt = time.Now().UTC()
	}
	if edge.Weight == 0 {
		edge.Weight = 1.0
	}

	if edge.Type.IsDAGConstrained() {
		reaches, err := r.reaches(ctx, edge.ToID, edge.FromID, edge.Type, map[string]bool{})
		if err != nil {
			return nil, fmt.Errorf("insert edge: cycle check: %w", err)
		}
		if reaches {
			return nil, ErrCycle
		}
	}

	_, err := r.db.Execute(ctx, `
		INSERT INTO graph_edges (id, tenant_id, from_id, to_id, edge_type, weight, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		edge.ID, edge.TenantID, edge.FromID, edge.ToID, string(edge.Type), edge.Weight,
		jsonOf(edge.Metadata), edge.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("insert edge: %w", err)
	}
	return edge, nil
}

// reaches performs a depth-first search over edges of the given type to
// determine whether a path from -> ... -> target exists, used to detect
// that inserting target -> from of a DAG-constrained type would close a
// cycle. visited guards against revisiting a node within this call.
func (r *Repository) reaches(ctx context.Context, from, target string, edgeType types.EdgeType, visited map[string]bool) (bool, error) {
	if from == target {
		return true, nil
	}
	if visited[from] {
		return false, nil
	}
	visited[from] = true

	rows, err := r.db.Query(ctx, `
		SELECT to_id FROM graph_edges
		WHERE `+storage.TenantFilter+` AND from_id = ? AND edge_type = ?`,
		from, string(edgeType))
	if err != nil {
		return false, err
	}
	for _, row := range rows {
		next := stringOf(row, "to_id")
		ok, err := r.reaches(ctx, next, target, edgeType, visited)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// GetRelated returns edges touching id, in either direction, excluding
// any malformed self-loop rows.
func (r *Repository) GetRelated(ctx context.Context, id string) ([]*types.Edge, error) {
	rows, err := r.db.Query(ctx, `
		SELECT * FROM graph_edges
		WHERE `+storage.TenantFilter+` AND (from_id = ? OR to_id = ?)`,
		id, id)
	if err != nil {
		return nil, fmt.Errorf("get related: %w", err)
	}
	edges := make([]*types.Edge, 0, len(rows))
	for _, row := range rows {
		fromID := stringOf(row, "from_id")
		toID := stringOf(row, "to_id")
		if fromID == toID {
			continue
		}
		edges = append(edges, &types.Edge{
			ID:       stringOf(row, "id"),
			TenantID: stringOf(row, "tenant_id"),
			FromID:   fromID,
			ToID:     toID,
			Type:     types.EdgeType(stringOf(row, "edge_type")),
			Weight:   floatOf(row, "weight"),
			Metadata: metadataOf(row["metadata"]),
			CreatedAt: func() time.Time {
				if t := asTime(row["created_at"]); t != nil {
					return *t
				}
				return time.Time{}
			}(),
		})
	}
	return edges, nil
}

func metadataOf(v any) map[string]string {
	s := asString(v)
	if s == "" {
		return nil
	}
	var out map[string]string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}
