package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morphexe/vestige/internal/types"
)

func TestInsertEdgeRejectsSelfLoop(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	_, err := r.InsertEdge(ctx, &types.Edge{TenantID: "tenant-a", FromID: "x", ToID: "x", Type: types.EdgeRelatesTo})
	assert.ErrorIs(t, err, ErrSelfLoop)
}

func TestInsertEdgeAssociativeAllowsCycle(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	a, err := r.Insert(ctx, &types.KnowledgeItem{TenantID: "tenant-a", Content: "a"})
	require.NoError(t, err)
	b, err := r.Insert(ctx, &types.KnowledgeItem{TenantID: "tenant-a", Content: "b"})
	require.NoError(t, err)

	_, err = r.InsertEdge(ctx, &types.Edge{TenantID: "tenant-a", FromID: a.ID, ToID: b.ID, Type: types.EdgeRelatesTo})
	require.NoError(t, err)
	_, err = r.InsertEdge(ctx, &types.Edge{TenantID: "tenant-a", FromID: b.ID, ToID: a.ID, Type: types.EdgeRelatesTo})
	assert.NoError(t, err, "associative edges are not DAG-constrained")
}

func TestInsertEdgeDAGConstrainedRejectsCycle(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	a, err := r.Insert(ctx, &types.KnowledgeItem{TenantID: "tenant-a", Content: "a"})
	require.NoError(t, err)
	b, err := r.Insert(ctx, &types.KnowledgeItem{TenantID: "tenant-a", Content: "b"})
	require.NoError(t, err)
	c, err := r.Insert(ctx, &types.KnowledgeItem{TenantID: "tenant-a", Content: "c"})
	require.NoError(t, err)

	_, err = r.InsertEdge(ctx, &types.Edge{TenantID: "tenant-a", FromID: a.ID, ToID: b.ID, Type: types.EdgePrerequisite})
	require.NoError(t, err)
	_, err = r.InsertEdge(ctx, &types.Edge{TenantID: "tenant-a", FromID: b.ID, ToID: c.ID, Type: types.EdgePrerequisite})
	require.NoError(t, err)

	_, err = r.InsertEdge(ctx, &types.Edge{TenantID: "tenant-a", FromID: c.ID, ToID: a.ID, Type: types.EdgePrerequisite})
	assert.ErrorIs(t, err, ErrCycle)
}

func TestInsertEdgeDAGConstrainedAllowsDiamond(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	a, err := r.Insert(ctx, &types.KnowledgeItem{TenantID: "tenant-a", Content: "a"})
	require.NoError(t, err)
	b, err := r.Insert(ctx, &types.KnowledgeItem{TenantID: "tenant-a", Content: "b"})
	require.NoError(t, err)
	c, err := r.Insert(ctx, &types.KnowledgeItem{TenantID: "tenant-a", Content: "c"})
	require.NoError(t, err)
	d, err := r.Insert(ctx, &types.KnowledgeItem{TenantID: "tenant-a", Content: "d"})
	require.NoError(t, err)

	_, err = r.InsertEdge(ctx, &types.Edge{TenantID: "tenant-a", FromID: a.ID, ToID: b.ID, Type: types.EdgeCauses})
	require.NoError(t, err)
	_, err = r.InsertEdge(ctx, &types.Edge{TenantID: "tenant-a", FromID: a.ID, ToID: c.ID, Type: types.EdgeCauses})
	require.NoError(t, err)
	_, err = r.InsertEdge(ctx, &types.Edge{TenantID: "tenant-a", FromID: b.ID, ToID: d.ID, Type: types.EdgeCauses})
	require.NoError(t, err)
	_, err = r.InsertEdge(ctx, &types.Edge{TenantID: "tenant-a", FromID: c.ID, ToID: d.ID, Type: types.EdgeCauses})
	assert.NoError(t, err, "a diamond-shaped DAG is not a cycle")
}

func TestGetRelatedReturnsBothDirections(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	a, err := r.Insert(ctx, &types.KnowledgeItem{TenantID: "tenant-a", Content: "a"})
	require.NoError(t, err)
	b, err := r.Insert(ctx, &types.KnowledgeItem{TenantID: "tenant-a", Content: "b"})
	require.NoError(t, err)
	c, err := r.Insert(ctx, &types.KnowledgeItem{TenantID: "tenant-a", Content: "c"})
	require.NoError(t, err)

	_, err = r.InsertEdge(ctx, &types.Edge{TenantID: "tenant-a", FromID: a.ID, ToID: b.ID, Type: types.EdgeRelatesTo})
	require.NoError(t, err)
	_, err = r.InsertEdge(ctx, &types.Edge{TenantID: "tenant-a", FromID: c.ID, ToID: a.ID, Type: types.EdgeRelatesTo})
	require.NoError(t, err)

	related, err := r.GetRelated(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, related, 2)
}
