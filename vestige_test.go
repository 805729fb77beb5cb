package vestige

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morphexe/vestige/internal/config"
	"github.com/morphexe/vestige/internal/consolidation"
	"github.com/morphexe/vestige/internal/gate"
	"github.com/morphexe/vestige/internal/storage/sqlite"
	"github.com/morphexe/vestige/internal/types"
)

func newTestCore(t *testing.T) *Core {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vestige.db")
	db, err := sqlite.Open(context.Background(), path, "tenant-a", false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db, config.Default())
}

func TestIngestFreshContentCreates(t *testing.T) {
	ctx := context.Background()
	c := newTestCore(t)

	result, err := c.Ingest(ctx, &types.KnowledgeItem{TenantID: "tenant-a", Content: "the server room runs hot in july"})
	require.NoError(t, err)
	assert.Equal(t, gate.DecisionCreate, result.Decision.Decision)
	require.NotNil(t, result.Item)
	assert.NotEmpty(t, result.Item.ID)
}

func TestIngestIdenticalContentSkips(t *testing.T) {
	ctx := context.Background()
	c := newTestCore(t)

	content := "the quarterly report ships friday afternoon without fail this time"
	_, err := c.Ingest(ctx, &types.KnowledgeItem{TenantID: "tenant-a", Content: content})
	require.NoError(t, err)

	result, err := c.Ingest(ctx, &types.KnowledgeItem{TenantID: "tenant-a", Content: content})
	require.NoError(t, err)
	assert.Equal(t, gate.DecisionSkip, result.Decision.Decision)
	assert.Less(t, result.Decision.PredictionError, 0.05)
}

func TestRecallMarksItemLabile(t *testing.T) {
	ctx := context.Background()
	c := newTestCore(t)

	result, err := c.Ingest(ctx, &types.KnowledgeItem{TenantID: "tenant-a", Content: "the migration window opens saturday night"})
	require.NoError(t, err)
	require.NotNil(t, result.Item)

	item, err := c.Recall(ctx, result.Item.ID, "test-context")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.True(t, c.Labile.IsLabile(result.Item.ID))
}

func TestReviewAdvancesScheduler(t *testing.T) {
	ctx := context.Background()
	c := newTestCore(t)

	result, err := c.Ingest(ctx, &types.KnowledgeItem{TenantID: "tenant-a", Content: "rotate the backup credentials every quarter"})
	require.NoError(t, err)

	item, err := c.Review(ctx, result.Item.ID, types.GradeGood, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, item.Reps)
	assert.Equal(t, types.StateReview, item.State)
}

func TestPromoteMemoryRaisesRetentionWithoutTouchingStability(t *testing.T) {
	ctx := context.Background()
	c := newTestCore(t)

	result, err := c.Ingest(ctx, &types.KnowledgeItem{TenantID: "tenant-a", Content: "the onboarding doc lives in the shared drive now"})
	require.NoError(t, err)
	before := result.Item.Stability

	require.NoError(t, c.Repo.Update(ctx, result.Item.ID, map[string]any{"retention_strength": 0.5}))
	require.NoError(t, c.PromoteMemory(ctx, result.Item.ID, 1.5))

	after, err := c.Get(ctx, result.Item.ID)
	require.NoError(t, err)
	assert.Greater(t, after.RetentionStrength, 0.5)
	assert.Equal(t, before, after.Stability)
}

func TestGetMemoryStateReflectsContradiction(t *testing.T) {
	ctx := context.Background()
	c := newTestCore(t)

	result, err := c.Ingest(ctx, &types.KnowledgeItem{TenantID: "tenant-a", Content: "deploys run every morning at nine"})
	require.NoError(t, err)
	require.NoError(t, c.Repo.Update(ctx, result.Item.ID, map[string]any{"is_contradicted": true}))

	state, err := c.GetMemoryState(ctx, result.Item.ID)
	require.NoError(t, err)
	assert.Equal(t, MemoryContradicted, state)
}

func TestIntentionLifecycle(t *testing.T) {
	ctx := context.Background()
	c := newTestCore(t)

	in, err := c.CreateIntention(ctx, &types.Intention{TenantID: "tenant-a", Content: "ping the oncall", TriggerType: "time"})
	require.NoError(t, err)

	ok, err := c.CompleteIntention(ctx, in.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, ok)

	list, err := c.ListIntentions(ctx, types.IntentionFulfilled)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestConsolidateRunsWithoutError(t *testing.T) {
	ctx := context.Background()
	c := newTestCore(t)

	for i := 0; i < 3; i++ {
		_, err := c.Ingest(ctx, &types.KnowledgeItem{TenantID: "tenant-a", Content: "distinct memory content number for item " + string(rune('a'+i))})
		require.NoError(t, err)
	}

	_, err := c.Consolidate(ctx, consolidation.PhaseLight, false)
	require.NoError(t, err)
}

func TestConsolidateDryRunDoesNotPersist(t *testing.T) {
	ctx := context.Background()
	c := newTestCore(t)

	ingested, err := c.Ingest(ctx, &types.KnowledgeItem{TenantID: "tenant-a", Content: "dry run candidate memory content"})
	require.NoError(t, err)
	before, err := c.Repo.Get(ctx, ingested.Item.ID)
	require.NoError(t, err)

	result, err := c.Consolidate(ctx, consolidation.PhaseDeep, true)
	require.NoError(t, err)
	assert.True(t, result.DryRun)

	after, err := c.Repo.Get(ctx, ingested.Item.ID)
	require.NoError(t, err)
	assert.Equal(t, before.RetrievalStrength, after.RetrievalStrength)
	assert.Equal(t, before.RetentionStrength, after.RetentionStrength)
}
