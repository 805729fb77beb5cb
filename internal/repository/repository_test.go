package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morphexe/vestige/internal/storage/sqlite"
	"github.com/morphexe/vestige/internal/types"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vestige.db")
	s, err := sqlite.Open(context.Background(), path, "tenant-a", false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return New(s)
}

func TestInsertAssignsIDAndDefaults(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	item := &types.KnowledgeItem{TenantID: "tenant-a", Content: "the sky is blue"}
	out, err := r.Insert(ctx, item)
	require.NoError(t, err)
	assert.NotEmpty(t, out.ID)
	assert.Equal(t, 2.3065, out.Stability)
	assert.Equal(t, 5.0, out.Difficulty)
}

func TestInsertClampsOutOfRangeFields(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	item := &types.KnowledgeItem{
		TenantID:           "tenant-a",
		Content:            "x",
		Stability:          -5,
		Difficulty:         99,
		RetrievalStrength:  3,
		SentimentIntensity: -1,
	}
	out, err := r.Insert(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, 0.1, out.Stability)
	assert.Equal(t, 10.0, out.Difficulty)
	assert.Equal(t, 1.0, out.RetrievalStrength)
	assert.Equal(t, 0.0, out.SentimentIntensity)
}

func TestGetRoundTripsAndBumpsAccessCount(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	item, err := r.Insert(ctx, &types.KnowledgeItem{TenantID: "tenant-a", Content: "round trip"})
	require.NoError(t, err)

	got, err := r.Get(ctx, item.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "round trip", got.Content)
	assert.Equal(t, 1, got.AccessCount)

	got2, err := r.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got2.AccessCount)
}

func TestGetReturnsNilForMissingID(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	got, err := r.Get(ctx, "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpdateWritesOnlyPatchedFields(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	item, err := r.Insert(ctx, &types.KnowledgeItem{TenantID: "tenant-a", Content: "original"})
	require.NoError(t, err)

	err = r.Update(ctx, item.ID, map[string]any{"content": "edited"})
	require.NoError(t, err)

	got, err := r.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited", got.Content)
	assert.InDelta(t, 2.3065, got.Stability, 1e-9)
}

func TestDeleteSoftDeletesAndHidesFromGet(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	item, err := r.Insert(ctx, &types.KnowledgeItem{TenantID: "tenant-a", Content: "transient"})
	require.NoError(t, err)

	deleted, err := r.Delete(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	got, err := r.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteOfMissingIDReturnsFalseNotError(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	deleted, err := r.Delete(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestDueReturnsOnlyPastItemsOrderedSoonestFirst(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	past := mustTime("2020-01-01T00:00:00Z")
	soon := mustTime("2020-01-02T00:00:00Z")
	future := mustTime("2099-01-01T00:00:00Z")

	a, err := r.Insert(ctx, &types.KnowledgeItem{TenantID: "tenant-a", Content: "a", NextReview: &soon})
	require.NoError(t, err)
	b, err := r.Insert(ctx, &types.KnowledgeItem{TenantID: "tenant-a", Content: "b", NextReview: &past})
	require.NoError(t, err)
	_, err = r.Insert(ctx, &types.KnowledgeItem{TenantID: "tenant-a", Content: "c", NextReview: &future})
	require.NoError(t, err)

	due, err := r.Due(ctx, 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, b.ID, due[0].ID)
	assert.Equal(t, a.ID, due[1].ID)
}

func TestStatsBucketsByRetentionStrength(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	_, err := r.Insert(ctx, &types.KnowledgeItem{TenantID: "tenant-a", Content: "active", RetrievalStrength: 1.0})
	require.NoError(t, err)
	_, err = r.Insert(ctx, &types.KnowledgeItem{TenantID: "tenant-a", Content: "unavailable", RetrievalStrength: 0})
	require.NoError(t, err)

	stats, err := r.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.ByBucket[types.BucketActive])
	assert.Equal(t, 1, stats.ByBucket[types.BucketUnavailable])
	assert.InDelta(t, 0.5, stats.AvgRetention, 0.4)
	assert.Greater(t, stats.AvgStability, 0.0)
}

func TestStatsCountsDueItems(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	past := mustTime("2020-01-01T00:00:00Z")
	future := mustTime("2099-01-01T00:00:00Z")

	_, err := r.Insert(ctx, &types.KnowledgeItem{TenantID: "tenant-a", Content: "overdue", NextReview: &past})
	require.NoError(t, err)
	_, err = r.Insert(ctx, &types.KnowledgeItem{TenantID: "tenant-a", Content: "not yet due", NextReview: &future})
	require.NoError(t, err)

	stats, err := r.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DueCount)
}

func TestSearchFallsBackToLikeWhenFTSFindsNothing(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	_, err := r.Insert(ctx, &types.KnowledgeItem{TenantID: "tenant-a", Content: "the quick brown fox"})
	require.NoError(t, err)

	results, err := r.Search(ctx, "quick", SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results.Items, 1)
	assert.Equal(t, "the quick brown fox", results.Items[0].Content)
}

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		panic(err)
	}
	return t
}
