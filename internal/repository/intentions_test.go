package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morphexe/vestige/internal/types"
)

func TestCreateIntentionAssignsDefaults(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	in, err := r.CreateIntention(ctx, &types.Intention{TenantID: "tenant-a", Content: "follow up", TriggerType: "time"})
	require.NoError(t, err)
	assert.NotEmpty(t, in.ID)
	assert.Equal(t, types.IntentionActive, in.Status)
	assert.Equal(t, types.PriorityNormal, in.Priority)
}

func TestListIntentionsFiltersByStatus(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	active, err := r.CreateIntention(ctx, &types.Intention{TenantID: "tenant-a", Content: "a", TriggerType: "time"})
	require.NoError(t, err)
	cancelled, err := r.CreateIntention(ctx, &types.Intention{TenantID: "tenant-a", Content: "b", TriggerType: "time"})
	require.NoError(t, err)
	ok, err := r.CancelIntention(ctx, cancelled.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	list, err := r.ListIntentions(ctx, types.IntentionActive)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, active.ID, list[0].ID)
}

func TestCompleteIntentionSetsFulfilledAt(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	in, err := r.CreateIntention(ctx, &types.Intention{TenantID: "tenant-a", Content: "a", TriggerType: "time"})
	require.NoError(t, err)

	now := time.Now().UTC()
	ok, err := r.CompleteIntention(ctx, in.ID, now)
	require.NoError(t, err)
	assert.True(t, ok)

	list, err := r.ListIntentions(ctx, types.IntentionFulfilled)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].FulfilledAt)
}

func TestCompleteIntentionTwiceFailsSecondTime(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)

	in, err := r.CreateIntention(ctx, &types.Intention{TenantID: "tenant-a", Content: "a", TriggerType: "time"})
	require.NoError(t, err)

	ok, err := r.CompleteIntention(ctx, in.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.CompleteIntention(ctx, in.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}
