package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morphexe/vestige/internal/types"
)

func TestCreateSeedsHeadAndTail(t *testing.T) {
	m := New()
	c := m.Create("t1", "chain one", types.ChainTemporal, "a")
	assert.Equal(t, "a", c.HeadID)
	assert.Equal(t, "a", c.TailID)
	assert.Equal(t, []string{"a"}, c.ItemIDs)
}

func TestAddAppendsAndLinksTail(t *testing.T) {
	m := New()
	c := m.Create("t1", "chain", types.ChainTemporal, "a")
	require.NoError(t, m.Add(c.ID, "b", "", types.EdgeRelatesTo))
	require.NoError(t, m.Add(c.ID, "c", "", types.EdgeRelatesTo))

	assert.Equal(t, []string{"a", "b", "c"}, c.ItemIDs)
	assert.Equal(t, "c", c.TailID)
	assert.Equal(t, "a", c.HeadID)
	require.Len(t, c.Links, 2)
	assert.Equal(t, "a", c.Links[0].Source)
	assert.Equal(t, "b", c.Links[0].Target)
}

func TestAddAfterSpecificItemInsertsMidChain(t *testing.T) {
	m := New()
	c := m.Create("t1", "chain", types.ChainTemporal, "a")
	require.NoError(t, m.Add(c.ID, "c", "", types.EdgeRelatesTo))
	require.NoError(t, m.Add(c.ID, "b", "a", types.EdgeRelatesTo))

	assert.Equal(t, []string{"a", "b", "c"}, c.ItemIDs)
	assert.Equal(t, "c", c.TailID)
}

func TestAddRejectsDuplicateItem(t *testing.T) {
	m := New()
	c := m.Create("t1", "chain", types.ChainTemporal, "a")
	err := m.Add(c.ID, "a", "", types.EdgeRelatesTo)
	assert.ErrorIs(t, err, ErrDuplicateItem)
}

func TestPrependInsertsBeforeHead(t *testing.T) {
	m := New()
	c := m.Create("t1", "chain", types.ChainTemporal, "b")
	require.NoError(t, m.Prepend(c.ID, "a", types.EdgeRelatesTo))

	assert.Equal(t, []string{"a", "b"}, c.ItemIDs)
	assert.Equal(t, "a", c.HeadID)
	assert.Equal(t, "b", c.TailID)
}

func TestRemoveRewiresNeighbors(t *testing.T) {
	m := New()
	c := m.Create("t1", "chain", types.ChainTemporal, "a")
	require.NoError(t, m.Add(c.ID, "b", "", types.EdgeRelatesTo))
	require.NoError(t, m.Add(c.ID, "c", "", types.EdgeRelatesTo))

	require.NoError(t, m.Remove(c.ID, "b"))
	assert.Equal(t, []string{"a", "c"}, c.ItemIDs)
	require.Len(t, c.Links, 1)
	assert.Equal(t, "a", c.Links[0].Source)
	assert.Equal(t, "c", c.Links[0].Target)
	assert.Equal(t, DefaultLinkType, c.Links[0].Type)
}

func TestRemoveHeadUpdatesHeadID(t *testing.T) {
	m := New()
	c := m.Create("t1", "chain", types.ChainTemporal, "a")
	require.NoError(t, m.Add(c.ID, "b", "", types.EdgeRelatesTo))

	require.NoError(t, m.Remove(c.ID, "a"))
	assert.Equal(t, "b", c.HeadID)
	assert.Equal(t, "b", c.TailID)
}

func TestTraverseForwardAndBackwardWithLimit(t *testing.T) {
	m := New()
	c := m.Create("t1", "chain", types.ChainTemporal, "a")
	require.NoError(t, m.Add(c.ID, "b", "", types.EdgeRelatesTo))
	require.NoError(t, m.Add(c.ID, "c", "", types.EdgeRelatesTo))
	require.NoError(t, m.Add(c.ID, "d", "", types.EdgeRelatesTo))

	fwd, err := m.Traverse(c.ID, "b", true, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, fwd)

	back, err := m.Traverse(c.ID, "c", false, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, back)
}

func TestNextAndPreviousAtEdgesReturnEmpty(t *testing.T) {
	m := New()
	c := m.Create("t1", "chain", types.ChainTemporal, "a")
	require.NoError(t, m.Add(c.ID, "b", "", types.EdgeRelatesTo))

	next, err := m.Next(c.ID, "b")
	require.NoError(t, err)
	assert.Equal(t, "", next)

	prev, err := m.Previous(c.ID, "a")
	require.NoError(t, err)
	assert.Equal(t, "", prev)
}

func TestLengthReflectsItemCount(t *testing.T) {
	m := New()
	c := m.Create("t1", "chain", types.ChainTemporal, "a")
	require.NoError(t, m.Add(c.ID, "b", "", types.EdgeRelatesTo))

	n, err := m.Length(c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestGetChainsForItemUsesReverseIndex(t *testing.T) {
	m := New()
	c1 := m.Create("t1", "chain1", types.ChainTemporal, "shared")
	c2 := m.Create("t1", "chain2", types.ChainCausal, "shared")

	chains := m.GetChainsForItem("shared")
	require.Len(t, chains, 2)
	ids := []string{chains[0].ID, chains[1].ID}
	assert.Contains(t, ids, c1.ID)
	assert.Contains(t, ids, c2.ID)
}

func TestRemoveCleansUpReverseIndex(t *testing.T) {
	m := New()
	c := m.Create("t1", "chain", types.ChainTemporal, "a")
	require.NoError(t, m.Remove(c.ID, "a"))
	assert.Empty(t, m.GetChainsForItem("a"))
}

func TestMergeAppendCombinesItemsAndDropsDuplicates(t *testing.T) {
	m := New()
	a := m.Create("t1", "a", types.ChainTemporal, "1")
	require.NoError(t, m.Add(a.ID, "2", "", types.EdgeRelatesTo))
	b := m.Create("t1", "b", types.ChainTemporal, "2")
	require.NoError(t, m.Add(b.ID, "3", "", types.EdgeRelatesTo))

	merged, err := m.Merge(a.ID, b.ID, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, merged.ItemIDs)
	assert.Equal(t, "3", merged.TailID)

	_, err = m.Get(b.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMergePrependCombinesInReverseOrder(t *testing.T) {
	m := New()
	a := m.Create("t1", "a", types.ChainTemporal, "2")
	require.NoError(t, m.Add(a.ID, "3", "", types.EdgeRelatesTo))
	b := m.Create("t1", "b", types.ChainTemporal, "1")

	merged, err := m.Merge(a.ID, b.ID, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, merged.ItemIDs)
	assert.Equal(t, "1", merged.HeadID)
}

func TestSplitDividesChainAtItem(t *testing.T) {
	m := New()
	c := m.Create("t1", "chain", types.ChainTemporal, "a")
	require.NoError(t, m.Add(c.ID, "b", "", types.EdgeRelatesTo))
	require.NoError(t, m.Add(c.ID, "c", "", types.EdgeRelatesTo))
	require.NoError(t, m.Add(c.ID, "d", "", types.EdgeRelatesTo))

	newChain, err := m.Split(c.ID, "b")
	require.NoError(t, err)
	require.NotNil(t, newChain)

	assert.Equal(t, []string{"a", "b"}, c.ItemIDs)
	assert.Equal(t, "b", c.TailID)
	assert.Equal(t, []string{"c", "d"}, newChain.ItemIDs)
	assert.Equal(t, "c", newChain.HeadID)
	assert.Equal(t, "d", newChain.TailID)
}

func TestSplitAtTailReturnsNilNewChain(t *testing.T) {
	m := New()
	c := m.Create("t1", "chain", types.ChainTemporal, "a")
	require.NoError(t, m.Add(c.ID, "b", "", types.EdgeRelatesTo))

	newChain, err := m.Split(c.ID, "b")
	require.NoError(t, err)
	assert.Nil(t, newChain)
}

func TestDeleteRemovesChainAndReverseIndex(t *testing.T) {
	m := New()
	c := m.Create("t1", "chain", types.ChainTemporal, "a")
	require.NoError(t, m.Delete(c.ID))

	_, err := m.Get(c.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, m.GetChainsForItem("a"))
}
