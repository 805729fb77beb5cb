// Package chain implements the in-memory memory chain manager: ordered
// item sequences with typed links, plus a reverse index from item to
// the chains it participates in.
package chain

import (
	"errors"
	"sort"

	"github.com/google/uuid"

	"github.com/morphexe/vestige/internal/types"
)

var (
	// ErrNotFound is returned when a chain id is unknown.
	ErrNotFound = errors.New("chain: not found")
	// ErrItemNotInChain is returned when an operation names an item the
	// chain does not contain.
	ErrItemNotInChain = errors.New("chain: item not in chain")
	// ErrDuplicateItem is returned when add/prepend would introduce a
	// duplicate item id.
	ErrDuplicateItem = errors.New("chain: item already in chain")
)

// DefaultLinkType is used when Remove rewires neighbors without a more
// specific relation available.
const DefaultLinkType = types.EdgeRelatesTo

// Manager owns every chain for one tenant and the reverse index from
// item id to chain ids: a single owner for mutation-heavy
// graph-shaped data.
type Manager struct {
	chains  map[string]*types.Chain
	byItem  map[string]map[string]struct{} // item id -> set of chain ids
}

// New constructs an empty Manager.
func New() *Manager {
	return &Manager{
		chains: make(map[string]*types.Chain),
		byItem: make(map[string]map[string]struct{}),
	}
}

// Create starts a new chain with a single seed item.
func (m *Manager) Create(tenantID, name string, chainType types.ChainType, seedItemID string) *types.Chain {
	c := &types.Chain{
		ID:       uuid.NewString(),
		TenantID: tenantID,
		Name:     name,
		Type:     chainType,
		ItemIDs:  []string{seedItemID},
		HeadID:   seedItemID,
		TailID:   seedItemID,
	}
	m.chains[c.ID] = c
	m.index(c.ID, seedItemID)
	return c
}

func (m *Manager) index(chainID, itemID string) {
	set, ok := m.byItem[itemID]
	if !ok {
		set = make(map[string]struct{})
		m.byItem[itemID] = set
	}
	set[chainID] = struct{}{}
}

func (m *Manager) unindex(chainID, itemID string) {
	if set, ok := m.byItem[itemID]; ok {
		delete(set, chainID)
		if len(set) == 0 {
			delete(m.byItem, itemID)
		}
	}
}

func contains(ids []string, id string) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

// Add appends itemID to the chain, or inserts it immediately after
// afterID when afterID is non-empty.
func (m *Manager) Add(chainID, itemID, afterID string, linkType types.EdgeType) error {
	c, ok := m.chains[chainID]
	if !ok {
		return ErrNotFound
	}
	if contains(c.ItemIDs, itemID) {
		return ErrDuplicateItem
	}

	if afterID == "" {
		if c.TailID != "" {
			c.Links = append(c.Links, types.ChainLink{Source: c.TailID, Target: itemID, Type: linkType})
		}
		c.ItemIDs = append(c.ItemIDs, itemID)
		c.TailID = itemID
	} else {
		idx := indexOf(c.ItemIDs, afterID)
		if idx < 0 {
			return ErrItemNotInChain
		}
		newIDs := make([]string, 0, len(c.ItemIDs)+1)
		newIDs = append(newIDs, c.ItemIDs[:idx+1]...)
		newIDs = append(newIDs, itemID)
		newIDs = append(newIDs, c.ItemIDs[idx+1:]...)

		var nextSource string
		if idx+1 < len(c.ItemIDs) {
			nextSource = c.ItemIDs[idx+1]
		}
		c.Links = rewireInsert(c.Links, afterID, nextSource, itemID, linkType)
		c.ItemIDs = newIDs
		if afterID == c.TailID {
			c.TailID = itemID
		}
	}
	if len(c.ItemIDs) == 1 {
		c.HeadID = itemID
	}
	m.index(chainID, itemID)
	return nil
}

func rewireInsert(links []types.ChainLink, after, next, inserted string, linkType types.EdgeType) []types.ChainLink {
	out := make([]types.ChainLink, 0, len(links)+2)
	for _, l := range links {
		if next != "" && l.Source == after && l.Target == next {
			continue
		}
		out = append(out, l)
	}
	out = append(out, types.ChainLink{Source: after, Target: inserted, Type: linkType})
	if next != "" {
		out = append(out, types.ChainLink{Source: inserted, Target: next, Type: linkType})
	}
	return out
}

func indexOf(ids []string, id string) int {
	for i, x := range ids {
		if x == id {
			return i
		}
	}
	return -1
}

// Prepend inserts itemID before the current head.
func (m *Manager) Prepend(chainID, itemID string, linkType types.EdgeType) error {
	c, ok := m.chains[chainID]
	if !ok {
		return ErrNotFound
	}
	if contains(c.ItemIDs, itemID) {
		return ErrDuplicateItem
	}
	if c.HeadID != "" {
		c.Links = append([]types.ChainLink{{Source: itemID, Target: c.HeadID, Type: linkType}}, c.Links...)
	}
	c.ItemIDs = append([]string{itemID}, c.ItemIDs...)
	c.HeadID = itemID
	if len(c.ItemIDs) == 1 {
		c.TailID = itemID
	}
	m.index(chainID, itemID)
	return nil
}

// Remove deletes itemID from the chain, rewiring its former neighbors
// together with DefaultLinkType.
func (m *Manager) Remove(chainID, itemID string) error {
	c, ok := m.chains[chainID]
	if !ok {
		return ErrNotFound
	}
	idx := indexOf(c.ItemIDs, itemID)
	if idx < 0 {
		return ErrItemNotInChain
	}

	var prev, next string
	if idx > 0 {
		prev = c.ItemIDs[idx-1]
	}
	if idx+1 < len(c.ItemIDs) {
		next = c.ItemIDs[idx+1]
	}

	filtered := make([]types.ChainLink, 0, len(c.Links))
	for _, l := range c.Links {
		if l.Source == itemID || l.Target == itemID {
			continue
		}
		filtered = append(filtered, l)
	}
	if prev != "" && next != "" {
		filtered = append(filtered, types.ChainLink{Source: prev, Target: next, Type: DefaultLinkType})
	}
	c.Links = filtered

	c.ItemIDs = append(c.ItemIDs[:idx], c.ItemIDs[idx+1:]...)
	if c.HeadID == itemID {
		c.HeadID = prev
		if prev == "" {
			c.HeadID = next
		}
	}
	if c.TailID == itemID {
		c.TailID = next
		if next == "" {
			c.TailID = prev
		}
	}
	m.unindex(chainID, itemID)
	return nil
}

// Length returns the number of items in the chain.
func (m *Manager) Length(chainID string) (int, error) {
	c, ok := m.chains[chainID]
	if !ok {
		return 0, ErrNotFound
	}
	return len(c.ItemIDs), nil
}

// Next returns the item following itemID in traversal order, or "" at
// the tail.
func (m *Manager) Next(chainID, itemID string) (string, error) {
	c, ok := m.chains[chainID]
	if !ok {
		return "", ErrNotFound
	}
	idx := indexOf(c.ItemIDs, itemID)
	if idx < 0 {
		return "", ErrItemNotInChain
	}
	if idx+1 >= len(c.ItemIDs) {
		return "", nil
	}
	return c.ItemIDs[idx+1], nil
}

// Previous returns the item preceding itemID, or "" at the head.
func (m *Manager) Previous(chainID, itemID string) (string, error) {
	c, ok := m.chains[chainID]
	if !ok {
		return "", ErrNotFound
	}
	idx := indexOf(c.ItemIDs, itemID)
	if idx < 0 {
		return "", ErrItemNotInChain
	}
	if idx == 0 {
		return "", nil
	}
	return c.ItemIDs[idx-1], nil
}

// Traverse walks the chain from start in the given direction, up to
// limit items (0 = no limit).
func (m *Manager) Traverse(chainID, start string, forward bool, limit int) ([]string, error) {
	c, ok := m.chains[chainID]
	if !ok {
		return nil, ErrNotFound
	}
	idx := indexOf(c.ItemIDs, start)
	if idx < 0 {
		return nil, ErrItemNotInChain
	}

	var out []string
	if forward {
		for i := idx; i < len(c.ItemIDs); i++ {
			out = append(out, c.ItemIDs[i])
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	} else {
		for i := idx; i >= 0; i-- {
			out = append(out, c.ItemIDs[i])
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// Delete removes an entire chain and its reverse-index entries.
func (m *Manager) Delete(chainID string) error {
	c, ok := m.chains[chainID]
	if !ok {
		return ErrNotFound
	}
	for _, id := range c.ItemIDs {
		m.unindex(chainID, id)
	}
	delete(m.chains, chainID)
	return nil
}

// Get returns the chain by id.
func (m *Manager) Get(chainID string) (*types.Chain, error) {
	c, ok := m.chains[chainID]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

// GetChainsForItem returns every chain containing itemID, via the
// reverse index.
func (m *Manager) GetChainsForItem(itemID string) []*types.Chain {
	set, ok := m.byItem[itemID]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*types.Chain, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.chains[id])
	}
	return out
}

// Merge appends b's items onto a (or vice versa if append is false),
// producing a single chain and deleting the consumed one. Duplicate
// items (present in both) are dropped from the consumed chain before
// merging, preserving the no-duplicate-item invariant.
func (m *Manager) Merge(aID, bID string, appendB bool) (*types.Chain, error) {
	a, ok := m.chains[aID]
	if !ok {
		return nil, ErrNotFound
	}
	b, ok := m.chains[bID]
	if !ok {
		return nil, ErrNotFound
	}

	aSet := make(map[string]struct{}, len(a.ItemIDs))
	for _, id := range a.ItemIDs {
		aSet[id] = struct{}{}
	}
	var bItems []string
	for _, id := range b.ItemIDs {
		if _, dup := aSet[id]; !dup {
			bItems = append(bItems, id)
		}
	}

	if appendB {
		if a.TailID != "" && len(bItems) > 0 {
			a.Links = append(a.Links, types.ChainLink{Source: a.TailID, Target: bItems[0], Type: DefaultLinkType})
		}
		a.ItemIDs = append(a.ItemIDs, bItems...)
		if len(bItems) > 0 {
			a.TailID = bItems[len(bItems)-1]
		}
	} else {
		if a.HeadID != "" && len(bItems) > 0 {
			a.Links = append(a.Links, types.ChainLink{Source: bItems[len(bItems)-1], Target: a.HeadID, Type: DefaultLinkType})
		}
		a.ItemIDs = append(bItems, a.ItemIDs...)
		if len(bItems) > 0 {
			a.HeadID = bItems[0]
		}
	}
	a.Links = append(a.Links, b.Links...)

	for _, id := range b.ItemIDs {
		m.unindex(bID, id)
	}
	for _, id := range bItems {
		m.index(aID, id)
	}
	delete(m.chains, bID)
	return a, nil
}

// Split divides the chain at itemID: items up to and including itemID
// stay in the original chain; everything after becomes a new chain.
func (m *Manager) Split(chainID, itemID string) (*types.Chain, error) {
	c, ok := m.chains[chainID]
	if !ok {
		return nil, ErrNotFound
	}
	idx := indexOf(c.ItemIDs, itemID)
	if idx < 0 {
		return nil, ErrItemNotInChain
	}
	if idx == len(c.ItemIDs)-1 {
		return nil, nil // nothing to split off
	}

	tailItems := append([]string(nil), c.ItemIDs[idx+1:]...)
	c.ItemIDs = c.ItemIDs[:idx+1]
	c.TailID = itemID

	// A link that crosses the split point belongs to neither chain and is
	// dropped.
	var keptLinks, movedLinks []types.ChainLink
	for _, l := range c.Links {
		switch {
		case contains(c.ItemIDs, l.Source) && contains(c.ItemIDs, l.Target):
			keptLinks = append(keptLinks, l)
		case contains(tailItems, l.Source) && contains(tailItems, l.Target):
			movedLinks = append(movedLinks, l)
		}
	}
	c.Links = keptLinks

	newChain := &types.Chain{
		ID:       uuid.NewString(),
		TenantID: c.TenantID,
		Name:     c.Name + " (split)",
		Type:     c.Type,
		ItemIDs:  tailItems,
		Links:    movedLinks,
		HeadID:   tailItems[0],
		TailID:   tailItems[len(tailItems)-1],
	}
	m.chains[newChain.ID] = newChain
	for _, id := range tailItems {
		m.unindex(chainID, id)
		m.index(newChain.ID, id)
	}
	return newChain, nil
}
