// Package reconsolidation implements the labile-window state machine:
// retrieval marks an item labile for a configured window, during
// which bounded modifications accumulate before reconsolidate finalizes
// them. The manager is purely in-memory and single-tenant per instance —
// callers construct one Manager per tenant, or key externally.
package reconsolidation

import (
	"sort"
	"time"

	"github.com/morphexe/vestige/internal/types"
)

// maxModifications is the per-record cap on pending modifications.
const maxModifications = 10

// retrievalHistoryWindow bounds how long a retrieval timestamp is kept
// for the co_retrieved inspector.
const retrievalHistoryWindow = 30 * 24 * time.Hour

// Manager owns the labile table and retrieval history for one tenant:
// owned storage in a single manager object rather than a free-floating
// map the caller must synchronize; every mutation goes through a
// Manager method.
type Manager struct {
	window  time.Duration
	records map[string]*types.LabileRecord

	// retrievals maps item id -> ordered retrieval timestamps, used by
	// co_retrieved to find items accessed within the same short window.
	retrievals map[string][]time.Time

	now func() time.Time
}

// New constructs a Manager with the given labile window
// (labile_window_ms, default 5 minutes).
func New(window time.Duration) *Manager {
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &Manager{
		window:     window,
		records:    make(map[string]*types.LabileRecord),
		retrievals: make(map[string][]time.Time),
		now:        time.Now,
	}
}

// MarkLabile registers a labile record for id, replacing any existing
// one, and logs the retrieval for co_retrieved purposes.
func (m *Manager) MarkLabile(id string, snapshot types.KnowledgeItem, context string) {
	now := m.now()
	m.records[id] = &types.LabileRecord{
		ItemID:        id,
		AccessedAt:    now,
		Snapshot:      snapshot,
		AccessContext: context,
	}
	m.recordRetrieval(id, now)
}

func (m *Manager) recordRetrieval(id string, at time.Time) {
	cutoff := at.Add(-retrievalHistoryWindow)
	hist := m.retrievals[id]
	trimmed := hist[:0]
	for _, t := range hist {
		if t.After(cutoff) {
			trimmed = append(trimmed, t)
		}
	}
	m.retrievals[id] = append(trimmed, at)
}

// IsLabile reports whether id has a non-expired labile record.
func (m *Manager) IsLabile(id string) bool {
	rec, ok := m.records[id]
	if !ok || rec.Reconsolidated {
		return false
	}
	return m.now().Sub(rec.AccessedAt) < m.window
}

// ApplyModification appends mod to id's labile record. Returns false, not
// an error, if id is not labile or the record already holds
// maxModifications entries.
func (m *Manager) ApplyModification(id string, mod types.Modification) bool {
	if !m.IsLabile(id) {
		return false
	}
	rec := m.records[id]
	if len(rec.Modifications) >= maxModifications {
		return false
	}
	if mod.AppliedAt.IsZero() {
		mod.AppliedAt = m.now()
	}
	rec.Modifications = append(rec.Modifications, mod)
	return true
}

// Result summarizes a finalized reconsolidation: the applied
// modifications and a change-summary struct.
type Result struct {
	ItemID        string
	Modifications []types.Modification
	Changes       ChangeSummary
}

// ChangeSummary tallies what kinds of edits a reconsolidation applied, so
// a caller can decide whether to re-embed, re-score sentiment, etc.
// without re-walking Modifications.
type ChangeSummary struct {
	ContentChanged    bool
	TagsAdded         []string
	TagsRemoved       []string
	ConnectionsLinked int
	EmotionChanged    bool
	SourcesAdded      int
}

// Reconsolidate removes id's labile record and returns a summary of what
// was applied. Idempotent: a second call for the same id (already
// finalized, or never labile) returns nil.
func (m *Manager) Reconsolidate(id string) *Result {
	rec, ok := m.records[id]
	if !ok || rec.Reconsolidated {
		return nil
	}
	result := summarize(rec)
	rec.Reconsolidated = true
	delete(m.records, id)
	return result
}

// ReconsolidateExpired finalizes every record whose window has elapsed,
// returning their results in AccessedAt order (oldest first).
func (m *Manager) ReconsolidateExpired() []*Result {
	now := m.now()
	var expired []string
	for id, rec := range m.records {
		if !rec.Reconsolidated && now.Sub(rec.AccessedAt) >= m.window {
			expired = append(expired, id)
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		return m.records[expired[i]].AccessedAt.Before(m.records[expired[j]].AccessedAt)
	})
	results := make([]*Result, 0, len(expired))
	for _, id := range expired {
		if r := m.Reconsolidate(id); r != nil {
			results = append(results, r)
		}
	}
	return results
}

func summarize(rec *types.LabileRecord) *Result {
	changes := ChangeSummary{}
	for _, mod := range rec.Modifications {
		switch mod.Kind {
		case types.ModUpdateContent:
			changes.ContentChanged = true
		case types.ModAddTag:
			changes.TagsAdded = append(changes.TagsAdded, mod.Tag)
		case types.ModRemoveTag:
			changes.TagsRemoved = append(changes.TagsRemoved, mod.Tag)
		case types.ModStrengthenConnection, types.ModLinkMemory:
			changes.ConnectionsLinked++
		case types.ModUpdateEmotion:
			changes.EmotionChanged = true
		case types.ModAddSource:
			changes.SourcesAdded++
		}
	}
	return &Result{
		ItemID:        rec.ItemID,
		Modifications: rec.Modifications,
		Changes:       changes,
	}
}

// CoRetrieved returns the other item ids retrieved within window of any
// retrieval timestamp recorded for id, used to surface co-occurring
// memories.
func (m *Manager) CoRetrieved(id string, window time.Duration) []string {
	times := m.retrievals[id]
	if len(times) == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for other, otherTimes := range m.retrievals {
		if other == id {
			continue
		}
		if coOccurs(times, otherTimes, window) {
			if _, dup := seen[other]; !dup {
				seen[other] = struct{}{}
				out = append(out, other)
			}
		}
	}
	sort.Strings(out)
	return out
}

func coOccurs(a, b []time.Time, window time.Duration) bool {
	for _, ta := range a {
		for _, tb := range b {
			d := ta.Sub(tb)
			if d < 0 {
				d = -d
			}
			if d <= window {
				return true
			}
		}
	}
	return false
}
