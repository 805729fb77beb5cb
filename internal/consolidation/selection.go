// Package consolidation implements the consolidation engine:
// cycle-based replay/strengthening, pattern and connection discovery
// over a scored selection of items, and an independent decay/promotion/
// pruning tick.
package consolidation

import (
	"math"
	"time"

	"github.com/morphexe/vestige/internal/types"
)

// Phase is the current stage of a consolidation cycle.
type Phase string

const (
	PhaseLight Phase = "light"
	PhaseDeep  Phase = "deep"
	PhaseREM   Phase = "rem"
	PhaseWake  Phase = "wake"
)

// SelectionConfig bounds how many candidates a cycle selects.
type SelectionConfig struct {
	MinSelected int
	MaxSelected int
}

// DefaultSelectionConfig returns the defaults (5, 50).
func DefaultSelectionConfig() SelectionConfig {
	return SelectionConfig{MinSelected: 5, MaxSelected: 50}
}

// importance proxies the undefined "importance" term with item
// Confidence — the one field that tracks how well-established a
// memory is, and the only candidate input Score doesn't already cover
// via recency/access. See DESIGN.md for the reasoning behind this
// choice.
func importance(item *types.KnowledgeItem) float64 {
	return item.Confidence
}

// recency scores days-since-access: peaks at 1-3 days
// (1.0), drops to 0.5 for same-day access, decays linearly from 7 to 37
// days down to 0.2, and holds 0.2 beyond 37 days.
func recency(daysSinceAccess float64) float64 {
	switch {
	case daysSinceAccess < 1:
		return 0.5
	case daysSinceAccess <= 3:
		return 1.0
	case daysSinceAccess <= 7:
		return 1.0
	case daysSinceAccess <= 37:
		frac := (daysSinceAccess - 7) / (37 - 7)
		return 1.0 - frac*(1.0-0.2)
	default:
		return 0.2
	}
}

func accessScore(accessCount int) float64 {
	return 1.0 / (1.0 + 0.1*float64(accessCount))
}

// Score computes the selection priority for item at evaluation time now.
func Score(item *types.KnowledgeItem, now time.Time) float64 {
	days := 0.0
	if item.LastAccessedAt != nil {
		days = now.Sub(*item.LastAccessedAt).Hours() / 24
	} else {
		days = now.Sub(item.CreatedAt).Hours() / 24
	}
	return 0.4*importance(item) + 0.3*recency(days) + 0.3*accessScore(item.AccessCount)
}

func clampInt(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// Select scores and sorts candidates, returning the top
// clamp(floor(0.1*|candidates|), min, max) of them.
func Select(candidates []*types.KnowledgeItem, now time.Time, cfg SelectionConfig) []*types.KnowledgeItem {
	if len(candidates) == 0 {
		return nil
	}
	scored := make([]*types.KnowledgeItem, len(candidates))
	copy(scored, candidates)
	scores := make(map[string]float64, len(scored))
	for _, item := range scored {
		scores[item.ID] = Score(item, now)
	}
	sortByScoreDesc(scored, scores)

	n := clampInt(int(math.Floor(0.1*float64(len(candidates)))), cfg.MinSelected, cfg.MaxSelected)
	if n > len(scored) {
		n = len(scored)
	}
	return scored[:n]
}

func sortByScoreDesc(items []*types.KnowledgeItem, scores map[string]float64) {
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && scores[items[j].ID] > scores[items[j-1].ID]; j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}
