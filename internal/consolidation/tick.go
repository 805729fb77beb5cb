package consolidation

import (
	"math"
	"time"

	"github.com/morphexe/vestige/internal/types"
)

// TickAction classifies what consolidate_tick did to one item.
type TickAction string

const (
	TickPromoted TickAction = "promoted"
	TickDecayed  TickAction = "decayed"
	TickPruned   TickAction = "pruned"
	TickNoChange TickAction = "no_change"
)

// TickResult is the per-item outcome of a tick pass.
type TickResult struct {
	ItemID              string
	Action              TickAction
	NewRetrievalStrength float64
	NewRetentionStrength float64
}

// pruneThreshold and updateEpsilon are the tick constants.
const (
	pruneThreshold = 0.05
	updateEpsilon  = 0.01
)

// Tick computes the decay/promotion/pruning outcome for a single item at
// evaluation time now, without mutating it — the caller applies the
// result (or not, under dry_run) via the repository.
func Tick(item *types.KnowledgeItem, now time.Time) TickResult {
	daysSince := now.Sub(lastAccess(item)).Hours() / 24
	if daysSince < 0 {
		daysSince = 0
	}

	newRetrieval := math.Max(0.1, math.Exp(-daysSince/math.Max(item.Stability, 1e-6)))
	newRetention := 0.7*newRetrieval + 0.3*math.Min(1, item.StorageStrength/10)

	result := TickResult{
		ItemID:               item.ID,
		NewRetrievalStrength: newRetrieval,
		NewRetentionStrength: newRetention,
	}

	switch {
	case newRetention < pruneThreshold:
		result.Action = TickPruned
	case math.Abs(newRetention-item.RetentionStrength) > updateEpsilon:
		if newRetention > item.RetentionStrength {
			result.Action = TickPromoted
		} else {
			result.Action = TickDecayed
		}
	default:
		result.Action = TickNoChange
	}
	return result
}

func lastAccess(item *types.KnowledgeItem) time.Time {
	if item.LastAccessedAt != nil {
		return *item.LastAccessedAt
	}
	return item.CreatedAt
}

// TickSummary tallies a batch tick pass. RunTick itself never writes;
// applying (or skipping, under dry_run) the persistence is the caller's
// responsibility.
type TickSummary struct {
	Promoted int
	Decayed  int
	Pruned   int
	Results  []TickResult
}

// RunTick evaluates Tick over every item and tallies the outcome.
func RunTick(items []*types.KnowledgeItem, now time.Time) TickSummary {
	summary := TickSummary{Results: make([]TickResult, 0, len(items))}
	for _, item := range items {
		r := Tick(item, now)
		summary.Results = append(summary.Results, r)
		switch r.Action {
		case TickPromoted:
			summary.Promoted++
		case TickDecayed:
			summary.Decayed++
		case TickPruned:
			summary.Pruned++
		}
	}
	return summary
}

// NextCycleTime heuristically picks when the next consolidation cycle
// should run: if at least 5 items sit in the 1-7 day recency
// band, run again in an hour; else wait for the oldest sub-1-day item to
// turn 24h old; else default to +8h.
func NextCycleTime(items []*types.KnowledgeItem, now time.Time) time.Time {
	band := 0
	var oldestSubDay *time.Time
	for _, item := range items {
		accessedAt := lastAccess(item)
		days := now.Sub(accessedAt).Hours() / 24
		if days >= 1 && days <= 7 {
			band++
		}
		if days < 1 {
			if oldestSubDay == nil || accessedAt.Before(*oldestSubDay) {
				t := accessedAt
				oldestSubDay = &t
			}
		}
	}

	if band >= 5 {
		return now.Add(time.Hour)
	}
	if oldestSubDay != nil {
		return oldestSubDay.Add(24 * time.Hour)
	}
	return now.Add(8 * time.Hour)
}
