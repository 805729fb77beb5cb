package consolidation

import (
	"time"

	"github.com/morphexe/vestige/internal/types"
)

// Config collects the consolidation engine's tunables.
type Config struct {
	Selection           SelectionConfig
	ReplayStrengthBoost float64
	ConnectionThreshold float64
}

// DefaultConfig returns the defaults.
func DefaultConfig() Config {
	return Config{
		Selection:           DefaultSelectionConfig(),
		ReplayStrengthBoost: 0.1,
		ConnectionThreshold: 0.6,
	}
}

// CycleResult is the full output of one consolidation cycle. Tick is
// populated by the caller after RunCycle returns — RunCycle itself only
// covers selection, replay, and insight discovery.
type CycleResult struct {
	Phase    Phase
	Selected []*types.KnowledgeItem
	Replays  []ReplayEvent
	Insights []Insight
	Tick     TickSummary
	DryRun   bool
}

// RunCycle selects candidates, replays/strengthens them, and runs
// pattern + connection discovery over the selection.
func RunCycle(phase Phase, candidates []*types.KnowledgeItem, now time.Time, cfg Config) CycleResult {
	selected := Select(candidates, now, cfg.Selection)
	replays := Replay(selected, cfg.ReplayStrengthBoost)

	insights := make([]Insight, 0)
	insights = append(insights, DetectPatterns(selected)...)
	insights = append(insights, DiscoverConnections(selected, cfg.ConnectionThreshold)...)

	return CycleResult{
		Phase:    phase,
		Selected: selected,
		Replays:  replays,
		Insights: insights,
	}
}
