package gate

import "sort"

// Decision is the routing outcome of Decide.
type Decision string

const (
	DecisionSkip              Decision = "skip"
	DecisionFlagContradiction Decision = "flag_contradiction"
	DecisionUpdate            Decision = "update"
	DecisionMerge             Decision = "merge"
	DecisionCreate            Decision = "create"
)

// SuggestedAction is one of the ordered follow-ups a Result recommends.
type SuggestedAction string

const (
	ActionCreateMemory         SuggestedAction = "create_memory"
	ActionAddContext           SuggestedAction = "add_context"
	ActionLinkMemories         SuggestedAction = "link_memories"
	ActionMarkSuperseded       SuggestedAction = "mark_superseded"
	ActionMergeMemories        SuggestedAction = "merge_memories"
	ActionAddContradictionFlag SuggestedAction = "add_contradiction_flag"
	ActionSkip                 SuggestedAction = "skip"
)

// Thresholds configures Decide's decision boundaries.
type Thresholds struct {
	Dup                   float64
	Update                float64
	Merge                 float64
	MinMergeCount         int
	PreferUpdate          bool
	ContradictionsEnabled bool
}

// DefaultThresholds returns the default decision thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Dup:                   0.95,
		Update:                0.70,
		Merge:                 0.60,
		MinMergeCount:         2,
		PreferUpdate:          false,
		ContradictionsEnabled: true,
	}
}

// Candidate is one existing memory considered against an incoming item.
type Candidate struct {
	ID   string
	Item Comparable
}

// Result is Decide's full output.
type Result struct {
	Decision         Decision
	PredictionError  float64
	TargetMemoryIDs  []string
	SuggestedActions []SuggestedAction
	Contradiction    ContradictionKind
}

// Gate evaluates incoming candidates against existing memories and keeps
// a bounded decision history for stats.
type Gate struct {
	thresholds Thresholds
	detector   ContradictionDetector
	history    []Result
}

const maxHistory = 1000

// New constructs a Gate with the given thresholds and contradiction
// detector. Passing a nil detector installs HeuristicDetector.
func New(thresholds Thresholds, detector ContradictionDetector) *Gate {
	if detector == nil {
		detector = HeuristicDetector{}
	}
	return &Gate{thresholds: thresholds, detector: detector}
}

type scored struct {
	Candidate
	sim float64
}

// Decide implements the decision table.
func (g *Gate) Decide(incoming Comparable, candidates []Candidate) Result {
	if len(candidates) == 0 {
		result := Result{
			Decision:         DecisionCreate,
			PredictionError:  1,
			SuggestedActions: []SuggestedAction{ActionCreateMemory},
		}
		g.record(result)
		return result
	}

	scoredList := make([]scored, len(candidates))
	for i, c := range candidates {
		scoredList[i] = scored{Candidate: c, sim: Similarity(incoming, c.Item)}
	}
	sort.SliceStable(scoredList, func(i, j int) bool { return scoredList[i].sim > scoredList[j].sim })

	top := scoredList[0]
	maxSim := top.sim
	predictionError := 1 - maxSim

	ids := make([]string, len(scoredList))
	for i, s := range scoredList {
		ids[i] = s.ID
	}

	var result Result
	switch {
	case maxSim >= g.thresholds.Dup:
		result = Result{
			Decision:         DecisionSkip,
			TargetMemoryIDs:  []string{top.ID},
			SuggestedActions: []SuggestedAction{ActionSkip},
		}

	case g.thresholds.ContradictionsEnabled && g.detector.Detect(incoming.Content, top.Item.Content, maxSim) != ContradictionNone:
		kind := g.detector.Detect(incoming.Content, top.Item.Content, maxSim)
		result = Result{
			Decision:         DecisionFlagContradiction,
			TargetMemoryIDs:  []string{top.ID},
			SuggestedActions: []SuggestedAction{ActionAddContradictionFlag, ActionMarkSuperseded},
			Contradiction:    kind,
		}

	case maxSim >= g.thresholds.Update:
		result = Result{
			Decision:         DecisionUpdate,
			TargetMemoryIDs:  []string{top.ID},
			SuggestedActions: []SuggestedAction{ActionAddContext},
		}

	case countAtLeast(scoredList, g.thresholds.Merge) >= g.thresholds.MinMergeCount:
		mergeIDs := idsAtLeast(scoredList, g.thresholds.Merge)
		result = Result{
			Decision:         DecisionMerge,
			TargetMemoryIDs:  mergeIDs,
			SuggestedActions: []SuggestedAction{ActionMergeMemories, ActionLinkMemories},
		}

	case maxSim >= g.thresholds.Merge && g.thresholds.PreferUpdate:
		result = Result{
			Decision:         DecisionUpdate,
			TargetMemoryIDs:  []string{top.ID},
			SuggestedActions: []SuggestedAction{ActionAddContext},
		}

	default:
		result = Result{
			Decision:         DecisionCreate,
			TargetMemoryIDs:  ids,
			SuggestedActions: []SuggestedAction{ActionCreateMemory},
		}
	}

	result.PredictionError = predictionError
	g.record(result)
	return result
}

func countAtLeast(list []scored, threshold float64) int {
	n := 0
	for _, s := range list {
		if s.sim >= threshold {
			n++
		}
	}
	return n
}

func idsAtLeast(list []scored, threshold float64) []string {
	var ids []string
	for _, s := range list {
		if s.sim >= threshold {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

func (g *Gate) record(r Result) {
	g.history = append(g.history, r)
	if len(g.history) > maxHistory {
		g.history = g.history[len(g.history)-maxHistory:]
	}
}

// Stats tallies decisions recorded in the bounded history.
type Stats struct {
	Total      int
	ByDecision map[Decision]int
}

// Stats summarizes the gate's decision history.
func (g *Gate) Stats() Stats {
	out := Stats{ByDecision: make(map[Decision]int)}
	for _, r := range g.history {
		out.Total++
		out.ByDecision[r.Decision]++
	}
	return out
}
