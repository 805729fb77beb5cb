package consolidation

import (
	"sort"
	"strings"

	"github.com/morphexe/vestige/internal/types"
)

// InsightKind discriminates the two insight varieties a cycle can emit.
type InsightKind string

const (
	InsightPattern    InsightKind = "pattern_detection"
	InsightConnection InsightKind = "connection_discovery"
)

// Insight is a single discovery surfaced by a consolidation cycle.
type Insight struct {
	Kind       InsightKind
	Confidence float64
	ItemIDs    []string
	Tag        string // populated for InsightPattern
}

// DetectPatterns groups selected items by tag and emits a PatternDetection
// insight for any tag shared by at least 3 items.
func DetectPatterns(selected []*types.KnowledgeItem) []Insight {
	byTag := make(map[string][]string)
	for _, item := range selected {
		for _, tag := range item.Tags {
			byTag[tag] = append(byTag[tag], item.ID)
		}
	}

	var insights []Insight
	for tag, ids := range byTag {
		if len(ids) < 3 {
			continue
		}
		confidence := math_min1(float64(len(ids))/float64(len(selected)) + 0.3)
		insights = append(insights, Insight{
			Kind:       InsightPattern,
			Confidence: confidence,
			ItemIDs:    ids,
			Tag:        tag,
		})
	}
	sort.Slice(insights, func(i, j int) bool { return insights[i].Tag < insights[j].Tag })
	return insights
}

func math_min1(x float64) float64 {
	if x > 1 {
		return 1
	}
	return x
}

// maxConnectionInsights caps connection discoveries per cycle.
const maxConnectionInsights = 10

// DiscoverConnections computes pairwise word-set Jaccard similarity over
// selected items' content, emitting a ConnectionDiscovery insight for
// every pair at or above threshold, capped at 10 with highest similarity
// first.
func DiscoverConnections(selected []*types.KnowledgeItem, threshold float64) []Insight {
	var insights []Insight
	for i := 0; i < len(selected); i++ {
		for j := i + 1; j < len(selected); j++ {
			sim := jaccardWords(selected[i].Content, selected[j].Content)
			if sim >= threshold {
				insights = append(insights, Insight{
					Kind:       InsightConnection,
					Confidence: sim,
					ItemIDs:    []string{selected[i].ID, selected[j].ID},
				})
			}
		}
	}
	sort.Slice(insights, func(i, j int) bool { return insights[i].Confidence > insights[j].Confidence })
	if len(insights) > maxConnectionInsights {
		insights = insights[:maxConnectionInsights]
	}
	return insights
}

func jaccardWords(a, b string) float64 {
	sa, sb := tokenSet(a), tokenSet(b)
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}
	inter := 0
	for w := range sa {
		if _, ok := sb[w]; ok {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if len(w) > 2 {
			out[w] = struct{}{}
		}
	}
	return out
}

// ReplayEvent is the per-item output of the replay/strengthening step.
type ReplayEvent struct {
	ItemID string
	Boost  float64
}

// Replay produces a strengthening boost for every selected item;
// applying it to storage_strength or retrieval_strength is the
// caller's job per the repository contract.
func Replay(selected []*types.KnowledgeItem, boost float64) []ReplayEvent {
	events := make([]ReplayEvent, len(selected))
	for i, item := range selected {
		events[i] = ReplayEvent{ItemID: item.ID, Boost: boost}
	}
	return events
}
