// Package vestige wires the memory core's components together: ingest
// routes through the gate then the repository; retrieve routes through
// the repository and notifies the reconsolidation manager; review
// routes through the scheduler then the repository; consolidate scans
// the repository and runs the consolidation engine over what it finds.
//
// This is a thin orchestration layer, not a place for new algorithms.
package vestige

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/morphexe/vestige/internal/chain"
	"github.com/morphexe/vestige/internal/compression"
	"github.com/morphexe/vestige/internal/config"
	"github.com/morphexe/vestige/internal/consolidation"
	"github.com/morphexe/vestige/internal/gate"
	"github.com/morphexe/vestige/internal/reconsolidation"
	"github.com/morphexe/vestige/internal/repository"
	"github.com/morphexe/vestige/internal/scheduler"
	"github.com/morphexe/vestige/internal/storage"
	"github.com/morphexe/vestige/internal/types"
)

// Core is the per-tenant entry point to every memory operation. One
// Core owns one storage.Storage (already tenant-bound at
// construction) and a full set of in-process component state — it must
// not be shared across tenants.
type Core struct {
	Repo   *repository.Repository
	Chains *chain.Manager
	Labile *reconsolidation.Manager
	Gate   *gate.Gate
	Config config.Config

	schedulerParams scheduler.Params
}

// New constructs a Core over db with cfg's tunables wired into every
// component.
func New(db storage.Storage, cfg config.Config) *Core {
	return &Core{
		Repo:   repository.New(db),
		Chains: chain.New(),
		Labile: reconsolidation.New(time.Duration(cfg.LabileWindowMS) * time.Millisecond),
		Gate: gate.New(gate.Thresholds{
			Dup:                   cfg.Gate.DupThreshold,
			Update:                cfg.Gate.UpdateThreshold,
			Merge:                 cfg.Gate.MergeThreshold,
			MinMergeCount:         cfg.Gate.MinMergeCount,
			PreferUpdate:          cfg.Gate.PreferUpdate,
			ContradictionsEnabled: cfg.Gate.DetectContradictions,
		}, nil),
		Config: cfg,
		schedulerParams: scheduler.Params{
			Weights:              cfg.Scheduler.Weights,
			DesiredRetention:     cfg.Scheduler.DesiredRetention,
			MaximumInterval:      float64(cfg.Scheduler.MaximumInterval),
			EnableFuzz:           cfg.Scheduler.EnableFuzz,
			EnableSentimentBoost: cfg.Scheduler.EnableSentimentBoost,
			MaxSentimentBoost:    cfg.Scheduler.MaxSentimentBoost,
		},
	}
}

func comparableOf(item *types.KnowledgeItem) gate.Comparable {
	return gate.Comparable{Content: item.Content, Embedding: item.Embedding}
}

// IngestResult is ingest's outcome: the gate's decision plus whatever
// item the decision produced or touched (nil for Skip; for
// FlagContradiction, the existing item that was flagged).
type IngestResult struct {
	Decision gate.Result
	Item     *types.KnowledgeItem
}

// Ingest classifies incoming content against existing memories via the
// gate, then persists the gate's decision through the repository.
func (c *Core) Ingest(ctx context.Context, incoming *types.KnowledgeItem) (*IngestResult, error) {
	search, err := c.Repo.Search(ctx, incoming.Content, repository.SearchOptions{Limit: 20})
	if err != nil {
		return nil, fmt.Errorf("ingest: search candidates: %w", err)
	}
	candidates := make([]gate.Candidate, len(search.Items))
	for i, item := range search.Items {
		candidates[i] = gate.Candidate{ID: item.ID, Item: comparableOf(item)}
	}

	decision := c.Gate.Decide(comparableOf(incoming), candidates)
	result := &IngestResult{Decision: decision}

	switch decision.Decision {
	case gate.DecisionCreate:
		item, err := c.Repo.Insert(ctx, incoming)
		if err != nil {
			return nil, fmt.Errorf("ingest: create: %w", err)
		}
		result.Item = item

	case gate.DecisionUpdate:
		if len(decision.TargetMemoryIDs) == 0 {
			break
		}
		id := decision.TargetMemoryIDs[0]
		if err := c.Repo.Update(ctx, id, map[string]any{"content": incoming.Content}); err != nil {
			return nil, fmt.Errorf("ingest: update: %w", err)
		}
		item, err := c.Repo.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("ingest: reload updated: %w", err)
		}
		result.Item = item

	case gate.DecisionMerge:
		for i := 1; i < len(decision.TargetMemoryIDs); i++ {
			edge := &types.Edge{
				TenantID: incoming.TenantID,
				FromID:   decision.TargetMemoryIDs[0],
				ToID:     decision.TargetMemoryIDs[i],
				Type:     types.EdgeRelatesTo,
				Weight:   1.0,
			}
			if _, err := c.Repo.InsertEdge(ctx, edge); err != nil {
				return nil, fmt.Errorf("ingest: merge link: %w", err)
			}
		}
		item, err := c.Repo.Get(ctx, decision.TargetMemoryIDs[0])
		if err != nil {
			return nil, fmt.Errorf("ingest: reload merge target: %w", err)
		}
		result.Item = item

	case gate.DecisionFlagContradiction:
		if len(decision.TargetMemoryIDs) == 0 {
			break
		}
		id := decision.TargetMemoryIDs[0]
		existing, err := c.Repo.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("ingest: flag contradiction: %w", err)
		}
		if existing != nil {
			ids := append(append([]string{}, existing.ContradictionIDs...), incoming.ID)
			if err := c.Repo.Update(ctx, id, map[string]any{"is_contradicted": true}); err != nil {
				return nil, fmt.Errorf("ingest: flag contradiction: %w", err)
			}
			existing.ContradictionIDs = ids
			result.Item = existing
		}

	case gate.DecisionSkip:
		// no-op: incoming duplicates an existing memory.
	}

	return result, nil
}

// Search runs a full-text/tag-filtered search over the tenant's items.
func (c *Core) Search(ctx context.Context, query string, opts repository.SearchOptions) (*repository.SearchResult, error) {
	return c.Repo.Search(ctx, query, opts)
}

// Get retrieves an item by id without marking it labile — a plain read
// that does not open a reconsolidation window.
func (c *Core) Get(ctx context.Context, id string) (*types.KnowledgeItem, error) {
	return c.Repo.Get(ctx, id)
}

// Recall retrieves an item and marks it labile, opening its
// reconsolidation window.
func (c *Core) Recall(ctx context.Context, id, accessContext string) (*types.KnowledgeItem, error) {
	item, err := c.Repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("recall: %w", err)
	}
	if item != nil {
		c.Labile.MarkLabile(id, *item, accessContext)
	}
	return item, nil
}

// Review runs the FSRS-6 state transition then persists the resulting
// stability, difficulty, card state, and next_review.
func (c *Core) Review(ctx context.Context, id string, grade types.Grade, elapsedDays float64) (*types.KnowledgeItem, error) {
	item, err := c.Repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("review: %w", err)
	}
	if item == nil {
		return nil, fmt.Errorf("review: %w: %s", repository.ErrNotFound, id)
	}

	state := scheduler.State{
		Stability:  item.Stability,
		Difficulty: item.Difficulty,
		CardState:  item.State,
		Reps:       item.Reps,
		Lapses:     item.Lapses,
	}
	var sentiment *float64
	if c.schedulerParams.EnableSentimentBoost {
		s := item.SentimentIntensity
		sentiment = &s
	}
	result := scheduler.Review(c.schedulerParams, state, grade, elapsedDays, sentiment)

	now := time.Now().UTC()
	next := now.AddDate(0, 0, result.IntervalDays)
	patch := map[string]any{
		"stability":   result.State.Stability,
		"difficulty":  result.State.Difficulty,
		"state":       int(result.State.CardState),
		"reps":        result.State.Reps,
		"lapses":      result.State.Lapses,
		"last_review": now.Format(time.RFC3339Nano),
		"next_review": next.Format(time.RFC3339Nano),
	}
	if err := c.Repo.Update(ctx, id, patch); err != nil {
		return nil, fmt.Errorf("review: %w", err)
	}
	return c.Repo.Get(ctx, id)
}

// Due returns items whose next_review has passed.
func (c *Core) Due(ctx context.Context, limit int) ([]*types.KnowledgeItem, error) {
	return c.Repo.Due(ctx, limit)
}

// Delete soft-deletes an item, returning false rather than an error
// when the id does not exist.
func (c *Core) Delete(ctx context.Context, id string) (bool, error) {
	return c.Repo.Delete(ctx, id)
}

// Stats computes the retention/state aggregate snapshot across the
// tenant's items.
func (c *Core) Stats(ctx context.Context) (*repository.Stats, error) {
	return c.Repo.Stats(ctx)
}

// Consolidate runs one consolidation cycle: selects candidates from the
// repository, lets the consolidation engine replay/score/tick them, then
// persists the resulting decay, promotion, and pruning. Under dryRun,
// selection, replay scoring, and the tick pass all still run — so the
// returned CycleResult reports exactly what a live call would change —
// but neither the replay boosts nor the tick outcomes are written back.
func (c *Core) Consolidate(ctx context.Context, phase consolidation.Phase, dryRun bool) (*consolidation.CycleResult, error) {
	candidates, err := c.Repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("consolidate: %w", err)
	}

	now := time.Now().UTC()
	cfg := consolidation.Config{
		Selection: consolidation.SelectionConfig{
			MinSelected: c.Config.Consolidation.MinMemoriesPerCycle,
			MaxSelected: c.Config.Consolidation.MaxMemoriesPerCycle,
		},
		ReplayStrengthBoost: c.Config.Consolidation.ReplayStrengthBoost,
		ConnectionThreshold: c.Config.Consolidation.ConnectionThreshold,
	}
	result := consolidation.RunCycle(phase, candidates, now, cfg)
	result.Tick = consolidation.RunTick(candidates, now)
	result.DryRun = dryRun

	if dryRun {
		return &result, nil
	}

	for _, replay := range result.Replays {
		if err := c.Repo.Update(ctx, replay.ItemID, map[string]any{
			"retrieval_strength": clamp01(findItem(result.Selected, replay.ItemID).RetrievalStrength + replay.Boost),
		}); err != nil {
			return nil, fmt.Errorf("consolidate: apply replay: %w", err)
		}
	}

	for _, tr := range result.Tick.Results {
		if tr.Action == consolidation.TickNoChange {
			continue
		}
		patch := map[string]any{"retrieval_strength": tr.NewRetrievalStrength, "retention_strength": tr.NewRetentionStrength}
		if tr.Action == consolidation.TickPruned {
			if _, err := c.Repo.Delete(ctx, tr.ItemID); err != nil {
				return nil, fmt.Errorf("consolidate: prune: %w", err)
			}
			continue
		}
		if err := c.Repo.Update(ctx, tr.ItemID, patch); err != nil {
			return nil, fmt.Errorf("consolidate: apply tick: %w", err)
		}
	}

	return &result, nil
}

func findItem(items []*types.KnowledgeItem, id string) *types.KnowledgeItem {
	for _, it := range items {
		if it.ID == id {
			return it
		}
	}
	return &types.KnowledgeItem{}
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// ContextQuery parameters the weighted ranking in Context: a target
// timestamp, topic tags, project name, and mood to rank existing memories
// against.
type ContextQuery struct {
	At      time.Time
	Tags    []string
	Project string
	Mood    float64 // compared against SentimentIntensity
}

// ContextMatch is one ranked result from Context.
type ContextMatch struct {
	Item  *types.KnowledgeItem
	Score float64
}

// contextWeights: temporal, topic overlap, project match, mood alignment.
// Equal weighting is the documented-neutral choice absent a stated split.
const (
	weightTemporal = 0.25
	weightTopic    = 0.25
	weightProject  = 0.25
	weightMood     = 0.25
)

// Context ranks memories against q by a weighted combination of recency,
// tag overlap, project-name match (against Concepts, the closest
// field to a "project" label), and mood alignment.
func (c *Core) Context(ctx context.Context, q ContextQuery, limit int) ([]ContextMatch, error) {
	items, err := c.Repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}
	if q.At.IsZero() {
		q.At = time.Now().UTC()
	}

	matches := make([]ContextMatch, 0, len(items))
	for _, item := range items {
		matches = append(matches, ContextMatch{Item: item, Score: contextScore(item, q)})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func contextScore(item *types.KnowledgeItem, q ContextQuery) float64 {
	temporal := temporalAlignment(item, q.At)
	topic := tagOverlap(item.Tags, q.Tags)
	project := projectMatch(item.Concepts, q.Project)
	mood := 1 - math.Abs(item.SentimentIntensity-q.Mood)

	return weightTemporal*temporal + weightTopic*topic + weightProject*project + weightMood*mood
}

func temporalAlignment(item *types.KnowledgeItem, at time.Time) float64 {
	days := math.Abs(at.Sub(item.UpdatedAt).Hours() / 24)
	return 1 / (1 + days/7)
}

func tagOverlap(have, want []string) float64 {
	if len(want) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(have))
	for _, t := range have {
		set[strings.ToLower(t)] = struct{}{}
	}
	hit := 0
	for _, w := range want {
		if _, ok := set[strings.ToLower(w)]; ok {
			hit++
		}
	}
	return float64(hit) / float64(len(want))
}

func projectMatch(concepts []string, project string) float64 {
	if project == "" {
		return 0
	}
	project = strings.ToLower(project)
	for _, c := range concepts {
		if strings.ToLower(c) == project {
			return 1
		}
	}
	return 0
}

// MemoryState is a coarse, user-facing classification of an item's
// current standing, derived from its retention bucket and contradiction
// flag.
type MemoryState string

const (
	MemoryActive       MemoryState = "active"
	MemoryDormant      MemoryState = "dormant"
	MemorySilent       MemoryState = "silent"
	MemoryUnavailable  MemoryState = "unavailable"
	MemoryContradicted MemoryState = "contradicted"
)

// StateOf classifies item, surfacing contradiction ahead of the
// retention bucket since a contradicted memory needs attention
// regardless of how strongly it is retained.
func StateOf(item *types.KnowledgeItem) MemoryState {
	if item.IsContradicted {
		return MemoryContradicted
	}
	switch item.Bucket() {
	case types.BucketActive:
		return MemoryActive
	case types.BucketDormant:
		return MemoryDormant
	case types.BucketSilent:
		return MemorySilent
	default:
		return MemoryUnavailable
	}
}

// GetMemoryState returns id's current MemoryState.
func (c *Core) GetMemoryState(ctx context.Context, id string) (MemoryState, error) {
	item, err := c.Repo.Get(ctx, id)
	if err != nil {
		return "", fmt.Errorf("get memory state: %w", err)
	}
	if item == nil {
		return "", fmt.Errorf("get memory state: %w: %s", repository.ErrNotFound, id)
	}
	return StateOf(item), nil
}

// ListByState returns every item currently classified as state.
func (c *Core) ListByState(ctx context.Context, state MemoryState) ([]*types.KnowledgeItem, error) {
	items, err := c.Repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list by state: %w", err)
	}
	out := make([]*types.KnowledgeItem, 0)
	for _, item := range items {
		if StateOf(item) == state {
			out = append(out, item)
		}
	}
	return out, nil
}

// StateStats tallies every item by MemoryState.
func (c *Core) StateStats(ctx context.Context) (map[MemoryState]int, error) {
	items, err := c.Repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("state stats: %w", err)
	}
	out := make(map[MemoryState]int)
	for _, item := range items {
		out[StateOf(item)]++
	}
	return out, nil
}

// ImportanceEvent is one entry in TriggerImportance's event-window
// table: events of Kind occurring within Window of an item's most recent
// touch get StrengthBoost applied to retrieval_strength and
// StabilityMultiplier applied to stability_factor. The multiplier
// touches stability_factor only, never the scheduler's stability.
type ImportanceEvent struct {
	Kind               string
	Window             time.Duration
	StrengthBoost      float64
	StabilityMultiplier float64
}

// TriggerImportance applies the matching ImportanceEvent's boosts to
// every item touched (via LastAccessedAt or UpdatedAt) within the event's
// window of now.
func (c *Core) TriggerImportance(ctx context.Context, events []ImportanceEvent, eventKind string, now time.Time) (int, error) {
	var matched *ImportanceEvent
	for i := range events {
		if events[i].Kind == eventKind {
			matched = &events[i]
			break
		}
	}
	if matched == nil {
		return 0, fmt.Errorf("trigger importance: unknown event kind %q", eventKind)
	}

	items, err := c.Repo.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("trigger importance: %w", err)
	}

	touched := 0
	for _, item := range items {
		last := item.UpdatedAt
		if item.LastAccessedAt != nil {
			last = *item.LastAccessedAt
		}
		if now.Sub(last) > matched.Window {
			continue
		}
		newStrength := clamp01(item.RetrievalStrength + matched.StrengthBoost)
		newFactor := item.StabilityFactor * matched.StabilityMultiplier
		if err := c.Repo.Update(ctx, item.ID, map[string]any{
			"retrieval_strength": newStrength,
			"stability_factor":   newFactor,
		}); err != nil {
			return touched, fmt.Errorf("trigger importance: update %s: %w", item.ID, err)
		}
		touched++
	}
	return touched, nil
}

// FindTagged returns every item carrying any of tags.
func (c *Core) FindTagged(ctx context.Context, tags []string) ([]*types.KnowledgeItem, error) {
	items, err := c.Repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("find tagged: %w", err)
	}
	out := make([]*types.KnowledgeItem, 0)
	for _, item := range items {
		for _, want := range tags {
			found := false
			for _, have := range item.Tags {
				if strings.EqualFold(have, want) {
					out = append(out, item)
					found = true
					break
				}
			}
			if found {
				break
			}
		}
	}
	return out, nil
}

// TagStats counts items per tag across the whole tenant.
func (c *Core) TagStats(ctx context.Context) (map[string]int, error) {
	items, err := c.Repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("tag stats: %w", err)
	}
	out := make(map[string]int)
	for _, item := range items {
		for _, tag := range item.Tags {
			out[tag]++
		}
	}
	return out, nil
}

// PromoteMemory strengthens an item's synaptic-tagging weight without
// touching the scheduler's stability: retention_strength is
// raised and clamped to [0.1, 1], stability_factor multiplied by boost.
func (c *Core) PromoteMemory(ctx context.Context, id string, boost float64) error {
	return c.adjustMemory(ctx, id, boost)
}

// DemoteMemory weakens an item's synaptic-tagging weight the same way,
// with a multiplier in (0, 1).
func (c *Core) DemoteMemory(ctx context.Context, id string, decay float64) error {
	return c.adjustMemory(ctx, id, decay)
}

func (c *Core) adjustMemory(ctx context.Context, id string, multiplier float64) error {
	item, err := c.Repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("adjust memory: %w", err)
	}
	if item == nil {
		return fmt.Errorf("adjust memory: %w: %s", repository.ErrNotFound, id)
	}
	newRetention := item.RetentionStrength * multiplier
	if newRetention < 0.1 {
		newRetention = 0.1
	}
	if newRetention > 1 {
		newRetention = 1
	}
	newFactor := item.StabilityFactor * multiplier

	return c.Repo.Update(ctx, id, map[string]any{
		"retention_strength": newRetention,
		"stability_factor":   newFactor,
	})
}

// Compress runs the compression engine over item's content if it
// qualifies, persisting the result as its Summary. This exercises the
// compression engine on demand, independent of a consolidation cycle.
func (c *Core) Compress(ctx context.Context, id string, now time.Time) (*compression.Result, error) {
	item, err := c.Repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	if item == nil {
		return nil, fmt.Errorf("compress: %w: %s", repository.ErrNotFound, id)
	}

	thresholds := compression.Thresholds{
		MinContentLength:      c.Config.Compression.MinContentLength,
		PreservationThreshold: c.Config.Compression.MinImportanceForPreservation,
		AgeDaysForCompression: c.Config.Compression.AgeDaysForCompression,
	}
	candidate := compression.Candidate{
		Content:     item.Content,
		Importance:  item.Confidence,
		AccessCount: item.AccessCount,
		CreatedAt:   item.CreatedAt,
	}
	if !compression.ShouldCompress(candidate, now, thresholds) {
		return nil, nil
	}

	level := compression.SelectLevel(candidate, now)
	keywords := compression.Keywords(item.Content, int(float64(len(item.Tags))*c.Config.Compression.KeywordPreservationRatio)+5)
	result := compression.Compress(item.Content, level, compression.StrategySummarize, keywords, c.Config.Compression.MaxCompressedLength)

	if err := c.Repo.Update(ctx, id, map[string]any{"summary": result.Text}); err != nil {
		return nil, fmt.Errorf("compress: persist summary: %w", err)
	}
	return &result, nil
}

// Intention wraps the repository's intention CRUD: create, list,
// complete, and cancel.
func (c *Core) CreateIntention(ctx context.Context, in *types.Intention) (*types.Intention, error) {
	return c.Repo.CreateIntention(ctx, in)
}

func (c *Core) ListIntentions(ctx context.Context, status types.IntentionStatus) ([]*types.Intention, error) {
	return c.Repo.ListIntentions(ctx, status)
}

func (c *Core) CompleteIntention(ctx context.Context, id string, at time.Time) (bool, error) {
	return c.Repo.CompleteIntention(ctx, id, at)
}

func (c *Core) CancelIntention(ctx context.Context, id string) (bool, error) {
	return c.Repo.CancelIntention(ctx, id)
}
