// Package types defines the shared data model for the memory core: knowledge
// items, graph edges, intentions, chains, and the in-memory labile record.
// Every other package (scheduler, storage, repository, gate, consolidation,
// compression, chain) operates on these types rather than defining its own.
package types

import "time"

// CardState is the FSRS learning state of a knowledge item.
type CardState int

const (
	StateNew CardState = iota
	StateLearning
	StateReview
	StateRelearning
)

func (s CardState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateLearning:
		return "learning"
	case StateReview:
		return "review"
	case StateRelearning:
		return "relearning"
	default:
		return "unknown"
	}
}

// Grade is the reviewer's recall-quality rating for a single review.
type Grade int

const (
	GradeAgain Grade = 1
	GradeHard  Grade = 2
	GradeGood  Grade = 3
	GradeEasy  Grade = 4
)

// SourceType describes how a knowledge item entered the system.
type SourceType string

const (
	SourceConversation SourceType = "conversation"
	SourceDocument     SourceType = "document"
	SourceObservation  SourceType = "observation"
	SourceInference    SourceType = "inference"
)

// KnowledgeItem is the memory core's primary record.
type KnowledgeItem struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`

	Content string  `json:"content"`
	Summary *string `json:"summary,omitempty"`

	// Scheduler-owned fields. Mutated only via Review/ConsolidateTick.
	Stability    float64   `json:"stability"`
	Difficulty   float64   `json:"difficulty"`
	State        CardState `json:"state"`
	Reps         int       `json:"reps"`
	Lapses       int       `json:"lapses"`
	LastReview   *time.Time `json:"last_review,omitempty"`
	NextReview   *time.Time `json:"next_review,omitempty"`

	// Dual-strength fields (Bjork model).
	StorageStrength   float64 `json:"storage_strength"`
	RetrievalStrength float64 `json:"retrieval_strength"`
	RetentionStrength float64 `json:"retention_strength"`

	// StabilityFactor is distinct from scheduler Stability (Open Question
	// (a), DESIGN.md): a multiplicative synaptic-tagging weight written
	// only by PromoteMemory/DemoteMemory and TriggerImportance.
	StabilityFactor float64 `json:"stability_factor"`

	AccessCount    int        `json:"access_count"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	SentimentIntensity float64  `json:"sentiment_intensity"`
	Confidence         float64  `json:"confidence"`
	IsContradicted     bool     `json:"is_contradicted"`
	ContradictionIDs   []string `json:"contradiction_ids,omitempty"`

	SourceType     SourceType `json:"source_type"`
	SourcePlatform string     `json:"source_platform"`
	SourceURL      *string    `json:"source_url,omitempty"`
	SourceChain    []string   `json:"source_chain,omitempty"`

	People   []string `json:"people,omitempty"`
	Concepts []string `json:"concepts,omitempty"`
	Events   []string `json:"events,omitempty"`
	Tags     []string `json:"tags,omitempty"`

	Embedding []float64 `json:"embedding,omitempty"`

	// DeletedAt/DeletedBy/DeleteReason implement soft deletion. A
	// non-nil DeletedAt tombstones the row; it must never surface
	// from Get/Search/Due.
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
	DeletedBy    string     `json:"deleted_by,omitempty"`
	DeleteReason string     `json:"delete_reason,omitempty"`
}

// RetentionBucket classifies an item by RetentionStrength.
type RetentionBucket string

const (
	BucketActive      RetentionBucket = "active"
	BucketDormant     RetentionBucket = "dormant"
	BucketSilent      RetentionBucket = "silent"
	BucketUnavailable RetentionBucket = "unavailable"
)

// Bucket classifies the item's current RetentionStrength.
func (k *KnowledgeItem) Bucket() RetentionBucket {
	switch {
	case k.RetentionStrength >= 0.7:
		return BucketActive
	case k.RetentionStrength >= 0.4:
		return BucketDormant
	case k.RetentionStrength >= 0.1:
		return BucketSilent
	default:
		return BucketUnavailable
	}
}

// EdgeType enumerates the graph relations the gate/chain/repository can
// express. DAG-constrained types participate in cycle detection;
// associative types do not.
type EdgeType string

const (
	EdgeRelatesTo   EdgeType = "relates_to"
	EdgeSimilarTo   EdgeType = "similar_to"
	EdgePrerequisite EdgeType = "prerequisite"
	EdgeCauses      EdgeType = "causes"
	EdgeSupersedes  EdgeType = "supersedes"
	EdgeContradicts EdgeType = "contradicts"
)

// IsDAGConstrained reports whether an edge of this type must never
// participate in a cycle.
func (e EdgeType) IsDAGConstrained() bool {
	switch e {
	case EdgePrerequisite, EdgeCauses, EdgeSupersedes:
		return true
	default:
		return false
	}
}

// Edge is a directed, typed, weighted relation between two knowledge items.
type Edge struct {
	ID       string    `json:"id"`
	TenantID string    `json:"tenant_id"`
	FromID   string    `json:"from_id"`
	ToID     string    `json:"to_id"`
	Type     EdgeType  `json:"edge_type"`
	Weight   float64   `json:"weight"`
	Metadata map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Priority is an intention's urgency.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// IntentionStatus is the lifecycle state of an Intention.
type IntentionStatus string

const (
	IntentionActive    IntentionStatus = "active"
	IntentionSnoozed   IntentionStatus = "snoozed"
	IntentionFulfilled IntentionStatus = "fulfilled"
	IntentionCancelled IntentionStatus = "cancelled"
)

// Intention is a deferred-action record tied to a trigger.
type Intention struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`

	Content     string          `json:"content"`
	TriggerType string          `json:"trigger_type"`
	TriggerData map[string]string `json:"trigger_data,omitempty"`
	Priority    Priority        `json:"priority"`
	Status      IntentionStatus `json:"status"`

	Deadline      *time.Time `json:"deadline,omitempty"`
	FulfilledAt   *time.Time `json:"fulfilled_at,omitempty"`
	ReminderCount int        `json:"reminder_count"`
	Tags          []string   `json:"tags,omitempty"`
	SnoozedUntil  *time.Time `json:"snoozed_until,omitempty"`
}

// ModificationKind discriminates the tagged union of labile modifications
//.
type ModificationKind string

const (
	ModAddContext           ModificationKind = "add_context"
	ModAddTag                ModificationKind = "add_tag"
	ModRemoveTag             ModificationKind = "remove_tag"
	ModStrengthenConnection  ModificationKind = "strengthen_connection"
	ModUpdateEmotion         ModificationKind = "update_emotion"
	ModLinkMemory            ModificationKind = "link_memory"
	ModUpdateContent         ModificationKind = "update_content"
	ModAddSource             ModificationKind = "add_source"
	ModBoostRetrieval        ModificationKind = "boost_retrieval"
)

// Modification is one labile-window edit, tagged by Kind. Only the fields
// relevant to Kind are populated; others are zero.
type Modification struct {
	Kind ModificationKind `json:"kind"`

	// add_context / update_content
	Context string `json:"context,omitempty"`
	IsCorrection bool `json:"is_correction,omitempty"`

	// add_tag / remove_tag
	Tag string `json:"tag,omitempty"`

	// strengthen_connection / link_memory
	Target       string  `json:"target,omitempty"`
	Boost        float64 `json:"boost,omitempty"`
	Relationship EdgeType `json:"relationship,omitempty"`

	// update_emotion
	SentimentIntensity float64 `json:"sentiment_intensity,omitempty"`

	// add_source
	Source string `json:"source,omitempty"`

	AppliedAt time.Time `json:"applied_at"`
}
