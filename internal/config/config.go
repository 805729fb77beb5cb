// Package config defines the plain Config value struct consumed by the
// core's components. Loading it from a file, environment, or flags is
// explicitly out of scope — callers construct a Config however suits
// their transport and pass it in. The yaml tags below exist so a Config
// (and the FSRS weight overrides it carries) can round-trip through
// ToYAML/FromYAML for export, diffing, or test fixtures, not because
// this package itself reads a config file off disk.
package config

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/morphexe/vestige/internal/scheduler"
)

// Config collects every recognized tunable across the scheduler,
// reconsolidation manager, gate, consolidation engine, and compression
// engine.
type Config struct {
	Scheduler      SchedulerConfig `yaml:"scheduler"`
	LabileWindowMS int64           `yaml:"labile_window_ms"`

	Gate          GateConfig          `yaml:"gate"`
	Consolidation ConsolidationConfig `yaml:"consolidation"`
	Compression   CompressionConfig   `yaml:"compression"`
}

// SchedulerConfig configures the FSRS-6 scheduler.
type SchedulerConfig struct {
	DesiredRetention     float64           `yaml:"desired_retention"`
	MaximumInterval      int               `yaml:"maximum_interval"`
	Weights              scheduler.Weights `yaml:"weights"`
	EnableSentimentBoost bool              `yaml:"enable_sentiment_boost"`
	MaxSentimentBoost    float64           `yaml:"max_sentiment_boost"`
	EnableFuzz           bool              `yaml:"enable_fuzz"`
}

// GateConfig configures the prediction-error gate's decision thresholds.
type GateConfig struct {
	DupThreshold         float64 `yaml:"dup_threshold"`
	UpdateThreshold      float64 `yaml:"update_threshold"`
	MergeThreshold       float64 `yaml:"merge_threshold"`
	MinMergeCount        int     `yaml:"min_merge_count"`
	PreferUpdate         bool    `yaml:"prefer_update"`
	DetectContradictions bool    `yaml:"detect_contradictions"`
}

// ConsolidationConfig configures the consolidation engine.
type ConsolidationConfig struct {
	MinMemoriesPerCycle        int     `yaml:"min_memories_per_cycle"`
	MaxMemoriesPerCycle        int     `yaml:"max_memories_per_cycle"`
	ReplayStrengthBoost        float64 `yaml:"replay_strength_boost"`
	ConnectionThreshold        float64 `yaml:"connection_threshold"`
	InsightConfidenceThreshold float64 `yaml:"insight_confidence_threshold"`
}

// CompressionConfig configures the compression engine.
type CompressionConfig struct {
	MinContentLength             int     `yaml:"min_content_length"`
	MaxCompressedLength          int     `yaml:"max_compressed_length"`
	KeywordPreservationRatio     float64 `yaml:"keyword_preservation_ratio"`
	MinImportanceForPreservation float64 `yaml:"min_importance_for_preservation"`
	AgeDaysForCompression        float64 `yaml:"age_days_for_compression"`
}

// ToYAML serializes c for export, diffing, or test fixtures.
func (c Config) ToYAML() ([]byte, error) {
	b, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("config: marshal yaml: %w", err)
	}
	return b, nil
}

// FromYAML deserializes a Config previously produced by ToYAML.
func FromYAML(data []byte) (Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal yaml: %w", err)
	}
	return c, nil
}

// Default returns the documented default configuration.
func Default() Config {
	return Config{
		Scheduler: SchedulerConfig{
			DesiredRetention:     0.9,
			MaximumInterval:      36500,
			Weights:              scheduler.DefaultWeights(),
			EnableSentimentBoost: true,
			MaxSentimentBoost:    3.0,
			EnableFuzz:           true,
		},
		LabileWindowMS: 300_000,
		Gate: GateConfig{
			DupThreshold:         0.95,
			UpdateThreshold:      0.70,
			MergeThreshold:       0.60,
			MinMergeCount:        2,
			PreferUpdate:         false,
			DetectContradictions: true,
		},
		Consolidation: ConsolidationConfig{
			MinMemoriesPerCycle:        5,
			MaxMemoriesPerCycle:        50,
			ReplayStrengthBoost:        0.1,
			ConnectionThreshold:        0.6,
			InsightConfidenceThreshold: 0.5,
		},
		Compression: CompressionConfig{
			MinContentLength:             50,
			MaxCompressedLength:          2000,
			KeywordPreservationRatio:     0.2,
			MinImportanceForPreservation: 0.7,
			AgeDaysForCompression:        30,
		},
	}
}

// Validate enforces the ranges documents, returning every
// violation found rather than stopping at the first.
func (c Config) Validate() []string {
	var errs []string
	if c.Scheduler.DesiredRetention < 0.7 || c.Scheduler.DesiredRetention > 0.99 {
		errs = append(errs, "desired_retention must be in [0.7, 0.99]")
	}
	if c.Scheduler.MaxSentimentBoost < 1 || c.Scheduler.MaxSentimentBoost > 3 {
		errs = append(errs, "max_sentiment_boost must be in [1, 3]")
	}
	if c.Gate.MinMergeCount < 1 {
		errs = append(errs, "gate.min_merge_count must be at least 1")
	}
	if c.Consolidation.MinMemoriesPerCycle > c.Consolidation.MaxMemoriesPerCycle {
		errs = append(errs, "consolidation.min_memories_per_cycle must not exceed max_memories_per_cycle")
	}
	return errs
}
