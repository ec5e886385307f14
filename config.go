package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// LLMConfig configures a single LLM provider endpoint used for
// classification and fact extraction (spec §6.3).
type LLMConfig struct {
	Provider string `mapstructure:"provider" json:"provider" yaml:"provider"`
	Model    string `mapstructure:"model" json:"model" yaml:"model"`
	BaseURL  string `mapstructure:"base_url" json:"base_url" yaml:"base_url"`
	APIKey   string `mapstructure:"api_key" json:"api_key" yaml:"api_key"`
}

// ConcurrencyConfig carries the knobs of spec §5.
type ConcurrencyConfig struct {
	FilesPerJob        int `mapstructure:"files_per_job" json:"files_per_job" yaml:"files_per_job"`               // N, default 4
	SegmentsPerDoc     int `mapstructure:"segments_per_doc" json:"segments_per_doc" yaml:"segments_per_doc"`       // M, default 8
	EmbedBatchParallel int `mapstructure:"embed_batch_parallel" json:"embed_batch_parallel" yaml:"embed_batch_parallel"` // B, default 2
	UpsertParallel     int `mapstructure:"upsert_parallel" json:"upsert_parallel" yaml:"upsert_parallel"`          // U, default 4
}

// TimeoutConfig carries the per-RPC timeouts of spec §5.
type TimeoutConfig struct {
	BoundaryDetection time.Duration `mapstructure:"boundary_detection" json:"boundary_detection" yaml:"boundary_detection"`
	Classification    time.Duration `mapstructure:"classification" json:"classification" yaml:"classification"`
	EmbeddingBatch    time.Duration `mapstructure:"embedding_batch" json:"embedding_batch" yaml:"embedding_batch"`
	UpsertBatch       time.Duration `mapstructure:"upsert_batch" json:"upsert_batch" yaml:"upsert_batch"`
	FactExtraction    time.Duration `mapstructure:"fact_extraction" json:"fact_extraction" yaml:"fact_extraction"`
}

// RetryConfig carries the exponential-backoff-with-full-jitter policy of
// spec §4.1.
type RetryConfig struct {
	MaxAttempts uint          `mapstructure:"max_attempts" json:"max_attempts" yaml:"max_attempts"`
	Ceiling     time.Duration `mapstructure:"ceiling" json:"ceiling" yaml:"ceiling"`
}

// BoundaryConfig carries the thresholds of spec §4.2.
type BoundaryConfig struct {
	SoftThreshold       float64 `mapstructure:"soft_threshold" json:"soft_threshold" yaml:"soft_threshold"`
	OCRRelaxationFactor float64 `mapstructure:"ocr_relaxation_factor" json:"ocr_relaxation_factor" yaml:"ocr_relaxation_factor"`
	GapFillConfidence   float64 `mapstructure:"gap_fill_confidence" json:"gap_fill_confidence" yaml:"gap_fill_confidence"`
}

// ClassifyConfig carries the threshold of spec §4.3.
type ClassifyConfig struct {
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold" json:"confidence_threshold" yaml:"confidence_threshold"`
	HeaderLines         int     `mapstructure:"header_lines" json:"header_lines" yaml:"header_lines"`
}

// ChunkConfig carries the sizing of spec §4.4.
type ChunkConfig struct {
	TargetTokens int `mapstructure:"target_tokens" json:"target_tokens" yaml:"target_tokens"`
	OverlapTokens int `mapstructure:"overlap_tokens" json:"overlap_tokens" yaml:"overlap_tokens"`
}

// EncodeConfig carries the sparse/dense encoder knobs of spec §4.5.
type EncodeConfig struct {
	EmbeddingDim         int `mapstructure:"embedding_dim" json:"embedding_dim" yaml:"embedding_dim"`
	EmbedBatchSize       int `mapstructure:"embed_batch_size" json:"embed_batch_size" yaml:"embed_batch_size"`
	SparseMaxEntries     int `mapstructure:"sparse_max_entries" json:"sparse_max_entries" yaml:"sparse_max_entries"`
}

// FactDedupConfig carries the dedup thresholds of spec §4.8.
type FactDedupConfig struct {
	CosineSimilarity float64 `mapstructure:"cosine_similarity" json:"cosine_similarity" yaml:"cosine_similarity"`
	TextSimilarity   float64 `mapstructure:"text_similarity" json:"text_similarity" yaml:"text_similarity"`
}

// RRFConfig carries the hybrid-search fusion weights of spec §4.6.
type RRFConfig struct {
	K             int     `mapstructure:"k" json:"k" yaml:"k"`
	WeightDense   float64 `mapstructure:"weight_dense" json:"weight_dense" yaml:"weight_dense"`
	WeightKeyword float64 `mapstructure:"weight_keyword" json:"weight_keyword" yaml:"weight_keyword"`
	WeightCitation float64 `mapstructure:"weight_citation" json:"weight_citation" yaml:"weight_citation"`
}

// Config holds all configuration for the discovery engine.
type Config struct {
	// StorageDir is the directory holding one SQLite file per case plus
	// the shared-collections database.
	StorageDir string `mapstructure:"storage_dir" json:"storage_dir" yaml:"storage_dir"`

	// DocumentFailureRateThreshold aborts a document (not the job) once
	// the fraction of failed segments exceeds it (spec §4.1, default 0.25).
	DocumentFailureRateThreshold float64 `mapstructure:"document_failure_rate_threshold" json:"document_failure_rate_threshold" yaml:"document_failure_rate_threshold"`

	// ProgressBusBuffer is the bounded per-subscriber buffer (spec §4.9,
	// default 1024).
	ProgressBusBuffer int `mapstructure:"progress_bus_buffer" json:"progress_bus_buffer" yaml:"progress_bus_buffer"`

	// SharedCollections is the closed, startup-configured allowlist of
	// non-case-scoped collections (spec §6.4).
	SharedCollections []string `mapstructure:"shared_collections" json:"shared_collections" yaml:"shared_collections"`

	Classifier LLMConfig `mapstructure:"classifier" json:"classifier" yaml:"classifier"`
	Embedding  LLMConfig `mapstructure:"embedding" json:"embedding" yaml:"embedding"`

	Concurrency ConcurrencyConfig `mapstructure:"concurrency" json:"concurrency" yaml:"concurrency"`
	Timeouts    TimeoutConfig     `mapstructure:"timeouts" json:"timeouts" yaml:"timeouts"`
	Retry       RetryConfig       `mapstructure:"retry" json:"retry" yaml:"retry"`
	Boundary    BoundaryConfig    `mapstructure:"boundary" json:"boundary" yaml:"boundary"`
	Classify    ClassifyConfig    `mapstructure:"classify" json:"classify" yaml:"classify"`
	Chunk       ChunkConfig       `mapstructure:"chunk" json:"chunk" yaml:"chunk"`
	Encode      EncodeConfig      `mapstructure:"encode" json:"encode" yaml:"encode"`
	FactDedup   FactDedupConfig   `mapstructure:"fact_dedup" json:"fact_dedup" yaml:"fact_dedup"`
	RRF         RRFConfig         `mapstructure:"rrf" json:"rrf" yaml:"rrf"`
}

// DefaultConfig returns a Config with the defaults named throughout spec.md.
func DefaultConfig() Config {
	return Config{
		StorageDir:                   "discovery-data",
		DocumentFailureRateThreshold: 0.25,
		ProgressBusBuffer:            1024,
		SharedCollections: []string{
			"florida_statutes", "fmcsr_regulations", "federal_rules", "case_law_precedents",
		},
		Classifier: LLMConfig{Provider: "ollama", Model: "llama3.1:8b", BaseURL: "http://localhost:11434"},
		Embedding:  LLMConfig{Provider: "ollama", Model: "nomic-embed-text", BaseURL: "http://localhost:11434"},
		Concurrency: ConcurrencyConfig{
			FilesPerJob: 4, SegmentsPerDoc: 8, EmbedBatchParallel: 2, UpsertParallel: 4,
		},
		Timeouts: TimeoutConfig{
			BoundaryDetection: 120 * time.Second,
			Classification:    30 * time.Second,
			EmbeddingBatch:    60 * time.Second,
			UpsertBatch:       30 * time.Second,
			FactExtraction:    60 * time.Second,
		},
		Retry:    RetryConfig{MaxAttempts: 5, Ceiling: 30 * time.Second},
		Boundary: BoundaryConfig{SoftThreshold: 0.55, OCRRelaxationFactor: 0.75, GapFillConfidence: 0.3},
		Classify: ClassifyConfig{ConfidenceThreshold: 0.6, HeaderLines: 40},
		Chunk:    ChunkConfig{TargetTokens: 1400, OverlapTokens: 200},
		Encode:   EncodeConfig{EmbeddingDim: 1536, EmbedBatchSize: 32, SparseMaxEntries: 4096},
		FactDedup: FactDedupConfig{CosineSimilarity: 0.95, TextSimilarity: 0.9},
		RRF:       RRFConfig{K: 60, WeightDense: 1.0, WeightKeyword: 1.0, WeightCitation: 1.0},
	}
}

// casePath returns the per-case SQLite file path under StorageDir.
func (c *Config) casePath(caseName CaseName) string {
	return filepath.Join(c.StorageDir, "cases", sanitizeCaseName(string(caseName))+".db")
}

// sharedPath returns the shared-collections SQLite file path.
func (c *Config) sharedPath() string {
	return filepath.Join(c.StorageDir, "shared.db")
}

func sanitizeCaseName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, string(filepath.Separator), "_")
	s = strings.ReplaceAll(s, "..", "_")
	return s
}

// IsSharedCollection reports whether name is in the configured shared
// allowlist.
func (c *Config) IsSharedCollection(name string) bool {
	for _, s := range c.SharedCollections {
		if s == name {
			return true
		}
	}
	return false
}

// ConfigManager layers DefaultConfig() with a config file, environment
// variables (prefix DISCOVERY_), and hot-reload via fsnotify, in the style
// of the pack's viper-based configuration managers.
type ConfigManager struct {
	mu       sync.RWMutex
	v        *viper.Viper
	cfg      Config
	onChange []func(Config)
}

// NewConfigManager builds a ConfigManager seeded with DefaultConfig, then
// overlays configPath (if non-empty) and environment variables.
func NewConfigManager(configPath string) (*ConfigManager, error) {
	v := viper.New()
	v.SetEnvPrefix("DISCOVERY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(*os.PathError); !ok {
				return nil, fmt.Errorf("discovery: reading config %s: %w", configPath, err)
			}
		}
	}

	cm := &ConfigManager{v: v, cfg: DefaultConfig()}
	if err := cm.reload(); err != nil {
		return nil, err
	}

	if configPath != "" {
		v.WatchConfig()
		v.OnConfigChange(func(fsnotify.Event) {
			if err := cm.reload(); err == nil {
				cm.notify()
			}
		})
	}
	return cm, nil
}

func (cm *ConfigManager) reload() error {
	cfg := DefaultConfig()
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("discovery: parsing configuration: %w", err)
	}
	cm.mu.Lock()
	cm.cfg = cfg
	cm.mu.Unlock()
	return nil
}

func (cm *ConfigManager) notify() {
	cm.mu.RLock()
	cfg := cm.cfg
	cbs := append([]func(Config){}, cm.onChange...)
	cm.mu.RUnlock()
	for _, cb := range cbs {
		cb(cfg)
	}
}

// Get returns the current, fully resolved configuration.
func (cm *ConfigManager) Get() Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.cfg
}

// OnChange registers a callback invoked after a hot-reload. Safe knobs
// only (concurrency limits, RRF weights, retry budgets, shared collections)
// should be read by callers; structural knobs (StorageDir) require a
// process restart to take effect.
func (cm *ConfigManager) OnChange(fn func(Config)) {
	cm.mu.Lock()
	cm.onChange = append(cm.onChange, fn)
	cm.mu.Unlock()
}
