// Package config provides configuration loading and structs for the
// evidence ingestion core.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool                    `yaml:"debug"`
	Server    ServerConfig            `yaml:"server"`
	Storage   StorageConfig           `yaml:"storage"`
	LLM       LLMConfig               `yaml:"llm"`
	Embedding EmbeddingConfig         `yaml:"embedding"`
	Workflow  WorkflowConfig          `yaml:"workflow"`
	Duplicate DuplicateHunterConfig   `yaml:"duplicate_hunter"`
	Guardian  AccuracyGuardianConfig  `yaml:"accuracy_guardian"`
	Queue     QueueConfig             `yaml:"queue"`
	Watch     WatchConfig             `yaml:"watch"`
	Search    SearchConfig            `yaml:"search"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the relational store, indices, and blobs.
type StorageConfig struct {
	DatabasePath   string `yaml:"database_path"`
	BleveIndexPath string `yaml:"bleve_index_path"`
	BlobPath       string `yaml:"blob_path"`
	S3Bucket       string `yaml:"s3_bucket"`
	S3Prefix       string `yaml:"s3_prefix"`
}

// LLMConfig holds settings for the vision/LLM extraction backend.
type LLMConfig struct {
	Provider    string        `yaml:"provider"` // "anthropic" or "mock"
	Model       string        `yaml:"model"`
	APIKeyEnv   string        `yaml:"api_key_env"`
	MaxOCRTimeout time.Duration `yaml:"max_ocr_timeout"`
}

// EmbeddingConfig holds settings for the embedding backend.
type EmbeddingConfig struct {
	Provider        string `yaml:"provider"` // "bedrock", "onnx", or "mock"
	ModelID         string `yaml:"model_id"`
	Region          string `yaml:"region"`
	ModelPath       string `yaml:"model_path"` // ONNX fallback
	Dimensions      int    `yaml:"dimensions"`
	CacheSize       int    `yaml:"cache_size"`
	VectorIndexType string `yaml:"vector_index_type"` // "memory" or "faiss"
}

// WorkflowConfig holds Workflow Engine concurrency and retry settings.
type WorkflowConfig struct {
	MaxInflightDocuments int `yaml:"max_inflight_documents"`
	BulkApplyBatch        int `yaml:"bulk_apply_batch"`
}

// DuplicateHunterConfig holds Duplicate Hunter thresholds.
type DuplicateHunterConfig struct {
	AutoMergeThreshold float64 `yaml:"auto_merge_threshold"`
	SemanticHighConf    float64 `yaml:"semantic_high_confidence"`
	SemanticMediumConf   float64 `yaml:"semantic_medium_confidence"`
	PHashHighConf        float64 `yaml:"phash_high_confidence"`
	PHashMediumConf       float64 `yaml:"phash_medium_confidence"`
	ScanBatchSize         int     `yaml:"scan_batch_size"`
}

// AccuracyGuardianConfig holds Accuracy Guardian thresholds.
type AccuracyGuardianConfig struct {
	AutoResolveConfidenceThreshold float64 `yaml:"auto_resolve_confidence_threshold"`
	FindAffectedMaxResults          int     `yaml:"find_affected_max_results"`
}

// QueueConfig holds settings for the Redis-backed work queues.
type QueueConfig struct {
	Addr          string `yaml:"addr"`
	MaxDepth      int    `yaml:"max_depth"`
	UseInMemory   bool   `yaml:"use_in_memory"`
}

// WatchConfig holds hot-folder watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to
// true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// SearchConfig holds /search ranking and candidate-pool settings.
type SearchConfig struct {
	DefaultLimit            int     `yaml:"default_limit"`
	MaxLimit                int     `yaml:"max_limit"`
	TopKCandidates          int     `yaml:"top_k_candidates"`
	KeywordWeight           float64 `yaml:"keyword_weight"`
	SemanticWeight          float64 `yaml:"semantic_weight"`
	DefaultMinScore         float64 `yaml:"default_min_score"`
}

// Load reads and parses the config file at path, expands paths, and
// applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	cfg.Storage.BlobPath = expandPath(cfg.Storage.BlobPath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are
// relative to configDir; other relative paths are relative to the home
// directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
