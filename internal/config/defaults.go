package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg, per the
// recognized configuration keys in §6 plus the ambient defaults the
// teacher codebase applies for every other knob.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "./data/db/evidence.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "./data/indices/bleve"
	}
	if cfg.Storage.BlobPath == "" {
		cfg.Storage.BlobPath = "./data/blobs"
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "anthropic"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "claude-3-5-sonnet-latest"
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = "ANTHROPIC_API_KEY"
	}
	if cfg.LLM.MaxOCRTimeout == 0 {
		cfg.LLM.MaxOCRTimeout = 300 * time.Second // MAX_OCR_TIMEOUT_MS default 300000
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "bedrock"
	}
	if cfg.Embedding.ModelID == "" {
		cfg.Embedding.ModelID = "amazon.titan-embed-text-v2:0"
	}
	if cfg.Embedding.Region == "" {
		cfg.Embedding.Region = "us-east-1"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "./data/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1024
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.VectorIndexType == "" {
		cfg.Embedding.VectorIndexType = "memory"
	}
	if cfg.Workflow.MaxInflightDocuments == 0 {
		cfg.Workflow.MaxInflightDocuments = 16 // MAX_INFLIGHT_DOCUMENTS
	}
	if cfg.Workflow.BulkApplyBatch == 0 {
		cfg.Workflow.BulkApplyBatch = 100 // BULK_APPLY_BATCH
	}
	if cfg.Duplicate.AutoMergeThreshold == 0 {
		cfg.Duplicate.AutoMergeThreshold = 0.98 // DUPLICATE_AUTO_MERGE_THRESHOLD
	}
	if cfg.Duplicate.SemanticHighConf == 0 {
		cfg.Duplicate.SemanticHighConf = 0.92
	}
	if cfg.Duplicate.SemanticMediumConf == 0 {
		cfg.Duplicate.SemanticMediumConf = 0.85
	}
	if cfg.Duplicate.PHashHighConf == 0 {
		cfg.Duplicate.PHashHighConf = 0.95
	}
	if cfg.Duplicate.PHashMediumConf == 0 {
		cfg.Duplicate.PHashMediumConf = 0.85
	}
	if cfg.Duplicate.ScanBatchSize == 0 {
		cfg.Duplicate.ScanBatchSize = 200
	}
	if cfg.Guardian.AutoResolveConfidenceThreshold == 0 {
		cfg.Guardian.AutoResolveConfidenceThreshold = 0.90 // AUTO_RESOLVE_CONFIDENCE_THRESHOLD
	}
	if cfg.Guardian.FindAffectedMaxResults == 0 {
		cfg.Guardian.FindAffectedMaxResults = 10000
	}
	if cfg.Queue.Addr == "" {
		cfg.Queue.Addr = "localhost:6379"
	}
	if cfg.Queue.MaxDepth == 0 {
		cfg.Queue.MaxDepth = 1000
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".pdf", ".png", ".jpg", ".jpeg", ".tiff"}
	}
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 10
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = 100
	}
	if cfg.Search.TopKCandidates == 0 {
		cfg.Search.TopKCandidates = 100
	}
	if cfg.Search.KeywordWeight == 0 {
		cfg.Search.KeywordWeight = 0.4
	}
	if cfg.Search.SemanticWeight == 0 {
		cfg.Search.SemanticWeight = 0.6
	}
	if cfg.Search.DefaultMinScore == 0 {
		cfg.Search.DefaultMinScore = 0.2
	}
}
