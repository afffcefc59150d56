// Package main is the evidence ingestion core's entry point: it wires
// the Knowledge Graph Store, blob storage, vision/embedding backends,
// the Workflow Engine, the Ingestion Gateway, the Duplicate Hunter, the
// Accuracy Guardian, the hot-folder watcher, and the HTTP API, then
// serves until terminated.
package main

import (
	"context"
	"flag"
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/chittyos/evidence-core/internal/blobstore"
	"github.com/chittyos/evidence-core/internal/breaker"
	"github.com/chittyos/evidence-core/internal/config"
	"github.com/chittyos/evidence-core/internal/duphunter"
	"github.com/chittyos/evidence-core/internal/embedding"
	"github.com/chittyos/evidence-core/internal/extract"
	"github.com/chittyos/evidence-core/internal/guardian"
	"github.com/chittyos/evidence-core/internal/ingestion"
	"github.com/chittyos/evidence-core/internal/keyword"
	"github.com/chittyos/evidence-core/internal/llm"
	"github.com/chittyos/evidence-core/internal/metrics"
	"github.com/chittyos/evidence-core/internal/models"
	"github.com/chittyos/evidence-core/internal/queue"
	"github.com/chittyos/evidence-core/internal/search"
	"github.com/chittyos/evidence-core/internal/server"
	"github.com/chittyos/evidence-core/internal/storage"
	"github.com/chittyos/evidence-core/internal/store"
	"github.com/chittyos/evidence-core/internal/vector"
	"github.com/chittyos/evidence-core/internal/watcher"
	"github.com/chittyos/evidence-core/internal/workflow"
	"github.com/redis/go-redis/v9"
)

const defaultConfigPath = "/usr/local/etc/evidence-core/config.yaml"

var version = "dev"

func main() {
	configPath := flag.String("config", defaultConfigPath, "config file path")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("evidence-core version %s\n", version)
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	var logger *zap.Logger
	if cfg.Debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Printf("failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	comp, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize components", zap.Error(err))
	}
	defer comp.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	comp.startWorkers(ctx)
	comp.startWatcher(ctx)
	comp.startBlobStoreSampler(ctx)

	go func() {
		if err := comp.Server.Start(); err != nil {
			logger.Error("server stopped", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := comp.Server.Stop(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
}

// loadConfig loads config from path, falling back to ./config.yaml when
// the default path doesn't exist, mirroring the teacher's development
// convenience fallback.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if path == defaultConfigPath {
			if _, statErr := os.Stat("./config.yaml"); statErr == nil {
				return config.Load("./config.yaml")
			}
		}
		return nil, err
	}
	return cfg, nil
}

// components holds every long-lived collaborator the composition root
// wires together.
type components struct {
	Store         *store.Store
	Blobs         blobstore.BlobStore
	Embedder      embedding.Embedder
	VectorIndex   vector.VectorIndex
	KeywordIndex  keyword.KeywordIndex
	WorkflowQueue queue.Queue
	HunterQueue   queue.Queue
	ReextractQ    queue.Queue
	Engine        *workflow.Engine
	Gateway       *ingestion.Gateway
	Hunter        *duphunter.Hunter
	Guardian      *guardian.Guardian
	Server        *server.Server
	Watcher       *watcher.Watcher
	logger        *zap.Logger
}

func (c *components) Close() {
	_ = c.Store.Close()
	_ = c.Embedder.Close()
	_ = c.VectorIndex.Close()
	_ = c.KeywordIndex.Close()
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*components, error) {
	st, err := store.New(cfg.Storage.DatabasePath, store.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("initialize store: %w", err)
	}

	blobs, err := newBlobStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize blob store: %w", err)
	}

	vectorIndex, err := vector.NewVectorIndex(cfg.Embedding.VectorIndexType, cfg.Embedding.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("initialize vector index: %w", err)
	}

	keywordIndex, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		return nil, fmt.Errorf("initialize keyword index: %w", err)
	}

	embedder, err := newEmbedder(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize embedder: %w", err)
	}

	vision := newVisionExtractor(cfg, logger)

	workflowQueue := newQueue(cfg, "workflow")
	hunterQueue := newQueue(cfg, "duphunter")
	reextractQueue := newQueue(cfg, "reextract")

	breakerCfg := func(name string) breaker.Config {
		return breaker.Config{Name: name, MaxFailures: 5, OpenTimeout: 30 * time.Second,
			OnStateChange: func(name, from, to string) {
				logger.Warn("breaker state change", zap.String("breaker", name), zap.String("from", from), zap.String("to", to))
			},
		}
	}
	guardedVision := breaker.WrapVision(vision, breakerCfg("vision.ocr"), breakerCfg("vision.classify"))
	guardedEmbedder := breaker.WrapEmbedder(embedder, breakerCfg("embedding"))
	guardedBlobs := breaker.WrapBlobStore(blobs, breakerCfg("blobstore"))

	engine := workflow.New(workflow.Deps{
		Store:         st,
		Blobs:         guardedBlobs,
		Vision:        guardedVision,
		Embedder:      guardedEmbedder,
		VectorIndex:   vectorIndex,
		KeywordIndex:  keywordIndex,
		TextExtractor: extract.NewExtractor(),
		HunterQueue:   hunterQueue,
		Logger:        logger,
	}, cfg.Workflow.MaxInflightDocuments)

	gateway := ingestion.New(st, blobs, workflowQueue, ingestion.WithLogger(logger))

	thresholds := duphunter.Thresholds{
		AutoMergeThreshold: cfg.Duplicate.AutoMergeThreshold,
		SemanticHighConf:   cfg.Duplicate.SemanticHighConf,
		SemanticMediumConf: cfg.Duplicate.SemanticMediumConf,
		PHashHighConf:      cfg.Duplicate.PHashHighConf,
		PHashMediumConf:    cfg.Duplicate.PHashMediumConf,
		ScanBatchSize:      cfg.Duplicate.ScanBatchSize,
	}
	hunter := duphunter.New(st, blobs, vectorIndex, embedder, thresholds, duphunter.WithLogger(logger))

	g := guardian.New(st,
		guardian.WithLogger(logger),
		guardian.WithReextractQueue(reextractQueue),
		guardian.WithBulkApplyBatch(cfg.Workflow.BulkApplyBatch),
	)

	searchEngine := search.NewEngine(st, embedder, vectorIndex, keywordIndex, &cfg.Search)

	srv := server.New(server.Deps{
		Gateway:  gateway,
		Engine:   searchEngine,
		Store:    st,
		Guardian: g,
		Config:   &cfg.Server,
		Logger:   logger,
	})

	w := watcher.NewWatcher(
		cfg.Watch.Directories,
		cfg.Watch.Extensions,
		cfg.Watch.RecursiveOrDefault(),
		func(path string) { onWatchIndex(logger, gateway, path) },
		func(path string) { onWatchRemove(logger, path) },
		watcher.WithLogger(logger),
	)

	return &components{
		Store: st, Blobs: blobs, Embedder: embedder, VectorIndex: vectorIndex, KeywordIndex: keywordIndex,
		WorkflowQueue: workflowQueue, HunterQueue: hunterQueue, ReextractQ: reextractQueue,
		Engine:  engine,
		Gateway: gateway, Hunter: hunter, Guardian: g, Server: srv, Watcher: w, logger: logger,
	}, nil
}

func newBlobStore(cfg *config.Config) (blobstore.BlobStore, error) {
	if cfg.Storage.S3Bucket != "" {
		return blobstore.NewS3BlobStore(context.Background(), cfg.Embedding.Region, cfg.Storage.S3Bucket, cfg.Storage.S3Prefix)
	}
	return blobstore.NewLocalBlobStore(cfg.Storage.BlobPath)
}

func newEmbedder(cfg *config.Config, logger *zap.Logger) (embedding.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "mock":
		return embedding.NewMockEmbedder(cfg.Embedding.Dimensions), nil
	case "onnx":
		e, err := embedding.NewONNXEmbedder(cfg.Embedding.ModelPath, cfg.Embedding.Dimensions, 0, cfg.Embedding.CacheSize)
		if err != nil {
			logger.Warn("onnx embedder unavailable, falling back to mock", zap.Error(err))
			return embedding.NewMockEmbedder(cfg.Embedding.Dimensions), nil
		}
		return e, nil
	default:
		e, err := embedding.NewBedrockEmbedder(context.Background(), cfg.Embedding.Region, cfg.Embedding.ModelID, cfg.Embedding.Dimensions, cfg.Embedding.CacheSize)
		if err != nil {
			logger.Warn("bedrock embedder unavailable, falling back to mock", zap.Error(err))
			return embedding.NewMockEmbedder(cfg.Embedding.Dimensions), nil
		}
		return e, nil
	}
}

func newVisionExtractor(cfg *config.Config, logger *zap.Logger) llm.VisionExtractor {
	if cfg.LLM.Provider == "mock" {
		return llm.NewMockExtractor()
	}
	apiKey := os.Getenv(cfg.LLM.APIKeyEnv)
	if apiKey == "" {
		logger.Warn("no LLM API key set, falling back to mock extractor", zap.String("env_var", cfg.LLM.APIKeyEnv))
		return llm.NewMockExtractor()
	}
	return llm.NewAnthropicExtractor(apiKey, cfg.LLM.Model)
}

func newQueue(cfg *config.Config, key string) queue.Queue {
	if cfg.Queue.UseInMemory || cfg.Queue.Addr == "" {
		return queue.NewMemoryQueue(cfg.Queue.MaxDepth)
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Queue.Addr})
	return queue.NewRedisQueue(client, "evidence-core:"+key, int64(cfg.Queue.MaxDepth))
}

// startWorkers launches the background consumers that bridge queue.Queue
// producers (Ingestion Gateway, Workflow Engine, Accuracy Guardian) to
// their respective actors, since none of those packages own a polling
// loop themselves.
func (c *components) startWorkers(ctx context.Context) {
	go c.runWorkflowWorker(ctx)
	go c.runHunterWorker(ctx)
	go c.runReextractWorker(ctx)
	go c.runHunterSweep(ctx)
}

func (c *components) runWorkflowWorker(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		var input models.WorkflowInput
		if err := c.WorkflowQueue.Pop(ctx, &input); err != nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		go func(in models.WorkflowInput) {
			if err := c.Engine.Run(context.Background(), &in); err != nil {
				c.logger.Error("workflow run failed", zap.String("document_id", in.DocumentID), zap.Error(err))
			}
		}(input)
	}
}

func (c *components) runHunterWorker(ctx context.Context) {
	var notice struct {
		DocumentID string `json:"document_id"`
	}
	for {
		if ctx.Err() != nil {
			return
		}
		if err := c.HunterQueue.Pop(ctx, &notice); err != nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		if err := c.Hunter.ScanDocument(ctx, notice.DocumentID); err != nil {
			c.logger.Error("post-ingest duplicate scan failed", zap.String("document_id", notice.DocumentID), zap.Error(err))
		}
	}
}

func (c *components) runReextractWorker(ctx context.Context) {
	var req guardian.ReExtractRequest
	for {
		if ctx.Err() != nil {
			return
		}
		if err := c.ReextractQ.Pop(ctx, &req); err != nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		if err := c.Engine.ReExtract(ctx, req.DocumentID); err != nil {
			c.logger.Error("re-extraction failed", zap.String("document_id", req.DocumentID), zap.String("field_path", req.FieldPath), zap.Error(err))
		}
	}
}

const hunterSweepInterval = 10 * time.Minute

// runHunterSweep periodically runs the Duplicate Hunter's incremental scan,
// supplementing the per-document post-ingest check with a sweep that also
// catches documents ingested before the Hunter existed or missed by a
// crashed worker.
func (c *components) runHunterSweep(ctx context.Context) {
	ticker := time.NewTicker(hunterSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Hunter.ScanIncremental(ctx); err != nil {
				c.logger.Error("duplicate hunter incremental scan failed", zap.Error(err))
			}
		}
	}
}

func (c *components) startWatcher(ctx context.Context) {
	if err := c.Watcher.Start(ctx); err != nil {
		c.logger.Error("watcher failed to start", zap.Error(err))
	}
}

const blobStoreSampleInterval = time.Minute

// startBlobStoreSampler periodically samples the local blob store's disk
// usage into the blobstore_bytes gauge. A no-op for S3-backed storage,
// since storage.DiskUsageBytes only understands local paths.
func (c *components) startBlobStoreSampler(ctx context.Context) {
	local, ok := c.Blobs.(*blobstore.LocalBlobStore)
	if !ok {
		return
	}
	ticker := time.NewTicker(blobStoreSampleInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := storage.DiskUsageBytes(local.Root())
				if err != nil {
					c.logger.Warn("disk usage sample failed", zap.Error(err))
					continue
				}
				metrics.SetBlobStoreBytes(n)
			}
		}
	}()
}

// onWatchIndex submits a hot-folder file to the Ingestion Gateway, reading
// its bytes and inferring a mime type by extension.
func onWatchIndex(logger *zap.Logger, gateway *ingestion.Gateway, path string) {
	content, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("watch read file failed", zap.String("path", path), zap.Error(err))
		return
	}
	_, err = gateway.Submit(context.Background(), &models.DocumentInput{
		Content:        content,
		SourceFilename: path,
		MimeType:       mimeTypeForPath(path),
		Uploader:       "watcher",
	})
	if err != nil {
		logger.Warn("watch submit failed", zap.String("path", path), zap.Error(err))
	}
}

// onWatchRemove is a no-op: unlike the teacher's standalone search index,
// a document here is a system-of-record entity with its own lifecycle
// (supersession, merge) rather than a derived index entry, so a file
// disappearing from a watched folder deletes nothing.
func onWatchRemove(logger *zap.Logger, path string) {
	logger.Debug("watch file removed, no action taken", zap.String("path", path))
}

// mimeTypeForPath infers a mime type from a file's extension. The pack
// carries no dedicated content-sniffing library, so this falls back to
// the standard library's extension table plus the few evidence-document
// types it's missing.
func mimeTypeForPath(path string) string {
	switch filepath.Ext(path) {
	case ".pdf":
		return "application/pdf"
	case ".tif", ".tiff":
		return "image/tiff"
	}
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}
