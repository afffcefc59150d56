package breaker

import (
	"context"

	"github.com/chittyos/evidence-core/internal/blobstore"
	"github.com/chittyos/evidence-core/internal/embedding"
	"github.com/chittyos/evidence-core/internal/llm"
	"github.com/chittyos/evidence-core/internal/models"
)

// visionBreaker wraps a llm.VisionExtractor so OCR and classification
// calls trip independently: a vision backend that's still reachable for
// short OCR requests but failing on longer classification prompts
// shouldn't have both calls open together.
type visionBreaker struct {
	inner llm.VisionExtractor
	ocr   *Breaker
	cls   *Breaker
}

// WrapVision returns a llm.VisionExtractor that runs OCR and
// ClassifyAndExtract through separate breakers, ocrCfg and clsCfg.
func WrapVision(inner llm.VisionExtractor, ocrCfg, clsCfg Config) llm.VisionExtractor {
	if ocrCfg.Name == "" {
		ocrCfg.Name = "vision.ocr"
	}
	if clsCfg.Name == "" {
		clsCfg.Name = "vision.classify"
	}
	return &visionBreaker{inner: inner, ocr: New(ocrCfg), cls: New(clsCfg)}
}

func (v *visionBreaker) OCR(ctx context.Context, content []byte, mimeType string) (string, error) {
	return Do(v.ocr, func() (string, error) { return v.inner.OCR(ctx, content, mimeType) })
}

func (v *visionBreaker) ClassifyAndExtract(ctx context.Context, ocrText string) (*models.ExtractedData, error) {
	return Do(v.cls, func() (*models.ExtractedData, error) { return v.inner.ClassifyAndExtract(ctx, ocrText) })
}

// embedderBreaker wraps an embedding.Embedder behind a breaker.
type embedderBreaker struct {
	inner embedding.Embedder
	b     *Breaker
}

// WrapEmbedder returns an embedding.Embedder whose Embed/EmbedBatch calls
// run through a breaker.
func WrapEmbedder(inner embedding.Embedder, cfg Config) embedding.Embedder {
	if cfg.Name == "" {
		cfg.Name = "embedding"
	}
	return &embedderBreaker{inner: inner, b: New(cfg)}
}

func (e *embedderBreaker) Embed(ctx context.Context, text string) ([]float32, error) {
	return Do(e.b, func() ([]float32, error) { return e.inner.Embed(ctx, text) })
}

func (e *embedderBreaker) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return Do(e.b, func() ([][]float32, error) { return e.inner.EmbedBatch(ctx, texts) })
}

func (e *embedderBreaker) Dimensions() int { return e.inner.Dimensions() }
func (e *embedderBreaker) Close() error    { return e.inner.Close() }

// blobStoreBreaker wraps a blobstore.BlobStore behind a breaker, for a
// remote backend (S3) where an outage should fail fast instead of
// blocking a workflow step on every retry.
type blobStoreBreaker struct {
	inner blobstore.BlobStore
	b     *Breaker
}

// WrapBlobStore returns a blobstore.BlobStore whose calls run through a
// breaker.
func WrapBlobStore(inner blobstore.BlobStore, cfg Config) blobstore.BlobStore {
	if cfg.Name == "" {
		cfg.Name = "blobstore"
	}
	return &blobStoreBreaker{inner: inner, b: New(cfg)}
}

func (s *blobStoreBreaker) Put(ctx context.Context, content []byte) (string, error) {
	return Do(s.b, func() (string, error) { return s.inner.Put(ctx, content) })
}

func (s *blobStoreBreaker) Get(ctx context.Context, key string) ([]byte, error) {
	return Do(s.b, func() ([]byte, error) { return s.inner.Get(ctx, key) })
}

func (s *blobStoreBreaker) Exists(ctx context.Context, key string) (bool, error) {
	return Do(s.b, func() (bool, error) { return s.inner.Exists(ctx, key) })
}
