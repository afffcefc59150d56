// Package duphunter implements the Duplicate Hunter (§4.5): a long-lived
// actor that scans the corpus (full, incremental, or a single document)
// across four detection methods and writes DuplicateCandidate rows,
// auto-merging the clearest matches and routing the rest to review.
package duphunter

import (
	"context"
	"fmt"
	"strings"

	"github.com/chittyos/evidence-core/internal/apperr"
	"github.com/chittyos/evidence-core/internal/blobstore"
	"github.com/chittyos/evidence-core/internal/embedding"
	"github.com/chittyos/evidence-core/internal/metrics"
	"github.com/chittyos/evidence-core/internal/models"
	"github.com/chittyos/evidence-core/internal/store"
	"github.com/chittyos/evidence-core/internal/vector"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Thresholds configures the Duplicate Hunter's confidence bands and
// auto-merge cutoff, mirroring config.DuplicateHunterConfig.
type Thresholds struct {
	AutoMergeThreshold  float64
	SemanticHighConf    float64
	SemanticMediumConf  float64
	PHashHighConf       float64
	PHashMediumConf     float64
	ScanBatchSize       int
}

// DefaultThresholds match §4.5's suggested defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		AutoMergeThreshold: 0.98,
		SemanticHighConf:   0.92,
		SemanticMediumConf: 0.85,
		PHashHighConf:      0.95,
		PHashMediumConf:    0.85,
		ScanBatchSize:      200,
	}
}

// Hunter is the Duplicate Hunter actor.
type Hunter struct {
	store      *store.Store
	blobs      blobstore.BlobStore
	vectorIdx  vector.VectorIndex
	embedder   embedding.Embedder
	thresholds Thresholds
	logger     *zap.Logger
}

// Option configures a Hunter.
type Option func(*Hunter)

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(h *Hunter) { h.logger = l }
}

// New creates a Hunter.
func New(st *store.Store, blobs blobstore.BlobStore, vectorIdx vector.VectorIndex, embedder embedding.Embedder, thresholds Thresholds, opts ...Option) *Hunter {
	h := &Hunter{store: st, blobs: blobs, vectorIdx: vectorIdx, embedder: embedder, thresholds: thresholds}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ScanFull compares every pair of non-superseded documents in the corpus.
// Intended for periodic full sweeps rather than the hot ingestion path.
func (h *Hunter) ScanFull(ctx context.Context) error {
	docs, err := h.loadAllDocuments(ctx)
	if err != nil {
		return err
	}
	for i, doc := range docs {
		for _, other := range docs[i+1:] {
			if err := h.comparePair(ctx, doc, other); err != nil {
				return err
			}
		}
	}
	if len(docs) > 0 {
		return h.store.UpdateScanState(ctx, docs[len(docs)-1].ID)
	}
	return nil
}

// ScanIncremental compares every document ingested since the last
// incremental watermark against the full corpus, then advances the
// watermark. Safe to call repeatedly; if the process crashed mid-scan it
// simply re-scans from the same watermark on the next call.
func (h *Hunter) ScanIncremental(ctx context.Context) error {
	lastID, _, err := h.store.ScanState(ctx)
	if err != nil {
		return fmt.Errorf("read scan state: %w", err)
	}
	fresh, err := h.store.ListDocumentsAfter(ctx, lastID, h.thresholds.ScanBatchSize)
	if err != nil {
		return fmt.Errorf("list new documents: %w", err)
	}
	if len(fresh) == 0 {
		return nil
	}
	corpus, err := h.loadAllDocuments(ctx)
	if err != nil {
		return err
	}
	for _, doc := range fresh {
		for _, other := range corpus {
			if other.ID == doc.ID {
				continue
			}
			if err := h.comparePair(ctx, doc, other); err != nil {
				return err
			}
		}
	}
	return h.store.UpdateScanState(ctx, fresh[len(fresh)-1].ID)
}

// ScanDocument runs the four detection methods for a single document
// against the rest of the corpus (§4.2 step 7's post-ingest hook).
func (h *Hunter) ScanDocument(ctx context.Context, documentID string) error {
	doc, err := h.store.GetDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	corpus, err := h.loadAllDocuments(ctx)
	if err != nil {
		return err
	}
	for _, other := range corpus {
		if other.ID == doc.ID {
			continue
		}
		if err := h.comparePair(ctx, doc, other); err != nil {
			return err
		}
	}
	return nil
}

func (h *Hunter) loadAllDocuments(ctx context.Context) ([]*models.Document, error) {
	var all []*models.Document
	offset := 0
	for {
		page, err := h.store.ListDocuments(ctx, offset, h.thresholds.ScanBatchSize)
		if err != nil {
			return nil, fmt.Errorf("list documents: %w", err)
		}
		for _, d := range page {
			if d.Status == models.DocumentStatusSuperseded {
				continue
			}
			all = append(all, d)
		}
		if len(page) < h.thresholds.ScanBatchSize {
			break
		}
		offset += h.thresholds.ScanBatchSize
	}
	return all, nil
}

// comparePair runs all four detection methods on (a, b) and persists the
// strongest result found, then routes it to auto-merge or review.
func (h *Hunter) comparePair(ctx context.Context, a, b *models.Document) error {
	best := h.detectHash(a, b)
	if c := h.detectPHash(ctx, a, b); c != nil && (best == nil || c.SimilarityScore > best.SimilarityScore) {
		best = c
	}
	if c, err := h.detectSemantic(ctx, a, b); err != nil {
		return err
	} else if c != nil && (best == nil || c.SimilarityScore > best.SimilarityScore) {
		best = c
	}
	if c, err := h.detectMetadata(ctx, a, b); err != nil {
		return err
	} else if c != nil && (best == nil || c.SimilarityScore > best.SimilarityScore) {
		best = c
	}
	if best == nil {
		return nil
	}
	return h.recordCandidate(ctx, best)
}

// detectHash is exact content-hash equality: similarity 1.0, confidence
// high, always the strongest signal when it fires.
func (h *Hunter) detectHash(a, b *models.Document) *models.DuplicateCandidate {
	if a.ContentHash == "" || a.ContentHash != b.ContentHash {
		return nil
	}
	return &models.DuplicateCandidate{
		DocumentID: a.ID, CandidateDocumentID: b.ID,
		Method: models.DuplicateMethodHash, SimilarityScore: 1.0, Confidence: models.ConfidenceHigh,
	}
}

// detectPHash compares the two documents' perceptual hashes: an aHash for
// raster images, a SimHash over OCR-text shingles otherwise (see
// perceptualHashFor). A document with no bytes and no OCR text yet (phash
// computed before step 1 has run) yields a zero hash and is skipped.
func (h *Hunter) detectPHash(ctx context.Context, a, b *models.Document) *models.DuplicateCandidate {
	ah, err := h.perceptualHash(ctx, a)
	if err != nil || ah == 0 {
		return nil
	}
	bh, err := h.perceptualHash(ctx, b)
	if err != nil || bh == 0 {
		return nil
	}
	similarity := phashSimilarity(hammingDistance(ah, bh))
	confidence := h.confidenceBucket(similarity, h.thresholds.PHashHighConf, h.thresholds.PHashMediumConf)
	if confidence == "" {
		return nil
	}
	return &models.DuplicateCandidate{
		DocumentID: a.ID, CandidateDocumentID: b.ID,
		Method: models.DuplicateMethodPHash, SimilarityScore: similarity, Confidence: confidence,
	}
}

func (h *Hunter) perceptualHash(ctx context.Context, doc *models.Document) (uint64, error) {
	if doc.PerceptualHash != 0 {
		return doc.PerceptualHash, nil
	}
	var content []byte
	if isImage(doc.MimeType) {
		var err error
		content, err = h.blobs.Get(ctx, doc.BlobKey)
		if err != nil {
			return 0, err
		}
	}
	hash, err := perceptualHashFor(doc.MimeType, content, doc.Content)
	if err != nil || hash == 0 {
		return 0, err
	}
	doc.PerceptualHash = hash
	_ = h.store.UpdateDocument(ctx, doc)
	return hash, nil
}

// detectSemantic re-embeds each document's indexing text and compares
// cosine similarity via the Vector Index, which already holds every
// completed document's vector under its document id (§4.2 step 6).
func (h *Hunter) detectSemantic(ctx context.Context, a, b *models.Document) (*models.DuplicateCandidate, error) {
	vec, err := h.embedder.Embed(ctx, indexingText(a))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindEmbeddingFailed, "embed document for duplicate scan", err)
	}
	results, err := h.vectorIdx.Search(ctx, vec, 10)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	for _, r := range results {
		if r.ID != b.ID {
			continue
		}
		confidence := h.confidenceBucket(r.Score, h.thresholds.SemanticHighConf, h.thresholds.SemanticMediumConf)
		if confidence == "" {
			return nil, nil
		}
		return &models.DuplicateCandidate{
			DocumentID: a.ID, CandidateDocumentID: b.ID,
			Method: models.DuplicateMethodSemantic, SimilarityScore: r.Score, Confidence: confidence,
		}, nil
	}
	return nil, nil
}

// detectMetadata is a weighted overlap over document type, effective
// date, and shared resolved entities (a stronger signal than raw name
// text, since entity resolution already canonicalized names to ids).
func (h *Hunter) detectMetadata(ctx context.Context, a, b *models.Document) (*models.DuplicateCandidate, error) {
	var score float64
	if a.DocType != "" && a.DocType == b.DocType {
		score += 0.3
	}
	if a.EffectiveDate != nil && b.EffectiveDate != nil && a.EffectiveDate.Equal(*b.EffectiveDate) {
		score += 0.3
	}
	overlap, err := h.entityOverlap(ctx, a.ID, b.ID)
	if err != nil {
		return nil, err
	}
	score += 0.4 * overlap
	if score < h.thresholds.SemanticMediumConf {
		return nil, nil
	}
	confidence := h.confidenceBucket(score, h.thresholds.SemanticHighConf, h.thresholds.SemanticMediumConf)
	if confidence == "" {
		return nil, nil
	}
	return &models.DuplicateCandidate{
		DocumentID: a.ID, CandidateDocumentID: b.ID,
		Method: models.DuplicateMethodMetadata, SimilarityScore: score, Confidence: confidence,
	}, nil
}

func (h *Hunter) entityOverlap(ctx context.Context, docA, docB string) (float64, error) {
	linksA, err := h.store.LinksForDocument(ctx, docA)
	if err != nil {
		return 0, fmt.Errorf("links for document %s: %w", docA, err)
	}
	linksB, err := h.store.LinksForDocument(ctx, docB)
	if err != nil {
		return 0, fmt.Errorf("links for document %s: %w", docB, err)
	}
	if len(linksA) == 0 || len(linksB) == 0 {
		return 0, nil
	}
	set := make(map[string]bool, len(linksA))
	for _, l := range linksA {
		set[l.EntityID] = true
	}
	shared := 0
	for _, l := range linksB {
		if set[l.EntityID] {
			shared++
		}
	}
	union := len(set)
	for _, l := range linksB {
		if !set[l.EntityID] {
			union++
		}
	}
	if union == 0 {
		return 0, nil
	}
	return float64(shared) / float64(union), nil
}

func (h *Hunter) confidenceBucket(score, high, medium float64) models.ConfidenceBucket {
	switch {
	case score >= high:
		return models.ConfidenceHigh
	case score >= medium:
		return models.ConfidenceMedium
	default:
		return ""
	}
}

// recordCandidate upserts the candidate and, if it clears the auto-merge
// threshold, folds the newer document into the older one via
// store.MergeDocuments; otherwise it's routed to the review queue with
// priority inversely proportional to (1 - similarity).
func (h *Hunter) recordCandidate(ctx context.Context, c *models.DuplicateCandidate) error {
	autoMerge := c.Method == models.DuplicateMethodHash || c.SimilarityScore >= h.thresholds.AutoMergeThreshold
	c.AutoResolved = autoMerge
	if err := h.store.UpsertDuplicateCandidate(ctx, c); err != nil {
		return fmt.Errorf("upsert duplicate candidate: %w", err)
	}
	metrics.RecordDuplicateCandidate(string(c.Method))
	if !autoMerge {
		// 100/(1 - similarity), with the denominator floored at 0.01.
		denom := 1 - c.SimilarityScore
		if denom < 0.01 {
			denom = 0.01
		}
		priority := int(100 / denom)
		if err := h.store.EnqueueReview(ctx, &models.ReviewQueueItem{
			ID:          uuid.New().String(),
			Type:        models.ReviewItemTypeDuplicate,
			SourceTable: "duplicate_candidates",
			SourceID:    c.DocumentID + "/" + c.CandidateDocumentID,
			Priority:    priority,
			Status:      models.ReviewItemPending,
		}); err != nil {
			return fmt.Errorf("enqueue duplicate review: %w", err)
		}
		if h.logger != nil {
			h.logger.Info("duplicate candidate routed to review",
				zap.String("document_id", c.DocumentID), zap.String("candidate_document_id", c.CandidateDocumentID),
				zap.String("method", string(c.Method)), zap.Float64("similarity", c.SimilarityScore))
		}
		return nil
	}

	winner, loser, err := h.olderFirst(ctx, c.DocumentID, c.CandidateDocumentID)
	if err != nil {
		return err
	}
	if err := h.store.MergeDocuments(ctx, winner, loser); err != nil {
		return apperr.Wrap(apperr.KindEntityMergeConflict, "auto-merge duplicate", err)
	}
	if err := h.store.SetDuplicateStatus(ctx, c.DocumentID, c.CandidateDocumentID, models.DuplicateStatusMerged, true); err != nil {
		return fmt.Errorf("set duplicate status merged: %w", err)
	}
	if h.logger != nil {
		h.logger.Info("duplicate auto-merged", zap.String("winner", winner), zap.String("loser", loser), zap.String("method", string(c.Method)))
	}
	return nil
}

// olderFirst preserves the older document (by submission time) as the
// merge winner, per §4.5 ("the older document is preserved").
func (h *Hunter) olderFirst(ctx context.Context, idA, idB string) (winner, loser string, err error) {
	a, err := h.store.GetDocument(ctx, idA)
	if err != nil {
		return "", "", fmt.Errorf("load document %s: %w", idA, err)
	}
	b, err := h.store.GetDocument(ctx, idB)
	if err != nil {
		return "", "", fmt.Errorf("load document %s: %w", idB, err)
	}
	if a.SubmittedAt.Before(b.SubmittedAt) {
		return a.ID, b.ID, nil
	}
	return b.ID, a.ID, nil
}

func isImage(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}

// indexingText mirrors workflow's embeddingText closely enough for
// duplicate detection's purposes: doc type, title, and a truncated
// OCR slice. Kept separate (rather than exported from internal/workflow)
// since the Duplicate Hunter has no other reason to depend on it.
func indexingText(doc *models.Document) string {
	var b strings.Builder
	b.WriteString(string(doc.DocType))
	b.WriteString(" ")
	b.WriteString(doc.Title)
	ocr := doc.Content
	const limit = 2000
	if len(ocr) > limit {
		ocr = ocr[:limit]
	}
	b.WriteString(" ")
	b.WriteString(ocr)
	return b.String()
}
