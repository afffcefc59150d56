// Package ingestion implements the Ingestion Gateway (§4.1): the entry
// point for a document upload. It hashes the bytes, short-circuits on a
// content-hash duplicate, persists a pending Document, and hands a
// WorkflowInput off to the Workflow Engine's queue.
package ingestion

import (
	"context"
	"time"

	"github.com/chittyos/evidence-core/internal/apperr"
	"github.com/chittyos/evidence-core/internal/blobstore"
	"github.com/chittyos/evidence-core/internal/models"
	"github.com/chittyos/evidence-core/internal/queue"
	"github.com/chittyos/evidence-core/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Gateway is the Ingestion Gateway. It is safe for concurrent use.
type Gateway struct {
	store         *store.Store
	blobs         blobstore.BlobStore
	workflowQueue queue.Queue
	logger        *zap.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger attaches a logger for ingestion-level events.
func WithLogger(l *zap.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// New creates a Gateway. workflowQueue receives a models.WorkflowInput per
// accepted document, for a consumer to hand to workflow.Engine.Run.
func New(st *store.Store, blobs blobstore.BlobStore, workflowQueue queue.Queue, opts ...Option) *Gateway {
	g := &Gateway{store: st, blobs: blobs, workflowQueue: workflowQueue}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Submit implements §4.1's contract: compute the content hash, dedupe by
// hash, write bytes to blob storage, insert a pending Document, and
// enqueue a WorkflowInput. Idempotency is on content hash: bytes seen
// before (even via a different filename or uploader) return the existing
// document as a duplicate rather than re-ingesting.
func (g *Gateway) Submit(ctx context.Context, input *models.DocumentInput) (*models.UploadResponse, error) {
	hash := blobstore.KeyFor(input.Content)

	existing, err := g.store.GetDocumentByContentHash(ctx, hash)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "lookup document by content hash", err)
	}
	if existing != nil {
		if g.logger != nil {
			g.logger.Info("ingestion duplicate", zap.String("existing_document_id", existing.ID))
		}
		return &models.UploadResponse{Status: "duplicate", ExistingDocumentID: existing.ID}, nil
	}

	key, err := g.blobs.Put(ctx, input.Content)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIngestion, "write blob", err)
	}

	docID := uuid.New().String()
	now := time.Now()
	doc := &models.Document{
		ID:             docID,
		ContentHash:    hash,
		BlobKey:        key,
		SourceFilename: input.SourceFilename,
		MimeType:       input.MimeType,
		SizeBytes:      int64(len(input.Content)),
		Status:         models.DocumentStatusPending,
		SubmittedAt:    now,
		UpdatedAt:      now,
	}
	if err := g.store.CreateDocument(ctx, doc); err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "insert document", err)
	}

	workflowInstanceID := uuid.New().String()
	wfInput := &models.WorkflowInput{
		WorkflowInstanceID: workflowInstanceID,
		DocumentID:         docID,
		BlobKey:            key,
		ContentHash:        hash,
		SourceFilename:     input.SourceFilename,
		MimeType:           input.MimeType,
		Uploader:           input.Uploader,
	}
	if err := g.workflowQueue.Push(ctx, wfInput); err != nil {
		return nil, apperr.Wrap(apperr.KindIngestion, "enqueue workflow input", err)
	}

	if g.logger != nil {
		g.logger.Info("ingestion accepted",
			zap.String("document_id", docID),
			zap.String("workflow_instance_id", workflowInstanceID),
			zap.String("filename", input.SourceFilename))
	}

	return &models.UploadResponse{
		Status:             "processing",
		DocumentID:         docID,
		WorkflowInstanceID: workflowInstanceID,
	}, nil
}
