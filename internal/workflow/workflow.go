// Package workflow implements the durable, step-based Workflow Engine
// (§4.2): eight ordered steps per document, persisted via
// internal/store's ProcessingLog so a crash resumes at the first
// not-yet-completed step instead of restarting from scratch.
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/chittyos/evidence-core/internal/blobstore"
	"github.com/chittyos/evidence-core/internal/embedding"
	"github.com/chittyos/evidence-core/internal/extract"
	"github.com/chittyos/evidence-core/internal/keyword"
	"github.com/chittyos/evidence-core/internal/llm"
	"github.com/chittyos/evidence-core/internal/metrics"
	"github.com/chittyos/evidence-core/internal/models"
	"github.com/chittyos/evidence-core/internal/queue"
	"github.com/chittyos/evidence-core/internal/retry"
	"github.com/chittyos/evidence-core/internal/store"
	"github.com/chittyos/evidence-core/internal/vector"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Deps are the Workflow Engine's collaborators, each wrapped in the
// caller's choice of circuit breaker (internal/breaker) before being
// handed to New.
type Deps struct {
	Store        *store.Store
	Blobs        blobstore.BlobStore
	Vision       llm.VisionExtractor
	Embedder     embedding.Embedder
	VectorIndex  vector.VectorIndex
	KeywordIndex keyword.KeywordIndex
	// TextExtractor probes a born-digital PDF (or plain text upload) for
	// an existing text layer before the OCR step falls back to the
	// vision LLM. Nil means always call Vision.OCR.
	TextExtractor *extract.Extractor
	// HunterQueue receives a notification per document for the Duplicate
	// Hunter's post-ingest scan (step 7). May be nil to skip notification
	// (e.g. in tests that don't exercise the Hunter).
	HunterQueue queue.Queue
	Logger      *zap.Logger
}

// Engine runs the eight-step pipeline for one document at a time, subject
// to a global concurrency cap across all in-flight documents.
type Engine struct {
	deps     Deps
	sem      *semaphore.Weighted
	policies map[models.StepName]retry.Policy
}

// Option configures an Engine.
type Option func(*Engine)

// WithPolicies overrides the §4.2 default retry policies, keyed by step
// name. Tests use this to shrink timeouts and backoff so a deliberately
// failing step doesn't spend the default policy's wall-clock budget.
func WithPolicies(policies map[models.StepName]retry.Policy) Option {
	return func(e *Engine) { e.policies = policies }
}

// New creates an Engine bounded to maxInflight concurrent documents. A
// non-positive maxInflight is treated as 1.
func New(deps Deps, maxInflight int, opts ...Option) *Engine {
	if maxInflight <= 0 {
		maxInflight = 1
	}
	e := &Engine{deps: deps, sem: semaphore.NewWeighted(int64(maxInflight)), policies: defaultPolicies}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultPolicies = func() map[models.StepName]retry.Policy {
	m := make(map[models.StepName]retry.Policy, len(retry.Policies))
	for k, v := range retry.Policies {
		m[models.StepName(k)] = v
	}
	return m
}()

// PostIngestNotification is what step 7 pushes to HunterQueue.
type PostIngestNotification struct {
	DocumentID string `json:"document_id"`
}

// Run executes every remaining step of input's workflow instance,
// blocking on the engine's concurrency semaphore first. Steps already
// marked succeeded in the document's ProcessingLog are skipped, so Run is
// safe to call again for a workflow instance that crashed mid-pipeline.
// Cancellation of ctx is advisory (§4.2): the step in flight runs to
// completion or its own timeout; Run then marks the document failed and
// returns without starting the next step.
func (e *Engine) Run(ctx context.Context, input *models.WorkflowInput) error {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire workflow slot: %w", err)
	}
	defer e.sem.Release(1)

	resumeStep, _, done, err := e.deps.Store.ResumePoint(ctx, input.WorkflowInstanceID)
	if err != nil {
		return fmt.Errorf("resolve resume point: %w", err)
	}
	if done {
		return nil
	}

	doc, err := e.deps.Store.GetDocument(ctx, input.DocumentID)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	doc.Status = models.DocumentStatusProcessing
	if err := e.deps.Store.UpdateDocument(ctx, doc); err != nil {
		return fmt.Errorf("mark document processing: %w", err)
	}

	startAt := 0
	for i, st := range models.OrderedSteps {
		if st == resumeStep {
			startAt = i
			break
		}
	}

	for _, st := range models.OrderedSteps[startAt:] {
		if ctx.Err() != nil {
			return e.failDocument(ctx, doc, st, ctx.Err())
		}
		if err := e.runStep(ctx, st, doc, input); err != nil {
			return e.failDocument(ctx, doc, st, err)
		}
	}

	doc.Status = models.DocumentStatusCompleted
	if err := e.deps.Store.UpdateDocument(ctx, doc); err != nil {
		return fmt.Errorf("mark document completed: %w", err)
	}
	metrics.RecordDocumentCompleted()
	return nil
}

// ReExtract re-runs classification/extraction and gap registration for a
// document already through the pipeline once, for the Accuracy
// Guardian's ai_reextract correction path. It does not touch entity
// resolution, the authority graph, embeddings, or the duplicate check,
// since those steps key off doc.ExtractedData rather than re-deriving
// anything classification didn't already cover.
func (e *Engine) ReExtract(ctx context.Context, documentID string) error {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire workflow slot: %w", err)
	}
	defer e.sem.Release(1)

	doc, err := e.deps.Store.GetDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	input := &models.WorkflowInput{
		WorkflowInstanceID: "reextract-" + uuid.New().String(),
		DocumentID:         doc.ID,
	}
	for _, st := range []models.StepName{models.StepClassifyExtract, models.StepRegisterGaps} {
		if err := e.runStep(ctx, st, doc, input); err != nil {
			return fmt.Errorf("re-extract step %s: %w", st, err)
		}
	}
	return nil
}

func (e *Engine) runStep(ctx context.Context, st models.StepName, doc *models.Document, input *models.WorkflowInput) error {
	policy := e.policies[st]
	tries := 0
	start := time.Now()
	stepErr := retry.Do(ctx, policy, func(stepCtx context.Context) error {
		tries++
		return e.dispatchStep(stepCtx, st, doc, input)
	}, func(attempt int, err error) {
		e.logStep(ctx, input.WorkflowInstanceID, doc.ID, st, models.LogStatusRetrying, attempt, err)
	})
	if stepErr != nil {
		e.logStep(ctx, input.WorkflowInstanceID, doc.ID, st, models.LogStatusFailed, tries, stepErr)
		metrics.RecordStep(string(st), "failed", time.Since(start))
		return stepErr
	}
	e.logStep(ctx, input.WorkflowInstanceID, doc.ID, st, models.LogStatusSucceeded, tries, nil)
	metrics.RecordStep(string(st), "succeeded", time.Since(start))
	return nil
}

func (e *Engine) dispatchStep(ctx context.Context, st models.StepName, doc *models.Document, input *models.WorkflowInput) error {
	switch st {
	case models.StepOCR:
		return e.ocrStep(ctx, doc, input)
	case models.StepClassifyExtract:
		return e.classifyExtractStep(ctx, doc)
	case models.StepRegisterGaps:
		return e.registerGapsStep(ctx, doc)
	case models.StepEntityResolution:
		return e.entityResolutionStep(ctx, doc)
	case models.StepAuthorityGraphUpdate:
		return e.authorityGraphUpdateStep(ctx, doc)
	case models.StepEmbedding:
		return e.embeddingStep(ctx, doc)
	case models.StepPostIngestDuplicateCheck:
		return e.postIngestDuplicateCheckStep(ctx, doc)
	case models.StepFinalize:
		return e.finalizeStep(ctx, doc)
	default:
		return fmt.Errorf("unknown workflow step %q", st)
	}
}

func (e *Engine) logStep(ctx context.Context, workflowInstanceID, documentID string, st models.StepName, status models.LogStatus, attempt int, err error) {
	entry := &models.ProcessingLog{
		DocumentID:         documentID,
		WorkflowInstanceID: workflowInstanceID,
		Step:               st,
		Status:             status,
		Attempt:            attempt,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if logErr := e.deps.Store.AppendLog(ctx, entry); logErr != nil && e.deps.Logger != nil {
		e.deps.Logger.Error("workflow append log failed", zap.Error(logErr), zap.String("step", string(st)))
	}
}

func (e *Engine) failDocument(ctx context.Context, doc *models.Document, st models.StepName, err error) error {
	doc.Status = models.DocumentStatusFailed
	doc.LastFailedStep = string(st)
	doc.LastError = err.Error()
	if updErr := e.deps.Store.UpdateDocument(ctx, doc); updErr != nil && e.deps.Logger != nil {
		e.deps.Logger.Error("workflow mark failed document failed", zap.Error(updErr))
	}
	metrics.RecordDocumentFailed()
	return fmt.Errorf("step %s: %w", st, err)
}
