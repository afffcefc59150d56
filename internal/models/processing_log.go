package models

import "time"

// StepName enumerates the Workflow Engine's eight ordered pipeline steps.
type StepName string

const (
	StepOCR                   StepName = "ocr"
	StepClassifyExtract        StepName = "classify_extract"
	StepRegisterGaps           StepName = "register_gaps"
	StepEntityResolution       StepName = "entity_resolution"
	StepAuthorityGraphUpdate   StepName = "authority_graph_update"
	StepEmbedding              StepName = "embedding"
	StepPostIngestDuplicateCheck StepName = "post_ingest_duplicate_check"
	StepFinalize               StepName = "finalize"
)

// OrderedSteps is the Workflow Engine's fixed pipeline order (§4.2).
var OrderedSteps = []StepName{
	StepOCR,
	StepClassifyExtract,
	StepRegisterGaps,
	StepEntityResolution,
	StepAuthorityGraphUpdate,
	StepEmbedding,
	StepPostIngestDuplicateCheck,
	StepFinalize,
}

// LogStatus is the outcome recorded for one step attempt.
type LogStatus string

const (
	LogStatusSucceeded LogStatus = "succeeded"
	LogStatusFailed    LogStatus = "failed"
	LogStatusRetrying  LogStatus = "retrying"
)

// ProcessingLog is an append-only per-step trace. A step gets a retrying
// entry for each failed attempt that is retried and one succeeded or failed
// entry when it finishes; crash recovery folds over this log to find the
// first step without a success entry.
type ProcessingLog struct {
	ID                 int64     `json:"id" db:"id"`
	DocumentID         string    `json:"document_id" db:"document_id"`
	WorkflowInstanceID string    `json:"workflow_instance_id" db:"workflow_instance_id"`
	Step               StepName  `json:"step" db:"step"`
	Status             LogStatus `json:"status" db:"status"`
	Attempt            int       `json:"attempt" db:"attempt"`
	Error              string    `json:"error,omitempty" db:"error"`
	RecordedAt         time.Time `json:"recorded_at" db:"recorded_at"`
}

// WorkflowInput is what the Ingestion Gateway hands off to the Workflow
// Engine for one document.
type WorkflowInput struct {
	WorkflowInstanceID string
	DocumentID         string
	BlobKey            string
	ContentHash        string
	SourceFilename     string
	MimeType           string
	Uploader           string
}
