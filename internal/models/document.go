package models

import "time"

// DocumentStatus tracks where a document is in the ingestion pipeline.
type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusCompleted  DocumentStatus = "completed"
	DocumentStatusFailed     DocumentStatus = "failed"
	DocumentStatusSuperseded DocumentStatus = "superseded"
)

// DocumentType is the closed set of document classifications the
// extraction step is allowed to assign.
type DocumentType string

const (
	DocTypePOAGeneral       DocumentType = "poa_general"
	DocTypePOAHealthcare     DocumentType = "poa_healthcare"
	DocTypePOAFinancial      DocumentType = "poa_financial"
	DocTypeLLCFormation      DocumentType = "llc_formation"
	DocTypeOperatingAgree    DocumentType = "operating_agreement"
	DocTypeCorporateResBy    DocumentType = "corporate_resolution_bylaws"
	DocTypeBankStatement     DocumentType = "bank_statement"
	DocTypeContract          DocumentType = "contract"
	DocTypeDeed              DocumentType = "deed"
	DocTypeTrust             DocumentType = "trust"
	DocTypeWill              DocumentType = "will"
	DocTypeCourtFiling       DocumentType = "court_filing"
	DocTypeCorrespondence    DocumentType = "correspondence"
	DocTypeOther             DocumentType = "other"
)

// Document is an ingested piece of evidence: a legal filing, exhibit, or
// scanned record, plus everything the pipeline learned from it.
//
// Title and Content exist primarily so the keyword index can treat a
// Document as a searchable record; Content holds the OCR text.
type Document struct {
	ID             string          `json:"id" db:"id"`
	ContentHash    string          `json:"content_hash" db:"content_hash"`
	BlobKey        string          `json:"blob_key" db:"blob_key"`
	SourceFilename string          `json:"source_filename" db:"source_filename"`
	MimeType       string          `json:"mime_type" db:"mime_type"`
	SizeBytes      int64           `json:"size_bytes" db:"size_bytes"`
	DocType        DocumentType    `json:"doc_type,omitempty" db:"doc_type"`
	Title          string          `json:"title" db:"title"`
	Content        string          `json:"content" db:"content"`
	ExtractedData  *ExtractedData  `json:"extracted_data,omitempty" db:"extracted_data"`
	Status         DocumentStatus  `json:"status" db:"status"`
	LastFailedStep string          `json:"last_failed_step,omitempty" db:"last_failed_step"`
	LastError      string          `json:"last_error,omitempty" db:"last_error"`
	PerceptualHash uint64          `json:"perceptual_hash,omitempty" db:"perceptual_hash"`
	Supersedes     string          `json:"supersedes,omitempty" db:"supersedes"`
	SupersededBy   string          `json:"superseded_by,omitempty" db:"superseded_by"`
	EffectiveDate  *time.Time      `json:"effective_date,omitempty" db:"effective_date"`
	Metadata       map[string]any  `json:"metadata,omitempty" db:"metadata"`
	SubmittedAt    time.Time       `json:"submitted_at" db:"submitted_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// DocumentInput is what the Ingestion Gateway accepts for a new submission.
type DocumentInput struct {
	Content        []byte
	SourceFilename string
	MimeType       string
	Uploader       string
	Client         string
}

// UploadResponse is returned by the ingestion HTTP endpoint, per §4.1's
// submit contract.
type UploadResponse struct {
	Status             string `json:"status"`
	DocumentID         string `json:"document_id,omitempty"`
	WorkflowInstanceID string `json:"workflow_instance_id,omitempty"`
	ExistingDocumentID string `json:"existing_document_id,omitempty"`
}
