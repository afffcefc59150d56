package models

import "time"

// DuplicateMethod is which detection signal produced a DuplicateCandidate.
type DuplicateMethod string

const (
	DuplicateMethodHash     DuplicateMethod = "hash"
	DuplicateMethodPHash    DuplicateMethod = "phash"
	DuplicateMethodSemantic DuplicateMethod = "semantic"
	DuplicateMethodMetadata DuplicateMethod = "metadata"
	DuplicateMethodOCRText  DuplicateMethod = "ocr_text"
)

// ConfidenceBucket buckets a raw similarity score for display/routing.
type ConfidenceBucket string

const (
	ConfidenceHigh   ConfidenceBucket = "high"
	ConfidenceMedium ConfidenceBucket = "medium"
	ConfidenceLow    ConfidenceBucket = "low"
)

// DuplicateStatus is the DuplicateCandidate state machine: pending ->
// confirmed_duplicate -> merged, or pending -> not_duplicate.
type DuplicateStatus string

const (
	DuplicateStatusPending            DuplicateStatus = "pending"
	DuplicateStatusConfirmedDuplicate DuplicateStatus = "confirmed_duplicate"
	DuplicateStatusMerged             DuplicateStatus = "merged"
	DuplicateStatusNotDuplicate       DuplicateStatus = "not_duplicate"
)

// DuplicateCandidate is a possible duplicate pair found by the Duplicate
// Hunter. DocumentID is always the smaller of the two ids (ordered pair
// uniqueness per §3).
type DuplicateCandidate struct {
	DocumentID          string           `json:"document_id" db:"document_id"`
	CandidateDocumentID string           `json:"candidate_document_id" db:"candidate_document_id"`
	Method              DuplicateMethod  `json:"method" db:"method"`
	SimilarityScore      float64          `json:"similarity_score" db:"similarity_score"`
	Confidence           ConfidenceBucket `json:"confidence" db:"confidence"`
	Status               DuplicateStatus  `json:"status" db:"status"`
	AutoResolved          bool             `json:"auto_resolved" db:"auto_resolved"`
	CreatedAt             time.Time        `json:"created_at" db:"created_at"`
}

// OrderedPair returns (a, b) sorted so a <= b, matching the
// (min-id, max-id) storage convention for duplicate pairs.
func OrderedPair(a, b string) (string, string) {
	if a <= b {
		return a, b
	}
	return b, a
}
