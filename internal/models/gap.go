package models

import "time"

// GapType is the closed set of knowledge-gap kinds.
type GapType string

const (
	GapTypeEntityName     GapType = "entity_name"
	GapTypeDate           GapType = "date"
	GapTypeAmount         GapType = "amount"
	GapTypeAddress        GapType = "address"
	GapTypeRelationship   GapType = "relationship"
	GapTypeAuthorityScope GapType = "authority_scope"
	GapTypeDocumentRef    GapType = "document_reference"
	GapTypeIdentifier     GapType = "identifier"
)

// GapStatus is the KnowledgeGap state machine: open -> pending_review ->
// resolved, or open -> unresolvable.
type GapStatus string

const (
	GapStatusOpen          GapStatus = "open"
	GapStatusPendingReview GapStatus = "pending_review"
	GapStatusResolved      GapStatus = "resolved"
	GapStatusUnresolvable  GapStatus = "unresolvable"
)

// KnowledgeGap records something the system explicitly does not know,
// collapsing repeated sightings via a stable fingerprint.
type KnowledgeGap struct {
	ID                    string    `json:"id" db:"id"`
	Type                  GapType   `json:"type" db:"type"`
	Fingerprint           string    `json:"fingerprint" db:"fingerprint"`
	PartialValue          string    `json:"partial_value" db:"partial_value"`
	ContextClues          string    `json:"context_clues" db:"context_clues"`
	ResolutionHints       string    `json:"resolution_hints,omitempty" db:"resolution_hints"`
	ConfidenceThreshold   float64   `json:"confidence_threshold" db:"confidence_threshold"`
	OccurrenceCount       int       `json:"occurrence_count" db:"occurrence_count"`
	Status                GapStatus `json:"status" db:"status"`
	ResolvedValue          string    `json:"resolved_value,omitempty" db:"resolved_value"`
	ResolutionSourceDocID  string    `json:"resolution_source_doc,omitempty" db:"resolution_source_doc"`
	FirstSeenAt           time.Time `json:"first_seen_at" db:"first_seen_at"`
	LastSeenAt            time.Time `json:"last_seen_at" db:"last_seen_at"`
}

// GapOccurrence is one sighting of a KnowledgeGap inside a specific
// document, carrying enough context to locate and eventually fill it in.
type GapOccurrence struct {
	GapID               string  `json:"gap_id" db:"gap_id"`
	DocumentID           string  `json:"document_id" db:"document_id"`
	FieldPath            string  `json:"field_path" db:"field_path"`
	Page                 int     `json:"page,omitempty" db:"page"`
	BoundingBox          string  `json:"bounding_box,omitempty" db:"bounding_box"`
	SurroundingText       string  `json:"surrounding_text,omitempty" db:"surrounding_text"`
	LocalContext          string  `json:"local_context,omitempty" db:"local_context"`
	ExtractionConfidence  float64 `json:"extraction_confidence" db:"extraction_confidence"`
	PlaceholderValue      string  `json:"placeholder_value" db:"placeholder_value"`
}

// GapCandidateSourceType is where a proposed resolution for a gap came from.
type GapCandidateSourceType string

const (
	GapCandidateSourceAIInference   GapCandidateSourceType = "ai_inference"
	GapCandidateSourceDocumentMatch GapCandidateSourceType = "document_match"
	GapCandidateSourceExternalAPI   GapCandidateSourceType = "external_api"
	GapCandidateSourceUserInput     GapCandidateSourceType = "user_input"
)

// GapCandidateStatus tracks review of a proposed gap resolution.
type GapCandidateStatus string

const (
	GapCandidateProposed GapCandidateStatus = "proposed"
	GapCandidateAccepted GapCandidateStatus = "accepted"
	GapCandidateRejected GapCandidateStatus = "rejected"
)

// GapCandidate is a proposed value for a KnowledgeGap awaiting review or
// auto-acceptance.
type GapCandidate struct {
	ID             string                  `json:"id" db:"id"`
	GapID          string                  `json:"gap_id" db:"gap_id"`
	ProposedValue  string                  `json:"proposed_value" db:"proposed_value"`
	SourceType     GapCandidateSourceType  `json:"source_type" db:"source_type"`
	SourceDocument string                  `json:"source_document,omitempty" db:"source_document"`
	Confidence     float64                 `json:"confidence" db:"confidence"`
	Confirmations  int                     `json:"confirmations" db:"confirmations"`
	Rejections     int                     `json:"rejections" db:"rejections"`
	Status         GapCandidateStatus      `json:"status" db:"status"`
	CreatedAt      time.Time               `json:"created_at" db:"created_at"`
}

// GapResolutionResult summarizes the effect of resolving a gap, including
// back-propagation to every document that referenced it (§4.6).
type GapResolutionResult struct {
	GapID             string `json:"gap_id"`
	DocumentsUpdated  int    `json:"documents_updated"`
	FieldsUpdated     int    `json:"fields_updated"`
	EntitiesCreated   int    `json:"entities_created"`
	AuthoritiesUpdated int   `json:"authorities_updated"`
}
