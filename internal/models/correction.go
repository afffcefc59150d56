package models

import "time"

// CorrectionType selects how apply() computes a proposed value for a rule.
type CorrectionType string

const (
	CorrectionTypeReplace     CorrectionType = "replace"
	CorrectionTypeRegex       CorrectionType = "regex"
	CorrectionTypeAIReextract CorrectionType = "ai_reextract"
	CorrectionTypeManualReview CorrectionType = "manual_review"
)

// RuleStatus is the CorrectionRule lifecycle.
type RuleStatus string

const (
	RuleStatusDraft    RuleStatus = "draft"
	RuleStatusActive   RuleStatus = "active"
	RuleStatusPaused   RuleStatus = "paused"
	RuleStatusArchived RuleStatus = "archived"
)

// MatchCriteria composes the predicates findAffected() evaluates: document
// type, a date range over effective_date, an entity-name LIKE filter, and
// a metadata-path existence check. Every field is optional; an unset field
// imposes no constraint.
type MatchCriteria struct {
	DocType        DocumentType `json:"doc_type,omitempty"`
	DateFrom       *time.Time   `json:"date_from,omitempty"`
	DateTo         *time.Time   `json:"date_to,omitempty"`
	EntityNameLike string       `json:"entity_name_like,omitempty"`
	FieldPath      string       `json:"field_path,omitempty"`
	RequireFieldPathExists bool `json:"require_field_path_exists,omitempty"`
}

// CorrectionRule is a rule-driven edit: a predicate (MatchCriteria) plus a
// correction to apply to every matching document's field.
type CorrectionRule struct {
	ID               string         `json:"id" db:"id"`
	Name             string         `json:"name" db:"name"`
	RuleType         string         `json:"rule_type" db:"rule_type"`
	MatchCriteria    MatchCriteria  `json:"match_criteria" db:"match_criteria"`
	CorrectionType   CorrectionType `json:"correction_type" db:"correction_type"`
	CorrectionValue  string         `json:"correction_value" db:"correction_value"`
	RequiresApproval bool           `json:"requires_approval" db:"requires_approval"`
	Status           RuleStatus     `json:"status" db:"status"`
	QueuedCount      int            `json:"queued_count" db:"queued_count"`
	AppliedCount     int            `json:"applied_count" db:"applied_count"`
	FailedCount      int            `json:"failed_count" db:"failed_count"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
}

// ProposedValue is the discriminated-union replacement for the
// sentinel strings __AI_REEXTRACT__ and __MANUAL_REVIEW__ (§9 design
// note): a type tag travels with the value instead of being parsed out
// of a string.
type ProposedValueKind string

const (
	ProposedValueLiteral      ProposedValueKind = "literal"
	ProposedValueReExtract     ProposedValueKind = "re_extract"
	ProposedValueManualReview  ProposedValueKind = "manual_review"
)

type ProposedValue struct {
	Kind    ProposedValueKind `json:"kind"`
	Literal string            `json:"literal,omitempty"`
}

func LiteralValue(s string) ProposedValue { return ProposedValue{Kind: ProposedValueLiteral, Literal: s} }
func ReExtractValue() ProposedValue       { return ProposedValue{Kind: ProposedValueReExtract} }
func ManualReviewValue() ProposedValue    { return ProposedValue{Kind: ProposedValueManualReview} }

// CorrectionQueueItemStatus is the CorrectionQueueItem state machine:
// pending -> approved -> applied, pending -> rejected, approved -> skipped.
type CorrectionQueueItemStatus string

const (
	QueueItemPending  CorrectionQueueItemStatus = "pending"
	QueueItemApproved CorrectionQueueItemStatus = "approved"
	QueueItemApplied  CorrectionQueueItemStatus = "applied"
	QueueItemRejected CorrectionQueueItemStatus = "rejected"
	QueueItemSkipped  CorrectionQueueItemStatus = "skipped"
)

// CorrectionQueueItem is one proposed edit to one document's field,
// awaiting approval and application.
type CorrectionQueueItem struct {
	ID             string                    `json:"id" db:"id"`
	RuleID         string                    `json:"rule_id" db:"rule_id"`
	DocumentID     string                    `json:"document_id" db:"document_id"`
	FieldPath      string                    `json:"field_path" db:"field_path"`
	CurrentValue   string                    `json:"current_value" db:"current_value"`
	ProposedValue  ProposedValue             `json:"proposed_value" db:"proposed_value"`
	Confidence     float64                   `json:"confidence" db:"confidence"`
	Status         CorrectionQueueItemStatus `json:"status" db:"status"`
	RollbackValue  string                    `json:"rollback_value,omitempty" db:"rollback_value"`
	RejectReason   string                    `json:"reject_reason,omitempty" db:"reject_reason"`
	CreatedAt      time.Time                 `json:"created_at" db:"created_at"`
	AppliedAt      *time.Time                `json:"applied_at,omitempty" db:"applied_at"`
}

// CorrectionAuditLogEntry records a single applied correction for
// rollback and audit trails.
type CorrectionAuditLogEntry struct {
	ID           string    `json:"id" db:"id"`
	QueueItemID  string    `json:"queue_item_id" db:"queue_item_id"`
	DocumentID   string    `json:"document_id" db:"document_id"`
	FieldPath    string    `json:"field_path" db:"field_path"`
	OldValue     string    `json:"old_value" db:"old_value"`
	NewValue     string    `json:"new_value" db:"new_value"`
	AppliedAt    time.Time `json:"applied_at" db:"applied_at"`
}

// BulkApplyResult summarizes the outcome of one bulkApply() batch.
type BulkApplyResult struct {
	Applied   int `json:"applied"`
	Failed    int `json:"failed"`
	Remaining int `json:"remaining"`
}

// KnownErrorFinding is one result from scanForKnownErrors(): a detected
// error pattern plus a rule that would fix it, without mutating data.
type KnownErrorFinding struct {
	Pattern         string        `json:"pattern"`
	Description     string        `json:"description"`
	AffectedCount   int           `json:"affected_count"`
	SuggestedRule   CorrectionRule `json:"suggested_rule"`
}
