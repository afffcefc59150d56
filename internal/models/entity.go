package models

import "time"

// EntityKind is the closed set of party kinds an extraction can assign.
type EntityKind string

const (
	EntityKindPerson      EntityKind = "person"
	EntityKindLLC         EntityKind = "llc"
	EntityKindCorporation EntityKind = "corporation"
	EntityKindTrust       EntityKind = "trust"
	EntityKindPartnership EntityKind = "partnership"
	EntityKindEstate      EntityKind = "estate"
)

// Entity is a person or organization referenced by one or more documents.
type Entity struct {
	ID             string            `json:"id" db:"id"`
	Kind           EntityKind        `json:"kind" db:"kind"`
	Name           string            `json:"name" db:"name"`
	NormalizedName string            `json:"normalized_name" db:"normalized_name"`
	Identifiers    map[string]string `json:"identifiers,omitempty" db:"identifiers"`
	MergedInto     string            `json:"merged_into,omitempty" db:"merged_into"`
	CreatedAt      time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at" db:"updated_at"`
}

// DocumentEntityLink ties a Document to an Entity with a role the entity
// plays on that document (grantor, grantee, signatory, ...).
type DocumentEntityLink struct {
	DocumentID string  `json:"document_id" db:"document_id"`
	EntityID   string  `json:"entity_id" db:"entity_id"`
	Role       string  `json:"role" db:"role"`
	Confidence float64 `json:"confidence" db:"confidence"`
}

// NormalizeName lowercases and collapses whitespace, matching the
// normalized-name invariant in §3.
func NormalizeName(name string) string {
	return normalizeWhitespace(name)
}
