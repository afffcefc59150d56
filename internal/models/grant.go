package models

import "time"

// AuthorityGrant is a document-backed assertion that one entity may act
// on behalf of another within a stated scope and period.
type AuthorityGrant struct {
	ID             string         `json:"id" db:"id"`
	DocumentID     string         `json:"document_id" db:"document_id"`
	GrantorID      string         `json:"grantor_entity_id" db:"grantor_entity_id"`
	GranteeID      string         `json:"grantee_entity_id" db:"grantee_entity_id"`
	Type           string         `json:"type" db:"type"`
	Scope          map[string]any `json:"scope,omitempty" db:"scope"`
	EffectiveDate  *time.Time     `json:"effective_date,omitempty" db:"effective_date"`
	ExpirationDate *time.Time     `json:"expiration_date,omitempty" db:"expiration_date"`
	IsActive       bool           `json:"is_active" db:"is_active"`
	RevokedBy      string         `json:"revoked_by,omitempty" db:"revoked_by"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
}

// GrantChainLink is one hop in an authorityPath result.
type GrantChainLink struct {
	Grant     *AuthorityGrant `json:"grant"`
	FromID    string          `json:"from_entity_id"`
	ToID      string          `json:"to_entity_id"`
}
