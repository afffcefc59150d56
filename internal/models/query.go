package models

import (
	"fmt"
	"time"
)

// SearchQuery represents a /search request combining vector similarity
// with metadata filters (§6).
type SearchQuery struct {
	Query           string       `json:"query"`
	DocType         DocumentType `json:"document_type,omitempty"`
	EntityID        string       `json:"entity_id,omitempty"`
	DateFrom        *time.Time   `json:"date_from,omitempty"`
	DateTo          *time.Time   `json:"date_to,omitempty"`
	Limit           int          `json:"limit,omitempty"`
	Offset          int          `json:"offset,omitempty"`
	KeywordEnabled  bool         `json:"keyword_enabled,omitempty"`
	SemanticEnabled bool         `json:"semantic_enabled,omitempty"`
	FuzzyEnabled    bool         `json:"fuzzy_enabled,omitempty"`
	MinScore        float64      `json:"min_score,omitempty"`
}

// Validate ensures the search query has valid fields and sets defaults.
func (q *SearchQuery) Validate() error {
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.Limit <= 0 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if !q.KeywordEnabled && !q.SemanticEnabled {
		q.KeywordEnabled = true
		q.SemanticEnabled = true
	}
	return nil
}
