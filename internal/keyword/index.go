// Package keyword provides keyword (BM25) search indexing and search.
package keyword

import (
	"context"

	"github.com/chittyos/evidence-core/internal/models"
)

// KeywordIndex defines keyword search operations.
type KeywordIndex interface {
	Index(ctx context.Context, id string, doc *models.Document) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// KeywordResult is a single keyword search hit.
type KeywordResult struct {
	ID    string
	Score float64
}

// SearchOptions tunes a single keyword Search call.
type SearchOptions struct {
	TitleBoost   float64
	PhraseBoost  float64
	FuzzyEnabled bool
	Fuzziness    int
}

// TermDictionary exposes a keyword index's vocabulary for spell checking.
type TermDictionary interface {
	GetAllTerms() ([]string, error)
	GetTermFrequency(term string) (int, error)
	ContainsTerm(term string) (bool, error)
}
