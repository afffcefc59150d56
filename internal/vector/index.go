// Package vector provides vector index and similarity search.
package vector

import (
	"context"

	"github.com/chittyos/evidence-core/internal/models"
)

// VectorIndex defines vector storage and similarity search. Add takes full
// VectorRecords (§3) rather than bare vectors so a backend can store the
// document-type/entity-ids/effective-date/key-terms metadata alongside the
// vector, and Search returns it back out on each hit.
type VectorIndex interface {
	Add(ctx context.Context, records []*models.VectorRecord) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Remove(ctx context.Context, ids []string) error
	Save(path string) error
	Load(path string) error
	Size() int
	Close() error
}

// VectorResult is a single vector search hit (ID is a document id), with
// the VectorRecord metadata that was stored alongside its vector.
type VectorResult struct {
	ID            string
	Score         float64 // Inner product or cosine similarity (0-1 for normalized)
	DocType       models.DocumentType
	EntityIDs     []string
	EffectiveDate string
	KeyTerms      []string
}
