// Package search provides the main hybrid search engine.
package search

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chittyos/evidence-core/internal/config"
	"github.com/chittyos/evidence-core/internal/embedding"
	"github.com/chittyos/evidence-core/internal/keyword"
	"github.com/chittyos/evidence-core/internal/models"
	"github.com/chittyos/evidence-core/internal/store"
	"github.com/chittyos/evidence-core/internal/vector"
)

// Engine runs hybrid (keyword + semantic) search over the knowledge graph
// store's documents.
type Engine struct {
	store        *store.Store
	embedder     embedding.Embedder
	vectorIndex  vector.VectorIndex
	keywordIndex keyword.KeywordIndex
	config       *config.SearchConfig
	spellChecker *keyword.SpellChecker
}

// NewEngine creates a search engine with the given dependencies.
func NewEngine(
	st *store.Store,
	embedder embedding.Embedder,
	vectorIndex vector.VectorIndex,
	keywordIndex keyword.KeywordIndex,
	cfg *config.SearchConfig,
) *Engine {
	return &Engine{
		store:        st,
		embedder:     embedder,
		vectorIndex:  vectorIndex,
		keywordIndex: keywordIndex,
		config:       cfg,
	}
}

// WithSpellChecker enables spell checking for "Did you mean?" suggestions.
// The keywordIndex must implement the TermDictionary interface.
func (e *Engine) WithSpellChecker() *Engine {
	if dict, ok := e.keywordIndex.(keyword.TermDictionary); ok {
		e.spellChecker = keyword.NewSpellChecker(dict,
			keyword.WithMaxDistance(2),
			keyword.WithMinFrequency(1),
			keyword.WithMaxSuggestions(3),
		)
	}
	return e
}

// RefreshSpellChecker refreshes the spell checker's term dictionary cache.
// Call this after indexing new documents.
func (e *Engine) RefreshSpellChecker() error {
	if e.spellChecker != nil {
		return e.spellChecker.RefreshCache()
	}
	return nil
}

// Search runs hybrid search and returns a single ranked result set. The
// vector index is keyed one-to-one by document id, so semantic and keyword
// scores fuse directly without a chunk-aggregation step.
func (e *Engine) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	startTime := time.Now()
	if err := query.Validate(); err != nil {
		return nil, err
	}

	var (
		keywordResults  []*keyword.KeywordResult
		semanticResults []*vector.VectorResult
		errChan         = make(chan error, 2)
		wg              sync.WaitGroup
	)

	if query.KeywordEnabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			opts := &keyword.SearchOptions{
				FuzzyEnabled: query.FuzzyEnabled,
				Fuzziness:    2,
			}
			results, err := e.keywordIndex.Search(ctx, query.Query, e.config.TopKCandidates, opts)
			if err != nil {
				errChan <- fmt.Errorf("keyword search failed: %w", err)
				return
			}
			keywordResults = results
		}()
	}

	if query.SemanticEnabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			queryEmbedding, err := e.embedder.Embed(ctx, query.Query)
			if err != nil {
				errChan <- fmt.Errorf("embedding failed: %w", err)
				return
			}
			results, err := e.vectorIndex.Search(ctx, queryEmbedding, e.config.TopKCandidates)
			if err != nil {
				errChan <- fmt.Errorf("vector search failed: %w", err)
				return
			}
			semanticResults = results
		}()
	}

	wg.Wait()
	close(errChan)
	for err := range errChan {
		if err != nil {
			return nil, err
		}
	}

	keywordScores := NormalizeKeywordScores(keywordResults)
	semanticScores := NormalizeSemanticScores(semanticResults)

	fused := Fuse(keywordScores, semanticScores, e.config.KeywordWeight, e.config.SemanticWeight)

	minScore := query.MinScore
	if minScore <= 0 {
		minScore = e.config.DefaultMinScore
	}
	if minScore > 0 {
		fused = filterByMinScore(fused, minScore)
	}

	matches, err := e.applyMetadataFilters(ctx, query, fused)
	if err != nil {
		return nil, err
	}

	total := len(matches)
	paged := pageMatches(matches, query.Offset, query.Limit)

	results := make([]*models.SearchResult, 0, len(paged))
	for i, m := range paged {
		results = append(results, &models.SearchResult{
			Document:      m.doc,
			Score:         m.fused.Score,
			KeywordScore:  m.fused.KeywordScore,
			SemanticScore: m.fused.SemanticScore,
			Rank:          i + 1,
		})
	}

	response := &models.SearchResponse{
		Results:     results,
		Total:       total,
		QueryTimeMs: time.Since(startTime).Milliseconds(),
		Query:       query.Query,
	}

	if query.FuzzyEnabled && e.spellChecker != nil {
		if suggestions := e.spellChecker.GetTopSuggestions(query.Query, 3); len(suggestions) > 0 {
			response.Suggestions = suggestions
		}
	}

	return response, nil
}

// VectorIndexSize returns the number of vectors in the semantic index.
func (e *Engine) VectorIndexSize() int {
	return e.vectorIndex.Size()
}

// docMatch pairs a fused score with the document it resolved to, once
// metadata filters have already been applied.
type docMatch struct {
	fused *FusedResult
	doc   *models.Document
}

// applyMetadataFilters loads each fused hit's Document and drops any that
// don't satisfy query's DocType, EntityID, or [DateFrom,DateTo] filters
// (§6). It runs over the whole fused candidate set rather than just the
// requested page, since filtering after paging would return short pages.
func (e *Engine) applyMetadataFilters(ctx context.Context, query *models.SearchQuery, fused []*FusedResult) ([]docMatch, error) {
	matches := make([]docMatch, 0, len(fused))
	for _, r := range fused {
		doc, err := e.store.GetDocument(ctx, r.DocumentID)
		if err != nil || doc == nil {
			continue
		}
		if query.DocType != "" && doc.DocType != query.DocType {
			continue
		}
		if query.EntityID != "" {
			linked, err := e.documentLinkedToEntity(ctx, doc.ID, query.EntityID)
			if err != nil {
				return nil, err
			}
			if !linked {
				continue
			}
		}
		if !withinDateRange(doc.EffectiveDate, query.DateFrom, query.DateTo) {
			continue
		}
		matches = append(matches, docMatch{fused: r, doc: doc})
	}
	return matches, nil
}

func (e *Engine) documentLinkedToEntity(ctx context.Context, documentID, entityID string) (bool, error) {
	links, err := e.store.LinksForDocument(ctx, documentID)
	if err != nil {
		return false, fmt.Errorf("load entity links: %w", err)
	}
	for _, l := range links {
		if l.EntityID == entityID {
			return true, nil
		}
	}
	return false, nil
}

func withinDateRange(effective, from, to *time.Time) bool {
	if from == nil && to == nil {
		return true
	}
	if effective == nil {
		return false
	}
	if from != nil && effective.Before(*from) {
		return false
	}
	if to != nil && effective.After(*to) {
		return false
	}
	return true
}

func pageMatches(matches []docMatch, offset, limit int) []docMatch {
	start := offset
	end := offset + limit
	if start > len(matches) {
		start = len(matches)
	}
	if end > len(matches) {
		end = len(matches)
	}
	return matches[start:end]
}
