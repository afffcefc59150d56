package search

import (
	"testing"

	"github.com/chittyos/evidence-core/internal/keyword"
	"github.com/chittyos/evidence-core/internal/vector"
)

func TestNormalizeKeywordScores(t *testing.T) {
	results := []*keyword.KeywordResult{
		{ID: "a", Score: 2},
		{ID: "b", Score: 4},
		{ID: "c", Score: 1},
	}
	m := NormalizeKeywordScores(results)
	if m["b"] != 1.0 {
		t.Errorf("b should normalize to 1.0 (max), got %f", m["b"])
	}
	if m["a"] != 0.5 {
		t.Errorf("a should normalize to 0.5, got %f", m["a"])
	}
	if m["c"] != 0.25 {
		t.Errorf("c should normalize to 0.25, got %f", m["c"])
	}
	if len(m) != 3 {
		t.Errorf("expected 3 entries, got %d", len(m))
	}
}

func TestNormalizeKeywordScores_Empty(t *testing.T) {
	m := NormalizeKeywordScores(nil)
	if len(m) != 0 {
		t.Errorf("expected empty map, got %v", m)
	}
}

func TestNormalizeSemanticScores(t *testing.T) {
	results := []*vector.VectorResult{
		{ID: "doc1", Score: 0.9},
		{ID: "doc2", Score: 0.5},
	}
	m := NormalizeSemanticScores(results)
	if m["doc1"] != 0.9 || m["doc2"] != 0.5 {
		t.Errorf("unexpected map %v", m)
	}
}

func TestFuse_WeightsAndOrdering(t *testing.T) {
	kw := map[string]float64{"d1": 1.0, "d2": 0.5}
	sem := map[string]float64{"d1": 0.2, "d3": 0.9}

	results := Fuse(kw, sem, 0.5, 0.5)
	if len(results) != 3 {
		t.Fatalf("expected 3 fused results, got %d", len(results))
	}
	byID := make(map[string]*FusedResult)
	for _, r := range results {
		byID[r.DocumentID] = r
	}
	if got := byID["d1"].Score; got != 0.6 {
		t.Errorf("d1 fused score = %f, want 0.6", got)
	}
	if got := byID["d3"].Score; got != 0.45 {
		t.Errorf("d3 fused score = %f, want 0.45", got)
	}
	// highest score first
	if results[0].DocumentID != "d1" {
		t.Errorf("expected d1 ranked first, got %s", results[0].DocumentID)
	}
}

func TestFilterByMinScore(t *testing.T) {
	results := []*FusedResult{
		{DocumentID: "d1", Score: 0.9},
		{DocumentID: "d2", Score: 0.2},
	}
	filtered := filterByMinScore(results, 0.5)
	if len(filtered) != 1 || filtered[0].DocumentID != "d1" {
		t.Errorf("got %+v", filtered)
	}
}

func TestPageResults(t *testing.T) {
	results := []*FusedResult{
		{DocumentID: "d1"}, {DocumentID: "d2"}, {DocumentID: "d3"},
	}
	page := pageResults(results, 1, 1)
	if len(page) != 1 || page[0].DocumentID != "d2" {
		t.Errorf("got %+v", page)
	}
	beyond := pageResults(results, 10, 5)
	if len(beyond) != 0 {
		t.Errorf("expected empty page past the end, got %+v", beyond)
	}
}
