package search

import (
	"context"
	"testing"
	"time"

	"github.com/chittyos/evidence-core/internal/config"
	"github.com/chittyos/evidence-core/internal/embedding"
	"github.com/chittyos/evidence-core/internal/keyword"
	"github.com/chittyos/evidence-core/internal/models"
	"github.com/chittyos/evidence-core/internal/store"
	"github.com/chittyos/evidence-core/internal/vector"
)

func newTestEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	st, err := store.New(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	emb := embedding.NewMockEmbedder(8)
	vecIndex, err := vector.NewMemoryIndex(8)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { vecIndex.Close() })

	kwIndex, err := keyword.NewBleveIndex(t.TempDir() + "/bleve")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { kwIndex.Close() })

	cfg := &config.SearchConfig{
		DefaultLimit:   10,
		MaxLimit:       100,
		TopKCandidates: 20,
		KeywordWeight:  0.5,
		SemanticWeight: 0.5,
	}
	return NewEngine(st, emb, vecIndex, kwIndex, cfg), st
}

func indexDoc(t *testing.T, ctx context.Context, e *Engine, st *store.Store, id, title, content string) {
	t.Helper()
	indexDocFull(t, ctx, e, st, &models.Document{
		ID:          id,
		ContentHash: id + "-hash",
		Title:       title,
		Content:     content,
		Status:      models.DocumentStatusCompleted,
		SubmittedAt: time.Now(),
		UpdatedAt:   time.Now(),
	}, nil)
}

// indexDocFull creates doc, indexes it for keyword search, and upserts its
// vector with §3 metadata (doc type, linked entity ids, effective date),
// linking it to each entity id in linkedEntityIDs.
func indexDocFull(t *testing.T, ctx context.Context, e *Engine, st *store.Store, doc *models.Document, linkedEntityIDs []string) {
	t.Helper()
	if err := st.CreateDocument(ctx, doc); err != nil {
		t.Fatal(err)
	}
	for _, entID := range linkedEntityIDs {
		if err := st.LinkEntity(ctx, &models.DocumentEntityLink{
			DocumentID: doc.ID, EntityID: entID, Role: "party", Confidence: 1,
		}); err != nil {
			t.Fatal(err)
		}
	}
	if err := e.keywordIndex.Index(ctx, doc.ID, doc); err != nil {
		t.Fatal(err)
	}
	vec, err := e.embedder.Embed(ctx, doc.Content)
	if err != nil {
		t.Fatal(err)
	}
	var effectiveDate string
	if doc.EffectiveDate != nil {
		effectiveDate = doc.EffectiveDate.Format("2006-01-02")
	}
	record := &models.VectorRecord{
		DocumentID:    doc.ID,
		Vector:        vec,
		DocType:       doc.DocType,
		EntityIDs:     linkedEntityIDs,
		EffectiveDate: effectiveDate,
	}
	if err := e.vectorIndex.Add(ctx, []*models.VectorRecord{record}); err != nil {
		t.Fatal(err)
	}
}

func TestEngine_Search(t *testing.T) {
	ctx := context.Background()
	engine, st := newTestEngine(t)

	indexDoc(t, ctx, engine, st, "d1", "Power of Attorney", "financial power of attorney document")

	resp, err := engine.Search(ctx, &models.SearchQuery{
		Query: "power attorney", Limit: 5, KeywordEnabled: true, SemanticEnabled: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total < 1 {
		t.Errorf("expected at least 1 result, got %d", resp.Total)
	}
	if len(resp.Results) == 0 || resp.Results[0].Document.ID != "d1" {
		t.Errorf("got results %+v", resp.Results)
	}
}

func TestEngine_Search_MinScoreFilters(t *testing.T) {
	ctx := context.Background()
	engine, st := newTestEngine(t)

	indexDoc(t, ctx, engine, st, "d1", "Lease", "residential lease agreement")

	resp, err := engine.Search(ctx, &models.SearchQuery{
		Query: "residential lease", Limit: 5, MinScore: 0.999, KeywordEnabled: true, SemanticEnabled: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 0 {
		t.Errorf("expected no results above an unreachable min score, got %d", resp.Total)
	}
}

func TestEngine_Search_EmptyQueryRejected(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	if _, err := engine.Search(ctx, &models.SearchQuery{Query: ""}); err == nil {
		t.Error("expected error for empty query")
	}
}

func TestEngine_Search_FiltersByDocType(t *testing.T) {
	ctx := context.Background()
	engine, st := newTestEngine(t)

	indexDocFull(t, ctx, engine, st, &models.Document{
		ID: "d1", ContentHash: "d1-hash", Title: "Deed", Content: "warranty deed for the property",
		DocType: models.DocTypeDeed, Status: models.DocumentStatusCompleted,
		SubmittedAt: time.Now(), UpdatedAt: time.Now(),
	}, nil)
	indexDocFull(t, ctx, engine, st, &models.Document{
		ID: "d2", ContentHash: "d2-hash", Title: "Contract", Content: "warranty deed style contract language",
		DocType: models.DocTypeContract, Status: models.DocumentStatusCompleted,
		SubmittedAt: time.Now(), UpdatedAt: time.Now(),
	}, nil)

	resp, err := engine.Search(ctx, &models.SearchQuery{
		Query: "warranty deed", DocType: models.DocTypeDeed, Limit: 10, KeywordEnabled: true, SemanticEnabled: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range resp.Results {
		if r.Document.DocType != models.DocTypeDeed {
			t.Errorf("result %s has doc type %q, want %q", r.Document.ID, r.Document.DocType, models.DocTypeDeed)
		}
	}
	if resp.Total != 1 {
		t.Errorf("Total = %d, want 1", resp.Total)
	}
}

func TestEngine_Search_FiltersByEntityID(t *testing.T) {
	ctx := context.Background()
	engine, st := newTestEngine(t)

	indexDocFull(t, ctx, engine, st, &models.Document{
		ID: "d1", ContentHash: "d1-hash", Title: "POA", Content: "power of attorney granted to Jane",
		Status: models.DocumentStatusCompleted, SubmittedAt: time.Now(), UpdatedAt: time.Now(),
	}, []string{"ent-jane"})
	indexDocFull(t, ctx, engine, st, &models.Document{
		ID: "d2", ContentHash: "d2-hash", Title: "POA 2", Content: "power of attorney granted to John",
		Status: models.DocumentStatusCompleted, SubmittedAt: time.Now(), UpdatedAt: time.Now(),
	}, []string{"ent-john"})

	resp, err := engine.Search(ctx, &models.SearchQuery{
		Query: "power attorney", EntityID: "ent-jane", Limit: 10, KeywordEnabled: true, SemanticEnabled: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || resp.Results[0].Document.ID != "d1" {
		t.Errorf("expected only d1, got %+v", resp.Results)
	}
}

func TestEngine_Search_FiltersByDateRange(t *testing.T) {
	ctx := context.Background()
	engine, st := newTestEngine(t)

	early := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	indexDocFull(t, ctx, engine, st, &models.Document{
		ID: "d1", ContentHash: "d1-hash", Title: "Old Lease", Content: "commercial lease agreement",
		EffectiveDate: &early, Status: models.DocumentStatusCompleted, SubmittedAt: time.Now(), UpdatedAt: time.Now(),
	}, nil)
	indexDocFull(t, ctx, engine, st, &models.Document{
		ID: "d2", ContentHash: "d2-hash", Title: "New Lease", Content: "commercial lease agreement",
		EffectiveDate: &late, Status: models.DocumentStatusCompleted, SubmittedAt: time.Now(), UpdatedAt: time.Now(),
	}, nil)

	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	resp, err := engine.Search(ctx, &models.SearchQuery{
		Query: "commercial lease", DateFrom: &from, Limit: 10, KeywordEnabled: true, SemanticEnabled: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || resp.Results[0].Document.ID != "d2" {
		t.Errorf("expected only d2, got %+v", resp.Results)
	}
}

func TestEngine_VectorIndexSize(t *testing.T) {
	ctx := context.Background()
	engine, st := newTestEngine(t)

	if got := engine.VectorIndexSize(); got != 0 {
		t.Errorf("empty index: VectorIndexSize() = %d, want 0", got)
	}

	indexDoc(t, ctx, engine, st, "d1", "T1", "short document body")

	if got := engine.VectorIndexSize(); got < 1 {
		t.Errorf("after index: VectorIndexSize() = %d, want >= 1", got)
	}
}
