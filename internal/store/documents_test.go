package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/chittyos/evidence-core/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_DocumentCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := &models.Document{
		ID:             "doc1",
		ContentHash:    "abc123",
		BlobKey:        "sha256/abc123",
		SourceFilename: "poa.pdf",
		MimeType:       "application/pdf",
		DocType:        models.DocTypePOAGeneral,
		Status:         models.DocumentStatusPending,
	}
	if err := s.CreateDocument(ctx, doc); err != nil {
		t.Fatal(err)
	}
	if doc.SubmittedAt.IsZero() {
		t.Error("SubmittedAt should be set")
	}

	got, err := s.GetDocument(ctx, "doc1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ContentHash != "abc123" || got.Status != models.DocumentStatusPending {
		t.Errorf("got %+v", got)
	}

	byHash, err := s.GetDocumentByContentHash(ctx, "abc123")
	if err != nil {
		t.Fatal(err)
	}
	if byHash == nil || byHash.ID != "doc1" {
		t.Errorf("expected lookup by hash to find doc1, got %+v", byHash)
	}

	missing, err := s.GetDocumentByContentHash(ctx, "nope")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown hash, got %+v", missing)
	}

	got.Status = models.DocumentStatusCompleted
	got.Title = "Power of Attorney"
	if err := s.UpdateDocument(ctx, got); err != nil {
		t.Fatal(err)
	}
	got2, _ := s.GetDocument(ctx, "doc1")
	if got2.Status != models.DocumentStatusCompleted || got2.Title != "Power of Attorney" {
		t.Errorf("update did not persist: %+v", got2)
	}

	list, err := s.ListDocuments(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 document, got %d", len(list))
	}
}

func TestStore_MergeDocuments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	winner := &models.Document{ID: "winner", ContentHash: "h1", BlobKey: "k1", SourceFilename: "a.pdf", Status: models.DocumentStatusCompleted}
	loser := &models.Document{ID: "loser", ContentHash: "h2", BlobKey: "k2", SourceFilename: "b.pdf", Status: models.DocumentStatusCompleted}
	if err := s.CreateDocument(ctx, winner); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateDocument(ctx, loser); err != nil {
		t.Fatal(err)
	}

	entity := &models.Entity{ID: "e1", Kind: models.EntityKindPerson, Name: "Jane Doe", NormalizedName: "jane doe"}
	if err := s.CreateEntity(ctx, entity); err != nil {
		t.Fatal(err)
	}
	if err := s.LinkEntity(ctx, &models.DocumentEntityLink{DocumentID: "loser", EntityID: "e1", Role: "grantor"}); err != nil {
		t.Fatal(err)
	}

	if err := s.MergeDocuments(ctx, "winner", "loser"); err != nil {
		t.Fatal(err)
	}

	loserDoc, err := s.GetDocument(ctx, "loser")
	if err != nil {
		t.Fatal(err)
	}
	if loserDoc.Status != models.DocumentStatusSuperseded || loserDoc.SupersededBy != "winner" {
		t.Errorf("loser not marked superseded: %+v", loserDoc)
	}

	winnerDoc, err := s.GetDocument(ctx, "winner")
	if err != nil {
		t.Fatal(err)
	}
	if winnerDoc.Supersedes != "loser" {
		t.Errorf("winner.Supersedes = %q, want loser", winnerDoc.Supersedes)
	}

	links, err := s.LinksForDocument(ctx, "winner")
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 1 || links[0].EntityID != "e1" {
		t.Errorf("expected link rewritten onto winner, got %+v", links)
	}
}
