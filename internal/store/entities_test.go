package store

import (
	"context"
	"testing"

	"github.com/chittyos/evidence-core/internal/models"
)

func TestStore_EntityCRUDAndFindByName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := &models.Entity{ID: "e1", Kind: models.EntityKindLLC, Name: "Acme LLC", NormalizedName: models.NormalizeName("Acme LLC")}
	if err := s.CreateEntity(ctx, e); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetEntity(ctx, "e1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Acme LLC" {
		t.Errorf("got %+v", got)
	}

	matches, err := s.FindEntityByNormalizedName(ctx, models.NormalizeName("acme llc"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || matches[0].ID != "e1" {
		t.Errorf("expected case-insensitive match, got %+v", matches)
	}

	like, err := s.FindEntitiesLike(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}
	if len(like) != 1 {
		t.Errorf("expected substring match, got %+v", like)
	}
}

func TestStore_MergeEntities(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	winner := &models.Entity{ID: "winner", Kind: models.EntityKindPerson, Name: "Jane Doe", NormalizedName: "jane doe"}
	loser := &models.Entity{ID: "loser", Kind: models.EntityKindPerson, Name: "Jane A Doe", NormalizedName: "jane a doe"}
	if err := s.CreateEntity(ctx, winner); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateEntity(ctx, loser); err != nil {
		t.Fatal(err)
	}

	doc := &models.Document{ID: "d1", ContentHash: "h", BlobKey: "k", SourceFilename: "f.pdf"}
	if err := s.CreateDocument(ctx, doc); err != nil {
		t.Fatal(err)
	}
	if err := s.LinkEntity(ctx, &models.DocumentEntityLink{DocumentID: "d1", EntityID: "loser", Role: "grantee"}); err != nil {
		t.Fatal(err)
	}
	grant := &models.AuthorityGrant{ID: "g1", DocumentID: "d1", GrantorID: "loser", GranteeID: "winner", Type: "financial", IsActive: true}
	if err := s.InsertGrant(ctx, grant); err != nil {
		t.Fatal(err)
	}

	if err := s.MergeEntities(ctx, "winner", "loser"); err != nil {
		t.Fatal(err)
	}

	links, err := s.LinksForDocument(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 1 || links[0].EntityID != "winner" {
		t.Errorf("expected link rewritten onto winner, got %+v", links)
	}

	g, err := s.ActiveGrant(ctx, "winner", "winner", "financial")
	if err != nil {
		t.Fatal(err)
	}
	if g == nil {
		t.Error("expected grantor ref rewritten onto winner")
	}

	mergedLoser, err := s.GetEntity(ctx, "loser")
	if err != nil {
		t.Fatal(err)
	}
	if mergedLoser.MergedInto != "winner" {
		t.Errorf("loser.MergedInto = %q, want winner", mergedLoser.MergedInto)
	}
}
