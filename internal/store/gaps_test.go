package store

import (
	"context"
	"testing"

	"github.com/chittyos/evidence-core/internal/models"
)

func TestStore_UpsertKnowledgeGapDedupesByFingerprint(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	gap := &models.KnowledgeGap{ID: "gap1", Type: models.GapTypeEntityName, Fingerprint: "fp-1", PartialValue: "J*** Doe"}
	id1, err := s.UpsertKnowledgeGap(ctx, gap)
	if err != nil {
		t.Fatal(err)
	}
	if id1 != "gap1" {
		t.Fatalf("expected gap1, got %s", id1)
	}

	again := &models.KnowledgeGap{ID: "gap2", Type: models.GapTypeEntityName, Fingerprint: "fp-1", PartialValue: "J*** Doe"}
	id2, err := s.UpsertKnowledgeGap(ctx, again)
	if err != nil {
		t.Fatal(err)
	}
	if id2 != "gap1" {
		t.Errorf("expected dedup onto gap1, got %s", id2)
	}

	got, err := s.GetGap(ctx, "gap1")
	if err != nil {
		t.Fatal(err)
	}
	if got.OccurrenceCount != 2 {
		t.Errorf("expected occurrence_count=2, got %d", got.OccurrenceCount)
	}
	if got.Status != models.GapStatusOpen {
		t.Errorf("expected new gap to default to open, got %s", got.Status)
	}
}

func TestStore_GapOccurrencesAndCandidates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedDoc(t, s, "d1")

	gap := &models.KnowledgeGap{ID: "gap1", Type: models.GapTypeDate, Fingerprint: "fp-date-1"}
	if _, err := s.UpsertKnowledgeGap(ctx, gap); err != nil {
		t.Fatal(err)
	}

	occ := &models.GapOccurrence{GapID: "gap1", DocumentID: "d1", FieldPath: "effective_date", PlaceholderValue: "{{UNKNOWN:date:illegible}}"}
	if err := s.AppendGapOccurrence(ctx, occ); err != nil {
		t.Fatal(err)
	}
	occs, err := s.OccurrencesForGap(ctx, "gap1")
	if err != nil {
		t.Fatal(err)
	}
	if len(occs) != 1 || occs[0].DocumentID != "d1" {
		t.Errorf("got %+v", occs)
	}

	cand := &models.GapCandidate{ID: "c1", GapID: "gap1", ProposedValue: "2023-01-10", SourceType: models.GapCandidateSourceDocumentMatch, Confidence: 0.9}
	if err := s.AddGapCandidate(ctx, cand); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateCandidateVote(ctx, "c1", true); err != nil {
		t.Fatal(err)
	}
	if err := s.SetCandidateStatus(ctx, "c1", models.GapCandidateAccepted); err != nil {
		t.Fatal(err)
	}

	cands, err := s.CandidatesForGap(ctx, "gap1")
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 1 || cands[0].Confirmations != 1 || cands[0].Status != models.GapCandidateAccepted {
		t.Errorf("got %+v", cands)
	}

	if err := s.SetGapStatus(ctx, "gap1", models.GapStatusResolved, "2023-01-10", "d1"); err != nil {
		t.Fatal(err)
	}
	resolved, err := s.GetGap(ctx, "gap1")
	if err != nil {
		t.Fatal(err)
	}
	if resolved.Status != models.GapStatusResolved || resolved.ResolvedValue != "2023-01-10" {
		t.Errorf("got %+v", resolved)
	}
}
