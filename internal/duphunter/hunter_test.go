package duphunter

import (
	"context"
	"testing"
	"time"

	"github.com/chittyos/evidence-core/internal/blobstore"
	"github.com/chittyos/evidence-core/internal/embedding"
	"github.com/chittyos/evidence-core/internal/models"
	"github.com/chittyos/evidence-core/internal/store"
	"github.com/chittyos/evidence-core/internal/vector"
	"github.com/google/uuid"
)

func newTestHunter(t *testing.T) (*Hunter, *store.Store, blobstore.BlobStore) {
	t.Helper()
	st, err := store.New(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	blobs, err := blobstore.NewLocalBlobStore(t.TempDir() + "/blobs")
	if err != nil {
		t.Fatal(err)
	}

	vecIdx, err := vector.NewMemoryIndex(4)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { vecIdx.Close() })

	h := New(st, blobs, vecIdx, embedding.NewMockEmbedder(4), DefaultThresholds())
	return h, st, blobs
}

func putDocument(t *testing.T, ctx context.Context, st *store.Store, blobs blobstore.BlobStore, content []byte, submittedAt time.Time) *models.Document {
	t.Helper()
	key, err := blobs.Put(ctx, content)
	if err != nil {
		t.Fatal(err)
	}
	doc := &models.Document{
		ID:             uuid.New().String(),
		ContentHash:    blobstore.KeyFor(content),
		BlobKey:        key,
		SourceFilename: "doc.pdf",
		MimeType:       "application/pdf",
		Status:         models.DocumentStatusCompleted,
		SubmittedAt:    submittedAt,
		UpdatedAt:      submittedAt,
	}
	if err := st.CreateDocument(ctx, doc); err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestHunter_ScanDocument_HashDuplicateAutoMerges(t *testing.T) {
	ctx := context.Background()
	h, st, blobs := newTestHunter(t)

	older := putDocument(t, ctx, st, blobs, []byte("identical bytes"), time.Now().Add(-time.Hour))
	newer := putDocument(t, ctx, st, blobs, []byte("identical bytes"), time.Now())

	if err := h.ScanDocument(ctx, newer.ID); err != nil {
		t.Fatal(err)
	}

	got, err := st.GetDuplicateCandidate(ctx, older.ID, newer.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected a duplicate candidate to be recorded")
	}
	if got.Method != models.DuplicateMethodHash {
		t.Errorf("Method = %q, want hash", got.Method)
	}
	if !got.AutoResolved {
		t.Error("expected hash match to auto-resolve")
	}
	if got.Status != models.DuplicateStatusMerged {
		t.Errorf("Status = %q, want merged", got.Status)
	}

	mergedLoser, err := st.GetDocument(ctx, newer.ID)
	if err != nil {
		t.Fatal(err)
	}
	if mergedLoser.Status != models.DocumentStatusSuperseded {
		t.Errorf("loser Status = %q, want superseded", mergedLoser.Status)
	}
	if mergedLoser.SupersededBy != older.ID {
		t.Errorf("loser SupersededBy = %q, want %q", mergedLoser.SupersededBy, older.ID)
	}
}

func TestHunter_ScanDocument_NoMatchLeavesNoCandidate(t *testing.T) {
	ctx := context.Background()
	h, st, blobs := newTestHunter(t)

	a := putDocument(t, ctx, st, blobs, []byte("completely unrelated content one"), time.Now().Add(-time.Hour))
	b := putDocument(t, ctx, st, blobs, []byte("totally different text entirely"), time.Now())
	a.Title = "Power of Attorney"
	b.Title = "Deed of Trust"
	if err := st.UpdateDocument(ctx, a); err != nil {
		t.Fatal(err)
	}
	if err := st.UpdateDocument(ctx, b); err != nil {
		t.Fatal(err)
	}

	if err := h.ScanDocument(ctx, b.ID); err != nil {
		t.Fatal(err)
	}

	got, err := st.GetDuplicateCandidate(ctx, a.ID, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("expected no candidate, got %+v", got)
	}
}

func TestHunter_ScanFull_AdvancesScanState(t *testing.T) {
	ctx := context.Background()
	h, st, blobs := newTestHunter(t)
	putDocument(t, ctx, st, blobs, []byte("x"), time.Now())

	if err := h.ScanFull(ctx); err != nil {
		t.Fatal(err)
	}

	lastID, _, err := st.ScanState(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if lastID == "" {
		t.Error("expected scan state to advance past an empty watermark")
	}
}
