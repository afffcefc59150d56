package ingestion

import (
	"context"
	"testing"

	"github.com/chittyos/evidence-core/internal/blobstore"
	"github.com/chittyos/evidence-core/internal/models"
	"github.com/chittyos/evidence-core/internal/queue"
	"github.com/chittyos/evidence-core/internal/store"
)

func newTestGateway(t *testing.T) (*Gateway, *store.Store, queue.Queue) {
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

	q := queue.NewMemoryQueue(10)
	return New(st, blobs, q), st, q
}

func TestGateway_Submit_AcceptsNewDocument(t *testing.T) {
	ctx := context.Background()
	gw, st, q := newTestGateway(t)

	resp, err := gw.Submit(ctx, &models.DocumentInput{
		Content:        []byte("a power of attorney"),
		SourceFilename: "exhibit.pdf",
		MimeType:       "application/pdf",
		Uploader:       "alice",
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != "processing" {
		t.Fatalf("Status = %q, want processing", resp.Status)
	}
	if resp.DocumentID == "" || resp.WorkflowInstanceID == "" {
		t.Fatalf("expected document and workflow ids, got %+v", resp)
	}

	doc, err := st.GetDocument(ctx, resp.DocumentID)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Status != models.DocumentStatusPending {
		t.Errorf("Status = %q, want pending", doc.Status)
	}

	var wfInput models.WorkflowInput
	if err := q.Pop(ctx, &wfInput); err != nil {
		t.Fatal(err)
	}
	if wfInput.DocumentID != resp.DocumentID {
		t.Errorf("queued WorkflowInput.DocumentID = %q, want %q", wfInput.DocumentID, resp.DocumentID)
	}
	if wfInput.WorkflowInstanceID != resp.WorkflowInstanceID {
		t.Errorf("queued WorkflowInput.WorkflowInstanceID = %q, want %q", wfInput.WorkflowInstanceID, resp.WorkflowInstanceID)
	}
}

func TestGateway_Submit_DedupesByContentHash(t *testing.T) {
	ctx := context.Background()
	gw, st, q := newTestGateway(t)
	content := []byte("the same bytes twice")

	first, err := gw.Submit(ctx, &models.DocumentInput{Content: content, SourceFilename: "a.pdf", MimeType: "application/pdf"})
	if err != nil {
		t.Fatal(err)
	}
	// drain the first submission's queued input so the second submission's
	// (absent) push doesn't get confused with it.
	var drained models.WorkflowInput
	if err := q.Pop(ctx, &drained); err != nil {
		t.Fatal(err)
	}

	second, err := gw.Submit(ctx, &models.DocumentInput{Content: content, SourceFilename: "b.pdf", MimeType: "application/pdf"})
	if err != nil {
		t.Fatal(err)
	}
	if second.Status != "duplicate" {
		t.Fatalf("Status = %q, want duplicate", second.Status)
	}
	if second.ExistingDocumentID != first.DocumentID {
		t.Errorf("ExistingDocumentID = %q, want %q", second.ExistingDocumentID, first.DocumentID)
	}

	docs, err := st.ListDocuments(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 {
		t.Errorf("ListDocuments returned %d documents, want 1 (no duplicate insert)", len(docs))
	}
}
