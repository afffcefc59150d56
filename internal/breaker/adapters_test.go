package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chittyos/evidence-core/internal/blobstore"
	"github.com/chittyos/evidence-core/internal/embedding"
	"github.com/chittyos/evidence-core/internal/llm"
)

func TestWrapVision_SeparateBreakersPerCall(t *testing.T) {
	mock := llm.NewMockExtractor()
	mock.OCRErr = errors.New("ocr down")

	wrapped := WrapVision(mock, Config{MaxFailures: 1, OpenTimeout: time.Minute}, Config{MaxFailures: 1, OpenTimeout: time.Minute})
	ctx := context.Background()

	if _, err := wrapped.OCR(ctx, []byte("x"), "application/pdf"); err == nil {
		t.Fatal("expected ocr error")
	}
	if _, err := wrapped.OCR(ctx, []byte("x"), "application/pdf"); !errors.Is(err, ErrOpen) {
		t.Errorf("expected ocr breaker open, got %v", err)
	}

	// classification never failed, so its breaker should still be closed
	// and pass through to the mock's default extraction.
	if _, err := wrapped.ClassifyAndExtract(ctx, "ocr text"); err != nil {
		t.Errorf("expected classify to pass through, got %v", err)
	}
}

func TestWrapEmbedder_PassesThrough(t *testing.T) {
	wrapped := WrapEmbedder(embedding.NewMockEmbedder(4), Config{MaxFailures: 1, OpenTimeout: time.Minute})
	ctx := context.Background()

	vec, err := wrapped.Embed(ctx, "hello")
	if err != nil {
		t.Fatal(err)
	}
	if len(vec) != 4 {
		t.Errorf("len(vec) = %d, want 4", len(vec))
	}
	if wrapped.Dimensions() != 4 {
		t.Errorf("Dimensions() = %d, want 4", wrapped.Dimensions())
	}
	if err := wrapped.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}

func TestWrapBlobStore_PassesThrough(t *testing.T) {
	blobs, err := blobstore.NewLocalBlobStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	wrapped := WrapBlobStore(blobs, Config{MaxFailures: 1, OpenTimeout: time.Minute})
	ctx := context.Background()

	key, err := wrapped.Put(ctx, []byte("content"))
	if err != nil {
		t.Fatal(err)
	}
	got, err := wrapped.Get(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "content" {
		t.Errorf("Get() = %q", got)
	}
	exists, err := wrapped.Exists(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Error("expected key to exist")
	}
}
