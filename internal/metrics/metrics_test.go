package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordStep(t *testing.T) {
	initial := testutil.ToFloat64(StepAttemptsTotal.WithLabelValues("ocr", "succeeded"))
	RecordStep("ocr", "succeeded", 50*time.Millisecond)
	after := testutil.ToFloat64(StepAttemptsTotal.WithLabelValues("ocr", "succeeded"))
	if after != initial+1 {
		t.Fatalf("attempts = %v, want %v", after, initial+1)
	}
}

func TestSetOpenGaps(t *testing.T) {
	SetOpenGaps(7)
	if got := testutil.ToFloat64(KnowledgeGapsOpenTotal); got != 7 {
		t.Fatalf("open gaps = %v, want 7", got)
	}
	SetOpenGaps(3)
	if got := testutil.ToFloat64(KnowledgeGapsOpenTotal); got != 3 {
		t.Fatalf("open gaps = %v, want 3", got)
	}
}

func TestRecordDuplicateCandidate(t *testing.T) {
	initial := testutil.ToFloat64(DuplicateCandidatesTotal.WithLabelValues("semantic"))
	RecordDuplicateCandidate("semantic")
	after := testutil.ToFloat64(DuplicateCandidatesTotal.WithLabelValues("semantic"))
	if after != initial+1 {
		t.Fatalf("duplicate candidates = %v, want %v", after, initial+1)
	}
}

func TestSetCorrectionQueueDepth(t *testing.T) {
	SetCorrectionQueueDepth("pending", 4)
	if got := testutil.ToFloat64(CorrectionQueueDepth.WithLabelValues("pending")); got != 4 {
		t.Fatalf("queue depth = %v, want 4", got)
	}
}

func TestSetBlobStoreBytes(t *testing.T) {
	SetBlobStoreBytes(2048)
	if got := testutil.ToFloat64(BlobStoreBytes); got != 2048 {
		t.Fatalf("blobstore bytes = %v, want 2048", got)
	}
}
