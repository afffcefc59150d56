// Package metrics exposes the Prometheus counters, gauges, and
// histograms emitted across the ingestion pipeline: workflow step
// outcomes, knowledge-gap and duplicate-candidate volume, correction
// queue depth, and blob storage usage. Collectors register against
// the default registry at package init, the same way a caller would
// reach for client_golang in any other Go service; internal/server
// mounts promhttp.Handler to expose them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ingestion_step_duration_seconds",
		Help:    "Duration of a single Workflow Engine step attempt.",
		Buckets: prometheus.DefBuckets,
	}, []string{"step"})

	StepAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingestion_step_attempts_total",
		Help: "Workflow Engine step attempts, labeled by step and outcome.",
	}, []string{"step", "outcome"})

	DocumentsIngestedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingestion_documents_completed_total",
		Help: "Documents that reached the finalize step successfully.",
	})

	DocumentsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingestion_documents_failed_total",
		Help: "Documents that exhausted retries on some step.",
	})

	KnowledgeGapsOpenTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ingestion_knowledge_gaps_open",
		Help: "Open knowledge gaps awaiting resolution.",
	})

	KnowledgeGapsRegisteredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingestion_knowledge_gaps_registered_total",
		Help: "Knowledge gap occurrences registered, labeled by gap type.",
	}, []string{"gap_type"})

	DuplicateCandidatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingestion_duplicate_candidates_total",
		Help: "Duplicate candidates raised by the Duplicate Hunter, labeled by match method.",
	}, []string{"method"})

	CorrectionQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ingestion_correction_queue_depth",
		Help: "Correction queue items outstanding, labeled by status.",
	}, []string{"status"})

	CorrectionsAppliedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingestion_corrections_applied_total",
		Help: "Correction queue items applied, labeled by outcome.",
	}, []string{"outcome"})

	BlobStoreBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ingestion_blobstore_bytes",
		Help: "Bytes occupied by the local blob store root, sampled periodically.",
	})
)

// RecordStep records both the duration histogram and attempts counter
// for one Workflow Engine step attempt.
func RecordStep(step string, outcome string, d time.Duration) {
	StepDuration.WithLabelValues(step).Observe(d.Seconds())
	StepAttemptsTotal.WithLabelValues(step, outcome).Inc()
}

// RecordDocumentCompleted increments the completed-document counter.
func RecordDocumentCompleted() {
	DocumentsIngestedTotal.Inc()
}

// RecordDocumentFailed increments the failed-document counter.
func RecordDocumentFailed() {
	DocumentsFailedTotal.Inc()
}

// RecordGapRegistered increments the per-type registered-gap counter.
func RecordGapRegistered(gapType string) {
	KnowledgeGapsRegisteredTotal.WithLabelValues(gapType).Inc()
}

// SetOpenGaps sets the current open-gap gauge, called after any
// create/resolve that changes the open count.
func SetOpenGaps(n float64) {
	KnowledgeGapsOpenTotal.Set(n)
}

// RecordDuplicateCandidate increments the duplicate-candidate counter
// for the method that produced the match (a models.DuplicateMethod value:
// hash, phash, semantic, metadata or ocr_text).
func RecordDuplicateCandidate(method string) {
	DuplicateCandidatesTotal.WithLabelValues(method).Inc()
}

// SetCorrectionQueueDepth sets the gauge for one queue item status.
func SetCorrectionQueueDepth(status string, n float64) {
	CorrectionQueueDepth.WithLabelValues(status).Set(n)
}

// RecordCorrectionApplied increments the applied-correction counter
// for the given outcome ("applied"/"failed").
func RecordCorrectionApplied(outcome string) {
	CorrectionsAppliedTotal.WithLabelValues(outcome).Inc()
}

// SetBlobStoreBytes sets the blob store disk-usage gauge.
func SetBlobStoreBytes(n int64) {
	BlobStoreBytes.Set(float64(n))
}
