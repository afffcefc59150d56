// Package llm adapts a vision/LLM backend (§4.3) to the OCR and
// classification/extraction steps of the Workflow Engine. The contract is
// narrow and fallible by design: every call returns a typed result or a
// typed error, with no retry/backoff logic here (that belongs to
// internal/retry, wrapped around the call site).
package llm

import (
	"context"

	"github.com/chittyos/evidence-core/internal/models"
)

// VisionExtractor is the adapter interface for OCR and classification plus
// extraction. Implementations must never guess: uncertain values must come
// back as "{{UNKNOWN:<type>:<hint>}}" placeholders paired with an Unknowns
// entry, per §4.3.
type VisionExtractor interface {
	// OCR reads document bytes (PDF or image) and returns extracted text.
	OCR(ctx context.Context, content []byte, mimeType string) (string, error)

	// ClassifyAndExtract turns OCR text into structured ExtractedData. It
	// returns apperr.KindSchemaViolation if the result fails
	// ExtractedData.Validate().
	ClassifyAndExtract(ctx context.Context, ocrText string) (*models.ExtractedData, error)
}
