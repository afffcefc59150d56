package llm

import (
	"context"

	"github.com/chittyos/evidence-core/internal/models"
)

// MockExtractor is a deterministic VisionExtractor for tests. It returns
// canned OCR text and extraction results that callers can preload by
// setting its exported fields, and the errors in OCRErr/ExtractErr if set.
type MockExtractor struct {
	OCRText    string
	Extraction *models.ExtractedData
	OCRErr     error
	ExtractErr error
}

// NewMockExtractor returns a mock that returns the fixed OCR text
// "mock ocr text" and a no-party, no-unknowns extraction by default.
func NewMockExtractor() *MockExtractor {
	return &MockExtractor{
		OCRText: "mock ocr text",
		Extraction: &models.ExtractedData{
			DocType: models.DocTypeOther,
			Title:   "Mock Document",
			Parties: []models.ExtractedParty{},
			Unknowns: []models.ExtractedUnknown{},
		},
	}
}

func (m *MockExtractor) OCR(ctx context.Context, content []byte, mimeType string) (string, error) {
	if m.OCRErr != nil {
		return "", m.OCRErr
	}
	return m.OCRText, nil
}

func (m *MockExtractor) ClassifyAndExtract(ctx context.Context, ocrText string) (*models.ExtractedData, error) {
	if m.ExtractErr != nil {
		return nil, m.ExtractErr
	}
	return m.Extraction, nil
}
