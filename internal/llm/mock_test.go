package llm

import (
	"context"
	"errors"
	"testing"
)

func TestMockExtractor_Defaults(t *testing.T) {
	m := NewMockExtractor()
	ctx := context.Background()

	text, err := m.OCR(ctx, []byte("anything"), "application/pdf")
	if err != nil {
		t.Fatal(err)
	}
	if text != "mock ocr text" {
		t.Errorf("OCR() = %q", text)
	}

	data, err := m.ClassifyAndExtract(ctx, text)
	if err != nil {
		t.Fatal(err)
	}
	if err := data.Validate(); err != nil {
		t.Errorf("default mock extraction should validate cleanly, got %v", err)
	}
}

func TestMockExtractor_Errors(t *testing.T) {
	m := NewMockExtractor()
	m.OCRErr = errors.New("ocr boom")
	m.ExtractErr = errors.New("extract boom")
	ctx := context.Background()

	if _, err := m.OCR(ctx, nil, "application/pdf"); err == nil {
		t.Error("expected OCR error")
	}
	if _, err := m.ClassifyAndExtract(ctx, "text"); err == nil {
		t.Error("expected extraction error")
	}
}
