// Package extract provides the OCR step's text-layer probe: a cheap check
// for whether a submitted PDF already carries a machine-readable text
// layer, so the Workflow Engine can skip the vision LLM call for
// born-digital PDFs and reserve it for scans and images.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// minTextLayerRunes is the threshold below which a PDF's embedded text
// layer is treated as absent (pure image scan, or a layer too sparse to
// trust over vision OCR).
const minTextLayerRunes = 64

// Extractor probes document bytes for an existing text layer.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns its text layer, if any.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	return e.ExtractBytes(content, ext)
}

// ExtractBytes returns the text layer of content, if the format carries
// one. ext should include the leading dot (e.g. ".pdf"). Raster image
// formats (.png, .jpg, .tiff, ...) have no text layer and always go
// through the OCR step's vision LLM path.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	switch ext {
	case ".pdf":
		return extractPDF(content)
	case ".txt", ".md", ".rst":
		return extractPlain(content)
	default:
		return "", nil
	}
}

// HasSubstantialTextLayer reports whether text is long enough to trust as
// a real text layer rather than noise from a corrupt or near-empty PDF,
// letting the OCR step decide to skip the vision LLM call.
func HasSubstantialTextLayer(text string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(text)) >= minTextLayerRunes
}
