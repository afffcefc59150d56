package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/chittyos/evidence-core/internal/apperr"
	"github.com/chittyos/evidence-core/internal/models"
)

const classificationPrompt = `You are extracting structured data from a legal document's OCR text.

Rules:
- Never guess a value you are not confident about. If you cannot determine
  a field with reasonable confidence, emit the literal placeholder
  "{{UNKNOWN:<type>:<partial-hint>}}" for that field, where <type> is one of:
  entity_name, date, amount, address, relationship, authority_scope,
  document_reference, identifier. <partial-hint> is whatever partial text
  clue exists (initials, fragments), or empty if none.
- Every placeholder you emit MUST have a matching entry in the top-level
  "unknowns" array, with the same field path, type, and partial value, plus
  context_clues (surrounding text), optional resolution_hints, and a
  confidence (0-1) in the *placeholder decision*, not the missing value.
- doc_type must be one of: poa_general, poa_healthcare, poa_financial,
  llc_formation, operating_agreement, corporate_resolution_bylaws,
  bank_statement, contract, deed, trust, will, court_filing,
  correspondence, other.
- Respond with a single JSON object matching this shape and nothing else:

{
  "doc_type": "...",
  "title": "...",
  "effective_date": "YYYY-MM-DD or null",
  "expiration_date": "YYYY-MM-DD or null",
  "parties": [{"name": "...", "role": "...", "kind": "person|llc|corporation|trust|partnership|estate", "confidence": 0.0}],
  "authority_grants": [{"grantor_name": "...", "grantee_name": "...", "type": "...", "effective_date": "...", "expiration_date": "..."}],
  "fields": {},
  "unknowns": [{"type": "...", "field_path": "...", "partial_value": "...", "context_clues": "...", "resolution_hints": "...", "confidence": 0.0}]
}

OCR text:
`

// AnthropicExtractor implements VisionExtractor using Claude's vision and
// text capabilities: image/PDF input for OCR, text completion for
// classification and extraction.
type AnthropicExtractor struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewAnthropicExtractor creates an extractor using the given API key and
// model. Pass "" for model to use a sensible default.
func NewAnthropicExtractor(apiKey, model string) *AnthropicExtractor {
	m := anthropic.Model(model)
	if model == "" {
		m = anthropic.ModelClaudeSonnet4_5
	}
	return &AnthropicExtractor{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  m,
	}
}

// OCR sends the document as an image or PDF block and asks the model to
// transcribe it verbatim.
func (e *AnthropicExtractor) OCR(ctx context.Context, content []byte, mimeType string) (string, error) {
	block, err := documentBlock(content, mimeType)
	if err != nil {
		return "", apperr.Wrap(apperr.KindOCRFailed, "build document block", err)
	}

	msg, err := e.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     e.model,
		MaxTokens: 8192,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				block,
				anthropic.NewTextBlock("Transcribe every word of text visible in this document exactly as written. Output only the transcription, no commentary."),
			),
		},
	})
	if err != nil {
		return "", apperr.Wrap(apperr.KindOCRFailed, "anthropic OCR request", err)
	}
	return concatText(msg), nil
}

// ClassifyAndExtract asks the model to classify and extract structured
// fields from OCR text, then parses and validates the JSON response.
func (e *AnthropicExtractor) ClassifyAndExtract(ctx context.Context, ocrText string) (*models.ExtractedData, error) {
	msg, err := e.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     e.model,
		MaxTokens: 4096,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(classificationPrompt + ocrText)),
		},
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindExtractionFailed, "anthropic extraction request", err)
	}

	raw := concatText(msg)
	data, err := parseExtractedData(raw)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindExtractionFailed, "parse extraction response", err)
	}
	if err := data.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.KindSchemaViolation, "extraction schema violation", err)
	}
	return data, nil
}

func documentBlock(content []byte, mimeType string) (anthropic.ContentBlockParamUnion, error) {
	encoded := base64.StdEncoding.EncodeToString(content)
	switch {
	case mimeType == "application/pdf":
		return anthropic.NewDocumentBlock(anthropic.Base64PDFSourceParam{
			Data:      encoded,
			MediaType: "application/pdf",
		}), nil
	case strings.HasPrefix(mimeType, "image/"):
		return anthropic.NewImageBlockBase64(mimeType, encoded), nil
	default:
		return anthropic.ContentBlockParamUnion{}, fmt.Errorf("unsupported mime type for vision OCR: %s", mimeType)
	}
}

func concatText(msg *anthropic.Message) string {
	var sb strings.Builder
	for _, block := range msg.Content {
		if text := block.AsText(); text.Text != "" {
			sb.WriteString(text.Text)
		}
	}
	return sb.String()
}

// parseExtractedData strips any markdown code fencing the model may have
// wrapped the JSON in, then unmarshals it.
func parseExtractedData(raw string) (*models.ExtractedData, error) {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var data models.ExtractedData
	if err := json.Unmarshal([]byte(trimmed), &data); err != nil {
		return nil, fmt.Errorf("unmarshal extraction json: %w", err)
	}
	return &data, nil
}
