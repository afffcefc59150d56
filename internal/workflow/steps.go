package workflow

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/chittyos/evidence-core/internal/apperr"
	"github.com/chittyos/evidence-core/internal/extract"
	"github.com/chittyos/evidence-core/internal/metrics"
	"github.com/chittyos/evidence-core/internal/models"
	"github.com/google/uuid"
)

const embeddingTextOCRLimit = 2000

// ocrStep reads the document's bytes from blob storage and dispatches
// them to the vision backend, persisting the resulting text as the
// document's Content (§4.2 step 1).
func (e *Engine) ocrStep(ctx context.Context, doc *models.Document, input *models.WorkflowInput) error {
	content, err := e.deps.Blobs.Get(ctx, input.BlobKey)
	if err != nil {
		return apperr.Wrap(apperr.KindOCRFailed, "read blob", err)
	}

	if e.deps.TextExtractor != nil {
		ext := filepath.Ext(input.SourceFilename)
		text, err := e.deps.TextExtractor.ExtractBytes(content, ext)
		if err == nil && extract.HasSubstantialTextLayer(text) {
			doc.Content = text
			if err := e.deps.Store.UpdateDocument(ctx, doc); err != nil {
				return fmt.Errorf("persist text-layer content: %w", err)
			}
			return nil
		}
	}

	text, err := e.deps.Vision.OCR(ctx, content, input.MimeType)
	if err != nil {
		return apperr.Wrap(apperr.KindOCRFailed, "vision ocr", err)
	}
	doc.Content = text
	if err := e.deps.Store.UpdateDocument(ctx, doc); err != nil {
		return fmt.Errorf("persist ocr text: %w", err)
	}
	return nil
}

// classifyExtractStep invokes the vision/LLM backend's classification and
// extraction call, validates the result's placeholder/unknowns
// invariant, and persists documentType and the extracted-data blob
// (§4.2 step 2).
func (e *Engine) classifyExtractStep(ctx context.Context, doc *models.Document) error {
	data, err := e.deps.Vision.ClassifyAndExtract(ctx, doc.Content)
	if err != nil {
		return apperr.Wrap(apperr.KindExtractionFailed, "classify and extract", err)
	}
	if err := data.Validate(); err != nil {
		return apperr.Wrap(apperr.KindSchemaViolation, "extracted data", err)
	}
	doc.DocType = data.DocType
	if !models.IsPlaceholder(data.Title) {
		doc.Title = data.Title
	}
	doc.EffectiveDate = data.EffectiveDate
	doc.ExtractedData = data
	if err := e.deps.Store.UpdateDocument(ctx, doc); err != nil {
		return fmt.Errorf("persist extracted data: %w", err)
	}
	return nil
}

// registerGapsStep turns every extracted unknown into a fingerprinted
// KnowledgeGap plus a GapOccurrence, and proposes document_match
// candidates against open gaps whose hints plainly appear in this
// document's text (§4.2 step 3).
func (e *Engine) registerGapsStep(ctx context.Context, doc *models.Document) error {
	if doc.ExtractedData == nil {
		return nil
	}
	for _, u := range doc.ExtractedData.Unknowns {
		fp := gapFingerprint(u.Type, u.PartialValue, u.ContextClues)
		gapID, err := e.deps.Store.UpsertKnowledgeGap(ctx, &models.KnowledgeGap{
			ID:              uuid.New().String(),
			Type:            u.Type,
			Fingerprint:     fp,
			PartialValue:    u.PartialValue,
			ContextClues:    u.ContextClues,
			ResolutionHints: u.ResolutionHints,
		})
		if err != nil {
			return fmt.Errorf("upsert knowledge gap: %w", err)
		}
		if err := e.deps.Store.AppendGapOccurrence(ctx, &models.GapOccurrence{
			GapID:                gapID,
			DocumentID:           doc.ID,
			FieldPath:            u.FieldPath,
			ExtractionConfidence: u.Confidence,
			PlaceholderValue:     models.FormatPlaceholder(u.Type, u.PartialValue),
		}); err != nil {
			return fmt.Errorf("append gap occurrence: %w", err)
		}
		metrics.RecordGapRegistered(string(u.Type))
	}

	open, err := e.deps.Store.ListGaps(ctx, models.GapStatusOpen, 0, 500)
	if err != nil {
		return fmt.Errorf("list open gaps: %w", err)
	}
	metrics.SetOpenGaps(float64(len(open)))
	content := strings.ToLower(doc.Content)
	for _, gap := range open {
		confidence := gapMatchConfidence(gap, content)
		if confidence <= 0.85 {
			continue
		}
		if err := e.deps.Store.AddGapCandidate(ctx, &models.GapCandidate{
			ID:             uuid.New().String(),
			GapID:          gap.ID,
			ProposedValue:  gap.PartialValue,
			SourceType:     models.GapCandidateSourceDocumentMatch,
			SourceDocument: doc.ID,
			Confidence:     confidence,
		}); err != nil {
			return fmt.Errorf("add gap candidate: %w", err)
		}
	}
	return nil
}

// gapMatchConfidence estimates how well a document's text matches a
// gap's resolution hints, for the document_match candidate heuristic.
// A hint that appears verbatim in the document is treated as
// high-confidence; anything else is not proposed.
func gapMatchConfidence(gap *models.KnowledgeGap, lowerContent string) float64 {
	hint := strings.ToLower(strings.TrimSpace(gap.ResolutionHints))
	if hint == "" || len(hint) < 4 {
		return 0
	}
	if strings.Contains(lowerContent, hint) {
		return 0.9
	}
	return 0
}

// entityResolutionStep resolves each non-placeholder extracted party to
// an Entity by case-insensitive name, creating one if absent, and links
// it to the document with its extracted role and confidence (§4.2
// step 4).
func (e *Engine) entityResolutionStep(ctx context.Context, doc *models.Document) error {
	if doc.ExtractedData == nil {
		return nil
	}
	for _, party := range doc.ExtractedData.Parties {
		if models.IsPlaceholder(party.Name) {
			continue
		}
		entityID, err := e.resolveEntity(ctx, party.Name, party.Kind)
		if err != nil {
			return err
		}
		if err := e.deps.Store.LinkEntity(ctx, &models.DocumentEntityLink{
			DocumentID: doc.ID,
			EntityID:   entityID,
			Role:       party.Role,
			Confidence: party.Confidence,
		}); err != nil {
			return fmt.Errorf("link entity: %w", err)
		}
	}
	return nil
}

// resolveEntity looks up an entity by normalized name, returning the
// earliest-created match (FindEntityByNormalizedName's tie-break), or
// creates a new one with the given kind.
func (e *Engine) resolveEntity(ctx context.Context, name string, kind models.EntityKind) (string, error) {
	normalized := models.NormalizeName(name)
	matches, err := e.deps.Store.FindEntityByNormalizedName(ctx, normalized)
	if err != nil {
		return "", fmt.Errorf("find entity by name: %w", err)
	}
	if len(matches) > 0 {
		return matches[0].ID, nil
	}
	entity := &models.Entity{
		ID:             uuid.New().String(),
		Kind:           kind,
		Name:           name,
		NormalizedName: normalized,
	}
	if err := e.deps.Store.CreateEntity(ctx, entity); err != nil {
		return "", fmt.Errorf("create entity: %w", err)
	}
	return entity.ID, nil
}

// authorityGraphUpdateStep resolves each extracted authority grant against
// entities created in step 4, creating a new grant when both sides
// resolve, and superseding any existing active grant for the same
// (grantor, grantee, type) triple (§4.2 step 5).
func (e *Engine) authorityGraphUpdateStep(ctx context.Context, doc *models.Document) error {
	if doc.ExtractedData == nil {
		return nil
	}
	for _, g := range doc.ExtractedData.AuthorityGrants {
		if models.IsPlaceholder(g.GrantorName) || models.IsPlaceholder(g.GranteeName) {
			continue
		}
		grantorID, err := e.lookupResolvedEntity(ctx, g.GrantorName)
		if err != nil {
			return err
		}
		granteeID, err := e.lookupResolvedEntity(ctx, g.GranteeName)
		if err != nil {
			return err
		}
		if grantorID == "" || granteeID == "" {
			continue
		}

		newGrant := &models.AuthorityGrant{
			ID:             uuid.New().String(),
			DocumentID:     doc.ID,
			GrantorID:      grantorID,
			GranteeID:      granteeID,
			Type:           g.Type,
			Scope:          g.Scope,
			EffectiveDate:  g.EffectiveDate,
			ExpirationDate: g.ExpirationDate,
			IsActive:       true,
		}

		active, err := e.deps.Store.ActiveGrant(ctx, grantorID, granteeID, g.Type)
		if err != nil {
			return fmt.Errorf("lookup active grant: %w", err)
		}
		if err := e.deps.Store.InsertGrant(ctx, newGrant); err != nil {
			return apperr.Wrap(apperr.KindGrantSupersession, "insert grant", err)
		}
		if active == nil {
			continue
		}
		if err := e.deps.Store.DeactivateGrant(ctx, active.ID, newGrant.ID); err != nil {
			return apperr.Wrap(apperr.KindGrantSupersession, "deactivate superseded grant", err)
		}
		if err := e.linkSupersession(ctx, doc, active.DocumentID); err != nil {
			return err
		}
	}
	return nil
}

// lookupResolvedEntity finds the entity a name resolved to in step 4; an
// empty return means the name never resolved (shouldn't happen for a
// non-placeholder name, since step 4 resolves every one it sees).
func (e *Engine) lookupResolvedEntity(ctx context.Context, name string) (string, error) {
	matches, err := e.deps.Store.FindEntityByNormalizedName(ctx, models.NormalizeName(name))
	if err != nil {
		return "", fmt.Errorf("find entity by name: %w", err)
	}
	if len(matches) == 0 {
		return "", nil
	}
	return matches[0].ID, nil
}

// linkSupersession records that doc supersedes the document that held the
// now-deactivated grant, leaving entity links and other grants on both
// documents untouched (unlike store.MergeDocuments, which folds one
// document fully into another).
func (e *Engine) linkSupersession(ctx context.Context, doc *models.Document, supersededDocID string) error {
	if supersededDocID == "" || supersededDocID == doc.ID {
		return nil
	}
	old, err := e.deps.Store.GetDocument(ctx, supersededDocID)
	if err != nil {
		return fmt.Errorf("load superseded document: %w", err)
	}
	old.SupersededBy = doc.ID
	if err := e.deps.Store.UpdateDocument(ctx, old); err != nil {
		return fmt.Errorf("mark document superseded: %w", err)
	}
	doc.Supersedes = supersededDocID
	return e.deps.Store.UpdateDocument(ctx, doc)
}

// embeddingStep builds an embedding text from document type, title, party
// roles, key terms, and a truncated OCR slice, embeds it, and upserts the
// vector into the Vector Index keyed by document id with the §3 metadata
// (document type, entity ids, effective date, key terms) so search can
// filter on it. It also (re)indexes the document for keyword search now
// that OCR text and title are final (§4.2 step 6).
func (e *Engine) embeddingStep(ctx context.Context, doc *models.Document) error {
	terms := keyTerms(doc)
	text := embeddingText(doc, terms)
	vec, err := e.deps.Embedder.Embed(ctx, text)
	if err != nil {
		return apperr.Wrap(apperr.KindEmbeddingFailed, "embed document", err)
	}

	links, err := e.deps.Store.LinksForDocument(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("load entity links: %w", err)
	}
	entityIDs := make([]string, len(links))
	for i, l := range links {
		entityIDs[i] = l.EntityID
	}

	var effectiveDate string
	if doc.EffectiveDate != nil {
		effectiveDate = doc.EffectiveDate.Format("2006-01-02")
	}

	record := &models.VectorRecord{
		DocumentID:    doc.ID,
		Vector:        vec,
		DocType:       doc.DocType,
		EntityIDs:     entityIDs,
		EffectiveDate: effectiveDate,
		KeyTerms:      terms,
	}
	if err := e.deps.VectorIndex.Add(ctx, []*models.VectorRecord{record}); err != nil {
		return apperr.Wrap(apperr.KindVectorUpsertFailed, "upsert vector", err)
	}
	if err := e.deps.KeywordIndex.Index(ctx, doc.ID, doc); err != nil {
		return fmt.Errorf("index keyword: %w", err)
	}
	return nil
}

// keyTerms pulls the party names and authority-grant types out of a
// document's extracted data, the closest the extraction schema comes to a
// dedicated keyphrase field.
func keyTerms(doc *models.Document) []string {
	if doc.ExtractedData == nil {
		return nil
	}
	seen := make(map[string]bool)
	var terms []string
	add := func(s string) {
		if s == "" || models.IsPlaceholder(s) || seen[s] {
			return
		}
		seen[s] = true
		terms = append(terms, s)
	}
	for _, p := range doc.ExtractedData.Parties {
		add(p.Name)
	}
	for _, g := range doc.ExtractedData.AuthorityGrants {
		add(g.Type)
	}
	return terms
}

func embeddingText(doc *models.Document, terms []string) string {
	var b strings.Builder
	b.WriteString(string(doc.DocType))
	b.WriteString(" ")
	b.WriteString(doc.Title)
	if doc.ExtractedData != nil {
		for _, p := range doc.ExtractedData.Parties {
			b.WriteString(" ")
			b.WriteString(p.Role)
		}
	}
	for _, t := range terms {
		b.WriteString(" ")
		b.WriteString(t)
	}
	ocr := doc.Content
	if len(ocr) > embeddingTextOCRLimit {
		ocr = ocr[:embeddingTextOCRLimit]
	}
	b.WriteString(" ")
	b.WriteString(ocr)
	return b.String()
}

// postIngestDuplicateCheckStep notifies the Duplicate Hunter to scan this
// document in isolation, rather than waiting for its next full/incremental
// sweep (§4.2 step 7).
func (e *Engine) postIngestDuplicateCheckStep(ctx context.Context, doc *models.Document) error {
	if e.deps.HunterQueue == nil {
		return nil
	}
	if err := e.deps.HunterQueue.Push(ctx, PostIngestNotification{DocumentID: doc.ID}); err != nil {
		return fmt.Errorf("notify duplicate hunter: %w", err)
	}
	return nil
}

// finalizeStep is the pipeline's terminal step; Run itself marks the
// document completed once every step (including this one) succeeds, so
// there is nothing left to do here.
func (e *Engine) finalizeStep(ctx context.Context, doc *models.Document) error {
	return nil
}
