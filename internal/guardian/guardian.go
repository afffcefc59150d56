// Package guardian implements the Accuracy Guardian (§4.6): a long-lived
// actor owning correction rules and the correction queue, propagating
// approved edits into entities and authority grants, and driving the
// synthetic correction job that fires when a knowledge gap is resolved.
package guardian

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/chittyos/evidence-core/internal/apperr"
	"github.com/chittyos/evidence-core/internal/metrics"
	"github.com/chittyos/evidence-core/internal/models"
	"github.com/chittyos/evidence-core/internal/queue"
	"github.com/chittyos/evidence-core/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Confidence values attached to a proposed correction per correctionType
// (§4.6). Fixed, not configurable: they describe how much the extraction
// pipeline trusts each mechanism, not a tunable knob.
const (
	confidenceReplace      = 0.95
	confidenceRegex        = 0.9
	confidenceAIReextract  = 0.6
	confidenceManualReview = 0.5
)

const findAffectedCap = 10000

// ReExtractRequest is pushed onto the re-extraction queue when bulkApply
// processes an ai_reextract correction; a re-extraction worker (external
// collaborator) is expected to re-run extraction and eventually supersede
// the queue item through the normal correction flow.
type ReExtractRequest struct {
	QueueItemID string `json:"queue_item_id"`
	DocumentID  string `json:"document_id"`
	FieldPath   string `json:"field_path"`
}

// regexSpec is how a regex CorrectionRule's CorrectionValue is encoded:
// CorrectionRule has a single CorrectionValue string, but the regex type
// needs both a pattern and a replacement, so it travels as small JSON.
type regexSpec struct {
	Pattern     string `json:"pattern"`
	Replacement string `json:"replacement"`
}

// Guardian is the Accuracy Guardian actor.
type Guardian struct {
	store          *store.Store
	reextractQueue queue.Queue
	bulkApplyBatch int
	logger         *zap.Logger
}

// Option configures a Guardian.
type Option func(*Guardian)

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Guardian) { g.logger = l }
}

// WithReextractQueue wires the queue ai_reextract corrections are pushed
// onto. Without one, bulkApply leaves ai_reextract items approved and
// unprocessed rather than silently dropping them.
func WithReextractQueue(q queue.Queue) Option {
	return func(g *Guardian) { g.reextractQueue = q }
}

// WithBulkApplyBatch overrides the default BULK_APPLY_BATCH (§6).
func WithBulkApplyBatch(n int) Option {
	return func(g *Guardian) { g.bulkApplyBatch = n }
}

// New creates a Guardian.
func New(st *store.Store, opts ...Option) *Guardian {
	g := &Guardian{store: st, bulkApplyBatch: 100}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CreateRule inserts a new draft CorrectionRule and returns it alongside
// the number of documents findAffected currently matches.
func (g *Guardian) CreateRule(ctx context.Context, name, ruleType string, criteria models.MatchCriteria, correctionType models.CorrectionType, correctionValue string, requiresApproval bool) (*models.CorrectionRule, int, error) {
	rule := &models.CorrectionRule{
		ID:               uuid.New().String(),
		Name:             name,
		RuleType:         ruleType,
		MatchCriteria:    criteria,
		CorrectionType:   correctionType,
		CorrectionValue:  correctionValue,
		RequiresApproval: requiresApproval,
		Status:           models.RuleStatusDraft,
	}
	if err := g.store.CreateRule(ctx, rule); err != nil {
		return nil, 0, err
	}
	affected, err := g.findAffected(ctx, criteria)
	if err != nil {
		return rule, 0, err
	}
	return rule, len(affected), nil
}

// Activate transitions a rule from draft to active.
func (g *Guardian) Activate(ctx context.Context, ruleID string) error {
	return g.store.SetRuleStatus(ctx, ruleID, models.RuleStatusActive)
}

// Apply computes a proposed correction for every document findAffected
// matches and enqueues one CorrectionQueueItem per changed field,
// appending a review item when the rule requires approval (§4.6).
func (g *Guardian) Apply(ctx context.Context, ruleID string) (int, error) {
	rule, err := g.store.GetRule(ctx, ruleID)
	if err != nil {
		return 0, err
	}
	if rule.Status != models.RuleStatusActive {
		return 0, apperr.Validation(fmt.Sprintf("rule %s is not active", ruleID))
	}
	affected, err := g.findAffected(ctx, rule.MatchCriteria)
	if err != nil {
		return 0, err
	}
	fieldPath := rule.MatchCriteria.FieldPath
	queued := 0
	for _, doc := range affected {
		current, err := getPath(doc.Metadata, fieldPath)
		if err != nil {
			return queued, fmt.Errorf("read field %s on document %s: %w", fieldPath, doc.ID, err)
		}
		proposed, confidence, changed, err := proposeValue(rule.CorrectionType, rule.CorrectionValue, current)
		if err != nil {
			if g.logger != nil {
				g.logger.Warn("skipping document, could not propose correction", zap.String("document_id", doc.ID), zap.Error(err))
			}
			continue
		}
		if !changed {
			continue
		}
		item := &models.CorrectionQueueItem{
			ID:            uuid.New().String(),
			RuleID:        rule.ID,
			DocumentID:    doc.ID,
			FieldPath:     fieldPath,
			CurrentValue:  current,
			ProposedValue: proposed,
			Confidence:    confidence,
			RollbackValue: current,
		}
		inserted, err := g.store.EnqueueCorrection(ctx, item)
		if err != nil {
			return queued, fmt.Errorf("enqueue correction for document %s: %w", doc.ID, err)
		}
		if !inserted {
			continue
		}
		queued++
		if err := g.store.IncrementRuleCounts(ctx, rule.ID, 1, 0, 0); err != nil {
			return queued, err
		}
		if rule.RequiresApproval {
			priority := 70
			if rule.CorrectionType == models.CorrectionTypeReplace {
				priority = 50
			}
			if err := g.store.EnqueueReview(ctx, &models.ReviewQueueItem{
				ID:          uuid.New().String(),
				Type:        models.ReviewItemTypeCorrection,
				SourceTable: "correction_queue_items",
				SourceID:    item.ID,
				Priority:    priority,
			}); err != nil {
				return queued, fmt.Errorf("enqueue correction review: %w", err)
			}
		}
	}
	return queued, nil
}

// proposeValue computes the proposed value and confidence for one
// document's current field value per correctionType (§4.6). changed is
// false when the proposal would be a no-op and the caller should skip it.
func proposeValue(correctionType models.CorrectionType, correctionValue, current string) (models.ProposedValue, float64, bool, error) {
	switch correctionType {
	case models.CorrectionTypeReplace:
		if correctionValue == current {
			return models.ProposedValue{}, 0, false, nil
		}
		return models.LiteralValue(correctionValue), confidenceReplace, true, nil
	case models.CorrectionTypeRegex:
		var spec regexSpec
		if err := json.Unmarshal([]byte(correctionValue), &spec); err != nil {
			return models.ProposedValue{}, 0, false, fmt.Errorf("decode regex correction spec: %w", err)
		}
		pattern, err := regexp.Compile(spec.Pattern)
		if err != nil {
			return models.ProposedValue{}, 0, false, fmt.Errorf("invalid regex pattern %q: %w", spec.Pattern, err)
		}
		newValue := pattern.ReplaceAllString(current, spec.Replacement)
		if newValue == current {
			return models.ProposedValue{}, 0, false, nil
		}
		return models.LiteralValue(newValue), confidenceRegex, true, nil
	case models.CorrectionTypeAIReextract:
		return models.ReExtractValue(), confidenceAIReextract, true, nil
	case models.CorrectionTypeManualReview:
		return models.ManualReviewValue(), confidenceManualReview, true, nil
	default:
		return models.ProposedValue{}, 0, false, fmt.Errorf("unknown correction type %q", correctionType)
	}
}

// Approve transitions queue items to approved and resolves any review
// item pointing at them.
func (g *Guardian) Approve(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if err := g.store.SetQueueItemStatus(ctx, id, models.QueueItemApproved, ""); err != nil {
			return err
		}
		if err := g.resolveReviewFor(ctx, id, "approved"); err != nil {
			return err
		}
	}
	return nil
}

// Reject transitions queue items to rejected, recording reason.
func (g *Guardian) Reject(ctx context.Context, ids []string, reason string) error {
	for _, id := range ids {
		if err := g.store.SetQueueItemStatus(ctx, id, models.QueueItemRejected, reason); err != nil {
			return err
		}
		if err := g.resolveReviewFor(ctx, id, "rejected: "+reason); err != nil {
			return err
		}
	}
	return nil
}

// resolveReviewFor finds the correction review item pointing at queueItemID,
// if any, and resolves it. There is no index from queue item to review
// item, so this scans the pending review queue, which is small and
// bounded by the same approval workflow that created the item.
func (g *Guardian) resolveReviewFor(ctx context.Context, queueItemID, resolution string) error {
	pending, err := g.store.ListReviewQueue(ctx, models.ReviewItemPending, findAffectedCap)
	if err != nil {
		return err
	}
	for _, item := range pending {
		if item.Type == models.ReviewItemTypeCorrection && item.SourceID == queueItemID {
			return g.store.ResolveReviewItem(ctx, item.ID, models.ReviewItemResolved, resolution)
		}
	}
	return nil
}

// BulkApply pulls up to bulkApplyBatch approved items and applies each,
// isolating per-item failures (§7: one failure does not abort the batch).
func (g *Guardian) BulkApply(ctx context.Context) (*models.BulkApplyResult, error) {
	items, err := g.store.ListQueueItems(ctx, "", models.QueueItemApproved, g.bulkApplyBatch)
	if err != nil {
		return nil, err
	}
	result := &models.BulkApplyResult{}
	for _, item := range items {
		applied, err := g.applyOne(ctx, item)
		if err != nil {
			result.Failed++
			metrics.RecordCorrectionApplied("failed")
			if g.logger != nil {
				g.logger.Warn("correction apply failed", zap.String("queue_item_id", item.ID), zap.Error(apperr.Wrap(apperr.KindCorrectionApply, "apply correction", err)))
			}
			continue
		}
		if applied {
			result.Applied++
			metrics.RecordCorrectionApplied("applied")
		}
	}
	remaining, err := g.store.ListQueueItems(ctx, "", models.QueueItemApproved, findAffectedCap)
	if err != nil {
		return result, err
	}
	result.Remaining = len(remaining)
	metrics.SetCorrectionQueueDepth("approved", float64(result.Remaining))
	return result, nil
}

// applyOne applies a single approved queue item per its proposed value's
// kind, reporting whether it transitioned to applied.
func (g *Guardian) applyOne(ctx context.Context, item *models.CorrectionQueueItem) (bool, error) {
	switch item.ProposedValue.Kind {
	case models.ProposedValueManualReview:
		// left pending further human action; bulkApply does not resolve it.
		return false, nil
	case models.ProposedValueReExtract:
		if g.reextractQueue == nil {
			return false, nil
		}
		if err := g.reextractQueue.Push(ctx, ReExtractRequest{QueueItemID: item.ID, DocumentID: item.DocumentID, FieldPath: item.FieldPath}); err != nil {
			return false, fmt.Errorf("push re-extract request: %w", err)
		}
		if err := g.store.AppendAuditLog(ctx, &models.CorrectionAuditLogEntry{
			ID: uuid.New().String(), QueueItemID: item.ID, DocumentID: item.DocumentID,
			FieldPath: item.FieldPath, OldValue: item.RollbackValue, NewValue: "__AI_REEXTRACT__",
		}); err != nil {
			return false, err
		}
		if err := g.store.SetQueueItemStatus(ctx, item.ID, models.QueueItemApplied, ""); err != nil {
			return false, err
		}
		if err := g.store.IncrementRuleCounts(ctx, item.RuleID, 0, 1, 0); err != nil {
			return false, err
		}
		return true, nil
	case models.ProposedValueLiteral:
		doc, err := g.store.GetDocument(ctx, item.DocumentID)
		if err != nil {
			return false, err
		}
		newMetadata, err := setPath(doc.Metadata, item.FieldPath, item.ProposedValue.Literal)
		if err != nil {
			return false, fmt.Errorf("set field %s: %w", item.FieldPath, err)
		}
		doc.Metadata = newMetadata
		if err := g.store.UpdateDocument(ctx, doc); err != nil {
			return false, err
		}
		if err := g.store.AppendAuditLog(ctx, &models.CorrectionAuditLogEntry{
			ID: uuid.New().String(), QueueItemID: item.ID, DocumentID: item.DocumentID,
			FieldPath: item.FieldPath, OldValue: item.RollbackValue, NewValue: item.ProposedValue.Literal,
		}); err != nil {
			return false, err
		}
		if err := g.store.SetQueueItemStatus(ctx, item.ID, models.QueueItemApplied, ""); err != nil {
			return false, err
		}
		if err := g.store.IncrementRuleCounts(ctx, item.RuleID, 0, 1, 0); err != nil {
			return false, err
		}
		if _, _, err := g.propagate(ctx, doc, item.FieldPath, item.ProposedValue.Literal); err != nil {
			return true, fmt.Errorf("propagate correction: %w", err)
		}
		return true, nil
	default:
		return false, fmt.Errorf("queue item %s has unresolved proposed value kind %q", item.ID, item.ProposedValue.Kind)
	}
}

// ResolveGap runs the synthetic correction job §4.6 describes for gap
// resolution: every GapOccurrence's document is updated at its field path
// with value, propagation rules rerun, and the gap marked resolved.
func (g *Guardian) ResolveGap(ctx context.Context, gapID, value string, sourceDocument string) (*models.GapResolutionResult, error) {
	occurrences, err := g.store.OccurrencesForGap(ctx, gapID)
	if err != nil {
		return nil, err
	}
	result := &models.GapResolutionResult{GapID: gapID}
	createdEntities := map[string]bool{}
	for _, occ := range occurrences {
		doc, err := g.store.GetDocument(ctx, occ.DocumentID)
		if err != nil {
			return result, err
		}
		current, err := getPath(doc.Metadata, occ.FieldPath)
		if err != nil {
			return result, err
		}
		newMetadata, err := setPath(doc.Metadata, occ.FieldPath, value)
		if err != nil {
			return result, fmt.Errorf("set field %s on document %s: %w", occ.FieldPath, doc.ID, err)
		}
		doc.Metadata = newMetadata
		if err := g.store.UpdateDocument(ctx, doc); err != nil {
			return result, err
		}
		if err := g.store.AppendAuditLog(ctx, &models.CorrectionAuditLogEntry{
			ID: uuid.New().String(), QueueItemID: "", DocumentID: doc.ID,
			FieldPath: occ.FieldPath, OldValue: current, NewValue: value,
		}); err != nil {
			return result, err
		}
		result.DocumentsUpdated++
		result.FieldsUpdated++
		createdEntity, authorityUpdated, err := g.propagate(ctx, doc, occ.FieldPath, value)
		if err != nil {
			return result, fmt.Errorf("propagate gap resolution: %w", err)
		}
		if createdEntity {
			createdEntities[value] = true
		}
		if authorityUpdated {
			result.AuthoritiesUpdated++
		}
	}
	result.EntitiesCreated = len(createdEntities)
	if err := g.store.SetGapStatus(ctx, gapID, models.GapStatusResolved, value, sourceDocument); err != nil {
		return result, err
	}
	return result, nil
}

// propagate applies §4.6's propagation rules after a field's value
// changes: entity rename/merge when the path touches entities/parties,
// authority grant date updates when it touches authority/effective_date/
// expiration_date.
func (g *Guardian) propagate(ctx context.Context, doc *models.Document, fieldPath, newValue string) (createdEntity, updatedAuthority bool, err error) {
	if strings.Contains(fieldPath, "entities") || strings.Contains(fieldPath, "parties") {
		createdEntity, err = g.propagateEntity(ctx, doc, fieldPath, newValue)
		if err != nil {
			return createdEntity, false, err
		}
	}
	if strings.Contains(fieldPath, "authority") || strings.Contains(fieldPath, "effective_date") || strings.Contains(fieldPath, "expiration_date") {
		updatedAuthority, err = g.propagateAuthority(ctx, doc, fieldPath, newValue)
		if err != nil {
			return createdEntity, updatedAuthority, err
		}
	}
	return createdEntity, updatedAuthority, nil
}

// entityPropagationRole is a simplification: the party role a corrected
// field plays is not recoverable from the field path alone (it would
// require the full extraction schema), so every entity/party correction
// is treated as touching a generic "party" link.
const entityPropagationRole = "party"

func (g *Guardian) propagateEntity(ctx context.Context, doc *models.Document, fieldPath, newValue string) (bool, error) {
	links, err := g.store.LinksForDocument(ctx, doc.ID)
	if err != nil {
		return false, err
	}
	var affectedEntityID string
	for _, l := range links {
		if l.Role == entityPropagationRole {
			affectedEntityID = l.EntityID
			break
		}
	}
	normalized := models.NormalizeName(newValue)
	existing, err := g.store.FindEntityByNormalizedName(ctx, normalized)
	if err != nil {
		return false, err
	}
	switch {
	case affectedEntityID == "" && len(existing) > 0:
		return false, g.store.LinkEntity(ctx, &models.DocumentEntityLink{DocumentID: doc.ID, EntityID: existing[0].ID, Role: entityPropagationRole, Confidence: 1.0})
	case affectedEntityID == "" && len(existing) == 0:
		entity := &models.Entity{ID: uuid.New().String(), Kind: models.EntityKindPerson, Name: newValue, NormalizedName: normalized}
		if err := g.store.CreateEntity(ctx, entity); err != nil {
			return false, err
		}
		if err := g.store.LinkEntity(ctx, &models.DocumentEntityLink{DocumentID: doc.ID, EntityID: entity.ID, Role: entityPropagationRole, Confidence: 1.0}); err != nil {
			return false, err
		}
		return true, nil
	case affectedEntityID != "" && len(existing) > 0 && existing[0].ID != affectedEntityID:
		return false, g.store.MergeEntities(ctx, existing[0].ID, affectedEntityID)
	default:
		return false, g.store.RenameEntity(ctx, affectedEntityID, newValue)
	}
}

func (g *Guardian) propagateAuthority(ctx context.Context, doc *models.Document, fieldPath, newValue string) (bool, error) {
	grants, err := g.store.GrantsForDocument(ctx, doc.ID)
	if err != nil {
		return false, err
	}
	if len(grants) == 0 {
		return false, nil
	}
	var parsed *time.Time
	isDateField := strings.Contains(fieldPath, "effective_date") || strings.Contains(fieldPath, "expiration_date")
	if isDateField {
		t, err := time.Parse("2006-01-02", newValue)
		if err != nil {
			return false, fmt.Errorf("parse corrected date %q: %w", newValue, err)
		}
		parsed = &t
	}
	updated := false
	for _, grant := range grants {
		switch {
		case strings.Contains(fieldPath, "effective_date"):
			if err := g.store.UpdateGrantDates(ctx, grant.ID, parsed, grant.ExpirationDate); err != nil {
				return updated, err
			}
			updated = true
		case strings.Contains(fieldPath, "expiration_date"):
			if err := g.store.UpdateGrantDates(ctx, grant.ID, grant.EffectiveDate, parsed); err != nil {
				return updated, err
			}
			updated = true
		}
	}
	return updated, nil
}

// findAffected composes §4.6's predicates across document type, effective
// date range, entity-name overlap, and metadata-path existence, capped at
// findAffectedCap results. The store has no generic WHERE builder, so
// documents are loaded in ScanBatchSize-ish pages and filtered in Go;
// acceptable for a rule-management path that runs far less often than the
// ingestion hot path.
func (g *Guardian) findAffected(ctx context.Context, criteria models.MatchCriteria) ([]*models.Document, error) {
	var matchingEntityIDs map[string]bool
	if criteria.EntityNameLike != "" {
		entities, err := g.store.FindEntitiesLike(ctx, criteria.EntityNameLike)
		if err != nil {
			return nil, err
		}
		matchingEntityIDs = make(map[string]bool, len(entities))
		for _, e := range entities {
			matchingEntityIDs[e.ID] = true
		}
	}

	var out []*models.Document
	const pageSize = 500
	for offset := 0; len(out) < findAffectedCap; offset += pageSize {
		page, err := g.store.ListDocuments(ctx, offset, pageSize)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		for _, doc := range page {
			match, err := g.matches(ctx, doc, criteria, matchingEntityIDs)
			if err != nil {
				return nil, err
			}
			if match {
				out = append(out, doc)
				if len(out) >= findAffectedCap {
					break
				}
			}
		}
		if len(page) < pageSize {
			break
		}
	}
	return out, nil
}

func (g *Guardian) matches(ctx context.Context, doc *models.Document, criteria models.MatchCriteria, matchingEntityIDs map[string]bool) (bool, error) {
	if criteria.DocType != "" && doc.DocType != criteria.DocType {
		return false, nil
	}
	if criteria.DateFrom != nil && (doc.EffectiveDate == nil || doc.EffectiveDate.Before(*criteria.DateFrom)) {
		return false, nil
	}
	if criteria.DateTo != nil && (doc.EffectiveDate == nil || doc.EffectiveDate.After(*criteria.DateTo)) {
		return false, nil
	}
	if matchingEntityIDs != nil {
		links, err := g.store.LinksForDocument(ctx, doc.ID)
		if err != nil {
			return false, err
		}
		found := false
		for _, l := range links {
			if matchingEntityIDs[l.EntityID] {
				found = true
				break
			}
		}
		if !found {
			return false, nil
		}
	}
	if criteria.FieldPath != "" && criteria.RequireFieldPathExists {
		exists, err := pathExists(doc.Metadata, criteria.FieldPath)
		if err != nil {
			return false, err
		}
		if !exists {
			return false, nil
		}
	}
	return true, nil
}
