package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/chittyos/evidence-core/internal/apperr"
	"github.com/chittyos/evidence-core/internal/models"
)

// UpsertKnowledgeGap inserts a new KnowledgeGap or, if one with the same
// fingerprint already exists, bumps its occurrence_count and
// last_seen_at (§4.2 step 3's dedup-by-fingerprint contract). Returns the
// gap's final id.
func (s *Store) UpsertKnowledgeGap(ctx context.Context, g *models.KnowledgeGap) (string, error) {
	now := time.Now().UTC()
	existing, err := s.GapByFingerprint(ctx, g.Fingerprint)
	if err != nil {
		return "", err
	}
	if existing != nil {
		_, err := s.db.ExecContext(ctx, `
			UPDATE knowledge_gaps SET occurrence_count = occurrence_count + 1, last_seen_at = ? WHERE id = ?`,
			now, existing.ID)
		if err != nil {
			return "", apperr.Wrap(apperr.KindPersistence, "bump gap occurrence", err)
		}
		return existing.ID, nil
	}
	if g.FirstSeenAt.IsZero() {
		g.FirstSeenAt = now
	}
	g.LastSeenAt = now
	if g.OccurrenceCount == 0 {
		g.OccurrenceCount = 1
	}
	if g.Status == "" {
		g.Status = models.GapStatusOpen
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO knowledge_gaps (
			id, type, fingerprint, partial_value, context_clues, resolution_hints,
			confidence_threshold, occurrence_count, status, resolved_value,
			resolution_source_doc, first_seen_at, last_seen_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		g.ID, string(g.Type), g.Fingerprint, g.PartialValue, g.ContextClues, g.ResolutionHints,
		g.ConfidenceThreshold, g.OccurrenceCount, string(g.Status), g.ResolvedValue,
		g.ResolutionSourceDocID, g.FirstSeenAt, g.LastSeenAt,
	)
	if err != nil {
		return "", apperr.Wrap(apperr.KindPersistence, "insert knowledge gap", err)
	}
	return g.ID, nil
}

// GapByFingerprint returns the gap with the given fingerprint, or nil.
func (s *Store) GapByFingerprint(ctx context.Context, fingerprint string) (*models.KnowledgeGap, error) {
	row := s.db.QueryRowContext(ctx, gapSelectCols+` FROM knowledge_gaps WHERE fingerprint = ?`, fingerprint)
	g, err := scanGap(row)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, nil
		}
		return nil, err
	}
	return g, nil
}

// GetGap fetches a KnowledgeGap by id.
func (s *Store) GetGap(ctx context.Context, id string) (*models.KnowledgeGap, error) {
	row := s.db.QueryRowContext(ctx, gapSelectCols+` FROM knowledge_gaps WHERE id = ?`, id)
	return scanGap(row)
}

// ListGaps returns gaps filtered by status, or every gap if status is "".
func (s *Store) ListGaps(ctx context.Context, status models.GapStatus, offset, limit int) ([]*models.KnowledgeGap, error) {
	query := gapSelectCols + ` FROM knowledge_gaps`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY occurrence_count DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "list gaps", err)
	}
	defer rows.Close()
	var out []*models.KnowledgeGap
	for rows.Next() {
		g, err := scanGap(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// SetGapStatus transitions a gap's status, optionally recording its
// resolved value and source document.
func (s *Store) SetGapStatus(ctx context.Context, id string, status models.GapStatus, resolvedValue, sourceDoc string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE knowledge_gaps SET status = ?, resolved_value = ?, resolution_source_doc = ? WHERE id = ?`,
		string(status), resolvedValue, sourceDoc, id)
	if err != nil {
		return apperr.Wrap(apperr.KindPersistence, "set gap status", err)
	}
	return checkRowsAffected(res, "knowledge_gap", id)
}

// AppendGapOccurrence records (or replaces) one sighting of a gap inside a
// document at a specific field path.
func (s *Store) AppendGapOccurrence(ctx context.Context, o *models.GapOccurrence) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO gap_occurrences (
			gap_id, document_id, field_path, page, bounding_box, surrounding_text,
			local_context, extraction_confidence, placeholder_value
		) VALUES (?,?,?,?,?,?,?,?,?)
		ON CONFLICT(gap_id, document_id, field_path) DO UPDATE SET
			page=excluded.page, bounding_box=excluded.bounding_box,
			surrounding_text=excluded.surrounding_text, local_context=excluded.local_context,
			extraction_confidence=excluded.extraction_confidence, placeholder_value=excluded.placeholder_value`,
		o.GapID, o.DocumentID, o.FieldPath, o.Page, o.BoundingBox, o.SurroundingText,
		o.LocalContext, o.ExtractionConfidence, o.PlaceholderValue,
	)
	if err != nil {
		return apperr.Wrap(apperr.KindPersistence, "append gap occurrence", err)
	}
	return nil
}

// OccurrencesForGap returns every occurrence recorded for a gap, used to
// locate every document that needs back-propagation on resolution.
func (s *Store) OccurrencesForGap(ctx context.Context, gapID string) ([]*models.GapOccurrence, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT gap_id, document_id, field_path, page, bounding_box, surrounding_text,
			local_context, extraction_confidence, placeholder_value
		FROM gap_occurrences WHERE gap_id = ?`, gapID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "occurrences for gap", err)
	}
	defer rows.Close()
	var out []*models.GapOccurrence
	for rows.Next() {
		var o models.GapOccurrence
		if err := rows.Scan(&o.GapID, &o.DocumentID, &o.FieldPath, &o.Page, &o.BoundingBox, &o.SurroundingText,
			&o.LocalContext, &o.ExtractionConfidence, &o.PlaceholderValue); err != nil {
			return nil, apperr.Wrap(apperr.KindPersistence, "scan gap occurrence", err)
		}
		out = append(out, &o)
	}
	return out, rows.Err()
}

// AddGapCandidate records a proposed resolution for a gap.
func (s *Store) AddGapCandidate(ctx context.Context, c *models.GapCandidate) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.Status == "" {
		c.Status = models.GapCandidateProposed
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO gap_candidates (
			id, gap_id, proposed_value, source_type, source_document, confidence,
			confirmations, rejections, status, created_at
		) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		c.ID, c.GapID, c.ProposedValue, string(c.SourceType), c.SourceDocument, c.Confidence,
		c.Confirmations, c.Rejections, string(c.Status), c.CreatedAt,
	)
	if err != nil {
		return apperr.Wrap(apperr.KindPersistence, "insert gap candidate", err)
	}
	return nil
}

// CandidatesForGap returns every proposed candidate for a gap, ordered by
// confidence then confirmation count.
func (s *Store) CandidatesForGap(ctx context.Context, gapID string) ([]*models.GapCandidate, error) {
	rows, err := s.db.QueryContext(ctx, gapCandidateSelectCols+`
		FROM gap_candidates WHERE gap_id = ? ORDER BY confidence DESC, confirmations DESC`, gapID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "candidates for gap", err)
	}
	defer rows.Close()
	var out []*models.GapCandidate
	for rows.Next() {
		c, err := scanGapCandidate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateCandidateVote adjusts a candidate's confirmation/rejection tally.
func (s *Store) UpdateCandidateVote(ctx context.Context, id string, confirm bool) error {
	col := "rejections"
	if confirm {
		col = "confirmations"
	}
	res, err := s.db.ExecContext(ctx, `UPDATE gap_candidates SET `+col+` = `+col+` + 1 WHERE id = ?`, id)
	if err != nil {
		return apperr.Wrap(apperr.KindPersistence, "update candidate vote", err)
	}
	return checkRowsAffected(res, "gap_candidate", id)
}

// SetCandidateStatus transitions a candidate's review status.
func (s *Store) SetCandidateStatus(ctx context.Context, id string, status models.GapCandidateStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE gap_candidates SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return apperr.Wrap(apperr.KindPersistence, "set candidate status", err)
	}
	return checkRowsAffected(res, "gap_candidate", id)
}

const gapSelectCols = `SELECT
	id, type, fingerprint, partial_value, context_clues, resolution_hints,
	confidence_threshold, occurrence_count, status, resolved_value,
	resolution_source_doc, first_seen_at, last_seen_at`

func scanGap(row rowScanner) (*models.KnowledgeGap, error) {
	var g models.KnowledgeGap
	var typ, status string
	if err := row.Scan(&g.ID, &typ, &g.Fingerprint, &g.PartialValue, &g.ContextClues, &g.ResolutionHints,
		&g.ConfidenceThreshold, &g.OccurrenceCount, &status, &g.ResolvedValue,
		&g.ResolutionSourceDocID, &g.FirstSeenAt, &g.LastSeenAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("knowledge_gap", "")
		}
		return nil, apperr.Wrap(apperr.KindPersistence, "scan knowledge gap", err)
	}
	g.Type = models.GapType(typ)
	g.Status = models.GapStatus(status)
	return &g, nil
}

const gapCandidateSelectCols = `SELECT
	id, gap_id, proposed_value, source_type, source_document, confidence,
	confirmations, rejections, status, created_at`

func scanGapCandidate(row rowScanner) (*models.GapCandidate, error) {
	var c models.GapCandidate
	var sourceType, status string
	if err := row.Scan(&c.ID, &c.GapID, &c.ProposedValue, &sourceType, &c.SourceDocument, &c.Confidence,
		&c.Confirmations, &c.Rejections, &status, &c.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("gap_candidate", "")
		}
		return nil, apperr.Wrap(apperr.KindPersistence, "scan gap candidate", err)
	}
	c.SourceType = models.GapCandidateSourceType(sourceType)
	c.Status = models.GapCandidateStatus(status)
	return &c, nil
}
