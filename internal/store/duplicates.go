package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/chittyos/evidence-core/internal/apperr"
	"github.com/chittyos/evidence-core/internal/models"
)

// UpsertDuplicateCandidate inserts a pending DuplicateCandidate for the
// ordered pair, or updates the score/method if a pending row already
// exists for that pair (the Duplicate Hunter may re-detect the same pair
// via a stronger signal on a later scan).
func (s *Store) UpsertDuplicateCandidate(ctx context.Context, c *models.DuplicateCandidate) error {
	a, b := models.OrderedPair(c.DocumentID, c.CandidateDocumentID)
	c.DocumentID, c.CandidateDocumentID = a, b
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.Status == "" {
		c.Status = models.DuplicateStatusPending
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO duplicate_candidates (
			document_id, candidate_document_id, method, similarity_score, confidence,
			status, auto_resolved, created_at
		) VALUES (?,?,?,?,?,?,?,?)
		ON CONFLICT(document_id, candidate_document_id) DO UPDATE SET
			method=excluded.method, similarity_score=excluded.similarity_score,
			confidence=excluded.confidence
		WHERE duplicate_candidates.status = 'pending'`,
		c.DocumentID, c.CandidateDocumentID, string(c.Method), c.SimilarityScore, string(c.Confidence),
		string(c.Status), boolToInt(c.AutoResolved), c.CreatedAt,
	)
	if err != nil {
		return apperr.Wrap(apperr.KindPersistence, "upsert duplicate candidate", err)
	}
	return nil
}

// GetDuplicateCandidate fetches the candidate for an ordered pair.
func (s *Store) GetDuplicateCandidate(ctx context.Context, docA, docB string) (*models.DuplicateCandidate, error) {
	a, b := models.OrderedPair(docA, docB)
	row := s.db.QueryRowContext(ctx, duplicateSelectCols+` FROM duplicate_candidates WHERE document_id = ? AND candidate_document_id = ?`, a, b)
	c, err := scanDuplicate(row)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// ListDuplicateCandidates returns candidates filtered by status, newest
// first, for the review queue surface.
func (s *Store) ListDuplicateCandidates(ctx context.Context, status models.DuplicateStatus, offset, limit int) ([]*models.DuplicateCandidate, error) {
	query := duplicateSelectCols + ` FROM duplicate_candidates`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "list duplicate candidates", err)
	}
	defer rows.Close()
	var out []*models.DuplicateCandidate
	for rows.Next() {
		c, err := scanDuplicate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetDuplicateStatus transitions a candidate's status (confirmed_duplicate,
// merged, or not_duplicate), optionally flagging it as auto-resolved.
func (s *Store) SetDuplicateStatus(ctx context.Context, docA, docB string, status models.DuplicateStatus, autoResolved bool) error {
	a, b := models.OrderedPair(docA, docB)
	res, err := s.db.ExecContext(ctx, `
		UPDATE duplicate_candidates SET status = ?, auto_resolved = ? WHERE document_id = ? AND candidate_document_id = ?`,
		string(status), boolToInt(autoResolved), a, b)
	if err != nil {
		return apperr.Wrap(apperr.KindPersistence, "set duplicate status", err)
	}
	return checkRowsAffected(res, "duplicate_candidate", a+"/"+b)
}

// ScanState returns the Duplicate Hunter's incremental-scan watermark.
func (s *Store) ScanState(ctx context.Context) (lastScannedDocID string, lastScannedAt *time.Time, err error) {
	var at sql.NullTime
	row := s.db.QueryRowContext(ctx, `SELECT last_scanned_document_id, last_scanned_at FROM duplicate_hunter_scan_state WHERE id = 1`)
	if err := row.Scan(&lastScannedDocID, &at); err != nil {
		return "", nil, apperr.Wrap(apperr.KindPersistence, "read scan state", err)
	}
	return lastScannedDocID, fromNullTime(at), nil
}

// UpdateScanState advances the incremental-scan watermark.
func (s *Store) UpdateScanState(ctx context.Context, lastScannedDocID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE duplicate_hunter_scan_state SET last_scanned_document_id = ?, last_scanned_at = ? WHERE id = 1`,
		lastScannedDocID, time.Now().UTC())
	if err != nil {
		return apperr.Wrap(apperr.KindPersistence, "update scan state", err)
	}
	return nil
}

const duplicateSelectCols = `SELECT
	document_id, candidate_document_id, method, similarity_score, confidence,
	status, auto_resolved, created_at`

func scanDuplicate(row rowScanner) (*models.DuplicateCandidate, error) {
	var c models.DuplicateCandidate
	var method, confidence, status string
	var autoResolved int
	if err := row.Scan(&c.DocumentID, &c.CandidateDocumentID, &method, &c.SimilarityScore, &confidence,
		&status, &autoResolved, &c.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("duplicate_candidate", "")
		}
		return nil, apperr.Wrap(apperr.KindPersistence, "scan duplicate candidate", err)
	}
	c.Method = models.DuplicateMethod(method)
	c.Confidence = models.ConfidenceBucket(confidence)
	c.Status = models.DuplicateStatus(status)
	c.AutoResolved = autoResolved != 0
	return &c, nil
}
