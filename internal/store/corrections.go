package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/chittyos/evidence-core/internal/apperr"
	"github.com/chittyos/evidence-core/internal/models"
)

// CreateRule inserts a new CorrectionRule in draft status.
func (s *Store) CreateRule(ctx context.Context, r *models.CorrectionRule) error {
	criteria, err := marshalJSON(r.MatchCriteria)
	if err != nil {
		return fmt.Errorf("marshal match criteria: %w", err)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.Status == "" {
		r.Status = models.RuleStatusDraft
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO correction_rules (
			id, name, rule_type, match_criteria, correction_type, correction_value,
			requires_approval, status, queued_count, applied_count, failed_count, created_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		r.ID, r.Name, r.RuleType, criteria, string(r.CorrectionType), r.CorrectionValue,
		boolToInt(r.RequiresApproval), string(r.Status), r.QueuedCount, r.AppliedCount, r.FailedCount, r.CreatedAt,
	)
	if err != nil {
		return apperr.Wrap(apperr.KindPersistence, "insert correction rule", err)
	}
	return nil
}

// GetRule fetches a CorrectionRule by id.
func (s *Store) GetRule(ctx context.Context, id string) (*models.CorrectionRule, error) {
	row := s.db.QueryRowContext(ctx, ruleSelectCols+` FROM correction_rules WHERE id = ?`, id)
	return scanRule(row)
}

// ListRules returns rules filtered by status, or all rules if status is "".
func (s *Store) ListRules(ctx context.Context, status models.RuleStatus) ([]*models.CorrectionRule, error) {
	query := ruleSelectCols + ` FROM correction_rules`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "list rules", err)
	}
	defer rows.Close()
	var out []*models.CorrectionRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SetRuleStatus transitions a rule's lifecycle status (activate/pause/archive).
func (s *Store) SetRuleStatus(ctx context.Context, id string, status models.RuleStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE correction_rules SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return apperr.Wrap(apperr.KindPersistence, "set rule status", err)
	}
	return checkRowsAffected(res, "correction_rule", id)
}

// IncrementRuleCounts bumps a rule's queued/applied/failed tallies.
func (s *Store) IncrementRuleCounts(ctx context.Context, id string, queuedDelta, appliedDelta, failedDelta int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE correction_rules SET queued_count = queued_count + ?, applied_count = applied_count + ?, failed_count = failed_count + ?
		WHERE id = ?`, queuedDelta, appliedDelta, failedDelta, id)
	if err != nil {
		return apperr.Wrap(apperr.KindPersistence, "increment rule counts", err)
	}
	return checkRowsAffected(res, "correction_rule", id)
}

// EnqueueCorrection inserts a CorrectionQueueItem, ignoring duplicate
// (rule, document, field_path) tuples per the unique index.
func (s *Store) EnqueueCorrection(ctx context.Context, item *models.CorrectionQueueItem) (bool, error) {
	proposed, err := marshalJSON(item.ProposedValue)
	if err != nil {
		return false, fmt.Errorf("marshal proposed value: %w", err)
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	if item.Status == "" {
		item.Status = models.QueueItemPending
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO correction_queue_items (
			id, rule_id, document_id, field_path, current_value, proposed_value,
			confidence, status, rollback_value, reject_reason, created_at, applied_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(rule_id, document_id, field_path) DO NOTHING`,
		item.ID, item.RuleID, item.DocumentID, item.FieldPath, item.CurrentValue, proposed,
		item.Confidence, string(item.Status), item.RollbackValue, item.RejectReason, item.CreatedAt, nullTime(item.AppliedAt),
	)
	if err != nil {
		return false, apperr.Wrap(apperr.KindPersistence, "enqueue correction", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Wrap(apperr.KindPersistence, "rows affected", err)
	}
	return n > 0, nil
}

// GetQueueItem fetches a CorrectionQueueItem by id.
func (s *Store) GetQueueItem(ctx context.Context, id string) (*models.CorrectionQueueItem, error) {
	row := s.db.QueryRowContext(ctx, queueItemSelectCols+` FROM correction_queue_items WHERE id = ?`, id)
	return scanQueueItem(row)
}

// ListQueueItems returns queue items filtered by status and optionally by
// rule id.
func (s *Store) ListQueueItems(ctx context.Context, ruleID string, status models.CorrectionQueueItemStatus, limit int) ([]*models.CorrectionQueueItem, error) {
	query := queueItemSelectCols + ` FROM correction_queue_items WHERE 1=1`
	var args []any
	if ruleID != "" {
		query += ` AND rule_id = ?`
		args = append(args, ruleID)
	}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at LIMIT ?`
	args = append(args, limit)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "list queue items", err)
	}
	defer rows.Close()
	var out []*models.CorrectionQueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// SetQueueItemStatus transitions a queue item's status, recording a
// rejection reason or the applied_at timestamp as appropriate.
func (s *Store) SetQueueItemStatus(ctx context.Context, id string, status models.CorrectionQueueItemStatus, rejectReason string) error {
	var appliedAt sql.NullTime
	if status == models.QueueItemApplied {
		appliedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE correction_queue_items SET status = ?, reject_reason = ?, applied_at = COALESCE(?, applied_at) WHERE id = ?`,
		string(status), rejectReason, appliedAt, id)
	if err != nil {
		return apperr.Wrap(apperr.KindPersistence, "set queue item status", err)
	}
	return checkRowsAffected(res, "correction_queue_item", id)
}

// AppendAuditLog records an applied correction for rollback/audit.
func (s *Store) AppendAuditLog(ctx context.Context, e *models.CorrectionAuditLogEntry) error {
	if e.AppliedAt.IsZero() {
		e.AppliedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO correction_audit_log (id, queue_item_id, document_id, field_path, old_value, new_value, applied_at)
		VALUES (?,?,?,?,?,?,?)`,
		e.ID, e.QueueItemID, e.DocumentID, e.FieldPath, e.OldValue, e.NewValue, e.AppliedAt,
	)
	if err != nil {
		return apperr.Wrap(apperr.KindPersistence, "append audit log", err)
	}
	return nil
}

// AuditLogForDocument returns every applied correction for a document, for
// rollback and the document's change history.
func (s *Store) AuditLogForDocument(ctx context.Context, documentID string) ([]*models.CorrectionAuditLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, queue_item_id, document_id, field_path, old_value, new_value, applied_at
		FROM correction_audit_log WHERE document_id = ? ORDER BY applied_at DESC`, documentID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "audit log for document", err)
	}
	defer rows.Close()
	var out []*models.CorrectionAuditLogEntry
	for rows.Next() {
		var e models.CorrectionAuditLogEntry
		if err := rows.Scan(&e.ID, &e.QueueItemID, &e.DocumentID, &e.FieldPath, &e.OldValue, &e.NewValue, &e.AppliedAt); err != nil {
			return nil, apperr.Wrap(apperr.KindPersistence, "scan audit log entry", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

const ruleSelectCols = `SELECT
	id, name, rule_type, match_criteria, correction_type, correction_value,
	requires_approval, status, queued_count, applied_count, failed_count, created_at`

func scanRule(row rowScanner) (*models.CorrectionRule, error) {
	var r models.CorrectionRule
	var criteria, correctionType, status string
	var requiresApproval int
	if err := row.Scan(&r.ID, &r.Name, &r.RuleType, &criteria, &correctionType, &r.CorrectionValue,
		&requiresApproval, &status, &r.QueuedCount, &r.AppliedCount, &r.FailedCount, &r.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("correction_rule", "")
		}
		return nil, apperr.Wrap(apperr.KindPersistence, "scan correction rule", err)
	}
	r.CorrectionType = models.CorrectionType(correctionType)
	r.Status = models.RuleStatus(status)
	r.RequiresApproval = requiresApproval != 0
	if criteria != "" {
		if err := unmarshalJSON(criteria, &r.MatchCriteria); err != nil {
			return nil, apperr.Wrap(apperr.KindPersistence, "unmarshal match criteria", err)
		}
	}
	return &r, nil
}

const queueItemSelectCols = `SELECT
	id, rule_id, document_id, field_path, current_value, proposed_value,
	confidence, status, rollback_value, reject_reason, created_at, applied_at`

func scanQueueItem(row rowScanner) (*models.CorrectionQueueItem, error) {
	var item models.CorrectionQueueItem
	var proposed, status string
	var appliedAt sql.NullTime
	if err := row.Scan(&item.ID, &item.RuleID, &item.DocumentID, &item.FieldPath, &item.CurrentValue, &proposed,
		&item.Confidence, &status, &item.RollbackValue, &item.RejectReason, &item.CreatedAt, &appliedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("correction_queue_item", "")
		}
		return nil, apperr.Wrap(apperr.KindPersistence, "scan queue item", err)
	}
	item.Status = models.CorrectionQueueItemStatus(status)
	item.AppliedAt = fromNullTime(appliedAt)
	if proposed != "" {
		if err := unmarshalJSON(proposed, &item.ProposedValue); err != nil {
			return nil, apperr.Wrap(apperr.KindPersistence, "unmarshal proposed value", err)
		}
	}
	return &item, nil
}
