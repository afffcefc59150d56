package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/chittyos/evidence-core/internal/apperr"
	"github.com/chittyos/evidence-core/internal/models"
)

// EnqueueReview inserts a ReviewQueueItem pointing at a source row.
func (s *Store) EnqueueReview(ctx context.Context, item *models.ReviewQueueItem) error {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	if item.Status == "" {
		item.Status = models.ReviewItemPending
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO review_queue_items (id, type, source_table, source_id, priority, status, resolution, created_at, resolved_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		item.ID, string(item.Type), item.SourceTable, item.SourceID, item.Priority, string(item.Status),
		item.Resolution, item.CreatedAt, nullTime(item.ResolvedAt),
	)
	if err != nil {
		return apperr.Wrap(apperr.KindPersistence, "enqueue review item", err)
	}
	return nil
}

// ListReviewQueue returns review items filtered by status, highest
// priority first.
func (s *Store) ListReviewQueue(ctx context.Context, status models.ReviewQueueItemStatus, limit int) ([]*models.ReviewQueueItem, error) {
	query := reviewSelectCols + ` FROM review_queue_items`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY priority DESC, created_at LIMIT ?`
	args = append(args, limit)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "list review queue", err)
	}
	defer rows.Close()
	var out []*models.ReviewQueueItem
	for rows.Next() {
		item, err := scanReviewItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// ResolveReviewItem marks a review item resolved or dismissed.
func (s *Store) ResolveReviewItem(ctx context.Context, id string, status models.ReviewQueueItemStatus, resolution string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE review_queue_items SET status = ?, resolution = ?, resolved_at = ? WHERE id = ?`,
		string(status), resolution, time.Now().UTC(), id)
	if err != nil {
		return apperr.Wrap(apperr.KindPersistence, "resolve review item", err)
	}
	return checkRowsAffected(res, "review_queue_item", id)
}

const reviewSelectCols = `SELECT id, type, source_table, source_id, priority, status, resolution, created_at, resolved_at`

func scanReviewItem(row rowScanner) (*models.ReviewQueueItem, error) {
	var item models.ReviewQueueItem
	var typ, status string
	var resolvedAt sql.NullTime
	if err := row.Scan(&item.ID, &typ, &item.SourceTable, &item.SourceID, &item.Priority, &status,
		&item.Resolution, &item.CreatedAt, &resolvedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("review_queue_item", "")
		}
		return nil, apperr.Wrap(apperr.KindPersistence, "scan review item", err)
	}
	item.Type = models.ReviewQueueItemType(typ)
	item.Status = models.ReviewQueueItemStatus(status)
	item.ResolvedAt = fromNullTime(resolvedAt)
	return &item, nil
}
