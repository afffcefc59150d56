package store

import (
	"context"
	"time"

	"github.com/chittyos/evidence-core/internal/apperr"
	"github.com/chittyos/evidence-core/internal/models"
)

// AppendLog writes one ProcessingLog entry. The log is append-only: callers
// never update or delete a row.
func (s *Store) AppendLog(ctx context.Context, l *models.ProcessingLog) error {
	if l.RecordedAt.IsZero() {
		l.RecordedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO processing_log (document_id, workflow_instance_id, step, status, attempt, error, recorded_at)
		VALUES (?,?,?,?,?,?,?)`,
		l.DocumentID, l.WorkflowInstanceID, string(l.Step), string(l.Status), l.Attempt, l.Error, l.RecordedAt,
	)
	if err != nil {
		return apperr.Wrap(apperr.KindPersistence, "append processing log", err)
	}
	id, err := res.LastInsertId()
	if err == nil {
		l.ID = id
	}
	return nil
}

// LogForInstance returns every entry recorded for a workflow instance, in
// recording order.
func (s *Store) LogForInstance(ctx context.Context, workflowInstanceID string) ([]*models.ProcessingLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, workflow_instance_id, step, status, attempt, error, recorded_at
		FROM processing_log WHERE workflow_instance_id = ? ORDER BY id`, workflowInstanceID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "log for instance", err)
	}
	defer rows.Close()
	var out []*models.ProcessingLog
	for rows.Next() {
		var l models.ProcessingLog
		var step, status string
		if err := rows.Scan(&l.ID, &l.DocumentID, &l.WorkflowInstanceID, &step, &status, &l.Attempt, &l.Error, &l.RecordedAt); err != nil {
			return nil, apperr.Wrap(apperr.KindPersistence, "scan processing log", err)
		}
		l.Step = models.StepName(step)
		l.Status = models.LogStatus(status)
		out = append(out, &l)
	}
	return out, rows.Err()
}

// LogForDocument returns every entry recorded for a document across all
// of its workflow instances (a document only ever has one unless it was
// resubmitted after a crash), in recording order.
func (s *Store) LogForDocument(ctx context.Context, documentID string) ([]*models.ProcessingLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, workflow_instance_id, step, status, attempt, error, recorded_at
		FROM processing_log WHERE document_id = ? ORDER BY id`, documentID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "log for document", err)
	}
	defer rows.Close()
	var out []*models.ProcessingLog
	for rows.Next() {
		var l models.ProcessingLog
		var step, status string
		if err := rows.Scan(&l.ID, &l.DocumentID, &l.WorkflowInstanceID, &step, &status, &l.Attempt, &l.Error, &l.RecordedAt); err != nil {
			return nil, apperr.Wrap(apperr.KindPersistence, "scan processing log", err)
		}
		l.Step = models.StepName(step)
		l.Status = models.LogStatus(status)
		out = append(out, &l)
	}
	return out, rows.Err()
}

// ResumePoint folds over a workflow instance's log and returns the first
// step in OrderedSteps that has no succeeded entry, along with the attempt
// number to resume at (the count of prior attempts at that step, whatever
// their outcome, plus one). If every step has succeeded, it returns
// ("", 0, true) to signal the workflow is already complete.
func (s *Store) ResumePoint(ctx context.Context, workflowInstanceID string) (step models.StepName, attempt int, done bool, err error) {
	entries, err := s.LogForInstance(ctx, workflowInstanceID)
	if err != nil {
		return "", 0, false, err
	}
	succeeded := make(map[models.StepName]bool)
	attempts := make(map[models.StepName]int)
	for _, e := range entries {
		attempts[e.Step]++
		if e.Status == models.LogStatusSucceeded {
			succeeded[e.Step] = true
		}
	}
	for _, st := range models.OrderedSteps {
		if !succeeded[st] {
			return st, attempts[st] + 1, false, nil
		}
	}
	return "", 0, true, nil
}
