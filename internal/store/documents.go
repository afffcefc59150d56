package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/chittyos/evidence-core/internal/apperr"
	"github.com/chittyos/evidence-core/internal/models"
)

// CreateDocument inserts a new Document row in pending status.
func (s *Store) CreateDocument(ctx context.Context, doc *models.Document) error {
	extracted, err := marshalJSON(doc.ExtractedData)
	if err != nil {
		return fmt.Errorf("marshal extracted data: %w", err)
	}
	metadata, err := marshalJSON(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	now := time.Now().UTC()
	if doc.SubmittedAt.IsZero() {
		doc.SubmittedAt = now
	}
	doc.UpdatedAt = now
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (
			id, content_hash, blob_key, source_filename, mime_type, size_bytes,
			doc_type, title, content, extracted_data, status, last_failed_step,
			last_error, perceptual_hash, supersedes, superseded_by, effective_date,
			metadata, submitted_at, updated_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		doc.ID, doc.ContentHash, doc.BlobKey, doc.SourceFilename, doc.MimeType, doc.SizeBytes,
		string(doc.DocType), doc.Title, doc.Content, extracted, string(doc.Status), doc.LastFailedStep,
		doc.LastError, doc.PerceptualHash, doc.Supersedes, doc.SupersededBy, nullTime(doc.EffectiveDate),
		metadata, doc.SubmittedAt, doc.UpdatedAt,
	)
	if err != nil {
		return apperr.Wrap(apperr.KindPersistence, "insert document", err)
	}
	return nil
}

// GetDocument fetches a Document by id.
func (s *Store) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx, documentSelectCols+` FROM documents WHERE id = ?`, id)
	return scanDocument(row)
}

// GetDocumentByContentHash looks up a Document by its SHA-256 content
// hash, used by the Ingestion Gateway's hash-idempotence check.
func (s *Store) GetDocumentByContentHash(ctx context.Context, hash string) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx, documentSelectCols+` FROM documents WHERE content_hash = ?`, hash)
	doc, err := scanDocument(row)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, nil
		}
		return nil, err
	}
	return doc, nil
}

// UpdateDocument persists the full current state of doc.
func (s *Store) UpdateDocument(ctx context.Context, doc *models.Document) error {
	extracted, err := marshalJSON(doc.ExtractedData)
	if err != nil {
		return fmt.Errorf("marshal extracted data: %w", err)
	}
	metadata, err := marshalJSON(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	doc.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET
			doc_type=?, title=?, content=?, extracted_data=?, status=?, last_failed_step=?,
			last_error=?, perceptual_hash=?, supersedes=?, superseded_by=?, effective_date=?,
			metadata=?, updated_at=?
		WHERE id=?`,
		string(doc.DocType), doc.Title, doc.Content, extracted, string(doc.Status), doc.LastFailedStep,
		doc.LastError, doc.PerceptualHash, doc.Supersedes, doc.SupersededBy, nullTime(doc.EffectiveDate),
		metadata, doc.UpdatedAt, doc.ID,
	)
	if err != nil {
		return apperr.Wrap(apperr.KindPersistence, "update document", err)
	}
	return checkRowsAffected(res, "document", doc.ID)
}

// ListDocuments returns up to limit documents starting at offset, ordered
// by submission time.
func (s *Store) ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx, documentSelectCols+` FROM documents ORDER BY submitted_at LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "list documents", err)
	}
	defer rows.Close()
	var docs []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// ListDocumentsAfter returns up to limit documents with id > afterID,
// ordered by id, for the Duplicate Hunter's incremental scan.
func (s *Store) ListDocumentsAfter(ctx context.Context, afterID string, limit int) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx, documentSelectCols+` FROM documents WHERE id > ? ORDER BY id LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "list documents after", err)
	}
	defer rows.Close()
	var docs []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// MergeDocuments supersedes loserID with winnerID in a single transaction:
// the loser's entity links and authority grants are rewritten onto the
// winner, the loser is marked superseded and superseded_by winner, and
// the winner's supersedes is set to loser (§4.5). The loser's blob and
// content row are retained for audit; only status and the supersession
// pointers change.
func (s *Store) MergeDocuments(ctx context.Context, winnerID, loserID string) error {
	if winnerID == loserID {
		return apperr.Validation("cannot merge a document into itself")
	}
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE OR REPLACE document_entity_links SET document_id = ? WHERE document_id = ?`, winnerID, loserID); err != nil {
			return apperr.Wrap(apperr.KindEntityMergeConflict, "rewrite document links", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE authority_grants SET document_id = ? WHERE document_id = ?`, winnerID, loserID); err != nil {
			return apperr.Wrap(apperr.KindEntityMergeConflict, "rewrite grant document refs", err)
		}
		now := time.Now().UTC()
		res, err := tx.ExecContext(ctx, `
			UPDATE documents SET status = ?, superseded_by = ?, updated_at = ? WHERE id = ?`,
			string(models.DocumentStatusSuperseded), winnerID, now, loserID)
		if err != nil {
			return apperr.Wrap(apperr.KindEntityMergeConflict, "mark document superseded", err)
		}
		if err := checkRowsAffected(res, "document", loserID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE documents SET supersedes = ?, updated_at = ? WHERE id = ?`, loserID, now, winnerID); err != nil {
			return apperr.Wrap(apperr.KindEntityMergeConflict, "set winner supersedes", err)
		}
		return nil
	})
}

const documentSelectCols = `SELECT
	id, content_hash, blob_key, source_filename, mime_type, size_bytes,
	doc_type, title, content, extracted_data, status, last_failed_step,
	last_error, perceptual_hash, supersedes, superseded_by, effective_date,
	metadata, submitted_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var doc models.Document
	var docType, status, extracted, metadata string
	var effectiveDate sql.NullTime
	if err := row.Scan(
		&doc.ID, &doc.ContentHash, &doc.BlobKey, &doc.SourceFilename, &doc.MimeType, &doc.SizeBytes,
		&docType, &doc.Title, &doc.Content, &extracted, &status, &doc.LastFailedStep,
		&doc.LastError, &doc.PerceptualHash, &doc.Supersedes, &doc.SupersededBy, &effectiveDate,
		&metadata, &doc.SubmittedAt, &doc.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("document", "")
		}
		return nil, apperr.Wrap(apperr.KindPersistence, "scan document", err)
	}
	doc.DocType = models.DocumentType(docType)
	doc.Status = models.DocumentStatus(status)
	doc.EffectiveDate = fromNullTime(effectiveDate)
	if extracted != "" {
		var ed models.ExtractedData
		if err := unmarshalJSON(extracted, &ed); err != nil {
			return nil, apperr.Wrap(apperr.KindPersistence, "unmarshal extracted_data", err)
		}
		doc.ExtractedData = &ed
	}
	if metadata != "" {
		if err := unmarshalJSON(metadata, &doc.Metadata); err != nil {
			return nil, apperr.Wrap(apperr.KindPersistence, "unmarshal metadata", err)
		}
	}
	return &doc, nil
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Wrap(apperr.KindPersistence, "rows affected", err)
	}
	if n == 0 {
		return apperr.NotFound(resource, id)
	}
	return nil
}
