package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/chittyos/evidence-core/internal/apperr"
	"github.com/chittyos/evidence-core/internal/models"
)

// CreateEntity inserts a new Entity.
func (s *Store) CreateEntity(ctx context.Context, e *models.Entity) error {
	identifiers, err := marshalJSON(e.Identifiers)
	if err != nil {
		return fmt.Errorf("marshal identifiers: %w", err)
	}
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entities (id, kind, name, normalized_name, identifiers, merged_into, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		e.ID, string(e.Kind), e.Name, e.NormalizedName, identifiers, e.MergedInto, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return apperr.Wrap(apperr.KindPersistence, "insert entity", err)
	}
	return nil
}

// GetEntity fetches an Entity by id.
func (s *Store) GetEntity(ctx context.Context, id string) (*models.Entity, error) {
	row := s.db.QueryRowContext(ctx, entitySelectCols+` FROM entities WHERE id = ?`, id)
	return scanEntity(row)
}

// FindEntityByNormalizedName looks up entities whose normalized_name
// matches exactly, used by entity resolution's case-insensitive lookup
// (§4.2 step 4). Merged entities (merged_into set) are excluded.
func (s *Store) FindEntityByNormalizedName(ctx context.Context, normalized string) ([]*models.Entity, error) {
	rows, err := s.db.QueryContext(ctx, entitySelectCols+` FROM entities WHERE normalized_name = ? AND merged_into = '' ORDER BY created_at`, normalized)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "find entity by name", err)
	}
	defer rows.Close()
	var out []*models.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// FindEntitiesLike performs a substring search over normalized_name for
// the Accuracy Guardian's findAffected entity-name LIKE predicate.
func (s *Store) FindEntitiesLike(ctx context.Context, substr string) ([]*models.Entity, error) {
	rows, err := s.db.QueryContext(ctx, entitySelectCols+` FROM entities WHERE normalized_name LIKE ? AND merged_into = ''`, "%"+substr+"%")
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "find entities like", err)
	}
	defer rows.Close()
	var out []*models.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// LinkEntity creates (or replaces) a Document<->Entity link.
func (s *Store) LinkEntity(ctx context.Context, link *models.DocumentEntityLink) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO document_entity_links (document_id, entity_id, role, confidence)
		VALUES (?,?,?,?)
		ON CONFLICT(document_id, entity_id, role) DO UPDATE SET confidence=excluded.confidence`,
		link.DocumentID, link.EntityID, link.Role, link.Confidence,
	)
	if err != nil {
		return apperr.Wrap(apperr.KindPersistence, "link entity", err)
	}
	return nil
}

// LinksForDocument returns every entity link for a document.
func (s *Store) LinksForDocument(ctx context.Context, documentID string) ([]*models.DocumentEntityLink, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT document_id, entity_id, role, confidence FROM document_entity_links WHERE document_id = ?`, documentID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "links for document", err)
	}
	defer rows.Close()
	var out []*models.DocumentEntityLink
	for rows.Next() {
		var l models.DocumentEntityLink
		if err := rows.Scan(&l.DocumentID, &l.EntityID, &l.Role, &l.Confidence); err != nil {
			return nil, apperr.Wrap(apperr.KindPersistence, "scan link", err)
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}

// MergeEntities rewrites every reference to loserID onto winnerID in a
// single transaction, then marks the loser merged (§4.4, §8's
// entity-merge-closure invariant).
func (s *Store) MergeEntities(ctx context.Context, winnerID, loserID string) error {
	if winnerID == loserID {
		return apperr.Validation("cannot merge an entity into itself")
	}
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE OR REPLACE document_entity_links SET entity_id = ? WHERE entity_id = ?`, winnerID, loserID); err != nil {
			return apperr.Wrap(apperr.KindEntityMergeConflict, "rewrite document links", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE authority_grants SET grantor_entity_id = ? WHERE grantor_entity_id = ?`, winnerID, loserID); err != nil {
			return apperr.Wrap(apperr.KindEntityMergeConflict, "rewrite grantor refs", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE authority_grants SET grantee_entity_id = ? WHERE grantee_entity_id = ?`, winnerID, loserID); err != nil {
			return apperr.Wrap(apperr.KindEntityMergeConflict, "rewrite grantee refs", err)
		}
		res, err := tx.ExecContext(ctx, `UPDATE entities SET merged_into = ?, updated_at = ? WHERE id = ?`, winnerID, time.Now().UTC(), loserID)
		if err != nil {
			return apperr.Wrap(apperr.KindEntityMergeConflict, "mark entity merged", err)
		}
		return checkRowsAffected(res, "entity", loserID)
	})
}

// RenameEntity updates an entity's name and normalized_name, used by
// correction propagation (§4.6) when a field path touches entities/parties.
func (s *Store) RenameEntity(ctx context.Context, id, newName string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE entities SET name = ?, normalized_name = ?, updated_at = ? WHERE id = ?`,
		newName, models.NormalizeName(newName), time.Now().UTC(), id)
	if err != nil {
		return apperr.Wrap(apperr.KindPersistence, "rename entity", err)
	}
	return checkRowsAffected(res, "entity", id)
}

const entitySelectCols = `SELECT id, kind, name, normalized_name, identifiers, merged_into, created_at, updated_at`

func scanEntity(row rowScanner) (*models.Entity, error) {
	var e models.Entity
	var kind, identifiers string
	if err := row.Scan(&e.ID, &kind, &e.Name, &e.NormalizedName, &identifiers, &e.MergedInto, &e.CreatedAt, &e.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("entity", "")
		}
		return nil, apperr.Wrap(apperr.KindPersistence, "scan entity", err)
	}
	e.Kind = models.EntityKind(kind)
	if identifiers != "" {
		if err := unmarshalJSON(identifiers, &e.Identifiers); err != nil {
			return nil, apperr.Wrap(apperr.KindPersistence, "unmarshal identifiers", err)
		}
	}
	return &e, nil
}
