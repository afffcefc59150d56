package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/chittyos/evidence-core/internal/apperr"
	"github.com/chittyos/evidence-core/internal/models"
)

// InsertGrant inserts a new AuthorityGrant.
func (s *Store) InsertGrant(ctx context.Context, g *models.AuthorityGrant) error {
	scope, err := marshalJSON(g.Scope)
	if err != nil {
		return fmt.Errorf("marshal scope: %w", err)
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO authority_grants (
			id, document_id, grantor_entity_id, grantee_entity_id, type, scope,
			effective_date, expiration_date, is_active, revoked_by, created_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		g.ID, g.DocumentID, g.GrantorID, g.GranteeID, g.Type, scope,
		nullTime(g.EffectiveDate), nullTime(g.ExpirationDate), boolToInt(g.IsActive), g.RevokedBy, g.CreatedAt,
	)
	if err != nil {
		return apperr.Wrap(apperr.KindPersistence, "insert grant", err)
	}
	return nil
}

// ActiveGrant returns the single active grant for a (grantor, grantee,
// type) triple, or nil if none (the §8 single-active-grant invariant
// guarantees at most one row).
func (s *Store) ActiveGrant(ctx context.Context, grantorID, granteeID, grantType string) (*models.AuthorityGrant, error) {
	row := s.db.QueryRowContext(ctx, grantSelectCols+`
		FROM authority_grants WHERE grantor_entity_id = ? AND grantee_entity_id = ? AND type = ? AND is_active = 1`,
		grantorID, granteeID, grantType)
	g, err := scanGrant(row)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, nil
		}
		return nil, err
	}
	return g, nil
}

// DeactivateGrant marks a grant inactive and records its supersessor.
func (s *Store) DeactivateGrant(ctx context.Context, id, revokedByGrantID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE authority_grants SET is_active = 0, revoked_by = ? WHERE id = ?`, revokedByGrantID, id)
	if err != nil {
		return apperr.Wrap(apperr.KindGrantSupersession, "deactivate grant", err)
	}
	return checkRowsAffected(res, "authority_grant", id)
}

// UpdateGrantDates updates effective/expiration dates on a grant, used by
// correction propagation.
func (s *Store) UpdateGrantDates(ctx context.Context, id string, effective, expiration *time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE authority_grants SET effective_date = ?, expiration_date = ? WHERE id = ?`,
		nullTime(effective), nullTime(expiration), id)
	if err != nil {
		return apperr.Wrap(apperr.KindPersistence, "update grant dates", err)
	}
	return checkRowsAffected(res, "authority_grant", id)
}

// GrantsForEntity returns grants for correction propagation lookups.
func (s *Store) GrantsForEntity(ctx context.Context, entityID string) ([]*models.AuthorityGrant, error) {
	rows, err := s.db.QueryContext(ctx, grantSelectCols+` FROM authority_grants WHERE grantor_entity_id = ? OR grantee_entity_id = ?`, entityID, entityID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "grants for entity", err)
	}
	defer rows.Close()
	var out []*models.AuthorityGrant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// GrantsForDocument returns grants created by a specific document, used
// by the Accuracy Guardian's authority propagation and the document
// detail handler.
func (s *Store) GrantsForDocument(ctx context.Context, documentID string) ([]*models.AuthorityGrant, error) {
	rows, err := s.db.QueryContext(ctx, grantSelectCols+` FROM authority_grants WHERE document_id = ?`, documentID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "grants for document", err)
	}
	defer rows.Close()
	var out []*models.AuthorityGrant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// activeGrantsAsOf loads every active grant valid at asOf (or all active
// grants if asOf is nil) for the authorityPath breadth-first search.
func (s *Store) activeGrantsAsOf(ctx context.Context, asOf *time.Time) ([]*models.AuthorityGrant, error) {
	rows, err := s.db.QueryContext(ctx, grantSelectCols+` FROM authority_grants WHERE is_active = 1`)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, "load active grants", err)
	}
	defer rows.Close()
	var out []*models.AuthorityGrant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		if asOf != nil {
			if g.EffectiveDate != nil && g.EffectiveDate.After(*asOf) {
				continue
			}
			if g.ExpirationDate != nil && g.ExpirationDate.Before(*asOf) {
				continue
			}
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// AuthorityPath performs a bounded breadth-first search over active
// grants valid at asOf, returning the shortest grant chain from
// fromEntity to toEntity, or nil if none exists (§4.4).
func (s *Store) AuthorityPath(ctx context.Context, fromEntity, toEntity string, asOf *time.Time) ([]*models.GrantChainLink, error) {
	grants, err := s.activeGrantsAsOf(ctx, asOf)
	if err != nil {
		return nil, err
	}
	if fromEntity == toEntity {
		return nil, nil
	}
	byGrantor := make(map[string][]*models.AuthorityGrant)
	for _, g := range grants {
		byGrantor[g.GrantorID] = append(byGrantor[g.GrantorID], g)
	}

	type frame struct {
		entityID string
		path     []*models.GrantChainLink
	}
	const maxDepth = 32
	visited := map[string]bool{fromEntity: true}
	queue := []frame{{entityID: fromEntity}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if len(cur.path) > maxDepth {
			continue
		}
		for _, g := range byGrantor[cur.entityID] {
			if visited[g.GranteeID] {
				continue
			}
			nextPath := append(append([]*models.GrantChainLink{}, cur.path...), &models.GrantChainLink{
				Grant: g, FromID: g.GrantorID, ToID: g.GranteeID,
			})
			if g.GranteeID == toEntity {
				return nextPath, nil
			}
			visited[g.GranteeID] = true
			queue = append(queue, frame{entityID: g.GranteeID, path: nextPath})
		}
	}
	return nil, nil
}

const grantSelectCols = `SELECT
	id, document_id, grantor_entity_id, grantee_entity_id, type, scope,
	effective_date, expiration_date, is_active, revoked_by, created_at`

func scanGrant(row rowScanner) (*models.AuthorityGrant, error) {
	var g models.AuthorityGrant
	var scope string
	var effective, expiration sql.NullTime
	var isActive int
	if err := row.Scan(&g.ID, &g.DocumentID, &g.GrantorID, &g.GranteeID, &g.Type, &scope,
		&effective, &expiration, &isActive, &g.RevokedBy, &g.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("authority_grant", "")
		}
		return nil, apperr.Wrap(apperr.KindPersistence, "scan grant", err)
	}
	g.IsActive = isActive != 0
	g.EffectiveDate = fromNullTime(effective)
	g.ExpirationDate = fromNullTime(expiration)
	if scope != "" {
		if err := unmarshalJSON(scope, &g.Scope); err != nil {
			return nil, apperr.Wrap(apperr.KindPersistence, "unmarshal scope", err)
		}
	}
	return &g, nil
}
