package postgres

import (
	"context"
	"database/sql"
	"strings"

	"child-health-history/internal/domain/accessgrants"
)

type AccessGrantsRepo struct {
	db *sql.DB
}

func NewAccessGrantsRepo(db *sql.DB) *AccessGrantsRepo {
	return &AccessGrantsRepo{db: db}
}

func (r *AccessGrantsRepo) Create(ctx context.Context, g accessgrants.Grant) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO access_grants (
			id, child_id, owner_user_id, grantee_user_id,
			scopes, status,
			created_at, updated_at, revoked_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		g.ID,
		g.ChildID,
		g.OwnerUserID,
		g.GranteeUserID,
		joinScopes(g.Scopes),
		string(g.Status),
		g.CreatedAt,
		g.UpdatedAt,
		toNullDate(g.RevokedAt),
	)
	return err
}

func (r *AccessGrantsRepo) Update(ctx context.Context, g accessgrants.Grant) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE access_grants
		SET
			scopes = $2,
			status = $3,
			updated_at = $4,
			revoked_at = $5
		WHERE id = $1
	`,
		g.ID,
		joinScopes(g.Scopes),
		string(g.Status),
		g.UpdatedAt,
		toNullDate(g.RevokedAt),
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *AccessGrantsRepo) GetByID(ctx context.Context, id string) (accessgrants.Grant, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return accessgrants.Grant{}, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, grantSelect+` WHERE id = $1`, id)
	return scanGrant(row)
}

func (r *AccessGrantsRepo) ListByChild(ctx context.Context, childID string) ([]accessgrants.Grant, error) {
	rows, err := r.db.QueryContext(ctx, grantSelect+` WHERE child_id = $1 ORDER BY created_at ASC`, childID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectGrants(rows)
}

func (r *AccessGrantsRepo) GetActiveGrant(ctx context.Context, childID, granteeUserID string) (accessgrants.Grant, error) {
	row := r.db.QueryRowContext(ctx, grantSelect+`
		WHERE child_id = $1 AND grantee_user_id = $2 AND status = $3
		ORDER BY updated_at DESC
		LIMIT 1
	`, childID, granteeUserID, string(accessgrants.StatusActive))
	return scanGrant(row)
}

func (r *AccessGrantsRepo) ListByGrantee(ctx context.Context, granteeUserID string) ([]accessgrants.Grant, error) {
	rows, err := r.db.QueryContext(ctx, grantSelect+` WHERE grantee_user_id = $1 ORDER BY created_at ASC`, granteeUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectGrants(rows)
}

const grantSelect = `
	SELECT
		id, child_id, owner_user_id, grantee_user_id,
		scopes, status,
		created_at, updated_at, revoked_at
	FROM access_grants
`

func scanGrant(row rowScanner) (accessgrants.Grant, error) {
	var g accessgrants.Grant
	var scopes, status string
	var revokedAt sql.NullTime

	if err := row.Scan(
		&g.ID,
		&g.ChildID,
		&g.OwnerUserID,
		&g.GranteeUserID,
		&scopes,
		&status,
		&g.CreatedAt,
		&g.UpdatedAt,
		&revokedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return accessgrants.Grant{}, ErrNotFound
		}
		return accessgrants.Grant{}, err
	}

	g.Scopes = splitScopes(scopes)
	g.Status = accessgrants.Status(status)
	if revokedAt.Valid {
		t := revokedAt.Time
		g.RevokedAt = &t
	}
	return g, nil
}

func collectGrants(rows *sql.Rows) ([]accessgrants.Grant, error) {
	out := make([]accessgrants.Grant, 0)
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// scopes como TEXT coma-separado: simple y sin pelearse con arrays de pg.
func joinScopes(scopes []accessgrants.Scope) string {
	parts := make([]string, 0, len(scopes))
	for _, s := range scopes {
		parts = append(parts, string(s))
	}
	return strings.Join(parts, ",")
}

func splitScopes(raw string) []accessgrants.Scope {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]accessgrants.Scope, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, accessgrants.Scope(p))
	}
	return out
}
