package postgres

import (
	"context"
	"database/sql"
	"strings"

	"child-health-history/internal/domain/children"
)

type ChildrenRepo struct {
	db *sql.DB
}

func NewChildrenRepo(db *sql.DB) *ChildrenRepo {
	return &ChildrenRepo{db: db}
}

func (r *ChildrenRepo) Create(ctx context.Context, c children.Child) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO children (
			id, caregiver_user_id,
			name, sex, birth_date, blood_type, allergies, notes,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		c.ID,
		c.CaregiverUserID,
		c.Name,
		string(c.Sex),
		toNullDate(c.BirthDate),
		string(c.BloodType),
		c.Allergies,
		c.Notes,
		c.CreatedAt,
		c.UpdatedAt,
	)
	return err
}

func (r *ChildrenRepo) Update(ctx context.Context, c children.Child) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE children
		SET
			name = $2,
			sex = $3,
			birth_date = $4,
			blood_type = $5,
			allergies = $6,
			notes = $7,
			updated_at = $8
		WHERE id = $1
	`,
		c.ID,
		c.Name,
		string(c.Sex),
		toNullDate(c.BirthDate),
		string(c.BloodType),
		c.Allergies,
		c.Notes,
		c.UpdatedAt,
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

func (r *ChildrenRepo) GetByID(ctx context.Context, id string) (children.Child, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return children.Child{}, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT
			id, caregiver_user_id,
			name, sex, birth_date, blood_type, allergies, notes,
			created_at, updated_at
		FROM children
		WHERE id = $1
	`, id)

	return scanChild(row)
}

func (r *ChildrenRepo) ListByCaregiver(ctx context.Context, caregiverUserID string) ([]children.Child, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT
			id, caregiver_user_id,
			name, sex, birth_date, blood_type, allergies, notes,
			created_at, updated_at
		FROM children
		WHERE caregiver_user_id = $1
		ORDER BY created_at ASC
	`, caregiverUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]children.Child, 0)
	for rows.Next() {
		c, err := scanChild(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChild(row rowScanner) (children.Child, error) {
	var c children.Child
	var sex, bloodType string
	var bd sql.NullTime

	if err := row.Scan(
		&c.ID,
		&c.CaregiverUserID,
		&c.Name,
		&sex,
		&bd,
		&bloodType,
		&c.Allergies,
		&c.Notes,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return children.Child{}, ErrNotFound
		}
		return children.Child{}, err
	}

	c.Sex = children.Sex(sex)
	c.BloodType = children.BloodType(bloodType)
	if bd.Valid {
		t := bd.Time
		c.BirthDate = &t
	}
	return c, nil
}
