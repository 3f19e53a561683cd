package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"child-health-history/internal/domain/records"
)

type RecordsRepo struct {
	db *sql.DB
}

func NewRecordsRepo(db *sql.DB) *RecordsRepo {
	return &RecordsRepo{db: db}
}

func (r *RecordsRepo) Create(ctx context.Context, rec records.Record) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO records (
			id, child_id,
			type, title, notes,
			due_at, applied_at, value, unit,
			status, created_by,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`,
		rec.ID,
		rec.ChildID,
		string(rec.Type),
		rec.Title,
		rec.Notes,
		toNullDate(rec.DueAt),
		toNullDate(rec.AppliedAt),
		rec.Value,
		rec.Unit,
		string(rec.Status),
		rec.CreatedBy,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	return err
}

func (r *RecordsRepo) Update(ctx context.Context, rec records.Record) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE records
		SET
			type = $2,
			title = $3,
			notes = $4,
			due_at = $5,
			applied_at = $6,
			value = $7,
			unit = $8,
			status = $9,
			updated_at = $10
		WHERE id = $1
	`,
		rec.ID,
		string(rec.Type),
		rec.Title,
		rec.Notes,
		toNullDate(rec.DueAt),
		toNullDate(rec.AppliedAt),
		rec.Value,
		rec.Unit,
		string(rec.Status),
		rec.UpdatedAt,
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

func (r *RecordsRepo) GetByID(ctx context.Context, id string) (records.Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return records.Record{}, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT
			id, child_id,
			type, title, notes,
			due_at, applied_at, value, unit,
			status, created_by,
			created_at, updated_at
		FROM records
		WHERE id = $1
	`, id)

	return scanRecord(row)
}

func (r *RecordsRepo) ListByChild(ctx context.Context, childID string, f records.ListFilter) ([]records.Record, error) {
	// WHERE dinámico según filtros presentes.
	query := strings.Builder{}
	query.WriteString(`
		SELECT
			id, child_id,
			type, title, notes,
			due_at, applied_at, value, unit,
			status, created_by,
			created_at, updated_at
		FROM records
		WHERE child_id = $1
	`)

	args := []any{childID}
	if f.Type != "" {
		args = append(args, string(f.Type))
		query.WriteString(fmt.Sprintf(" AND type = $%d", len(args)))
	}
	if f.From != nil {
		args = append(args, *f.From)
		query.WriteString(fmt.Sprintf(" AND due_at >= $%d", len(args)))
	}
	if f.To != nil {
		args = append(args, *f.To)
		query.WriteString(fmt.Sprintf(" AND due_at <= $%d", len(args)))
	}

	query.WriteString(" ORDER BY created_at ASC")
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	}

	rows, err := r.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]records.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecord(row rowScanner) (records.Record, error) {
	var rec records.Record
	var typ, status string
	var dueAt, appliedAt sql.NullTime

	if err := row.Scan(
		&rec.ID,
		&rec.ChildID,
		&typ,
		&rec.Title,
		&rec.Notes,
		&dueAt,
		&appliedAt,
		&rec.Value,
		&rec.Unit,
		&status,
		&rec.CreatedBy,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return records.Record{}, ErrNotFound
		}
		return records.Record{}, err
	}

	rec.Type = records.RecordType(typ)
	rec.Status = records.RecordStatus(status)
	if dueAt.Valid {
		t := dueAt.Time
		rec.DueAt = &t
	}
	if appliedAt.Valid {
		t := appliedAt.Time
		rec.AppliedAt = &t
	}
	return rec, nil
}
