package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"child-health-history/internal/domain/medications"
	"child-health-history/internal/dosing"
)

type MedicationsRepo struct {
	db *sql.DB
}

func NewMedicationsRepo(db *sql.DB) *MedicationsRepo {
	return &MedicationsRepo{db: db}
}

func (r *MedicationsRepo) Create(ctx context.Context, m medications.Medication) error {
	enc, err := encodeRule(m.Rule)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO medications (
			id, child_id,
			name, dose, dose_unit,
			rule_kind, rule_times, rule_every_minutes, rule_window_start, rule_window_end,
			start_date, end_date, schedule_days, notes,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`,
		m.ID,
		m.ChildID,
		m.Name,
		m.Dose,
		m.DoseUnit,
		enc.kind,
		enc.times,
		enc.everyMinutes,
		enc.windowStart,
		enc.windowEnd,
		m.StartDate.Time(),
		toNullDosingDate(m.EndDate),
		m.ScheduleDays,
		m.Notes,
		m.CreatedAt,
		m.UpdatedAt,
	)
	return err
}

func (r *MedicationsRepo) Update(ctx context.Context, m medications.Medication) error {
	enc, err := encodeRule(m.Rule)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE medications
		SET
			name = $2,
			dose = $3,
			dose_unit = $4,
			rule_kind = $5,
			rule_times = $6,
			rule_every_minutes = $7,
			rule_window_start = $8,
			rule_window_end = $9,
			start_date = $10,
			end_date = $11,
			schedule_days = $12,
			notes = $13,
			updated_at = $14
		WHERE id = $1
	`,
		m.ID,
		m.Name,
		m.Dose,
		m.DoseUnit,
		enc.kind,
		enc.times,
		enc.everyMinutes,
		enc.windowStart,
		enc.windowEnd,
		m.StartDate.Time(),
		toNullDosingDate(m.EndDate),
		m.ScheduleDays,
		m.Notes,
		m.UpdatedAt,
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

func (r *MedicationsRepo) GetByID(ctx context.Context, id string) (medications.Medication, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return medications.Medication{}, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT
			id, child_id,
			name, dose, dose_unit,
			rule_kind, rule_times, rule_every_minutes, rule_window_start, rule_window_end,
			start_date, end_date, schedule_days, notes,
			created_at, updated_at
		FROM medications
		WHERE id = $1
	`, id)

	return scanMedication(row)
}

func (r *MedicationsRepo) ListByChild(ctx context.Context, childID string) ([]medications.Medication, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT
			id, child_id,
			name, dose, dose_unit,
			rule_kind, rule_times, rule_every_minutes, rule_window_start, rule_window_end,
			start_date, end_date, schedule_days, notes,
			created_at, updated_at
		FROM medications
		WHERE child_id = $1
		ORDER BY created_at ASC
	`, childID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]medications.Medication, 0)
	for rows.Next() {
		m, err := scanMedication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *MedicationsRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM medications WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// encodedRule es la regla aplanada a columnas. Preferimos columnas planas a
// JSON: quedan consultables y el esquema documenta los dos kinds.
type encodedRule struct {
	kind         string
	times        sql.NullString // "08:00,20:00" para explicit
	everyMinutes sql.NullInt32
	windowStart  sql.NullString
	windowEnd    sql.NullString
}

func encodeRule(rule dosing.Rule) (encodedRule, error) {
	switch v := rule.(type) {
	case dosing.Explicit:
		parts := make([]string, 0, len(v.Times))
		for _, t := range v.Times {
			parts = append(parts, t.String())
		}
		return encodedRule{
			kind:  "explicit",
			times: toNullString(strings.Join(parts, ",")),
		}, nil
	case dosing.Interval:
		return encodedRule{
			kind:         "interval",
			everyMinutes: sql.NullInt32{Int32: int32(v.EveryMinutes), Valid: true},
			windowStart:  toNullString(v.WindowStart.String()),
			windowEnd:    toNullString(v.WindowEnd.String()),
		}, nil
	default:
		return encodedRule{}, fmt.Errorf("unknown rule type %T", rule)
	}
}

func decodeRule(enc encodedRule) (dosing.Rule, error) {
	switch enc.kind {
	case "explicit":
		raw := strings.Split(enc.times.String, ",")
		times := make([]dosing.ClockTime, 0, len(raw))
		for _, s := range raw {
			t, err := dosing.ParseClockTime(strings.TrimSpace(s))
			if err != nil {
				return nil, fmt.Errorf("corrupt rule_times %q: %w", enc.times.String, err)
			}
			times = append(times, t)
		}
		return dosing.Explicit{Times: times}, nil
	case "interval":
		start, err := dosing.ParseClockTime(enc.windowStart.String)
		if err != nil {
			return nil, fmt.Errorf("corrupt rule_window_start: %w", err)
		}
		end, err := dosing.ParseClockTime(enc.windowEnd.String)
		if err != nil {
			return nil, fmt.Errorf("corrupt rule_window_end: %w", err)
		}
		return dosing.Interval{
			EveryMinutes: int(enc.everyMinutes.Int32),
			WindowStart:  start,
			WindowEnd:    end,
		}, nil
	default:
		return nil, fmt.Errorf("unknown rule_kind %q", enc.kind)
	}
}

func scanMedication(row rowScanner) (medications.Medication, error) {
	var m medications.Medication
	var enc encodedRule
	var start sql.NullTime
	var end sql.NullTime

	if err := row.Scan(
		&m.ID,
		&m.ChildID,
		&m.Name,
		&m.Dose,
		&m.DoseUnit,
		&enc.kind,
		&enc.times,
		&enc.everyMinutes,
		&enc.windowStart,
		&enc.windowEnd,
		&start,
		&end,
		&m.ScheduleDays,
		&m.Notes,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return medications.Medication{}, ErrNotFound
		}
		return medications.Medication{}, err
	}

	rule, err := decodeRule(enc)
	if err != nil {
		return medications.Medication{}, err
	}
	m.Rule = rule

	if start.Valid {
		m.StartDate = dosing.DateOf(start.Time)
	}
	if end.Valid {
		d := dosing.DateOf(end.Time)
		m.EndDate = &d
	}

	return m, nil
}

func toNullDosingDate(d *dosing.Date) sql.NullTime {
	if d == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: d.Time(), Valid: true}
}
