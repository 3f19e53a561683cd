package records

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"
)

// -------------------------
// Test repo (in-memory)
// -------------------------

var errRepoNotFound = errors.New("repo: not found")

type testRepo struct {
	byID map[string]Record
}

func newTestRepo() *testRepo {
	return &testRepo{byID: map[string]Record{}}
}

func (r *testRepo) Create(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		return errors.New("repo: id required")
	}
	if _, ok := r.byID[rec.ID]; ok {
		return errors.New("repo: already exists")
	}
	r.byID[rec.ID] = rec
	return nil
}

func (r *testRepo) Update(ctx context.Context, rec Record) error {
	if _, ok := r.byID[rec.ID]; !ok {
		return errRepoNotFound
	}
	r.byID[rec.ID] = rec
	return nil
}

func (r *testRepo) GetByID(ctx context.Context, id string) (Record, error) {
	rec, ok := r.byID[id]
	if !ok {
		return Record{}, errRepoNotFound
	}
	return rec, nil
}

func (r *testRepo) ListByChild(ctx context.Context, childID string, f ListFilter) ([]Record, error) {
	out := make([]Record, 0)
	for _, rec := range r.byID {
		if rec.ChildID != childID {
			continue
		}
		if f.Type != "" && rec.Type != f.Type {
			continue
		}
		if f.From != nil && (rec.DueAt == nil || rec.DueAt.Before(*f.From)) {
			continue
		}
		if f.To != nil && (rec.DueAt == nil || rec.DueAt.After(*f.To)) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// -------------------------
// Tests
// -------------------------

func TestService_Create_StartsPending(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo)

	now := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	rec, err := svc.Create(context.Background(), "child-1", "caregiver-1", CreateInput{
		Type:  TypeVaccine,
		Title: "Pentavalente 2da dosis",
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if rec.Status != StatusPending {
		t.Fatalf("expected pending, got %s", rec.Status)
	}
	if rec.CreatedBy != "caregiver-1" {
		t.Fatalf("expected CreatedBy caregiver-1, got %s", rec.CreatedBy)
	}
	if rec.CreatedAt != now || rec.UpdatedAt != now {
		t.Fatalf("expected timestamps pinned to now")
	}
}

func TestService_Create_RejectsUnknownType(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo)

	_, err := svc.Create(context.Background(), "child-1", "caregiver-1", CreateInput{
		Type:  RecordType("SURGERY"),
		Title: "x",
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestService_Create_MeasurementRequiresValue(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo)

	_, err := svc.Create(context.Background(), "child-1", "caregiver-1", CreateInput{
		Type:  TypeMeasurement,
		Title: "Peso",
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for measurement without value, got %v", err)
	}

	rec, err := svc.Create(context.Background(), "child-1", "caregiver-1", CreateInput{
		Type:  TypeMeasurement,
		Title: "Peso",
		Value: "9.8",
		Unit:  "kg",
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if rec.Value != "9.8" || rec.Unit != "kg" {
		t.Fatalf("expected value/unit persisted, got %q %q", rec.Value, rec.Unit)
	}
}

func TestService_SetStatus_AppliedStampsDate(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo)

	now := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	rec, err := svc.Create(context.Background(), "child-1", "caregiver-1", CreateInput{
		Type:  TypeVaccine,
		Title: "Antigripal",
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	applied, err := svc.SetStatus(context.Background(), rec.ID, StatusApplied, nil)
	if err != nil {
		t.Fatalf("SetStatus error: %v", err)
	}
	if applied.Status != StatusApplied {
		t.Fatalf("expected applied, got %s", applied.Status)
	}
	if applied.AppliedAt == nil || !applied.AppliedAt.Equal(now) {
		t.Fatalf("expected AppliedAt defaulted to now, got %v", applied.AppliedAt)
	}
}

func TestService_SetStatus_ExplicitAppliedAtWins(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo)

	rec, err := svc.Create(context.Background(), "child-1", "caregiver-1", CreateInput{
		Type:  TypeVaccine,
		Title: "Antigripal",
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	when := time.Date(2026, 4, 28, 15, 30, 0, 0, time.UTC)
	applied, err := svc.SetStatus(context.Background(), rec.ID, StatusApplied, &when)
	if err != nil {
		t.Fatalf("SetStatus error: %v", err)
	}
	if applied.AppliedAt == nil || !applied.AppliedAt.Equal(when) {
		t.Fatalf("expected explicit AppliedAt, got %v", applied.AppliedAt)
	}
}

func TestService_SetStatus_BackToPendingClearsAppliedAt(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo)

	rec, err := svc.Create(context.Background(), "child-1", "caregiver-1", CreateInput{
		Type:  TypeVaccine,
		Title: "Antigripal",
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if _, err := svc.SetStatus(context.Background(), rec.ID, StatusApplied, nil); err != nil {
		t.Fatalf("SetStatus applied error: %v", err)
	}
	back, err := svc.SetStatus(context.Background(), rec.ID, StatusPending, nil)
	if err != nil {
		t.Fatalf("SetStatus pending error: %v", err)
	}
	if back.Status != StatusPending || back.AppliedAt != nil {
		t.Fatalf("expected pending with AppliedAt cleared, got %s %v", back.Status, back.AppliedAt)
	}
}

func TestService_SetStatus_RejectsUnknown(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo)

	rec, err := svc.Create(context.Background(), "child-1", "caregiver-1", CreateInput{
		Type:  TypeNote,
		Title: "Nota",
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if _, err := svc.SetStatus(context.Background(), rec.ID, RecordStatus("done"), nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestService_ListByChild_FiltersByType(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo)

	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	mk := func(typ RecordType, title string) {
		t.Helper()
		in := CreateInput{Type: typ, Title: title}
		if typ == TypeMeasurement {
			in.Value = "74"
			in.Unit = "cm"
		}
		if _, err := svc.Create(context.Background(), "child-1", "caregiver-1", in); err != nil {
			t.Fatalf("Create(%s) error: %v", title, err)
		}
	}
	mk(TypeVaccine, "Pentavalente")
	mk(TypeMeasurement, "Talla")
	mk(TypeVaccine, "Antigripal")

	out, err := svc.ListByChild(context.Background(), "child-1", ListFilter{Type: TypeVaccine})
	if err != nil {
		t.Fatalf("ListByChild error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 vaccines, got %d", len(out))
	}

	if _, err := svc.ListByChild(context.Background(), "child-1", ListFilter{Type: RecordType("bad")}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown type filter, got %v", err)
	}
}

func TestService_ListByChild_RejectsInvertedRange(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo)

	from := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	to := from.Add(-24 * time.Hour)

	_, err := svc.ListByChild(context.Background(), "child-1", ListFilter{From: &from, To: &to})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
