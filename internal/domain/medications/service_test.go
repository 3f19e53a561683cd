package medications

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"child-health-history/internal/dosing"
)

// -------------------------
// Test repo (in-memory)
// -------------------------

var errRepoNotFound = errors.New("repo: not found")

type testRepo struct {
	byID map[string]Medication
}

func newTestRepo() *testRepo {
	return &testRepo{byID: map[string]Medication{}}
}

func (r *testRepo) Create(ctx context.Context, m Medication) error {
	if m.ID == "" {
		return errors.New("repo: id required")
	}
	if _, ok := r.byID[m.ID]; ok {
		return errors.New("repo: already exists")
	}
	r.byID[m.ID] = m
	return nil
}

func (r *testRepo) Update(ctx context.Context, m Medication) error {
	if _, ok := r.byID[m.ID]; !ok {
		return errRepoNotFound
	}
	r.byID[m.ID] = m
	return nil
}

func (r *testRepo) GetByID(ctx context.Context, id string) (Medication, error) {
	m, ok := r.byID[id]
	if !ok {
		return Medication{}, errRepoNotFound
	}
	return m, nil
}

func (r *testRepo) ListByChild(ctx context.Context, childID string) ([]Medication, error) {
	out := make([]Medication, 0)
	for _, m := range r.byID {
		if m.ChildID == childID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *testRepo) Delete(ctx context.Context, id string) error {
	if _, ok := r.byID[id]; !ok {
		return errRepoNotFound
	}
	delete(r.byID, id)
	return nil
}

// -------------------------
// Helpers
// -------------------------

func ct(t *testing.T, s string) dosing.ClockTime {
	t.Helper()
	v, err := dosing.ParseClockTime(s)
	if err != nil {
		t.Fatalf("ParseClockTime(%q): %v", s, err)
	}
	return v
}

func date(t *testing.T, s string) dosing.Date {
	t.Helper()
	d, err := dosing.ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", s, err)
	}
	return d
}

func validInput(t *testing.T) CreateInput {
	t.Helper()
	return CreateInput{
		Name:      "Amoxicilina",
		Dose:      5,
		DoseUnit:  "ml",
		Rule:      dosing.Explicit{Times: []dosing.ClockTime{ct(t, "08:00"), ct(t, "20:00")}},
		StartDate: date(t, "2026-04-01"),
	}
}

// -------------------------
// Tests
// -------------------------

func TestService_Create_DefaultsScheduleDays(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo)

	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	m, err := svc.Create(context.Background(), "child-1", validInput(t))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if m.ScheduleDays != defaultScheduleDays {
		t.Fatalf("expected default schedule_days %d, got %d", defaultScheduleDays, m.ScheduleDays)
	}
	if m.CreatedAt != now || m.UpdatedAt != now {
		t.Fatalf("expected timestamps pinned to now")
	}
}

func TestService_Create_RejectsBrokenRule(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo)

	in := validInput(t)
	in.Rule = dosing.Interval{EveryMinutes: 30, WindowStart: ct(t, "10:00"), WindowEnd: ct(t, "09:00")}

	_, err := svc.Create(context.Background(), "child-1", in)
	if !errors.Is(err, dosing.ErrInvalidRule) {
		t.Fatalf("expected ErrInvalidRule, got %v", err)
	}
	if len(repo.byID) != 0 {
		t.Fatalf("broken rule must not be persisted")
	}
}

func TestService_Create_RejectsScheduleDaysOutOfBounds(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo)

	in := validInput(t)
	in.ScheduleDays = 61

	if _, err := svc.Create(context.Background(), "child-1", in); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for schedule_days 61, got %v", err)
	}
}

func TestService_Create_RejectsEndBeforeStart(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo)

	in := validInput(t)
	end := date(t, "2026-03-01")
	in.EndDate = &end

	if _, err := svc.Create(context.Background(), "child-1", in); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestService_Create_RejectsNonPositiveDose(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo)

	in := validInput(t)
	in.Dose = 0

	if _, err := svc.Create(context.Background(), "child-1", in); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for dose 0, got %v", err)
	}
}

func TestService_Update_PatchSemantics(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo)

	m, err := svc.Create(context.Background(), "child-1", validInput(t))
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	newDose := 7.5
	updated, err := svc.Update(context.Background(), m.ID, UpdateInput{Dose: &newDose})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if updated.Dose != 7.5 {
		t.Fatalf("expected dose 7.5, got %v", updated.Dose)
	}
	// Lo no enviado queda igual
	if updated.Name != m.Name || updated.DoseUnit != m.DoseUnit {
		t.Fatalf("untouched fields must not change")
	}
}

func TestService_Update_EndDateNullReopensTreatment(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo)

	in := validInput(t)
	end := date(t, "2026-04-10")
	in.EndDate = &end

	m, err := svc.Create(context.Background(), "child-1", in)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	updated, err := svc.Update(context.Background(), m.ID, UpdateInput{
		EndDate: PatchEndDate{Present: true, Value: nil},
	})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if updated.EndDate != nil {
		t.Fatalf("expected open-ended treatment after end_date null")
	}
}

func TestService_Update_RejectsBrokenRule(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo)

	m, err := svc.Create(context.Background(), "child-1", validInput(t))
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	_, err = svc.Update(context.Background(), m.ID, UpdateInput{
		Rule: dosing.Explicit{},
	})
	if !errors.Is(err, dosing.ErrInvalidRule) {
		t.Fatalf("expected ErrInvalidRule, got %v", err)
	}
}

func TestService_ProjectSchedule_ClampsToTreatment(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo)

	in := validInput(t)
	in.ScheduleDays = 5 // 2026-04-01 .. 2026-04-05

	m, err := svc.Create(context.Background(), "child-1", in)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	_, occ, err := svc.ProjectSchedule(context.Background(), m.ID, date(t, "2026-03-01"), date(t, "2026-04-30"))
	if err != nil {
		t.Fatalf("ProjectSchedule error: %v", err)
	}
	// 5 días x 2 tomas
	if len(occ) != 10 {
		t.Fatalf("expected 10 occurrences, got %d", len(occ))
	}
	if occ[0].Date != date(t, "2026-04-01") || occ[len(occ)-1].Date != date(t, "2026-04-05") {
		t.Fatalf("expected occurrences clamped to treatment window, got %v .. %v", occ[0].Date, occ[len(occ)-1].Date)
	}
}

func TestService_ProjectSchedule_InvalidRange(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo)

	m, err := svc.Create(context.Background(), "child-1", validInput(t))
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	_, _, err = svc.ProjectSchedule(context.Background(), m.ID, date(t, "2026-04-10"), date(t, "2026-04-01"))
	if !errors.Is(err, dosing.ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}

func TestService_StatusAt_Classifies(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo)

	m, err := svc.Create(context.Background(), "child-1", validInput(t))
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	_, st, err := svc.StatusAt(context.Background(), m.ID, date(t, "2026-04-02"), ct(t, "12:00"))
	if err != nil {
		t.Fatalf("StatusAt error: %v", err)
	}
	if !st.Active {
		t.Fatalf("expected treatment active on 2026-04-02")
	}
	if st.Status.LastTaken == nil || *st.Status.LastTaken != ct(t, "08:00") {
		t.Fatalf("expected last taken 08:00, got %v", st.Status.LastTaken)
	}
	if st.Status.NextDue == nil || *st.Status.NextDue != ct(t, "20:00") {
		t.Fatalf("expected next due 20:00, got %v", st.Status.NextDue)
	}
}

func TestService_StatusAt_InactiveOutsideTreatment(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo)

	in := validInput(t)
	end := date(t, "2026-04-03")
	in.EndDate = &end

	m, err := svc.Create(context.Background(), "child-1", in)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	_, st, err := svc.StatusAt(context.Background(), m.ID, date(t, "2026-04-10"), ct(t, "12:00"))
	if err != nil {
		t.Fatalf("StatusAt error: %v", err)
	}
	if st.Active {
		t.Fatalf("expected treatment inactive after end_date")
	}
}

func TestService_Delete_ThenGone(t *testing.T) {
	repo := newTestRepo()
	svc := NewService(repo)

	m, err := svc.Create(context.Background(), "child-1", validInput(t))
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if err := svc.Delete(context.Background(), m.ID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := svc.GetByID(context.Background(), m.ID); err == nil {
		t.Fatalf("expected error fetching deleted medication")
	}
}
