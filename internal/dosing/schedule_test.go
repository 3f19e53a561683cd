package dosing_test

import (
	"errors"
	"reflect"
	"testing"

	"child-health-history/internal/dosing"
)

func date(t *testing.T, s string) dosing.Date {
	t.Helper()
	d, err := dosing.ParseDate(s)
	if err != nil {
		t.Fatalf("parse date %q: %v", s, err)
	}
	return d
}

func datePtr(t *testing.T, s string) *dosing.Date {
	t.Helper()
	d := date(t, s)
	return &d
}

func TestProject_ClampsToScheduleDays(t *testing.T) {
	// Sin end_date: schedule_days acota la materialización.
	s := dosing.Schedule{
		Rule:         dosing.Explicit{Times: cts(t, "08:00", "20:00")},
		StartDate:    date(t, "2024-01-10"),
		EndDate:      nil,
		ScheduleDays: 5,
	}

	occ, err := dosing.Project(s, date(t, "2024-01-01"), date(t, "2024-01-31"))
	if err != nil {
		t.Fatalf("Project returned error: %v", err)
	}

	// 5 días x 2 slots
	if len(occ) != 10 {
		t.Fatalf("expected 10 occurrences, got %d", len(occ))
	}
	if occ[0].Date.String() != "2024-01-10" || occ[0].Slot.String() != "08:00" {
		t.Fatalf("unexpected first occurrence: %s %s", occ[0].Date, occ[0].Slot)
	}
	last := occ[len(occ)-1]
	if last.Date.String() != "2024-01-14" || last.Slot.String() != "20:00" {
		t.Fatalf("unexpected last occurrence: %s %s", last.Date, last.Slot)
	}

	// Orden fecha-mayor, slot-menor
	for i := 1; i < len(occ); i++ {
		prev, cur := occ[i-1], occ[i]
		if cur.Date.Before(prev.Date) {
			t.Fatalf("dates out of order at %d", i)
		}
		if cur.Date == prev.Date && cur.Slot <= prev.Slot {
			t.Fatalf("slots out of order at %d", i)
		}
	}
}

func TestProject_ExplicitEndDateWins(t *testing.T) {
	s := dosing.Schedule{
		Rule:         dosing.Explicit{Times: cts(t, "12:00")},
		StartDate:    date(t, "2024-03-01"),
		EndDate:      datePtr(t, "2024-03-03"),
		ScheduleDays: 60, // ignorado cuando hay end_date
	}

	occ, err := dosing.Project(s, date(t, "2024-02-01"), date(t, "2024-04-01"))
	if err != nil {
		t.Fatalf("Project returned error: %v", err)
	}
	if len(occ) != 3 {
		t.Fatalf("expected 3 occurrences, got %d", len(occ))
	}
}

func TestProject_DisjointRangeReturnsEmpty(t *testing.T) {
	s := dosing.Schedule{
		Rule:         dosing.Explicit{Times: cts(t, "08:00")},
		StartDate:    date(t, "2024-01-10"),
		ScheduleDays: 5,
	}

	// Antes del inicio
	occ, err := dosing.Project(s, date(t, "2024-01-01"), date(t, "2024-01-05"))
	if err != nil {
		t.Fatalf("Project returned error: %v", err)
	}
	if len(occ) != 0 {
		t.Fatalf("expected empty projection before start, got %d", len(occ))
	}

	// Después del fin efectivo
	occ, err = dosing.Project(s, date(t, "2024-02-01"), date(t, "2024-02-10"))
	if err != nil {
		t.Fatalf("Project returned error: %v", err)
	}
	if len(occ) != 0 {
		t.Fatalf("expected empty projection after effective end, got %d", len(occ))
	}
}

func TestProject_InvalidRange(t *testing.T) {
	s := dosing.Schedule{
		Rule:         dosing.Explicit{Times: cts(t, "08:00")},
		StartDate:    date(t, "2024-01-10"),
		ScheduleDays: 5,
	}

	_, err := dosing.Project(s, date(t, "2024-01-20"), date(t, "2024-01-10"))
	if !errors.Is(err, dosing.ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}

func TestProject_InvalidRulePropagates(t *testing.T) {
	s := dosing.Schedule{
		Rule: dosing.Interval{
			EveryMinutes: 30,
			WindowStart:  ct(t, "10:00"),
			WindowEnd:    ct(t, "09:00"),
		},
		StartDate:    date(t, "2024-01-10"),
		ScheduleDays: 5,
	}

	_, err := dosing.Project(s, date(t, "2024-01-10"), date(t, "2024-01-14"))
	if !errors.Is(err, dosing.ErrInvalidRule) {
		t.Fatalf("expected ErrInvalidRule, got %v", err)
	}
}

func TestProject_CeilingExceeded(t *testing.T) {
	// end_date lejanísimo + intervalo chico: el techo corta antes de alocar.
	s := dosing.Schedule{
		Rule: dosing.Interval{
			EveryMinutes: 1,
			WindowStart:  ct(t, "00:00"),
			WindowEnd:    ct(t, "23:59"),
		},
		StartDate: date(t, "2024-01-01"),
		EndDate:   datePtr(t, "2025-01-01"),
	}

	_, err := dosing.Project(s, date(t, "2024-01-01"), date(t, "2025-01-01"))
	if !errors.Is(err, dosing.ErrOccurrenceCeiling) {
		t.Fatalf("expected ErrOccurrenceCeiling, got %v", err)
	}
}

func TestProject_Idempotent(t *testing.T) {
	s := dosing.Schedule{
		Rule:         dosing.Interval{EveryMinutes: 360, WindowStart: ct(t, "06:00"), WindowEnd: ct(t, "22:00")},
		StartDate:    date(t, "2024-01-10"),
		ScheduleDays: 7,
	}

	a, err := dosing.Project(s, date(t, "2024-01-01"), date(t, "2024-01-31"))
	if err != nil {
		t.Fatalf("Project #1 error: %v", err)
	}
	b, err := dosing.Project(s, date(t, "2024-01-01"), date(t, "2024-01-31"))
	if err != nil {
		t.Fatalf("Project #2 error: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("expected identical projections")
	}
}

func TestSchedule_ActiveOn(t *testing.T) {
	s := dosing.Schedule{
		Rule:         dosing.Explicit{Times: cts(t, "08:00")},
		StartDate:    date(t, "2024-01-10"),
		EndDate:      datePtr(t, "2024-01-20"),
		ScheduleDays: 5,
	}

	if s.ActiveOn(date(t, "2024-01-09")) {
		t.Fatalf("must be inactive before start")
	}
	if !s.ActiveOn(date(t, "2024-01-10")) || !s.ActiveOn(date(t, "2024-01-20")) {
		t.Fatalf("start and end dates are inclusive")
	}
	if s.ActiveOn(date(t, "2024-01-21")) {
		t.Fatalf("must be finished after end")
	}

	// Abierto: activo desde start en adelante, sin importar schedule_days.
	open := dosing.Schedule{Rule: s.Rule, StartDate: s.StartDate, ScheduleDays: 5}
	if !open.ActiveOn(date(t, "2030-06-01")) {
		t.Fatalf("open-ended schedule must stay active")
	}
}
