package availability

import (
	"testing"
	"time"
)

// ---------- Helpers ----------

func tod(t *testing.T, s string) TimeOfDay {
	t.Helper()
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return parsed
}

func todPtr(t *testing.T, s string) *TimeOfDay {
	t.Helper()
	v := tod(t, s)
	return &v
}

// standardRule is the classic working day: 09:00-17:00, 30-minute slots,
// lunch break 12:00-14:00, on the given weekday.
func standardRule(t *testing.T, weekday time.Weekday) *Rule {
	t.Helper()
	return &Rule{
		Weekday:     weekday,
		OpenTime:    tod(t, "09:00"),
		CloseTime:   tod(t, "17:00"),
		SlotMinutes: 30,
		BreakStart:  todPtr(t, "12:00"),
		BreakEnd:    todPtr(t, "14:00"),
		Active:      true,
	}
}

var testDay = time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC) // a Monday

func longAgo() time.Time {
	return time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
}

// ---------- GenerateSlots ----------

func TestGenerateSlots_StandardDay(t *testing.T) {
	r := standardRule(t, time.Monday)

	slots := GenerateSlots(r, testDay, longAgo())

	// 09:00-12:00 yields 6 starts, 14:00-17:00 yields 6 more; the break
	// swallows everything in between.
	if len(slots) != 12 {
		t.Fatalf("expected 12 slots, got %d: %v", len(slots), slots)
	}
	if slots[0] != tod(t, "09:00") {
		t.Errorf("first slot = %s, want 09:00", slots[0])
	}
	if slots[5] != tod(t, "11:30") {
		t.Errorf("last morning slot = %s, want 11:30", slots[5])
	}
	if slots[6] != tod(t, "14:00") {
		t.Errorf("first afternoon slot = %s, want 14:00", slots[6])
	}
	if slots[len(slots)-1] != tod(t, "16:30") {
		t.Errorf("last slot = %s, want 16:30", slots[len(slots)-1])
	}
	for i := 1; i < len(slots); i++ {
		if slots[i] <= slots[i-1] {
			t.Fatalf("slots not strictly ascending at %d: %v", i, slots)
		}
	}
}

func TestGenerateSlots_NoBreak(t *testing.T) {
	r := standardRule(t, time.Monday)
	r.BreakStart, r.BreakEnd = nil, nil

	slots := GenerateSlots(r, testDay, longAgo())
	if len(slots) != 16 {
		t.Fatalf("expected 16 slots without break, got %d", len(slots))
	}
}

func TestGenerateSlots_FinalSlotMustFitBeforeClose(t *testing.T) {
	// 09:00-10:45 with 30-minute slots: 10:30 would end at 11:00, past
	// close, so only 09:00, 09:30 and 10:00 fit.
	r := &Rule{
		Weekday:     time.Monday,
		OpenTime:    tod(t, "09:00"),
		CloseTime:   tod(t, "10:45"),
		SlotMinutes: 30,
		Active:      true,
	}

	slots := GenerateSlots(r, testDay, longAgo())
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d: %v", len(slots), slots)
	}
	if slots[len(slots)-1] != tod(t, "10:00") {
		t.Errorf("last slot = %s, want 10:00", slots[len(slots)-1])
	}
}

func TestGenerateSlots_BreakStraddlingSlotSkipped(t *testing.T) {
	// A 45-minute grid against a 12:00-12:30 break: the 11:15 slot ends
	// 12:00 (touching, kept) while the 12:00 slot intersects (dropped).
	r := &Rule{
		Weekday:     time.Monday,
		OpenTime:    tod(t, "09:00"),
		CloseTime:   tod(t, "14:00"),
		SlotMinutes: 45,
		BreakStart:  todPtr(t, "12:00"),
		BreakEnd:    todPtr(t, "12:30"),
		Active:      true,
	}

	slots := GenerateSlots(r, testDay, longAgo())
	for _, s := range slots {
		if s == tod(t, "12:00") {
			t.Errorf("slot 12:00 intersects the break and must be skipped")
		}
	}
	found := false
	for _, s := range slots {
		if s == tod(t, "11:15") {
			found = true
		}
	}
	if !found {
		t.Errorf("slot 11:15 ends exactly at break start and must be kept: %v", slots)
	}
}

func TestGenerateSlots_WeekdayMismatch(t *testing.T) {
	r := standardRule(t, time.Tuesday)
	if slots := GenerateSlots(r, testDay, longAgo()); slots != nil {
		t.Fatalf("expected nil for weekday mismatch, got %v", slots)
	}
}

func TestGenerateSlots_InactiveRule(t *testing.T) {
	r := standardRule(t, time.Monday)
	r.Active = false
	if slots := GenerateSlots(r, testDay, longAgo()); slots != nil {
		t.Fatalf("expected nil for inactive rule, got %v", slots)
	}
}

func TestGenerateSlots_NilRule(t *testing.T) {
	if slots := GenerateSlots(nil, testDay, longAgo()); slots != nil {
		t.Fatalf("expected nil for nil rule, got %v", slots)
	}
}

func TestGenerateSlots_PastStartsSkipped(t *testing.T) {
	r := standardRule(t, time.Monday)
	now := time.Date(2026, 9, 14, 15, 10, 0, 0, time.UTC)

	slots := GenerateSlots(r, testDay, now)

	// Only 15:30, 16:00 and 16:30 remain after 15:10.
	if len(slots) != 3 {
		t.Fatalf("expected 3 remaining slots, got %d: %v", len(slots), slots)
	}
	if slots[0] != tod(t, "15:30") {
		t.Errorf("first remaining slot = %s, want 15:30", slots[0])
	}
}

func TestGenerateSlots_Deterministic(t *testing.T) {
	r := standardRule(t, time.Monday)
	a := GenerateSlots(r, testDay, longAgo())
	b := GenerateSlots(r, testDay, longAgo())
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("slot %d differs: %s vs %s", i, a[i], b[i])
		}
	}
}

// ---------- intersects ----------

func TestIntersects_HalfOpenLaw(t *testing.T) {
	cases := []struct {
		name                         string
		aStart, aEnd, bStart, bEnd   string
		want                         bool
	}{
		{"identical", "10:00", "10:30", "10:00", "10:30", true},
		{"partial overlap", "10:00", "11:00", "10:15", "10:45", true},
		{"contained", "10:00", "12:00", "10:30", "11:00", true},
		{"touching end to start", "10:00", "10:30", "10:30", "11:00", false},
		{"touching start to end", "10:30", "11:00", "10:00", "10:30", false},
		{"disjoint", "09:00", "09:30", "11:00", "11:30", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := intersects(tod(t, tc.aStart), tod(t, tc.aEnd), tod(t, tc.bStart), tod(t, tc.bEnd))
			if got != tc.want {
				t.Errorf("intersects(%s-%s, %s-%s) = %v, want %v",
					tc.aStart, tc.aEnd, tc.bStart, tc.bEnd, got, tc.want)
			}
		})
	}
}

// ---------- IsOpenAt ----------

func TestIsOpenAt(t *testing.T) {
	r := standardRule(t, time.Monday)
	vacation := Blackout{
		StartDate: testDay,
		EndDate:   testDay,
		Category:  CategoryVacation,
		FullDay:   true,
	}
	afternoonOff := Blackout{
		StartDate: testDay,
		EndDate:   testDay,
		Category:  CategoryPersonal,
		FullDay:   false,
		StartTime: todPtr(t, "15:00"),
		EndTime:   todPtr(t, "17:00"),
	}

	cases := []struct {
		name      string
		blackouts []Blackout
		at        string
		want      bool
	}{
		{"inside open hours", nil, "10:00", true},
		{"before opening", nil, "08:30", false},
		{"at close", nil, "17:00", false},
		{"after close", nil, "18:00", false},
		{"at open", nil, "09:00", true},
		{"inside break", nil, "12:30", false},
		{"at break start", nil, "12:00", false},
		{"at break end", nil, "14:00", true},
		{"full-day blackout", []Blackout{vacation}, "10:00", false},
		{"partial blackout covers", []Blackout{afternoonOff}, "15:30", false},
		{"partial blackout misses", []Blackout{afternoonOff}, "14:30", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := IsOpenAt(r, tc.blackouts, testDay, tod(t, tc.at))
			if got != tc.want {
				t.Errorf("IsOpenAt(%s) = %v, want %v", tc.at, got, tc.want)
			}
		})
	}
}

func TestIsOpenAt_WrongWeekday(t *testing.T) {
	r := standardRule(t, time.Tuesday)
	if IsOpenAt(r, nil, testDay, tod(t, "10:00")) {
		t.Error("expected closed on weekday mismatch")
	}
}
