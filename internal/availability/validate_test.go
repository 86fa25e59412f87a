package availability

import (
	"errors"
	"testing"
	"time"
)

func validRule(t *testing.T) *Rule {
	t.Helper()
	return standardRule(t, time.Monday)
}

func TestValidateRule(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(r *Rule)
		wantErr bool
	}{
		{"valid", func(r *Rule) {}, false},
		{"no break is valid", func(r *Rule) { r.BreakStart, r.BreakEnd = nil, nil }, false},
		{"slot too short", func(r *Rule) { r.SlotMinutes = 10 }, true},
		{"slot too long", func(r *Rule) { r.SlotMinutes = 150 }, true},
		{"slot at lower bound", func(r *Rule) { r.SlotMinutes = 15 }, false},
		{"slot at upper bound", func(r *Rule) { r.SlotMinutes = 120 }, false},
		{"close before open", func(r *Rule) { r.OpenTime, r.CloseTime = r.CloseTime, r.OpenTime }, true},
		{"close equals open", func(r *Rule) { r.CloseTime = r.OpenTime }, true},
		{"break start without end", func(r *Rule) { r.BreakEnd = nil }, true},
		{"break end without start", func(r *Rule) { r.BreakStart = nil }, true},
		{"break end before start", func(r *Rule) { r.BreakStart, r.BreakEnd = r.BreakEnd, r.BreakStart }, true},
		{"break before opening", func(r *Rule) {
			bs, be := NewTimeOfDay(7, 0), NewTimeOfDay(8, 0)
			r.BreakStart, r.BreakEnd = &bs, &be
		}, true},
		{"break past closing", func(r *Rule) {
			bs, be := NewTimeOfDay(16, 30), NewTimeOfDay(17, 30)
			r.BreakStart, r.BreakEnd = &bs, &be
		}, true},
		{"negative open time", func(r *Rule) { r.OpenTime = -10 }, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := validRule(t)
			tc.mutate(r)
			err := ValidateRule(r)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected validation error, got nil")
				}
				if !errors.Is(err, ErrValidation) {
					t.Errorf("error %v does not wrap ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateBlackout(t *testing.T) {
	today := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	future := today.AddDate(0, 0, 10)

	base := func() *Blackout {
		return &Blackout{
			StartDate: future,
			EndDate:   future.AddDate(0, 0, 3),
			Category:  CategoryVacation,
			FullDay:   true,
		}
	}

	cases := []struct {
		name    string
		mutate  func(b *Blackout)
		wantErr bool
	}{
		{"valid full day", func(b *Blackout) {}, false},
		{"single day", func(b *Blackout) { b.EndDate = b.StartDate }, false},
		{"unknown category", func(b *Blackout) { b.Category = "sabbatical" }, true},
		{"end before start", func(b *Blackout) { b.StartDate, b.EndDate = b.EndDate, b.StartDate }, true},
		{"entirely in the past", func(b *Blackout) {
			b.StartDate = today.AddDate(0, 0, -5)
			b.EndDate = today.AddDate(0, 0, -2)
		}, true},
		{"ends today is allowed", func(b *Blackout) {
			b.StartDate = today.AddDate(0, 0, -5)
			b.EndDate = today
		}, false},
		{"partial day without times", func(b *Blackout) { b.FullDay = false }, true},
		{"partial day with times", func(b *Blackout) {
			b.FullDay = false
			st, et := NewTimeOfDay(13, 0), NewTimeOfDay(15, 0)
			b.StartTime, b.EndTime = &st, &et
		}, false},
		{"partial day end before start", func(b *Blackout) {
			b.FullDay = false
			st, et := NewTimeOfDay(15, 0), NewTimeOfDay(13, 0)
			b.StartTime, b.EndTime = &st, &et
		}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := base()
			tc.mutate(b)
			err := ValidateBlackout(b, today)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected validation error, got nil")
				}
				if !errors.Is(err, ErrValidation) {
					t.Errorf("error %v does not wrap ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
