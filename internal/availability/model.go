package availability

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TimeOfDay is a minute-precision clock time, stored as minutes since
// midnight. The wire and database form is "HH:MM".
type TimeOfDay int

const minutesPerDay = 24 * 60

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	t := NewTimeOfDay(hour, minute)
	if hour < 0 || minute < 0 || minute > 59 || !t.Valid() {
		return 0, fmt.Errorf("time of day %q out of range", s)
	}
	return t, nil
}

func (t TimeOfDay) Valid() bool {
	return t >= 0 && t < minutesPerDay
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) Add(minutes int) TimeOfDay {
	return t + TimeOfDay(minutes)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// On anchors the clock time onto a calendar date in that date's location.
func (t TimeOfDay) On(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, date.Location())
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Rule is the recurring weekly availability template for one weekday of one
// practitioner's calendar.
type Rule struct {
	ID             uuid.UUID
	PractitionerID uuid.UUID
	Weekday        time.Weekday
	OpenTime       TimeOfDay
	CloseTime      TimeOfDay
	SlotMinutes    int `validate:"min=15,max=120"`
	BreakStart     *TimeOfDay
	BreakEnd       *TimeOfDay
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasBreak reports whether both break bounds are set.
func (r *Rule) HasBreak() bool {
	return r.BreakStart != nil && r.BreakEnd != nil
}

type BlackoutCategory string

const (
	CategoryVacation  BlackoutCategory = "vacation"
	CategoryTraining  BlackoutCategory = "training"
	CategorySickLeave BlackoutCategory = "sick_leave"
	CategoryPersonal  BlackoutCategory = "personal"
	CategoryOther     BlackoutCategory = "other"
)

// Blackout is an explicit exclusion range that overrides the weekly rule.
// A same-day, non-full-day blackout carries a start and end time.
type Blackout struct {
	ID             uuid.UUID
	PractitionerID uuid.UUID
	StartDate      time.Time
	EndDate        time.Time
	Category       BlackoutCategory `validate:"oneof=vacation training sick_leave personal other"`
	FullDay        bool
	StartTime      *TimeOfDay
	EndTime        *TimeOfDay
	Note           string
	CreatedAt      time.Time
}

// Covers reports whether the blackout excludes the given date and clock time.
func (b *Blackout) Covers(date time.Time, t TimeOfDay) bool {
	if DateBefore(date, b.StartDate) || DateBefore(b.EndDate, date) {
		return false
	}
	if b.FullDay || b.StartTime == nil || b.EndTime == nil {
		return true
	}
	return t >= *b.StartTime && t < *b.EndTime
}

// CoversDay reports whether any part of the given date is blacked out.
func (b *Blackout) CoversDay(date time.Time) bool {
	return !DateBefore(date, b.StartDate) && !DateBefore(b.EndDate, date)
}

// DateOnly truncates a timestamp to midnight in its own location.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DateIn rebuilds a value's calendar date at midnight in loc. Unlike In,
// the year, month and day are kept; only the location changes. Request
// dates arrive as zone-less calendar days and must never shift when the
// engine anchors them in its schedule zone.
func DateIn(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// DateBefore orders two values by calendar date alone. Values scanned from
// the database carry UTC midnights while request dates are anchored in the
// schedule zone; comparing them as instants would skew by the zone offset.
func DateBefore(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	if ay != by {
		return ay < by
	}
	if am != bm {
		return am < bm
	}
	return ad < bd
}
