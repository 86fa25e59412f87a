package appointment

import (
	"github.com/google/uuid"

	"github.com/virtualcare/scheduling-engine/internal/availability"
)

// Overlaps applies the half-open interval law: [aStart,aEnd) and
// [bStart,bEnd) conflict iff aStart < bEnd AND bStart < aEnd. Touching
// endpoints never conflict.
func Overlaps(aStart, aEnd, bStart, bEnd availability.TimeOfDay) bool {
	return aStart < bEnd && bStart < aEnd
}

// DurationResolver decides how many minutes an existing appointment
// occupies. Appointments booked before durations were persisted carry zero
// and fall back to the weekday rule or the configured default.
type DurationResolver func(a *Appointment) int

// NewDurationResolver builds the standard resolver: stored duration first,
// then the matching weekday rule's slot length, then defaultMinutes.
func NewDurationResolver(rules map[int]*availability.Rule, defaultMinutes int) DurationResolver {
	return func(a *Appointment) int {
		if a.Minutes > 0 {
			return a.Minutes
		}
		if r, ok := rules[int(a.Date.Weekday())]; ok && r != nil {
			return r.SlotMinutes
		}
		return defaultMinutes
	}
}

// FindConflict returns the first active appointment whose interval overlaps
// [start, start+minutes), or nil. Appointments outside pending/confirmed
// never participate, and excludeID skips the appointment being moved.
func FindConflict(start availability.TimeOfDay, minutes int, existing []Appointment, resolve DurationResolver, excludeID uuid.UUID) *Appointment {
	end := start.Add(minutes)
	for i := range existing {
		a := &existing[i]
		if a.ID == excludeID || !a.Status.Active() {
			continue
		}
		if Overlaps(start, end, a.Time, a.Time.Add(resolve(a))) {
			return a
		}
	}
	return nil
}
