package availability

import "time"

// GenerateSlots enumerates the bookable start times a rule yields on one
// date. The date's weekday must match the rule's weekday, otherwise the
// result is empty; callers pick the matching rule per date themselves.
// Slots that intersect the break window or that start before now (anchored
// on onDate) are skipped. Output is ascending and deterministic.
func GenerateSlots(r *Rule, onDate time.Time, now time.Time) []TimeOfDay {
	if r == nil || !r.Active || onDate.Weekday() != r.Weekday {
		return nil
	}

	var out []TimeOfDay
	for start := r.OpenTime; start.Add(r.SlotMinutes) <= r.CloseTime; start = start.Add(r.SlotMinutes) {
		if r.HasBreak() && intersects(start, start.Add(r.SlotMinutes), *r.BreakStart, *r.BreakEnd) {
			continue
		}
		if start.On(onDate).Before(now) {
			continue
		}
		out = append(out, start)
	}
	return out
}

// intersects applies the half-open overlap law to [aStart,aEnd) and
// [bStart,bEnd): touching endpoints do not intersect.
func intersects(aStart, aEnd, bStart, bEnd TimeOfDay) bool {
	return aStart < bEnd && bStart < aEnd
}

// IsOpenAt is the point-in-time bookability check: weekday match, inside
// open hours, outside the break, and not covered by any blackout. The
// schedule read path uses it to mark each generated slot.
func IsOpenAt(r *Rule, blackouts []Blackout, date time.Time, t TimeOfDay) bool {
	if r == nil || !r.Active || date.Weekday() != r.Weekday {
		return false
	}
	if t < r.OpenTime || t >= r.CloseTime {
		return false
	}
	if r.HasBreak() && t >= *r.BreakStart && t < *r.BreakEnd {
		return false
	}
	for i := range blackouts {
		if blackouts[i].Covers(date, t) {
			return false
		}
	}
	return true
}
