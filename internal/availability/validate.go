package availability

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrValidation is the base class for every guard failure that happens
// before any mutation. Specific failures wrap it.
var ErrValidation = errors.New("validation failed")

var validate = validator.New()

// ValidateRule checks a rule's field and cross-field invariants. Overlap
// with other active rules is checked by the service against persisted state.
func ValidateRule(r *Rule) error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: slot duration must be between 15 and 120 minutes", ErrValidation)
	}
	if r.Weekday < time.Sunday || r.Weekday > time.Saturday {
		return fmt.Errorf("%w: invalid weekday %d", ErrValidation, r.Weekday)
	}
	if !r.OpenTime.Valid() || !r.CloseTime.Valid() {
		return fmt.Errorf("%w: open and close times must be valid clock times", ErrValidation)
	}
	if r.CloseTime <= r.OpenTime {
		return fmt.Errorf("%w: close time %s must be after open time %s", ErrValidation, r.CloseTime, r.OpenTime)
	}
	if (r.BreakStart == nil) != (r.BreakEnd == nil) {
		return fmt.Errorf("%w: break start and end must be set together", ErrValidation)
	}
	if r.HasBreak() {
		if *r.BreakEnd <= *r.BreakStart {
			return fmt.Errorf("%w: break end %s must be after break start %s", ErrValidation, *r.BreakEnd, *r.BreakStart)
		}
		if *r.BreakStart < r.OpenTime || *r.BreakEnd > r.CloseTime {
			return fmt.Errorf("%w: break %s-%s must lie inside open hours %s-%s",
				ErrValidation, *r.BreakStart, *r.BreakEnd, r.OpenTime, r.CloseTime)
		}
	}
	return nil
}

// ValidateBlackout checks a blackout's own invariants. today is the current
// date in the calendar's time zone; periods entirely in the past are
// rejected at creation.
func ValidateBlackout(b *Blackout, today time.Time) error {
	if err := validate.Struct(b); err != nil {
		return fmt.Errorf("%w: unknown blackout category %q", ErrValidation, b.Category)
	}
	if DateBefore(b.EndDate, b.StartDate) {
		return fmt.Errorf("%w: end date must not precede start date", ErrValidation)
	}
	if DateBefore(b.EndDate, today) {
		return fmt.Errorf("%w: blackout period lies entirely in the past", ErrValidation)
	}
	if !b.FullDay {
		if b.StartTime == nil || b.EndTime == nil {
			return fmt.Errorf("%w: partial-day blackout requires start and end times", ErrValidation)
		}
		if *b.EndTime <= *b.StartTime {
			return fmt.Errorf("%w: blackout end time %s must be after start time %s", ErrValidation, *b.EndTime, *b.StartTime)
		}
	}
	return nil
}
