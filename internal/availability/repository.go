package availability

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrRuleNotFound     = errors.New("availability rule not found")
	ErrBlackoutNotFound = errors.New("blackout period not found")
)

// Repository contains all DB interactions needed by the availability service.
type Repository interface {
	GetRuleByID(ctx context.Context, id uuid.UUID) (*Rule, error)
	// GetActiveRule returns the single active rule for this weekday, or
	// ErrRuleNotFound when the practitioner is closed that day.
	GetActiveRule(ctx context.Context, practitionerID uuid.UUID, weekday time.Weekday) (*Rule, error)
	ListRules(ctx context.Context, practitionerID uuid.UUID) ([]Rule, error)
	ListActiveRulesForWeekday(ctx context.Context, practitionerID uuid.UUID, weekday time.Weekday) ([]Rule, error)
	SaveRule(ctx context.Context, r *Rule) (*Rule, error)

	ListBlackouts(ctx context.Context, practitionerID uuid.UUID) ([]Blackout, error)
	// ListBlackoutsInRange returns blackouts whose date span intersects
	// [from, to] inclusive.
	ListBlackoutsInRange(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]Blackout, error)
	SaveBlackout(ctx context.Context, b *Blackout) (*Blackout, error)
}

// BookedInterval is an occupied stretch of a practitioner's day, as seen by
// the schedule read path. The appointment store provides these.
type BookedInterval struct {
	Start   TimeOfDay
	Minutes int
}

// BookingLister exposes the occupied intervals of a practitioner's day.
type BookingLister interface {
	ListBookedIntervals(ctx context.Context, practitionerID uuid.UUID, date time.Time) ([]BookedInterval, error)
}
