package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Reasons a generated slot can be unavailable.
const (
	ReasonBooked   = "booked"
	ReasonBlackout = "blackout"
)

// Slot is one entry of the bookable-times read path.
type Slot struct {
	Date      time.Time
	Time      TimeOfDay
	Minutes   int
	Available bool
	Reason    string // set only when unavailable
}

type Service struct {
	repo     Repository
	bookings BookingLister
	log      zerolog.Logger
	loc      *time.Location
	now      func() time.Time
}

func NewService(repo Repository, bookings BookingLister, log zerolog.Logger, loc *time.Location) *Service {
	return &Service{
		repo:     repo,
		bookings: bookings,
		log:      log,
		loc:      loc,
		now:      time.Now,
	}
}

// WithClock overrides the service clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// UpsertRule validates and persists a weekly availability rule. A second
// active rule on the same weekday is rejected: the calendar allows at most
// one active rule per (practitioner, weekday).
func (s *Service) UpsertRule(ctx context.Context, r *Rule) (*Rule, error) {
	if err := ValidateRule(r); err != nil {
		return nil, err
	}
	if r.PractitionerID == uuid.Nil {
		return nil, fmt.Errorf("%w: practitioner_id is required", ErrValidation)
	}

	if r.Active {
		existing, err := s.repo.ListActiveRulesForWeekday(ctx, r.PractitionerID, r.Weekday)
		if err != nil {
			return nil, fmt.Errorf("list rules for weekday: %w", err)
		}
		for i := range existing {
			if existing[i].ID == r.ID {
				continue
			}
			return nil, fmt.Errorf("%w: an active rule already covers %s (%s-%s)",
				ErrValidation, r.Weekday, existing[i].OpenTime, existing[i].CloseTime)
		}
	}

	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}

	saved, err := s.repo.SaveRule(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("save rule: %w", err)
	}

	s.log.Info().
		Str("practitioner_id", r.PractitionerID.String()).
		Str("weekday", r.Weekday.String()).
		Bool("active", r.Active).
		Msg("availability rule saved")

	return saved, nil
}

// UpsertBlackout validates and persists a blackout period, rejecting
// periods that overlap an existing one for the same practitioner.
func (s *Service) UpsertBlackout(ctx context.Context, b *Blackout) (*Blackout, error) {
	b.StartDate = DateIn(b.StartDate, s.loc)
	b.EndDate = DateIn(b.EndDate, s.loc)

	today := s.now().In(s.loc)
	if err := ValidateBlackout(b, today); err != nil {
		return nil, err
	}
	if b.PractitionerID == uuid.Nil {
		return nil, fmt.Errorf("%w: practitioner_id is required", ErrValidation)
	}

	existing, err := s.repo.ListBlackoutsInRange(ctx, b.PractitionerID, DateOnly(b.StartDate), DateOnly(b.EndDate))
	if err != nil {
		return nil, fmt.Errorf("list blackouts in range: %w", err)
	}
	for i := range existing {
		if existing[i].ID == b.ID {
			continue
		}
		return nil, fmt.Errorf("%w: overlaps existing blackout %s to %s",
			ErrValidation,
			existing[i].StartDate.Format("2006-01-02"),
			existing[i].EndDate.Format("2006-01-02"))
	}

	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}

	saved, err := s.repo.SaveBlackout(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("save blackout: %w", err)
	}

	s.log.Info().
		Str("practitioner_id", b.PractitionerID.String()).
		Str("category", string(b.Category)).
		Msg("blackout period saved")

	return saved, nil
}

func (s *Service) ListRules(ctx context.Context, practitionerID uuid.UUID) ([]Rule, error) {
	return s.repo.ListRules(ctx, practitionerID)
}

func (s *Service) ListBlackouts(ctx context.Context, practitionerID uuid.UUID) ([]Blackout, error) {
	return s.repo.ListBlackouts(ctx, practitionerID)
}

// DaySchedule returns the ordered slot statuses for one practitioner day.
// A day with no active rule yields an empty schedule.
func (s *Service) DaySchedule(ctx context.Context, practitionerID uuid.UUID, date time.Time) ([]Slot, error) {
	date = DateIn(date, s.loc)

	rule, err := s.repo.GetActiveRule(ctx, practitionerID, date.Weekday())
	if err != nil {
		if errors.Is(err, ErrRuleNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load rule: %w", err)
	}

	blackouts, err := s.repo.ListBlackoutsInRange(ctx, practitionerID, date, date)
	if err != nil {
		return nil, fmt.Errorf("load blackouts: %w", err)
	}

	booked, err := s.bookings.ListBookedIntervals(ctx, practitionerID, date)
	if err != nil {
		return nil, fmt.Errorf("load booked intervals: %w", err)
	}

	starts := GenerateSlots(rule, date, s.now().In(s.loc))
	slots := make([]Slot, 0, len(starts))
	for _, start := range starts {
		slot := Slot{
			Date:      date,
			Time:      start,
			Minutes:   rule.SlotMinutes,
			Available: true,
		}
		// Generated slots already sit inside open hours and outside the
		// break, so a closed answer here can only mean a blackout.
		if !IsOpenAt(rule, blackouts, date, start) {
			slot.Available = false
			slot.Reason = ReasonBlackout
		}
		if slot.Available {
			end := start.Add(rule.SlotMinutes)
			for _, b := range booked {
				if intersects(start, end, b.Start, b.Start.Add(b.Minutes)) {
					slot.Available = false
					slot.Reason = ReasonBooked
					break
				}
			}
		}
		slots = append(slots, slot)
	}

	return slots, nil
}

// RangeSchedule concatenates day schedules across [from, to] inclusive.
func (s *Service) RangeSchedule(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]Slot, error) {
	from = DateIn(from, s.loc)
	to = DateIn(to, s.loc)
	if to.Before(from) {
		return nil, fmt.Errorf("%w: range end precedes range start", ErrValidation)
	}

	var all []Slot
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		day, err := s.DaySchedule(ctx, practitionerID, d)
		if err != nil {
			return nil, err
		}
		all = append(all, day...)
	}
	return all, nil
}

// FindNextAvailable scans up to days calendar days from the given date and
// returns the first open slot, or nil when the window holds none.
func (s *Service) FindNextAvailable(ctx context.Context, practitionerID uuid.UUID, from time.Time, days int) (*Slot, error) {
	if days <= 0 {
		days = 14
	}
	from = DateIn(from, s.loc)

	slots, err := s.RangeSchedule(ctx, practitionerID, from, from.AddDate(0, 0, days-1))
	if err != nil {
		return nil, err
	}
	for i := range slots {
		if slots[i].Available {
			return &slots[i], nil
		}
	}
	return nil, nil
}
