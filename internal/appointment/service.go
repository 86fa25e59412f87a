package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/virtualcare/scheduling-engine/internal/availability"
	"github.com/virtualcare/scheduling-engine/internal/config"
	redisclient "github.com/virtualcare/scheduling-engine/internal/redis"
)

// EventStatusChanged is written to the event log exactly once per
// committed transition. Downstream consumers must handle it idempotently.
const EventStatusChanged = "appointment.status_changed"

// AvailabilityStore is the slice of the availability repository the
// lifecycle guards need.
type AvailabilityStore interface {
	GetActiveRule(ctx context.Context, practitionerID uuid.UUID, weekday time.Weekday) (*availability.Rule, error)
	ListBlackoutsInRange(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]availability.Blackout, error)
}

type Service struct {
	repo      Repository
	avail     AvailabilityStore
	locker    redisclient.Locker
	cfg       config.Config
	log       zerolog.Logger
	observers []Observer
	now       func() time.Time
}

func NewService(repo Repository, avail AvailabilityStore, locker redisclient.Locker, cfg config.Config, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		avail:  avail,
		locker: locker,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
	}
}

// Subscribe registers an observer for committed transitions. Observers run
// after the write commits; their failures are logged and swallowed.
func (s *Service) Subscribe(o Observer) {
	s.observers = append(s.observers, o)
}

// WithClock overrides the service clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type CreateParams struct {
	PatientID      uuid.UUID
	PractitionerID uuid.UUID
	Date           time.Time
	Time           availability.TimeOfDay
	Modality       Modality
	Reason         string
}

// Create books a new pending appointment after running the full guard set:
// future date, minimum lead time, inside an active rule slot, outside the
// break, no blackout, no overlap, patient daily cap. The Redis slot lock
// narrows the race window; the partial unique index closes it.
func (s *Service) Create(ctx context.Context, p CreateParams, actor Role) (*Appointment, error) {
	if err := requireRole(actor, RolePatient, RoleAdmin); err != nil {
		return nil, err
	}
	if p.Modality == "" {
		p.Modality = ModalityInPerson
	}
	if p.Modality != ModalityInPerson && p.Modality != ModalityRemote {
		return nil, fmt.Errorf("%w: unknown modality %q", availability.ErrValidation, p.Modality)
	}
	// Anchor the requested calendar day in the schedule zone once; the
	// guards, the cap, the conflict check and the stored row must all see
	// the same date.
	p.Date = availability.DateIn(p.Date, s.cfg.ScheduleTZ)

	if _, err := s.repo.GetPatientByID(ctx, p.PatientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}
	if _, err := s.repo.GetPractitionerByID(ctx, p.PractitionerID); err != nil {
		if errors.Is(err, ErrPractitionerNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load practitioner: %w", err)
	}

	rule, err := s.validateSlot(ctx, p.PractitionerID, p.Date, p.Time)
	if err != nil {
		return nil, err
	}

	if err := s.checkDailyCap(ctx, p.PatientID, p.Date, uuid.Nil); err != nil {
		return nil, err
	}
	if err := s.checkConflict(ctx, p.PractitionerID, p.Date, p.Time, rule.SlotMinutes, uuid.Nil); err != nil {
		return nil, err
	}

	appt := &Appointment{
		PatientID:      p.PatientID,
		PractitionerID: p.PractitionerID,
		Date:           p.Date,
		Time:           p.Time,
		Minutes:        rule.SlotMinutes,
		Modality:       p.Modality,
		Reason:         p.Reason,
		Status:         StatusPending,
	}

	var created *Appointment
	err = s.locker.WithSlotLock(ctx, slotKey(p.PractitionerID, p.Date, p.Time), func(lockCtx context.Context) error {
		// Re-check inside the critical section; a competing request may
		// have won the slot between the first check and the lock.
		if err := s.checkConflict(lockCtx, p.PractitionerID, p.Date, p.Time, rule.SlotMinutes, uuid.Nil); err != nil {
			return err
		}

		inserted, err := s.repo.Create(lockCtx, appt)
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		created = inserted
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	s.emit(ctx, created, "", StatusPending, actor)
	return created, nil
}

// Confirm moves a pending or rescheduled appointment to confirmed. The
// creation guards are not re-run, but the slot conflict is re-checked.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID, actor Role) (*Appointment, error) {
	if err := requireRole(actor, RolePractitioner, RoleAdmin); err != nil {
		return nil, err
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(appt.Status, StatusConfirmed) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, appt.Status, StatusConfirmed)
	}

	if err := s.checkConflict(ctx, appt.PractitionerID, appt.Date, appt.Time, appt.Minutes, appt.ID); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateStatus(ctx, id, []Status{StatusPending, StatusRescheduled}, StatusConfirmed)
	if err != nil {
		// A rescheduled appointment only re-enters the unique index when
		// it confirms; losing that race surfaces here, not at Create.
		if errors.Is(err, ErrConflict) {
			return nil, err
		}
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, fmt.Errorf("%w: appointment changed concurrently", ErrInvalidStatusTransition)
		}
		return nil, fmt.Errorf("confirm appointment: %w", err)
	}

	s.emit(ctx, updated, appt.Status, StatusConfirmed, actor)
	return updated, nil
}

// Reschedule moves a non-terminal appointment to a new slot. The full
// creation guard set runs against the new slot; the old slot stays
// occupied until the move commits. The original date and time are
// snapshotted on the first reschedule only.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, newDate time.Time, newTime availability.TimeOfDay, actor Role) (*Appointment, error) {
	if !ValidRole(actor) {
		return nil, ErrRoleNotPermitted
	}
	newDate = availability.DateIn(newDate, s.cfg.ScheduleTZ)

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(appt.Status, StatusRescheduled) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, appt.Status, StatusRescheduled)
	}

	rule, err := s.validateSlot(ctx, appt.PractitionerID, newDate, newTime)
	if err != nil {
		return nil, err
	}
	if err := s.checkDailyCap(ctx, appt.PatientID, newDate, appt.ID); err != nil {
		return nil, err
	}
	if err := s.checkConflict(ctx, appt.PractitionerID, newDate, newTime, rule.SlotMinutes, appt.ID); err != nil {
		return nil, err
	}

	snapshot := appt.OriginalDate == nil

	var moved *Appointment
	err = s.locker.WithSlotLock(ctx, slotKey(appt.PractitionerID, newDate, newTime), func(lockCtx context.Context) error {
		if err := s.checkConflict(lockCtx, appt.PractitionerID, newDate, newTime, rule.SlotMinutes, appt.ID); err != nil {
			return err
		}

		// The moved appointment adopts the new day's slot length so it
		// blocks exactly one slot on the new grid.
		updated, err := s.repo.Reschedule(lockCtx, id, newDate, newTime, rule.SlotMinutes, snapshot)
		if err != nil {
			return fmt.Errorf("reschedule appointment: %w", err)
		}
		moved = updated
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	s.emit(ctx, moved, appt.Status, StatusRescheduled, actor)
	return moved, nil
}

// Cancel moves any non-terminal appointment to cancelled. Cancelling an
// already cancelled appointment is a no-op success.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actor Role) (*Appointment, error) {
	if !ValidRole(actor) {
		return nil, ErrRoleNotPermitted
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.Status == StatusCancelled {
		return appt, nil
	}
	if !CanTransition(appt.Status, StatusCancelled) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, appt.Status, StatusCancelled)
	}

	updated, err := s.repo.UpdateStatus(ctx, id, []Status{StatusPending, StatusConfirmed, StatusRescheduled}, StatusCancelled)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Lost a race with another cancel; treat as the no-op case.
			if current, getErr := s.repo.GetAppointmentByID(ctx, id); getErr == nil && current.Status == StatusCancelled {
				return current, nil
			}
			return nil, fmt.Errorf("%w: appointment changed concurrently", ErrInvalidStatusTransition)
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	s.emit(ctx, updated, appt.Status, StatusCancelled, actor)
	return updated, nil
}

// Complete marks a confirmed appointment as having taken place.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, actor Role) (*Appointment, error) {
	if err := requireRole(actor, RolePractitioner, RoleAdmin); err != nil {
		return nil, err
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(appt.Status, StatusCompleted) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, appt.Status, StatusCompleted)
	}

	updated, err := s.repo.UpdateStatus(ctx, id, []Status{StatusConfirmed}, StatusCompleted)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, fmt.Errorf("%w: appointment changed concurrently", ErrInvalidStatusTransition)
		}
		return nil, fmt.Errorf("complete appointment: %w", err)
	}

	s.emit(ctx, updated, appt.Status, StatusCompleted, actor)
	return updated, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetAppointmentByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	return s.repo.ListByPatient(ctx, patientID, clampLimit(limit), clampOffset(offset))
}

func (s *Service) ListByPractitioner(ctx context.Context, practitionerID uuid.UUID, limit, offset int) ([]Appointment, error) {
	return s.repo.ListByPractitioner(ctx, practitionerID, clampLimit(limit), clampOffset(offset))
}

// FindDueReminders lists the active appointments starting inside the
// reminder window. The periodic poller that calls this, and the delivery
// of the reminders themselves, live outside the engine.
func (s *Service) FindDueReminders(ctx context.Context, now time.Time, window time.Duration) ([]Appointment, error) {
	due, err := s.repo.FindDueBetween(ctx, now, now.Add(window))
	if err != nil {
		return nil, fmt.Errorf("find due reminders: %w", err)
	}
	return due, nil
}

// Guards

// validateSlot runs the shared slot admission guards and returns the rule
// that owns the slot, for its duration.
func (s *Service) validateSlot(ctx context.Context, practitionerID uuid.UUID, date time.Time, t availability.TimeOfDay) (*availability.Rule, error) {
	now := s.now().In(s.cfg.ScheduleTZ)
	date = availability.DateIn(date, s.cfg.ScheduleTZ)

	if date.Before(availability.DateOnly(now)) {
		return nil, fmt.Errorf("%w: appointment date is in the past", availability.ErrValidation)
	}
	if t.On(date).Sub(now) < s.cfg.MinLeadTime {
		return nil, fmt.Errorf("%w: appointments require at least %s notice", availability.ErrValidation, s.cfg.MinLeadTime)
	}

	rule, err := s.avail.GetActiveRule(ctx, practitionerID, date.Weekday())
	if err != nil {
		if errors.Is(err, availability.ErrRuleNotFound) {
			return nil, fmt.Errorf("%w: practitioner has no availability on %s", availability.ErrValidation, date.Weekday())
		}
		return nil, fmt.Errorf("load availability rule: %w", err)
	}

	if rule.HasBreak() && t >= *rule.BreakStart && t < *rule.BreakEnd {
		return nil, fmt.Errorf("%w: requested time falls inside the %s-%s break", availability.ErrValidation, *rule.BreakStart, *rule.BreakEnd)
	}
	if !slotOffered(rule, date, t, now) {
		return nil, fmt.Errorf("%w: %s is not a bookable slot on %s", availability.ErrValidation, t, date.Format("2006-01-02"))
	}

	blackouts, err := s.avail.ListBlackoutsInRange(ctx, practitionerID, date, date)
	if err != nil {
		return nil, fmt.Errorf("load blackouts: %w", err)
	}
	for i := range blackouts {
		if blackouts[i].Covers(date, t) {
			return nil, fmt.Errorf("%w: practitioner is unavailable (%s)", availability.ErrValidation, blackouts[i].Category)
		}
	}

	return rule, nil
}

func slotOffered(rule *availability.Rule, date time.Time, t availability.TimeOfDay, now time.Time) bool {
	for _, start := range availability.GenerateSlots(rule, date, now) {
		if start == t {
			return true
		}
	}
	return false
}

func (s *Service) checkDailyCap(ctx context.Context, patientID uuid.UUID, date time.Time, excludeID uuid.UUID) error {
	count, err := s.repo.CountActiveForPatientOnDate(ctx, patientID, date, excludeID)
	if err != nil {
		return fmt.Errorf("count patient appointments: %w", err)
	}
	if count >= s.cfg.DailyCap {
		return ErrDailyCapExceeded
	}
	return nil
}

func (s *Service) checkConflict(ctx context.Context, practitionerID uuid.UUID, date time.Time, t availability.TimeOfDay, minutes int, excludeID uuid.UUID) error {
	existing, err := s.repo.ListActiveOnDate(ctx, practitionerID, date)
	if err != nil {
		return fmt.Errorf("list active appointments: %w", err)
	}

	resolve := s.durationResolver(ctx, practitionerID, date)
	if blocking := FindConflict(t, minutes, existing, resolve, excludeID); blocking != nil {
		return &SlotConflictError{
			BlockingID: blocking.ID,
			Start:      blocking.Time.String(),
			End:        blocking.Time.Add(resolve(blocking)).String(),
		}
	}
	return nil
}

// durationResolver resolves existing appointment durations, falling back to
// the weekday rule and then the configured default so the conflict check
// never errors on missing configuration.
func (s *Service) durationResolver(ctx context.Context, practitionerID uuid.UUID, date time.Time) DurationResolver {
	rules := make(map[int]*availability.Rule, 1)
	if rule, err := s.avail.GetActiveRule(ctx, practitionerID, date.Weekday()); err == nil {
		rules[int(date.Weekday())] = rule
	}
	return NewDurationResolver(rules, s.cfg.DefaultSlotMins)
}

// Events

func (s *Service) emit(ctx context.Context, a *Appointment, old, next Status, actor Role) {
	ev := StatusChange{
		AppointmentID:  a.ID,
		PatientID:      a.PatientID,
		PractitionerID: a.PractitionerID,
		Date:           a.Date,
		Time:           a.Time,
		Modality:       a.Modality,
		OldStatus:      old,
		NewStatus:      next,
		ActorRole:      actor,
		OccurredAt:     s.now(),
	}

	s.logEvent(ctx, ev)

	for _, o := range s.observers {
		if err := o.HandleStatusChange(ctx, ev); err != nil {
			// Derived records converge later; the appointment itself is
			// already committed and stays authoritative.
			s.log.Warn().
				Err(err).
				Str("appointment_id", a.ID.String()).
				Str("new_status", string(next)).
				Msg("derived record synchronization failed")
		}
	}
}

func (s *Service) logEvent(ctx context.Context, ev StatusChange) {
	payload, err := json.Marshal(map[string]any{
		"old_status": string(ev.OldStatus),
		"new_status": string(ev.NewStatus),
		"actor_role": string(ev.ActorRole),
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to marshal event payload")
		payload = nil
	}

	apptID := ev.AppointmentID
	row := EventLog{
		EventType:     EventStatusChanged,
		AppointmentID: &apptID,
		Payload:       payload,
		CreatedAt:     ev.OccurredAt,
	}

	if err := s.repo.InsertEvent(ctx, row); err != nil {
		s.log.Warn().
			Err(err).
			Str("appointment_id", ev.AppointmentID.String()).
			Msg("failed to insert event log")
	}
}

func requireRole(actor Role, allowed ...Role) error {
	for _, r := range allowed {
		if actor == r {
			return nil
		}
	}
	return ErrRoleNotPermitted
}

func slotKey(practitionerID uuid.UUID, date time.Time, t availability.TimeOfDay) string {
	return fmt.Sprintf("%s:%s:%s", practitionerID, date.Format("2006-01-02"), t)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}

func clampOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
