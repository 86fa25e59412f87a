package visit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/virtualcare/scheduling-engine/internal/appointment"
)

// Synchronizer keeps visit records and remote sessions converged with
// appointment transitions. It reacts to committed StatusChange events; the
// appointment is the source of truth, so every failure here is reported to
// the caller as a plain error and downgraded to a warning there.
type Synchronizer struct {
	repo Repository
	log  zerolog.Logger
	now  func() time.Time
}

func NewSynchronizer(repo Repository, log zerolog.Logger) *Synchronizer {
	return &Synchronizer{
		repo: repo,
		log:  log,
		now:  time.Now,
	}
}

// WithClock overrides the synchronizer clock, for tests.
func (s *Synchronizer) WithClock(now func() time.Time) *Synchronizer {
	s.now = now
	return s
}

// HandleStatusChange applies one transition event to the derived records.
func (s *Synchronizer) HandleStatusChange(ctx context.Context, ev appointment.StatusChange) error {
	switch ev.NewStatus {
	case appointment.StatusPending:
		// Nothing derived exists until the first confirmation.
		return nil

	case appointment.StatusConfirmed:
		rec, err := s.ensureRecord(ctx, ev)
		if err != nil {
			return err
		}
		if rec.Status != VisitScheduled {
			if err := s.repo.UpdateRecordStatus(ctx, rec.ID, VisitScheduled); err != nil {
				return fmt.Errorf("mark visit scheduled: %w", err)
			}
		}
		if ev.Modality == appointment.ModalityRemote {
			if err := s.ensureSession(ctx, rec.ID); err != nil {
				return err
			}
		}
		return nil

	case appointment.StatusRescheduled:
		// A reschedule before the first confirmation has nothing to move.
		rec, err := s.repo.GetByAppointmentID(ctx, ev.AppointmentID)
		if err != nil {
			if errors.Is(err, ErrVisitNotFound) {
				return nil
			}
			return fmt.Errorf("load visit record: %w", err)
		}
		if err := s.repo.UpdateRecordTiming(ctx, rec.ID, ev.Date, ev.Time.String()); err != nil {
			return fmt.Errorf("move visit record: %w", err)
		}
		return nil

	case appointment.StatusCancelled:
		return s.closeOut(ctx, ev, VisitCancelled)

	case appointment.StatusCompleted:
		return s.closeOut(ctx, ev, VisitCompleted)

	default:
		return fmt.Errorf("unknown appointment status %q", ev.NewStatus)
	}
}

// closeOut marks the visit with a terminal status and ends any remote
// session. Events arriving before the record exists still create it, so
// out-of-order delivery converges.
func (s *Synchronizer) closeOut(ctx context.Context, ev appointment.StatusChange, status VisitStatus) error {
	rec, err := s.ensureRecord(ctx, ev)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateRecordStatus(ctx, rec.ID, status); err != nil {
		return fmt.Errorf("mark visit %s: %w", status, err)
	}

	session, err := s.repo.GetSessionByVisitID(ctx, rec.ID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil
		}
		return fmt.Errorf("load remote session: %w", err)
	}
	if session.EndedAt == nil {
		if err := s.repo.EndSession(ctx, session.ID, s.now()); err != nil {
			return fmt.Errorf("end remote session: %w", err)
		}
	}
	return nil
}

func (s *Synchronizer) ensureRecord(ctx context.Context, ev appointment.StatusChange) (*Record, error) {
	rec, err := s.repo.GetByAppointmentID(ctx, ev.AppointmentID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrVisitNotFound) {
		return nil, fmt.Errorf("load visit record: %w", err)
	}

	created, err := s.repo.CreateRecord(ctx, &Record{
		AppointmentID:  ev.AppointmentID,
		PatientID:      ev.PatientID,
		PractitionerID: ev.PractitionerID,
		Date:           ev.Date,
		Time:           ev.Time,
		Status:         VisitScheduled,
	})
	if err != nil {
		return nil, fmt.Errorf("create visit record: %w", err)
	}

	s.log.Info().
		Str("appointment_id", ev.AppointmentID.String()).
		Str("visit_id", created.ID.String()).
		Msg("visit record created")

	return created, nil
}

func (s *Synchronizer) ensureSession(ctx context.Context, visitID uuid.UUID) error {
	_, err := s.repo.GetSessionByVisitID(ctx, visitID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrSessionNotFound) {
		return fmt.Errorf("load remote session: %w", err)
	}

	_, err = s.repo.CreateSession(ctx, &RemoteSession{
		VisitRecordID: visitID,
		ChannelID:     uuid.NewString(),
	})
	if err != nil {
		return fmt.Errorf("create remote session: %w", err)
	}
	return nil
}
