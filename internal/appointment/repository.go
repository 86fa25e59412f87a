package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/virtualcare/scheduling-engine/internal/availability"
)

// Repository contains all DB interactions needed by the lifecycle service.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetPractitionerByID(ctx context.Context, id uuid.UUID) (*Practitioner, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)
	ListByPractitioner(ctx context.Context, practitionerID uuid.UUID, limit, offset int) ([]Appointment, error)

	// For conflict checks
	ListActiveOnDate(ctx context.Context, practitionerID uuid.UUID, date time.Time) ([]Appointment, error)
	CountActiveForPatientOnDate(ctx context.Context, patientID uuid.UUID, date time.Time, excludeID uuid.UUID) (int, error)

	// Creation and transitions surface the partial unique index violation
	// as a *SlotConflictError.
	Create(ctx context.Context, a *Appointment) (*Appointment, error)
	// UpdateStatus is a compare-and-swap: the row must currently hold one
	// of the from statuses or ErrAppointmentNotFound is returned.
	UpdateStatus(ctx context.Context, id uuid.UUID, from []Status, to Status) (*Appointment, error)
	// Reschedule moves date/time, adopts the new slot length, sets status
	// to rescheduled and, when snapshotOriginal is true, records the
	// pre-move date/time once.
	Reschedule(ctx context.Context, id uuid.UUID, newDate time.Time, newTime availability.TimeOfDay, minutes int, snapshotOriginal bool) (*Appointment, error)

	// Reminder worker query
	FindDueBetween(ctx context.Context, from, to time.Time) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
