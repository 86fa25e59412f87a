package visit

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/virtualcare/scheduling-engine/internal/availability"
)

var (
	ErrVisitNotFound   = errors.New("visit record not found")
	ErrSessionNotFound = errors.New("remote session not found")
)

// VisitStatus is the reduced status a visit record mirrors from its
// appointment.
type VisitStatus string

const (
	VisitScheduled VisitStatus = "scheduled"
	VisitCompleted VisitStatus = "completed"
	VisitCancelled VisitStatus = "cancelled"
)

// Record is the derived visit for one appointment. It is created on the
// first confirmation and only ever mutated by the synchronizer.
type Record struct {
	ID             uuid.UUID
	AppointmentID  uuid.UUID
	PatientID      uuid.UUID
	PractitionerID uuid.UUID
	Date           time.Time
	Time           availability.TimeOfDay
	Status         VisitStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RemoteSession holds the video channel for a remote visit. EndedAt is
// stamped when the visit concludes or is cancelled.
type RemoteSession struct {
	ID            uuid.UUID
	VisitRecordID uuid.UUID
	ChannelID     string
	CreatedAt     time.Time
	EndedAt       *time.Time
}
