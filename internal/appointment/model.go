package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/virtualcare/scheduling-engine/internal/availability"
)

type Status string

const (
	StatusPending     Status = "pending"
	StatusConfirmed   Status = "confirmed"
	StatusRescheduled Status = "rescheduled"
	StatusCancelled   Status = "cancelled"
	StatusCompleted   Status = "completed"
)

// Terminal reports whether no further transition can leave this status.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// Active reports whether the appointment occupies its slot. Only pending
// and confirmed appointments hold a slot for conflict purposes.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

var transitions = map[Status][]Status{
	StatusPending:     {StatusConfirmed, StatusRescheduled, StatusCancelled},
	StatusConfirmed:   {StatusRescheduled, StatusCancelled, StatusCompleted},
	StatusRescheduled: {StatusConfirmed, StatusRescheduled, StatusCancelled},
}

// CanTransition reports whether the lifecycle permits from -> to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Role string

const (
	RolePatient      Role = "patient"
	RolePractitioner Role = "practitioner"
	RoleAdmin        Role = "admin"
)

func ValidRole(r Role) bool {
	return r == RolePatient || r == RolePractitioner || r == RoleAdmin
}

type Modality string

const (
	ModalityInPerson Modality = "in_person"
	ModalityRemote   Modality = "remote"
)

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Practitioner struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Appointment struct {
	ID             uuid.UUID
	PatientID      uuid.UUID
	PractitionerID uuid.UUID
	Date           time.Time
	Time           availability.TimeOfDay
	Minutes        int
	Modality       Modality
	Reason         string
	Status         Status
	OriginalDate   *time.Time
	OriginalTime   *availability.TimeOfDay
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// StatusChange is the domain event emitted exactly once per committed
// lifecycle transition.
type StatusChange struct {
	AppointmentID  uuid.UUID
	PatientID      uuid.UUID
	PractitionerID uuid.UUID
	Date           time.Time
	Time           availability.TimeOfDay
	Modality       Modality
	OldStatus      Status
	NewStatus      Status
	ActorRole      Role
	OccurredAt     time.Time
}

// Observer reacts to committed transitions. Observer failures never fail
// the transition itself.
type Observer interface {
	HandleStatusChange(ctx context.Context, ev StatusChange) error
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
