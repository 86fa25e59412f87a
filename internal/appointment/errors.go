package appointment

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound      = errors.New("patient not found")
	ErrPractitionerNotFound = errors.New("practitioner not found")
	ErrAppointmentNotFound  = errors.New("appointment not found")

	// ErrConflict is the base class for slot contention failures. Both
	// SlotConflictError and the daily cap wrap it.
	ErrConflict = errors.New("booking conflict")

	ErrDailyCapExceeded = fmt.Errorf("%w: patient daily appointment limit reached", ErrConflict)

	ErrSlotBeingBooked         = errors.New("slot is currently being booked, please retry")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrRoleNotPermitted        = errors.New("actor role is not permitted to perform this transition")
)

// SlotConflictError identifies the appointment blocking a proposed slot.
type SlotConflictError struct {
	BlockingID uuid.UUID
	Start      string
	End        string
}

func (e *SlotConflictError) Error() string {
	return fmt.Sprintf("booking conflict: slot overlaps appointment %s (%s-%s)", e.BlockingID, e.Start, e.End)
}

func (e *SlotConflictError) Unwrap() error { return ErrConflict }
