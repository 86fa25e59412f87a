package visit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository contains all DB interactions needed by the synchronizer.
type Repository interface {
	GetByAppointmentID(ctx context.Context, appointmentID uuid.UUID) (*Record, error)
	CreateRecord(ctx context.Context, r *Record) (*Record, error)
	UpdateRecordStatus(ctx context.Context, id uuid.UUID, status VisitStatus) error
	UpdateRecordTiming(ctx context.Context, id uuid.UUID, date time.Time, startTime string) error

	GetSessionByVisitID(ctx context.Context, visitID uuid.UUID) (*RemoteSession, error)
	CreateSession(ctx context.Context, s *RemoteSession) (*RemoteSession, error)
	EndSession(ctx context.Context, id uuid.UUID, endedAt time.Time) error
}
