package visit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/virtualcare/scheduling-engine/internal/availability"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanRecord(row pgx.Row) (*Record, error) {
	var r Record
	var status, startTime string

	err := row.Scan(
		&r.ID,
		&r.AppointmentID,
		&r.PatientID,
		&r.PractitionerID,
		&r.Date,
		&startTime,
		&status,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVisitNotFound
		}
		return nil, err
	}

	r.Status = VisitStatus(status)
	if r.Time, err = availability.ParseTimeOfDay(startTime); err != nil {
		return nil, err
	}

	return &r, nil
}

func scanSession(row pgx.Row) (*RemoteSession, error) {
	var s RemoteSession
	var endedAt *time.Time

	err := row.Scan(
		&s.ID,
		&s.VisitRecordID,
		&s.ChannelID,
		&s.CreatedAt,
		&endedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	s.EndedAt = endedAt
	return &s, nil
}

const recordColumns = `id, appointment_id, patient_id, practitioner_id, date, start_time, status, created_at, updated_at`

// Interface methods

func (r *PgRepository) GetByAppointmentID(ctx context.Context, appointmentID uuid.UUID) (*Record, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM visit_records
		WHERE appointment_id = $1
	`, appointmentID)
	return scanRecord(row)
}

func (r *PgRepository) CreateRecord(ctx context.Context, rec *Record) (*Record, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO visit_records
			(id, appointment_id, patient_id, practitioner_id, date, start_time, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		ON CONFLICT (appointment_id) DO UPDATE SET
			updated_at = now()
		RETURNING `+recordColumns+`
	`,
		rec.ID,
		rec.AppointmentID,
		rec.PatientID,
		rec.PractitionerID,
		availability.DateOnly(rec.Date),
		rec.Time.String(),
		string(rec.Status),
	)
	return scanRecord(row)
}

func (r *PgRepository) UpdateRecordStatus(ctx context.Context, id uuid.UUID, status VisitStatus) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE visit_records
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
	`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVisitNotFound
	}
	return nil
}

func (r *PgRepository) UpdateRecordTiming(ctx context.Context, id uuid.UUID, date time.Time, startTime string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE visit_records
		SET date = $2,
		    start_time = $3,
		    updated_at = now()
		WHERE id = $1
	`, id, availability.DateOnly(date), startTime)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVisitNotFound
	}
	return nil
}

func (r *PgRepository) GetSessionByVisitID(ctx context.Context, visitID uuid.UUID) (*RemoteSession, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, visit_record_id, channel_id, created_at, ended_at
		FROM remote_sessions
		WHERE visit_record_id = $1
	`, visitID)
	return scanSession(row)
}

func (r *PgRepository) CreateSession(ctx context.Context, s *RemoteSession) (*RemoteSession, error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO remote_sessions (id, visit_record_id, channel_id, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (visit_record_id) DO UPDATE SET
			visit_record_id = EXCLUDED.visit_record_id
		RETURNING id, visit_record_id, channel_id, created_at, ended_at
	`, s.ID, s.VisitRecordID, s.ChannelID)
	return scanSession(row)
}

func (r *PgRepository) EndSession(ctx context.Context, id uuid.UUID, endedAt time.Time) error {
	// Already-ended sessions are left untouched so replayed events stay
	// idempotent.
	_, err := r.pool.Exec(ctx, `
		UPDATE remote_sessions
		SET ended_at = $2
		WHERE id = $1
		  AND ended_at IS NULL
	`, id, endedAt)
	return err
}
