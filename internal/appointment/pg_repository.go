package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/virtualcare/scheduling-engine/internal/availability"
)

const uniqueViolation = "23505"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	return &p, nil
}

func scanPractitioner(row pgx.Row) (*Practitioner, error) {
	var p Practitioner
	var specialty *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&specialty,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPractitionerNotFound
		}
		return nil, err
	}

	p.Specialty = specialty
	return &p, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status, modality, startTime string
	var originalTime *string

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.PractitionerID,
		&a.Date,
		&startTime,
		&a.Minutes,
		&modality,
		&a.Reason,
		&status,
		&a.OriginalDate,
		&originalTime,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Status = Status(status)
	a.Modality = Modality(modality)
	if a.Time, err = availability.ParseTimeOfDay(startTime); err != nil {
		return nil, err
	}
	if originalTime != nil {
		t, err := availability.ParseTimeOfDay(*originalTime)
		if err != nil {
			return nil, err
		}
		a.OriginalTime = &t
	}

	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func statusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

const appointmentColumns = `id, patient_id, practitioner_id, date, start_time, minutes, modality, reason, status, original_date, original_time, created_at, updated_at`

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetPractitionerByID(ctx context.Context, id uuid.UUID) (*Practitioner, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, created_at, updated_at
		FROM practitioners
		WHERE id = $1
	`, id)
	return scanPractitioner(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY date DESC, start_time DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (r *PgRepository) ListByPractitioner(ctx context.Context, practitionerID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE practitioner_id = $1
		ORDER BY date DESC, start_time DESC
		LIMIT $2 OFFSET $3
	`, practitionerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (r *PgRepository) ListActiveOnDate(ctx context.Context, practitionerID uuid.UUID, date time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE practitioner_id = $1
		  AND date = $2
		  AND status IN ('pending', 'confirmed')
		ORDER BY start_time
	`, practitionerID, availability.DateOnly(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (r *PgRepository) CountActiveForPatientOnDate(ctx context.Context, patientID uuid.UUID, date time.Time, excludeID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments
		WHERE patient_id = $1
		  AND date = $2
		  AND status IN ('pending', 'confirmed')
		  AND id <> $3
	`, patientID, availability.DateOnly(date), excludeID).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *PgRepository) Create(ctx context.Context, a *Appointment) (*Appointment, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments
			(id, patient_id, practitioner_id, date, start_time, minutes, modality, reason, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending', now(), now())
		RETURNING `+appointmentColumns+`
	`, a.ID, a.PatientID, a.PractitionerID, availability.DateOnly(a.Date), a.Time.String(), a.Minutes, string(a.Modality), a.Reason)

	created, err := scanAppointment(row)
	if err != nil {
		return nil, r.mapSlotViolation(ctx, err, a.PractitionerID, a.Date, a.Time, a.Minutes)
	}
	return created, nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from []Status, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = ANY($3)
		RETURNING `+appointmentColumns+`
	`, id, string(to), statusStrings(from))

	updated, err := scanAppointment(row)
	if err != nil {
		// Moving a rescheduled row back to pending or confirmed re-enters
		// the partial unique index and can collide with a concurrent
		// booking on the same slot.
		if current, getErr := r.GetAppointmentByID(ctx, id); getErr == nil {
			return nil, r.mapSlotViolation(ctx, err, current.PractitionerID, current.Date, current.Time, current.Minutes)
		}
		return nil, err
	}
	return updated, nil
}

func (r *PgRepository) Reschedule(ctx context.Context, id uuid.UUID, newDate time.Time, newTime availability.TimeOfDay, minutes int, snapshotOriginal bool) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET original_date = CASE WHEN $5 THEN date ELSE original_date END,
		    original_time = CASE WHEN $5 THEN start_time ELSE original_time END,
		    date = $2,
		    start_time = $3,
		    minutes = $4,
		    status = 'rescheduled',
		    updated_at = now()
		WHERE id = $1
		  AND status IN ('pending', 'confirmed', 'rescheduled')
		RETURNING `+appointmentColumns+`
	`, id, availability.DateOnly(newDate), newTime.String(), minutes, snapshotOriginal)

	moved, err := scanAppointment(row)
	if err != nil {
		if current, getErr := r.GetAppointmentByID(ctx, id); getErr == nil {
			return nil, r.mapSlotViolation(ctx, err, current.PractitionerID, newDate, newTime, minutes)
		}
		return nil, err
	}
	return moved, nil
}

// mapSlotViolation turns the partial unique index violation into a
// SlotConflictError naming the blocking appointment when it can be found.
func (r *PgRepository) mapSlotViolation(ctx context.Context, err error, practitionerID uuid.UUID, date time.Time, t availability.TimeOfDay, minutes int) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return err
	}

	conflict := &SlotConflictError{
		Start: t.String(),
		End:   t.Add(minutes).String(),
	}

	row := r.pool.QueryRow(ctx, `
		SELECT id
		FROM appointments
		WHERE practitioner_id = $1
		  AND date = $2
		  AND start_time = $3
		  AND status IN ('pending', 'confirmed')
		LIMIT 1
	`, practitionerID, availability.DateOnly(date), t.String())
	if scanErr := row.Scan(&conflict.BlockingID); scanErr != nil && !errors.Is(scanErr, pgx.ErrNoRows) {
		return fmt.Errorf("identify blocking appointment: %w", scanErr)
	}

	return conflict
}

func (r *PgRepository) FindDueBetween(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status IN ('pending', 'confirmed')
		  AND date + start_time::time >= $1
		  AND date + start_time::time < $2
		ORDER BY date, start_time
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

// ListBookedIntervals feeds the availability read path with the occupied
// stretches of a practitioner's day.
func (r *PgRepository) ListBookedIntervals(ctx context.Context, practitionerID uuid.UUID, date time.Time) ([]availability.BookedInterval, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT start_time, minutes
		FROM appointments
		WHERE practitioner_id = $1
		  AND date = $2
		  AND status IN ('pending', 'confirmed')
		ORDER BY start_time
	`, practitionerID, availability.DateOnly(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []availability.BookedInterval
	for rows.Next() {
		var startTime string
		var minutes int
		if err := rows.Scan(&startTime, &minutes); err != nil {
			return nil, err
		}
		start, err := availability.ParseTimeOfDay(startTime)
		if err != nil {
			return nil, err
		}
		result = append(result, availability.BookedInterval{Start: start, Minutes: minutes})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
