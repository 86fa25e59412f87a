package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied idempotently at startup. The partial unique index
// appointments_slot_active_uniq is the engine's core correctness guard: at
// most one pending or confirmed appointment may hold one practitioner slot,
// regardless of how many requests race the application-level check.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS patients (
		id          uuid PRIMARY KEY,
		name        text NOT NULL,
		email       text,
		created_at  timestamptz NOT NULL DEFAULT now(),
		updated_at  timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS practitioners (
		id          uuid PRIMARY KEY,
		name        text NOT NULL,
		specialty   text,
		created_at  timestamptz NOT NULL DEFAULT now(),
		updated_at  timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS availability_rules (
		id              uuid PRIMARY KEY,
		practitioner_id uuid NOT NULL REFERENCES practitioners(id),
		weekday         smallint NOT NULL CHECK (weekday BETWEEN 0 AND 6),
		open_time       text NOT NULL,
		close_time      text NOT NULL,
		slot_minutes    int NOT NULL CHECK (slot_minutes BETWEEN 15 AND 120),
		break_start     text,
		break_end       text,
		active          boolean NOT NULL DEFAULT true,
		created_at      timestamptz NOT NULL DEFAULT now(),
		updated_at      timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS availability_rules_weekday_active_uniq
		ON availability_rules (practitioner_id, weekday)
		WHERE active`,
	`CREATE TABLE IF NOT EXISTS blackout_periods (
		id              uuid PRIMARY KEY,
		practitioner_id uuid NOT NULL REFERENCES practitioners(id),
		start_date      date NOT NULL,
		end_date        date NOT NULL CHECK (end_date >= start_date),
		category        text NOT NULL,
		full_day        boolean NOT NULL DEFAULT true,
		start_time      text,
		end_time        text,
		note            text NOT NULL DEFAULT '',
		created_at      timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS appointments (
		id              uuid PRIMARY KEY,
		patient_id      uuid NOT NULL REFERENCES patients(id),
		practitioner_id uuid NOT NULL REFERENCES practitioners(id),
		date            date NOT NULL,
		start_time      text NOT NULL,
		minutes         int NOT NULL DEFAULT 30,
		modality        text NOT NULL DEFAULT 'in_person',
		reason          text NOT NULL DEFAULT '',
		status          text NOT NULL DEFAULT 'pending',
		original_date   date,
		original_time   text,
		created_at      timestamptz NOT NULL DEFAULT now(),
		updated_at      timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS appointments_slot_active_uniq
		ON appointments (practitioner_id, date, start_time)
		WHERE status IN ('pending', 'confirmed')`,
	`CREATE INDEX IF NOT EXISTS appointments_patient_date_idx
		ON appointments (patient_id, date)`,
	`CREATE TABLE IF NOT EXISTS visit_records (
		id              uuid PRIMARY KEY,
		appointment_id  uuid NOT NULL UNIQUE REFERENCES appointments(id),
		patient_id      uuid NOT NULL,
		practitioner_id uuid NOT NULL,
		date            date NOT NULL,
		start_time      text NOT NULL,
		status          text NOT NULL DEFAULT 'scheduled',
		created_at      timestamptz NOT NULL DEFAULT now(),
		updated_at      timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS remote_sessions (
		id              uuid PRIMARY KEY,
		visit_record_id uuid NOT NULL UNIQUE REFERENCES visit_records(id),
		channel_id      text NOT NULL UNIQUE,
		created_at      timestamptz NOT NULL DEFAULT now(),
		ended_at        timestamptz
	)`,
	`CREATE TABLE IF NOT EXISTS event_logs (
		id             bigserial PRIMARY KEY,
		event_type     text NOT NULL,
		appointment_id uuid,
		payload        jsonb,
		created_at     timestamptz NOT NULL DEFAULT now()
	)`,
}

// Migrate applies the schema statements in order.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
