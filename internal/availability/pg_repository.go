package availability

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanRule(row pgx.Row) (*Rule, error) {
	var r Rule
	var weekday int
	var openStr, closeStr string
	var breakStart, breakEnd *string

	err := row.Scan(
		&r.ID,
		&r.PractitionerID,
		&weekday,
		&openStr,
		&closeStr,
		&r.SlotMinutes,
		&breakStart,
		&breakEnd,
		&r.Active,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}

	r.Weekday = time.Weekday(weekday)
	if r.OpenTime, err = ParseTimeOfDay(openStr); err != nil {
		return nil, err
	}
	if r.CloseTime, err = ParseTimeOfDay(closeStr); err != nil {
		return nil, err
	}
	if r.BreakStart, err = parseOptionalTime(breakStart); err != nil {
		return nil, err
	}
	if r.BreakEnd, err = parseOptionalTime(breakEnd); err != nil {
		return nil, err
	}

	return &r, nil
}

func scanBlackout(row pgx.Row) (*Blackout, error) {
	var b Blackout
	var category string
	var startTime, endTime *string

	err := row.Scan(
		&b.ID,
		&b.PractitionerID,
		&b.StartDate,
		&b.EndDate,
		&category,
		&b.FullDay,
		&startTime,
		&endTime,
		&b.Note,
		&b.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBlackoutNotFound
		}
		return nil, err
	}

	b.Category = BlackoutCategory(category)
	if b.StartTime, err = parseOptionalTime(startTime); err != nil {
		return nil, err
	}
	if b.EndTime, err = parseOptionalTime(endTime); err != nil {
		return nil, err
	}

	return &b, nil
}

func parseOptionalTime(s *string) (*TimeOfDay, error) {
	if s == nil {
		return nil, nil
	}
	t, err := ParseTimeOfDay(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func optionalTimeString(t *TimeOfDay) *string {
	if t == nil {
		return nil
	}
	s := t.String()
	return &s
}

const ruleColumns = `id, practitioner_id, weekday, open_time, close_time, slot_minutes, break_start, break_end, active, created_at, updated_at`

// Interface methods

func (r *PgRepository) GetRuleByID(ctx context.Context, id uuid.UUID) (*Rule, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+ruleColumns+`
		FROM availability_rules
		WHERE id = $1
	`, id)
	return scanRule(row)
}

func (r *PgRepository) GetActiveRule(ctx context.Context, practitionerID uuid.UUID, weekday time.Weekday) (*Rule, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+ruleColumns+`
		FROM availability_rules
		WHERE practitioner_id = $1 AND weekday = $2 AND active
		ORDER BY updated_at DESC
		LIMIT 1
	`, practitionerID, int(weekday))
	return scanRule(row)
}

func (r *PgRepository) ListRules(ctx context.Context, practitionerID uuid.UUID) ([]Rule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+ruleColumns+`
		FROM availability_rules
		WHERE practitioner_id = $1
		ORDER BY weekday, open_time
	`, practitionerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRules(rows)
}

func (r *PgRepository) ListActiveRulesForWeekday(ctx context.Context, practitionerID uuid.UUID, weekday time.Weekday) ([]Rule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+ruleColumns+`
		FROM availability_rules
		WHERE practitioner_id = $1 AND weekday = $2 AND active
		ORDER BY open_time
	`, practitionerID, int(weekday))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRules(rows)
}

func collectRules(rows pgx.Rows) ([]Rule, error) {
	var result []Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) SaveRule(ctx context.Context, rule *Rule) (*Rule, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO availability_rules
			(id, practitioner_id, weekday, open_time, close_time, slot_minutes, break_start, break_end, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		ON CONFLICT (id) DO UPDATE SET
			weekday = EXCLUDED.weekday,
			open_time = EXCLUDED.open_time,
			close_time = EXCLUDED.close_time,
			slot_minutes = EXCLUDED.slot_minutes,
			break_start = EXCLUDED.break_start,
			break_end = EXCLUDED.break_end,
			active = EXCLUDED.active,
			updated_at = now()
		RETURNING `+ruleColumns+`
	`,
		rule.ID,
		rule.PractitionerID,
		int(rule.Weekday),
		rule.OpenTime.String(),
		rule.CloseTime.String(),
		rule.SlotMinutes,
		optionalTimeString(rule.BreakStart),
		optionalTimeString(rule.BreakEnd),
		rule.Active,
	)
	return scanRule(row)
}

const blackoutColumns = `id, practitioner_id, start_date, end_date, category, full_day, start_time, end_time, note, created_at`

func (r *PgRepository) ListBlackouts(ctx context.Context, practitionerID uuid.UUID) ([]Blackout, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+blackoutColumns+`
		FROM blackout_periods
		WHERE practitioner_id = $1
		ORDER BY start_date
	`, practitionerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBlackouts(rows)
}

func (r *PgRepository) ListBlackoutsInRange(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]Blackout, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+blackoutColumns+`
		FROM blackout_periods
		WHERE practitioner_id = $1
		  AND start_date <= $3
		  AND end_date >= $2
		ORDER BY start_date
	`, practitionerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBlackouts(rows)
}

func collectBlackouts(rows pgx.Rows) ([]Blackout, error) {
	var result []Blackout
	for rows.Next() {
		b, err := scanBlackout(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) SaveBlackout(ctx context.Context, b *Blackout) (*Blackout, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO blackout_periods
			(id, practitioner_id, start_date, end_date, category, full_day, start_time, end_time, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (id) DO UPDATE SET
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			category = EXCLUDED.category,
			full_day = EXCLUDED.full_day,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			note = EXCLUDED.note
		RETURNING `+blackoutColumns+`
	`,
		b.ID,
		b.PractitionerID,
		DateOnly(b.StartDate),
		DateOnly(b.EndDate),
		string(b.Category),
		b.FullDay,
		optionalTimeString(b.StartTime),
		optionalTimeString(b.EndTime),
		b.Note,
	)
	return scanBlackout(row)
}
