package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/virtualcare/scheduling-engine/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(context.Background(), pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	gofakeit.Seed(time.Now().UnixNano())

	practitioners, err := seedPractitioners(context.Background(), pool, 50)
	if err != nil {
		log.Fatalf("seed practitioners: %v", err)
	}
	if err := seedPatients(context.Background(), pool, 2000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedAvailability(context.Background(), pool, practitioners); err != nil {
		log.Fatalf("seed availability: %v", err)
	}
	if err := seedBlackouts(context.Background(), pool, practitioners); err != nil {
		log.Fatalf("seed blackouts: %v", err)
	}

	log.Println("seed complete")
}

func seedPractitioners(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d practitioners", count)

	specialties := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
		"Ophthalmology",
		"ENT",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO practitioners (id, name, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, name, spec)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("practitioners seeded")
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			name := gofakeit.Name()
			email := gofakeit.Email()

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, id, name, email)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return nil
}

// seedAvailability gives every practitioner a Monday-to-Friday working
// week. Most get the classic 09:00-17:00 day with a lunch break; a few
// get shorter days or longer slots so the calendar is not uniform.
func seedAvailability(ctx context.Context, pool *pgxpool.Pool, practitioners []uuid.UUID) error {
	log.Printf("seeding availability for %d practitioners", len(practitioners))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, pid := range practitioners {
		open, close := "09:00", "17:00"
		slotMins := 30
		breakStart, breakEnd := "12:00", "14:00"

		switch gofakeit.Number(0, 3) {
		case 1:
			open, close = "08:00", "13:00"
			breakStart, breakEnd = "", ""
		case 2:
			slotMins = 45
		case 3:
			slotMins = 60
			breakStart, breakEnd = "12:00", "13:00"
		}

		for weekday := 1; weekday <= 5; weekday++ {
			var bs, be any
			if breakStart != "" {
				bs, be = breakStart, breakEnd
			}
			_, err := tx.Exec(ctx, `
				INSERT INTO availability_rules
					(id, practitioner_id, weekday, open_time, close_time, slot_minutes, break_start, break_end, active, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, true, now(), now())
			`, uuid.New(), pid, weekday, open, close, slotMins, bs, be)
			if err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("availability seeded")
	return nil
}

// seedBlackouts gives roughly a third of the practitioners one upcoming
// blackout period a few weeks out.
func seedBlackouts(ctx context.Context, pool *pgxpool.Pool, practitioners []uuid.UUID) error {
	log.Println("seeding blackouts")

	categories := []string{"vacation", "training", "sick_leave", "personal", "other"}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	seeded := 0
	for _, pid := range practitioners {
		if gofakeit.Number(0, 2) != 0 {
			continue
		}

		start := time.Now().AddDate(0, 0, gofakeit.Number(7, 45))
		end := start.AddDate(0, 0, gofakeit.Number(0, 9))
		category := categories[gofakeit.Number(0, len(categories)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO blackout_periods
				(id, practitioner_id, start_date, end_date, category, full_day, note, created_at)
			VALUES ($1, $2, $3, $4, $5, true, $6, now())
		`, uuid.New(), pid, start.Format("2006-01-02"), end.Format("2006-01-02"), category, gofakeit.Sentence(6))
		if err != nil {
			return err
		}
		seeded++
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Printf("blackouts seeded: %d", seeded)
	return nil
}
