package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/virtualcare/scheduling-engine/internal/appointment"
	"github.com/virtualcare/scheduling-engine/internal/availability"
	"github.com/virtualcare/scheduling-engine/internal/config"
	"github.com/virtualcare/scheduling-engine/internal/db"
	redisclient "github.com/virtualcare/scheduling-engine/internal/redis"
)

// The reminder worker is the scheduled-task collaborator sitting outside
// the engine: it periodically asks for due appointments and records a
// reminder event for each. Delivery of the reminders (mail, SMS) belongs
// to a downstream consumer of those events.
func main() {
	cfg, err := config.Load()
	if err != nil {
		startupLog := zerolog.New(os.Stderr)
		startupLog.Fatal().Err(err).Msg("config load error")
	}

	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "reminder-worker").Logger()
	log.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.WorkerInterval).
		Dur("window", cfg.ReminderWindow).
		Msg("reminder-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	repo := appointment.NewPgRepository(pgPool)
	availRepo := availability.NewPgRepository(pgPool)
	locker := redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
	svc := appointment.NewService(repo, availRepo, locker, cfg, log)

	// Run once at startup
	runOnce(rootCtx, svc, cfg, log)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping reminder worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, cfg, log)
		}
	}
}

func runOnce(ctx context.Context, svc *appointment.Service, cfg config.Config, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	due, err := svc.FindDueReminders(runCtx, start.In(cfg.ScheduleTZ), cfg.ReminderWindow)
	if err != nil {
		log.Error().Err(err).Msg("reminder run error")
		return
	}

	for _, appt := range due {
		log.Info().
			Str("appointment_id", appt.ID.String()).
			Str("patient_id", appt.PatientID.String()).
			Str("date", appt.Date.Format("2006-01-02")).
			Str("time", appt.Time.String()).
			Msg("appointment due for reminder")
	}

	log.Info().Int("due", len(due)).Dur("took", time.Since(start)).Msg("reminder run complete")
}
