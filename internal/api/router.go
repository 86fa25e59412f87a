package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/virtualcare/scheduling-engine/internal/appointment"
	"github.com/virtualcare/scheduling-engine/internal/availability"
)

type RouterConfig struct {
	Appointments *appointment.Service
	Availability *availability.Service
	PgPool       *pgxpool.Pool
	Redis        *redis.Client
	Log          zerolog.Logger
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Practitioner calendar endpoints
	r.Route("/practitioners/{id}", func(r chi.Router) {
		r.Get("/availability-rules", listRulesHandler(cfg.Availability))
		r.Put("/availability-rules", upsertRuleHandler(cfg.Availability))
		r.Get("/blackouts", listBlackoutsHandler(cfg.Availability))
		r.Post("/blackouts", upsertBlackoutHandler(cfg.Availability))
		r.Get("/schedule", dayScheduleHandler(cfg.Availability))
		r.Get("/next-available", nextAvailableHandler(cfg.Availability))
	})

	// Appointment endpoints
	r.Post("/appointments", createAppointmentHandler(cfg.Appointments))
	r.Get("/appointments", listAppointmentsHandler(cfg.Appointments))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Appointments))
	r.Post("/appointments/{id}/confirm", confirmAppointmentHandler(cfg.Appointments))
	r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Appointments))
	r.Post("/appointments/{id}/reschedule", rescheduleAppointmentHandler(cfg.Appointments))
	r.Post("/appointments/{id}/complete", completeAppointmentHandler(cfg.Appointments))

	return r
}
