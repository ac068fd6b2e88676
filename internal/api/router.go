package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Sudhaanshuu/Arogyam/internal/booking"
	"github.com/Sudhaanshuu/Arogyam/internal/calendar"
	"github.com/Sudhaanshuu/Arogyam/internal/metrics"
)

type RouterConfig struct {
	Service      *booking.Service
	CalendarRepo calendar.Repository
	PgPool       *pgxpool.Pool
	Redis        *redis.Client
	Log          *zap.Logger
	Metrics      *metrics.Collector
	RateLimit    int
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))
	r.Use(MetricsMiddleware(cfg.Metrics))
	if cfg.RateLimit > 0 {
		r.Use(httprate.LimitByIP(cfg.RateLimit, time.Minute))
	}
	r.Use(IdentityMiddleware)

	// Health and metrics
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	// Availability
	r.Get("/availability", queryAvailabilityHandler(cfg.Service))

	// Bookings
	r.Post("/bookings", createBookingHandler(cfg.Service))
	r.Get("/bookings", listBookingsHandler(cfg.Service))
	r.Get("/bookings/{id}", getBookingHandler(cfg.Service))
	r.Patch("/bookings/{id}", rescheduleBookingHandler(cfg.Service))
	r.Post("/bookings/{id}/confirm", confirmBookingHandler(cfg.Service))
	r.Post("/bookings/{id}/cancel", cancelBookingHandler(cfg.Service))

	// Practitioner directory and schedule templates
	r.Get("/practitioners", listPractitionersHandler(cfg.CalendarRepo))
	r.Get("/practitioners/{id}/schedule", getScheduleHandler(cfg.CalendarRepo))
	r.Put("/practitioners/{id}/schedule", replaceScheduleHandler(cfg.CalendarRepo))
	r.Post("/practitioners/{id}/exceptions", createExceptionHandler(cfg.CalendarRepo))

	return r
}
