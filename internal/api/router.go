package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/medibook/slot-booking/internal/auth"
	"github.com/medibook/slot-booking/internal/metrics"
	"github.com/medibook/slot-booking/internal/realtime"
)

type RouterConfig struct {
	Booking       BookingService
	Notifications NotificationService
	Hub           *realtime.Hub
	Verifier      *auth.Verifier
	PgPool        *pgxpool.Pool
	Redis         *redis.Client
	Collector     *metrics.Collector
	Log           *zap.Logger
	Env           string
	Version       string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))
	if cfg.Collector != nil {
		r.Use(MetricsMiddleware(cfg.Collector))
	}

	// Health and metrics stay unauthenticated.
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	h := NewHandlers(cfg.Booking, cfg.Notifications, cfg.Hub, cfg.Collector, cfg.Log)

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Verifier))

		r.Post("/appointments", h.bookAppointment)
		r.Get("/appointments", h.listAppointments)
		r.Get("/appointments/{id}", h.getAppointment)
		r.Post("/appointments/{id}/status", h.updateAppointmentStatus)
		r.Delete("/appointments/{id}", h.deleteAppointment)

		r.Get("/doctors/{doctorID}/slots", h.listSlots)
		r.Post("/doctors/{doctorID}/slots", h.defineSlot)
		r.Delete("/doctors/{doctorID}/slots/{slotID}", h.deleteSlot)
		r.Get("/doctors/{doctorID}/slots/watch", h.watchSlots)

		r.Get("/notifications", h.listNotifications)
		r.Delete("/notifications", h.clearNotifications)
	})

	return r
}
