package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/dental-agenda/internal/agenda"
	"github.com/hackgods/dental-agenda/internal/auth"
	"github.com/hackgods/dental-agenda/internal/metrics"
)

type RouterConfig struct {
	Service   *agenda.Service
	Projector *agenda.Projector
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	Env       string
	Version   string
	Logger    zerolog.Logger
	JWTSecret string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", metrics.Handler())

	h := &handlers{
		svc:       cfg.Service,
		projector: cfg.Projector,
		logger:    cfg.Logger.With().Str("component", "api").Logger(),
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(cfg.JWTSecret))

		r.Get("/agenda/{day}", h.dayView)

		r.Post("/appointments", h.createAppointment)
		r.Get("/appointments/{id}", h.getAppointment)
		r.Patch("/appointments/{id}", h.updateAppointment)
		r.Delete("/appointments/{id}", h.deleteAppointment)
		r.Post("/appointments/{id}/move", h.moveAppointment)
		r.Put("/appointments/{id}/status", h.updateStatus)
		r.Post("/appointments/{id}/cancel", h.cancelAppointment)
	})

	return r
}
