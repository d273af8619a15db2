package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/careslot/careslot/internal/booking"
	"github.com/careslot/careslot/internal/clinic"
	"github.com/careslot/careslot/internal/identity"
	"github.com/careslot/careslot/internal/payment"
	"github.com/careslot/careslot/internal/post"
	"github.com/careslot/careslot/internal/slot"
	"github.com/careslot/careslot/internal/subscription"
)

type RouterConfig struct {
	Bookings      *booking.Service
	Subscriptions *subscription.Service
	Slots         *slot.Service
	Clinics       clinic.Repository
	Posts         post.Repository
	Gateway       payment.Gateway
	JWTSecret     string
	PgPool        *pgxpool.Pool
	Redis         *redis.Client
	Env           string
	Version       string
	Logger        zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Route("/api", func(r chi.Router) {
		r.Use(identity.Middleware(cfg.JWTSecret))

		r.Route("/appointments", func(r chi.Router) {
			r.Post("/prepare", prepareAppointmentHandler(cfg.Bookings))
			r.Post("/", finalizeAppointmentHandler(cfg.Bookings))
			r.Get("/", listAppointmentsHandler(cfg.Bookings))
			r.Get("/{id}", getAppointmentHandler(cfg.Bookings))
			r.Post("/{id}/cancel", cancelAppointmentHandler(cfg.Bookings))
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Post("/", createSubscriptionHandler(cfg.Subscriptions))
			r.Get("/active", activeSubscriptionHandler(cfg.Subscriptions))
			r.Post("/renew/prepare", prepareRenewalHandler(cfg.Subscriptions))
			r.Post("/renew", finalizeRenewalHandler(cfg.Subscriptions))
		})

		r.Route("/payments", func(r chi.Router) {
			// Checkout talks to the external gateway, keep abusers off it.
			r.Use(httprate.LimitByIP(30, time.Minute))
			r.Post("/checkout", checkoutHandler(cfg.Gateway))
			// Activation lands here rather than under /subscriptions so the
			// client flow mirrors checkout: pay, then verify.
			r.Post("/verify", verifySubscriptionHandler(cfg.Subscriptions))
		})

		r.Route("/clinics", func(r chi.Router) {
			r.Post("/", createClinicHandler(cfg.Clinics, cfg.Subscriptions))
			r.Get("/", listClinicsHandler(cfg.Clinics))
			r.Get("/{id}", getClinicHandler(cfg.Clinics))
			r.Post("/{id}/slots/generate", generateClinicSlotsHandler(cfg.Slots, cfg.Clinics, cfg.Subscriptions))
		})

		r.Get("/doctors/{id}/slots", listDoctorSlotsHandler(cfg.Slots))

		r.Route("/slots", func(r chi.Router) {
			r.Post("/", createSlotHandler(cfg.Slots))
			r.Get("/{id}", getSlotHandler(cfg.Slots))
			r.Post("/{id}/hold", transitionSlotHandler(cfg.Slots, slot.Hold))
			r.Post("/{id}/block", transitionSlotHandler(cfg.Slots, slot.Blocked))
		})

		r.Post("/posts", createPostHandler(cfg.Subscriptions, cfg.Posts))
	})

	return r
}
