package controller

import (
	"net/http"
	"time"

	"github.com/cassiomorais/realestate/internal/domain/idempotency"
	"github.com/cassiomorais/realestate/internal/infrastructure/config"
	"github.com/cassiomorais/realestate/internal/infrastructure/observability"
	customMW "github.com/cassiomorais/realestate/internal/middleware"
	"github.com/cassiomorais/realestate/internal/service"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type RouterDeps struct {
	DBPing          PingFunc
	RedisPing       PingFunc
	UserService     *service.UserService
	AuthzService    *service.AuthzService
	PropertyService *service.PropertyService
	PurchaseService *service.PurchaseService
	JobService      *service.PaymentJobService
	StatsService    *service.StatisticsService
	IdempotencyRepo idempotency.Repository
	Metrics         *observability.Metrics
	Gatherer        prometheus.Gatherer
	JWTSecret       string
	RateLimit       int
	CORSConfig      config.CORSConfig
	Logger          zerolog.Logger
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(customMW.SecurityHeaders())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSConfig.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link", "Location"},
		AllowCredentials: deps.CORSConfig.AllowCredentials,
		MaxAge:           300,
	}))
	if deps.RateLimit > 0 {
		r.Use(customMW.RateLimit(deps.RateLimit))
	}
	if deps.Metrics != nil {
		r.Use(customMW.Metrics(deps.Metrics))
	}

	healthH := NewHealthController(deps.DBPing, deps.RedisPing)
	authH := NewAuthController(deps.UserService, deps.AuthzService)
	propertyH := NewPropertyController(deps.PropertyService)
	purchaseH := NewPurchaseController(deps.PurchaseService, deps.JobService, deps.AuthzService)
	statsH := NewStatsController(deps.StatsService)
	adminH := NewAdminController(deps.UserService)

	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	r.Handle("/metrics", metricsHandler(deps.Gatherer))

	r.Get("/", statsH.Home)

	requireAuth := customMW.RequireAuth(deps.JWTSecret)

	r.Route("/api/v1", func(r chi.Router) {
		// Public
		r.Post("/auth/register", authH.Register)
		r.Post("/auth/login", authH.Login)
		r.Get("/properties", propertyH.List)
		r.Get("/properties/{id}/photo", propertyH.Photo)
		r.Get("/stats", statsH.Stats)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Get("/me", authH.Me)
			r.Get("/me/payments", purchaseH.MyPayments)

			r.Post("/properties", propertyH.Create)
			r.Get("/properties/{id}", propertyH.Get)
			r.Put("/properties/{id}", propertyH.Update)
			r.Delete("/properties/{id}", propertyH.Delete)
			r.Post("/properties/{id}/photo", propertyH.UploadPhoto)

			// Idempotency runs after auth so keys are scoped per user.
			r.With(customMW.Idempotency(deps.IdempotencyRepo, deps.Logger)).
				Post("/properties/{id}/purchase", purchaseH.Purchase)
			r.Get("/jobs/{id}", purchaseH.Job)

			r.Route("/admin", func(r chi.Router) {
				r.Use(customMW.RequireAdmin)
				r.Get("/users", adminH.ListUsers)
				r.Put("/users/{id}/active", adminH.SetActive)
				r.Put("/users/{id}/admin", adminH.SetAdmin)
			})
		})
	})

	return r
}

func metricsHandler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
