// Package app assembles the engine's components into the HTTP router.
package app

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vigilo/platform/internal/auth"
	"github.com/vigilo/platform/internal/guard"
	"github.com/vigilo/platform/internal/handler"
	adminhandler "github.com/vigilo/platform/internal/handler/admin"
	"github.com/vigilo/platform/internal/infra"
	"github.com/vigilo/platform/internal/monitor"
	"github.com/vigilo/platform/internal/policy"
	"github.com/vigilo/platform/internal/repository"
	"github.com/vigilo/platform/internal/risk"
	"github.com/vigilo/platform/internal/service"
	"github.com/vigilo/platform/internal/stepup"
	"github.com/vigilo/platform/internal/threatintel"
)

// RouterDeps holds all dependencies needed by NewRouter.
type RouterDeps struct {
	Pool      *pgxpool.Pool
	JWTMgr    *auth.JWTManager
	Locations risk.LocationResolver
	Threat    threatintel.ReputationClient
	Producer  *infra.KafkaProducer
	Logger    *slog.Logger

	StepUpSecret string
	SweepWorkers int64
	// RateLimit is the per-client request budget per minute on the
	// evaluation and threat endpoints.
	RateLimit int
}

// NewRouter assembles the chi.Router with all routes and middleware.
func NewRouter(deps RouterDeps) chi.Router {
	pool := deps.Pool
	logger := deps.Logger

	// Repositories
	policyRepo := repository.NewPolicyRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)
	deviceRepo := repository.NewDeviceRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)

	// Engine components
	scorer := risk.NewScorer(deviceRepo, deps.Locations, auditRepo, logger)
	resolver := policy.NewResolver(policyRepo, logger)
	policyAdmin := policy.NewAdmin(policyRepo)
	stepupMgr := stepup.NewManager(deps.StepUpSecret)
	sessionMonitor := monitor.NewMonitor(sessionRepo, auditRepo, scorer, auditRepo, deps.Producer, logger)
	gateway := threatintel.NewGateway(deps.Threat, auditRepo, sessionRepo, logger)
	lockout := guard.NewStepUpLockout(pool)
	limiter := guard.NewRateLimiter(deps.RateLimit, time.Minute)

	// Services
	accessSvc := service.NewAccessService(scorer, resolver, stepupMgr, deviceRepo, sessionRepo, auditRepo, deps.Producer, lockout, logger)

	// Handlers
	accessHandler := handler.NewAccessHandler(accessSvc)
	monitorHandler := handler.NewMonitorHandler(sessionMonitor, deps.SweepWorkers)
	threatHandler := handler.NewThreatHandler(gateway, auditRepo, deps.Producer, logger)
	policiesAdmin := adminhandler.NewPoliciesHandler(policyAdmin)

	// Router
	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger))
	r.Use(handler.CORS)
	r.Use(handler.JSONContentType)

	// Health (no auth)
	r.Get("/health", handler.HealthHandler(pool))

	// Service-authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(auth.AuthenticateService(deps.JWTMgr))

		r.Route("/access", func(r chi.Router) {
			r.Use(handler.RateLimit(limiter))
			r.Post("/evaluate", accessHandler.Evaluate)
			r.Post("/stepup/verify", accessHandler.VerifyStepUp)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/summary", monitorHandler.Summary)
			r.Post("/sweep", monitorHandler.Sweep)
			r.Post("/{sessionID}/reevaluate", monitorHandler.Reevaluate)
			r.Get("/{sessionID}/health", monitorHandler.Health)
			r.Post("/{sessionID}/enrich", threatHandler.Enrich)
		})

		r.Route("/threat", func(r chi.Router) {
			r.Use(handler.RateLimit(limiter))
			r.Post("/check", threatHandler.Check)
			r.Get("/reputation/{ip}", threatHandler.Reputation)
		})
	})

	// Operator-authenticated routes
	r.Route("/admin", func(r chi.Router) {
		r.Use(auth.AuthenticateOperator(deps.JWTMgr))

		r.Route("/policies", func(r chi.Router) {
			write := auth.RequireRole(auth.WriteRoles()...)

			r.Get("/", policiesAdmin.List)
			r.Get("/{policyID}", policiesAdmin.Get)
			r.With(write).Post("/", policiesAdmin.Create)
			r.With(write).Patch("/{policyID}", policiesAdmin.Update)
			r.With(write).Post("/{policyID}/toggle", policiesAdmin.Toggle)
			r.With(write).Delete("/{policyID}", policiesAdmin.Delete)
		})
	})

	return r
}
