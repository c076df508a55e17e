package routes

import (
	"log/slog"

	"github.com/BradenHooton/sentinel/internal/auth"
	"github.com/BradenHooton/sentinel/internal/handlers"
	"github.com/BradenHooton/sentinel/internal/middleware"
	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/go-chi/chi/v5"
)

// Handlers groups the HTTP handlers mounted by RegisterRoutes
type Handlers struct {
	Admission      *handlers.AdmissionHandler
	TwoFactor      *handlers.TwoFactorHandler
	AccessRequests *handlers.AccessRequestHandler
	Accounts       *handlers.AccountHandler
	Audit          *handlers.AuditHandler
}

// Security holds what the route guards need
type Security struct {
	TokenManager *auth.TokenManager
	Revocations  auth.TokenRevocationChecker
	Accounts     auth.AccountFetcher
	RateLimit    middleware.RateLimitConfig
	Logger       *slog.Logger
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, h Handlers, sec Security) {
	limited := router.With(middleware.RateLimitByIP(sec.RateLimit))

	// Public admission routes
	limited.Post("/auth/login", h.Admission.Login)
	limited.Post("/auth/face-login", h.Admission.FaceLogin)
	limited.Post("/auth/2fa/verify", h.Admission.VerifyTwoFactor)

	router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(sec.TokenManager, sec.Revocations, sec.Logger))

		r.Post("/auth/logout", h.Admission.Logout)

		r.Post("/access-requests", h.AccessRequests.Create)
		r.Get("/access-requests/mine", h.AccessRequests.ListMine)

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireRole(sec.Accounts, models.RoleAdmin))

			r.Get("/2fa", h.TwoFactor.Status)
			r.Post("/2fa/enroll", h.TwoFactor.Enroll)
			r.Post("/2fa/confirm", h.TwoFactor.Confirm)
			r.Delete("/2fa", h.TwoFactor.Disable)

			r.Get("/access-requests", h.AccessRequests.List)
			r.Post("/access-requests/{id}/decision", h.AccessRequests.Decide)

			r.Get("/accounts", h.Accounts.List)
			r.Post("/accounts", h.Accounts.Create)
			r.Put("/accounts/{id}", h.Accounts.Update)
			r.Delete("/accounts/{id}", h.Accounts.Delete)

			r.Get("/audit-events", h.Audit.ListEvents)
			r.Get("/activity/daily", h.Audit.DailyActivity)
			r.Get("/dashboard", h.Audit.Dashboard)

			r.Get("/notifications", h.Audit.ListNotifications)
			r.Post("/notifications/read-all", h.Audit.AcknowledgeAll)
			r.Post("/notifications/{id}/read", h.Audit.Acknowledge)
		})
	})
}
