package routes

import (
	"github.com/aegisauth/aegis/internal/auth"
	"github.com/aegisauth/aegis/internal/handlers"
	"github.com/aegisauth/aegis/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	adminHandler *handlers.AdminHandler,
	tokenManager *auth.TokenManager,
) {
	// Public auth endpoints carry their own tighter edge limit on top
	// of the login admission gate.
	authRateLimit := middleware.RateLimitConfig{RequestsPerMinute: 10}

	router.With(middleware.RateLimitByIP(authRateLimit)).Post("/auth/login", authHandler.Login)
	router.With(middleware.RateLimitByIP(authRateLimit)).Post("/auth/refresh", authHandler.Refresh)

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(tokenManager))

		r.Post("/auth/logout", authHandler.Logout)
		r.Post("/auth/logout-all", authHandler.LogoutAll)
		r.Get("/auth/sessions", authHandler.ListSessions)
		r.Delete("/auth/sessions/{id}", authHandler.RevokeSession)

		// Admin-only security surface
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole("admin"))

			r.Get("/admin/config", adminHandler.ListConfig)
			r.Put("/admin/config/{key}", adminHandler.UpdateConfig)

			r.Get("/admin/events", adminHandler.ListEvents)
			r.Get("/admin/events/stats", adminHandler.EventStats)
			r.Post("/admin/events/{id}/review", adminHandler.ReviewEvent)

			r.Get("/admin/blocked-ips", adminHandler.ListBlockedIPs)
			r.Get("/admin/blocked-ips/stats", adminHandler.BlocklistStats)
			r.Post("/admin/blocked-ips", adminHandler.BlockIP)
			r.Delete("/admin/blocked-ips/{ip}", adminHandler.UnblockIP)

			r.Get("/admin/alerts", adminHandler.ListAlerts)
			r.Get("/admin/alerts/stats", adminHandler.AlertStats)
			r.Get("/admin/alerts/{id}", adminHandler.GetAlert)
			r.Patch("/admin/alerts/{id}/status", adminHandler.UpdateAlertStatus)
			r.Post("/admin/alerts/{id}/assign", adminHandler.AssignAlert)

			r.Get("/admin/actors/{id}/sessions", adminHandler.ListActorSessions)
			r.Delete("/admin/actors/{id}/sessions", adminHandler.RevokeActorSessions)
			r.Delete("/admin/actors/{id}/sessions/{sessionID}", adminHandler.RevokeActorSession)
		})
	})
}
