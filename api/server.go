/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the dashboard frontend

ROUTE GROUPS:
  /api/actors/*        Team management, targets, commissions, meetings
  /api/meetings/*      Booking (with auto-assignment) and status updates
  /api/achievements/*  Sale records, transitions, fuzzy linking, deletion
  /api/config/*        Compensation plans (JSON), presets, level/rule reads
  /api/calendar/*      Business-week inspection
  /api/closures/*      Month closure lifecycle
  /api/admin/*         Recalculation triggers and divergence reports

SECURITY NOTE:
  No authentication middleware currently. Reopen authorization is a role
  field in the request body; put a real authn layer in front before
  exposing this beyond the office network.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Team routes
		r.Route("/actors", func(r chi.Router) {
			r.Get("/", h.ListActors)
			r.Post("/", h.CreateActor)
			r.Get("/{id}", h.GetActor)
			r.Get("/{id}/targets", h.ListTargets)
			r.Put("/{id}/targets", h.UpsertTarget)
			r.Post("/{id}/targets/seed", h.SeedTargets)
			r.Get("/{id}/commissions", h.ListCommissions)
			r.Get("/{id}/commission", h.GetCommission)
			r.Get("/{id}/meetings", h.ListMeetings)
			r.Get("/{id}/achievements", h.ListAchievements)
		})

		// Meeting routes
		r.Route("/meetings", func(r chi.Router) {
			r.Post("/", h.CreateMeeting)
			r.Post("/preview", h.PreviewAssignment)
			r.Patch("/{id}", h.UpdateMeeting)
		})

		// Sale record routes
		r.Route("/achievements", func(r chi.Router) {
			r.Post("/", h.CreateAchievement)
			r.Patch("/{id}/status", h.TransitionAchievement)
			r.Delete("/{id}", h.DeleteAchievement)
			r.Post("/link", h.LinkAchievements)
		})

		// Configuration routes
		r.Route("/config", func(r chi.Router) {
			r.Put("/team", h.PutTeamConfig)
			r.Post("/presets", h.SeedPresets)
			r.Get("/levels", h.ListLevels)
			r.Get("/rules", h.ListTierRules)
		})

		// Calendar routes
		r.Get("/calendar/weeks", h.ListWeeks)

		// Closure routes
		r.Route("/closures", func(r chi.Router) {
			r.Get("/", h.ListClosures)
			r.Post("/close", h.CloseMonth)
			r.Post("/reopen", h.ReopenMonth)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/recalc", h.TriggerRecalc)
			r.Get("/divergences", h.ListDivergences)
		})
	})

	return r
}
