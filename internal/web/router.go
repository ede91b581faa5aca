package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coldreach/coldreach/internal/auth"
	"github.com/coldreach/coldreach/internal/ratelimit"
	"github.com/coldreach/coldreach/internal/web/handlers"
	"github.com/coldreach/coldreach/internal/web/middleware"
)

// RouterDeps holds all dependencies needed to build the router.
type RouterDeps struct {
	AuthHandler       *handlers.AuthHandler
	RecruiterHandler  *handlers.RecruiterHandler
	TemplateHandler   *handlers.TemplateHandler
	AssignmentHandler *handlers.AssignmentHandler
	ScheduleHandler   *handlers.ScheduleHandler
	ResumeHandler     *handlers.ResumeHandler
	AuthService       *auth.Service
	Limiter           *ratelimit.Limiter
}

// NewRouter wires all routes into a Chi router.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(deps.Limiter))

		// Public auth routes.
		r.Post("/auth/signup", deps.AuthHandler.HandleSignup)
		r.Post("/auth/login", deps.AuthHandler.HandleLogin)

		// Authenticated routes.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(deps.AuthService))

			r.Post("/auth/logout", deps.AuthHandler.HandleLogout)
			r.Get("/auth/me", deps.AuthHandler.HandleMe)

			r.Route("/recruiters", func(r chi.Router) {
				r.Post("/", deps.RecruiterHandler.HandleCreate)
				r.Get("/", deps.RecruiterHandler.HandleList)
				r.Get("/{id}", deps.RecruiterHandler.HandleGet)
				r.Put("/{id}", deps.RecruiterHandler.HandleUpdate)
				r.Patch("/{id}/status", deps.RecruiterHandler.HandleUpdateStatus)
				r.Delete("/{id}", deps.RecruiterHandler.HandleDelete)
			})

			r.Route("/templates", func(r chi.Router) {
				r.Post("/", deps.TemplateHandler.HandleCreate)
				r.Get("/", deps.TemplateHandler.HandleList)
				r.Get("/stats", deps.TemplateHandler.HandleStats)
				r.Get("/{id}", deps.TemplateHandler.HandleGet)
				r.Put("/{id}", deps.TemplateHandler.HandleUpdate)
				r.Post("/{id}/activate", deps.TemplateHandler.HandleActivate)
				r.Post("/{id}/archive", deps.TemplateHandler.HandleArchive)
				r.Post("/{id}/duplicate", deps.TemplateHandler.HandleDuplicate)
				r.Delete("/{id}", deps.TemplateHandler.HandleDelete)
				r.Get("/{id}/assignments", deps.AssignmentHandler.HandleListForTemplate)
				r.Get("/{id}/weeks", deps.AssignmentHandler.HandleWeekSummaries)
			})

			r.Route("/assignments", func(r chi.Router) {
				r.Post("/", deps.AssignmentHandler.HandleAssign)
				r.Post("/bulk", deps.AssignmentHandler.HandleBulkAssign)
				r.Get("/", deps.AssignmentHandler.HandleListActive)
				r.Post("/{id}/email-sent", deps.AssignmentHandler.HandleMarkEmailSent)
				r.Post("/{id}/move-to-followup", deps.AssignmentHandler.HandleMoveToFollowup)
				r.Delete("/{id}", deps.AssignmentHandler.HandleDelete)
				r.Post("/bulk-delete", deps.AssignmentHandler.HandleBulkDelete)
			})

			r.Route("/emails", func(r chi.Router) {
				r.Post("/", deps.ScheduleHandler.HandleSchedule)
				r.Post("/compose", deps.ScheduleHandler.HandleCompose)
				r.Get("/", deps.ScheduleHandler.HandleList)
				r.Get("/{id}", deps.ScheduleHandler.HandleGet)
				r.Post("/{id}/cancel", deps.ScheduleHandler.HandleCancel)
			})

			r.Route("/resume", func(r chi.Router) {
				r.Post("/", deps.ResumeHandler.HandleUpload)
				r.Get("/", deps.ResumeHandler.HandleGet)
				r.Get("/download", deps.ResumeHandler.HandleDownload)
				r.Delete("/", deps.ResumeHandler.HandleDelete)
			})
		})
	})

	return r
}
