package handlers

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/hkcm91/stickernest-access/internal/infrastructure/metrics"
)

// RouterConfig carries the dependencies of the HTTP surface.
type RouterConfig struct {
	JWTSecret string
	DB        *sql.DB // health checks
	Canvas    *CanvasHandler
	Invites   *InvitationHandler
	Collector *metrics.Collector
	Exporter  *metrics.PrometheusExporter
}

// NewRouter assembles the full HTTP surface. Everything under /api/v1
// requires a valid bearer token; /healthz does not.
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if cfg.Collector != nil {
		r.Use(metrics.Middleware(cfg.Collector, cfg.Exporter))
	}

	r.Get("/healthz", healthHandler(cfg.DB))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Authenticator(cfg.JWTSecret))

		r.Route("/canvases", func(r chi.Router) {
			r.Post("/", cfg.Canvas.Create)
			r.Route("/{canvasID}", func(r chi.Router) {
				r.Get("/", cfg.Canvas.Get)
				r.Patch("/visibility", cfg.Canvas.UpdateVisibility)
				r.Get("/collaborators", cfg.Canvas.ListCollaborators)
				r.Patch("/collaborators/{userID}", cfg.Canvas.UpdateCollaborator)
				r.Delete("/collaborators/{userID}", cfg.Canvas.RemoveCollaborator)
				r.Get("/audit", cfg.Canvas.ListAudit)
				r.Post("/invitations", cfg.Invites.Create)
				r.Get("/invitations", cfg.Invites.ListByCanvas)
				r.Delete("/invitations/{invitationID}", cfg.Invites.Revoke)
			})
		})

		r.Route("/invitations", func(r chi.Router) {
			r.Get("/mine", cfg.Invites.ListMine)
			r.Get("/{token}", cfg.Invites.Peek)
			r.Post("/{token}/accept", cfg.Invites.Accept)
			r.Post("/{token}/decline", cfg.Invites.Decline)
		})
	})

	return r
}

func healthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				respondError(w, http.StatusServiceUnavailable, "database unreachable")
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
