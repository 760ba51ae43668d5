// Package app assembles the HTTP router and connects infrastructure.
package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpserver "github.com/fairyhunter13/chat-dispatch/internal/adapter/httpserver"
	"github.com/fairyhunter13/chat-dispatch/internal/adapter/observability"
	"github.com/fairyhunter13/chat-dispatch/internal/config"
)

// apiTimeout bounds every endpoint except chat send, whose budget is the
// configured write timeout.
const apiTimeout = 30 * time.Second

// ParseOrigins splits a comma-separated origin list into a slice, trimming spaces.
// If the input is empty, returns ["*"].
func ParseOrigins(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return []string{"*"}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// BuildRouter constructs the HTTP handler with all middlewares and routes.
func BuildRouter(cfg config.Config, srv *httpserver.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(httpserver.Recoverer())
	r.Use(httpserver.RequestID())
	r.Use(httpserver.TraceMiddleware)
	r.Use(httpserver.AccessLog())
	r.Use(observability.HTTPMetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   ParseOrigins(cfg.CORSAllowOrigins),
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-Id", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	perIP := httprate.LimitByIP(cfg.RateLimitPerMin, time.Minute)

	// Chat send walks up to three backend tiers.
	r.Group(func(cr chi.Router) {
		cr.Use(perIP)
		cr.Use(httpserver.TimeoutMiddleware(cfg.HTTPWriteTimeout))
		cr.Post("/v1/chat/send", srv.SendHandler())
	})

	r.Group(func(ar chi.Router) {
		ar.Use(perIP)
		ar.Use(httpserver.TimeoutMiddleware(apiTimeout))
		ar.Post("/v1/conversations", srv.CreateConversationHandler())
		ar.Get("/v1/conversations/{id}", srv.ConversationHandler())
		ar.Get("/v1/conversations/{id}/messages", srv.MessagesHandler())
		ar.Post("/v1/conversations/{id}/files", srv.UploadHandler())
		ar.Get("/v1/conversations/{id}/files", srv.FilesHandler())
		ar.Delete("/v1/files/{id}", srv.DeleteFileHandler())
		ar.Post("/v1/uploads/validate", srv.ValidateUploadsHandler())
		ar.Get("/v1/uploads/limits", srv.UploadLimitsHandler())
		ar.Post("/v1/models/route", srv.RouteHandler())
		ar.Get("/v1/models/categories", srv.CategoriesHandler())
		ar.Get("/v1/cache/stats", srv.CacheStatsHandler())
		ar.Get("/v1/ratelimit/status", srv.RateLimitStatusHandler())
	})

	if cfg.AdminEnabled() {
		r.Group(func(adm chi.Router) {
			adm.Use(httpserver.AdminGuard(cfg.AdminUsername, cfg.AdminPasswordHash))
			adm.Delete("/v1/cache/conversations/{id}", srv.InvalidateCacheHandler())
		})
	}

	r.Get("/healthz", srv.HealthzHandler())
	r.Get("/readyz", srv.ReadyzHandler())
	r.Handle("/metrics", promhttp.Handler())

	return httpserver.SecurityHeaders(r)
}
