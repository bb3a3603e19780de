package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/2gPigeon/jig-intern-public/pkg/httputil"
	"github.com/2gPigeon/jig-intern-public/pkg/interceptors"
	"github.com/2gPigeon/jig-intern-public/pkg/ratelimit"
)

// NewRouter mounts every HTTP endpoint.
func NewRouter(d *Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(interceptors.RequestLogger(d.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   d.Config.Server.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           3600,
	}).Handler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if d.Config.Observability.MetricsEnabled {
		r.Handle("/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(ratelimit.Middleware(d.Config.Server.RateLimitPerSecond, d.Config.Server.RateLimitBurst))
		r.Use(d.Auth.Middleware)

		d.SessionHandler.Routes(r)
		d.ImportHandler.Routes(r)
		d.UnresolvedHandler.Routes(r)
		d.PinsHandler.Routes(r)
	})

	return r
}
