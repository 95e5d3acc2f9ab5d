// Package server exposes the webhook receiver over HTTP.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Options configures the router.
type Options struct {
	IPRateLimitPerMin int // unauthenticated requests per client address
}

// NewRouter builds the HTTP routes.
func NewRouter(processor Processor, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	webhook := NewWebhookHandler(processor, opts.IPRateLimitPerMin)
	r.Post("/webhooks/github", webhook.ServeHTTP)
	r.Post("/webhook/github", webhook.ServeHTTP)

	return r
}
