package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler builds the chi mux with all routes wired.
func (g *Gateway) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Public.
	r.Get("/health", g.handleHealth())
	if g.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(g.gatherer, promhttp.HandlerOpts{}))
	}

	// Chat sessions identify by user ID; the directory rejects unknown users.
	r.Get("/ws/chat", g.handleChat)

	// Memory inspection and history. Not mounted without a bearer token.
	if g.config.Auth.IsConfigured() {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(g.config.Auth, g.authLimiter, g.metrics))
			r.Get("/api/users/{id}/memory", g.handleMemory())
			r.Get("/api/users/{id}/messages", g.handleHistory())
		})
	}

	return r
}
