package handler

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/wadjakorntonsri/shortlink/pkg/config"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

// NewRouter creates and configures the main application router
func NewRouter(cfg *config.Config, links ports.LinkService, analytics ports.AnalyticsService, log logrus.FieldLogger) http.Handler {
	// Initialize Handlers
	h := NewHTTPHandler(links, analytics, cfg.TrustProxy, log)
	authHandler := NewAuthHandler(cfg, log)

	// Initialize Middleware
	mw := NewMiddleware(cfg)
	limiter := NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow, cfg.TrustProxy)

	// api routes resolve the caller when a token is present; private ones require it
	api := func(fn http.HandlerFunc) http.Handler {
		return limiter.Middleware(mw.Authenticate(fn))
	}
	private := func(fn http.HandlerFunc) http.Handler {
		return limiter.Middleware(mw.Authenticate(mw.RequireAuth(fn)))
	}

	mux := http.NewServeMux()

	// Public Routes
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /auth/google/login", authHandler.Login)
	mux.HandleFunc("GET /auth/google/callback", authHandler.Callback)
	mux.HandleFunc("GET /auth/logout", authHandler.Logout)
	mux.HandleFunc("GET /{short_code}", h.Redirect)

	// API Routes
	mux.Handle("POST /api/v1/links", api(h.Create))
	mux.Handle("GET /api/v1/links/{short_code}", api(h.Get))
	mux.Handle("GET /api/v1/links/{short_code}/analytics", api(h.Analytics))
	mux.Handle("GET /api/v1/links", private(h.List))
	mux.Handle("PUT /api/v1/links/{short_code}", private(h.Update))
	mux.Handle("DELETE /api/v1/links/{short_code}", private(h.Delete))

	return instrument(mux, cfg.TrustProxy, log)
}
