package server

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/jikku/phishsim/internal/handlers"
	"github.com/jikku/phishsim/internal/middleware"
)

// Options controls router assembly
type Options struct {
	// Production enables HSTS
	Production bool
	// TrustProxy rewrites RemoteAddr from X-Forwarded-For / X-Real-IP. Only
	// enable it behind a reverse proxy that sets those headers.
	TrustProxy bool
	// LandingDir, when set, is served for every path not claimed by a route
	LandingDir string
	// RedirectURL is where /capture sends the browser; its origin is added
	// to the form-action policy so the redirect is not blocked
	RedirectURL string
	Logger      *zap.Logger
}

// NewRouter wires the tracking routes and middleware
// (order: tracing -> logging -> recovery -> security -> routes)
func NewRouter(h *handlers.Handlers, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	if opts.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.RequestTracing)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Recovery(logger))
	var formTargets []string
	if o := origin(opts.RedirectURL); o != "" {
		formTargets = append(formTargets, o)
	}
	r.Use(middleware.SecurityHeaders(opts.Production, formTargets...))

	r.Get("/track", h.TrackHandler)
	r.Post("/capture", h.CaptureHandler)
	r.Get("/health", h.HealthHandler)

	if opts.LandingDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(opts.LandingDir)))
	}

	return r
}

// origin returns scheme://host of rawURL, or "" when it has neither
func origin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
