package adapthttp

import (
	"log/slog"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/oauth2"

	"cycletracker/internal/adapter/realtime"
	"cycletracker/internal/app"
	"cycletracker/internal/domain"
	"cycletracker/internal/metrics"
)

// OIDCConfig holds the SSO provider and OAuth2 client settings.
type OIDCConfig struct {
	Enabled      bool
	Provider     *oidc.Provider
	OAuth2Config oauth2.Config
}

// StatusMetrics records response status codes.
type StatusMetrics interface {
	RecordHTTPStatus(statusCode int)
}

// Options wires a Server to the application services.
type Options struct {
	Auth        *app.AuthService
	Cycles      *app.CycleService
	Preferences *app.PreferencesService
	Hub         *realtime.Hub
	Metrics     StatusMetrics
	Gatherer    prometheus.Gatherer
	Logger      *slog.Logger
	OIDC        OIDCConfig
	// ForwardAuth trusts the Remote-User header of a reverse proxy.
	ForwardAuth bool
	// AuthPerMinute limits unauthenticated auth requests per client IP. Zero disables the limit.
	AuthPerMinute int
}

// Server is the driving HTTP adapter that routes requests to application
// services.
type Server struct {
	authSvc     *app.AuthService
	cycles      *app.CycleService
	prefs       *app.PreferencesService
	hub         *realtime.Hub
	metrics     StatusMetrics
	gatherer    prometheus.Gatherer
	logger      *slog.Logger
	oidcConfig  OIDCConfig
	forwardAuth bool
	authLimiter *ipRateLimiter

	disableAuth bool
	devUser     *domain.User
}

// New creates a Server wired to the given application services.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		authSvc:     opts.Auth,
		cycles:      opts.Cycles,
		prefs:       opts.Preferences,
		hub:         opts.Hub,
		metrics:     opts.Metrics,
		gatherer:    opts.Gatherer,
		logger:      logger,
		oidcConfig:  opts.OIDC,
		forwardAuth: opts.ForwardAuth,
	}
	if opts.AuthPerMinute > 0 {
		s.authLimiter = newIPRateLimiter(opts.AuthPerMinute)
	}
	return s
}

// WithoutAuth disables authentication and serves every request as user.
// Used by tests and single-user development setups.
func (s *Server) WithoutAuth(user *domain.User) *Server {
	s.disableAuth = true
	s.devUser = user
	return s
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(s.loggingMiddleware)
	r.Use(withNoCache)

	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(s.gatherer))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		})
		r.Get("/config", s.handleConfig)

		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(s.rateLimitMiddleware)
				r.Post("/register", s.handleRegister)
				r.Post("/login", s.handleLogin)
				r.Get("/verify", s.handleVerify)
				r.Post("/verify", s.handleVerify)
				r.Post("/resend-verification", s.handleResendVerification)
			})
			r.Post("/logout", s.handleLogout)
			r.Get("/sso/login", s.handleSSOLogin)
			r.Get("/sso/callback", s.handleSSOCallback)
			r.With(s.authMiddleware).Get("/me", s.handleMe)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Delete("/account", s.handleDeleteAccount)

			r.Route("/cycle", func(r chi.Router) {
				r.Get("/", s.handleCycleSnapshot)
				r.Get("/symptoms", s.handleSymptomCatalog)
				r.Get("/calendar", s.handleCalendar)
				r.Get("/stream", s.handleStream)
				r.Route("/days/{date}", func(r chi.Router) {
					r.Get("/", s.handleGetDay)
					r.Post("/period", s.handleTogglePeriod)
					r.Post("/symptoms/{symptom}", s.handleToggleSymptom)
				})
			})

			r.Get("/preferences", s.handleGetPreferences)
			r.Put("/preferences/{key}", s.handleSetPreference)
		})
	})

	return r
}
