package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/oauth2"

	adapthttp "cycletracker/internal/adapter/http"
	"cycletracker/internal/adapter/mail"
	"cycletracker/internal/adapter/memory"
	"cycletracker/internal/adapter/postgres"
	"cycletracker/internal/adapter/realtime"
	"cycletracker/internal/app"
	"cycletracker/internal/config"
	"cycletracker/internal/domain"
	"cycletracker/internal/logger"
	"cycletracker/internal/metrics"
)

const sessionSweepInterval = time.Hour

type storage struct {
	users    domain.UserRepository
	sessions domain.SessionRepository
	cycles   domain.CycleRepository
	prefs    domain.PreferenceRepository
	close    func() error
}

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("CYCLE_CONFIG"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level, err := logger.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		return err
	}
	log := logger.SetupDefault(os.Stdout, level)

	store, err := openStorage(cfg.Database, log)
	if err != nil {
		return err
	}
	defer func() { _ = store.close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	hub := realtime.NewHub(log)
	cycles := app.NewCycleService(store.cycles, log).WithNotifier(hub).WithMetrics(collector)

	mailer, err := newMailer(ctx, cfg.Mail, log)
	if err != nil {
		return err
	}

	authSvc := app.NewAuthService(store.users, store.sessions, app.AuthOptions{
		SessionTTL:     cfg.Auth.SessionTTL,
		ResendCooldown: cfg.Auth.ResendCooldown,
		BaseURL:        cfg.Auth.BaseURL,
		Tokens:         app.NewVerificationTokens(cfg.Auth.VerificationSecret, cfg.Auth.VerificationTTL),
		Mailer:         mailer,
		Cycles:         store.cycles,
		Preferences:    store.prefs,
		CycleLogs:      cycles,
		Metrics:        collector,
		Logger:         log,
	})

	oidcCfg, err := newOIDCConfig(ctx, cfg.OIDC)
	if err != nil {
		return err
	}

	srv := adapthttp.New(adapthttp.Options{
		Auth:          authSvc,
		Cycles:        cycles,
		Preferences:   app.NewPreferencesService(store.prefs),
		Hub:           hub,
		Metrics:       collector,
		Gatherer:      reg,
		Logger:        log,
		OIDC:          oidcCfg,
		ForwardAuth:   cfg.Auth.ForwardAuth,
		AuthPerMinute: cfg.RateLimit.AuthPerMinute,
	})

	go sweepSessions(ctx, store.sessions, log)

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.Server.Addr, "sso", oidcCfg.Enabled, "mail_driver", cfg.Mail.Driver)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// openStorage connects to Postgres when a database URL is configured and
// falls back to the in-memory store otherwise.
func openStorage(cfg config.DatabaseConfig, log *slog.Logger) (*storage, error) {
	if cfg.URL == "" {
		log.Warn("no database configured, data will not survive a restart")
		db := memory.New()
		return &storage{
			users:    db,
			sessions: db.NewSessionRepo(),
			cycles:   db,
			prefs:    db,
			close:    func() error { return nil },
		}, nil
	}

	db, err := postgres.Open(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	return &storage{
		users:    db,
		sessions: postgres.NewSessionRepo(db),
		cycles:   db,
		prefs:    db,
		close:    db.Close,
	}, nil
}

func newMailer(ctx context.Context, cfg config.MailConfig, log *slog.Logger) (domain.Mailer, error) {
	switch cfg.Driver {
	case "ses":
		m, err := mail.NewSESMailerFromEnv(ctx, cfg.Region, cfg.From)
		if err != nil {
			return nil, fmt.Errorf("ses mailer: %w", err)
		}
		return m, nil
	default:
		return mail.NewLogMailer(log), nil
	}
}

func newOIDCConfig(ctx context.Context, cfg config.OIDCConfig) (adapthttp.OIDCConfig, error) {
	if !cfg.Enabled {
		return adapthttp.OIDCConfig{}, nil
	}
	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return adapthttp.OIDCConfig{}, fmt.Errorf("oidc provider: %w", err)
	}
	return adapthttp.OIDCConfig{
		Enabled:  true,
		Provider: provider,
		OAuth2Config: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
	}, nil
}

func sweepSessions(ctx context.Context, sessions domain.SessionRepository, log *slog.Logger) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sessions.DeleteExpired(ctx); err != nil {
				log.Warn("session sweep", "error", err)
			}
		}
	}
}
