// Package server is the composition root: it wires the Click Store, the
// services and the handlers into one chi router, and runs it with graceful
// shutdown.
//
// ROUTES:
//
//	GET      /ig                  public bio link, 302 into the bot
//	POST     /tg/webhook          Telegram updates (secret header)
//	GET      /health              liveness
//	GET      /privacy             privacy notice
//	GET      /metrics             Prometheus
//	GET      /admin/csv           export (admin token or ticket)
//	POST     /admin/export-link   mint a ticketed export URL (admin token)
//	GET|POST /admin/set_webhook   register the webhook (admin token)
//
// MIDDLEWARE ORDER MATTERS:
// RequestID and RealIP run first so the logger and the redirect see the
// request id and the client IP. Recoverer sits inside the logger so a panic
// is still logged as a 500.
package server

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

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/clicktrail/internal/auth"
	"github.com/sakif/clicktrail/internal/config"
	"github.com/sakif/clicktrail/internal/handler"
	"github.com/sakif/clicktrail/internal/metrics"
	"github.com/sakif/clicktrail/internal/middleware"
	"github.com/sakif/clicktrail/internal/repository"
	"github.com/sakif/clicktrail/internal/service"
	"github.com/sakif/clicktrail/internal/telegram"
	"github.com/sakif/clicktrail/internal/token"
)

// Server is the HTTP server and everything it owns.
//
// RESOURCE MANAGEMENT:
// The Server owns the repository. Start closes it after the HTTP server has
// drained, so no in-flight claim sees a closed database.
type Server struct {
	router  *chi.Mux
	config  *config.Config
	logger  *slog.Logger
	repo    repository.ClickRepository
	metrics *metrics.Registry
}

// New wires a Server. cfg must already be validated.
func New(cfg *config.Config, repo repository.ClickRepository, m *metrics.Registry, logger *slog.Logger) (*Server, error) {
	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		repo:    repo,
		metrics: m,
	}

	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler exposes the router, for tests and for embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() error {
	cfg := s.config

	adminSecret, err := auth.NewSecretVerifier(cfg.AdminToken)
	if err != nil {
		return fmt.Errorf("admin token: %w", err)
	}
	webhookSecret, err := auth.NewPlainSecretVerifier(cfg.WebhookSecret)
	if err != nil {
		return fmt.Errorf("webhook secret: %w", err)
	}
	tickets, err := auth.NewTicketService(adminSecret.Key())
	if err != nil {
		return fmt.Errorf("export tickets: %w", err)
	}
	if adminSecret.Hashed() {
		s.logger.Info("admin token configured as bcrypt hash")
	}

	// === Services ===
	// Every service receives the repository interface, never a backend.
	link := service.DeepLinkConfig{
		PlatformURL: cfg.PlatformURL,
		BotUsername: cfg.BotUsername,
		StartPrefix: cfg.StartPrefix,
	}
	tracker := service.NewTracker(s.repo, token.NewGenerator(), link, s.logger)
	matcher := service.NewMatcher(s.repo, s.logger)
	exporter := service.NewExporter(s.repo)
	tg := telegram.NewClient(cfg.TelegramAPIURL, cfg.BotToken, s.logger)

	// === Handlers ===
	redirectHandler := handler.NewRedirectHandler(tracker, s.metrics, s.logger)
	webhookHandler := handler.NewWebhookHandler(matcher, webhookSecret, handler.WebhookConfig{
		BotUsername: cfg.BotUsername,
		StartPrefix: cfg.StartPrefix,
		ChannelURL:  cfg.ChannelURL,
	}, s.metrics, s.logger)
	exportHandler := handler.NewExportHandler(exporter, tickets, cfg.BaseURL, s.metrics, s.logger)
	adminHandler := handler.NewAdminHandler(tg, cfg.BaseURL, cfg.WebhookSecret, s.logger)

	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Metrics(s.metrics))
	s.router.Use(chimiddleware.Recoverer)

	s.router.NotFound(handler.HandleNotFound)

	// === Public Routes ===
	s.router.Get("/ig", redirectHandler.HandleRedirect)
	s.router.Post(telegram.WebhookPath, webhookHandler.HandleUpdate)
	s.router.Get("/health", handler.HandleHealth)
	s.router.Get("/privacy", handler.HandlePrivacy)
	s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	// === Admin Routes ===
	// Rate limiting runs before authentication so guessing the admin token
	// costs the same as any other request.
	limiter := auth.NewRateLimiter(cfg.AdminRatePerMin)
	s.router.Route("/admin", func(r chi.Router) {
		r.Use(limiter.Middleware)

		r.With(auth.RequireAdminOrTicket(adminSecret, tickets, auth.ScopeExport, s.logger)).
			Get("/csv", exportHandler.HandleCSV)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin(adminSecret, s.logger))
			r.Post("/export-link", exportHandler.HandleExportLink)
			r.Get("/set_webhook", adminHandler.HandleSetWebhook)
			r.Post("/set_webhook", adminHandler.HandleSetWebhook)
		})
	})

	return nil
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests and
// closes the repository.
func (s *Server) Start() error {
	defer func() {
		if err := s.repo.Close(); err != nil {
			s.logger.Error("closing click store", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("base_url", s.config.BaseURL),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
