// Package server wires the application together: database, services,
// middleware, routes, and the HTTP server lifecycle.
//
// This is the composition root — every dependency is constructed and
// connected here, nowhere else. main.go stays a thin shell around it.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/sakif/account-service/internal/auth"
	"github.com/sakif/account-service/internal/config"
	"github.com/sakif/account-service/internal/handler"
	"github.com/sakif/account-service/internal/middleware"
	sqliteRepo "github.com/sakif/account-service/internal/repository/sqlite"
	"github.com/sakif/account-service/internal/service"
)

// Server owns the router, the database connection, and the config it was
// built from. The database is closed during graceful shutdown in Start.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New builds the full dependency graph:
//
//	sqlite.DB → AccountService ← TokenService, PasswordService
//	                ↓
//	          AccountHandler → routes
//
// Each layer receives only what it needs: the service gets the repository
// interface, the handler gets the service, the router gets the handler.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}
	s.setupRoutes(tokens)

	return s, nil
}

// setupRoutes mounts middleware and routes.
//
// MIDDLEWARE ORDER:
//  1. RequestID, RealIP — request identity and client address first, since
//     logging and rate limiting both depend on them
//  2. Recoverer — panics become 500s instead of dead connections
//  3. request logger
//  4. CORS
//  5. Authenticate — global, degrade-to-anonymous; it only attaches
//     identity, it never rejects. RequireIdentity does the rejecting, and
//     only on the protected subtree.
func (s *Server) setupRoutes(tokens *auth.TokenService) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	s.router.Use(cors.New(cors.Options{
		AllowedOrigins: s.config.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         3600,
	}).Handler)

	s.router.Use(auth.Authenticate(tokens, s.logger))

	passwords := auth.NewPasswordService(s.config.BcryptCost)
	accounts := service.NewAccountService(s.db, tokens, passwords, s.logger)
	accountHandler := handler.NewAccountHandler(accounts, s.logger)

	loginLimiter := middleware.NewRateLimiter(s.config.LoginRateRPM)

	s.router.Route("/api", func(r chi.Router) {
		// Public credential endpoints, rate-limited per client IP.
		r.Group(func(r chi.Router) {
			r.Use(loginLimiter.Handler)
			r.Post("/auth/signup", accountHandler.HandleSignup)
			r.Post("/auth/login", accountHandler.HandleLogin)
		})

		// Everything below requires a verified identity.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireIdentity)
			r.Get("/me", accountHandler.HandleMe)
			r.Put("/me/profile", accountHandler.HandleUpdateProfile)
			r.Post("/me/confirm-password", accountHandler.HandleConfirmPassword)
			r.Put("/me/password", accountHandler.HandleUpdatePassword)
			r.Delete("/users/{id}", accountHandler.HandleDelete)
		})
	})
}

// Handler exposes the router, mainly for httptest in integration-style
// handler tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, drain in-flight requests for up
// to 30 seconds, close the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
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
