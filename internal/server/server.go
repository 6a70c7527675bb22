// Package server sets up the HTTP server, router, and all route definitions.
//
// This is the composition root: the store, service, verifier, and handlers
// are all constructed and wired here, then passed explicitly down the chain.
// No globals, no registry — each layer receives exactly the dependencies it
// needs (the service gets the repository interface, the handlers get the
// service, nothing touches a layer below its own).
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

	"github.com/mahin/learnhub/internal/auth"
	"github.com/mahin/learnhub/internal/config"
	"github.com/mahin/learnhub/internal/handler"
	"github.com/mahin/learnhub/internal/middleware"
	"github.com/mahin/learnhub/internal/repository"
	"github.com/mahin/learnhub/internal/repository/postgres"
	sqliteRepo "github.com/mahin/learnhub/internal/repository/sqlite"
	"github.com/mahin/learnhub/internal/service"
)

// store is the union of the repository interface and the lifecycle methods
// both backends provide.
type store interface {
	repository.UserRepository
	Close() error
}

// Server owns the router, the store, and the listener lifecycle.
type Server struct {
	router *chi.Mux
	cfg    *config.Config
	logger *slog.Logger
	db     store
}

// New assembles the full dependency chain and returns a ready Server.
//
// Store selection: DATABASE_DSN set → Postgres (pgxpool, goose migrations);
// otherwise the embedded sqlite file. Both satisfy the same repository
// interface, so everything above this point is identical either way.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	var (
		db  store
		err error
	)
	if cfg.Database.DSN != "" {
		db, err = postgres.New(ctx, cfg.Database.DSN)
	} else {
		db, err = sqliteRepo.New(cfg.SQLite.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	verifier, err := auth.NewVerifier(cfg.JWT.Secret, cfg.JWT.Issuer)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("configuring token verification: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		logger: logger,
		db:     db,
	}
	s.setupRoutes(verifier)

	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /health            → health probe (public, always 200)
//	POST   /api/users/sync    → provision/fetch own account (authenticated)
//	GET    /api/users         → list users (admin)
//	POST   /api/users         → create user (admin)
//	GET    /api/users/{id}    → get user (admin)
//	PUT    /api/users/{id}    → update role/active (admin)
//	DELETE /api/users/{id}    → soft-delete user (admin)
//
// Middleware order matters: correlation IDs are assigned first so the
// logger and the recovery handler can both report them.
func (s *Server) setupRoutes(verifier *auth.Verifier) {
	s.router.Use(middleware.CorrelationID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Recovery(s.logger))

	userService := service.NewUserService(s.db, s.logger)
	userHandler := handler.NewUserHandler(userService, s.logger)
	healthHandler := handler.NewHealthHandler(s.db, s.logger)

	s.router.Get("/health", healthHandler.HandleHealth)

	s.router.Route("/api/users", func(r chi.Router) {
		r.Use(auth.RequireAuth(verifier))

		r.Post("/sync", userHandler.HandleSync)

		// Admin-only CRUD on the user directory
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin)
			r.Get("/", userHandler.HandleList)
			r.Post("/", userHandler.HandleCreate)
			r.Get("/{id}", userHandler.HandleGetByID)
			r.Put("/{id}", userHandler.HandleUpdate)
			r.Delete("/{id}", userHandler.HandleDelete)
		})
	})
}

// Start starts the HTTP server and blocks until shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new connections on SIGINT/SIGTERM
// 2. Give in-flight requests 30 seconds to finish
// 3. Close the store (flushes sqlite WAL / releases the pgx pool)
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting", slog.String("addr", s.cfg.Addr))
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
