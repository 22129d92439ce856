// Package server is the composition root: it builds every dependency from the
// configuration, mounts the routes and runs the HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/foodshare/internal/auth"
	"github.com/sakif/foodshare/internal/config"
	"github.com/sakif/foodshare/internal/events"
	"github.com/sakif/foodshare/internal/handler"
	"github.com/sakif/foodshare/internal/lock"
	"github.com/sakif/foodshare/internal/middleware"
	sqliteRepo "github.com/sakif/foodshare/internal/repository/sqlite"
	"github.com/sakif/foodshare/internal/service"
)

type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB

	tokens    *auth.TokenService
	locker    lock.Locker
	publisher events.Publisher

	// closers are released in reverse order on shutdown.
	closers []io.Closer
}

// New opens the database and the optional Redis and RabbitMQ connections and
// mounts all routes. Optional backends that are configured but unreachable
// are startup errors, not silent fallbacks.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
	if err != nil {
		return nil, err
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:    chi.NewRouter(),
		config:    cfg,
		logger:    logger,
		db:        db,
		tokens:    tokens,
		locker:    lock.Noop{},
		publisher: events.Noop{},
		closers:   []io.Closer{db},
	}

	if err := s.connectBackends(); err != nil {
		s.Close()
		return nil, err
	}

	s.setupRoutes()
	return s, nil
}

func (s *Server) connectBackends() error {
	if s.config.RedisAddr != "" {
		client, err := config.NewRedisClient(context.Background(), s.config)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, client)
		s.locker = lock.NewRedisLocker(client, s.config.ChatLockTTL, s.logger)
		s.logger.Info("chat lock backed by redis", slog.String("addr", s.config.RedisAddr))
	}

	if s.config.AMQPURL != "" {
		pub, err := events.NewAMQPPublisher(s.config.AMQPURL)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, pub)
		s.publisher = pub
		s.logger.Info("chat events published to rabbitmq", slog.String("queue", events.QueueName))
	}
	return nil
}

func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	chatService := service.NewChatService(s.db, s.db, s.db, s.locker, s.publisher, s.logger)
	postService := service.NewPostService(s.db, s.db, s.logger)
	onboardingService := service.NewOnboardingService(s.db, s.logger)

	chatHandler := handler.NewChatHandler(chatService, s.logger)
	postHandler := handler.NewPostHandler(postService, s.logger)
	onboardingHandler := handler.NewOnboardingHandler(onboardingService, s.logger)
	healthHandler := handler.NewHealthHandler(s.db, s.logger)

	s.router.Get("/healthz", healthHandler.HandleHealth)

	if s.config.GitHubEnabled() {
		github := auth.NewGitHubProvider(s.config.GitHubClientID, s.config.GitHubClientSecret, s.config.GitHubCallbackURL)
		authHandler := handler.NewAuthHandler(service.NewAuthService(github, s.tokens, s.logger), s.config.TokenTTL, s.logger)

		s.router.Get("/auth/github/login", authHandler.HandleGitHubLogin)
		s.router.Get("/auth/github/callback", authHandler.HandleGitHubCallback)
		s.router.Post("/auth/logout", authHandler.HandleLogout)
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(s.tokens))

		r.Get("/chat/{postId}", chatHandler.HandleGetOrCreate)
		r.Post("/chat/message", chatHandler.HandleSendMessage)

		r.Get("/posts", postHandler.HandleList)
		r.Post("/posts", postHandler.HandleCreate)
		r.Get("/find-user-history", postHandler.HandleHistory)

		r.Get("/onboarding", onboardingHandler.HandleStatus)
		r.Post("/onboarding", onboardingHandler.HandleSubmit)
	})
}

// Handler exposes the router, for tests and for embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database and any backend connections.
func (s *Server) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests for up
// to 30 seconds before closing the backends.
func (s *Server) Start() error {
	defer s.Close()

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
			slog.Bool("githubLogin", s.config.GitHubEnabled()),
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
