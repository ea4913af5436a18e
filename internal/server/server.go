package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ridehub/apiserver/config"
	"github.com/ridehub/apiserver/internal/db"
	"github.com/ridehub/apiserver/internal/handlers"
	"github.com/ridehub/apiserver/internal/mq"
	"github.com/ridehub/apiserver/internal/services"
	"github.com/ridehub/apiserver/internal/storage"
	"github.com/ridehub/apiserver/internal/store"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the HTTP server and the connections it owns.
type Server struct {
	httpServer *http.Server
	db         *sql.DB
	mq         *mq.MQ
	logger     *zap.Logger
}

// New constructs a Server with its dependencies and routes.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.JWT.Secret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	objects, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	broker, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("open mq: %w", err)
	}

	userRepo := store.NewUserRepository(dbConn)
	photoRepo := store.NewPhotoRepository(dbConn)

	tokens := services.NewTokenService(cfg.JWT.Secret, cfg.JWT.TokenTTL)
	authService := services.NewAuthService(userRepo, tokens, services.NewValidator(nil), logger)
	userService := services.NewUserService(userRepo, logger)
	photoService := services.NewPhotoService(photoRepo, objects, cfg.Upload.MaxPhotoBytes, logger)
	if broker != nil {
		photoService.WithEvents(broker, cfg.MQ.Channel)
	}

	authHandler := handlers.NewAuthHandler(authService, photoService, logger)
	photoHandler := handlers.NewPhotoHandler(photoService, logger)
	adminHandler := handlers.NewAdminHandler(userService, logger)
	authMiddleware := handlers.RequireAuth(authService, logger)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		handlers.Recoverer(logger),
		handlers.RequestLogger(logger),
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authHandler, authMiddleware)
	})
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, authHandler, authMiddleware)
	})
	router.Route("/photos", func(r chi.Router) {
		handlers.PhotoRouter(r, photoHandler, authMiddleware)
	})
	router.Route("/admin", func(r chi.Router) {
		handlers.AdminRouter(r, adminHandler, authMiddleware)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("server configured",
		zap.Int("port", port),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("mq", cfg.MQ.Backend),
	)

	return &Server{
		httpServer: httpServer,
		db:         dbConn,
		mq:         broker,
		logger:     logger,
	}, nil
}

// Start runs the HTTP server. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and closes the database and broker.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	if s.mq != nil {
		if mqErr := s.mq.Close(); mqErr != nil {
			s.logger.Warn("close mq failed", zap.Error(mqErr))
		}
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
