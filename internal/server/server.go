package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/booklend/apiserver/config"
	"github.com/booklend/apiserver/internal/db"
	"github.com/booklend/apiserver/internal/handlers"
	"github.com/booklend/apiserver/internal/metrics"
	"github.com/booklend/apiserver/internal/mq"
	"github.com/booklend/apiserver/internal/services"
	"github.com/booklend/apiserver/internal/storage"
	"github.com/booklend/apiserver/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// Server wraps the HTTP server and its collaborators.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	events     *mq.EventBus
}

// New constructs a Server with its full dependency graph: repositories
// over the database, services over the repositories, and optional
// export archive / loan event bus per config.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	jwtSecret := strings.TrimSpace(cfg.JWTSecret)
	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	bookRepo := store.NewBookRepository(dbConn)
	borrowRepo := store.NewBorrowRepository(dbConn)

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	events, err := mq.NewEventBusFromConfig(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	archive, err := storage.NewExportArchiveFromConfig(ctx, cfg.Storage)
	if err == nil && archive != nil {
		err = archive.EnsureBucket(ctx)
	}
	if err != nil {
		if events != nil {
			_ = events.Close()
		}
		_ = dbConn.Close()
		return nil, err
	}

	userService := services.NewUserService(userRepo)
	bookService := services.NewBookService(bookRepo)
	borrowService := services.NewBorrowService(borrowRepo, bookRepo).WithMetrics(collector)
	if events != nil {
		borrowService.WithEvents(events)
	}
	exportService := services.NewExportService(borrowRepo)
	if archive != nil {
		exportService.WithArchive(archive)
	}

	authHandler := handlers.NewAuthHandler(userService, jwtSecret).WithMetrics(collector)
	userHandler := handlers.NewUserHandler(userService, borrowService)
	bookHandler := handlers.NewBookHandler(bookService)
	borrowHandler := handlers.NewBorrowHandler(borrowService, exportService)

	requireAuth := authHandler.RequireAuth

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
		metrics.Middleware(collector),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Method(http.MethodGet, "/metrics", metrics.Handler(registry))
	router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, authHandler)
		})
		r.Route("/users", func(r chi.Router) {
			handlers.UserRouter(r, userHandler, requireAuth)
		})
		r.Route("/books", func(r chi.Router) {
			handlers.BookRouter(r, bookHandler, requireAuth)
		})
		r.Route("/borrow-requests", func(r chi.Router) {
			handlers.BorrowRouter(r, borrowHandler, requireAuth)
		})
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		events:     events,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.events != nil {
		_ = s.events.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}
