// Package web exposes the HTTP surface of the sync service: the
// push-notification intake for export syncs and the authenticated import
// trigger.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type ServerConfig struct {
	Addr    string
	Handler *IntegrationHandler
	Auth    *AuthMiddleware
	Logger  *zap.Logger
}

// Server hosts the sync routes.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := mux.NewRouter()
	svc := router.PathPrefix("/svc/integrations").Subrouter()

	// Route order matters: the literal paths must not be captured as action
	// routes.
	svc.Handle("/import",
		cfg.Auth.Authenticate(http.HandlerFunc(cfg.Handler.HandleImport)),
	).Methods(http.MethodPost)
	svc.Handle("/{integrationName}/sync-all",
		cfg.Auth.Authenticate(http.HandlerFunc(cfg.Handler.HandleScheduleFullSync)),
	).Methods(http.MethodPost)
	svc.HandleFunc("/{integrationName}/{action}", cfg.Handler.HandleSync).Methods(http.MethodPost)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}

		return ctx.Err()
	}
}

// Router exposes the configured routes for tests.
func (s *Server) Router() http.Handler {
	return s.httpServer.Handler
}
