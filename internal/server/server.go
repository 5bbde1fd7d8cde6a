/*
PURPOSE:
  HTTP prediction service for the trained subscription model.

REQUIREMENTS:
  User-specified:
  - GET /, GET /health, GET /model/info, POST /predict.
  - The process stays up when no model could be loaded; model-dependent
    endpoints answer 503 instead.

  Implementation-discovered:
  - Request schema is enforced by gin binding before the handler body.
  - Prometheus metrics are exposed on GET /metrics.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli (serve)
  - Uses: internal/engine (artifact loading), internal/model, internal/output

ERROR HANDLING:
  - 400 for schema violations and inference errors.
  - 503 when no model is loaded.
  - Panics are recovered by gin and answered with 500.

USAGE:
  svc := server.LoadService(cfg.Paths.Model, cfg.Paths.Metadata)
  err := server.New(svc).ListenAndServe(ctx, cfg.Serve)

RELATED FILES:
  - internal/server/handlers.go
  - internal/model/types.go
*/

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/daryltucker/subscription-runner/internal/config"
	"github.com/daryltucker/subscription-runner/internal/output"
)

// shutdownTimeout bounds graceful shutdown once the context is cancelled.
const shutdownTimeout = 10 * time.Second

// Server wires the service into a gin router.
type Server struct {
	svc     *Service
	metrics *Metrics
	router  *gin.Engine
}

// New builds the router for svc.
func New(svc *Service) *Server {
	s := &Server{
		svc:     svc,
		metrics: NewMetrics(),
		router:  gin.New(),
	}
	if svc.Loaded() {
		s.metrics.ModelLoaded.Set(1)
	}

	s.router.Use(gin.Recovery(), RequestID(), Logger(), s.metrics.Middleware())
	s.router.GET("/", s.root)
	s.router.GET("/health", s.health)
	s.router.GET("/model/info", s.modelInfo)
	s.router.POST("/predict", s.predict)
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, cfg config.Serve) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		output.Logger.Info("Prediction service listening", "addr", cfg.Addr, "model_state", s.svc.State().String())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	output.Logger.Info("Shutting down prediction service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
