package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"careerlaunch/internal/observability"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

// Run serves the API until ctx is cancelled, alongside the session janitor,
// the key watcher and the Prometheus endpoint when those are configured
func (s *Server) Run(ctx context.Context, om *observability.ObservabilityManager) error {
	httpServer := s.setupHTTPServer(om)
	s.displayServerInfo(om)

	if s.KeyWatcher != nil {
		if err := s.KeyWatcher.Start(); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.Logger.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed to start: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.Logger.Info("Shutting down, starting graceful shutdown")
		return s.performGracefulShutdown(httpServer)
	})

	if s.Sessions != nil {
		g.Go(func() error {
			s.Sessions.Run(gctx)
			return nil
		})
	}

	if s.KeyWatcher != nil {
		g.Go(func() error {
			<-gctx.Done()
			return s.KeyWatcher.Stop()
		})
	}

	if promServer := om.PrometheusServer(); promServer != nil {
		g.Go(func() error {
			s.Logger.Info("Starting Prometheus metrics server", "address", promServer.Addr)
			if err := promServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server failed: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 5*time.Second)
			defer cancel()
			return promServer.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

// setupHTTPServer creates and configures the HTTP server
func (s *Server) setupHTTPServer(om *observability.ObservabilityManager) *http.Server {
	mux := s.setupRoutes(om)
	handler := om.HTTPMiddleware()(mux)

	return &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.Host, s.Port),
		Handler:      handler,
		ReadTimeout:  s.ReadTimeout,
		WriteTimeout: s.WriteTimeout,
		IdleTimeout:  s.IdleTimeout,
	}
}

// performGracefulShutdown handles the graceful shutdown process
func (s *Server) performGracefulShutdown(server *http.Server) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.cleanupRateLimiter()

	s.Logger.Info("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.Logger.LogError(err, "Failed to shutdown server gracefully, forcing close")
		return server.Close()
	}

	s.Logger.Info("Server shutdown completed successfully")
	return nil
}

// cleanupRateLimiter cleans up the rate limiter resources
func (s *Server) cleanupRateLimiter() {
	if s.RateLimiter != nil {
		s.RateLimiter.Close()
		s.Logger.Info("Rate limiter cleaned up")
	}
}
