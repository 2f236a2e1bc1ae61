package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/specialistvlad/burstbuild/internal/livereload"
)

// healthHandler reports the controller state with a 200, or a 503 when the
// last pass failed.
func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	if report := a.controller.LastReport(); report != nil && report.Err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintf(w, "FAILED pass=%d: %v\n", report.Pass, report.Err)
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// Handler returns the HTTP routes served in watch mode.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.healthHandler)
	mux.Handle("/metrics", a.metrics.Handler())
	if a.reload != nil {
		mux.Handle(livereload.Path, a.reload.Handler())
	}
	return mux
}

// startServer listens on the configured port and serves Handler in the
// background. It returns the bound address.
func (a *App) startServer() (string, error) {
	a.logger.Debug("Configuring HTTP server.")
	if a.config.Port <= 0 {
		a.logger.Debug("HTTP server not started: disabled")
		return "", nil
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", a.config.Port))
	if err != nil {
		return "", fmt.Errorf("failed to listen on port %d: %w", a.config.Port, err)
	}
	a.httpServer = &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	addr := ln.Addr().String()
	go func() {
		a.logger.Info("🩺 HTTP server starting", "address", "http://"+addr, "health", "/health", "metrics", "/metrics")
		// Serve returns ErrServerClosed on graceful shutdown.
		if err := a.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("HTTP server failed unexpectedly", "error", err)
		}
	}()
	return addr, nil
}

func (a *App) closeServer() error {
	if a.reload != nil {
		a.reload.Close()
	}
	if a.httpServer == nil {
		a.logger.Debug("HTTP server was not running.")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(a.ctx), 5*time.Second)
	defer cancel()

	a.logger.Info("🩺 Shutting down HTTP server...")
	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("HTTP server shutdown failed", "error", err)
		return err
	}
	a.logger.Debug("HTTP server shut down gracefully.")
	return nil
}
