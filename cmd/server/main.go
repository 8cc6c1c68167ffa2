package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"legaldoc-backend/bootstrap"
	"legaldoc-backend/config"
	"legaldoc-backend/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// 1. Load configuration (.env, CONFIG_FILE, environment)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// 2. Logger
	zl := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	defer zl.Sync()
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Bootstrap dependencies
	container, err := bootstrap.NewContainer(ctx, cfg, zl)
	if err != nil {
		zl.Error("main", "failed to bootstrap", map[string]interface{}{"error": err})
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           container.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 4. Serve until a signal arrives
	serveErr := make(chan error, 1)
	go func() {
		zl.Info("main", "server starting", map[string]interface{}{
			"port":    cfg.App.Port,
			"version": cfg.App.Version,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			zl.Error("main", "server stopped", map[string]interface{}{"error": err})
		}
	case <-ctx.Done():
		zl.Info("main", "shutdown signal received", nil)
	}

	// 5. Drain in-flight requests, then release clients
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("main", "graceful shutdown failed", map[string]interface{}{"error": err})
	}
	if err := container.Close(shutdownCtx); err != nil {
		zl.Warn("main", "failed to close clients", map[string]interface{}{"error": err})
	}
	zl.Info("main", "server stopped", nil)
}
