package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"healthsync/infrastructure/config"
	"healthsync/infrastructure/di"
	"healthsync/interfaces/http/rest"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize dependency container
	container, err := di.InitializeContainer(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	defer container.Close()

	logger := container.Logger

	// Run storage migrations before anything touches the store
	if err := container.Engine.Initialize(ctx); err != nil {
		logger.Fatal("Engine initialization failed", zap.Error(err))
	}

	// Background loops: connectivity probing and the engine scheduler
	go container.Monitor.Run(ctx)
	go func() {
		if err := container.Engine.Run(ctx); err != nil && err != context.Canceled {
			logger.Error("Engine loop stopped", zap.Error(err))
		}
	}()

	// Hot-reload the config file when one is in use
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		watcher, err := config.NewWatcher(path, func(next *config.Config) {
			logger.Info("Configuration updated",
				zap.Duration("collectInterval", next.CollectInterval),
				zap.Duration("drainInterval", next.DrainInterval),
			)
		}, logger)
		if err != nil {
			logger.Warn("Config watcher unavailable", zap.Error(err))
		} else {
			go watcher.Run(ctx)
		}
	}

	// Create router
	router := rest.NewRouter(cfg, container.Engine, container.Buffer, logger)
	handler := router.Setup()

	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting server",
			zap.String("address", cfg.ServerAddress),
			zap.String("environment", cfg.Environment),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	// Last chance to push anything still queued
	if _, err := container.Engine.DrainQueue(shutdownCtx); err != nil {
		logger.Warn("Final drain failed", zap.Error(err))
	}

	if err := logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	log.Println("Server stopped")
}
