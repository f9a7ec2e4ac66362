package main

import (
	"context"
	"flag"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"segment_server/config"
	"segment_server/internal/bootstrap"
	"segment_server/pkg/logger"
)

const (
	shutdownTimeout = 30 * time.Second // Maximum time to wait for graceful shutdown
)

func main() {
	// Load .env file if exists (for local development)
	envErr := godotenv.Load()

	mode := flag.String("mode", "all", "Run mode: api, worker, all")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}
	bootstrap.InitLogger(cfg)
	if envErr != nil {
		logger.Debug("No .env file found, using environment variables")
	}

	runAPI, runWorker := false, false
	switch *mode {
	case "api":
		runAPI = true
	case "worker":
		runWorker = true
	case "all":
		runAPI, runWorker = true, true
	default:
		logger.Fatal("Unknown mode: %s", *mode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, cleanup, err := bootstrap.NewDependencies(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize dependencies: %v", err)
	}
	defer cleanup()

	var wg sync.WaitGroup

	if runWorker {
		w, err := bootstrap.NewWorker(deps)
		if err != nil {
			logger.Fatal("Failed to initialize worker: %v", err)
		}
		wg.Add(2)
		go func() {
			defer wg.Done()
			logger.Info("Starting worker...")
			if err := w.Start(); err != nil {
				logger.Error("Worker failed to start: %v", err)
				stop()
			}
		}()
		go func() {
			defer wg.Done()
			<-ctx.Done()
			logger.Info("Shutting down worker (timeout: %v)...", shutdownTimeout)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			w.Stop(shutdownCtx)
			logger.Info("Worker shut down")
		}()
	}

	if runAPI {
		app := bootstrap.NewAPI(deps)
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-ctx.Done()
			logger.Info("Shutting down API server (timeout: %v)...", shutdownTimeout)
			if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
				logger.Error("Error shutting down: %v", err)
			} else {
				logger.Info("API server shut down gracefully")
			}
		}()

		addr := ":" + cfg.Port
		logger.Info("Starting API server on %s", addr)
		if err := app.Listen(addr); err != nil {
			logger.Error("Failed to start server: %v", err)
			stop()
		}
	}

	<-ctx.Done()
	wg.Wait()
}
