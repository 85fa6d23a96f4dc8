package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/giygas/cureid-api/config"
	"github.com/giygas/cureid-api/logging"
)

func main() {
	// .env is optional outside development
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	loggingService := logging.InitLogger(logging.Options{
		Dir:            "logs",
		Env:            cfg.Env,
		Level:          cfg.LogLevel,
		RetentionWeeks: cfg.LogRetentionWeeks,
		MaxFileSize:    cfg.MaxLogFileSize,
	})
	defer loggingService.Close()

	logging.Info("Configuration loaded",
		"env", cfg.Env.String(),
		"store", cfg.StoreBackend,
		"blob_source", cfg.BlobSource,
		"kafka", cfg.UsesKafka())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx, cfg)
	if err != nil {
		logging.Error("Failed to build application", "error", err)
		os.Exit(1)
	}

	if err := app.start(ctx); err != nil {
		logging.Error("Failed to start application", "error", err)
		app.close()
		os.Exit(1)
	}

	serverErr := make(chan error, 1)
	go func() { serverErr <- app.server.Start() }()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			logging.Error("Server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.server.Shutdown(shutdownCtx); err != nil {
		logging.Error("Server shutdown failed", "error", err)
	}
	app.close()
}
