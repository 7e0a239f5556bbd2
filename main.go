package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"

	"signalgate.app/receiver/handlers"
	"signalgate.app/receiver/internal/config"
	"signalgate.app/receiver/internal/logger"
	"signalgate.app/receiver/internal/version"
	"signalgate.app/receiver/storage"
)

const usage = `usage: signalgate [command]

commands:
  serve    run the webhook receiver (default)
  keygen   print a new random license identifier`

// newServer opens the configured storage and wires the HTTP handlers to it.
func newServer(cfg *config.Config, ver string) (*handlers.Server, storage.Storage, error) {
	store, err := storage.Open(cfg.StorageOptions())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open storage: %w", err)
	}

	server := handlers.NewHttpServer(handlers.Options{
		Licenses:       store,
		Signals:        store,
		AllowedOrigins: cfg.AllowedOrigins,
		Version:        ver,
	})
	return server, store, nil
}

func serve() error {
	ver := version.Load("VERSION")

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))

	err = sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		Release:          ver,
		TracesSampleRate: 1.0,
	})
	if err != nil {
		return fmt.Errorf("sentry.Init: %w", err)
	}
	defer sentry.Flush(2 * time.Second)

	server, store, err := newServer(cfg, ver)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("signal gate starting", map[string]interface{}{
			"version": ver,
			"addr":    cfg.Addr(),
			"storage": cfg.StorageDriver,
		})
		serveErr <- httpServer.ListenAndServe()
	}()

	var result *multierror.Error
	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			result = multierror.Append(result, err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to shut down: %w", err))
		}
	}

	if err := store.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to close storage: %w", err))
	}
	return result.ErrorOrNil()
}

func main() {
	_ = godotenv.Load()

	command := "serve"
	if len(os.Args) > 1 {
		command = strings.ToLower(os.Args[1])
	}

	switch command {
	case "serve":
		if err := serve(); err != nil {
			logger.Error("signal gate stopped", map[string]interface{}{"error": err.Error()})
			os.Exit(1)
		}
	case "keygen":
		fmt.Println(uuid.NewString())
	case "help", "-h", "--help":
		fmt.Println(usage)
	default:
		fmt.Fprintf(os.Stderr, "unsupported command %q\n\n%s\n", command, usage)
		os.Exit(2)
	}
}
