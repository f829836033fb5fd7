package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/eringen/folio"
	"github.com/eringen/folio/views"
)

const shutdownTimeout = 10 * time.Second

// loadConfig reads .env when present, then the environment.
func loadConfig() (folio.SiteConfig, *slog.Logger, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return folio.SiteConfig{}, nil, err
	}
	cfg, err := folio.LoadConfig()
	if err != nil {
		return folio.SiteConfig{}, nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", "", "listen address (overrides ADDR)")
	static := fs.String("static", "public", "directory served under /public")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := folio.New(cfg, views.Default(), folio.WithLogger(logger), folio.WithStaticDir(*static))
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("closing app", "error", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- app.Start(ctx) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
