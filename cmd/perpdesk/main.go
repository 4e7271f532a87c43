package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/perpdesk/perpdesk/cmd/perpdesk/internal/config"
	"github.com/perpdesk/perpdesk/internal/logutil"
)

func fatal(msg string, err error) {
	slog.Error(msg, slog.String("error", err.Error()))
	os.Exit(1)
}

func main() {
	cfg := config.DefaultConfig()
	fs := config.NewConfigFlagSet(&cfg)

	if err := fs.Parse(os.Args[1:]); err != nil {
		fatal("parsing flags failed", err)
	}
	if err := config.ApplyEnvDefaults(fs, &cfg); err != nil {
		fatal("invalid parameters", err)
	}
	if err := config.ValidateConfig(cfg); err != nil {
		fatal("invalid configuration", err)
	}

	logger := slog.New(logutil.NewHandler(cfg.LogLevel, cfg.LogFormatJSON))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logutil.ContextWithLogger(ctx, logger)

	app, err := NewApp(ctx, cfg, logger)
	if err != nil {
		fatal("startup failed", err)
	}

	logger.Info("perpdesk started",
		slog.String("symbol", cfg.Symbol),
		slog.String("ws_url", cfg.WSURL),
	)

	if err := app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fatal("runtime failure", err)
	}

	logger.Info("shutdown complete")
}
