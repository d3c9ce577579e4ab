package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"go.uber.org/zap"

	"github.com/JakeFAU/stockwatch/internal/app"
	"github.com/JakeFAU/stockwatch/internal/config"
	"github.com/JakeFAU/stockwatch/internal/logging"
	"github.com/JakeFAU/stockwatch/internal/monitor"
)

const (
	exitOK      = 0
	exitFailure = 1
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("stockwatch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := fs.String("config", "", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return exitFailure
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "load config failed: %v\n", err)
		return exitFailure
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(stderr, "logger init failed: %v\n", err)
		return exitFailure
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil && !errors.Is(syncErr, syscall.EINVAL) {
			fmt.Fprintf(stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("app init failed", zap.Error(err))
		return exitFailure
	}
	verdict, err := a.Run(ctx)
	return exitCode(a.Logger(), verdict, err)
}

func exitCode(logger *zap.Logger, verdict monitor.Verdict, err error) int {
	var failure *monitor.RunFailure
	switch {
	case err == nil:
		logger.Info("stock check completed", zap.String("status", verdict.Status()))
		return exitOK
	case errors.As(err, &failure):
		logger.Error("stock check failed", zap.Int("attempts", failure.Attempts), zap.Error(err))
		return exitFailure
	default:
		logger.Error("stock check failed", zap.Error(err))
		return exitFailure
	}
}
