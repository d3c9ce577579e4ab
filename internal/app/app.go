// Package app wires configuration into the long-lived services of a probe run,
// acting as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/stockwatch/internal/clock/system"
	"github.com/JakeFAU/stockwatch/internal/config"
	"github.com/JakeFAU/stockwatch/internal/detector"
	collyfetcher "github.com/JakeFAU/stockwatch/internal/fetcher/colly"
	"github.com/JakeFAU/stockwatch/internal/fetcher/headless"
	"github.com/JakeFAU/stockwatch/internal/id/uuid"
	"github.com/JakeFAU/stockwatch/internal/logging"
	"github.com/JakeFAU/stockwatch/internal/metrics"
	"github.com/JakeFAU/stockwatch/internal/monitor"
	"github.com/JakeFAU/stockwatch/internal/notifier"
	"github.com/JakeFAU/stockwatch/internal/notifier/telegram"
	"github.com/JakeFAU/stockwatch/internal/runner"
)

const pushTimeout = 10 * time.Second

// App holds the services for one run.
type App struct {
	cfg        config.Config
	logger     *zap.Logger
	annotation notifier.Annotation
	recorder   *metrics.Recorder
	runner     *runner.Runner
}

type options struct {
	fetcher  monitor.Fetcher
	notifier monitor.Notifier
	sleep    runner.SleepFunc
}

// Option overrides a collaborator built from configuration.
type Option func(*options)

// WithFetcher replaces the configured fetcher.
func WithFetcher(f monitor.Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// WithNotifier replaces the Telegram notifier.
func WithNotifier(n monitor.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithSleep replaces the retry backoff wait.
func WithSleep(fn runner.SleepFunc) Option {
	return func(o *options) { o.sleep = fn }
}

// New builds the App from a validated Config. It fails fast when a collaborator
// cannot be constructed.
func New(cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	runID, err := uuid.New().RunID(cfg.Run.ID)
	if err != nil {
		return nil, fmt.Errorf("run id: %w", err)
	}
	annotation := notifier.Annotation{
		Target: monitor.CheckTarget{
			URL:          cfg.Target.URL,
			FallbackName: cfg.Target.FallbackName,
			DefaultURL:   config.DefaultProductURL,
		},
		Run: monitor.RunInfo{
			ID:     runID,
			Number: cfg.Run.Number,
			Server: cfg.Run.ServerName(),
		},
		Location: cfg.Run.Location(),
	}
	logger = logging.ForRun(logger, annotation.Run, annotation.Target)
	recorder := metrics.NewRecorder(cfg.Target.URL)

	fetch := o.fetcher
	if fetch == nil {
		fetch, err = newFetcher(cfg.Fetcher, logger)
		if err != nil {
			return nil, err
		}
	}
	notify := o.notifier
	if notify == nil {
		notify = telegram.New(telegram.Config{
			Token:         cfg.Telegram.Token,
			ChatIDs:       cfg.Telegram.ChatIDs,
			BaseURL:       cfg.Telegram.APIBaseURL,
			Timeout:       cfg.Telegram.Timeout,
			RatePerSecond: cfg.Telegram.RatePerSecond,
		}, logger.Named("telegram"), telegram.WithObserver(recorder.ObserveDelivery))
	}

	var runnerOpts []runner.Option
	if o.sleep != nil {
		runnerOpts = append(runnerOpts, runner.WithSleep(o.sleep))
	}
	r, err := runner.New(runner.Config{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		Step:        cfg.Retry.Step,
	}, runner.Dependencies{
		Fetcher:    fetch,
		Classifier: detector.NewHeuristic(),
		Notifier:   notify,
		Recorder:   recorder,
		Clock:      system.NewIn(annotation.Location),
	}, annotation, logger, runnerOpts...)
	if err != nil {
		return nil, fmt.Errorf("build runner: %w", err)
	}

	return &App{
		cfg:        cfg,
		logger:     logger,
		annotation: annotation,
		recorder:   recorder,
		runner:     r,
	}, nil
}

func newFetcher(cfg config.FetcherConfig, logger *zap.Logger) (monitor.Fetcher, error) {
	switch cfg.Mode {
	case config.FetcherModeStatic:
		return collyfetcher.New(collyfetcher.Config{
			UserAgents: cfg.UserAgents,
			Timeout:    cfg.NavTimeout,
		}, logger.Named("colly")), nil
	case config.FetcherModeHeadless, "":
		f, err := headless.NewChromedp(headless.Config{
			UserAgents:        cfg.UserAgents,
			NavigationTimeout: cfg.NavTimeout,
			SettleDelay:       cfg.SettleDelay,
			WaitSelector:      cfg.WaitSelector,
			NoSandbox:         cfg.NoSandbox,
			WindowWidth:       cfg.WindowWidth,
			WindowHeight:      cfg.WindowHeight,
		}, logger.Named("chromedp"))
		if err != nil {
			return nil, fmt.Errorf("build headless fetcher: %w", err)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("%w: unknown fetcher mode %q", config.ErrConfig, cfg.Mode)
	}
}

// Logger returns the run-scoped logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Annotation returns the message annotation for this run.
func (a *App) Annotation() notifier.Annotation {
	return a.annotation
}

// Recorder returns the run's metrics recorder.
func (a *App) Recorder() *metrics.Recorder {
	return a.recorder
}

// Run performs the check and pushes metrics when a Pushgateway is configured.
// A push failure is logged and never changes the run's result.
func (a *App) Run(ctx context.Context) (monitor.Verdict, error) {
	a.logger.Info("starting stock check",
		zap.String("product_url", a.annotation.Target.URL),
		zap.Bool("custom_url", a.annotation.Target.IsCustom()),
		zap.String("server", a.annotation.Run.Server),
		zap.String("run", "#"+a.annotation.Run.Number),
		zap.String("fetcher_mode", a.cfg.Fetcher.Mode),
	)

	verdict, err := a.runner.Run(ctx)
	a.pushMetrics(ctx)
	return verdict, err
}

func (a *App) pushMetrics(ctx context.Context) {
	if a.cfg.Metrics.PushgatewayURL == "" {
		return
	}
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
	defer cancel()
	if err := a.recorder.Push(pushCtx, a.cfg.Metrics.PushgatewayURL, a.cfg.Metrics.Job, a.annotation.Run.Server); err != nil {
		a.logger.Warn("metrics push failed", zap.Error(err))
		return
	}
	a.logger.Debug("metrics pushed", zap.String("gateway", a.cfg.Metrics.PushgatewayURL))
}
