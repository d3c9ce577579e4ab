// Package runner drives a single availability check: bounded fetch attempts,
// classification, and notification of the outcome.
package runner

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/stockwatch/internal/clock/system"
	"github.com/JakeFAU/stockwatch/internal/monitor"
	"github.com/JakeFAU/stockwatch/internal/notifier"
)

// Config bounds the retry loop.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Step        time.Duration
}

// DefaultConfig mirrors the scheduler-friendly defaults: three attempts with a
// linearly growing pause.
func DefaultConfig() Config {
	return Config{MaxAttempts: 3, BaseDelay: 2 * time.Second, Step: time.Second}
}

// Backoff returns the pause after the given failed attempt (1-based).
func (c Config) Backoff(attempt int) time.Duration {
	return c.BaseDelay + time.Duration(attempt)*c.Step
}

// Recorder observes run progress. A nil Recorder is allowed.
type Recorder interface {
	ObserveAttempt(attempt int, duration time.Duration, err error)
	ObserveVerdict(v monitor.Verdict, delivered int)
	ObserveFailure(attempts int, delivered int)
}

// Dependencies groups the collaborators of a Runner.
type Dependencies struct {
	Fetcher    monitor.Fetcher
	Classifier monitor.Classifier
	Notifier   monitor.Notifier
	Recorder   Recorder
	Clock      monitor.Clock
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Runner executes one check.
type Runner struct {
	cfg        Config
	deps       Dependencies
	annotation notifier.Annotation
	sleep      SleepFunc
	logger     *zap.Logger
}

// Option customizes a Runner.
type Option func(*Runner)

// WithSleep replaces the backoff wait.
func WithSleep(fn SleepFunc) Option {
	return func(r *Runner) {
		if fn != nil {
			r.sleep = fn
		}
	}
}

// New builds a Runner. Fetcher, Classifier and Notifier are required.
func New(cfg Config, deps Dependencies, annotation notifier.Annotation, logger *zap.Logger, opts ...Option) (*Runner, error) {
	if deps.Fetcher == nil || deps.Classifier == nil || deps.Notifier == nil {
		return nil, errors.New("runner: fetcher, classifier and notifier are required")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{
		cfg:        cfg,
		deps:       deps,
		annotation: annotation,
		sleep:      sleepContext,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run performs the check. It returns the verdict of the first successful
// attempt, or a *monitor.RunFailure once every attempt has failed. In the
// failure case exactly one error notification is sent.
func (r *Runner) Run(ctx context.Context) (monitor.Verdict, error) {
	target := r.annotation.Target
	var lastErr error
	attempts := 0

	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		attempts = attempt
		r.logger.Info("checking availability",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.cfg.MaxAttempts),
			zap.String("url", target.URL),
		)

		start := r.deps.Clock.Now()
		page, err := r.deps.Fetcher.Fetch(ctx, target.URL)
		r.observeAttempt(attempt, r.deps.Clock.Now().Sub(start), err)
		if err == nil {
			return r.succeed(ctx, page, attempt), nil
		}

		lastErr = asFetchError(target.URL, err)
		r.logger.Warn("attempt failed", zap.Int("attempt", attempt), zap.Error(lastErr))

		if attempt == r.cfg.MaxAttempts {
			break
		}
		wait := r.cfg.Backoff(attempt)
		r.logger.Info("waiting before retry", zap.Duration("backoff", wait))
		if err := r.sleep(ctx, wait); err != nil {
			lastErr = errors.Join(lastErr, err)
			break
		}
	}

	return monitor.Verdict{}, r.fail(ctx, attempts, lastErr)
}

func (r *Runner) succeed(ctx context.Context, page monitor.RenderedPage, attempt int) monitor.Verdict {
	verdict := r.deps.Classifier.Classify(page, r.annotation.Target, attempt, r.deps.Clock.Now())
	r.logger.Info("check complete",
		zap.String("product", verdict.ProductName),
		zap.String("status", verdict.Status()),
		zap.Bool("out_of_stock_signal", verdict.OutOfStockSignal),
		zap.Bool("in_stock_signal", verdict.InStockSignal),
		zap.Bool("control_disabled", verdict.ControlDisabled),
		zap.Int("attempt", attempt),
	)
	if verdict.Available {
		r.logger.Info("product is available", zap.String("product", verdict.ProductName), zap.String("url", page.URL))
	}

	delivered := r.deps.Notifier.Notify(ctx, notifier.StatusMessage(verdict, r.annotation))
	if r.deps.Recorder != nil {
		r.deps.Recorder.ObserveVerdict(verdict, delivered)
	}
	return verdict
}

func (r *Runner) fail(ctx context.Context, attempts int, cause error) error {
	r.logger.Error("all attempts failed", zap.Int("attempts", attempts), zap.Error(cause))

	// Deliver the error report even when the run was cancelled.
	msg := notifier.ErrorMessage(attempts, cause, r.deps.Clock.Now(), r.annotation)
	delivered := r.deps.Notifier.Notify(context.WithoutCancel(ctx), msg)
	if r.deps.Recorder != nil {
		r.deps.Recorder.ObserveFailure(attempts, delivered)
	}
	return &monitor.RunFailure{Attempts: attempts, Err: cause}
}

func (r *Runner) observeAttempt(attempt int, d time.Duration, err error) {
	if r.deps.Recorder != nil {
		r.deps.Recorder.ObserveAttempt(attempt, d, err)
	}
}

func asFetchError(url string, err error) error {
	var fe *monitor.FetchError
	if errors.As(err, &fe) {
		return err
	}
	return &monitor.FetchError{URL: url, Err: err}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
