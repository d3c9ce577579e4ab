// Package headless contains fetchers that execute JavaScript via browsers.
package headless

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/stockwatch/internal/detector"
	"github.com/JakeFAU/stockwatch/internal/fetcher"
	"github.com/JakeFAU/stockwatch/internal/monitor"
)

const (
	defaultNavigationTimeout = 20 * time.Second
	defaultWindowWidth       = 1280
	defaultWindowHeight      = 720
)

// Config controls the behavior of the headless fetcher.
type Config struct {
	UserAgents        []string
	NavigationTimeout time.Duration
	// SettleDelay is waited after navigation so client-side rendering can
	// finish. It is a heuristic: slower pages are sampled half-rendered.
	SettleDelay time.Duration
	// WaitSelector, when set, replaces the fixed delay with a wait for the
	// selector to become visible, bounded by SettleDelay (or the navigation
	// timeout when SettleDelay is zero). A timeout here is not an error.
	WaitSelector string
	NoSandbox    bool
	WindowWidth  int
	WindowHeight int
}

// Fetcher implements monitor.Fetcher using chromedp and headless Chrome.
// Every Fetch launches its own browser process and tears it down before
// returning, so no state leaks between attempts.
type Fetcher struct {
	cfg    Config
	agents fetcher.UserAgentPool
	logger *zap.Logger
}

// NewChromedp creates a headless fetcher backed by chromedp.
func NewChromedp(cfg Config, logger *zap.Logger) (*Fetcher, error) {
	if len(cfg.UserAgents) == 0 {
		return nil, errors.New("at least one user agent is required")
	}
	if cfg.SettleDelay < 0 {
		return nil, fmt.Errorf("settle delay must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavigationTimeout
	}
	if cfg.WindowWidth <= 0 || cfg.WindowHeight <= 0 {
		cfg.WindowWidth, cfg.WindowHeight = defaultWindowWidth, defaultWindowHeight
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		cfg:    cfg,
		agents: fetcher.UserAgentPool(cfg.UserAgents),
		logger: logger,
	}, nil
}

// Fetch navigates with a fresh headless browser and returns the rendered page.
func (f *Fetcher) Fetch(ctx context.Context, url string) (monitor.RenderedPage, error) {
	userAgent := f.agents.Pick()

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, f.allocatorOptions(userAgent)...)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	if err := chromedp.Run(browserCtx); err != nil {
		return monitor.RenderedPage{}, fetchError(url, fmt.Errorf("launch browser: %w", err))
	}

	meta := &documentStatus{}
	chromedp.ListenTarget(browserCtx, meta.captureEvent)

	start := time.Now()
	if err := f.navigate(browserCtx, url); err != nil {
		return monitor.RenderedPage{}, fetchError(url, err)
	}
	if err := f.settle(browserCtx); err != nil {
		return monitor.RenderedPage{}, fetchError(url, err)
	}

	var html string
	if err := chromedp.Run(browserCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return monitor.RenderedPage{}, fetchError(url, fmt.Errorf("capture dom: %w", err))
	}

	f.logger.Debug("page rendered",
		zap.String("url", url),
		zap.Int("status", meta.get()),
		zap.String("user_agent", userAgent),
		zap.Int("bytes", len(html)),
		zap.Duration("duration", time.Since(start)),
	)
	return detector.ParsePage(url, html), nil
}

// navigate loads url and returns once DOMContentLoaded fires. Subresources
// that hold back the load event do not count against the timeout.
func (f *Fetcher) navigate(browserCtx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(browserCtx, f.cfg.NavigationTimeout)
	defer cancel()

	onEvent, domReady := domReadyListener()
	chromedp.ListenTarget(navCtx, onEvent)

	actions := []chromedp.Action{
		network.Enable(),
		page.Enable(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, _, errorText, _, err := page.Navigate(url).Do(ctx)
			switch {
			case err != nil:
				return err
			case errorText != "":
				return fmt.Errorf("page load error %s", errorText)
			}
			return nil
		}),
	}
	if err := chromedp.Run(navCtx, actions...); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	if err := waitDOMReady(navCtx, domReady); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	return nil
}

// domReadyListener returns a target listener and a channel closed on the
// first DOMContentLoaded event.
func domReadyListener() (func(ev any), <-chan struct{}) {
	ready := make(chan struct{})
	var once sync.Once
	return func(ev any) {
		if _, ok := ev.(*page.EventDomContentEventFired); ok {
			once.Do(func() { close(ready) })
		}
	}, ready
}

func waitDOMReady(ctx context.Context, ready <-chan struct{}) error {
	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for DOMContentLoaded: %w", ctx.Err())
	}
}

func (f *Fetcher) settle(browserCtx context.Context) error {
	if f.cfg.WaitSelector == "" {
		if f.cfg.SettleDelay == 0 {
			return nil
		}
		if err := chromedp.Run(browserCtx, chromedp.Sleep(f.cfg.SettleDelay)); err != nil {
			return fmt.Errorf("settle: %w", err)
		}
		return nil
	}

	bound := f.cfg.SettleDelay
	if bound == 0 {
		bound = f.cfg.NavigationTimeout
	}
	waitCtx, cancel := context.WithTimeout(browserCtx, bound)
	defer cancel()
	err := chromedp.Run(waitCtx, chromedp.WaitVisible(f.cfg.WaitSelector, chromedp.ByQuery))
	switch {
	case err == nil:
		return nil
	case browserCtx.Err() != nil:
		return fmt.Errorf("wait for %q: %w", f.cfg.WaitSelector, browserCtx.Err())
	default:
		f.logger.Warn("wait selector not visible; sampling page anyway",
			zap.String("selector", f.cfg.WaitSelector),
			zap.Duration("waited", bound),
			zap.Error(err),
		)
		return nil
	}
}

func (f *Fetcher) allocatorOptions(userAgent string) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.WindowSize(f.cfg.WindowWidth, f.cfg.WindowHeight),
	)
	if userAgent != "" {
		opts = append(opts, chromedp.UserAgent(userAgent))
	}
	if f.cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	return opts
}

func fetchError(url string, err error) *monitor.FetchError {
	return &monitor.FetchError{URL: url, Err: err}
}

// documentStatus records the HTTP status of the main document for logging.
type documentStatus struct {
	mu     sync.Mutex
	status int
}

func (d *documentStatus) captureEvent(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	d.mu.Lock()
	if d.status == 0 {
		d.status = int(resp.Response.Status)
	}
	d.mu.Unlock()
}

func (d *documentStatus) get() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}
