// Package collyfetcher implements a static, non-JavaScript page fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/stockwatch/internal/detector"
	"github.com/JakeFAU/stockwatch/internal/fetcher"
	"github.com/JakeFAU/stockwatch/internal/monitor"
)

const defaultTimeout = 20 * time.Second

// Config controls collector behavior.
type Config struct {
	UserAgents []string
	Timeout    time.Duration
}

// Fetcher implements monitor.Fetcher with a plain HTTP GET. Pages that build
// their purchase control in JavaScript will read as disabled; use the
// headless fetcher for those.
type Fetcher struct {
	cfg           Config
	agents        fetcher.UserAgentPool
	baseCollector *colly.Collector
	logger        *zap.Logger
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	// Retries revisit the same URL, so the visited-set must not block them.
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.WithTransport(newHTTPTransport())

	return &Fetcher{
		cfg:           cfg,
		agents:        fetcher.UserAgentPool(cfg.UserAgents),
		baseCollector: c,
		logger:        logger,
	}
}

// Fetch executes a single HTTP GET and parses the response body.
func (f *Fetcher) Fetch(ctx context.Context, url string) (monitor.RenderedPage, error) {
	var (
		body     []byte
		status   int
		fetchErr error
	)
	collector := f.buildCollector()
	f.configureCollectorHooks(collector, &body, &status, &fetchErr)

	start := time.Now()
	if err := runCollector(ctx, collector, url, &fetchErr); err != nil {
		return monitor.RenderedPage{}, &monitor.FetchError{URL: url, Err: err}
	}
	f.logger.Debug("page fetched",
		zap.String("url", url),
		zap.Int("status", status),
		zap.String("user_agent", collector.UserAgent),
		zap.Int("bytes", len(body)),
		zap.Duration("duration", time.Since(start)),
	)
	return detector.ParsePage(url, string(body)), nil
}

func (f *Fetcher) buildCollector() *colly.Collector {
	collector := f.baseCollector.Clone()
	if ua := f.agents.Pick(); ua != "" {
		collector.UserAgent = ua
	}
	collector.SetRequestTimeout(f.cfg.Timeout)
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	body *[]byte,
	status *int,
	fetchErr *error,
) {
	hooks.OnResponse(func(r *colly.Response) {
		*body = append([]byte(nil), r.Body...)
		*status = r.StatusCode
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			err = fmt.Errorf("status %d: %w", r.StatusCode, err)
		}
		*fetchErr = err
	})
}

func runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
}
