package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/stockwatch/internal/app"
	"github.com/JakeFAU/stockwatch/internal/config"
	"github.com/JakeFAU/stockwatch/internal/detector"
	"github.com/JakeFAU/stockwatch/internal/monitor"
)

type botServer struct {
	mu    sync.Mutex
	texts []string
	chats []string
}

func (b *botServer) handler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ChatID string `json:"chat_id"`
		Text   string `json:"text"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	b.mu.Lock()
	b.texts = append(b.texts, body.Text)
	b.chats = append(b.chats, body.ChatID)
	b.mu.Unlock()
	_, _ = w.Write([]byte(`{"ok":true}`))
}

type pageFetcher struct {
	html string
	err  error
}

func (p pageFetcher) Fetch(_ context.Context, url string) (monitor.RenderedPage, error) {
	if p.err != nil {
		return monitor.RenderedPage{}, p.err
	}
	return detector.ParsePage(url, p.html), nil
}

func noSleep(context.Context, time.Duration) error { return nil }

func testConfig(botURL string) config.Config {
	return config.Config{
		Telegram: config.TelegramConfig{
			Token:      "token",
			ChatIDs:    []string{"100", "200"},
			APIBaseURL: botURL,
			Timeout:    time.Second,
		},
		Target: config.TargetConfig{
			URL:          config.DefaultProductURL,
			FallbackName: "RobiWifi Pro Router",
		},
		Run: config.RunConfig{ID: "42", Number: "9", GitHubActions: true, Timezone: "UTC"},
		Fetcher: config.FetcherConfig{
			Mode:        config.FetcherModeHeadless,
			NavTimeout:  time.Second,
			SettleDelay: 0,
			UserAgents:  []string{"test-agent"},
		},
		Retry:   config.RetryConfig{MaxAttempts: 3, BaseDelay: 2 * time.Second, Step: time.Second},
		Metrics: config.MetricsConfig{Job: "stockwatch"},
	}
}

func newBot(t *testing.T) (*botServer, string) {
	t.Helper()
	bot := &botServer{}
	srv := httptest.NewServer(http.HandlerFunc(bot.handler))
	t.Cleanup(srv.Close)
	return bot, srv.URL
}

func TestRun_NotAvailableNotifiesEveryRecipient(t *testing.T) {
	t.Parallel()

	bot, botURL := newBot(t)
	html := `<html><body><h1>RobiWifi Pro Router</h1><span class="text-danger">Out of stock</span>` +
		`<button disabled>Add to Cart</button></body></html>`

	a, err := app.New(testConfig(botURL), zap.NewNop(), app.WithFetcher(pageFetcher{html: html}), app.WithSleep(noSleep))
	require.NoError(t, err)

	v, err := a.Run(context.Background())
	require.NoError(t, err)
	require.False(t, v.Available)

	require.Equal(t, []string{"100", "200"}, bot.chats)
	for _, text := range bot.texts {
		require.Contains(t, text, "Still Not Available")
		require.Contains(t, text, "GitHub Actions")
		require.Contains(t, text, "#9 (ID: 42)")
		require.Contains(t, text, "Default Product")
	}

	expected := `
# HELP stockwatch_notification_attempts_total Total number of per-recipient send attempts, labeled by result.
# TYPE stockwatch_notification_attempts_total counter
stockwatch_notification_attempts_total{result="delivered"} 2
`
	require.NoError(t, testutil.GatherAndCompare(a.Recorder().Registry(),
		strings.NewReader(expected), "stockwatch_notification_attempts_total"))
}

func TestRun_FetchFailureSendsSingleErrorReport(t *testing.T) {
	t.Parallel()

	bot, botURL := newBot(t)
	cfg := testConfig(botURL)
	cfg.Telegram.ChatIDs = []string{"100"}

	a, err := app.New(cfg, zap.NewNop(),
		app.WithFetcher(pageFetcher{err: errors.New("net::ERR_CONNECTION_RESET")}),
		app.WithSleep(noSleep),
	)
	require.NoError(t, err)

	_, err = a.Run(context.Background())
	var failure *monitor.RunFailure
	require.ErrorAs(t, err, &failure)
	require.Equal(t, 3, failure.Attempts)

	require.Len(t, bot.texts, 1)
	require.Contains(t, bot.texts[0], "Cannot check RobiWifi Pro Router after 3 attempts")
	require.Contains(t, bot.texts[0], "ERR_CONNECTION_RESET")
}

func TestRun_PushesMetrics(t *testing.T) {
	t.Parallel()

	_, botURL := newBot(t)
	var (
		mu    sync.Mutex
		paths []string
	)
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer gateway.Close()

	cfg := testConfig(botURL)
	cfg.Metrics.PushgatewayURL = gateway.URL
	a, err := app.New(cfg, zap.NewNop(),
		app.WithFetcher(pageFetcher{html: `<button>Add to cart</button>`}),
		app.WithSleep(noSleep),
	)
	require.NoError(t, err)

	v, err := a.Run(context.Background())
	require.NoError(t, err)
	require.True(t, v.Available)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, paths, 1)
	require.True(t, strings.HasPrefix(paths[0], "/metrics/job/stockwatch"), paths[0])
}

func TestNew_GeneratesRunIDWhenUnset(t *testing.T) {
	t.Parallel()

	cfg := testConfig("http://127.0.0.1:1")
	cfg.Run.ID = ""
	cfg.Target.URL = "https://shop.example.com/other"

	a, err := app.New(cfg, nil, app.WithFetcher(pageFetcher{}))
	require.NoError(t, err)
	require.NotEmpty(t, a.Annotation().Run.ID)
	require.True(t, a.Annotation().Target.IsCustom())
	require.Equal(t, "GitHub Actions", a.Annotation().Run.Server)
}

func TestNew_FetcherModes(t *testing.T) {
	t.Parallel()

	cfg := testConfig("http://127.0.0.1:1")
	cfg.Fetcher.Mode = config.FetcherModeStatic
	_, err := app.New(cfg, nil)
	require.NoError(t, err)

	cfg.Fetcher.Mode = config.FetcherModeHeadless
	_, err = app.New(cfg, nil)
	require.NoError(t, err)

	cfg.Fetcher.Mode = "firefox"
	_, err = app.New(cfg, nil)
	require.ErrorIs(t, err, config.ErrConfig)
}
