// Package telegram delivers notifications through the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/stockwatch/internal/monitor"
)

const (
	defaultBaseURL  = "https://api.telegram.org"
	defaultTimeout  = 10 * time.Second
	parseModeHTML   = "HTML"
	maxResponseBody = 4 << 10
)

// Config holds Bot API credentials and the recipient list.
type Config struct {
	Token   string
	ChatIDs []string
	BaseURL string
	Timeout time.Duration
	// RatePerSecond paces outbound requests; zero disables pacing.
	RatePerSecond float64
}

// Observer is told about every delivery attempt.
type Observer func(monitor.NotificationOutcome)

// Client implements monitor.Notifier. Sends are sequential and independent:
// one recipient failing never stops delivery to the rest.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	observer   Observer
	logger     *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithObserver registers a callback for delivery outcomes.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// New creates a Client.
func New(cfg Config, logger *zap.Logger, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Notify sends message to every recipient and returns the delivery count.
func (c *Client) Notify(ctx context.Context, message string) int {
	outcomes := c.Send(ctx, message)
	delivered := 0
	for _, o := range outcomes {
		if o.Delivered {
			delivered++
		}
	}
	if len(outcomes) > 0 {
		c.logger.Info("notification summary",
			zap.Int("delivered", delivered),
			zap.Int("recipients", len(outcomes)),
		)
	}
	return delivered
}

// Send delivers message to each recipient in order and reports every outcome.
// Missing credentials or recipients make it a logged no-op.
func (c *Client) Send(ctx context.Context, message string) []monitor.NotificationOutcome {
	if c.cfg.Token == "" || len(c.cfg.ChatIDs) == 0 {
		c.logger.Warn("telegram credentials not configured; skipping notification")
		return nil
	}
	outcomes := make([]monitor.NotificationOutcome, 0, len(c.cfg.ChatIDs))
	for _, chatID := range c.cfg.ChatIDs {
		err := c.sendOne(ctx, chatID, message)
		outcome := monitor.NotificationOutcome{RecipientID: chatID, Delivered: err == nil, Err: err}
		if err != nil {
			c.logger.Error("telegram send failed", zap.String("chat_id", chatID), zap.Error(err))
		} else {
			c.logger.Info("telegram notification sent", zap.String("chat_id", chatID))
		}
		if c.observer != nil {
			c.observer(outcome)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type apiResponse struct {
	OK          *bool  `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

func (r apiResponse) rejected() bool {
	return r.OK != nil && !*r.OK
}

func (r apiResponse) reason() string {
	switch {
	case r.ErrorCode != 0 && r.Description != "":
		return fmt.Sprintf("error_code %d: %s", r.ErrorCode, r.Description)
	case r.Description != "":
		return r.Description
	case r.ErrorCode != 0:
		return fmt.Sprintf("error_code %d", r.ErrorCode)
	default:
		return ""
	}
}

func (c *Client) sendOne(ctx context.Context, chatID, message string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	body, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: message, ParseMode: parseModeHTML})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", redact(err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deliver: %w", redact(err))
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	var apiResp apiResponse
	decoded := json.Unmarshal(raw, &apiResp) == nil

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if reason := apiResp.reason(); decoded && reason != "" {
			return fmt.Errorf("telegram returned status %d: %s", resp.StatusCode, reason)
		}
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}
	// The Bot API reports some failures with a 200 and "ok": false.
	if decoded && apiResp.rejected() {
		return fmt.Errorf("telegram rejected message: %s", apiResp.reason())
	}
	return nil
}

func (c *Client) endpoint() string {
	return c.cfg.BaseURL + "/bot" + c.cfg.Token + "/sendMessage"
}

// redact strips the request URL, which embeds the bot token, from transport errors.
func redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}
	return err
}
