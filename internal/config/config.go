// Package config loads and validates stockwatch configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// ErrConfig marks configuration problems that must stop the process before
// any network activity.
var ErrConfig = errors.New("invalid configuration")

// DefaultProductURL is checked when PRODUCT_URL is not set.
const DefaultProductURL = "https://robishop.com.bd/robiwifi-pro-router.html"

// Fetcher modes.
const (
	FetcherModeHeadless = "headless"
	FetcherModeStatic   = "static"
)

// UserAgentList holds user-agent strings. From a single string (an env var) it
// is split on newlines or "|", never on commas, which real agents contain.
type UserAgentList []string

// DefaultUserAgents is the rotation pool used when none is configured.
var DefaultUserAgents = UserAgentList{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:120.0) Gecko/20100101 Firefox/120.0",
}

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Target   TargetConfig   `mapstructure:"target"`
	Run      RunConfig      `mapstructure:"run"`
	Fetcher  FetcherConfig  `mapstructure:"fetcher"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// TelegramConfig holds Bot API credentials and recipients.
type TelegramConfig struct {
	Token         string        `mapstructure:"token"`
	ChatIDs       []string      `mapstructure:"chat_ids"`
	APIBaseURL    string        `mapstructure:"api_base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
}

// TargetConfig names the product page under watch.
type TargetConfig struct {
	URL          string `mapstructure:"url"`
	FallbackName string `mapstructure:"fallback_name"`
}

// RunConfig carries scheduler metadata used only to annotate messages.
type RunConfig struct {
	ID            string `mapstructure:"id"`
	Number        string `mapstructure:"number"`
	Server        string `mapstructure:"server"`
	GitHubActions bool   `mapstructure:"github_actions"`
	Timezone      string `mapstructure:"timezone"`
}

// FetcherConfig configures page loading.
type FetcherConfig struct {
	Mode       string        `mapstructure:"mode"`
	NavTimeout time.Duration `mapstructure:"nav_timeout"`
	// SettleDelay is a fixed wait for client-side rendering. Pages that render
	// slower read as disabled or out of stock; WaitSelector avoids that.
	SettleDelay  time.Duration `mapstructure:"settle_delay"`
	WaitSelector string        `mapstructure:"wait_selector"`
	UserAgents   UserAgentList `mapstructure:"user_agents"`
	NoSandbox    bool          `mapstructure:"no_sandbox"`
	WindowWidth  int           `mapstructure:"window_width"`
	WindowHeight int           `mapstructure:"window_height"`
}

// RetryConfig bounds the attempt loop.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	Step        time.Duration `mapstructure:"step"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// MetricsConfig enables pushing run metrics to a Prometheus Pushgateway.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("STOCKWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindLegacyEnv(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHooks())); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// bindLegacyEnv maps the scheduler's plain variable names onto config keys.
func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string]string{
		"telegram.token":     "TELEGRAM_TOKEN",
		"telegram.chat_ids":  "CHAT_ID",
		"target.url":         "PRODUCT_URL",
		"run.id":             "RUN_ID",
		"run.number":         "RUN_NUMBER",
		"run.github_actions": "GITHUB_ACTIONS",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind env %s: %w", env, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("telegram.api_base_url", "https://api.telegram.org")
	v.SetDefault("telegram.timeout", 10*time.Second)
	v.SetDefault("telegram.rate_per_second", 20.0)
	v.SetDefault("target.url", DefaultProductURL)
	v.SetDefault("target.fallback_name", "RobiWifi Pro Router")
	v.SetDefault("run.number", "1")
	v.SetDefault("run.github_actions", false)
	v.SetDefault("run.timezone", "Asia/Dhaka")
	v.SetDefault("fetcher.mode", FetcherModeHeadless)
	v.SetDefault("fetcher.nav_timeout", 20*time.Second)
	v.SetDefault("fetcher.settle_delay", 3*time.Second)
	v.SetDefault("fetcher.wait_selector", "")
	v.SetDefault("fetcher.user_agents", DefaultUserAgents)
	v.SetDefault("fetcher.no_sandbox", false)
	v.SetDefault("fetcher.window_width", 1280)
	v.SetDefault("fetcher.window_height", 720)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay", 2*time.Second)
	v.SetDefault("retry.step", time.Second)
	v.SetDefault("logging.development", false)
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "stockwatch")
}

func (c *Config) normalize() {
	c.Telegram.ChatIDs = splitList(c.Telegram.ChatIDs)
	c.Fetcher.UserAgents = trimList(c.Fetcher.UserAgents)
	c.Telegram.Token = strings.TrimSpace(c.Telegram.Token)
	c.Target.URL = strings.TrimSpace(c.Target.URL)
	c.Fetcher.Mode = strings.ToLower(strings.TrimSpace(c.Fetcher.Mode))
}

func decodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		userAgentListHook,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

var userAgentListType = reflect.TypeOf(UserAgentList{})

func userAgentListHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != userAgentListType {
		return data, nil
	}
	return UserAgentList(strings.FieldsFunc(data.(string), func(r rune) bool {
		return r == '\n' || r == '|'
	})), nil
}

// splitList trims entries and drops blanks. A single entry may itself be a
// comma-separated list, which is how CHAT_ID arrives from the environment.
func splitList(in []string) []string {
	var out []string
	for _, raw := range in {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// trimList trims entries and drops blanks without splitting them.
func trimList(in []string) []string {
	var out []string
	for _, raw := range in {
		if raw = strings.TrimSpace(raw); raw != "" {
			out = append(out, raw)
		}
	}
	return out
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("%w: telegram.token (TELEGRAM_TOKEN) must be set", ErrConfig)
	}
	if len(c.Telegram.ChatIDs) == 0 {
		return fmt.Errorf("%w: telegram.chat_ids (CHAT_ID) must list at least one recipient", ErrConfig)
	}
	if c.Telegram.RatePerSecond < 0 {
		return fmt.Errorf("%w: telegram.rate_per_second must be >= 0", ErrConfig)
	}
	if u, err := url.ParseRequestURI(c.Target.URL); err != nil || u.Host == "" {
		return fmt.Errorf("%w: target.url %q is not an absolute URL", ErrConfig, c.Target.URL)
	}
	switch c.Fetcher.Mode {
	case FetcherModeHeadless, FetcherModeStatic:
	default:
		return fmt.Errorf("%w: fetcher.mode must be %q or %q", ErrConfig, FetcherModeHeadless, FetcherModeStatic)
	}
	if c.Fetcher.NavTimeout <= 0 {
		return fmt.Errorf("%w: fetcher.nav_timeout must be > 0", ErrConfig)
	}
	if c.Fetcher.SettleDelay < 0 {
		return fmt.Errorf("%w: fetcher.settle_delay must be >= 0", ErrConfig)
	}
	if len(c.Fetcher.UserAgents) == 0 {
		return fmt.Errorf("%w: fetcher.user_agents must not be empty", ErrConfig)
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("%w: retry.max_attempts must be > 0", ErrConfig)
	}
	if c.Retry.BaseDelay < 0 || c.Retry.Step < 0 {
		return fmt.Errorf("%w: retry delays must be >= 0", ErrConfig)
	}
	if _, err := time.LoadLocation(c.Run.Timezone); err != nil {
		return fmt.Errorf("%w: run.timezone: %v", ErrConfig, err)
	}
	return nil
}

// ServerName describes where the probe runs, for message annotation.
func (c RunConfig) ServerName() string {
	switch {
	case c.Server != "":
		return c.Server
	case c.GitHubActions:
		return "GitHub Actions"
	default:
		return "local"
	}
}

// Location returns the display time zone, falling back to UTC.
func (c RunConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
