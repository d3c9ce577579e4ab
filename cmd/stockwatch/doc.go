// Package main hosts the stockwatch entrypoint: a single-shot probe that checks
// whether a product page shows the item as purchasable and reports the result
// to Telegram subscribers.
//
// Each invocation loads configuration (Viper: optional -config YAML file plus
// environment), builds the services in internal/app, and runs one check:
//   - Fetch: a fresh headless Chrome (chromedp) per attempt, or a plain HTTP GET
//     via Colly when fetcher.mode is "static".
//   - Classify: internal/detector parses the HTML with goquery and applies the
//     out-of-stock / in-stock / control-state precedence.
//   - Retry: up to retry.max_attempts attempts with a linear backoff; when all
//     fail a single error report is sent.
//   - Notify: one sendMessage per chat ID, paced by a token bucket.
//   - Metrics: optionally pushed to a Prometheus Pushgateway after the run.
//
// Exit status is 0 when a verdict was reached (available or not) and 1 on a
// configuration error or when every attempt failed.
//
// Quick checklist:
//   - Required env: TELEGRAM_TOKEN, CHAT_ID (comma separated).
//   - Optional env: PRODUCT_URL, RUN_ID, RUN_NUMBER, GITHUB_ACTIONS, and any
//     STOCKWATCH_* override such as STOCKWATCH_FETCHER_MODE=static.
//   - Run locally: go run ./cmd/stockwatch -config config.yaml
package main
