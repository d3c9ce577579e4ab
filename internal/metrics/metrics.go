// Package metrics records Prometheus collectors for a probe run and pushes
// them to a Pushgateway, since a single-shot process cannot be scraped.
package metrics

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/JakeFAU/stockwatch/internal/monitor"
)

// Recorder owns a private registry with the run's collectors.
// It satisfies runner.Recorder.
type Recorder struct {
	registry *prometheus.Registry
	site     string

	attemptsTotal      *prometheus.CounterVec
	attemptDuration    *prometheus.HistogramVec
	checksTotal        *prometheus.CounterVec
	productAvailable   *prometheus.GaugeVec
	lastCheckTimestamp *prometheus.GaugeVec
	notificationsTotal *prometheus.CounterVec
	deliveryAttempts   *prometheus.CounterVec
}

// NewRecorder registers the collectors for targetURL on a fresh registry.
func NewRecorder(targetURL string) *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		site:     SanitizeSite(targetURL),
		attemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockwatch_fetch_attempts_total",
				Help: "Total number of page fetch attempts, labeled by site and result.",
			},
			[]string{"site", "result"},
		),
		attemptDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockwatch_fetch_duration_seconds",
				Help:    "Histogram of page fetch latencies, labeled by site.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30},
			},
			[]string{"site"},
		),
		checksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockwatch_checks_total",
				Help: "Total number of completed runs, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		),
		productAvailable: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stockwatch_product_available",
				Help: "1 when the last verdict was available, 0 otherwise.",
			},
			[]string{"site"},
		),
		lastCheckTimestamp: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stockwatch_last_check_timestamp_seconds",
				Help: "Unix time of the last verdict.",
			},
			[]string{"site"},
		),
		notificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockwatch_notifications_delivered_total",
				Help: "Total number of delivered notifications, labeled by kind.",
			},
			[]string{"kind"},
		),
		deliveryAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockwatch_notification_attempts_total",
				Help: "Total number of per-recipient send attempts, labeled by result.",
			},
			[]string{"result"},
		),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveAttempt records one fetch attempt.
func (r *Recorder) ObserveAttempt(_ int, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	r.attemptsTotal.WithLabelValues(r.site, result).Inc()
	r.attemptDuration.WithLabelValues(r.site).Observe(duration.Seconds())
}

// ObserveVerdict records a completed check.
func (r *Recorder) ObserveVerdict(v monitor.Verdict, delivered int) {
	outcome := "not_available"
	available := 0.0
	if v.Available {
		outcome = "available"
		available = 1
	}
	r.checksTotal.WithLabelValues(r.site, outcome).Inc()
	r.productAvailable.WithLabelValues(r.site).Set(available)
	r.lastCheckTimestamp.WithLabelValues(r.site).Set(float64(v.CheckedAt.Unix()))
	r.notificationsTotal.WithLabelValues("status").Add(float64(delivered))
}

// ObserveFailure records a run that exhausted its attempts.
func (r *Recorder) ObserveFailure(_ int, delivered int) {
	r.checksTotal.WithLabelValues(r.site, "failed").Inc()
	r.notificationsTotal.WithLabelValues("error").Add(float64(delivered))
}

// ObserveDelivery records one per-recipient send.
func (r *Recorder) ObserveDelivery(o monitor.NotificationOutcome) {
	result := "delivered"
	if !o.Delivered {
		result = "failed"
	}
	r.deliveryAttempts.WithLabelValues(result).Inc()
}

// Push sends the registry to the Pushgateway at gatewayURL under job,
// grouped by instance when instance is non-empty.
func (r *Recorder) Push(ctx context.Context, gatewayURL, job, instance string) error {
	pusher := push.New(gatewayURL, job).Gatherer(r.registry)
	if instance != "" {
		pusher = pusher.Grouping("instance", instance)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
