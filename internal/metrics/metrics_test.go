package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/stockwatch/internal/monitor"
)

func TestSanitizeSite(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://RobiShop.com.bd/robiwifi-pro-router.html", "robishop.com.bd"},
		{"no scheme", "example.com/path", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.expected, SanitizeSite(tc.input))
		})
	}
}

func TestRecorderObservesAttempts(t *testing.T) {
	t.Parallel()

	rec := NewRecorder("https://shop.example.com/item")
	rec.ObserveAttempt(1, 2*time.Second, errors.New("timeout"))
	rec.ObserveAttempt(2, time.Second, nil)

	require.InDelta(t, 1, testutil.ToFloat64(rec.attemptsTotal.WithLabelValues("shop.example.com", "error")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(rec.attemptsTotal.WithLabelValues("shop.example.com", "success")), 0)
	require.Equal(t, 1, testutil.CollectAndCount(rec.attemptDuration))
}

func TestRecorderObservesVerdictAndFailure(t *testing.T) {
	t.Parallel()

	rec := NewRecorder("https://shop.example.com/item")
	checkedAt := time.Unix(1_700_000_000, 0)
	rec.ObserveVerdict(monitor.Verdict{Available: true, CheckedAt: checkedAt}, 2)

	require.InDelta(t, 1, testutil.ToFloat64(rec.productAvailable), 0)
	require.InDelta(t, float64(checkedAt.Unix()), testutil.ToFloat64(rec.lastCheckTimestamp), 0)
	require.InDelta(t, 1, testutil.ToFloat64(rec.checksTotal.WithLabelValues("shop.example.com", "available")), 0)
	require.InDelta(t, 2, testutil.ToFloat64(rec.notificationsTotal.WithLabelValues("status")), 0)

	rec.ObserveVerdict(monitor.Verdict{Available: false, CheckedAt: checkedAt}, 0)
	require.InDelta(t, 0, testutil.ToFloat64(rec.productAvailable), 0)

	rec.ObserveFailure(3, 1)
	require.InDelta(t, 1, testutil.ToFloat64(rec.checksTotal.WithLabelValues("shop.example.com", "failed")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(rec.notificationsTotal.WithLabelValues("error")), 0)
}

func TestRecorderObservesDelivery(t *testing.T) {
	t.Parallel()

	rec := NewRecorder("shop.example.com")
	rec.ObserveDelivery(monitor.NotificationOutcome{RecipientID: "1", Delivered: true})
	rec.ObserveDelivery(monitor.NotificationOutcome{RecipientID: "2", Err: errors.New("403")})
	rec.ObserveDelivery(monitor.NotificationOutcome{RecipientID: "3", Delivered: true})

	require.InDelta(t, 2, testutil.ToFloat64(rec.deliveryAttempts.WithLabelValues("delivered")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(rec.deliveryAttempts.WithLabelValues("failed")), 0)
}

func TestRecorderRegistriesAreIndependent(t *testing.T) {
	t.Parallel()

	first := NewRecorder("a.example")
	second := NewRecorder("b.example")
	first.ObserveFailure(3, 0)

	require.NotSame(t, first.Registry(), second.Registry())
	require.InDelta(t, 0, testutil.ToFloat64(second.checksTotal.WithLabelValues("b.example", "failed")), 0)
}

func TestRecorderPush(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		method string
		path   string
		body   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		mu.Lock()
		method, path, body = r.Method, r.URL.Path, string(raw)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rec := NewRecorder("https://shop.example.com/item")
	rec.ObserveFailure(3, 1)

	require.NoError(t, rec.Push(context.Background(), srv.URL, "stockwatch", "ci"))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, http.MethodPut, method)
	require.True(t, strings.HasPrefix(path, "/metrics/job/stockwatch"), path)
	require.Contains(t, path, "/instance/ci")
	require.NotEmpty(t, body)
}

func TestRecorderPushError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewRecorder("x.example").Push(context.Background(), srv.URL, "stockwatch", "")
	require.ErrorContains(t, err, "push metrics")
}

func FuzzSanitizeSite(f *testing.F) {
	for _, tc := range []string{"http://example.com", "https://robishop.com.bd", "ftp://example.com"} {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		if SanitizeSite(orig) == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
