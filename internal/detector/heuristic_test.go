package detector

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/stockwatch/internal/monitor"
)

var testTarget = monitor.CheckTarget{
	URL:          "https://shop.example.com/router.html",
	FallbackName: "Fallback Router",
}

func classify(t *testing.T, html string) monitor.Verdict {
	t.Helper()
	page := ParsePage(testTarget.URL, html)
	return NewHeuristic().Classify(page, testTarget, 1, time.Unix(100, 0))
}

func TestHeuristic_OutOfStockDominatesControlState(t *testing.T) {
	t.Parallel()

	pages := []string{
		`<html><body><h1>Router X</h1><p>Out of stock</p><button>Add to Cart</button></body></html>`,
		`<html><body><h1>Router X</h1><p>Out of stock</p><button disabled>Add to Cart</button></body></html>`,
		`<html><body><p>Currently unavailable</p><button>Add to cart</button></body></html>`,
		`<html><body><p>STOCK OUT</p><p>In stock soon</p><button>Add to cart</button></body></html>`,
	}
	for _, html := range pages {
		v := classify(t, html)
		require.False(t, v.Available, html)
		require.True(t, v.OutOfStockSignal, html)
	}
}

func TestHeuristic_EnabledControlWithoutSignalsIsAvailable(t *testing.T) {
	t.Parallel()

	v := classify(t, `<html><body><h1>Router X</h1><button class="btn">Add to Cart</button></body></html>`)
	require.True(t, v.Available)
	require.False(t, v.OutOfStockSignal)
	require.False(t, v.InStockSignal)
	require.False(t, v.ControlDisabled)
}

func TestHeuristic_DisabledControlWithoutInStockIsUnavailable(t *testing.T) {
	t.Parallel()

	v := classify(t, `<html><body><h1>Router X</h1><button class="button-disabled">Add to Cart</button></body></html>`)
	require.False(t, v.Available)
	require.True(t, v.ControlDisabled)
}

func TestHeuristic_InStockNeedsEnabledControl(t *testing.T) {
	t.Parallel()

	v := classify(t, `<html><body><span class="stock-status">In stock</span><button>Add to Cart</button></body></html>`)
	require.True(t, v.Available)
	require.True(t, v.InStockSignal)

	v = classify(t, `<html><body><span class="stock-status">In stock</span><button disabled>Add to Cart</button></body></html>`)
	require.False(t, v.Available)
	require.True(t, v.InStockSignal)
}

func TestHeuristic_DisabledButtonInsideRoleWrapperIsUnavailable(t *testing.T) {
	t.Parallel()

	v := classify(t, `<html><body><h1>Router X</h1>`+
		`<div role="button"><button disabled>Add to Cart</button></div></body></html>`)
	require.True(t, v.ControlDisabled)
	require.False(t, v.Available)
}

func TestHeuristic_MissingControlIsUnavailable(t *testing.T) {
	t.Parallel()

	v := classify(t, `<html><body><p>In stock</p><button>Buy now</button></body></html>`)
	require.False(t, v.Available)
	require.True(t, v.ControlDisabled)
}

func TestHeuristic_MalformedMarkupDegrades(t *testing.T) {
	t.Parallel()

	v := classify(t, `<<<>>><div class=`)
	require.False(t, v.Available)
	require.Equal(t, "Fallback Router", v.ProductName)
}

func TestHeuristic_CarriesAttemptAndTimestamp(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	v := NewHeuristic().Classify(monitor.RenderedPage{ControlDisabled: true}, testTarget, 2, at)
	require.Equal(t, 2, v.Attempt)
	require.Equal(t, at, v.CheckedAt)
}

func TestDecide(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                          string
		outOfStock, inStock, disabled bool
		want                          bool
	}{
		{"out of stock enabled", true, false, false, false},
		{"out of stock and in stock", true, true, false, false},
		{"in stock enabled", false, true, false, true},
		{"in stock disabled", false, true, true, false},
		{"no signals enabled", false, false, false, true},
		{"no signals disabled", false, false, true, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, Decide(tt.outOfStock, tt.inStock, tt.disabled))
		})
	}
}

func TestHeuristic_ProductNamePrefersExtractedTitle(t *testing.T) {
	t.Parallel()

	page := monitor.RenderedPage{ExtractedTitle: "Router Pro Max"}
	v := NewHeuristic().Classify(page, testTarget, 1, time.Time{})
	require.Equal(t, "Router Pro Max", v.ProductName)

	page = monitor.RenderedPage{ExtractedTitle: "abc", HTML: `<h1>` + strings.Repeat("x", 120) + `</h1>`}
	v = NewHeuristic().Classify(page, testTarget, 1, time.Time{})
	require.Equal(t, "Fallback Router", v.ProductName)
}
