// Package detector turns rendered product pages into availability verdicts.
//
// The rules are a best-effort heuristic: an explicit out-of-stock phrase always
// wins, and an enabled purchase control with no negative phrase is read as
// available even without a positive phrase. That last rule can report pages
// with unrelated enabled buttons as available.
package detector

import (
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/stockwatch/internal/monitor"
)

// Heuristic implements monitor.Classifier with ordered signal lists.
type Heuristic struct {
	OutOfStock []Signal
	InStock    []Signal
}

// NewHeuristic creates a classifier with the default signals.
func NewHeuristic() *Heuristic {
	return &Heuristic{
		OutOfStock: OutOfStockSignals,
		InStock:    InStockSignals,
	}
}

// Classify produces the verdict for one attempt. It has no side effects.
func (h *Heuristic) Classify(
	page monitor.RenderedPage,
	target monitor.CheckTarget,
	attempt int,
	checkedAt time.Time,
) monitor.Verdict {
	doc := parseDocument(page.HTML)
	outOfStock := AnyMatch(h.OutOfStock, doc, page.Text)
	inStock := AnyMatch(h.InStock, doc, page.Text)

	return monitor.Verdict{
		Available:        Decide(outOfStock, inStock, page.ControlDisabled),
		ProductName:      productName(page, doc, target),
		OutOfStockSignal: outOfStock,
		InStockSignal:    inStock,
		ControlDisabled:  page.ControlDisabled,
		CheckedAt:        checkedAt,
		Attempt:          attempt,
	}
}

// Decide applies the precedence rules; the first match wins.
func Decide(outOfStock, inStock, controlDisabled bool) bool {
	switch {
	case outOfStock:
		return false
	case inStock && !controlDisabled:
		return true
	case !controlDisabled:
		return true
	default:
		return false
	}
}

func productName(page monitor.RenderedPage, doc *goquery.Document, target monitor.CheckTarget) string {
	if ValidTitle(page.ExtractedTitle) {
		return page.ExtractedTitle
	}
	if title := ExtractTitle(doc); title != "" {
		return title
	}
	return target.FallbackName
}
