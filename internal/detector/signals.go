package detector

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Signal is a named stock-status matcher. text is the lowercased body text.
type Signal struct {
	Name  string
	Match func(doc *goquery.Document, text string) bool
}

// OutOfStockSignals dominate every other rule when any of them matches.
var OutOfStockSignals = []Signal{
	selectorContains(".stock-status", "Out of stock"),
	selectorContains("span.text-danger", "Out of stock"),
	documentContainsAll("Availability:", "Out of stock"),
	phrase("out of stock"),
	phrase("stock out"),
	phrase("unavailable"),
}

// InStockSignals only count while the purchase control is enabled.
var InStockSignals = []Signal{
	selectorContains(".stock-status", "In stock"),
	documentContainsAll("Availability:", "In stock"),
	phrase("in stock"),
	phrase("available now"),
}

// AnyMatch reports whether at least one signal matches.
func AnyMatch(signals []Signal, doc *goquery.Document, text string) bool {
	for _, sig := range signals {
		if sig.Match != nil && sig.Match(doc, text) {
			return true
		}
	}
	return false
}

func phrase(p string) Signal {
	return Signal{
		Name: "text:" + p,
		Match: func(_ *goquery.Document, text string) bool {
			return strings.Contains(text, p)
		},
	}
}

// selectorContains matches an element selected by sel whose text contains
// needle. The comparison is case-sensitive, as CSS :contains is.
func selectorContains(sel, needle string) Signal {
	return Signal{
		Name: sel + ":" + needle,
		Match: func(doc *goquery.Document, _ string) bool {
			if doc == nil {
				return false
			}
			found := false
			doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
				found = strings.Contains(s.Text(), needle)
				return !found
			})
			return found
		},
	}
}

// documentContainsAll matches when some element carries every needle. The root
// element contains the text of all its descendants, so checking it suffices.
func documentContainsAll(needles ...string) Signal {
	return Signal{
		Name: "document:" + strings.Join(needles, "+"),
		Match: func(doc *goquery.Document, _ string) bool {
			if doc == nil {
				return false
			}
			all := doc.Text()
			for _, n := range needles {
				if !strings.Contains(all, n) {
					return false
				}
			}
			return true
		},
	}
}
