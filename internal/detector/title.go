package detector

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// TitleSelectors are tried in order; only the first element of each is read.
var TitleSelectors = []string{
	"h1",
	".product-title",
	".product-name",
	`[class*="title"]`,
	`[class*="name"]`,
}

const (
	minTitleLen = 4
	maxTitleLen = 99
)

// ValidTitle reports whether a trimmed candidate is within the accepted length.
func ValidTitle(title string) bool {
	n := utf8.RuneCountInString(title)
	return n >= minTitleLen && n <= maxTitleLen
}

// ExtractTitle returns the first acceptable product title, or "".
func ExtractTitle(doc *goquery.Document) string {
	if doc == nil {
		return ""
	}
	for _, sel := range TitleSelectors {
		first := doc.Find(sel).First()
		if first.Length() == 0 {
			continue
		}
		candidate := strings.TrimSpace(first.Text())
		if ValidTitle(candidate) {
			return candidate
		}
	}
	return ""
}
