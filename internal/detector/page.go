package detector

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/stockwatch/internal/monitor"
)

// ParsePage builds a RenderedPage from serialized HTML. It never fails: markup
// the parser cannot read yields an empty body, a disabled control and no title.
func ParsePage(url, html string) monitor.RenderedPage {
	page := monitor.RenderedPage{
		URL:             url,
		HTML:            html,
		ControlDisabled: true,
	}
	doc := parseDocument(html)
	if doc == nil {
		return page
	}
	page.Text = strings.ToLower(doc.Find("body").Text())
	page.ControlDisabled, _ = ControlDisabled(doc, DisabledIndicators)
	page.ExtractedTitle = ExtractTitle(doc)
	return page
}

func parseDocument(html string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	return doc
}
