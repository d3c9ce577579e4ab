package detector

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ControlText is the case-insensitive label that identifies the purchase control.
const ControlText = "add to cart"

// controlSelector lists button-like elements in document order.
const controlSelector = `button, input[type="submit"], input[type="button"], [role="button"]`

// DisabledIndicator is one independent signal that a control cannot be used.
type DisabledIndicator struct {
	Name  string
	Match func(*goquery.Selection) bool
}

// DisabledIndicators are OR-combined; any match disables the control.
var DisabledIndicators = []DisabledIndicator{
	{Name: "disabled-attribute", Match: hasAttr("disabled")},
	{Name: "disabled-class", Match: hasClass("disabled")},
	{Name: "button-disabled-class", Match: hasClass("button-disabled")},
}

func hasAttr(name string) func(*goquery.Selection) bool {
	return func(s *goquery.Selection) bool {
		_, ok := s.Attr(name)
		return ok
	}
}

func hasClass(class string) func(*goquery.Selection) bool {
	return func(s *goquery.Selection) bool {
		return s.HasClass(class)
	}
}

// IsDisabled reports whether any indicator matches the selection.
func IsDisabled(s *goquery.Selection, indicators []DisabledIndicator) bool {
	for _, ind := range indicators {
		if ind.Match != nil && ind.Match(s) {
			return true
		}
	}
	return false
}

// FindControl returns the first button-like element whose label contains
// ControlText, or nil. Wrappers around another button-like element are
// skipped so the innermost control is evaluated.
func FindControl(doc *goquery.Document) *goquery.Selection {
	if doc == nil {
		return nil
	}
	var control *goquery.Selection
	doc.Find(controlSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.Find(controlSelector).Length() > 0 {
			return true
		}
		if strings.Contains(controlLabel(s), ControlText) {
			control = s
			return false
		}
		return true
	})
	return control
}

// ControlDisabled evaluates the purchase control. A page without one is
// conservatively reported as disabled; found tells the two cases apart.
func ControlDisabled(doc *goquery.Document, indicators []DisabledIndicator) (disabled bool, found bool) {
	control := FindControl(doc)
	if control == nil {
		return true, false
	}
	return IsDisabled(control, indicators), true
}

func controlLabel(s *goquery.Selection) string {
	label := s.Text()
	if goquery.NodeName(s) == "input" {
		label, _ = s.Attr("value")
	}
	return strings.ToLower(strings.TrimSpace(label))
}
