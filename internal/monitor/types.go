package monitor

import (
	"time"
)

// CheckTarget is the immutable input to a run.
type CheckTarget struct {
	URL          string
	FallbackName string
	DefaultURL   string
}

// IsCustom reports whether the target URL was overridden from the built-in default.
func (t CheckTarget) IsCustom() bool {
	return t.DefaultURL != "" && t.URL != t.DefaultURL
}

// RenderedPage is produced once per fetch attempt and discarded after classification.
type RenderedPage struct {
	URL string
	// HTML is the serialized DOM after client-side rendering settled.
	HTML string
	// Text is a lowercased copy of the body text used for phrase matching.
	Text string
	// ControlDisabled reports whether the "add to cart" control is unusable.
	// A page without such a control is treated as disabled.
	ControlDisabled bool
	// ExtractedTitle is empty when no title candidate passed the length bounds.
	ExtractedTitle string
}

// Verdict is the outcome of classifying a RenderedPage.
type Verdict struct {
	Available        bool
	ProductName      string
	OutOfStockSignal bool
	InStockSignal    bool
	ControlDisabled  bool
	CheckedAt        time.Time
	Attempt          int
}

// Status returns the uppercase label used in logs.
func (v Verdict) Status() string {
	if v.Available {
		return "AVAILABLE"
	}
	return "NOT AVAILABLE"
}

// NotificationOutcome records one delivery attempt to one recipient.
type NotificationOutcome struct {
	RecipientID string
	Delivered   bool
	Err         error
}

// RunInfo annotates messages with scheduler metadata.
type RunInfo struct {
	ID     string
	Number string
	Server string
}
