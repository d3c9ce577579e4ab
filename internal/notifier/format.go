// Package notifier formats the HTML messages sent to subscribers.
package notifier

import (
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"github.com/JakeFAU/stockwatch/internal/monitor"
)

// TimeLayout renders timestamps the way subscribers read them.
const TimeLayout = "1/2/2006, 3:04:05 PM"

// Annotation carries the context appended to every message.
type Annotation struct {
	Target   monitor.CheckTarget
	Run      monitor.RunInfo
	Location *time.Location
}

// StatusMessage formats a stock-status notification for a verdict.
func StatusMessage(v monitor.Verdict, a Annotation) string {
	name := html.EscapeString(v.ProductName)
	var b strings.Builder
	if v.Available {
		fmt.Fprintf(&b, "🎉 <b>GREAT NEWS!</b> %s is <b>AVAILABLE!</b> 🎉\n\n", name)
		fmt.Fprintf(&b, "🔗 <a href=\"%s\">Buy now</a>\n\n", html.EscapeString(a.Target.URL))
		b.WriteString("⚡ Hurry up before it's gone!\n\n")
		a.writeFooter(&b, "Checked", v.CheckedAt)
		return b.String()
	}
	fmt.Fprintf(&b, "😞 <b>%s</b> - Still Not Available\n\n", name)
	b.WriteString("📊 <b>Status:</b> OUT OF STOCK\n")
	a.writeFooter(&b, "Checked", v.CheckedAt)
	b.WriteString("\n\n🔄 Next check in ~10 minutes...")
	return b.String()
}

// ErrorMessage formats the notification sent when every attempt failed.
func ErrorMessage(attempts int, cause error, at time.Time, a Annotation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🚨 <b>ERROR:</b> Cannot check %s after %d attempts!\n\n",
		html.EscapeString(a.Target.FallbackName), attempts)
	errText := "unknown error"
	if cause != nil {
		errText = cause.Error()
	}
	fmt.Fprintf(&b, "<b>Error:</b> %s\n", html.EscapeString(errText))
	a.writeFooter(&b, "Time", at)
	b.WriteString("\n\n🔄 Will retry in next scheduled run (~10 minutes)")
	return b.String()
}

func (a Annotation) writeFooter(b *strings.Builder, timeLabel string, at time.Time) {
	custom := "Default Product"
	if a.Target.IsCustom() {
		custom = "Yes"
	}
	fmt.Fprintf(b, "📍 <b>Source:</b> %s\n", html.EscapeString(Hostname(a.Target.URL)))
	fmt.Fprintf(b, "📡 <b>Server:</b> %s\n", html.EscapeString(a.Run.Server))
	fmt.Fprintf(b, "🔧 <b>Custom URL:</b> %s\n", custom)
	fmt.Fprintf(b, "🤖 <b>Run:</b> #%s (ID: %s)\n", html.EscapeString(a.Run.Number), html.EscapeString(a.Run.ID))
	fmt.Fprintf(b, "⏰ <b>%s:</b> %s", timeLabel, a.FormatTime(at))
}

// FormatTime renders t in the annotation's time zone.
func (a Annotation) FormatTime(t time.Time) string {
	loc := a.Location
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(TimeLayout)
}

// Hostname returns the host of rawURL, or rawURL itself when it cannot be parsed.
func Hostname(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return rawURL
	}
	return u.Hostname()
}
