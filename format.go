package main

import (
	"fmt"
	"io"
	"time"
)

// statusf prints a status message to w unless quiet mode is set.
func statusf(w io.Writer, quiet bool, format string, args ...any) {
	if !quiet {
		fmt.Fprintf(w, format, args...)
	}
}

// formatExpiry describes exp relative to now, e.g. "expires in 1h23m" or
// "expired 5m ago".
func formatExpiry(exp, now time.Time) string {
	d := exp.Sub(now)
	if d <= 0 {
		return "expired " + formatDuration(-d) + " ago"
	}

	return "expires in " + formatDuration(d)
}

// formatDuration renders d at minute precision; under a minute is "<1m".
func formatDuration(d time.Duration) string {
	d = d.Truncate(time.Minute)

	switch {
	case d < time.Minute:
		return "<1m"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	default:
		return fmt.Sprintf("%dd%02dh", int(d.Hours())/24, int(d.Hours())%24)
	}
}
