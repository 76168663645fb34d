package stringutil

import (
	"fmt"
	"time"
)

// FormatDuration formats a duration into a human-readable string.
// Negative durations are prefixed with a "-" sign.
func FormatDuration(d time.Duration) string {
	if d == 0 {
		return "0s"
	}

	if d < 0 {
		return "-" + FormatDuration(-d)
	}

	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	} else if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	} else if d < time.Hour {
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", mins, secs)
	}
	hours := int(d.Hours())
	mins := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", hours, mins)
}

// FormatClockDuration renders a duration as HH:MM:SS for job reports.
func FormatClockDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	hours := total / 3600
	mins := (total % 3600) / 60
	secs := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, mins, secs)
}

// FormatTime formats a timestamp for log output and persisted rows.
// The zero time renders as "-".
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}
