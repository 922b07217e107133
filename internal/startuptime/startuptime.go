// Package startuptime persists the single-line startup-time artifact
// (epoch millis) the stats snapshot's uptime field is computed from, so
// operational dashboards survive coordinator restarts (spec.md §4.4, §6).
package startuptime

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Load reads the startup time from path. If the file is missing or its
// content is unparseable, the current time is written and returned instead,
// per spec.md §4.4.
func Load(path string) (time.Time, error) {
	if data, err := os.ReadFile(path); err == nil {
		if millis, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64); err == nil {
			return time.UnixMilli(millis), nil
		}
	}

	now := time.Now()
	if err := os.WriteFile(path, []byte(strconv.FormatInt(now.UnixMilli(), 10)+"\n"), 0o644); err != nil {
		return time.Time{}, fmt.Errorf("write startup time artifact %s: %w", path, err)
	}
	return now, nil
}

// FormatUptime renders the duration since since in a short human-readable
// form, e.g. "2d3h14m", for the stats snapshot's uptimeFormatted field.
func FormatUptime(since time.Time) string {
	d := time.Since(since)
	if d < 0 {
		d = 0
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd%dh%dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh%dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
