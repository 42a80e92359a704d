package ui

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// formatSeconds renders logged time the way the detail panel shows it:
// "2 days, 3 hours", "1 hour, 5 minutes", "4 minutes, 10 seconds".
func formatSeconds(seconds int64) string {
	if seconds <= 0 {
		return "0 seconds"
	}
	minutes, secs := seconds/60, seconds%60
	hours, minutes := minutes/60, minutes%60
	days, hours := hours/24, hours%24

	var parts []string
	if days > 0 {
		parts = append(parts, plural(days, "day"))
	}
	if hours > 0 {
		parts = append(parts, plural(hours, "hour"))
	}
	if minutes > 0 && days == 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	if secs > 0 && days == 0 && hours == 0 {
		parts = append(parts, plural(secs, "second"))
	}
	return strings.Join(parts, ", ")
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// formatClock renders a running timer as H:MM:SS.
func formatClock(d time.Duration) string {
	s := int64(max(d, 0) / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", s/3600, s/60%60, s%60)
}

var errBadDuration = errors.New("could not parse time")

// parseDuration reads a time adjustment typed by the user: "H:MM",
// "H:MM:SS" or a Go duration such as "1h30m" or "45m".
func parseDuration(v string) (int64, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, errBadDuration
	}
	if strings.Contains(v, ":") {
		return parseClock(v)
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, errBadDuration
	}
	return int64(d / time.Second), nil
}

func parseClock(v string) (int64, error) {
	parts := strings.Split(v, ":")
	if len(parts) > 3 {
		return 0, errBadDuration
	}
	var total int64
	for i, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n < 0 || (i > 0 && n > 59) || total > (math.MaxInt64-n)/60 {
			return 0, errBadDuration
		}
		total = total*60 + n
	}
	if len(parts) == 2 {
		if total > math.MaxInt64/60 {
			return 0, errBadDuration
		}
		total *= 60
	}
	return total, nil
}
