// Package timeutil provides time parsing and formatting shared by the CLI
// and the stream discovery code.
package timeutil

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// DayPrefixLayout is the date layout used as a stream name prefix when
// streams are named by day (e.g. "2024/01/15/[$LATEST]abc").
const DayPrefixLayout = "2006/01/02"

var relativeTimeRe = regexp.MustCompile(`^(\d+)([smhdw])$`)

// Parse parses a time string that can be RFC3339, a bare date, or a
// relative duration like "2h", "30m", "7d" or "1w".
//
// Examples:
//   - "now" or "" -> current time
//   - "2h" -> 2 hours ago
//   - "1w" -> 7 days ago
//   - "2025-12-02T06:00:00Z" -> specific RFC3339 time
//   - "2025-12-02" -> midnight UTC on that date
func Parse(input string) (time.Time, error) {
	return parseAt(input, time.Now().UTC())
}

func parseAt(input string, now time.Time) (time.Time, error) {
	if input == "" || input == "now" {
		return now, nil
	}

	if t, err := time.Parse(time.RFC3339, input); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, input); err == nil {
		return t, nil
	}

	if m := relativeTimeRe.FindStringSubmatch(input); m != nil {
		value, _ := strconv.Atoi(m[1])
		var unit time.Duration
		switch m[2] {
		case "s":
			unit = time.Second
		case "m":
			unit = time.Minute
		case "h":
			unit = time.Hour
		case "d":
			unit = 24 * time.Hour
		case "w":
			unit = 7 * 24 * time.Hour
		}
		return now.Add(-time.Duration(value) * unit), nil
	}

	return time.Time{}, fmt.Errorf("invalid time format: %s - use RFC3339 (2025-12-02T06:00:00Z), a date (2025-12-02) or relative (2h, 30m, 7d)", input)
}

// DayPrefixes returns one DayPrefixLayout string per UTC calendar day
// touched by [from, to], in ascending order. It returns nil if to is
// before from.
func DayPrefixes(from, to time.Time) []string {
	if to.Before(from) {
		return nil
	}
	from, to = from.UTC(), to.UTC()
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)

	var prefixes []string
	for !day.After(to) {
		prefixes = append(prefixes, day.Format(DayPrefixLayout))
		day = day.AddDate(0, 0, 1)
	}
	return prefixes
}

// FormatDuration formats a duration in a human-readable way.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%.1fh", d.Hours())
	}
	return fmt.Sprintf("%.1fd", d.Hours()/24)
}

// TimeRangeWarning represents a validation warning for a time range.
type TimeRangeWarning struct {
	Message string
	Level   string // "warning" or "info"
}

// ValidateTimeRange checks a time range for likely mistakes and returns
// warnings without blocking the operation.
func ValidateTimeRange(start, end time.Time) []TimeRangeWarning {
	var warnings []TimeRangeWarning
	now := time.Now()

	if end.After(now.Add(time.Minute)) {
		warnings = append(warnings, TimeRangeWarning{
			Message: fmt.Sprintf("end time is %s in the future - is this intentional?", FormatDuration(end.Sub(now))),
			Level:   "warning",
		})
	}

	if start.After(now.Add(time.Minute)) {
		warnings = append(warnings, TimeRangeWarning{
			Message: "start time is in the future - no results will be returned",
			Level:   "warning",
		})
	}

	// Insights bills by bytes scanned; stream reads page through every event
	duration := end.Sub(start)
	if duration > 30*24*time.Hour {
		warnings = append(warnings, TimeRangeWarning{
			Message: fmt.Sprintf("reading %s of logs - this may be slow and expensive", FormatDuration(duration)),
			Level:   "info",
		})
	}

	if duration < time.Minute && duration > 0 {
		warnings = append(warnings, TimeRangeWarning{
			Message: fmt.Sprintf("time range is only %s - you may miss relevant logs", FormatDuration(duration)),
			Level:   "info",
		})
	}

	return warnings
}

// FormatBytes converts bytes to human-readable format (e.g., "1.5 MB").
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
