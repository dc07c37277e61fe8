package track

import (
	"fmt"
	"strings"
	"time"
)

// Window presets.
const (
	PresetThreeDays = "3days"
	PresetOneWeek   = "1week"
	PresetOneMonth  = "1month"
	PresetCustom    = "custom"
)

// ResolveWindow resolves a preset name or a custom date pair into a concrete
// window ending at now. The 1month preset spans 30 calendar days. Custom
// bounds accept RFC 3339 timestamps or plain dates and require both ends.
func ResolveWindow(preset, customStart, customEnd string, now time.Time) (Window, error) {
	trimmedPreset := strings.TrimSpace(preset)
	window := Window{
		Until:  now,
		Preset: trimmedPreset,
	}

	switch trimmedPreset {
	case PresetThreeDays:
		window.Since = now.AddDate(0, 0, -3)
	case PresetOneWeek:
		window.Since = now.AddDate(0, 0, -7)
	case PresetOneMonth:
		window.Since = now.AddDate(0, 0, -30)
	case PresetCustom:
		if strings.TrimSpace(customStart) == "" || strings.TrimSpace(customEnd) == "" {
			return Window{}, fmt.Errorf("custom timeframe requires both start and end dates")
		}
		since, err := parseWindowBound(customStart)
		if err != nil {
			return Window{}, fmt.Errorf("parse custom start: %w", err)
		}
		until, err := parseWindowBound(customEnd)
		if err != nil {
			return Window{}, fmt.Errorf("parse custom end: %w", err)
		}
		if until.Before(since) {
			return Window{}, fmt.Errorf("custom end must not be before custom start")
		}
		window.Since = since
		window.Until = until
	default:
		return Window{}, fmt.Errorf("unknown timeframe %q", trimmedPreset)
	}

	return window, nil
}

func parseWindowBound(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", trimmed)
}
