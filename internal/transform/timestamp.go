package transform

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/akave-ai/nbstreamer/internal/model"
)

// Candidate timestamp keys in priority order. NetBird sends the event time in
// "Timestamp"; "timestamp" sometimes carries unrelated enum values.
const (
	TimestampKey      = "Timestamp"
	TimestampKeyLower = "timestamp"
)

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ResolveTimestamp picks the event instant from the first timestamp-shaped
// candidate. consumed names the key that was used, or is empty when neither
// candidate qualified and the wall clock was used.
func ResolveTimestamp(ev model.RawEvent, now func() time.Time) (instant float64, consumed string) {
	if now == nil {
		now = time.Now
	}
	for _, key := range []string{TimestampKey, TimestampKeyLower} {
		v, ok := ev[key]
		if !ok || !looksLikeTimestamp(v) {
			continue
		}
		if ts, ok := parseTimestamp(v); ok {
			return ts, key
		}
		return epochSeconds(now()), key
	}
	return epochSeconds(now()), ""
}

func looksLikeTimestamp(v any) bool {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return err == nil && f != 0
	case float64:
		return t != 0
	case string:
		if t == "" {
			return false
		}
		if strings.Contains(t, "T") && (strings.Contains(t, ":") || strings.Contains(t, "Z")) {
			return true
		}
		return numericShaped(t)
	}
	return false
}

// numericShaped reports whether s holds only digits, dots and dashes with at
// least one digit.
func numericShaped(s string) bool {
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.' || r == '-':
		default:
			return false
		}
	}
	return digits > 0
}

func parseTimestamp(v any) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case float64:
		return t, true
	case string:
		if numericShaped(t) && !strings.Contains(t, "-") {
			if f, err := strconv.ParseFloat(t, 64); err == nil {
				return f, true
			}
		}
		s := strings.Replace(t, "z", "Z", 1)
		for _, layout := range isoLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return epochSeconds(ts), true
			}
		}
	}
	return 0, false
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
