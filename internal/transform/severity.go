package transform

import (
	"strings"

	"github.com/akave-ai/nbstreamer/internal/model"
)

// LevelKey is the raw event field holding a free-form level string.
const LevelKey = "level"

var severities = map[string]int{
	"EMERGENCY":   0,
	"EMERG":       0,
	"ALERT":       1,
	"CRITICAL":    2,
	"CRIT":        2,
	"ERROR":       3,
	"ERR":         3,
	"WARNING":     4,
	"WARN":        4,
	"NOTICE":      5,
	"INFO":        6,
	"INFORMATION": 6,
	"DEBUG":       7,
}

// MapSeverity converts a level value to the syslog scale 0..7.
// Absent or unrecognized values map to 6 (informational).
func MapSeverity(level any) int {
	if level == nil {
		return model.DefaultLevel
	}
	if sev, ok := severities[strings.ToUpper(model.Stringify(level))]; ok {
		return sev
	}
	return model.DefaultLevel
}
