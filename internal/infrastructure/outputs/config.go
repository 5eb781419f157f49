package outputs

import (
	"fmt"
	"strconv"
	"time"
)

// Config is a key-value map for output-type-specific configuration.
// The server builds it from the graylog config section; implementations interpret it.
type Config map[string]any

// String returns cfg[key] as a string, or def when unset.
func (c Config) String(key, def string) string {
	switch v := c[key].(type) {
	case string:
		if v != "" {
			return v
		}
	case fmt.Stringer:
		return v.String()
	}
	return def
}

// Int returns cfg[key] as an int, or def when unset or malformed.
func (c Config) Int(key string, def int) int {
	switch v := c[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Bool returns cfg[key] as a bool, or def when unset or malformed.
func (c Config) Bool(key string, def bool) bool {
	switch v := c[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// Duration returns cfg[key] as a duration. Numbers are seconds.
func (c Config) Duration(key string, def time.Duration) time.Duration {
	switch v := c[key].(type) {
	case time.Duration:
		return v
	case int:
		return time.Duration(v) * time.Second
	case float64:
		return time.Duration(v * float64(time.Second))
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
