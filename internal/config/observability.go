package config

import (
	"fmt"

	"github.com/rs/zerolog"
)

// ServiceName names the service in logs and APM.
const ServiceName = "nbstreamer"

type ObservabilityConfig struct {
	ServiceName        string `koanf:"service_name"`
	Environment        string `koanf:"environment"`
	LogLevel           string `koanf:"log_level"`
	LogFormat          string `koanf:"log_format"`
	NewRelicEnabled    bool   `koanf:"new_relic_enabled"`
	NewRelicLicenseKey string `koanf:"new_relic_license_key"`
}

func DefaultObservabilityConfig() *ObservabilityConfig {
	return &ObservabilityConfig{
		ServiceName: ServiceName,
		Environment: "production",
		LogLevel:    "info",
		LogFormat:   "json",
	}
}

func (o *ObservabilityConfig) Validate() error {
	if o.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if _, err := zerolog.ParseLevel(o.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q: %w", o.LogLevel, err)
	}
	switch o.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log_format %q: must be json or console", o.LogFormat)
	}
	if o.NewRelicEnabled && o.NewRelicLicenseKey == "" {
		return fmt.Errorf("new_relic_license_key is required when new relic is enabled")
	}
	return nil
}

// Level returns the configured zerolog level, falling back to info.
func (o *ObservabilityConfig) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(o.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
