package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akave-ai/nbstreamer/internal/config"
)

func TestNewWithWriter_JSON(t *testing.T) {
	cfg := config.Default()
	cfg.Observability.LogLevel = "warn"

	var buf bytes.Buffer
	log := NewWithWriter(cfg, &buf)
	log.Info().Msg("dropped")
	log.Warn().Str("tenant", "acme").Msg("kept")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["message"])
	assert.Equal(t, "acme", line["tenant"])
	assert.Equal(t, config.ServiceName, line["service"])
}

func TestNewWithWriter_ConsoleInDevelopment(t *testing.T) {
	cfg := config.Default()
	cfg.Primary.Env = "development"

	var buf bytes.Buffer
	log := NewWithWriter(cfg, &buf)
	log.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.False(t, json.Valid(buf.Bytes()))
}
