package model

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGELFMessage_MarshalPrefixesCustomFields(t *testing.T) {
	msg := &GELFMessage{
		Host:         "nb_streamer_acme",
		ShortMessage: "Peer connected",
		Timestamp:    1706711400.5,
		Level:        4,
		Facility:     DefaultFacility,
		CustomFields: map[string]string{
			"_NB_tenant": "acme",
			"NB_peer":    "laptop",
		},
	}

	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "1.1", got["version"])
	assert.Equal(t, "nb_streamer_acme", got["host"])
	assert.Equal(t, "Peer connected", got["short_message"])
	assert.Equal(t, 1706711400.5, got["timestamp"])
	assert.Equal(t, float64(4), got["level"])
	assert.Equal(t, "acme", got["_NB_tenant"])
	assert.Equal(t, "laptop", got["_NB_peer"])
	assert.NotContains(t, got, "NB_peer")
	assert.NotContains(t, got, "full_message")
	assert.False(t, strings.Contains(string(raw), "\n"), "wire form must be compact")
}

func TestGELFMessage_NormalizeCustomFields(t *testing.T) {
	msg := &GELFMessage{CustomFields: map[string]string{"a": "1", "_b": "2"}}
	msg.NormalizeCustomFields()
	assert.Equal(t, map[string]string{"_a": "1", "_b": "2"}, msg.CustomFields)
}

func TestGELFMessage_LevelLabel(t *testing.T) {
	assert.Equal(t, "3", (&GELFMessage{Level: 3}).LevelLabel())
	assert.Equal(t, "6", (&GELFMessage{Level: 42}).LevelLabel())
}

func TestParseEvent(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"a":1,"b":{"c":[1,2]}}`))
	require.NoError(t, err)
	assert.Equal(t, json.Number("1"), ev["a"])

	_, err = ParseEvent([]byte(`[1,2]`))
	assert.ErrorIs(t, err, ErrNotObject)

	_, err = ParseEvent([]byte(`{"a":`))
	assert.Error(t, err)
}

func TestEncodeJSON(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want string
	}{
		{"mixed list", []any{"x", json.Number("1"), true}, `["x", 1, true]`},
		{"empty list", []any{}, `[]`},
		{"nested object", []any{map[string]any{"b": nil, "a": "é"}}, `[{"a": "\u00e9", "b": null}]`},
		{"escapes", "q\"\\\n", `"q\"\\\n"`},
		{"astral", "😀", `"\ud83d\ude00"`},
		{"del is raw", "a\x7fb", "\"a\x7fb\""},
		{"first non-ascii", "\u0080", `"\u0080"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, EncodeJSON(tc.in))
		})
	}
}
