package model

import (
	"encoding/json"
	"strings"
)

// GELF constants used for every outbound message.
const (
	GELFVersion     = "1.1"
	DefaultFacility = "nb_streamer"
	DefaultLevel    = 6
	CustomPrefix    = "_"
)

// GELFMessage is a Graylog Extended Log Format record.
// Custom field keys must start with "_"; MarshalJSON enforces it.
type GELFMessage struct {
	Version      string
	Host         string
	ShortMessage string
	FullMessage  string
	Timestamp    float64
	Level        int
	Facility     string
	CustomFields map[string]string
}

// NormalizeCustomFields rewrites any custom key lacking the "_" marker.
func (m *GELFMessage) NormalizeCustomFields() {
	for k, v := range m.CustomFields {
		if strings.HasPrefix(k, CustomPrefix) {
			continue
		}
		delete(m.CustomFields, k)
		m.CustomFields[CustomPrefix+k] = v
	}
}

// Fields returns the flat wire representation: standard fields plus custom
// fields at the top level. Empty optional fields are omitted.
func (m *GELFMessage) Fields() map[string]any {
	out := make(map[string]any, len(m.CustomFields)+7)
	for k, v := range m.CustomFields {
		if !strings.HasPrefix(k, CustomPrefix) {
			k = CustomPrefix + k
		}
		out[k] = v
	}
	version := m.Version
	if version == "" {
		version = GELFVersion
	}
	out["version"] = version
	out["host"] = m.Host
	out["short_message"] = m.ShortMessage
	if m.FullMessage != "" {
		out["full_message"] = m.FullMessage
	}
	if m.Timestamp != 0 {
		out["timestamp"] = m.Timestamp
	}
	out["level"] = m.Level
	if m.Facility != "" {
		out["facility"] = m.Facility
	}
	return out
}

// MarshalJSON encodes the message in compact GELF form.
func (m *GELFMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Fields())
}

// LevelLabel is the severity as used in stats and metrics labels.
func (m *GELFMessage) LevelLabel() string {
	return levelLabels[clampLevel(m.Level)]
}

var levelLabels = [...]string{"0", "1", "2", "3", "4", "5", "6", "7"}

func clampLevel(l int) int {
	if l < 0 || l > 7 {
		return DefaultLevel
	}
	return l
}
