package transform

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/akave-ai/nbstreamer/internal/model"
)

const (
	// DefaultHostPrefix is prepended to the tenant to form the GELF host.
	DefaultHostPrefix = "nb_streamer_"
	// DefaultFieldPrefix namespaces every custom field.
	DefaultFieldPrefix = "_NB_"
)

// Composer assembles GELF messages from raw events.
type Composer struct {
	HostPrefix  string
	FieldPrefix string
	Facility    string
	Now         func() time.Time
}

// NewComposer returns a Composer with the default host, field prefix and facility.
func NewComposer() *Composer {
	return &Composer{
		HostPrefix:  DefaultHostPrefix,
		FieldPrefix: DefaultFieldPrefix,
		Facility:    model.DefaultFacility,
		Now:         time.Now,
	}
}

// Host returns the GELF host identifier for a tenant.
func (c *Composer) Host(tenant string) string {
	return c.HostPrefix + tenant
}

// Compose builds the GELF message for ev on behalf of tenant. Characters
// Graylog rejects in field names are replaced with "_". It always returns a
// usable message: when the event cannot be encoded a degraded message built
// from the top-level fields is returned instead, flagged with
// transformation_failed and transformation_error custom fields.
func (c *Composer) Compose(ev model.RawEvent, tenant string) *model.GELFMessage {
	instant, consumed := ResolveTimestamp(ev, c.Now)
	msg := &model.GELFMessage{
		Version:   model.GELFVersion,
		Host:      c.Host(tenant),
		Timestamp: instant,
		Level:     MapSeverity(ev[LevelKey]),
		Facility:  c.Facility,
	}

	full, err := fullMessage(ev)
	if err != nil {
		c.degrade(msg, ev, tenant, consumed, err)
		return msg
	}

	fields := EnhanceAddresses(Flatten(ev))
	msg.ShortMessage = ShortMessage(ev)
	msg.FullMessage = full
	msg.CustomFields = make(map[string]string, len(fields)+1)
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		if skipField(k, consumed) {
			continue
		}
		msg.CustomFields[c.FieldPrefix+sanitizeFieldName(k)] = fields[k]
	}
	msg.CustomFields[c.FieldPrefix+"tenant"] = tenant
	msg.NormalizeCustomFields()
	return msg
}

func (c *Composer) degrade(msg *model.GELFMessage, ev model.RawEvent, tenant, consumed string, cause error) {
	msg.ShortMessage = "Event transformation had issues: " + cause.Error()
	msg.CustomFields = make(map[string]string, len(ev)+3)
	for _, k := range slices.Sorted(maps.Keys(ev)) {
		v := ev[k]
		if v == nil || skipField(k, consumed) {
			continue
		}
		msg.CustomFields[c.FieldPrefix+sanitizeFieldName(k)] = model.Stringify(v)
	}
	msg.CustomFields[c.FieldPrefix+"tenant"] = tenant
	msg.CustomFields[c.FieldPrefix+"transformation_failed"] = "true"
	msg.CustomFields[c.FieldPrefix+"transformation_error"] = cause.Error()
	msg.NormalizeCustomFields()
}

// Degraded reports whether msg was produced by the degraded path.
func (c *Composer) Degraded(msg *model.GELFMessage) bool {
	return msg.CustomFields[c.FieldPrefix+"transformation_failed"] == "true"
}

// ShortMessage returns the event's Message field, or a summary synthesized from
// type, action and user.
func ShortMessage(ev model.RawEvent) string {
	if m := ev.Message(); m != "" {
		return m
	}
	eventType := firstValue(ev, "type", "event_type")
	action := firstValue(ev, "action")
	user := firstValue(ev, "user", "InitiatorID")

	switch {
	case action != "" && user != "":
		return fmt.Sprintf("Netbird %s: %s by %s", eventType, action, user)
	case eventType != "":
		return "Netbird " + eventType
	case user != "":
		return "Netbird event by " + user
	default:
		return "Netbird event"
	}
}

func firstValue(ev model.RawEvent, keys ...string) string {
	for _, k := range keys {
		if v, ok := ev[k]; ok && v != nil {
			if s := model.Stringify(v); s != "" {
				return s
			}
		}
	}
	return ""
}

// skipField reports whether a flattened key was consumed by a standard field.
func skipField(key, consumedTimestamp string) bool {
	switch key {
	case LevelKey, TimestampKey:
		return true
	case TimestampKeyLower:
		return consumedTimestamp == TimestampKeyLower
	}
	return false
}

func fullMessage(ev model.RawEvent) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]any(ev)); err != nil {
		return "", fmt.Errorf("encode full message: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func sanitizeFieldName(k string) string {
	var b strings.Builder
	for _, r := range k {
		if r == '.' || r == '-' || r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	if b.Len() == 0 {
		return "field"
	}
	return b.String()
}
