package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// TenantField is the payload key carrying the tenant in NetBird events.
const TenantField = "NB_Tenant"

// RawEvent is a webhook payload as received. It has no fixed schema; values are
// the types produced by encoding/json with UseNumber: string, json.Number,
// bool, nil, map[string]any and []any.
type RawEvent map[string]any

// FlatRecord maps composed keys to scalar string values.
type FlatRecord map[string]string

// ErrNotObject is returned when a body decodes to valid JSON that is not an object.
var ErrNotObject = errors.New("event body must be a JSON object")

// DecodeEvent reads one JSON object from r. Numbers are kept as json.Number.
func DecodeEvent(r io.Reader) (RawEvent, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("decode event: unexpected data after JSON object")
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return RawEvent(obj), nil
}

// ParseEvent is DecodeEvent over a byte slice.
func ParseEvent(body []byte) (RawEvent, error) {
	return DecodeEvent(bytes.NewReader(body))
}

// Clone returns a shallow copy of the event.
func (e RawEvent) Clone() RawEvent {
	out := make(RawEvent, len(e)+1)
	for k, v := range e {
		out[k] = v
	}
	return out
}

// String returns the value at key when it is a non-empty string.
func (e RawEvent) String(key string) (string, bool) {
	v, ok := e[key].(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// FirstString returns the first non-empty string among keys.
func (e RawEvent) FirstString(keys ...string) string {
	for _, k := range keys {
		if v, ok := e.String(k); ok {
			return v
		}
	}
	return ""
}

// Message returns the trimmed NetBird "Message" field.
func (e RawEvent) Message() string {
	v, ok := e["Message"]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(Stringify(v))
}

// Stringify renders a scalar JSON value the way it is stored in a FlatRecord.
// Containers are JSON encoded.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case map[string]any, []any, RawEvent:
		return EncodeJSON(t)
	default:
		return fmt.Sprint(t)
	}
}
