// Package transform turns raw NetBird webhook events into GELF messages.
//
// Every function here is pure: no locks, no I/O, safe to call from any number
// of request goroutines at once.
package transform

import (
	"maps"
	"slices"
	"strconv"

	"github.com/akave-ai/nbstreamer/internal/model"
)

// Separator joins path segments in flattened keys.
const Separator = "_"

// Flatten collapses a nested event into a single-level record.
//
// Nested objects recurse with the composed key as parent. A non-empty list
// whose elements are all objects is flattened element by element under
// key_<index>. Any other list is JSON encoded under its key. Nulls are
// dropped; remaining scalars are stringified.
//
// Keys are visited in sorted order at every level, so when two paths compose
// to the same flat key the one visited last wins: {"peer":{"ip":..}} is
// overwritten by a sibling "peer_ip".
func Flatten(ev model.RawEvent) model.FlatRecord {
	out := make(model.FlatRecord, len(ev))
	flattenInto(out, map[string]any(ev), "")
	return out
}

func flattenInto(out model.FlatRecord, obj map[string]any, parent string) {
	for _, key := range slices.Sorted(maps.Keys(obj)) {
		flattenValue(out, composeKey(parent, key), obj[key])
	}
}

func flattenValue(out model.FlatRecord, key string, value any) {
	switch v := value.(type) {
	case nil:
		return
	case map[string]any:
		flattenInto(out, v, key)
	case model.RawEvent:
		flattenInto(out, v, key)
	case []any:
		if !allObjects(v) {
			out[key] = model.EncodeJSON(v)
			return
		}
		for i, item := range v {
			flattenValue(out, composeKey(key, strconv.Itoa(i)), item)
		}
	default:
		out[key] = model.Stringify(v)
	}
}

func composeKey(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + Separator + key
}

func allObjects(items []any) bool {
	if len(items) == 0 {
		return false
	}
	for _, item := range items {
		if _, ok := item.(map[string]any); !ok {
			return false
		}
	}
	return true
}
