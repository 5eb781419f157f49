package transform

import (
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/akave-ai/nbstreamer/internal/model"
)

// addressFieldPatterns are the key fragments that mark host:port values.
var addressFieldPatterns = []string{
	"source_addr",
	"destination_addr",
	"dest_addr",
	"src_addr",
	"remote_addr",
	"local_addr",
	"peer_addr",
	"client_addr",
	"server_addr",
}

var (
	ipv6PortRe = regexp.MustCompile(`^\[([^\]]+)\]:(\d+)$`)
	hostPortRe = regexp.MustCompile(`^([^:]+):(\d+)$`)
	ipv4Re     = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}$`)
)

// SplitHostPort parses "[ipv6]:port" or "a.b.c.d:port". ok is false for
// anything else, including hostnames and bare addresses.
func SplitHostPort(s string) (host, port string, ok bool) {
	if m := ipv6PortRe.FindStringSubmatch(s); m != nil {
		return m[1], m[2], true
	}
	if m := hostPortRe.FindStringSubmatch(s); m != nil && validIPv4(m[1]) {
		return m[1], m[2], true
	}
	return "", "", false
}

// EnhanceAddresses splits host:port values found in address-like fields into
// the host (kept under the original key) and a sibling port field. The input
// is not modified. Keys are processed in sorted order, so when x_addr and
// x_address both yield x_port the later key, x_address, wins.
func EnhanceAddresses(rec model.FlatRecord) model.FlatRecord {
	out := make(model.FlatRecord, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	for _, key := range slices.Sorted(maps.Keys(rec)) {
		if !isAddressField(key) {
			continue
		}
		host, port, ok := SplitHostPort(rec[key])
		if !ok {
			continue
		}
		out[key] = host
		out[portKey(key)] = port
	}
	return out
}

func isAddressField(key string) bool {
	lower := strings.ToLower(key)
	for _, p := range addressFieldPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// portKey maps source_addr -> source_port and server_address -> server_port;
// keys without either suffix get "_port" appended.
func portKey(key string) string {
	lower := strings.ToLower(key)
	for _, suffix := range []string{"_address", "_addr"} {
		if strings.HasSuffix(lower, suffix) {
			return key[:len(key)-len(suffix)] + "_port"
		}
	}
	return key + "_port"
}

func validIPv4(s string) bool {
	if !ipv4Re.MatchString(s) {
		return false
	}
	for _, octet := range strings.Split(s, ".") {
		n, err := strconv.Atoi(octet)
		if err != nil || n > 255 {
			return false
		}
	}
	return true
}
