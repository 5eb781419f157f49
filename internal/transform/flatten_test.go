package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akave-ai/nbstreamer/internal/model"
)

func mustEvent(t *testing.T, s string) model.RawEvent {
	t.Helper()
	ev, err := model.ParseEvent([]byte(s))
	require.NoError(t, err)
	return ev
}

func TestFlatten(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want model.FlatRecord
	}{
		{
			name: "top level scalars unchanged",
			in:   `{"id":"10","Message":"Peer connected","count":3,"ok":true}`,
			want: model.FlatRecord{"id": "10", "Message": "Peer connected", "count": "3", "ok": "true"},
		},
		{
			name: "nested objects",
			in:   `{"meta":{"peer":{"name":"laptop","ip":"100.64.0.1"}}}`,
			want: model.FlatRecord{"meta_peer_name": "laptop", "meta_peer_ip": "100.64.0.1"},
		},
		{
			name: "array of objects",
			in:   `{"meta":[{"a":1},{"a":2}]}`,
			want: model.FlatRecord{"meta_0_a": "1", "meta_1_a": "2"},
		},
		{
			name: "mixed array",
			in:   `{"tags":["x",1,true]}`,
			want: model.FlatRecord{"tags": `["x", 1, true]`},
		},
		{
			name: "array mixing objects and scalars",
			in:   `{"items":[{"a":1},"b"]}`,
			want: model.FlatRecord{"items": `[{"a": 1}, "b"]`},
		},
		{
			name: "empty containers",
			in:   `{"list":[],"obj":{}}`,
			want: model.FlatRecord{"list": "[]"},
		},
		{
			name: "nulls dropped",
			in:   `{"a":null,"b":{"c":null,"d":"x"}}`,
			want: model.FlatRecord{"b_d": "x"},
		},
		{
			name: "floats keep their text",
			in:   `{"latency":0.25,"big":12345678901234567890}`,
			want: model.FlatRecord{"latency": "0.25", "big": "12345678901234567890"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Flatten(mustEvent(t, tc.in)))
		})
	}
}

func TestFlatten_DeterministicAndTotal(t *testing.T) {
	in := `{"a":{"b":{"c":{"d":{"e":[{"f":[1,{"g":null}]},{"h":{"i":"j"}}]}}}},"k":[[1,2],[3]],"l":[{}]}`
	first := Flatten(mustEvent(t, in))
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, Flatten(mustEvent(t, in)))
	}
	assert.Equal(t, `[1, {"g": null}]`, first["a_b_c_d_e_0_f"])
	assert.Equal(t, "j", first["a_b_c_d_e_1_h_i"])
	assert.Equal(t, `[[1, 2], [3]]`, first["k"])
	assert.NotContains(t, first, "l")
}

func TestFlatten_CollisionsResolveBySortedKey(t *testing.T) {
	in := `{"peer_ip":"top","peer":{"ip":"nested"},"a":{"b_c":"deep"},"a_b":{"c":"deeper"}}`
	for i := 0; i < 200; i++ {
		got := Flatten(mustEvent(t, in))
		require.Equal(t, "top", got["peer_ip"])
		require.Equal(t, "deeper", got["a_b_c"])
	}
}

func TestEnhanceAddresses_PortCollisionIsStable(t *testing.T) {
	in := model.FlatRecord{
		"peer_addr":    "10.0.0.1:1111",
		"peer_address": "10.0.0.2:2222",
	}
	for i := 0; i < 200; i++ {
		got := EnhanceAddresses(in)
		require.Equal(t, "2222", got["peer_port"])
		require.Equal(t, "10.0.0.1", got["peer_addr"])
		require.Equal(t, "10.0.0.2", got["peer_address"])
	}
}

func TestFlatten_DoesNotMutateInput(t *testing.T) {
	ev := mustEvent(t, `{"a":{"b":1}}`)
	Flatten(ev)
	assert.Contains(t, ev, "a")
	assert.NotContains(t, ev, "a_b")
}

func TestEnhanceAddresses(t *testing.T) {
	in := model.FlatRecord{
		"source_addr":           "192.168.1.1:8080",
		"meta_destination_addr": "[2001:db8::1]:443",
		"Peer_Addr":             "10.0.0.1:51820",
		"server_address":        "172.16.0.5:22",
		"client_addr_raw":       "10.1.1.1:99",
		"remote_addr":           "hostname-only",
		"local_addr":            "example.com:80",
		"src_addr":              "999.1.1.1:80",
		"other":                 "1.2.3.4:5",
	}
	got := EnhanceAddresses(in)

	assert.Equal(t, "192.168.1.1", got["source_addr"])
	assert.Equal(t, "8080", got["source_port"])
	assert.Equal(t, "2001:db8::1", got["meta_destination_addr"])
	assert.Equal(t, "443", got["meta_destination_port"])
	assert.Equal(t, "10.0.0.1", got["Peer_Addr"])
	assert.Equal(t, "51820", got["Peer_port"])
	assert.Equal(t, "172.16.0.5", got["server_address"])
	assert.Equal(t, "22", got["server_port"])
	assert.Equal(t, "10.1.1.1", got["client_addr_raw"])
	assert.Equal(t, "99", got["client_addr_raw_port"])

	assert.Equal(t, "hostname-only", got["remote_addr"])
	assert.Equal(t, "example.com:80", got["local_addr"])
	assert.Equal(t, "999.1.1.1:80", got["src_addr"])
	assert.Equal(t, "1.2.3.4:5", got["other"])
	assert.NotContains(t, got, "remote_port")

	assert.Equal(t, "192.168.1.1:8080", in["source_addr"], "input must not change")
}

func TestSplitHostPort(t *testing.T) {
	cases := []struct {
		in         string
		host, port string
		ok         bool
	}{
		{"192.168.1.1:8080", "192.168.1.1", "8080", true},
		{"[::1]:53", "::1", "53", true},
		{"192.168.1.1", "", "", false},
		{"2001:db8::1", "", "", false},
		{"a.b.c.d:80", "", "", false},
		{"10.0.0.1:port", "", "", false},
	}
	for _, tc := range cases {
		host, port, ok := SplitHostPort(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.host, host, tc.in)
		assert.Equal(t, tc.port, port, tc.in)
	}
}
