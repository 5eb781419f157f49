package gelfout

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akave-ai/nbstreamer/internal/infrastructure/outputs"
	"github.com/akave-ai/nbstreamer/internal/model"
)

func testMessage() *model.GELFMessage {
	return &model.GELFMessage{
		Version:      model.GELFVersion,
		Host:         "nb_streamer_acme",
		ShortMessage: "Netbird peer.login: alice by bob",
		Timestamp:    1705314600,
		Level:        6,
		Facility:     model.DefaultFacility,
		CustomFields: map[string]string{"_NB_tenant": "acme"},
	}
}

func decodeJSON(t *testing.T, b []byte) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	return out
}

func TestUDP_SendCompressed(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	out := NewUDP(pc.LocalAddr().String(), true, time.Second)
	defer out.Close()
	require.NoError(t, out.Send(context.Background(), testMessage()))

	buf := make([]byte, 65535)
	_ = pc.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := pc.ReadFrom(buf)
	require.NoError(t, err)

	zr, err := zlib.NewReader(bytes.NewReader(buf[:n]))
	require.NoError(t, err)
	raw, err := io.ReadAll(zr)
	require.NoError(t, err)

	got := decodeJSON(t, raw)
	assert.Equal(t, "1.1", got["version"])
	assert.Equal(t, "nb_streamer_acme", got["host"])
	assert.Equal(t, "acme", got["_NB_tenant"])
}

func TestUDP_SendPlain(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	out := NewUDP(pc.LocalAddr().String(), false, time.Second)
	defer out.Close()
	require.NoError(t, out.Send(context.Background(), testMessage()))

	buf := make([]byte, 65535)
	_ = pc.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := pc.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, "nb_streamer", decodeJSON(t, buf[:n])["facility"])
}

// acceptFrames accepts connections and reports every NUL-terminated frame.
func acceptFrames(t *testing.T, ln net.Listener, frames chan<- []byte, conns chan<- net.Conn) {
	t.Helper()
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		if conns != nil {
			conns <- conn
		}
		go func(c net.Conn) {
			r := bufio.NewReader(c)
			for {
				frame, err := r.ReadBytes(0)
				if err != nil {
					return
				}
				frames <- frame[:len(frame)-1]
			}
		}(conn)
	}
}

func TestTCP_PerCallFramesWithNUL(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	frames := make(chan []byte, 4)
	go acceptFrames(t, ln, frames, nil)

	out := NewTCP(ln.Addr().String(), ModePerCall, time.Second)
	defer out.Close()

	for i := 0; i < 2; i++ {
		require.NoError(t, out.Send(context.Background(), testMessage()))
	}
	for i := 0; i < 2; i++ {
		select {
		case f := <-frames:
			assert.Equal(t, "nb_streamer_acme", decodeJSON(t, f)["host"])
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for frame")
		}
	}
}

func TestTCP_CompressionRequestedStillFramesPlainJSON(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	frames := make(chan []byte, 1)
	go acceptFrames(t, ln, frames, nil)

	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)

	reg := outputs.NewRegistry()
	reg.Register(&TCPFactory{})
	out, err := reg.CreateFromSpec(outputs.OutputSpec{Type: TypeTCP, Host: host, Port: p, Compress: true})
	require.NoError(t, err)
	defer out.Close()

	msg := testMessage()
	msg.FullMessage = "{\n  \"Message\": \"Peer connected\"\n}"
	require.NoError(t, out.Send(context.Background(), msg))

	select {
	case f := <-frames:
		got := decodeJSON(t, f)
		assert.Equal(t, "nb_streamer_acme", got["host"])
		assert.Equal(t, msg.FullMessage, got["full_message"])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
	}
}

func TestTCP_PersistentReusesConnection(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	frames := make(chan []byte, 4)
	conns := make(chan net.Conn, 4)
	go acceptFrames(t, ln, frames, conns)

	out := NewTCP(ln.Addr().String(), ModePersistent, time.Second)
	defer out.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, out.Send(context.Background(), testMessage()))
	}
	for i := 0; i < 3; i++ {
		select {
		case <-frames:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for frame")
		}
	}
	assert.Len(t, conns, 1)
}

func TestTCP_UnreachableWrapsErrDelivery(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	for _, mode := range []string{ModePerCall, ModePersistent} {
		out := NewTCP(addr, mode, 200*time.Millisecond)
		err := out.Send(context.Background(), testMessage())
		require.Error(t, err, mode)
		assert.True(t, errors.Is(err, outputs.ErrDelivery), mode)
		assert.Nil(t, out.conn, mode)
	}
}

func TestFactories_CreateFromRegistry(t *testing.T) {
	reg := outputs.NewRegistry()
	reg.Register(&UDPFactory{})
	reg.Register(&TCPFactory{})
	assert.Equal(t, []string{"tcp", "udp"}, reg.ListRegistered())

	out, err := reg.CreateFromSpec(outputs.OutputSpec{Type: TypeUDP, Host: "127.0.0.1", Port: 12201})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:12201", out.(*UDP).Addr())

	out, err = reg.CreateFromSpec(outputs.OutputSpec{
		Type: TypeTCP, Host: "graylog", Port: 12201,
		Config: outputs.Config{"connection_mode": ModePersistent},
	})
	require.NoError(t, err)
	assert.Equal(t, ModePersistent, out.(*TCP).Mode())

	_, err = reg.CreateFromSpec(outputs.OutputSpec{
		Type: TypeTCP, Host: "graylog", Port: 12201,
		Config: outputs.Config{"connection_mode": "pooled"},
	})
	assert.Error(t, err)

	_, err = reg.Create(TypeUDP, outputs.Config{"host": "graylog", "port": strconv.Itoa(70000)})
	assert.Error(t, err)

	_, err = reg.Create("kafka", outputs.Config{})
	assert.Error(t, err)
}

func TestGlobalRegistry_HasTransports(t *testing.T) {
	info, ok := outputs.GlobalRegistry.GetTypeInfo(TypeTCP)
	require.True(t, ok)
	names := make([]string, 0, len(info.Fields))
	for _, f := range info.Fields {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "connection_mode")
	assert.Len(t, outputs.GlobalRegistry.AllTypesInfo(), 2)
}
