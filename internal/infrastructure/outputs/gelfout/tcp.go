package gelfout

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/akave-ai/nbstreamer/internal/infrastructure/outputs"
	"github.com/akave-ai/nbstreamer/internal/model"
)

// TCP writes NUL-terminated GELF frames. Frames are never compressed: zlib
// output contains NUL bytes and would be split by the receiver. In persistent
// mode one connection is reused across calls and dropped after any write
// error; the next Send redials.
type TCP struct {
	addr    string
	mode    string
	timeout time.Duration

	mu   sync.Mutex
	conn net.Conn
}

func NewTCP(addr, mode string, timeout time.Duration) *TCP {
	if mode == "" {
		mode = ModePerCall
	}
	return &TCP{addr: addr, mode: mode, timeout: timeout}
}

func (t *TCP) Addr() string { return t.addr }

func (t *TCP) Mode() string { return t.mode }

func (t *TCP) Send(ctx context.Context, msg *model.GELFMessage) error {
	payload, err := outputs.Encode(msg, false)
	if err != nil {
		return fmt.Errorf("%w: %v", outputs.ErrDelivery, err)
	}
	frame := append(payload, 0)

	if t.mode == ModePerCall {
		conn, err := t.dial(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()
		return t.write(ctx, conn, frame)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		conn, err := t.dial(ctx)
		if err != nil {
			return err
		}
		t.conn = conn
	}
	if err := t.write(ctx, t.conn, frame); err != nil {
		t.conn.Close()
		t.conn = nil
		return err
	}
	return nil
}

func (t *TCP) dial(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{Timeout: t.timeout}
	conn, err := d.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dial tcp %s: %v", outputs.ErrDelivery, t.addr, err)
	}
	return conn, nil
}

func (t *TCP) write(ctx context.Context, conn net.Conn, frame []byte) error {
	_ = conn.SetWriteDeadline(deadline(ctx, t.timeout))
	if _, err := conn.Write(frame); err != nil {
		return fmt.Errorf("%w: write tcp %s: %v", outputs.ErrDelivery, t.addr, err)
	}
	return nil
}

func (t *TCP) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}
