// Package gelfout sends GELF messages to Graylog over UDP or TCP.
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

const defaultTimeout = 5 * time.Second

// UDP writes one datagram per message. The socket is dialed lazily and shared.
type UDP struct {
	addr     string
	compress bool
	timeout  time.Duration

	mu   sync.Mutex
	conn net.Conn
}

func NewUDP(addr string, compress bool, timeout time.Duration) *UDP {
	return &UDP{addr: addr, compress: compress, timeout: timeout}
}

func (u *UDP) Addr() string { return u.addr }

func (u *UDP) Send(ctx context.Context, msg *model.GELFMessage) error {
	payload, err := outputs.Encode(msg, u.compress)
	if err != nil {
		return fmt.Errorf("%w: %v", outputs.ErrDelivery, err)
	}

	conn, err := u.connect(ctx)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(deadline(ctx, u.timeout))
	if _, err := conn.Write(payload); err != nil {
		u.drop(conn)
		return fmt.Errorf("%w: write udp %s: %v", outputs.ErrDelivery, u.addr, err)
	}
	return nil
}

// connect returns the shared socket. Writes on it need no locking.
func (u *UDP) connect(ctx context.Context) (net.Conn, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.conn != nil {
		return u.conn, nil
	}
	d := net.Dialer{Timeout: u.timeout}
	conn, err := d.DialContext(ctx, "udp", u.addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dial udp %s: %v", outputs.ErrDelivery, u.addr, err)
	}
	u.conn = conn
	return conn, nil
}

func (u *UDP) drop(conn net.Conn) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.conn == conn {
		u.conn.Close()
		u.conn = nil
	}
}

func (u *UDP) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.conn == nil {
		return nil
	}
	err := u.conn.Close()
	u.conn = nil
	return err
}

func deadline(ctx context.Context, timeout time.Duration) time.Time {
	d := time.Now().Add(timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(d) {
		return dl
	}
	return d
}
