package session

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"
)

const defaultDialTimeout = 10 * time.Second

// TCPDialer connects to the game server's command endpoint and writes
// newline-terminated instruction text. It is a transport shim only; the game
// wire protocol itself is out of scope here.
type TCPDialer struct {
	Addr    string
	Timeout time.Duration
}

// DialGame opens one TCP connection to the game endpoint.
func (d TCPDialer) DialGame(ctx context.Context) (Conn, error) {
	addr := strings.TrimSpace(d.Addr)
	if addr == "" {
		return nil, fmt.Errorf("game address is required")
	}
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	dialer := net.Dialer{Timeout: timeout}
	raw, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial game endpoint %s: %w", addr, err)
	}
	return newTCPConn(raw), nil
}

type tcpConn struct {
	raw       net.Conn
	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
	dropErr   error
}

func newTCPConn(raw net.Conn) *tcpConn {
	conn := &tcpConn{
		raw:  raw,
		done: make(chan struct{}),
	}
	// Drain inbound bytes so the peer closing the socket is noticed.
	go func() {
		_, err := io.Copy(io.Discard, raw)
		conn.dropErr = err
		close(conn.done)
	}()
	return conn
}

// SendCommand writes one newline-terminated instruction.
func (c *tcpConn) SendCommand(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.raw.SetWriteDeadline(deadline)
	}
	if _, err := c.raw.Write([]byte(text + "\n")); err != nil {
		return fmt.Errorf("write command: %w", err)
	}
	return nil
}

// Wait blocks until the peer drops the connection or ctx ends.
func (c *tcpConn) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		if c.dropErr != nil {
			return c.dropErr
		}
		return io.EOF
	}
}

func (c *tcpConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.raw.Close()
	})
	return err
}
