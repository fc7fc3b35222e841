// Package socket is the stream transport a debugger session runs over.
package socket

import (
	"bufio"
	"errors"
	"net"
	"os"
	"sync/atomic"
	"time"
)

type Network = string

const (
	TCP  Network = "tcp"
	TCP4 Network = "tcp4"
	TCP6 Network = "tcp6"
	Unix Network = "unix"
)

// DEFAULT_POLL_TIMEOUT bounds how long PeekByte waits for data. An already
// expired deadline fails before the read is attempted, so it cannot be zero.
const DEFAULT_POLL_TIMEOUT = 50 * time.Microsecond

type Listener struct {
	l net.Listener
}

// Conn buffers reads so a polled byte stays available to the next reader.
// Close may be called from any goroutine.
type Conn struct {
	c       net.Conn
	r       *bufio.Reader
	timeout time.Duration
	closed  atomic.Bool
}

func Listen(network Network, addr string) (*Listener, error) {
	l, err := net.Listen(network, addr)
	if err != nil {
		return nil, err
	}
	return &Listener{l: l}, nil
}

func (l *Listener) Addr() net.Addr {
	return l.l.Addr()
}

func (l *Listener) Accept() (*Conn, error) {
	if l.l == nil {
		return nil, ErrNotListen
	}
	conn, err := l.l.Accept()
	if err != nil {
		return nil, err
	}
	return NewConn(conn), nil
}

func (l *Listener) Close() error {
	if l.l == nil {
		return ErrNotListen
	}
	return l.l.Close()
}

func NewConn(conn net.Conn) *Conn {
	return &Conn{c: conn, r: bufio.NewReader(conn), timeout: DEFAULT_POLL_TIMEOUT}
}

func (c *Conn) SetPollTimeout(d time.Duration) {
	if d > 0 {
		c.timeout = d
	}
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.c.RemoteAddr()
}

// PeekByte reports the next incoming byte without consuming it. It returns
// false when nothing arrives within the poll timeout.
func (c *Conn) PeekByte() (byte, bool, error) {
	if c.closed.Load() {
		return 0, false, ErrClosed
	}
	if c.r.Buffered() == 0 {
		if err := c.c.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return 0, false, err
		}
		_, err := c.r.Peek(1)
		if derr := c.c.SetReadDeadline(time.Time{}); err == nil {
			err = derr
		}
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return 0, false, nil
		} else if err != nil {
			return 0, false, err
		}
	}
	b, err := c.r.Peek(1)
	if err != nil {
		return 0, false, err
	}
	return b[0], true, nil
}

func (c *Conn) ReadByte() (byte, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}
	return c.r.ReadByte()
}

func (c *Conn) Read(b []byte) (int, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}
	return c.r.Read(b)
}

func (c *Conn) Write(b []byte) (int, error) {
	if c.closed.Load() {
		return 0, ErrClosed
	}
	return c.c.Write(b)
}

func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.c.Close()
}
