package channel

import (
	"errors"
	"net"
	"os"
	"time"
)

// Transport is the byte stream beneath a Channel.
type Transport interface {
	// ReadTimeout reads into buf, waiting at most d for the first byte.
	// An empty wait returns 0, nil.
	ReadTimeout(buf []byte, d time.Duration) (int, error)

	// WriteTimeout writes p, failing when the write does not complete within d.
	WriteTimeout(p []byte, d time.Duration) (int, error)

	// Available reports the number of bytes queued for reading.
	// ok is false when the transport cannot tell.
	Available() (n int, ok bool)

	Close() error
}

type connTransport struct {
	conn net.Conn
}

var _ Transport = (*connTransport)(nil)

// NewConnTransport wraps a net.Conn, e.g. one end of net.Pipe, a unix socket
// or a socketpair end. Read and write waits use connection deadlines.
func NewConnTransport(conn net.Conn) Transport {
	return &connTransport{conn: conn}
}

func (t *connTransport) ReadTimeout(buf []byte, d time.Duration) (int, error) {
	if err := t.conn.SetReadDeadline(time.Now().Add(d)); err != nil {
		return 0, err
	}

	n, err := t.conn.Read(buf)
	if err != nil && isTimeout(err) {
		return n, nil
	}

	return n, err
}

func (t *connTransport) WriteTimeout(p []byte, d time.Duration) (int, error) {
	if err := t.conn.SetWriteDeadline(time.Now().Add(d)); err != nil {
		return 0, err
	}

	return t.conn.Write(p)
}

func (t *connTransport) Available() (int, bool) {
	return available(t.conn)
}

func (t *connTransport) Close() error {
	return t.conn.Close()
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}
