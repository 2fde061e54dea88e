package link

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"time"
)

// Conn is the byte stream under a link. *net.TCPConn satisfies it, as does
// the serial adapter returned by SerialDialer.
type Conn interface {
	io.ReadWriteCloser
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

// DialFunc opens a new Conn. It must honour ctx cancellation.
type DialFunc func(ctx context.Context) (Conn, error)

// TCPDialer dials addr with a bounded connect timeout.
func TCPDialer(addr string, timeout time.Duration) DialFunc {
	return func(ctx context.Context) (Conn, error) {
		d := net.Dialer{Timeout: timeout}
		c, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, err
		}
		if tc, ok := c.(*net.TCPConn); ok {
			_ = tc.SetNoDelay(true)
		}
		return c, nil
	}
}

// isTimeout reports whether err is a deadline expiry rather than a failure.
func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
