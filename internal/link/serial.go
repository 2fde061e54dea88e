package link

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial"
)

// serialConn adapts a serial port to Conn. Read deadlines become port read
// timeouts; write deadlines are ignored since UART writes drain on their own.
type serialConn struct {
	port serial.Port
}

type readTimeoutError struct{}

func (readTimeoutError) Error() string   { return "serial read timeout" }
func (readTimeoutError) Timeout() bool   { return true }
func (readTimeoutError) Temporary() bool { return true }

// PortOptions describes the UART framing of a serial link.
type PortOptions struct {
	BaudRate int    `json:"baud_rate"`
	DataBits int    `json:"data_bits"`
	StopBits int    `json:"stop_bits"`
	Parity   string `json:"parity"`
}

// Normalize validates the options and fills unset values with 115200 8N1.
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o
	if opts.BaudRate <= 0 {
		opts.BaudRate = 115200
	}
	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}
	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}
	switch p := strings.TrimSpace(strings.ToUpper(opts.Parity)); p {
	case "", "N", "NONE":
		opts.Parity = "N"
	case "E", "EVEN":
		opts.Parity = "E"
	case "O", "ODD":
		opts.Parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", o.Parity)
	}
	return opts, nil
}

// Mode converts normalized options to a go.bug.st/serial mode.
func (o PortOptions) Mode() *serial.Mode {
	m := &serial.Mode{BaudRate: o.BaudRate, DataBits: o.DataBits}
	switch o.Parity {
	case "E":
		m.Parity = serial.EvenParity
	case "O":
		m.Parity = serial.OddParity
	default:
		m.Parity = serial.NoParity
	}
	if o.StopBits == 2 {
		m.StopBits = serial.TwoStopBits
	} else {
		m.StopBits = serial.OneStopBit
	}
	return m
}

// SerialDialer opens the serial device at path. Invalid options surface on
// the first dial.
func SerialDialer(path string, opts PortOptions) DialFunc {
	return func(ctx context.Context) (Conn, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		norm, err := opts.Normalize()
		if err != nil {
			return nil, err
		}
		port, err := serial.Open(path, norm.Mode())
		if err != nil {
			return nil, fmt.Errorf("open serial port %s: %w", path, err)
		}
		return &serialConn{port: port}, nil
	}
}

func (s *serialConn) Read(p []byte) (int, error) {
	n, err := s.port.Read(p)
	if n == 0 && err == nil {
		// go.bug.st/serial reports an expired read timeout as (0, nil).
		return 0, readTimeoutError{}
	}
	return n, err
}

func (s *serialConn) Write(p []byte) (int, error) { return s.port.Write(p) }
func (s *serialConn) Close() error                { return s.port.Close() }

func (s *serialConn) SetReadDeadline(t time.Time) error {
	if t.IsZero() {
		return s.port.SetReadTimeout(serial.NoTimeout)
	}
	d := time.Until(t)
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return s.port.SetReadTimeout(d)
}

func (s *serialConn) SetWriteDeadline(time.Time) error { return nil }
