package link

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/gridnav/internal/timeutil"
)

// Server defaults.
const (
	DefaultAcceptTimeout       = 1 * time.Second
	DefaultServerReceiveTimeout = 100 * time.Millisecond
	DefaultServerSendTimeout   = 500 * time.Millisecond
	DefaultIdleSleep           = 20 * time.Millisecond
)

// Handler receives link events on the planning side. All calls come from
// the Serve goroutine.
type Handler interface {
	// Connected starts a new link session.
	Connected(session string, now time.Time)
	// HandleStatus returns the Command to send back, or nil for none.
	HandleStatus(session string, st *Status, now time.Time) *Command
	// Disconnected ends the session. reason is nil for a graceful close.
	Disconnected(session string, now time.Time, reason error)
}

// DeadlineListener is a net.Listener whose Accept can time out.
// *net.TCPListener satisfies it.
type DeadlineListener interface {
	net.Listener
	SetDeadline(t time.Time) error
}

// ServerConfig configures a Server. Zero values use the package defaults.
type ServerConfig struct {
	AcceptTimeout  time.Duration
	ReceiveTimeout time.Duration
	SendTimeout    time.Duration
	IdleSleep      time.Duration
	// Housekeeping runs each time Accept times out with no client.
	Housekeeping func()
	Clock        timeutil.Clock
	NewSessionID func() string
}

// Server accepts exactly one motion client at a time and feeds its Status
// messages to a Handler.
type Server struct {
	ln      DeadlineListener
	handler Handler
	cfg     ServerConfig

	conn    Conn
	session string
	framer  Framer
	readBuf []byte
}

// Listen opens a TCP listener suitable for NewServer.
func Listen(addr string) (*net.TCPListener, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, err
	}
	return net.ListenTCP("tcp", tcpAddr)
}

// NewServer wraps ln. The listener is closed when Serve returns.
func NewServer(ln DeadlineListener, h Handler, cfg ServerConfig) *Server {
	if cfg.AcceptTimeout <= 0 {
		cfg.AcceptTimeout = DefaultAcceptTimeout
	}
	if cfg.ReceiveTimeout <= 0 {
		cfg.ReceiveTimeout = DefaultServerReceiveTimeout
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultServerSendTimeout
	}
	if cfg.IdleSleep <= 0 {
		cfg.IdleSleep = DefaultIdleSleep
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if cfg.NewSessionID == nil {
		cfg.NewSessionID = uuid.NewString
	}
	return &Server{ln: ln, handler: h, cfg: cfg, readBuf: make([]byte, 4096)}
}

// Addr returns the listening address.
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// Serve runs until ctx is cancelled. Cancellation is observed within one
// accept or receive deadline.
func (s *Server) Serve(ctx context.Context) error {
	defer s.ln.Close()
	linkLog.Printf("listening on %s", s.ln.Addr())
	for {
		if ctx.Err() != nil {
			if s.conn != nil {
				s.disconnect(nil)
			}
			return nil
		}
		if s.conn == nil {
			if err := s.acceptOnce(); err != nil {
				return err
			}
			continue
		}
		s.serveOnce()
		s.cfg.Clock.Sleep(s.cfg.IdleSleep)
	}
}

func (s *Server) acceptOnce() error {
	if err := s.ln.SetDeadline(time.Now().Add(s.cfg.AcceptTimeout)); err != nil {
		return err
	}
	c, err := s.ln.Accept()
	if err != nil {
		if isTimeout(err) {
			if s.cfg.Housekeeping != nil {
				s.cfg.Housekeeping()
			}
			return nil
		}
		if errors.Is(err, net.ErrClosed) {
			return err
		}
		linkLog.Printf("accept failed: %v", err)
		return nil
	}
	if tc, ok := c.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	s.conn = c
	s.session = s.cfg.NewSessionID()
	s.framer.Reset()
	linkLog.Printf("client %s connected (session %s)", c.RemoteAddr(), s.session)
	s.handler.Connected(s.session, s.cfg.Clock.Now())
	return nil
}

func (s *Server) serveOnce() {
	if err := s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReceiveTimeout)); err != nil {
		s.disconnect(err)
		return
	}
	n, rerr := s.conn.Read(s.readBuf)
	if n > 0 {
		lines, dropped := s.framer.Feed(s.readBuf[:n])
		if dropped > 0 {
			linkLog.Printf("discarded %d oversized fragment(s)", dropped)
		}
		for _, line := range lines {
			if !s.handleLine(line) {
				return
			}
		}
	}
	switch {
	case rerr == nil:
		if n == 0 {
			s.disconnect(nil)
		}
	case isTimeout(rerr):
	case errors.Is(rerr, io.EOF):
		s.disconnect(nil)
	default:
		s.disconnect(rerr)
	}
}

// handleLine returns false when the connection was dropped.
func (s *Server) handleLine(line []byte) bool {
	m, err := Decode(line)
	if err != nil {
		linkLog.Printf("skipping line: %v", err)
		return true
	}
	st, ok := m.(*Status)
	if !ok {
		linkLog.Printf("ignoring unexpected %s message from motion client", m.messageType())
		return true
	}
	cmd := s.handler.HandleStatus(s.session, st, s.cfg.Clock.Now())
	if cmd == nil {
		return true
	}
	data, err := Encode(cmd)
	if err != nil {
		linkLog.Printf("encode command: %v", err)
		return true
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.cfg.SendTimeout)); err != nil {
		s.disconnect(err)
		return false
	}
	n, err := s.conn.Write(data)
	if err == nil && n != len(data) {
		err = io.ErrShortWrite
	}
	if err != nil {
		s.disconnect(err)
		return false
	}
	return true
}

func (s *Server) disconnect(reason error) {
	if reason == nil {
		linkLog.Printf("client disconnected (session %s)", s.session)
	} else {
		linkLog.Printf("client lost (session %s): %v", s.session, reason)
	}
	_ = s.conn.Close()
	s.conn = nil
	s.handler.Disconnected(s.session, s.cfg.Clock.Now(), reason)
	s.session = ""
}
