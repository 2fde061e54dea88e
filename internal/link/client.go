package link

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/banshee-data/gridnav/internal/monitoring"
	"github.com/banshee-data/gridnav/internal/timeutil"
)

var linkLog = monitoring.Component("Link")

// Client defaults.
const (
	DefaultReconnectBackoff = 3 * time.Second
	DefaultDialTimeout      = 2 * time.Second
	DefaultSendTimeout      = 50 * time.Millisecond
	DefaultReceiveTimeout   = 50 * time.Millisecond
)

// ClientConfig configures a motion-side Client. Zero durations use the
// package defaults.
type ClientConfig struct {
	Dial             DialFunc
	ReconnectBackoff time.Duration
	SendTimeout      time.Duration
	ReceiveTimeout   time.Duration
	Clock            timeutil.Clock
}

// ClientStats counts link activity since the Client was created.
type ClientStats struct {
	Connects    int
	Disconnects int
	Sent        int
	Received    int
	Malformed   int
}

// Client is the motion side of the link: it reconnects with a fixed backoff
// and never blocks for longer than its short I/O deadlines. It is not safe
// for concurrent use; the motion loop owns it.
type Client struct {
	cfg         ClientConfig
	conn        Conn
	framer      Framer
	readBuf     []byte
	attempted   bool
	lastAttempt time.Time
	stats       ClientStats
}

// NewClient returns a disconnected Client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.ReconnectBackoff <= 0 {
		cfg.ReconnectBackoff = DefaultReconnectBackoff
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}
	if cfg.ReceiveTimeout <= 0 {
		cfg.ReceiveTimeout = DefaultReceiveTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	return &Client{cfg: cfg, readBuf: make([]byte, 4096)}
}

// Connected reports whether a connection is currently held.
func (c *Client) Connected() bool { return c.conn != nil }

// Stats returns a copy of the activity counters.
func (c *Client) Stats() ClientStats { return c.stats }

// Maintain dials when disconnected and the backoff since the previous
// attempt has elapsed. It returns whether the client is connected.
func (c *Client) Maintain(ctx context.Context) bool {
	if c.conn != nil {
		return true
	}
	now := c.cfg.Clock.Now()
	if c.attempted && now.Sub(c.lastAttempt) < c.cfg.ReconnectBackoff {
		return false
	}
	c.attempted = true
	c.lastAttempt = now

	conn, err := c.cfg.Dial(ctx)
	if err != nil {
		linkLog.Printf("connect failed: %v (retry in %v)", err, c.cfg.ReconnectBackoff)
		return false
	}
	c.conn = conn
	c.framer.Reset()
	c.stats.Connects++
	linkLog.Printf("connected")
	return true
}

// Send writes one message. Any write error or short write drops the
// connection and returns an error wrapping ErrConnectionLost.
func (c *Client) Send(m Message) error {
	if c.conn == nil {
		return ErrConnectionLost
	}
	data, err := Encode(m)
	if err != nil {
		return err
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.SendTimeout)); err != nil {
		c.drop(err)
		return fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}
	n, err := c.conn.Write(data)
	if err == nil && n != len(data) {
		err = io.ErrShortWrite
	}
	if err != nil {
		c.drop(err)
		return fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}
	c.stats.Sent++
	return nil
}

// Receive performs one bounded read and returns every complete, valid
// message it produced. Malformed lines are logged and skipped. A timeout
// yields no messages; EOF or any other error drops the connection.
func (c *Client) Receive() []Message {
	if c.conn == nil {
		return nil
	}
	if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReceiveTimeout)); err != nil {
		c.drop(err)
		return nil
	}
	n, err := c.conn.Read(c.readBuf)
	msgs := c.decode(c.readBuf[:n])
	if err != nil && !isTimeout(err) {
		c.drop(err)
	}
	return msgs
}

func (c *Client) decode(p []byte) []Message {
	if len(p) == 0 {
		return nil
	}
	lines, dropped := c.framer.Feed(p)
	if dropped > 0 {
		c.stats.Malformed += dropped
		linkLog.Printf("discarded %d oversized fragment(s)", dropped)
	}
	var msgs []Message
	for _, line := range lines {
		m, err := Decode(line)
		if err != nil {
			c.stats.Malformed++
			linkLog.Printf("skipping line: %v", err)
			continue
		}
		c.stats.Received++
		msgs = append(msgs, m)
	}
	return msgs
}

// Close drops any held connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) drop(reason error) {
	if c.conn == nil {
		return
	}
	if reason == io.EOF {
		linkLog.Printf("connection closed by peer")
	} else {
		linkLog.Printf("connection lost: %v", reason)
	}
	_ = c.conn.Close()
	c.conn = nil
	c.stats.Disconnects++
}
