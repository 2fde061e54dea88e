package link

import (
	"bufio"
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gridnav/internal/grid"
	"github.com/banshee-data/gridnav/internal/nav"
)

type recordingHandler struct {
	mu           sync.Mutex
	connected    []string
	disconnected []string
	statuses     []*Status
}

func (h *recordingHandler) Connected(session string, _ time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connected = append(h.connected, session)
}

func (h *recordingHandler) HandleStatus(_ string, st *Status, _ time.Time) *Command {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.statuses = append(h.statuses, st)
	return &Command{Action: nav.Forward, Path: grid.Path{st.RobotGridPos}, PathCursor: 0}
}

func (h *recordingHandler) Disconnected(session string, _ time.Time, _ error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnected = append(h.disconnected, session)
}

func (h *recordingHandler) counts() (int, int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.connected), len(h.statuses), len(h.disconnected)
}

func startServer(t *testing.T, h Handler, cfg ServerConfig) (*Server, func()) {
	t.Helper()
	ln, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	srv := NewServer(ln, h, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	return srv, func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(3 * time.Second):
			t.Error("Serve did not return after cancel")
		}
	}
}

const statusLine = `{"type":"status","robot_grid_pos":[3,20],"goal_grid_pos":[14,4],` +
	`"pose":{"x":0,"z":0,"theta_rad":1.571},"sensors_binary":[0,1,0],"detected_obstacles":[]}` + "\n"

func TestServer_StatusGetsCommand(t *testing.T) {
	h := &recordingHandler{}
	srv, stop := startServer(t, h, ServerConfig{AcceptTimeout: 20 * time.Millisecond, NewSessionID: func() string { return "s1" }})
	defer stop()

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	r := bufio.NewReader(conn)

	// A malformed line is skipped without dropping the client.
	_, err = conn.Write([]byte("{not json}\n" + statusLine))
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	line, err := r.ReadBytes('\n')
	require.NoError(t, err)
	m, err := Decode(line[:len(line)-1])
	require.NoError(t, err)
	cmd := m.(*Command)
	assert.Equal(t, nav.Forward, cmd.Action)
	assert.Equal(t, grid.Path{{Row: 3, Col: 20}}, cmd.Path)

	c, s, d := h.counts()
	assert.Equal(t, 1, c)
	assert.Equal(t, 1, s)
	assert.Zero(t, d)
}

func TestServer_DisconnectThenReconnect(t *testing.T) {
	h := &recordingHandler{}
	var n atomic.Int32
	srv, stop := startServer(t, h, ServerConfig{
		AcceptTimeout: 20 * time.Millisecond,
		NewSessionID:  func() string { return []string{"a", "b"}[n.Add(1)-1] },
	})
	defer stop()

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	require.Eventually(t, func() bool { c, _, _ := h.counts(); return c == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { _, _, d := h.counts(); return d == 1 }, 2*time.Second, 10*time.Millisecond)

	conn, err = net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { c, _, _ := h.counts(); return c == 2 }, 2*time.Second, 10*time.Millisecond)

	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Equal(t, []string{"a", "b"}, h.connected)
	assert.Equal(t, []string{"a"}, h.disconnected)
}

func TestServer_HousekeepingOnIdleAccept(t *testing.T) {
	var runs atomic.Int32
	_, stop := startServer(t, &recordingHandler{}, ServerConfig{
		AcceptTimeout: 10 * time.Millisecond,
		Housekeeping:  func() { runs.Add(1) },
	})
	defer stop()
	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestServer_UsesUUIDSessionsByDefault(t *testing.T) {
	h := &recordingHandler{}
	srv, stop := startServer(t, h, ServerConfig{AcceptTimeout: 20 * time.Millisecond})
	defer stop()

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { c, _, _ := h.counts(); return c == 1 }, 2*time.Second, 10*time.Millisecond)

	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Len(t, h.connected[0], 36)
}
