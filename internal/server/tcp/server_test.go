package tcp

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/msgbox/internal/logging"
	"github.com/dmitrijs2005/msgbox/internal/protocol"
	"github.com/dmitrijs2005/msgbox/internal/server/session"
)

// echoDispatcher answers with the command name and remembers sessions.
type echoDispatcher struct {
	mu       sync.Mutex
	sessions map[string]bool
	block    chan struct{}
}

func (d *echoDispatcher) Dispatch(ctx context.Context, s *session.Session, req protocol.Request) protocol.Response {
	d.mu.Lock()
	if d.sessions == nil {
		d.sessions = map[string]bool{}
	}
	d.sessions[s.ID] = true
	d.mu.Unlock()

	if req.Command == "login" {
		s.Login(req.Param("username"))
	}
	if req.Command == "whoami" {
		return protocol.OK(s.Username, nil)
	}
	if req.Command == "wait" && d.block != nil {
		<-d.block
	}
	return protocol.OK("ok:"+req.Command, map[string]any{"n": len(req.Data)})
}

type countingHooks struct {
	opened, closed, protocolErrors atomic.Int32
}

func (h *countingHooks) ConnectionOpened() { h.opened.Add(1) }
func (h *countingHooks) ConnectionClosed() { h.closed.Add(1) }
func (h *countingHooks) ProtocolError()    { h.protocolErrors.Add(1) }

type client struct {
	conn net.Conn
	r    *bufio.Reader
}

func (c *client) roundTrip(t *testing.T, line string) map[string]any {
	t.Helper()
	require.NoError(t, c.conn.SetDeadline(time.Now().Add(2*time.Second)))
	_, err := c.conn.Write([]byte(line + "\n"))
	require.NoError(t, err)
	return c.read(t)
}

func (c *client) read(t *testing.T) map[string]any {
	t.Helper()
	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	resp, err := c.r.ReadString('\n')
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(resp), &out))
	return out
}

func pipeServer(t *testing.T, cfg Config, d Dispatcher, hooks Hooks) (*client, chan struct{}) {
	t.Helper()
	srvConn, cliConn := net.Pipe()
	s := NewServer(cfg, d, logging.Discard(), hooks)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.ServeConn(context.Background(), srvConn)
	}()
	t.Cleanup(func() { _ = cliConn.Close() })
	return &client{conn: cliConn, r: bufio.NewReader(cliConn)}, done
}

func TestServeConn_RequestResponse(t *testing.T) {
	hooks := &countingHooks{}
	c, done := pipeServer(t, Config{}, &echoDispatcher{}, hooks)

	resp := c.roundTrip(t, `{"command":"help","data":{"a":1}}`)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "ok:help", resp["message"])
	assert.Equal(t, map[string]any{"n": 1.0}, resp["data"])
	assert.Nil(t, resp["error_code"])

	require.NoError(t, c.conn.Close())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("connection loop did not exit")
	}
	assert.Equal(t, int32(1), hooks.opened.Load())
	assert.Equal(t, int32(1), hooks.closed.Load())
}

func TestServeConn_SessionIsPerConnection(t *testing.T) {
	d := &echoDispatcher{}
	a, _ := pipeServer(t, Config{}, d, nil)
	b, _ := pipeServer(t, Config{}, d, nil)

	a.roundTrip(t, `{"command":"login","data":{"username":"alice"}}`)
	assert.Equal(t, "alice", a.roundTrip(t, `{"command":"whoami"}`)["message"])
	assert.Equal(t, "", b.roundTrip(t, `{"command":"whoami"}`)["message"])

	d.mu.Lock()
	defer d.mu.Unlock()
	assert.Len(t, d.sessions, 2)
}

func TestServeConn_MalformedFrameKeepsConnection(t *testing.T) {
	hooks := &countingHooks{}
	c, _ := pipeServer(t, Config{}, &echoDispatcher{}, hooks)

	resp := c.roundTrip(t, `{"command":`)
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "PROTOCOL_ERROR", resp["error_code"])

	resp = c.roundTrip(t, `{"command":"send","data":[1]}`)
	assert.Equal(t, "PROTOCOL_ERROR", resp["error_code"])

	resp = c.roundTrip(t, `{"command":"read"}`)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, int32(2), hooks.protocolErrors.Load())
}

func TestServeConn_OversizeFrameClosesConnection(t *testing.T) {
	c, done := pipeServer(t, Config{MaxRequestSize: 64}, &echoDispatcher{}, nil)

	require.NoError(t, c.conn.SetDeadline(time.Now().Add(2*time.Second)))
	go func() {
		_, _ = c.conn.Write([]byte(`{"command":"send","data":{"text":"` + strings.Repeat("x", 200) + `"}}` + "\n"))
	}()

	resp := c.read(t)
	assert.Equal(t, "PROTOCOL_ERROR", resp["error_code"])

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("connection was not closed")
	}
}

func TestServeConn_ReadTimeoutClosesConnection(t *testing.T) {
	_, done := pipeServer(t, Config{ReadTimeout: 50 * time.Millisecond}, &echoDispatcher{}, nil)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("idle connection was not closed")
	}
}

func TestServeConn_SkipsBlankLines(t *testing.T) {
	c, _ := pipeServer(t, Config{}, &echoDispatcher{}, nil)
	require.NoError(t, c.conn.SetDeadline(time.Now().Add(2*time.Second)))
	_, err := c.conn.Write([]byte("\n  \r\n"))
	require.NoError(t, err)
	assert.Equal(t, "ok:help", c.roundTrip(t, `{"command":"help"}`)["message"])
}

func TestServe_StopsOnContextCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := NewServer(Config{MaxConnections: 2}, &echoDispatcher{}, logging.Discard(), nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	c := &client{conn: conn, r: bufio.NewReader(conn)}
	assert.Equal(t, "ok:help", c.roundTrip(t, `{"command":"help"}`)["message"])

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestServe_LimitsConcurrentConnections(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	d := &echoDispatcher{block: make(chan struct{})}
	s := NewServer(Config{MaxConnections: 1}, d, logging.Discard(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Serve(ctx, ln) }()

	first, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer first.Close()
	_, err = first.Write([]byte(`{"command":"wait"}` + "\n"))
	require.NoError(t, err)

	second, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer second.Close()
	_, err = second.Write([]byte(`{"command":"help"}` + "\n"))
	require.NoError(t, err)

	// the second client is not served while the first holds the only slot
	require.NoError(t, second.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	_, err = bufio.NewReader(second).ReadString('\n')
	require.Error(t, err)

	close(d.block)
	fc := &client{conn: first, r: bufio.NewReader(first)}
	assert.Equal(t, "ok:wait", fc.read(t)["message"])
	require.NoError(t, first.Close())

	sc := &client{conn: second, r: bufio.NewReader(second)}
	assert.Equal(t, "ok:help", sc.read(t)["message"])
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	s := NewServer(Config{Address: "127.0.0.1:99999"}, &echoDispatcher{}, logging.Discard(), nil)
	assert.Error(t, s.Run(context.Background()))
}
