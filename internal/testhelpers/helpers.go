// Package testhelpers provides common utilities shared by the server's
// package tests: running a hub behind an httptest server, dialing it, and
// exchanging protocol events.
package testhelpers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/protocol"
	"github.com/Tyrowin/roomchat/internal/server"
)

// TestOrigin is the Origin header sent by ConnectWebSocket.
const TestOrigin = "http://localhost:8080"

// DefaultTimeout bounds every read performed by these helpers.
const DefaultTimeout = 2 * time.Second

// TestConfig returns a configuration suitable for tests: the test origin is
// allowed and room timers are short.
func TestConfig() server.Config {
	cfg := *server.NewConfig()
	cfg.AllowedOrigins = []string{TestOrigin}
	cfg.RateLimit.Burst = 100
	cfg.Rooms.CloseDelay = 50 * time.Millisecond
	cfg.Rooms.OwnerLeaveDelay = 50 * time.Millisecond
	cfg.Rooms.StealthPassword = "letmein"
	cfg.ShutdownTimeout = 5 * time.Second
	return cfg
}

// Server is a running hub behind an httptest server.
type Server struct {
	Hub  *server.Hub
	HTTP *httptest.Server
	URL  string
	WS   string
}

// StartServer runs a hub built from cfg and serves its routes. Both are torn
// down when the test ends.
func StartServer(t *testing.T, cfg server.Config, persister chat.Persister, restored []chat.RoomSnapshot) *Server {
	t.Helper()

	hub := server.NewHub(cfg, persister, restored)
	go hub.Run()

	ts := httptest.NewServer(server.SetupRoutes(hub))
	s := &Server{Hub: hub, HTTP: ts, URL: ts.URL, WS: WebSocketURL(t, ts.URL)}
	t.Cleanup(func() {
		ts.Close()
		_ = hub.Shutdown(5 * time.Second)
	})
	return s
}

// WebSocketURL converts an http(s) base URL into the /ws endpoint URL.
func WebSocketURL(t *testing.T, baseURL string) string {
	t.Helper()
	u, err := url.Parse(baseURL)
	require.NoError(t, err)
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	return u.String()
}

// ConnectWebSocket creates a WebSocket connection to the specified URL with
// the test Origin header.
func ConnectWebSocket(wsURL string) (*websocket.Conn, error) {
	return ConnectWebSocketWithOrigin(wsURL, TestOrigin)
}

// ConnectWebSocketWithOrigin dials with an explicit Origin header. An empty
// origin sends none.
func ConnectWebSocketWithOrigin(wsURL, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(wsURL, headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil && resp != nil {
		return nil, fmt.Errorf("dial %s: %w (status %d)", wsURL, err, resp.StatusCode)
	}
	return conn, err
}

// Envelope is a decoded outbound event with its payload left raw.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(t *testing.T, v any) {
	t.Helper()
	require.NoErrorf(t, json.Unmarshal(e.Data, v), "decode %s payload", e.Type)
}

// Client is a test-side chat connection.
type Client struct {
	t    *testing.T
	Conn *websocket.Conn
}

// Dial connects a client, consumes the initial room list and, when nickname
// is not empty, sets the nickname.
func Dial(t *testing.T, wsURL, nickname string) *Client {
	t.Helper()
	conn, err := ConnectWebSocket(wsURL)
	require.NoError(t, err)
	c := &Client{t: t, Conn: conn}
	t.Cleanup(func() { _ = conn.Close() })

	c.Expect(protocol.TypeRoomsList)
	if nickname != "" {
		c.Send(protocol.Inbound{Type: protocol.TypeSetNickname, Nickname: nickname})
		c.Expect(protocol.TypeNicknameSet)
	}
	return c
}

// Send writes one client event.
func (c *Client) Send(in protocol.Inbound) {
	c.t.Helper()
	require.NoError(c.t, c.Conn.WriteJSON(in))
}

// Read returns the next event or an error once timeout passes.
func (c *Client) Read(timeout time.Duration) (Envelope, error) {
	var env Envelope
	if err := c.Conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return env, err
	}
	err := c.Conn.ReadJSON(&env)
	return env, err
}

// Expect skips events until one of eventType arrives, failing the test after
// DefaultTimeout.
func (c *Client) Expect(eventType string) Envelope {
	c.t.Helper()
	deadline := time.Now().Add(DefaultTimeout)
	for {
		remaining := time.Until(deadline)
		require.Greaterf(c.t, remaining, time.Duration(0), "timed out waiting for %s", eventType)
		env, err := c.Read(remaining)
		require.NoErrorf(c.t, err, "waiting for %s", eventType)
		if env.Type == eventType {
			return env
		}
	}
}

// ExpectMessage skips events until a chat message with the given text
// arrives.
func (c *Client) ExpectMessage(text string) protocol.Message {
	c.t.Helper()
	deadline := time.Now().Add(DefaultTimeout)
	for time.Now().Before(deadline) {
		env := c.Expect(protocol.TypeMessage)
		var msg protocol.Message
		env.Decode(c.t, &msg)
		if msg.Text == text {
			return msg
		}
	}
	c.t.Fatalf("timed out waiting for message %q", text)
	return protocol.Message{}
}

// ExpectNone asserts that no event of eventType arrives within wait. The
// connection is unusable for reads afterwards.
func (c *Client) ExpectNone(eventType string, wait time.Duration) {
	c.t.Helper()
	deadline := time.Now().Add(wait)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}
		env, err := c.Read(remaining)
		if err != nil {
			return
		}
		require.NotEqualf(c.t, eventType, env.Type, "unexpected %s event", eventType)
	}
}

// Join joins roomID and returns the acknowledgement.
func (c *Client) Join(roomID, password string) protocol.JoinedRoom {
	c.t.Helper()
	c.Send(protocol.Inbound{Type: protocol.TypeJoinRoom, RoomID: roomID, Password: password})
	var joined protocol.JoinedRoom
	c.Expect(protocol.TypeJoinedRoom).Decode(c.t, &joined)
	return joined
}

// CreateRoom creates a room and returns its id.
func (c *Client) CreateRoom(name, password string) string {
	c.t.Helper()
	c.Send(protocol.Inbound{Type: protocol.TypeCreateRoom, RoomName: name, Password: password})
	var created protocol.RoomCreated
	c.Expect(protocol.TypeRoomCreated).Decode(c.t, &created)
	return created.RoomID
}

// Close gracefully closes the connection.
func (c *Client) Close() {
	_ = c.Conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = c.Conn.Close()
}

// MakeRequest creates and executes an HTTP request, returning the response.
func MakeRequest(t *testing.T, method, target string) *http.Response {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	req, err := http.NewRequestWithContext(ctx, method, target, http.NoBody)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// WaitFor polls cond until it holds or DefaultTimeout passes.
func WaitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, DefaultTimeout, 10*time.Millisecond, msg)
}
