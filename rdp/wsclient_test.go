package rdp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newEchoServer starts a WebSocket server that hands every decoded
// request to onMessage, which writes the reply (and any out-of-band
// event) itself, mirroring how a real RDP runtime frames request/response
// and event messages over one socket.
func newEchoServer(t *testing.T, onMessage func(conn *websocket.Conn, req rpcRequest)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		for {
			var req rpcRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			onMessage(conn, req)
		}
	}))
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestWsClientCallRoundTrip(t *testing.T) {
	srv := newEchoServer(t, func(conn *websocket.Conn, req rpcRequest) {
		result, _ := json.Marshal(map[string]string{"echo": req.Method})
		_ = conn.WriteJSON(rpcMessage{Id: req.Id, Result: result})
	})
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Dial(ctx, wsURL(srv.URL))
	require.NoError(t, err)
	defer c.Close()

	var out struct {
		Echo string `json:"echo"`
	}
	require.NoError(t, c.Call(ctx, "Debugger.enable", nil, &out))
	assert.Equal(t, "Debugger.enable", out.Echo)
}

func TestWsClientCallSurfacesRPCError(t *testing.T) {
	srv := newEchoServer(t, func(conn *websocket.Conn, req rpcRequest) {
		_ = conn.WriteJSON(rpcMessage{Id: req.Id, Error: &rpcError{Code: -32000, Message: "boom"}})
	})
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Dial(ctx, wsURL(srv.URL))
	require.NoError(t, err)
	defer c.Close()

	err = c.Call(ctx, "Debugger.enable", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestWsClientDispatchesEvents(t *testing.T) {
	var pushEvent func(conn *websocket.Conn)
	srv := newEchoServer(t, func(conn *websocket.Conn, req rpcRequest) {
		_ = conn.WriteJSON(rpcMessage{Id: req.Id})
		if pushEvent != nil {
			pushEvent(conn)
			pushEvent = nil
		}
	})
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Dial(ctx, wsURL(srv.URL))
	require.NoError(t, err)
	defer c.Close()

	received := make(chan json.RawMessage, 1)
	c.On(EventDebuggerPaused, func(params json.RawMessage) {
		received <- params
	})

	pushEvent = func(conn *websocket.Conn) {
		params, _ := json.Marshal(map[string]string{"reason": "other"})
		_ = conn.WriteJSON(rpcMessage{Method: EventDebuggerPaused, Params: params})
	}

	require.NoError(t, c.Call(ctx, "Debugger.pause", nil, nil))

	select {
	case params := <-received:
		var body struct {
			Reason string `json:"reason"`
		}
		require.NoError(t, json.Unmarshal(params, &body))
		assert.Equal(t, "other", body.Reason)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatched event")
	}
}

func TestDiscoverFiltersByURLSubstring(t *testing.T) {
	var wsTargetURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/json/list" {
			targets := []target{
				{Id: "1", Url: "file:///app/other.js", WebSocketDebuggerUrl: "ws://unused/1"},
				{Id: "2", Url: "file:///app/main.js", WebSocketDebuggerUrl: wsTargetURL},
			}
			_ = json.NewEncoder(w).Encode(targets)
			return
		}
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var req rpcRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			_ = conn.WriteJSON(rpcMessage{Id: req.Id})
		}
	}))
	defer srv.Close()
	wsTargetURL = wsURL(srv.URL)

	host := strings.TrimPrefix(srv.URL, "http://")
	addr, portStr, _ := strings.Cut(host, ":")

	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Discover(ctx, addr, port, "main.js")
	require.NoError(t, err)
	defer c.Close()
}
