package rdp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// wsClient is the default Client implementation: a JSON-RPC connection over
// a WebSocket, matching the wire shape real CDP-style runtimes use. It is
// the one concrete piece of the otherwise delegated transport.
type wsClient struct {
	conn *websocket.Conn

	nextID  atomic.Int64
	pending sync.Map // int64 -> chan rpcResponse

	handlersMu sync.RWMutex
	handlers   map[string]func(json.RawMessage)

	closeOnce sync.Once
	closed    chan struct{}
	readErr   error
}

type rpcRequest struct {
	Id     int64  `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

type rpcMessage struct {
	Id     int64           `json:"id,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rdp: %s (code %d)", e.Message, e.Code)
}

// Dial opens a WebSocket connection to the given debugger URL and returns a
// Client backed by it.
func Dial(ctx context.Context, websocketURL string) (Client, error) {
	d := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := d.DialContext(ctx, websocketURL, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", websocketURL)
	}

	c := &wsClient{
		conn:     conn,
		handlers: make(map[string]func(json.RawMessage)),
		closed:   make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// target describes one entry returned by the runtime's /json discovery
// endpoint.
type target struct {
	Id                   string `json:"id"`
	Type                 string `json:"type"`
	Url                  string `json:"url"`
	WebSocketDebuggerUrl string `json:"webSocketDebuggerUrl"`
}

// Discover queries the runtime's HTTP discovery endpoint for a debuggable
// target whose URL contains urlFilter (empty matches the first target) and
// dials it.
func Discover(ctx context.Context, address string, port int, urlFilter string) (Client, error) {
	endpoint := fmt.Sprintf("http://%s:%d/json/list", address, port)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "discover targets at %s", endpoint)
	}
	defer resp.Body.Close()

	var targets []target
	if err := json.NewDecoder(resp.Body).Decode(&targets); err != nil {
		return nil, errors.Wrap(err, "decode target list")
	}

	for _, t := range targets {
		if t.WebSocketDebuggerUrl == "" {
			continue
		}
		if urlFilter == "" || containsSubstring(t.Url, urlFilter) {
			return Dial(ctx, t.WebSocketDebuggerUrl)
		}
	}
	return nil, errors.Errorf("no debuggable target matching %q at %s", urlFilter, endpoint)
}

func containsSubstring(s, sub string) bool {
	return len(sub) == 0 || indexOf(s, sub) >= 0
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func (c *wsClient) Call(ctx context.Context, method string, params, out any) error {
	id := c.nextID.Add(1)
	ch := make(chan rpcMessage, 1)
	c.pending.Store(id, ch)
	defer c.pending.Delete(id)

	if err := c.conn.WriteJSON(rpcRequest{Id: id, Method: method, Params: params}); err != nil {
		return errors.Wrapf(err, "call %s", method)
	}

	select {
	case m := <-ch:
		if m.Error != nil {
			return m.Error
		}
		if out == nil || len(m.Result) == 0 {
			return nil
		}
		return json.Unmarshal(m.Result, out)
	case <-ctx.Done():
		return context.Cause(ctx)
	case <-c.closed:
		return c.readErr
	}
}

func (c *wsClient) On(method string, fn func(params json.RawMessage)) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.handlers[method] = fn
}

func (c *wsClient) readLoop() {
	defer close(c.closed)

	for {
		var m rpcMessage
		if err := c.conn.ReadJSON(&m); err != nil {
			c.readErr = err
			return
		}

		if m.Method != "" {
			c.handlersMu.RLock()
			fn := c.handlers[m.Method]
			c.handlersMu.RUnlock()
			if fn != nil {
				fn(m.Params)
			}
			continue
		}

		if v, ok := c.pending.Load(m.Id); ok {
			v.(chan rpcMessage) <- m
		}
	}
}

func (c *wsClient) Close() (err error) {
	c.closeOnce.Do(func() {
		err = c.conn.Close()
	})
	return err
}
