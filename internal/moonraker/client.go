package moonraker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrURLRequired   = errors.New("moonraker: websocket url required")
	ErrSessionClosed = errors.New("moonraker: session closed")
)

// Client is one live JSON-RPC session with the control plane. It owns a
// single reader goroutine; requests are correlated to responses through
// a pending-id map and named notifications are dispatched to registered
// handlers on the reader goroutine, so a handler sees events serially.
type Client struct {
	conn *websocket.Conn
	cfg  Config

	writeMu sync.Mutex
	nextID  atomic.Uint64

	mu       sync.Mutex
	pending  map[uint64]chan *response
	handlers map[string]NotificationHandler

	closed  atomic.Bool
	done    chan struct{}
	errOnce sync.Once
	err     error
}

// Dial connects to the control-plane websocket endpoint and starts the
// session reader. The returned client is live until Done() closes.
func Dial(ctx context.Context, rawURL string, cfg Config) (*Client, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, ErrURLRequired
	}
	cfg = cfg.WithDefaults()

	dialer := websocket.Dialer{HandshakeTimeout: cfg.ConnectTimeout}
	dialCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	conn, _, err := dialer.DialContext(dialCtx, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("moonraker: dial %s: %w", rawURL, err)
	}

	conn.SetReadLimit(cfg.ReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	c := &Client{
		conn:     conn,
		cfg:      cfg,
		pending:  make(map[uint64]chan *response),
		handlers: make(map[string]NotificationHandler),
		done:     make(chan struct{}),
	}
	c.nextID.Store(uint64(time.Now().UnixNano()))
	go c.readLoop()
	go c.pingLoop()
	return c, nil
}

// Done closes when the session reader exits (connection loss or Close).
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err reports why the session ended; nil until Done closes or when the
// session was closed locally.
func (c *Client) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Close tears the session down. Safe to call more than once.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.conn.Close()
}

// Call sends one request and blocks for its response. A non-nil result
// receives the unmarshalled response payload.
func (c *Client) Call(ctx context.Context, method string, params any, result any) error {
	if c.closed.Load() {
		return ErrSessionClosed
	}

	id := c.nextID.Add(1)
	ch := make(chan *response, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.send(request{JSONRPC: "2.0", ID: id, Method: method, Params: params}); err != nil {
		return err
	}

	callCtx := ctx
	if _, ok := ctx.Deadline(); !ok && c.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.cfg.CallTimeout)
		defer cancel()
	}

	select {
	case <-callCtx.Done():
		return callCtx.Err()
	case <-c.done:
		return ErrSessionClosed
	case resp := <-ch:
		if resp.Error != nil {
			return resp.Error
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("moonraker: unmarshal %s result: %w", method, err)
			}
		}
		return nil
	}
}

// Notify sends a fire-and-forget notification (no id, no response).
func (c *Client) Notify(method string, params any) error {
	if c.closed.Load() {
		return ErrSessionClosed
	}
	return c.send(request{JSONRPC: "2.0", Method: method, Params: params})
}

// OnNotification registers the handler for one named server event.
// Handlers run on the session reader goroutine.
func (c *Client) OnNotification(method string, handler NotificationHandler) {
	c.mu.Lock()
	c.handlers[method] = handler
	c.mu.Unlock()
}

func (c *Client) send(msg request) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("moonraker: marshal %s: %w", msg.Method, err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("moonraker: write %s: %w", msg.Method, err)
	}
	return nil
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !c.closed.Load() {
				c.errOnce.Do(func() { c.err = err })
			}
			_ = c.Close()
			return
		}
		c.dispatch(data)
	}
}

// dispatch probes the frame for an id to tell responses from
// notifications, then routes it.
func (c *Client) dispatch(data []byte) {
	var probe struct {
		ID     *uint64         `json:"id"`
		Method string          `json:"method"`
		Result json.RawMessage `json:"result"`
		Error  *RPCError       `json:"error"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		log.Debug().Err(err).Msg("moonraker.Client.dispatch drop unparseable frame")
		return
	}

	if probe.ID != nil && (probe.Result != nil || probe.Error != nil) {
		var resp response
		if err := json.Unmarshal(data, &resp); err != nil {
			return
		}
		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.mu.Unlock()
		if ok {
			ch <- &resp
		}
		return
	}

	if probe.Method == "" {
		return
	}
	var notif notification
	if err := json.Unmarshal(data, &notif); err != nil {
		return
	}
	c.mu.Lock()
	handler, ok := c.handlers[notif.Method]
	c.mu.Unlock()
	if ok {
		handler(notif.Params)
	}
}

// pingLoop keeps the connection's read deadline alive; the pong handler
// extends it. Control frames are safe to write concurrently with data.
func (c *Client) pingLoop() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}
