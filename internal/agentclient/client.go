// Package agentclient is the desktop side of §4.7's JSON-RPC
// transport: Client drives one agent connection's request/response
// and notification traffic; Manager shares one Client per remote
// agent across however many RemoteProxy sessions target it.
package agentclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/armaxri/termiHub-sub001/internal/jsonrpc"
)

// Notification is a parsed session-scoped notification routed to
// whichever RemoteProxy subscribed to its session_id.
type Notification struct {
	Method string
	Params json.RawMessage
}

// Client owns one NDJSON channel to a remote agent: a background read
// loop demultiplexes inbound lines into pending-request waiters and
// per-session notification subscribers.
type Client struct {
	w      *jsonrpc.Writer
	closer io.Closer
	logger *slog.Logger

	nextID int64

	pendingMu sync.Mutex
	pending   map[int64]chan *jsonrpc.Message

	subsMu sync.Mutex
	subs   map[string]chan Notification

	closeOnce sync.Once
	done      chan struct{}
}

// New wraps rw (typically an *sshtransport.AgentChannel) and starts
// its read loop. closer is closed by Close(); rw itself need not be an
// io.Closer.
func New(rw io.ReadWriter, closer io.Closer, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		w:       jsonrpc.NewWriter(rw),
		closer:  closer,
		logger:  logger,
		pending: make(map[int64]chan *jsonrpc.Message),
		subs:    make(map[string]chan Notification),
		done:    make(chan struct{}),
	}
	go c.readLoop(jsonrpc.NewReader(rw))
	return c
}

func (c *Client) readLoop(r *jsonrpc.Reader) {
	defer close(c.done)
	for {
		msg, err := r.ReadMessage()
		if err != nil {
			c.failAllPending(fmt.Errorf("agentclient: read loop ended: %w", err))
			return
		}
		switch msg.Kind {
		case jsonrpc.KindResponse:
			c.deliverResponse(msg)
		case jsonrpc.KindNotification:
			c.deliverNotification(msg)
		}
	}
}

func (c *Client) deliverResponse(msg *jsonrpc.Message) {
	if msg.ID == nil {
		return
	}
	c.pendingMu.Lock()
	ch, ok := c.pending[*msg.ID]
	if ok {
		delete(c.pending, *msg.ID)
	}
	c.pendingMu.Unlock()
	if ok {
		ch <- msg
	}
}

// sessionScoped is the shape shared by every session.* notification:
// enough to route by session_id without fully decoding the payload.
type sessionScoped struct {
	SessionID string `json:"session_id"`
}

func (c *Client) deliverNotification(msg *jsonrpc.Message) {
	var scoped sessionScoped
	if err := json.Unmarshal(msg.Params, &scoped); err != nil || scoped.SessionID == "" {
		c.logger.Warn("agentclient: notification without session_id", "method", msg.Method)
		return
	}
	c.subsMu.Lock()
	ch, ok := c.subs[scoped.SessionID]
	c.subsMu.Unlock()
	if !ok {
		return
	}
	ch <- Notification{Method: msg.Method, Params: msg.Params}
}

func (c *Client) failAllPending(err error) {
	c.pendingMu.Lock()
	pending := c.pending
	c.pending = make(map[int64]chan *jsonrpc.Message)
	c.pendingMu.Unlock()
	for _, ch := range pending {
		ch <- &jsonrpc.Message{Kind: jsonrpc.KindResponse, Err: &jsonrpc.Error{Code: -1, Message: err.Error()}}
	}
}

// Call sends a request and blocks for its response or ctx
// cancellation.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := atomic.AddInt64(&c.nextID, 1)
	ch := make(chan *jsonrpc.Message, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()

	line, err := jsonrpc.EncodeRequest(id, method, params)
	if err != nil {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, fmt.Errorf("agentclient: encode %s: %w", method, err)
	}
	if err := c.w.WriteLine(line); err != nil {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, fmt.Errorf("agentclient: write %s: %w", method, err)
	}

	select {
	case msg := <-ch:
		if msg.Err != nil {
			return nil, fmt.Errorf("agentclient: %s: %s", method, msg.Err.Message)
		}
		return msg.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, fmt.Errorf("agentclient: connection closed before %s responded", method)
	}
}

// Notify sends a fire-and-forget request: it carries an id so the
// agent dispatches it, but no waiter is registered, so the read loop
// discards its response — write(), resize() and disconnect() all use
// this per §4.5.
func (c *Client) Notify(method string, params any) error {
	id := atomic.AddInt64(&c.nextID, 1)
	line, err := jsonrpc.EncodeRequest(id, method, params)
	if err != nil {
		return fmt.Errorf("agentclient: encode %s: %w", method, err)
	}
	return c.w.WriteLine(line)
}

// Subscribe registers ch to receive every session.output/exit/error
// notification for sessionID. Only one subscriber per session id is
// supported, matching the 1:1 RemoteProxy-to-remote-session shape.
func (c *Client) Subscribe(sessionID string) <-chan Notification {
	ch := make(chan Notification, 64)
	c.subsMu.Lock()
	c.subs[sessionID] = ch
	c.subsMu.Unlock()
	return ch
}

// Unsubscribe removes sessionID's notification routing.
func (c *Client) Unsubscribe(sessionID string) {
	c.subsMu.Lock()
	delete(c.subs, sessionID)
	c.subsMu.Unlock()
}

// Close tears down the underlying channel; the read loop then exits on
// its next read error.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if c.closer != nil {
			err = c.closer.Close()
		}
	})
	return err
}

// Done reports when the read loop has exited, e.g. because the remote
// end closed the channel.
func (c *Client) Done() <-chan struct{} { return c.done }
