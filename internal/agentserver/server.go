// Package agentserver implements the agent side of the JSON-RPC
// transport described in §4.7: one Dispatcher per inbound channel
// (the SSH exec channel in --stdio mode, or a test pipe), method
// table lookup, and per-session notification forwarding that
// preserves each session's byte-stream order.
package agentserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/armaxri/termiHub-sub001/internal/errs"
	"github.com/armaxri/termiHub-sub001/internal/jsonrpc"
	"github.com/armaxri/termiHub-sub001/internal/session"
)

// ProtocolVersion is the agent dispatcher's JSON-RPC protocol version,
// bumped only on a breaking wire change.
const ProtocolVersion = "1.0"

// AgentVersion is a display string, independent of ProtocolVersion.
var AgentVersion = "dev"

// Dispatcher serves one agent connection: it owns the session manager
// reference shared with every connection this process accepts, plus
// optional monitoring/file-browser providers wired in once those
// packages exist.
type Dispatcher struct {
	sessions   *session.Manager
	monitoring MonitoringProvider
	files      FileProvider
	logger     *slog.Logger

	// onShutdown, if set, runs when agent.shutdown is handled (e.g. to
	// cancel the context the caller is Serve-ing under). The dispatcher
	// itself never calls os.Exit.
	onShutdown func()
}

// NewDispatcher returns a Dispatcher backed by sessions. monitoring and
// files may be nil; methods under those namespaces then fail with
// errs.OperationFailed rather than panicking.
func NewDispatcher(sessions *session.Manager, monitoring MonitoringProvider, files FileProvider, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{sessions: sessions, monitoring: monitoring, files: files, logger: logger}
}

// OnShutdown registers fn to run when a client sends agent.shutdown.
func (d *Dispatcher) OnShutdown(fn func()) {
	d.onShutdown = fn
}

// conn is the per-connection state for one Serve call: whether
// initialize has run yet, and the live output-forwarding goroutines
// started by session.attach.
type conn struct {
	d           *Dispatcher
	w           *jsonrpc.Writer
	initialized bool

	mu         sync.Mutex
	attached   map[string]context.CancelFunc
	monitoring map[string]context.CancelFunc
}

// Serve reads NDJSON requests from rw until EOF or ctx is cancelled,
// dispatching each to the method table and writing its response.
// Notifications for attached sessions are written concurrently from
// their own forwarding goroutines, serialized against request
// responses by the shared jsonrpc.Writer's internal mutex.
func (d *Dispatcher) Serve(ctx context.Context, rw io.ReadWriter) error {
	c := &conn{d: d, w: jsonrpc.NewWriter(rw), attached: make(map[string]context.CancelFunc), monitoring: make(map[string]context.CancelFunc)}
	defer c.stopAll()

	r := jsonrpc.NewReader(rw)
	for {
		msg, err := r.ReadMessage()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("agentserver: read: %w", err)
		}
		if msg.Kind != jsonrpc.KindRequest {
			// The agent dispatcher has no use for inbound responses or
			// notifications; tolerate and ignore them.
			continue
		}
		go c.handle(ctx, msg)
	}
}

func (c *conn) handle(ctx context.Context, msg *jsonrpc.Message) {
	if msg.Method != "initialize" && !c.initializedOK() {
		c.writeError(*msg.ID, errs.ProtocolError, "initialize must be called before "+msg.Method)
		return
	}

	fn, ok := methodTable[msg.Method]
	if !ok {
		c.writeError(*msg.ID, errs.ProtocolError, "unknown method "+msg.Method)
		return
	}

	result, rpcErr := fn(ctx, c, msg.Params)
	if rpcErr != nil {
		c.writeError(*msg.ID, rpcErr.Kind, rpcErr.Message)
		return
	}
	line, err := jsonrpc.EncodeResult(*msg.ID, result)
	if err != nil {
		c.d.logger.Error("agentserver: encode result", "method", msg.Method, "err", err)
		return
	}
	if err := c.w.WriteLine(line); err != nil {
		c.d.logger.Error("agentserver: write result", "method", msg.Method, "err", err)
	}
}

func (c *conn) initializedOK() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized
}

func (c *conn) markInitialized() {
	c.mu.Lock()
	c.initialized = true
	c.mu.Unlock()
}

// rpcError is the internal method-table error shape; errs.Kind doubles
// as the JSON-RPC numeric code (its ordinal) so every error path goes
// through the one taxonomy in internal/errs.
type rpcError struct {
	Kind    errs.Kind
	Message string
}

func newRPCError(kind errs.Kind, message string) *rpcError {
	return &rpcError{Kind: kind, Message: message}
}

func (c *conn) writeError(id int64, kind errs.Kind, message string) {
	line, err := jsonrpc.EncodeError(id, int64(kind), message, nil)
	if err != nil {
		c.d.logger.Error("agentserver: encode error", "err", err)
		return
	}
	if err := c.w.WriteLine(line); err != nil {
		c.d.logger.Error("agentserver: write error", "err", err)
	}
}

// stopAll cancels every still-running attach-forwarding goroutine when
// the connection closes, so they don't leak past Serve's return.
func (c *conn) stopAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cancel := range c.attached {
		cancel()
	}
	for _, cancel := range c.monitoring {
		cancel()
	}
}

func unmarshalParams(raw json.RawMessage, v any) *rpcError {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return newRPCError(errs.ProtocolError, "bad params: "+err.Error())
	}
	return nil
}
