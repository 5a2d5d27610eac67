package agentserver

import (
	"context"
	"encoding/base64"

	"github.com/armaxri/termiHub-sub001/internal/jsonrpc"
	"github.com/armaxri/termiHub-sub001/internal/session"
)

// attach binds this connection's NDJSON stream as sessionID's
// subscriber and starts a forwarding goroutine that drains the
// manager's event channel and writes session.output/session.exit/
// session.error notifications in the order they were produced.
// Concurrency note (§4.7): each session gets its own goroutine here,
// but all of them share c.w, whose WriteLine mutex totally orders
// lines across sessions while preserving each session's own order
// since only this one goroutine ever writes that session's lines.
func (c *conn) attachSession(sessionID string) error {
	events, err := c.d.sessions.Attach(sessionID)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	if old, ok := c.attached[sessionID]; ok {
		old()
	}
	c.attached[sessionID] = cancel
	c.mu.Unlock()

	go c.forward(ctx, sessionID, events)
	return nil
}

func (c *conn) forward(ctx context.Context, sessionID string, events <-chan session.Event) {
	defer c.d.sessions.Detach(sessionID, events)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.emit(sessionID, ev)
		}
	}
}

func (c *conn) emit(sessionID string, ev session.Event) {
	var (
		line []byte
		err  error
	)
	switch ev.Kind {
	case session.EventOutput:
		line, err = jsonrpc.EncodeNotification("session.output", sessionOutputNotification{
			SessionID: sessionID,
			Data:      base64.StdEncoding.EncodeToString(ev.Data),
		})
	case session.EventExit:
		line, err = jsonrpc.EncodeNotification("session.exit", sessionExitNotification{
			SessionID: sessionID,
			ExitCode:  ev.ExitCode,
		})
	case session.EventError:
		line, err = jsonrpc.EncodeNotification("session.error", sessionErrorNotification{
			SessionID: sessionID,
			Message:   ev.Message,
		})
	}
	if err != nil {
		c.d.logger.Error("agentserver: encode notification", "session_id", sessionID, "err", err)
		return
	}
	if err := c.w.WriteLine(line); err != nil {
		c.d.logger.Error("agentserver: write notification", "session_id", sessionID, "err", err)
	}
}

// startMonitoringForward relays already-encoded monitoring.data
// payloads from provider to this connection's NDJSON stream until ctx
// is cancelled or data closes.
func (c *conn) startMonitoringForward(host string, data <-chan []byte) {
	ctx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	if old, ok := c.monitoring[host]; ok {
		old()
	}
	c.monitoring[host] = cancel
	c.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case payload, ok := <-data:
				if !ok {
					return
				}
				line, err := jsonrpc.EncodeNotification("monitoring.data", monitoringDataNotification{Host: host, Data: payload})
				if err != nil {
					c.d.logger.Error("agentserver: encode monitoring.data", "host", host, "err", err)
					continue
				}
				if err := c.w.WriteLine(line); err != nil {
					c.d.logger.Error("agentserver: write monitoring.data", "host", host, "err", err)
				}
			}
		}
	}()
}

func (c *conn) stopMonitoringForward(host string) {
	c.mu.Lock()
	cancel, ok := c.monitoring[host]
	if ok {
		delete(c.monitoring, host)
	}
	c.mu.Unlock()
	if ok {
		cancel()
	}
}

// detachSession stops this connection's forwarding goroutine for
// sessionID without closing the underlying session.
func (c *conn) detachSession(sessionID string) {
	c.mu.Lock()
	cancel, ok := c.attached[sessionID]
	if ok {
		delete(c.attached, sessionID)
	}
	c.mu.Unlock()
	if ok {
		cancel()
	}
}
