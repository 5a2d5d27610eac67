package agentserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"github.com/armaxri/termiHub-sub001/internal/config"
	"github.com/armaxri/termiHub-sub001/internal/connection"
	"github.com/armaxri/termiHub-sub001/internal/errs"
	"github.com/armaxri/termiHub-sub001/internal/filebrowser"
	"github.com/armaxri/termiHub-sub001/internal/monitoring"
	"github.com/armaxri/termiHub-sub001/internal/session"
)

type methodFunc func(ctx context.Context, c *conn, params json.RawMessage) (any, *rpcError)

var methodTable = map[string]methodFunc{
	"initialize":       handleInitialize,
	"session.create":   handleSessionCreate,
	"session.list":     handleSessionList,
	"session.attach":   handleSessionAttach,
	"session.detach":   handleSessionDetach,
	"session.close":    handleSessionClose,
	"session.input":    handleSessionInput,
	"session.resize":   handleSessionResize,
	"monitoring.subscribe":   handleMonitoringSubscribe,
	"monitoring.unsubscribe": handleMonitoringUnsubscribe,
	"files.list":    handleFilesList,
	"files.read":    handleFilesRead,
	"files.write":   handleFilesWrite,
	"files.stat":    handleFilesStat,
	"files.delete":  handleFilesDelete,
	"files.rename":  handleFilesRename,
	"agent.shutdown": handleAgentShutdown,
}

func handleInitialize(_ context.Context, c *conn, params json.RawMessage) (any, *rpcError) {
	var p initializeParams
	if rerr := unmarshalParams(params, &p); rerr != nil {
		return nil, rerr
	}
	c.markInitialized()
	return initializeResult{
		ProtocolVersion: ProtocolVersion,
		AgentVersion:    AgentVersion,
		Capabilities: capabilities{
			SessionTypes: c.d.sessions.Registry().TypeIDs(),
			MaxSessions:  session.MaxSessions,
		},
	}, nil
}

func handleSessionCreate(ctx context.Context, c *conn, params json.RawMessage) (any, *rpcError) {
	var p sessionCreateParams
	if rerr := unmarshalParams(params, &p); rerr != nil {
		return nil, rerr
	}
	if p.Type == "" {
		return nil, newRPCError(errs.InvalidConfig, "session.create requires type")
	}
	settings, err := config.Decode(config.ConnectionKind(p.Type), p.Config)
	if err != nil {
		return nil, newRPCError(errs.InvalidConfig, err.Error())
	}
	info, err := c.d.sessions.Create(ctx, session.CreateRequest{TypeID: p.Type, Settings: settings, Title: p.Title})
	if err != nil {
		return nil, toRPCError(err)
	}
	if conn, lookupErr := c.d.sessions.Connection(info.SessionID); lookupErr == nil {
		registerCapabilities(c.d, info.SessionID, conn)
	}
	return toSessionInfoResult(info), nil
}

// monitoringCapable and fileBrowsable mirror internal/connection's
// optional-capability accessor pattern: SSH implements both, Docker and
// Local only the file browser half, and everything else (serial,
// telnet, remote proxy) implements neither.
type monitoringCapable interface {
	Monitoring() (*monitoring.SSHProvider, bool)
}

type fileBrowsable interface {
	FileBrowser() (*filebrowser.ConnBackend, bool)
}

// registerCapabilities binds sessionID's Monitoring()/FileBrowser()
// capabilities, if any, into the dispatcher's providers so that
// monitoring.subscribe{host: sessionID} and files.* against sessionID
// resolve. Called once a session.create succeeds.
func registerCapabilities(d *Dispatcher, sessionID string, conn connection.ConnectionType) {
	if d.monitoring != nil {
		if mc, ok := conn.(monitoringCapable); ok {
			if provider, ok := mc.Monitoring(); ok {
				d.monitoring.RegisterHost(sessionID, provider.Collector)
			}
		}
	}
	if d.files != nil {
		if fb, ok := conn.(fileBrowsable); ok {
			if backend, ok := fb.FileBrowser(); ok {
				d.files.RegisterBackend(sessionID, backend.Backend)
			}
		}
	}
}

// unregisterCapabilities undoes registerCapabilities on session close.
// Unregistering an id that was never registered (no Monitoring()/
// FileBrowser() capability) is a harmless no-op on both providers.
func unregisterCapabilities(d *Dispatcher, sessionID string) {
	if d.monitoring != nil {
		d.monitoring.UnregisterHost(sessionID)
	}
	if d.files != nil {
		d.files.UnregisterBackend(sessionID)
	}
}

func handleSessionList(_ context.Context, c *conn, _ json.RawMessage) (any, *rpcError) {
	infos := c.d.sessions.List()
	out := make([]sessionInfoResult, 0, len(infos))
	for _, info := range infos {
		out = append(out, toSessionInfoResult(info))
	}
	return sessionListResult{Sessions: out}, nil
}

func handleSessionAttach(_ context.Context, c *conn, params json.RawMessage) (any, *rpcError) {
	var p sessionIDParams
	if rerr := unmarshalParams(params, &p); rerr != nil {
		return nil, rerr
	}
	if err := c.attachSession(p.SessionID); err != nil {
		return nil, toRPCError(err)
	}
	return okResult{OK: true}, nil
}

func handleSessionDetach(_ context.Context, c *conn, params json.RawMessage) (any, *rpcError) {
	var p sessionIDParams
	if rerr := unmarshalParams(params, &p); rerr != nil {
		return nil, rerr
	}
	c.detachSession(p.SessionID)
	return okResult{OK: true}, nil
}

func handleSessionClose(_ context.Context, c *conn, params json.RawMessage) (any, *rpcError) {
	var p sessionIDParams
	if rerr := unmarshalParams(params, &p); rerr != nil {
		return nil, rerr
	}
	c.detachSession(p.SessionID)
	unregisterCapabilities(c.d, p.SessionID)
	if err := c.d.sessions.Close(p.SessionID); err != nil {
		return nil, toRPCError(err)
	}
	return okResult{OK: true}, nil
}

func handleSessionInput(_ context.Context, c *conn, params json.RawMessage) (any, *rpcError) {
	var p sessionInputParams
	if rerr := unmarshalParams(params, &p); rerr != nil {
		return nil, rerr
	}
	data, err := base64.StdEncoding.DecodeString(p.Data)
	if err != nil {
		return nil, newRPCError(errs.ProtocolError, "bad base64 data: "+err.Error())
	}
	if err := c.d.sessions.Input(p.SessionID, data); err != nil {
		return nil, toRPCError(err)
	}
	return okResult{OK: true}, nil
}

func handleSessionResize(_ context.Context, c *conn, params json.RawMessage) (any, *rpcError) {
	var p sessionResizeParams
	if rerr := unmarshalParams(params, &p); rerr != nil {
		return nil, rerr
	}
	if err := c.d.sessions.Resize(p.SessionID, p.Cols, p.Rows); err != nil {
		return nil, toRPCError(err)
	}
	return okResult{OK: true}, nil
}

// monitoringMinInterval/monitoringDefaultInterval mirror §4.7's
// interval clamp: below the minimum is raised, zero takes the default.
const (
	monitoringMinInterval     = 500
	monitoringDefaultInterval = 2000
)

func handleMonitoringSubscribe(ctx context.Context, c *conn, params json.RawMessage) (any, *rpcError) {
	var p monitoringSubscribeParams
	if rerr := unmarshalParams(params, &p); rerr != nil {
		return nil, rerr
	}
	if c.d.monitoring == nil {
		return nil, newRPCError(errs.OperationFailed, "monitoring is not available on this agent")
	}
	interval := p.IntervalMs
	if interval == 0 {
		interval = monitoringDefaultInterval
	}
	if interval < monitoringMinInterval {
		interval = monitoringMinInterval
	}
	data, err := c.d.monitoring.Subscribe(ctx, p.Host, interval)
	if err != nil {
		return nil, newRPCError(errs.OperationFailed, err.Error())
	}
	c.startMonitoringForward(p.Host, data)
	return okResult{OK: true}, nil
}

func handleMonitoringUnsubscribe(_ context.Context, c *conn, params json.RawMessage) (any, *rpcError) {
	var p monitoringHostParams
	if rerr := unmarshalParams(params, &p); rerr != nil {
		return nil, rerr
	}
	if c.d.monitoring == nil {
		return nil, newRPCError(errs.OperationFailed, "monitoring is not available on this agent")
	}
	c.d.monitoring.Unsubscribe(p.Host)
	c.stopMonitoringForward(p.Host)
	return okResult{OK: true}, nil
}

func handleFilesList(_ context.Context, c *conn, params json.RawMessage) (any, *rpcError) {
	var p filesListParams
	if rerr := unmarshalParams(params, &p); rerr != nil {
		return nil, rerr
	}
	if c.d.files == nil {
		return nil, newRPCError(errs.OperationFailed, "file browsing is not available on this agent")
	}
	data, err := c.d.files.List(p.ConnectionID, p.Path)
	if err != nil {
		return nil, newRPCError(errs.OperationFailed, err.Error())
	}
	return json.RawMessage(data), nil
}

func handleFilesRead(_ context.Context, c *conn, params json.RawMessage) (any, *rpcError) {
	var p filesReadParams
	if rerr := unmarshalParams(params, &p); rerr != nil {
		return nil, rerr
	}
	if c.d.files == nil {
		return nil, newRPCError(errs.OperationFailed, "file browsing is not available on this agent")
	}
	data, err := c.d.files.Read(p.ConnectionID, p.Path)
	if err != nil {
		return nil, newRPCError(errs.OperationFailed, err.Error())
	}
	return struct {
		Data string `json:"data"`
	}{Data: base64.StdEncoding.EncodeToString(data)}, nil
}

func handleFilesWrite(_ context.Context, c *conn, params json.RawMessage) (any, *rpcError) {
	var p filesWriteParams
	if rerr := unmarshalParams(params, &p); rerr != nil {
		return nil, rerr
	}
	if c.d.files == nil {
		return nil, newRPCError(errs.OperationFailed, "file browsing is not available on this agent")
	}
	data, err := base64.StdEncoding.DecodeString(p.Data)
	if err != nil {
		return nil, newRPCError(errs.ProtocolError, "bad base64 data: "+err.Error())
	}
	if err := c.d.files.Write(p.ConnectionID, p.Path, data); err != nil {
		return nil, newRPCError(errs.OperationFailed, err.Error())
	}
	return okResult{OK: true}, nil
}

func handleFilesStat(_ context.Context, c *conn, params json.RawMessage) (any, *rpcError) {
	var p filesStatParams
	if rerr := unmarshalParams(params, &p); rerr != nil {
		return nil, rerr
	}
	if c.d.files == nil {
		return nil, newRPCError(errs.OperationFailed, "file browsing is not available on this agent")
	}
	data, err := c.d.files.Stat(p.ConnectionID, p.Path)
	if err != nil {
		return nil, newRPCError(errs.OperationFailed, err.Error())
	}
	return json.RawMessage(data), nil
}

func handleFilesDelete(_ context.Context, c *conn, params json.RawMessage) (any, *rpcError) {
	var p filesDeleteParams
	if rerr := unmarshalParams(params, &p); rerr != nil {
		return nil, rerr
	}
	if c.d.files == nil {
		return nil, newRPCError(errs.OperationFailed, "file browsing is not available on this agent")
	}
	if err := c.d.files.Delete(p.ConnectionID, p.Path); err != nil {
		return nil, newRPCError(errs.OperationFailed, err.Error())
	}
	return okResult{OK: true}, nil
}

func handleFilesRename(_ context.Context, c *conn, params json.RawMessage) (any, *rpcError) {
	var p filesRenameParams
	if rerr := unmarshalParams(params, &p); rerr != nil {
		return nil, rerr
	}
	if c.d.files == nil {
		return nil, newRPCError(errs.OperationFailed, "file browsing is not available on this agent")
	}
	if err := c.d.files.Rename(p.ConnectionID, p.From, p.To); err != nil {
		return nil, newRPCError(errs.OperationFailed, err.Error())
	}
	return okResult{OK: true}, nil
}

func handleAgentShutdown(_ context.Context, c *conn, _ json.RawMessage) (any, *rpcError) {
	c.d.logger.Info("agentserver: shutdown requested")
	if c.d.onShutdown != nil {
		c.d.onShutdown()
	}
	return okResult{OK: true}, nil
}

func toSessionInfoResult(info session.Info) sessionInfoResult {
	return sessionInfoResult{
		SessionID: info.SessionID,
		Title:     info.Title,
		Type:      info.TypeID,
		Status:    info.Status,
		CreatedAt: info.CreatedAt.UTC().Format(time.RFC3339),
		Attached:  info.Attached,
	}
}

func toRPCError(err error) *rpcError {
	var e *errs.Error
	if errors.As(err, &e) {
		return newRPCError(e.Kind, e.Message)
	}
	return newRPCError(errs.OperationFailed, err.Error())
}
