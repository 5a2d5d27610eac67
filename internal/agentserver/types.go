package agentserver

import "encoding/json"

type initializeParams struct {
	ProtocolVersion string `json:"protocol_version"`
	Client          string `json:"client"`
	ClientVersion   string `json:"client_version"`
}

type capabilities struct {
	SessionTypes []string `json:"session_types"`
	MaxSessions  int      `json:"max_sessions"`
}

type initializeResult struct {
	ProtocolVersion string       `json:"protocol_version"`
	AgentVersion    string       `json:"agent_version"`
	Capabilities    capabilities `json:"capabilities"`
}

type sessionCreateParams struct {
	Type   string          `json:"type"`
	Config json.RawMessage `json:"config"`
	Title  string          `json:"title,omitempty"`
}

type sessionInfoResult struct {
	SessionID string `json:"session_id"`
	Title     string `json:"title"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	Attached  bool   `json:"attached,omitempty"`
}

type sessionListResult struct {
	Sessions []sessionInfoResult `json:"sessions"`
}

type sessionIDParams struct {
	SessionID string `json:"session_id"`
}

type sessionInputParams struct {
	SessionID string `json:"session_id"`
	Data      string `json:"data"`
}

type sessionResizeParams struct {
	SessionID string `json:"session_id"`
	Cols      int    `json:"cols"`
	Rows      int    `json:"rows"`
}

type okResult struct {
	OK bool `json:"ok"`
}

// Outbound notification payloads (agent -> client).

type sessionOutputNotification struct {
	SessionID string `json:"session_id"`
	Data      string `json:"data"`
}

type sessionExitNotification struct {
	SessionID string `json:"session_id"`
	ExitCode  *int   `json:"exit_code"`
}

type sessionErrorNotification struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type monitoringSubscribeParams struct {
	Host       string `json:"host"`
	IntervalMs int    `json:"interval_ms,omitempty"`
}

type monitoringHostParams struct {
	Host string `json:"host"`
}

type monitoringDataNotification struct {
	Host string          `json:"host"`
	Data json.RawMessage `json:"data"`
}

type filesListParams struct {
	ConnectionID string `json:"connection_id"`
	Path         string `json:"path"`
}

type filesReadParams struct {
	ConnectionID string `json:"connection_id"`
	Path         string `json:"path"`
}

type filesWriteParams struct {
	ConnectionID string `json:"connection_id"`
	Path         string `json:"path"`
	Data         string `json:"data"`
}

type filesStatParams struct {
	ConnectionID string `json:"connection_id"`
	Path         string `json:"path"`
}

type filesDeleteParams struct {
	ConnectionID string `json:"connection_id"`
	Path         string `json:"path"`
}

type filesRenameParams struct {
	ConnectionID string `json:"connection_id"`
	From         string `json:"from"`
	To           string `json:"to"`
}
