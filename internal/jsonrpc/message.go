// Package jsonrpc implements JSON-RPC 2.0 over newline-delimited lines, the
// wire protocol carried on the single SSH exec channel between the desktop
// and a remote agent. Binary payloads inside params/result are base64
// strings; this package only handles envelope framing and parsing.
package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MaxLineSize bounds one NDJSON line; larger binary payloads must be chunked
// by the caller before being embedded in a message.
const MaxLineSize = 1 << 20 // 1 MiB

// Kind distinguishes the three message shapes.
type Kind int

const (
	KindRequest Kind = iota
	KindResponse
	KindNotification
)

// Error is the JSON-RPC error object.
type Error struct {
	Code    int64           `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// Message is the parsed form of any one NDJSON line. Exactly one of the
// shape-specific accessors below is meaningful, selected by Kind.
type Message struct {
	Kind Kind

	// Request / Response share ID.
	ID *int64

	// Request / Notification.
	Method string
	Params json.RawMessage

	// Response only.
	Result json.RawMessage
	Err    *Error
}

// wireMessage is the raw-field view used to distinguish shapes by presence,
// per spec: id+method+params -> request; id+(result xor error) -> response;
// method+params, no id -> notification.
type wireMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Parse decodes a single NDJSON line into a Message.
func Parse(line []byte) (*Message, error) {
	line = bytes.TrimSpace(line)
	if len(line) > MaxLineSize {
		return nil, fmt.Errorf("jsonrpc: line of %d bytes exceeds %d byte limit", len(line), MaxLineSize)
	}

	var wire wireMessage
	if err := json.Unmarshal(line, &wire); err != nil {
		return nil, fmt.Errorf("jsonrpc: parse: %w", err)
	}

	if wire.ID == nil {
		if wire.Method == "" {
			return nil, fmt.Errorf("jsonrpc: message has neither id nor method")
		}
		return &Message{Kind: KindNotification, Method: wire.Method, Params: wire.Params}, nil
	}

	if wire.Error != nil {
		return &Message{Kind: KindResponse, ID: wire.ID, Err: wire.Error}, nil
	}

	if wire.Method != "" {
		return &Message{Kind: KindRequest, ID: wire.ID, Method: wire.Method, Params: wire.Params}, nil
	}

	// Successful response; a missing "result" key is treated as JSON null,
	// which is exactly what an absent/empty RawMessage renders as below.
	result := wire.Result
	if len(result) == 0 {
		result = json.RawMessage("null")
	}
	return &Message{Kind: KindResponse, ID: wire.ID, Result: result}, nil
}

// EncodeRequest marshals a request line (without the trailing newline).
func EncodeRequest(id int64, method string, params any) ([]byte, error) {
	p, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("jsonrpc: marshal params: %w", err)
	}
	return json.Marshal(wireMessage{JSONRPC: "2.0", ID: &id, Method: method, Params: p})
}

// EncodeNotification marshals a notification line (no id).
func EncodeNotification(method string, params any) ([]byte, error) {
	p, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("jsonrpc: marshal params: %w", err)
	}
	return json.Marshal(wireMessage{JSONRPC: "2.0", Method: method, Params: p})
}

// EncodeResult marshals a successful response line.
func EncodeResult(id int64, result any) ([]byte, error) {
	r, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("jsonrpc: marshal result: %w", err)
	}
	return json.Marshal(wireMessage{JSONRPC: "2.0", ID: &id, Result: r})
}

// EncodeError marshals an error response line.
func EncodeError(id int64, code int64, message string, data any) ([]byte, error) {
	var raw json.RawMessage
	if data != nil {
		d, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("jsonrpc: marshal error data: %w", err)
		}
		raw = d
	}
	return json.Marshal(wireMessage{
		JSONRPC: "2.0",
		ID:      &id,
		Error:   &Error{Code: code, Message: message, Data: raw},
	})
}
