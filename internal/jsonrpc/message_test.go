package jsonrpc

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestParseResponseWithResult(t *testing.T) {
	msg, err := Parse([]byte(`{"jsonrpc":"2.0","id":7,"result":{"ok":true}}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if msg.Kind != KindResponse {
		t.Fatalf("Kind = %v, want KindResponse", msg.Kind)
	}
	if msg.ID == nil || *msg.ID != 7 {
		t.Errorf("ID = %v, want 7", msg.ID)
	}
	if msg.Err != nil {
		t.Errorf("Err = %v, want nil", msg.Err)
	}
	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.Unmarshal(msg.Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if !result.OK {
		t.Errorf("result.OK = false, want true")
	}
}

func TestParseResponseMissingResultKeyIsNull(t *testing.T) {
	msg, err := Parse([]byte(`{"jsonrpc":"2.0","id":1}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if msg.Kind != KindResponse {
		t.Fatalf("Kind = %v, want KindResponse", msg.Kind)
	}
	if string(msg.Result) != "null" {
		t.Errorf("Result = %q, want %q", msg.Result, "null")
	}
}

func TestParseErrorResponsePreservesFields(t *testing.T) {
	msg, err := Parse([]byte(`{"jsonrpc":"2.0","id":3,"error":{"code":-32601,"message":"method not found","data":{"method":"bogus"}}}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if msg.Kind != KindResponse {
		t.Fatalf("Kind = %v, want KindResponse", msg.Kind)
	}
	if msg.Err == nil {
		t.Fatal("Err is nil, want non-nil")
	}
	if msg.Err.Code != -32601 {
		t.Errorf("Err.Code = %d, want -32601", msg.Err.Code)
	}
	if msg.Err.Message != "method not found" {
		t.Errorf("Err.Message = %q, want %q", msg.Err.Message, "method not found")
	}
	var data struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal(msg.Err.Data, &data); err != nil {
		t.Fatalf("unmarshal error data: %v", err)
	}
	if data.Method != "bogus" {
		t.Errorf("data.Method = %q, want %q", data.Method, "bogus")
	}
}

func TestParseErrorResponseWithoutData(t *testing.T) {
	msg, err := Parse([]byte(`{"jsonrpc":"2.0","id":3,"error":{"code":-32000,"message":"boom"}}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if msg.Err == nil {
		t.Fatal("Err is nil")
	}
	if msg.Err.Data != nil {
		t.Errorf("Err.Data = %q, want nil", msg.Err.Data)
	}
}

func TestParseNotificationHasNoID(t *testing.T) {
	msg, err := Parse([]byte(`{"jsonrpc":"2.0","method":"session.output","params":{"sessionId":"abc","data":"aGk="}}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if msg.Kind != KindNotification {
		t.Fatalf("Kind = %v, want KindNotification", msg.Kind)
	}
	if msg.ID != nil {
		t.Errorf("ID = %v, want nil", msg.ID)
	}
	if msg.Method != "session.output" {
		t.Errorf("Method = %q, want %q", msg.Method, "session.output")
	}
}

func TestParseRequestHasIDAndMethod(t *testing.T) {
	msg, err := Parse([]byte(`{"jsonrpc":"2.0","id":42,"method":"session.create","params":{"type":"local"}}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if msg.Kind != KindRequest {
		t.Fatalf("Kind = %v, want KindRequest", msg.Kind)
	}
	if msg.ID == nil || *msg.ID != 42 {
		t.Errorf("ID = %v, want 42", msg.ID)
	}
	if msg.Method != "session.create" {
		t.Errorf("Method = %q, want %q", msg.Method, "session.create")
	}
}

func TestParseRejectsMessageWithNeitherIDNorMethod(t *testing.T) {
	_, err := Parse([]byte(`{"jsonrpc":"2.0"}`))
	if err == nil {
		t.Fatal("expected error for message with neither id nor method")
	}
}

func TestParseRejectsOversizedLine(t *testing.T) {
	huge := bytes.Repeat([]byte{'x'}, MaxLineSize+1)
	line, err := EncodeNotification("log", map[string]any{"blob": string(huge)})
	if err != nil {
		t.Fatalf("EncodeNotification: %v", err)
	}
	if _, err := Parse(line); err == nil {
		t.Fatal("expected error for oversized line")
	}
}

func TestRequestRoundTrip(t *testing.T) {
	type params struct {
		SessionID string `json:"sessionId"`
		Cols      int    `json:"cols"`
	}
	line, err := EncodeRequest(9, "session.resize", params{SessionID: "s1", Cols: 80})
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}

	msg, err := Parse(line)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if msg.Kind != KindRequest {
		t.Fatalf("Kind = %v, want KindRequest", msg.Kind)
	}
	if msg.ID == nil || *msg.ID != 9 {
		t.Errorf("ID = %v, want 9", msg.ID)
	}
	if msg.Method != "session.resize" {
		t.Errorf("Method = %q, want %q", msg.Method, "session.resize")
	}
	var got params
	if err := json.Unmarshal(msg.Params, &got); err != nil {
		t.Fatalf("unmarshal params: %v", err)
	}
	if got.SessionID != "s1" || got.Cols != 80 {
		t.Errorf("params = %+v, want {s1 80}", got)
	}
}

func TestResultRoundTrip(t *testing.T) {
	line, err := EncodeResult(5, map[string]any{"status": "ok"})
	if err != nil {
		t.Fatalf("EncodeResult: %v", err)
	}
	msg, err := Parse(line)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if msg.Kind != KindResponse {
		t.Fatalf("Kind = %v, want KindResponse", msg.Kind)
	}
	if msg.Err != nil {
		t.Errorf("Err = %v, want nil", msg.Err)
	}
}

func TestErrorRoundTrip(t *testing.T) {
	line, err := EncodeError(5, -32602, "invalid params", map[string]string{"field": "cols"})
	if err != nil {
		t.Fatalf("EncodeError: %v", err)
	}
	msg, err := Parse(line)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if msg.Err == nil {
		t.Fatal("Err is nil")
	}
	if msg.Err.Code != -32602 {
		t.Errorf("Err.Code = %d, want -32602", msg.Err.Code)
	}
}

func TestNotificationRoundTrip(t *testing.T) {
	line, err := EncodeNotification("session.exited", map[string]int{"code": 0})
	if err != nil {
		t.Fatalf("EncodeNotification: %v", err)
	}
	msg, err := Parse(line)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if msg.Kind != KindNotification {
		t.Fatalf("Kind = %v, want KindNotification", msg.Kind)
	}
	if msg.Method != "session.exited" {
		t.Errorf("Method = %q, want %q", msg.Method, "session.exited")
	}
}

func TestCodecReaderWriterRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	line1, _ := EncodeRequest(1, "initialize", map[string]string{"version": "1"})
	line2, _ := EncodeNotification("ping", nil)
	if err := w.WriteLine(line1); err != nil {
		t.Fatalf("WriteLine 1: %v", err)
	}
	if err := w.WriteLine(line2); err != nil {
		t.Fatalf("WriteLine 2: %v", err)
	}

	r := NewReader(&buf)
	m1, err := r.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage 1: %v", err)
	}
	if m1.Kind != KindRequest || m1.Method != "initialize" {
		t.Errorf("m1 = %+v", m1)
	}
	m2, err := r.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage 2: %v", err)
	}
	if m2.Kind != KindNotification || m2.Method != "ping" {
		t.Errorf("m2 = %+v", m2)
	}

	if _, err := r.ReadMessage(); err == nil {
		t.Fatal("expected EOF on exhausted reader")
	}
}

func TestEncodeChunksSplitsAtChunkSize(t *testing.T) {
	data := bytes.Repeat([]byte{'z'}, ChunkSize*2+5)
	chunks := EncodeChunks(data)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
}

func TestEncodeChunksEmpty(t *testing.T) {
	chunks := EncodeChunks(nil)
	if len(chunks) != 1 || chunks[0] != "" {
		t.Errorf("EncodeChunks(nil) = %v, want one empty chunk", chunks)
	}
}
