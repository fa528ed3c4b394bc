// ABOUTME: Typed envelopes exchanged with the browser client over the WebSocket.
// ABOUTME: Content stays raw JSON so string and boolean payloads share one shape.

package channel

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Envelope types recognized on the wire.
const (
	TypeUser             = "user"
	TypeApproval         = "approval"
	TypeError            = "error"
	TypeAI               = "AI"
	TypeApprovalRequest  = "approvalRequest"
	TypeApprovalResponse = "approvalResponse"
)

// Approval response contents.
const (
	Approved = "approved"
	Denied   = "denied"
)

// ErrMalformed indicates an inbound frame was not a JSON envelope.
var ErrMalformed = errors.New("malformed envelope")

// Envelope is a typed message unit: {"type": ..., "content": ...}.
type Envelope struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
}

// Text builds an envelope with string content.
func Text(typ, content string) Envelope {
	data, _ := json.Marshal(content)
	return Envelope{Type: typ, Content: data}
}

// Bool builds an envelope with boolean content.
func Bool(typ string, content bool) Envelope {
	data, _ := json.Marshal(content)
	return Envelope{Type: typ, Content: data}
}

// isNull reports whether content is absent or JSON null.
func (e Envelope) isNull() bool {
	c := bytes.TrimSpace(e.Content)
	return len(c) == 0 || bytes.Equal(c, []byte("null"))
}

// Text decodes string content. Missing or null content is malformed.
func (e Envelope) Text() (string, error) {
	var s string
	if e.isNull() {
		return "", fmt.Errorf("%w: %s content is missing", ErrMalformed, e.Type)
	}
	if err := json.Unmarshal(e.Content, &s); err != nil {
		return "", fmt.Errorf("%w: %s content is not a string", ErrMalformed, e.Type)
	}
	return s, nil
}

// Bool decodes boolean content. Missing or null content is malformed.
func (e Envelope) Bool() (bool, error) {
	var b bool
	if e.isNull() {
		return false, fmt.Errorf("%w: %s content is missing", ErrMalformed, e.Type)
	}
	if err := json.Unmarshal(e.Content, &b); err != nil {
		return false, fmt.Errorf("%w: %s content is not a boolean", ErrMalformed, e.Type)
	}
	return b, nil
}

// decode parses one text frame into an envelope.
func decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return env, nil
}
