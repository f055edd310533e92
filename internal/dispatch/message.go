// ABOUTME: Cross-context message schema: typed envelopes, replies and their payloads
// ABOUTME: Also defines the transport and remote failure types callers classify with errors.As

package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType discriminates envelope payloads.
type MessageType string

const (
	TypeExplain      MessageType = "EXPLAIN"
	TypeQuickAction  MessageType = "QUICK_ACTION"
	TypeShowFromMenu MessageType = "SHOW_FROM_MENU"
)

// Envelope is one request crossing a context boundary.
type Envelope struct {
	ID      string          `json:"id"`
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Reply settles exactly one Envelope with the same ID.
type Reply struct {
	ID     string `json:"id"`
	OK     bool   `json:"ok"`
	Answer string `json:"answer,omitempty"`
	Error  string `json:"error,omitempty"`
}

// ExplainPayload asks for an explanation of Text.
type ExplainPayload struct {
	Text string `json:"text"`
	Lang string `json:"lang"`
}

// QuickActionPayload asks for a follow-up action on Text.
type QuickActionPayload struct {
	Text   string `json:"text"`
	Action string `json:"action"`
	Lang   string `json:"lang"`
}

// ShowFromMenuPayload carries text chosen from the context menu.
type ShowFromMenuPayload struct {
	Text string `json:"text"`
}

// NewEnvelope encodes payload into an envelope of type typ.
func NewEnvelope(id string, typ MessageType, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encoding %s payload: %w", typ, err)
	}
	return Envelope{ID: id, Type: typ, Payload: raw}, nil
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%s: empty payload", e.Type)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decoding %s payload: %w", e.Type, err)
	}
	return nil
}

var (
	// ErrClosed is returned once a connection has been closed
	ErrClosed = errors.New("connection closed")

	// ErrTimeout is wrapped by TransportError when no reply arrives in time
	ErrTimeout = errors.New("timed out waiting for reply")
)

// TransportError reports that a request never produced a reply: the connection
// closed, the send failed, or the timeout expired.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RemoteError carries the message of a failure reply.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string { return e.Message }
