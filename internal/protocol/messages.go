// Package protocol defines the JSON frames exchanged over the live-class
// realtime channel. Every frame is a JSON object carrying a "type"
// discriminator; the client sends "chat" frames and receives a tagged union of
// "chat_message" and "moderation_rejected" frames. Any other server tag is
// reserved and decodes to Unknown so receivers can ignore it.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ---------------------------------------------------------------------------
// Message type constants
// ---------------------------------------------------------------------------

// Client -> Server message types.
const (
	TypeChat = "chat"
)

// Server -> Client message types.
const (
	TypeChatMessage        = "chat_message"
	TypeModerationRejected = "moderation_rejected"

	// Reserved tags emitted by the reference relay. Clients ignore them.
	TypeRateLimited = "rate_limited"
	TypeError       = "error"
)

// ---------------------------------------------------------------------------
// Identity
// ---------------------------------------------------------------------------

// Identity identifies a chat participant. The backend historically sends
// numeric user ids, so Identity decodes from either a JSON string or a JSON
// number and always encodes as a string.
type Identity string

// UnmarshalJSON implements json.Unmarshaler.
func (id *Identity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("protocol: invalid identity: %w", err)
		}
		*id = Identity(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("protocol: identity must be a string or number: %w", err)
	}
	*id = Identity(n.String())
	return nil
}

// String returns the identity as plain text.
func (id Identity) String() string {
	return string(id)
}

// IdentityFromInt formats a numeric user id as an Identity.
func IdentityFromInt(n int64) Identity {
	return Identity(strconv.FormatInt(n, 10))
}

// ---------------------------------------------------------------------------
// Envelope — used for initial JSON parsing to extract the type discriminator.
// ---------------------------------------------------------------------------

// Envelope holds the message type and the raw JSON payload for deferred
// parsing into a concrete struct.
type Envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON implements the json.Unmarshaler interface. It captures the
// full raw bytes and extracts only the "type" field so that the rest of the
// payload can be decoded later into the appropriate concrete struct.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	e.Raw = make(json.RawMessage, len(data))
	copy(e.Raw, data)

	var partial struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("protocol: failed to unmarshal envelope: %w", err)
	}
	if partial.Type == "" {
		return fmt.Errorf("protocol: missing or empty \"type\" field")
	}
	e.Type = partial.Type
	return nil
}

// ---------------------------------------------------------------------------
// Client -> Server message structs
// ---------------------------------------------------------------------------

// OutboundChat is the only frame a client sends: a chat line attributed to
// the sending user.
type OutboundChat struct {
	Type    string   `json:"type"`
	Message string   `json:"message"`
	User    Identity `json:"user"`
}

// NewClientMessage encodes an OutboundChat frame for text sent by user.
func NewClientMessage(text string, user Identity) ([]byte, error) {
	data, err := json.Marshal(OutboundChat{
		Type:    TypeChat,
		Message: text,
		User:    user,
	})
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal chat message: %w", err)
	}
	return data, nil
}

// ParseClientMessage parses raw WebSocket bytes sent by a client. Only chat
// frames are accepted; other types are reported as errors so the relay can
// answer with an error frame.
func ParseClientMessage(data []byte) (OutboundChat, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return OutboundChat{}, fmt.Errorf("protocol: failed to parse message: %w", err)
	}
	if env.Type != TypeChat {
		return OutboundChat{}, fmt.Errorf("protocol: unknown client message type: %q", env.Type)
	}

	var m OutboundChat
	if err := json.Unmarshal(env.Raw, &m); err != nil {
		return OutboundChat{}, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Type, err)
	}
	return m, nil
}

// ---------------------------------------------------------------------------
// Server -> Client message structs
// ---------------------------------------------------------------------------

// Inbound is a decoded server frame. The concrete type is one of ChatMessage,
// ModerationRejected or Unknown; receivers switch on it exhaustively.
type Inbound interface {
	// MessageType returns the wire "type" tag of the frame.
	MessageType() string
}

// ChatMessage is a chat line broadcast by the server to every participant,
// including the sender's own echo.
type ChatMessage struct {
	Type    string   `json:"type"`
	User    Identity `json:"user"`
	Content string   `json:"content"`
}

// MessageType implements Inbound.
func (ChatMessage) MessageType() string { return TypeChatMessage }

// ModerationRejected tells the sender that the server moderator refused a
// message. Message is human readable.
type ModerationRejected struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// MessageType implements Inbound.
func (ModerationRejected) MessageType() string { return TypeModerationRejected }

// Unknown is any well-formed frame whose tag this client does not handle.
type Unknown struct {
	Type string
	Raw  json.RawMessage
}

// MessageType implements Inbound.
func (u Unknown) MessageType() string { return u.Type }

// RateLimitedMsg is sent by the relay when a client exceeds the chat rate.
type RateLimitedMsg struct {
	Type       string `json:"type"`
	RetryAfter int    `json:"retry_after"`
}

// ErrorMsg is sent by the relay to communicate an error condition.
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

// ParseServerMessage decodes a server frame into its Inbound variant. Frames
// that are not JSON objects, lack a type tag, or carry a malformed payload for
// a known tag yield an error. Unrecognized tags yield Unknown, not an error.
func ParseServerMessage(data []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("protocol: failed to parse message: %w", err)
	}

	switch env.Type {
	case TypeChatMessage:
		var m ChatMessage
		if err := json.Unmarshal(env.Raw, &m); err != nil {
			return nil, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Type, err)
		}
		return m, nil
	case TypeModerationRejected:
		var m ModerationRejected
		if err := json.Unmarshal(env.Raw, &m); err != nil {
			return nil, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Type, err)
		}
		return m, nil
	default:
		return Unknown{Type: env.Type, Raw: env.Raw}, nil
	}
}

// NewServerMessage creates a JSON-encoded byte slice for a server message.
// The msgType is injected into the payload under the "type" key, so callers
// may leave the payload's Type field empty.
func NewServerMessage(msgType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal payload: %w", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("protocol: failed to unmarshal payload into map: %w", err)
	}

	m["type"] = msgType

	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal server message: %w", err)
	}
	return out, nil
}
