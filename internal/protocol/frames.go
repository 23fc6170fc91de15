// Package protocol defines the JSON frames exchanged over a chat connection.
// Each frame is an envelope {type, payload}; the inbound and outbound frame
// kinds form two closed unions so dispatch on them is exhaustive and a new
// kind is a compile-time-visible change.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/parley-chat/parley/internal/chat"
)

// EventType tags a frame with its kind.
type EventType string

// Inbound frame kinds.
const (
	EventJoinConversation  EventType = "join_conversation"
	EventLeaveConversation EventType = "leave_conversation"
	EventClearMessages     EventType = "clear_messages"
)

// Outbound frame kinds. EventNewMessage travels in both directions.
const (
	EventNewMessage          EventType = "new_message"
	EventConversationHistory EventType = "conversation_history"
	EventUserJoined          EventType = "user_joined"
	EventUserLeft            EventType = "user_left"
	EventError               EventType = "error"
)

// ErrMalformed reports a frame that could not be decoded or carries an
// unrecognized type. The connection stays open; only the originator is told.
var ErrMalformed = errors.New("malformed frame")

// Frame is the wire envelope.
type Frame struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound is the closed union of frames a client may send.
type Inbound interface {
	inbound()
}

// Join asks to bind the connection to a user and a conversation.
type Join struct {
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId"`
}

// Leave unbinds the connection from its current conversation.
type Leave struct{}

// Publish carries a new message from the client.
type Publish struct {
	Message chat.Message `json:"message"`
}

// Clear asks to wipe the message history of the connection's scope.
type Clear struct{}

func (Join) inbound()    {}
func (Leave) inbound()   {}
func (Publish) inbound() {}
func (Clear) inbound()   {}

// ParseInbound decodes one client frame. Any decode failure or unknown type
// is reported as ErrMalformed.
func ParseInbound(data []byte) (Inbound, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch f.Type {
	case EventJoinConversation:
		var p Join
		if err := unmarshalPayload(f.Payload, &p); err != nil {
			return nil, err
		}
		return p, nil
	case EventLeaveConversation:
		return Leave{}, nil
	case EventNewMessage:
		var p Publish
		if err := unmarshalPayload(f.Payload, &p); err != nil {
			return nil, err
		}
		return p, nil
	case EventClearMessages:
		return Clear{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown frame type %q", ErrMalformed, f.Type)
	}
}

func unmarshalPayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: missing payload", ErrMalformed)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// historyPayload always carries a messages array, empty after a clear, plus
// the full conversation when the history belongs to one.
type historyPayload struct {
	Conversation *chat.Conversation `json:"conversation,omitempty"`
	Messages     []chat.Message     `json:"messages"`
}

type messagePayload struct {
	Message        chat.Message `json:"message"`
	ConversationID string       `json:"conversationId,omitempty"`
}

type presencePayload struct {
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId"`
}

type errorPayload struct {
	Error string `json:"error"`
}

// ConversationHistory encodes a history frame for one conversation.
func ConversationHistory(c chat.Conversation) []byte {
	messages := c.Messages
	if messages == nil {
		messages = []chat.Message{}
	}
	return encode(EventConversationHistory, historyPayload{Conversation: &c, Messages: messages})
}

// MessageHistory encodes a history frame for a bare message list, as used by
// the global scope and by full-scope refreshes after a clear.
func MessageHistory(messages []chat.Message) []byte {
	if messages == nil {
		messages = []chat.Message{}
	}
	return encode(EventConversationHistory, historyPayload{Messages: messages})
}

// NewMessage encodes an outbound new_message frame.
func NewMessage(m chat.Message, conversationID string) []byte {
	return encode(EventNewMessage, messagePayload{Message: m, ConversationID: conversationID})
}

// UserJoined encodes a presence frame announcing a join.
func UserJoined(userID, conversationID string) []byte {
	return encode(EventUserJoined, presencePayload{UserID: userID, ConversationID: conversationID})
}

// UserLeft encodes a presence frame announcing a departure.
func UserLeft(userID, conversationID string) []byte {
	return encode(EventUserLeft, presencePayload{UserID: userID, ConversationID: conversationID})
}

// Error encodes an error frame for the originating connection.
func Error(message string) []byte {
	return encode(EventError, errorPayload{Error: message})
}

// encode marshals an envelope from known payload types; these cannot fail.
func encode(t EventType, payload any) []byte {
	raw, err := json.Marshal(payload)
	if err != nil {
		panic(fmt.Sprintf("protocol: marshal %s payload: %v", t, err))
	}
	data, err := json.Marshal(Frame{Type: t, Payload: raw})
	if err != nil {
		panic(fmt.Sprintf("protocol: marshal %s frame: %v", t, err))
	}
	return data
}
