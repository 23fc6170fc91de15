package chat

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Message is a single chat message. Messages are immutable once created and
// live as long as the store they were appended to.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Sender    User      `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage builds a message with a fresh id and the current time.
// The content must be non-empty and the sender must carry an id.
func NewMessage(content string, sender User) (Message, error) {
	if err := ValidateMessage(content, sender); err != nil {
		return Message{}, err
	}
	return Message{
		ID:        uuid.NewString(),
		Content:   content,
		Sender:    sender,
		Timestamp: time.Now().UTC(),
	}, nil
}

// ValidateMessage checks the required message fields.
func ValidateMessage(content string, sender User) error {
	if content == "" {
		return fmt.Errorf("%w: message content is required", ErrValidation)
	}
	if sender.ID == "" {
		return fmt.Errorf("%w: sender is required", ErrValidation)
	}
	return nil
}

// Normalize fills in the server-assigned fields of a client-supplied message.
// Clients may send a pre-built message for optimistic local display; the id
// and timestamp are only generated when absent.
func (m *Message) Normalize() {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
}
