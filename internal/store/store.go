// Package store provides the message log capability used by the global chat
// scope: an append-only, clearable, ordered sequence of messages. Two
// implementations exist, an in-memory slice and a BadgerDB-backed log; the
// backend is chosen once at startup and consumers only see the interface.
package store

import (
	"errors"

	"github.com/parley-chat/parley/internal/chat"
)

// ErrUnavailable reports that the backing store could not serve the
// operation. The operation was not applied and the caller may retry.
var ErrUnavailable = errors.New("message store unavailable")

// Store is the polymorphic message log.
type Store interface {
	// Append adds the message to the end of the log.
	Append(m chat.Message) error
	// List returns every stored message in insertion order.
	List() ([]chat.Message, error)
	// Clear removes all stored messages.
	Clear() error
}
