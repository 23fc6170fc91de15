package store

import (
	"sync"

	"github.com/parley-chat/parley/internal/chat"
)

// Memory is the in-memory Store. Appends are linearized under one mutex so
// two concurrent writers never lose an update.
type Memory struct {
	mu       sync.RWMutex
	messages []chat.Message
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{messages: []chat.Message{}}
}

// Append adds the message to the end of the log.
func (s *Memory) Append(m chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, m)
	return nil
}

// List returns a copy of the stored messages in insertion order.
func (s *Memory) List() ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]chat.Message, len(s.messages))
	copy(out, s.messages)
	return out, nil
}

// Clear removes all stored messages.
func (s *Memory) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = []chat.Message{}
	return nil
}
