package chat

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Registry is the authoritative map of conversations. Every mutation runs
// under one lock so a conversation never appears in one index without the
// other. Returned conversations are snapshots; callers never share slices
// with registry-owned state.
type Registry struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
	byUser        map[string]map[string]struct{} // userID -> conversation ids
}

// NewRegistry creates an empty conversation registry.
func NewRegistry() *Registry {
	return &Registry{
		conversations: make(map[string]*Conversation),
		byUser:        make(map[string]map[string]struct{}),
	}
}

// Create stores a new conversation with a fresh id, the given participants
// (deduplicated by user id), and an empty message history.
func (r *Registry) Create(participants []User, name string) Conversation {
	c := &Conversation{
		ID:           uuid.NewString(),
		Name:         name,
		Participants: lo.UniqBy(participants, func(u User) string { return u.ID }),
		Messages:     []Message{},
		CreatedAt:    time.Now().UTC(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.conversations[c.ID] = c
	for _, p := range c.Participants {
		r.indexUser(p.ID, c.ID)
	}
	return c.snapshot()
}

// Get returns the conversation with the given id or ErrNotFound.
func (r *Registry) Get(id string) (Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conversations[id]
	if !ok {
		return Conversation{}, fmt.Errorf("%w: conversation %s", ErrNotFound, id)
	}
	return c.snapshot(), nil
}

// ListAll returns a snapshot of every conversation.
func (r *Registry) ListAll() []Conversation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Conversation, 0, len(r.conversations))
	for _, c := range r.conversations {
		out = append(out, c.snapshot())
	}
	return out
}

// ListForUser returns every conversation the user participates in.
func (r *Registry) ListForUser(userID string) []Conversation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Conversation, 0, len(r.byUser[userID]))
	for id := range r.byUser[userID] {
		if c, ok := r.conversations[id]; ok {
			out = append(out, c.snapshot())
		}
	}
	return out
}

// AddParticipant adds the user to the conversation. Adding a user that is
// already a participant is a no-op, not an error.
func (r *Registry) AddParticipant(conversationID string, user User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conversations[conversationID]
	if !ok {
		return fmt.Errorf("%w: conversation %s", ErrNotFound, conversationID)
	}
	if !c.hasParticipant(user.ID) {
		c.Participants = append(c.Participants, user)
	}
	r.indexUser(user.ID, conversationID)
	return nil
}

// RemoveParticipant removes the user from the conversation. Removing an
// absent participant is a no-op success.
func (r *Registry) RemoveParticipant(conversationID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conversations[conversationID]
	if !ok {
		return fmt.Errorf("%w: conversation %s", ErrNotFound, conversationID)
	}
	c.Participants = lo.Reject(c.Participants, func(u User, _ int) bool {
		return u.ID == userID
	})
	if ids, ok := r.byUser[userID]; ok {
		delete(ids, conversationID)
		if len(ids) == 0 {
			delete(r.byUser, userID)
		}
	}
	return nil
}

// AppendMessage appends the message to the conversation's history.
func (r *Registry) AppendMessage(conversationID string, m Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conversations[conversationID]
	if !ok {
		return fmt.Errorf("%w: conversation %s", ErrNotFound, conversationID)
	}
	c.Messages = append(c.Messages, m)
	return nil
}

// ClearMessages drops the conversation's entire message history.
func (r *Registry) ClearMessages(conversationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conversations[conversationID]
	if !ok {
		return fmt.Errorf("%w: conversation %s", ErrNotFound, conversationID)
	}
	c.Messages = []Message{}
	return nil
}

// History returns the conversation's messages in insertion order.
func (r *Registry) History(conversationID string) ([]Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conversations[conversationID]
	if !ok {
		return nil, fmt.Errorf("%w: conversation %s", ErrNotFound, conversationID)
	}
	out := append([]Message(nil), c.Messages...)
	if out == nil {
		out = []Message{}
	}
	return out, nil
}

// indexUser records userID as a participant of conversationID.
// Callers must hold the write lock.
func (r *Registry) indexUser(userID, conversationID string) {
	if userID == "" {
		return
	}
	ids, ok := r.byUser[userID]
	if !ok {
		ids = make(map[string]struct{})
		r.byUser[userID] = ids
	}
	ids[conversationID] = struct{}{}
}
