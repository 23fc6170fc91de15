package chat

import "time"

// Conversation groups a set of participants around one ordered message
// history. The participants set holds no duplicate ids and the message
// sequence only grows in insertion order, except through an explicit clear.
type Conversation struct {
	ID           string    `json:"id"`
	Name         string    `json:"name,omitempty"`
	Participants []User    `json:"participants"`
	Messages     []Message `json:"messages"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (c *Conversation) hasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}

// snapshot returns a copy whose slices are detached from registry-owned
// state, so callers can marshal it without holding the registry lock.
func (c *Conversation) snapshot() Conversation {
	out := *c
	out.Participants = append([]User(nil), c.Participants...)
	out.Messages = append([]Message(nil), c.Messages...)
	if out.Participants == nil {
		out.Participants = []User{}
	}
	if out.Messages == nil {
		out.Messages = []Message{}
	}
	return out
}
