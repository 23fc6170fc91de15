// Package chat holds the domain model for the Parley chat system: users,
// messages, conversations, and the conversation registry that keeps them
// consistent under concurrent access.
package chat

import "time"

// User identifies a chat participant. The ID is unique and immutable;
// display name and avatar may change through UpdateProfile.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Avatar    string    `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Profile carries the mutable parts of a user's identity.
type Profile struct {
	Name   string
	Avatar string
}

// UpdateProfile applies the non-empty fields of the profile to the user.
func (u *User) UpdateProfile(p Profile) {
	if p.Name != "" {
		u.Name = p.Name
	}
	if p.Avatar != "" {
		u.Avatar = p.Avatar
	}
}
