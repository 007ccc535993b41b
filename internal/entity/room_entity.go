package entity

import (
	"time"

	"github.com/google/uuid"
)

// Participant binds a username to its live connection. Usernames are unique
// within a room; a rejoin under the same name swaps the connection id in
// place instead of adding a second entry.
type Participant struct {
	Username     string
	ConnectionId uuid.UUID
}

// ChatMessage is immutable once appended. Ordering is arrival order at the
// registry, not client send order.
type ChatMessage struct {
	Username  string
	Body      string
	Timestamp time.Time
	Recipient string
}

// Room groups the participants and chat history of one collaboration session.
// A room with zero participants must not persist.
type Room struct {
	RoomKey      string
	Participants []Participant
	ChatHistory  []ChatMessage
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Participant returns the entry for username, or nil.
func (r *Room) Participant(username string) *Participant {
	for i := range r.Participants {
		if r.Participants[i].Username == username {
			return &r.Participants[i]
		}
	}
	return nil
}
