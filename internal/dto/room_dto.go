package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Envelope is the frame exchanged over the websocket. Data is left raw so the
// gateway can decode it per event type.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type JoinPayload struct {
	RoomKey  string `json:"room_key" validate:"required"`
	Username string `json:"username" validate:"required"`
}

type ParticipantDTO struct {
	Username     string    `json:"username"`
	ConnectionId uuid.UUID `json:"connection_id"`
}

type ChatMessageDTO struct {
	Username  string    `json:"username"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
	Recipient string    `json:"recipient"`
}

// JoinedPayload confirms a membership change. ChatHistory is only populated
// in the direct reply to the joiner; the room-wide broadcast omits it.
type JoinedPayload struct {
	Participants []ParticipantDTO `json:"participants"`
	Username     string           `json:"username"`
	ConnectionId uuid.UUID        `json:"connection_id"`
	ChatHistory  []ChatMessageDTO `json:"chat_history,omitempty"`
}

type DisconnectedPayload struct {
	ConnectionId uuid.UUID `json:"connection_id"`
	Username     string    `json:"username"`
}

// BufferChangePayload propagates edits. TargetConnectionId is set on sync
// replies only: the server then delivers to that single connection instead of
// the whole room.
type BufferChangePayload struct {
	RoomKey            string     `json:"room_key"`
	Content            string     `json:"content"`
	TargetConnectionId *uuid.UUID `json:"target_connection_id,omitempty"`
}

type RequestSyncPayload struct {
	RoomKey            string    `json:"room_key"`
	SourceConnectionId uuid.UUID `json:"source_connection_id"`
}

type ChatPayload struct {
	RoomKey   string `json:"room_key" validate:"required"`
	Username  string `json:"username" validate:"required"`
	Body      string `json:"body" validate:"required"`
	Recipient string `json:"recipient,omitempty"`
}

type ExecuteRequestPayload struct {
	Language string `json:"language" validate:"required,oneof=cpp python"`
	Source   string `json:"source" validate:"required"`
}

type ExecuteResultPayload struct {
	Stdout string `json:"stdout,omitempty"`
	Stderr string `json:"stderr,omitempty"`
	Stage  string `json:"stage,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
