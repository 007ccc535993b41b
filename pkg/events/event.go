package events

import "time"

// Event is the contract for system events published to the NATS bus.
type Event interface {
	// EventType returns the unique code for this event (e.g. "ROOM_CREATED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent is the plain implementation used by publishers.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// Event codes emitted by the collaboration backend.
const (
	RoomCreated       = "ROOM_CREATED"
	RoomDeleted       = "ROOM_DELETED"
	ExecutionFinished = "EXECUTION_FINISHED"
)

func NewRoomCreated(roomKey string) Event {
	return BaseEvent{
		Type:       RoomCreated,
		Data:       map[string]interface{}{"room_key": roomKey},
		OccurredAt: time.Now(),
	}
}

func NewRoomDeleted(roomKey string) Event {
	return BaseEvent{
		Type:       RoomDeleted,
		Data:       map[string]interface{}{"room_key": roomKey},
		OccurredAt: time.Now(),
	}
}

func NewExecutionFinished(language, stage string, exitCode int) Event {
	return BaseEvent{
		Type: ExecutionFinished,
		Data: map[string]interface{}{
			"language":  language,
			"stage":     stage,
			"exit_code": exitCode,
		},
		OccurredAt: time.Now(),
	}
}
