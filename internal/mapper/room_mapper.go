package mapper

import (
	"encoding/json"
	"time"

	"codecollab-be/internal/entity"
	"codecollab-be/internal/model"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type RoomMapper struct{}

func NewRoomMapper() *RoomMapper {
	return &RoomMapper{}
}

// JSONB shapes. Kept separate from the entities so the stored layout does not
// drift when the domain types change.

type participantRecord struct {
	Username     string    `json:"username"`
	ConnectionId uuid.UUID `json:"connection_id"`
}

type chatMessageRecord struct {
	Username  string    `json:"username"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
	Recipient string    `json:"recipient"`
}

func (m *RoomMapper) RoomToModel(r *entity.Room) (*model.Room, error) {
	if r == nil {
		return nil, nil
	}

	participants := make([]participantRecord, 0, len(r.Participants))
	for _, p := range r.Participants {
		participants = append(participants, participantRecord{
			Username:     p.Username,
			ConnectionId: p.ConnectionId,
		})
	}
	history := make([]chatMessageRecord, 0, len(r.ChatHistory))
	for _, c := range r.ChatHistory {
		history = append(history, chatMessageRecord{
			Username:  c.Username,
			Body:      c.Body,
			Timestamp: c.Timestamp,
			Recipient: c.Recipient,
		})
	}

	participantsJSON, err := json.Marshal(participants)
	if err != nil {
		return nil, err
	}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return nil, err
	}

	return &model.Room{
		RoomKey:      r.RoomKey,
		Participants: datatypes.JSON(participantsJSON),
		ChatHistory:  datatypes.JSON(historyJSON),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}, nil
}

func (m *RoomMapper) RoomToEntity(r *model.Room) (*entity.Room, error) {
	if r == nil {
		return nil, nil
	}

	var participants []participantRecord
	if len(r.Participants) > 0 {
		if err := json.Unmarshal(r.Participants, &participants); err != nil {
			return nil, err
		}
	}
	var history []chatMessageRecord
	if len(r.ChatHistory) > 0 {
		if err := json.Unmarshal(r.ChatHistory, &history); err != nil {
			return nil, err
		}
	}

	room := &entity.Room{
		RoomKey:      r.RoomKey,
		Participants: make([]entity.Participant, 0, len(participants)),
		ChatHistory:  make([]entity.ChatMessage, 0, len(history)),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	for _, p := range participants {
		room.Participants = append(room.Participants, entity.Participant{
			Username:     p.Username,
			ConnectionId: p.ConnectionId,
		})
	}
	for _, c := range history {
		room.ChatHistory = append(room.ChatHistory, entity.ChatMessage{
			Username:  c.Username,
			Body:      c.Body,
			Timestamp: c.Timestamp,
			Recipient: c.Recipient,
		})
	}
	return room, nil
}
