package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Room persists one record per collaboration room. Participants and chat
// history are stored as JSONB arrays, mirroring the wire representation.
type Room struct {
	Id           uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	RoomKey      string         `gorm:"type:varchar(255);not null;uniqueIndex"`
	Participants datatypes.JSON `gorm:"type:jsonb;not null"`
	ChatHistory  datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt    time.Time      `gorm:"autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime"`
}

func (Room) TableName() string {
	return "rooms"
}
