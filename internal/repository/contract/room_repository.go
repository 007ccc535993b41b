package contract

import (
	"context"

	"codecollab-be/internal/entity"
)

type RoomRepository interface {
	// Upsert writes the full room record, creating it on first join.
	Upsert(ctx context.Context, room *entity.Room) error
	Delete(ctx context.Context, roomKey string) error
	FindByKey(ctx context.Context, roomKey string) (*entity.Room, error)
	Count(ctx context.Context) (int64, error)
}
