package implementation

import (
	"context"
	"errors"

	"codecollab-be/internal/entity"
	"codecollab-be/internal/mapper"
	"codecollab-be/internal/model"
	"codecollab-be/internal/repository/contract"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RoomRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.RoomMapper
}

func NewRoomRepository(db *gorm.DB) contract.RoomRepository {
	return &RoomRepositoryImpl{
		db:     db,
		mapper: mapper.NewRoomMapper(),
	}
}

func (r *RoomRepositoryImpl) Upsert(ctx context.Context, room *entity.Room) error {
	m, err := r.mapper.RoomToModel(room)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "room_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"participants", "chat_history", "updated_at"}),
	}).Create(m).Error
}

func (r *RoomRepositoryImpl) Delete(ctx context.Context, roomKey string) error {
	return r.db.WithContext(ctx).Where("room_key = ?", roomKey).Delete(&model.Room{}).Error
}

func (r *RoomRepositoryImpl) FindByKey(ctx context.Context, roomKey string) (*entity.Room, error) {
	var m model.Room
	if err := r.db.WithContext(ctx).Where("room_key = ?", roomKey).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.RoomToEntity(&m)
}

func (r *RoomRepositoryImpl) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Room{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
