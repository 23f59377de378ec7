package repository

import (
	"context"

	"fun-friday-chat/backend/internal/models"

	"gorm.io/gorm"
)

// RoomRepository is the store contract for room identifiers
type RoomRepository interface {
	// EnsureByName looks a room up by name and creates it on miss. Concurrent
	// first-time calls for the same name may race on the unique index; the
	// loser re-reads and converges on the surviving row.
	EnsureByName(ctx context.Context, name string) (*models.Room, error)
}

type GormRoomRepository struct {
	db *gorm.DB
}

func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	return &GormRoomRepository{db: db}
}

func (r *GormRoomRepository) EnsureByName(ctx context.Context, name string) (*models.Room, error) {
	var room models.Room
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&room).Error
	if err == nil {
		return &room, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	room = models.Room{Name: name}
	createErr := r.db.WithContext(ctx).Create(&room).Error
	if createErr == nil {
		return &room, nil
	}

	// Unique-name conflict: a concurrent Ensure won the insert. Re-read and
	// resolve to the surviving row.
	var existing models.Room
	if reread := r.db.WithContext(ctx).Where("name = ?", name).First(&existing).Error; reread == nil {
		return &existing, nil
	}

	return nil, createErr
}
