package repository

import (
	"context"
	"time"

	"fun-friday-chat/backend/internal/models"

	"gorm.io/gorm"
)

// MessageWithAuthor is a history row: the durable message joined with the
// author's stored display fields ("User" fallback for authorless rows).
// Identity masking for anonymous rows happens at projection time, not here.
type MessageWithAuthor struct {
	ID          uint      `gorm:"column:id"`
	Text        string    `gorm:"column:text"`
	IsAnonymous bool      `gorm:"column:is_anonymous"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UserName    string    `gorm:"column:user_name"`
	AvatarURL   *string   `gorm:"column:avatar_url"`
	UserID      *uint     `gorm:"column:user_id"`
}

// MessageRepository is the store contract for the relay's durable messages
type MessageRepository interface {
	// Insert persists a new message and returns it with the store-assigned
	// id and creation timestamp.
	Insert(ctx context.Context, roomID uint, userID *uint, text string, isAnonymous bool) (*models.Message, error)

	// ListRecent returns the most recent limit messages of a room, oldest
	// first.
	ListRecent(ctx context.Context, roomID uint, limit int) ([]MessageWithAuthor, error)
}

type GormMessageRepository struct {
	db *gorm.DB
}

func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

func (r *GormMessageRepository) Insert(ctx context.Context, roomID uint, userID *uint, text string, isAnonymous bool) (*models.Message, error) {
	message := models.Message{
		RoomID:      roomID,
		UserID:      userID,
		Text:        text,
		IsAnonymous: isAnonymous,
	}
	if err := r.db.WithContext(ctx).Create(&message).Error; err != nil {
		return nil, err
	}
	return &message, nil
}

func (r *GormMessageRepository) ListRecent(ctx context.Context, roomID uint, limit int) ([]MessageWithAuthor, error) {
	var rows []MessageWithAuthor
	err := r.db.WithContext(ctx).
		Table("messages AS m").
		Select("m.id, m.text, m.is_anonymous, m.created_at, COALESCE(u.display_name, 'User') AS user_name, u.avatar_url, m.user_id").
		Joins("LEFT JOIN users u ON u.id = m.user_id").
		Where("m.room_id = ?", roomID).
		Order("m.created_at DESC, m.id DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	// Rows come back newest first; history is served oldest first.
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}

	return rows, nil
}
