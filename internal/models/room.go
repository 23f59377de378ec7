package models

import "time"

// Room is a named, durably identified channel. Rooms are created lazily on
// first reference and never deleted.
type Room struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
