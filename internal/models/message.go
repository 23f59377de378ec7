package models

import "time"

// Message is the durable unit of relay. Immutable once created; within-room
// ordering is by CreatedAt with ID as tie-breaker.
type Message struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	RoomID      uint      `gorm:"index" json:"room_id"`
	UserID      *uint     `gorm:"index" json:"user_id"`
	Text        string    `json:"text"`
	IsAnonymous bool      `json:"is_anonymous"`
	CreatedAt   time.Time `json:"created_at"`
}

// MessagePayload is the broadcast/wire projection of a message. It is kept
// separate from Message so the durable row can never leak identity fields
// on an anonymous message: UserName and AvatarURL are masked at projection
// time, while UserID stays present so the sender's own client can recognize
// its message.
type MessagePayload struct {
	ID          uint      `json:"id"`
	Text        string    `json:"text"`
	IsAnonymous bool      `json:"is_anonymous"`
	CreatedAt   time.Time `json:"created_at"`
	UserName    string    `json:"user_name"`
	AvatarURL   *string   `json:"avatar_url"`
	UserID      *uint     `json:"user_id"`
}

// AnonymousName is the display name shown to other viewers of an anonymous
// message
const AnonymousName = "Anonymous"

// NewMessagePayload builds the wire projection of a message, masking the
// author's display fields when the message is anonymous. UserID is kept even
// then so the author's own client can match its optimistic echo.
func NewMessagePayload(id uint, text string, isAnonymous bool, createdAt time.Time, userName string, avatarURL *string, userID *uint) MessagePayload {
	if isAnonymous {
		userName = AnonymousName
		avatarURL = nil
	}
	if userName == "" {
		userName = "User"
	}

	return MessagePayload{
		ID:          id,
		Text:        text,
		IsAnonymous: isAnonymous,
		CreatedAt:   createdAt,
		UserName:    userName,
		AvatarURL:   avatarURL,
		UserID:      userID,
	}
}
