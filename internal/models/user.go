package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User is the durable identity record. Anonymous and registered users share
// the same table; registered users additionally carry credentials.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ExternalID   *string   `gorm:"uniqueIndex" json:"external_id"`
	DisplayName  string    `json:"display_name"`
	AvatarURL    *string   `json:"avatar_url"`
	Email        *string   `gorm:"uniqueIndex" json:"email"`
	PasswordHash *string   `json:"-"` // Never return credentials in JSON
	Username     *string   `json:"username"`
	FullName     *string   `json:"full_name"`
	Phone        *string   `json:"phone"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PublicUser is the wire projection of a user. It never includes
// credential material.
type PublicUser struct {
	ID          uint    `json:"id"`
	ExternalID  *string `json:"external_id"`
	DisplayName string  `json:"display_name"`
	AvatarURL   *string `json:"avatar_url"`
	Email       *string `json:"email"`
	Username    *string `json:"username"`
	FullName    *string `json:"full_name"`
	Phone       *string `json:"phone"`
}

// ToPublic converts a User to its wire projection
func (u *User) ToPublic() PublicUser {
	return PublicUser{
		ID:          u.ID,
		ExternalID:  u.ExternalID,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		Email:       u.Email,
		Username:    u.Username,
		FullName:    u.FullName,
		Phone:       u.Phone,
	}
}

// HashPassword hashes a password for storage
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPasswordHash compares a password with a hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
