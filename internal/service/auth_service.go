// Package service holds the auth flows that sit next to the relay: password
// register/login against the same users table the identity resolver uses.
// These are the only flows allowed to mutate stored user fields.
package service

import (
	"context"
	"errors"
	"strings"

	"fun-friday-chat/backend/internal/models"
	"fun-friday-chat/backend/internal/repository"
	"fun-friday-chat/backend/pkg/logger"

	"github.com/google/uuid"
)

var (
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailRequired      = errors.New("email required")
	ErrPasswordRequired   = errors.New("password required")
)

// RegisterRequest carries the optional registration fields
type RegisterRequest struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	FullName    string `json:"full_name"`
	Phone       string `json:"phone"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

// LoginRequest carries login credentials
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthService implements register and login on top of the user store
type AuthService struct {
	users repository.UserRepository
	log   *logger.Logger
}

// NewAuthService creates an auth service
func NewAuthService(users repository.UserRepository, log *logger.Logger) *AuthService {
	return &AuthService{users: users, log: log}
}

// Register creates a registered user, or upgrades an existing passwordless
// row in place. A row that already carries credentials conflicts.
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*models.User, error) {
	var existing *models.User
	if req.Email != "" {
		user, err := s.users.FindByEmail(ctx, req.Email)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		existing = user
	}

	if existing != nil && existing.PasswordHash != nil {
		return nil, ErrUserAlreadyExists
	}

	var hash *string
	if req.Password != "" {
		h, err := models.HashPassword(req.Password)
		if err != nil {
			return nil, err
		}
		hash = &h
	}

	if existing != nil {
		// Upgrade the passwordless row: fill fields only where supplied
		existing.DisplayName = firstNonEmpty(req.DisplayName, req.FullName, req.Username, req.Email, existing.DisplayName, "User")
		setIfPresent(&existing.AvatarURL, req.AvatarURL)
		setIfPresent(&existing.Username, req.Username)
		setIfPresent(&existing.FullName, req.FullName)
		setIfPresent(&existing.Phone, req.Phone)
		if hash != nil {
			existing.PasswordHash = hash
		}

		if err := s.users.Update(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	externalID := uuid.NewString()
	user := &models.User{
		ExternalID:   &externalID,
		DisplayName:  firstNonEmpty(req.DisplayName, req.FullName, req.Username, req.Email, "User"),
		PasswordHash: hash,
	}
	setIfPresent(&user.AvatarURL, req.AvatarURL)
	setIfPresent(&user.Email, req.Email)
	setIfPresent(&user.Username, req.Username)
	setIfPresent(&user.FullName, req.FullName)
	setIfPresent(&user.Phone, req.Phone)

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info("user registered", "user_id", user.ID)
	return user, nil
}

// Login authenticates by email. A row with credentials requires the
// matching password; a missing or passwordless row falls back to a
// passwordless upsert, matching the relay's login-optional model.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*models.User, error) {
	if req.Email == "" {
		return nil, ErrEmailRequired
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	if user != nil && user.PasswordHash != nil {
		if req.Password == "" {
			return nil, ErrPasswordRequired
		}
		if !models.CheckPasswordHash(req.Password, *user.PasswordHash) {
			return nil, ErrInvalidCredentials
		}
		return user, nil
	}

	if user == nil {
		externalID := uuid.NewString()
		email := req.Email
		user = &models.User{
			ExternalID:  &externalID,
			DisplayName: emailLocalPart(req.Email),
			Email:       &email,
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, err
		}
		s.log.Info("passwordless user created on login", "user_id", user.ID)
	}

	return user, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func setIfPresent(dst **string, value string) {
	if value != "" {
		v := value
		*dst = &v
	}
}

func emailLocalPart(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}
