package api

import (
	"errors"
	"net/http"

	"fun-friday-chat/backend/internal/service"
	"fun-friday-chat/backend/pkg/jwt"
	"fun-friday-chat/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles the register/login endpoints that sit outside the
// relay core
type AuthHandler struct {
	auth       *service.AuthService
	jwtService *jwt.Service
	logger     *logger.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(auth *service.AuthService, jwtService *jwt.Service, logger *logger.Logger) *AuthHandler {
	return &AuthHandler{
		auth:       auth,
		jwtService: jwtService,
		logger:     logger,
	}
}

// Register handles POST /api/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	user, err := h.auth.Register(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrUserAlreadyExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "User already exists"})
			return
		}
		h.logger.LogError(err, "register failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Register failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":  user.ToPublic(),
		"token": h.issueToken(user.ID, user.ExternalID, user.DisplayName),
	})
}

// Login handles POST /api/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	user, err := h.auth.Login(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailRequired):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Email required"})
		case errors.Is(err, service.ErrPasswordRequired):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Password required"})
		case errors.Is(err, service.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		default:
			h.logger.LogError(err, "login failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":  user.ToPublic(),
		"token": h.issueToken(user.ID, user.ExternalID, user.DisplayName),
	})
}

func (h *AuthHandler) issueToken(userID uint, externalID *string, displayName string) string {
	ext := ""
	if externalID != nil {
		ext = *externalID
	}

	token, err := h.jwtService.GenerateToken(userID, ext, displayName)
	if err != nil {
		h.logger.LogError(err, "token generation failed", "user_id", userID)
		return ""
	}
	return token
}
