package api

import (
	"net/http"
	"strconv"

	"fun-friday-chat/backend/internal/history"
	"fun-friday-chat/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// HistoryHandler serves the bounded message history a client loads on join
type HistoryHandler struct {
	provider *history.Provider
	logger   *logger.Logger
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(provider *history.Provider, logger *logger.Logger) *HistoryHandler {
	return &HistoryHandler{provider: provider, logger: logger}
}

// Messages handles GET /api/rooms/:room/messages?limit=
func (h *HistoryHandler) Messages(c *gin.Context) {
	room := c.Param("room")

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = parsed
	}

	payloads, err := h.provider.Room(c.Request.Context(), room, limit)
	if err != nil {
		h.logger.LogError(err, "history fetch failed", "room", room)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get messages"})
		return
	}

	c.JSON(http.StatusOK, payloads)
}
