package api

import (
	"net/http"
	"time"

	"fun-friday-chat/backend/pkg/config"
	"fun-friday-chat/backend/shared/redis"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

var startTime = time.Now()

// HealthHandler reports process and collaborator health
type HealthHandler struct {
	db    *gorm.DB
	cache *redis.Client
}

// NewHealthHandler creates a health handler. cache may be nil.
func NewHealthHandler(db *gorm.DB, cache *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, cache: cache}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	status := http.StatusOK
	components := gin.H{}

	if err := config.TestConnection(h.db); err != nil {
		components["database"] = "down"
		status = http.StatusServiceUnavailable
	} else {
		components["database"] = "up"
	}

	if h.cache != nil {
		if err := h.cache.Ping(c.Request.Context()); err != nil {
			// History degrades to the store when redis is gone; not fatal
			components["redis"] = "down"
		} else {
			components["redis"] = "up"
		}
	}

	c.JSON(status, gin.H{
		"status":     components,
		"uptime_sec": int(time.Since(startTime).Seconds()),
	})
}
