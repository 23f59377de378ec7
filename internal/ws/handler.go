package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
	HandshakeTimeout: 10 * time.Second,
	ReadBufferSize:   1024,
	WriteBufferSize:  1024,
}

// ServeWs upgrades an HTTP request to a relay connection and starts its
// pumps. submitRate/submitBurst bound how fast one connection may post.
func ServeWs(hub *Hub, submitRate float64, submitBurst int, c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		hub.log.LogError(err, "websocket upgrade failed")
		return
	}

	client := &Client{
		ID:      uuid.NewString(),
		Conn:    conn,
		Send:    make(chan []byte, 256),
		Hub:     hub,
		limiter: rate.NewLimiter(rate.Limit(submitRate), submitBurst),
	}

	hub.register <- client

	go client.WritePump()
	go client.ReadPump()
}
