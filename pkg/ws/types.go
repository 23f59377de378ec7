package ws

import (
	"encoding/json"

	"fun-friday-chat/backend/internal/models"
)

// Event types exchanged over a relay connection
const (
	EventJoin    = "join"
	EventJoined  = "joined"
	EventMessage = "message"
	EventError   = "error"
)

// Event is the envelope for every frame on a relay connection
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode marshals an event envelope with the given payload
func Encode(eventType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Event{Type: eventType, Payload: raw})
}

// JoinPayload is sent by a client to enter a room
type JoinPayload struct {
	Room      string            `json:"room"`
	User      models.UserClaims `json:"user"`
	Anonymous bool              `json:"anonymous,omitempty"`
}

// JoinedPayload acknowledges a join
type JoinedPayload struct {
	OK    bool               `json:"ok"`
	User  *models.PublicUser `json:"user,omitempty"`
	Error string             `json:"error,omitempty"`
}

// SubmitPayload is sent by a client to post a message. There is no direct
// acknowledgement; success is observed via the subsequent broadcast.
type SubmitPayload struct {
	Text        string `json:"text"`
	IsAnonymous bool   `json:"isAnonymous,omitempty"`
}

// ErrorPayload is delivered to a single connection on failure
type ErrorPayload struct {
	Error string `json:"error"`
}
