// Package relay accepts submitted messages from joined connections,
// persists them, stamps them with authoritative metadata and fans them out
// to every live member of the room, including the sender.
package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fun-friday-chat/backend/internal/models"
	"fun-friday-chat/backend/internal/repository"
	"fun-friday-chat/backend/internal/rooms"
	"fun-friday-chat/backend/pkg/logger"
	wsproto "fun-friday-chat/backend/pkg/ws"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ErrEmptyMessage flags a submission that is empty after trimming.
	// Dropped silently; no error is emitted back to the sender.
	ErrEmptyMessage = errors.New("empty message")

	// ErrMessageTooLong flags a submission over the configured limit.
	// Treated like an empty submission: dropped, no error event.
	ErrMessageTooLong = errors.New("message too long")

	// ErrPersistence indicates the store write failed. Surfaced to the
	// submitting connection only; no broadcast occurs.
	ErrPersistence = errors.New("message persistence failed")
)

var (
	messagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_messages_total",
		Help: "Messages persisted and broadcast, by room.",
	}, []string{"room"})

	persistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_persist_failures_total",
		Help: "Message store writes that failed.",
	})

	deliveriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_deliveries_total",
		Help: "Broadcast frames enqueued to room members.",
	})

	droppedDeliveries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_dropped_deliveries_total",
		Help: "Broadcast frames dropped because a member's buffer was full.",
	})
)

// Session is the relay-facing state of one live connection: the resolved
// identity snapshot taken at join time plus the current room. Ephemeral,
// never persisted.
type Session struct {
	ConnID    string
	UserID    *uint
	UserName  string
	AvatarURL *string
	RoomID    uint
	RoomName  string
	ForceAnon bool
	Sub       rooms.Subscriber
}

// HistoryAppender receives successfully broadcast projections so the recent
// history cache stays warm. Best effort; failures never affect the relay.
type HistoryAppender interface {
	Append(ctx context.Context, roomID uint, payload models.MessagePayload)
}

// Relay wires persistence and room fan-out together
type Relay struct {
	messages repository.MessageRepository
	registry *rooms.Registry
	history  HistoryAppender
	log      *logger.Logger
	maxLen   int
}

// New creates a relay. history may be nil when no cache is configured.
func New(messages repository.MessageRepository, registry *rooms.Registry, history HistoryAppender, maxLen int, log *logger.Logger) *Relay {
	return &Relay{
		messages: messages,
		registry: registry,
		history:  history,
		log:      log,
		maxLen:   maxLen,
	}
}

// Submit validates, persists and broadcasts one message from a joined
// session. On success the authoritative projection has been enqueued to
// every current member of the room, the sender included.
func (r *Relay) Submit(ctx context.Context, sess *Session, text string, isAnonymousRequested bool) (*models.MessagePayload, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrEmptyMessage
	}
	if r.maxLen > 0 && len(trimmed) > r.maxLen {
		return nil, ErrMessageTooLong
	}

	// A connection joined with the forced-anonymous flag is anonymous no
	// matter what the submit asked for.
	effectiveAnon := sess.ForceAnon || isAnonymousRequested

	message, err := r.messages.Insert(ctx, sess.RoomID, sess.UserID, trimmed, effectiveAnon)
	if err != nil {
		persistFailures.Inc()
		r.log.LogError(err, "message persist failed",
			"conn_id", sess.ConnID,
			"room", sess.RoomName,
		)
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	payload := models.NewMessagePayload(
		message.ID,
		message.Text,
		message.IsAnonymous,
		message.CreatedAt,
		sess.UserName,
		sess.AvatarURL,
		message.UserID,
	)

	if r.history != nil {
		r.history.Append(ctx, sess.RoomID, payload)
	}

	r.broadcast(sess.RoomID, sess.RoomName, payload)

	return &payload, nil
}

func (r *Relay) broadcast(roomID uint, roomName string, payload models.MessagePayload) {
	frame, err := wsproto.Encode(wsproto.EventMessage, payload)
	if err != nil {
		r.log.LogError(err, "broadcast encode failed", "room", roomName)
		return
	}

	members := r.registry.Snapshot(roomID)
	dropped := 0
	for _, sub := range members {
		if sub.Deliver(frame) {
			deliveriesTotal.Inc()
		} else {
			droppedDeliveries.Inc()
			dropped++
		}
	}

	messagesTotal.WithLabelValues(roomName).Inc()

	if dropped > 0 {
		r.log.Warn("broadcast dropped for slow members",
			"room", roomName,
			"dropped", dropped,
			"members", len(members),
		)
	}
}
