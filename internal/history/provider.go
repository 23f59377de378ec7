// Package history serves the bounded recent-message window a client renders
// on join. Reads prefer a redis cache kept warm by the relay and fall back
// to the store; a circuit breaker keeps a dead redis from slowing joins.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fun-friday-chat/backend/internal/models"
	"fun-friday-chat/backend/internal/repository"
	"fun-friday-chat/backend/internal/rooms"
	"fun-friday-chat/backend/pkg/logger"
	"fun-friday-chat/backend/pkg/resilience"
	"fun-friday-chat/backend/shared/redis"
)

// maxCached bounds the per-room redis list. History requests above this fall
// through to the store.
const maxCached = 100

// Provider answers history fetches for a room
type Provider struct {
	registry     *rooms.Registry
	messages     repository.MessageRepository
	cache        *redis.Client
	breaker      *resilience.CircuitBreaker
	ttl          time.Duration
	defaultLimit int
	log          *logger.Logger
}

// New creates a history provider. cache may be nil; every read then goes to
// the store.
func New(registry *rooms.Registry, messages repository.MessageRepository, cache *redis.Client, defaultLimit int, ttl time.Duration, log *logger.Logger) *Provider {
	return &Provider{
		registry:     registry,
		messages:     messages,
		cache:        cache,
		breaker:      resilience.New(resilience.DefaultConfig("history-cache"), log),
		ttl:          ttl,
		defaultLimit: defaultLimit,
		log:          log,
	}
}

// Room returns the last limit messages of the named room, oldest first.
// An unknown room is created lazily rather than answered with a miss.
func (p *Provider) Room(ctx context.Context, roomName string, limit int) ([]models.MessagePayload, error) {
	if limit <= 0 {
		limit = p.defaultLimit
	}

	room, err := p.registry.Ensure(ctx, roomName)
	if err != nil {
		return nil, err
	}

	if payloads, ok := p.fromCache(ctx, room.ID, limit); ok {
		return payloads, nil
	}

	rows, err := p.messages.ListRecent(ctx, room.ID, limit)
	if err != nil {
		return nil, err
	}

	payloads := make([]models.MessagePayload, len(rows))
	for i, row := range rows {
		payloads[i] = models.NewMessagePayload(
			row.ID,
			row.Text,
			row.IsAnonymous,
			row.CreatedAt,
			row.UserName,
			row.AvatarURL,
			row.UserID,
		)
	}

	return payloads, nil
}

// Append records a freshly broadcast projection in the room's recent list.
// Best effort: cache failures are logged and otherwise ignored.
func (p *Provider) Append(ctx context.Context, roomID uint, payload models.MessagePayload) {
	if p.cache == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		p.log.LogError(err, "history cache marshal failed", "room_id", roomID)
		return
	}

	key := recentKey(roomID)
	err = p.breaker.Execute(func() error {
		if err := p.cache.LPush(ctx, key, data); err != nil {
			return err
		}
		if err := p.cache.LTrim(ctx, key, 0, maxCached-1); err != nil {
			return err
		}
		return p.cache.Expire(ctx, key, p.ttl)
	})
	if err != nil && err != resilience.ErrCircuitOpen {
		p.log.Warn("history cache append failed", "room_id", roomID, "error", err.Error())
	}
}

// fromCache serves a history read from redis when the cached window fully
// covers the requested limit. A partially warm list cannot answer the
// request; the store is authoritative then.
func (p *Provider) fromCache(ctx context.Context, roomID uint, limit int) ([]models.MessagePayload, bool) {
	if p.cache == nil || limit > maxCached {
		return nil, false
	}

	var entries []string
	err := p.breaker.Execute(func() error {
		var lerr error
		entries, lerr = p.cache.LRange(ctx, recentKey(roomID), 0, int64(limit)-1)
		return lerr
	})
	if err != nil {
		if err != resilience.ErrCircuitOpen {
			p.log.Warn("history cache read failed", "room_id", roomID, "error", err.Error())
		}
		return nil, false
	}

	if len(entries) < limit {
		return nil, false
	}

	// Entries are newest first; history is served oldest first.
	payloads := make([]models.MessagePayload, len(entries))
	for i, entry := range entries {
		var payload models.MessagePayload
		if err := json.Unmarshal([]byte(entry), &payload); err != nil {
			return nil, false
		}
		payloads[len(entries)-1-i] = payload
	}

	return payloads, true
}

func recentKey(roomID uint) string {
	return fmt.Sprintf("room:%d:recent", roomID)
}
