// Package rooms maps room names to durable identifiers and tracks which live
// connections are currently joined to each room. Membership is purely
// in-memory; a relay restart drops it and clients must rejoin.
package rooms

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"fun-friday-chat/backend/internal/models"
	"fun-friday-chat/backend/internal/repository"
	"fun-friday-chat/backend/pkg/logger"
)

// ErrResolution indicates a room lookup/creation that could not converge.
// Fatal to the join attempt that triggered it.
var ErrResolution = errors.New("room resolution failed")

// Subscriber is the registry-facing view of a live connection: something
// broadcast frames can be handed to without blocking.
type Subscriber interface {
	// Deliver enqueues an outbound frame. It returns false when the
	// subscriber's buffer is full or the connection is gone.
	Deliver(frame []byte) bool
}

// Registry owns room identifier resolution and the per-room membership sets
type Registry struct {
	repo repository.RoomRepository
	log  *logger.Logger

	mu      sync.RWMutex
	members map[uint]map[Subscriber]struct{}
	current map[Subscriber]uint
}

// NewRegistry creates a registry backed by the given room store
func NewRegistry(repo repository.RoomRepository, log *logger.Logger) *Registry {
	return &Registry{
		repo:    repo,
		log:     log,
		members: make(map[uint]map[Subscriber]struct{}),
		current: make(map[Subscriber]uint),
	}
}

// Ensure resolves a room name to its durable identifier, creating the room
// lazily on first reference. Idempotent and race-safe.
func (r *Registry) Ensure(ctx context.Context, name string) (*models.Room, error) {
	room, err := r.repo.EnsureByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResolution, err)
	}
	return room, nil
}

// Join adds a subscriber to a room's membership set. A subscriber belongs to
// at most one room; joining another implicitly leaves the previous one.
func (r *Registry) Join(sub Subscriber, roomID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.current[sub]; ok && prev != roomID {
		r.removeLocked(sub, prev)
	}

	set, ok := r.members[roomID]
	if !ok {
		set = make(map[Subscriber]struct{})
		r.members[roomID] = set
	}
	set[sub] = struct{}{}
	r.current[sub] = roomID
}

// Leave removes a subscriber from whatever room it is in. Invoked
// automatically on disconnect; safe to call for a subscriber that never
// joined.
func (r *Registry) Leave(sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomID, ok := r.current[sub]
	if !ok {
		return
	}
	r.removeLocked(sub, roomID)
	delete(r.current, sub)
}

// Snapshot returns the current members of a room. Broadcasts iterate over
// the snapshot, so a concurrent join or leave is observed atomically: the
// member is either in the fan-out or not, never partially.
func (r *Registry) Snapshot(roomID uint) []Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.members[roomID]
	subs := make([]Subscriber, 0, len(set))
	for sub := range set {
		subs = append(subs, sub)
	}
	return subs
}

// Count returns the number of live members in a room
func (r *Registry) Count(roomID uint) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members[roomID])
}

func (r *Registry) removeLocked(sub Subscriber, roomID uint) {
	if set, ok := r.members[roomID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(r.members, roomID)
		}
	}
}
