package rooms

import (
	"context"
	"errors"
	"sync"
	"testing"

	"fun-friday-chat/backend/internal/models"
	"fun-friday-chat/backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRoomRepo struct {
	mu       sync.Mutex
	rooms    map[string]*models.Room
	nextID   uint
	ensures  int
	failWith error
}

func newFakeRoomRepo() *fakeRoomRepo {
	return &fakeRoomRepo{rooms: map[string]*models.Room{}, nextID: 1}
}

func (f *fakeRoomRepo) EnsureByName(ctx context.Context, name string) (*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ensures++
	if f.failWith != nil {
		return nil, f.failWith
	}
	if room, ok := f.rooms[name]; ok {
		return room, nil
	}
	room := &models.Room{ID: f.nextID, Name: name}
	f.nextID++
	f.rooms[name] = room
	return room, nil
}

type stubSub struct {
	mu     sync.Mutex
	frames [][]byte
}

func (s *stubSub) Deliver(frame []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frame)
	return true
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", JSON: false})
}

func TestEnsureIdempotent(t *testing.T) {
	repo := newFakeRoomRepo()
	reg := NewRegistry(repo, testLogger())

	first, err := reg.Ensure(context.Background(), "fun-friday")
	require.NoError(t, err)

	second, err := reg.Ensure(context.Background(), "fun-friday")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
}

func TestEnsureConcurrentSameName(t *testing.T) {
	repo := newFakeRoomRepo()
	reg := NewRegistry(repo, testLogger())

	const n = 32
	ids := make([]uint, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			room, err := reg.Ensure(context.Background(), "fun-friday")
			if assert.NoError(t, err) {
				ids[i] = room.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestEnsureWrapsStoreError(t *testing.T) {
	repo := newFakeRoomRepo()
	repo.failWith = errors.New("connection refused")
	reg := NewRegistry(repo, testLogger())

	_, err := reg.Ensure(context.Background(), "fun-friday")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrResolution)
}

func TestJoinAndSnapshot(t *testing.T) {
	reg := NewRegistry(newFakeRoomRepo(), testLogger())

	a, b := &stubSub{}, &stubSub{}
	reg.Join(a, 1)
	reg.Join(b, 1)

	assert.Equal(t, 2, reg.Count(1))
	assert.Len(t, reg.Snapshot(1), 2)
	assert.Empty(t, reg.Snapshot(2))
}

func TestJoinImplicitlyLeavesPreviousRoom(t *testing.T) {
	reg := NewRegistry(newFakeRoomRepo(), testLogger())

	a := &stubSub{}
	reg.Join(a, 1)
	reg.Join(a, 2)

	assert.Equal(t, 0, reg.Count(1))
	assert.Equal(t, 1, reg.Count(2))
}

func TestJoinSameRoomTwiceKeepsSingleMembership(t *testing.T) {
	reg := NewRegistry(newFakeRoomRepo(), testLogger())

	a := &stubSub{}
	reg.Join(a, 1)
	reg.Join(a, 1)

	assert.Equal(t, 1, reg.Count(1))
}

func TestLeave(t *testing.T) {
	reg := NewRegistry(newFakeRoomRepo(), testLogger())

	a := &stubSub{}
	reg.Join(a, 1)
	reg.Leave(a)

	assert.Equal(t, 0, reg.Count(1))
	assert.Empty(t, reg.Snapshot(1))

	// Leaving twice, or without ever joining, is harmless
	reg.Leave(a)
	reg.Leave(&stubSub{})
}

func TestConcurrentJoinLeave(t *testing.T) {
	reg := NewRegistry(newFakeRoomRepo(), testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub := &stubSub{}
			reg.Join(sub, 1)
			reg.Snapshot(1)
			reg.Leave(sub)
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, reg.Count(1))
}
