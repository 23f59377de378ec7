package relay

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"fun-friday-chat/backend/internal/models"
	"fun-friday-chat/backend/internal/repository"
	"fun-friday-chat/backend/internal/rooms"
	"fun-friday-chat/backend/pkg/logger"
	wsproto "fun-friday-chat/backend/pkg/ws"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMessageRepo struct {
	mu       sync.Mutex
	nextID   uint
	inserted []models.Message
	failWith error
}

func (f *fakeMessageRepo) Insert(ctx context.Context, roomID uint, userID *uint, text string, isAnonymous bool) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failWith != nil {
		return nil, f.failWith
	}
	f.nextID++
	m := models.Message{
		ID:          f.nextID,
		RoomID:      roomID,
		UserID:      userID,
		Text:        text,
		IsAnonymous: isAnonymous,
		CreatedAt:   time.Now(),
	}
	f.inserted = append(f.inserted, m)
	return &m, nil
}

func (f *fakeMessageRepo) ListRecent(ctx context.Context, roomID uint, limit int) ([]repository.MessageWithAuthor, error) {
	return nil, nil
}

type memberSub struct {
	mu     sync.Mutex
	frames [][]byte
	full   bool
}

func (s *memberSub) Deliver(frame []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.full {
		return false
	}
	s.frames = append(s.frames, frame)
	return true
}

func (s *memberSub) payloads(t *testing.T) []models.MessagePayload {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.MessagePayload
	for _, frame := range s.frames {
		var event wsproto.Event
		require.NoError(t, json.Unmarshal(frame, &event))
		require.Equal(t, wsproto.EventMessage, event.Type)

		var p models.MessagePayload
		require.NoError(t, json.Unmarshal(event.Payload, &p))
		out = append(out, p)
	}
	return out
}

type recordingHistory struct {
	mu       sync.Mutex
	appended []models.MessagePayload
}

func (h *recordingHistory) Append(ctx context.Context, roomID uint, payload models.MessagePayload) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.appended = append(h.appended, payload)
}

type noopRoomRepo struct{}

func (noopRoomRepo) EnsureByName(ctx context.Context, name string) (*models.Room, error) {
	return &models.Room{ID: 1, Name: name}, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", JSON: false})
}

func uintPtr(v uint) *uint { return &v }

func newTestRelay(repo *fakeMessageRepo, history HistoryAppender) (*Relay, *rooms.Registry) {
	reg := rooms.NewRegistry(noopRoomRepo{}, testLogger())
	return New(repo, reg, history, 4000, testLogger()), reg
}

func session(sub rooms.Subscriber, userID uint, name string, forceAnon bool) *Session {
	return &Session{
		ConnID:    "conn-1",
		UserID:    uintPtr(userID),
		UserName:  name,
		RoomID:    1,
		RoomName:  "fun-friday",
		ForceAnon: forceAnon,
		Sub:       sub,
	}
}

func TestSubmitBroadcastsToAllMembersIncludingSender(t *testing.T) {
	repo := &fakeMessageRepo{}
	rl, reg := newTestRelay(repo, nil)

	sender, peer := &memberSub{}, &memberSub{}
	reg.Join(sender, 1)
	reg.Join(peer, 1)

	payload, err := rl.Submit(context.Background(), session(sender, 7, "Pat", false), "hello", false)
	require.NoError(t, err)

	assert.Equal(t, "hello", payload.Text)
	require.Len(t, sender.payloads(t), 1)
	require.Len(t, peer.payloads(t), 1)
	assert.Equal(t, payload.ID, sender.payloads(t)[0].ID)
}

func TestSubmitDoesNotLeakAcrossRooms(t *testing.T) {
	repo := &fakeMessageRepo{}
	rl, reg := newTestRelay(repo, nil)

	member, outsider := &memberSub{}, &memberSub{}
	reg.Join(member, 1)
	reg.Join(outsider, 2)

	_, err := rl.Submit(context.Background(), session(member, 7, "Pat", false), "hello", false)
	require.NoError(t, err)

	assert.Len(t, member.payloads(t), 1)
	assert.Empty(t, outsider.payloads(t))
}

func TestSubmitTrimsText(t *testing.T) {
	repo := &fakeMessageRepo{}
	rl, reg := newTestRelay(repo, nil)

	sender := &memberSub{}
	reg.Join(sender, 1)

	payload, err := rl.Submit(context.Background(), session(sender, 7, "Pat", false), "  hi there  ", false)
	require.NoError(t, err)
	assert.Equal(t, "hi there", payload.Text)
	assert.Equal(t, "hi there", repo.inserted[0].Text)
}

func TestSubmitRejectsEmptyAfterTrim(t *testing.T) {
	repo := &fakeMessageRepo{}
	rl, reg := newTestRelay(repo, nil)

	sender := &memberSub{}
	reg.Join(sender, 1)

	_, err := rl.Submit(context.Background(), session(sender, 7, "Pat", false), "   \n\t ", false)
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Empty(t, repo.inserted)
	assert.Empty(t, sender.payloads(t))
}

func TestSubmitRejectsOverlongText(t *testing.T) {
	repo := &fakeMessageRepo{}
	rl, reg := newTestRelay(repo, nil)

	sender := &memberSub{}
	reg.Join(sender, 1)

	_, err := rl.Submit(context.Background(), session(sender, 7, "Pat", false), strings.Repeat("a", 4001), false)
	assert.ErrorIs(t, err, ErrMessageTooLong)
	assert.Empty(t, repo.inserted)
}

func TestSubmitAnonymousMasksIdentityButKeepsUserID(t *testing.T) {
	repo := &fakeMessageRepo{}
	rl, reg := newTestRelay(repo, nil)

	sender := &memberSub{}
	reg.Join(sender, 1)

	avatar := "https://example.com/pat.png"
	sess := session(sender, 7, "Pat", false)
	sess.AvatarURL = &avatar

	payload, err := rl.Submit(context.Background(), sess, "secret", true)
	require.NoError(t, err)

	assert.True(t, payload.IsAnonymous)
	assert.Equal(t, models.AnonymousName, payload.UserName)
	assert.Nil(t, payload.AvatarURL)
	require.NotNil(t, payload.UserID)
	assert.Equal(t, uint(7), *payload.UserID)

	got := sender.payloads(t)[0]
	assert.Equal(t, models.AnonymousName, got.UserName)
	assert.Nil(t, got.AvatarURL)
}

func TestSubmitForcedAnonOverridesRequest(t *testing.T) {
	repo := &fakeMessageRepo{}
	rl, reg := newTestRelay(repo, nil)

	sender := &memberSub{}
	reg.Join(sender, 1)

	payload, err := rl.Submit(context.Background(), session(sender, 7, "Pat", true), "hello", false)
	require.NoError(t, err)
	assert.True(t, payload.IsAnonymous)
	assert.True(t, repo.inserted[0].IsAnonymous)
}

func TestSubmitPersistFailureNoBroadcast(t *testing.T) {
	repo := &fakeMessageRepo{failWith: errors.New("disk full")}
	rl, reg := newTestRelay(repo, nil)

	sender, peer := &memberSub{}, &memberSub{}
	reg.Join(sender, 1)
	reg.Join(peer, 1)

	_, err := rl.Submit(context.Background(), session(sender, 7, "Pat", false), "hello", false)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Empty(t, sender.payloads(t))
	assert.Empty(t, peer.payloads(t))
}

func TestSubmitSlowMemberDoesNotBlockOthers(t *testing.T) {
	repo := &fakeMessageRepo{}
	rl, reg := newTestRelay(repo, nil)

	sender, slow := &memberSub{}, &memberSub{full: true}
	reg.Join(sender, 1)
	reg.Join(slow, 1)

	_, err := rl.Submit(context.Background(), session(sender, 7, "Pat", false), "hello", false)
	require.NoError(t, err)

	assert.Len(t, sender.payloads(t), 1)
	assert.Empty(t, slow.payloads(t))
}

func TestSubmitFeedsHistoryAppender(t *testing.T) {
	repo := &fakeMessageRepo{}
	history := &recordingHistory{}
	rl, reg := newTestRelay(repo, history)

	sender := &memberSub{}
	reg.Join(sender, 1)

	payload, err := rl.Submit(context.Background(), session(sender, 7, "Pat", false), "hello", false)
	require.NoError(t, err)

	require.Len(t, history.appended, 1)
	assert.Equal(t, payload.ID, history.appended[0].ID)
}
