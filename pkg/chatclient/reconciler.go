package chatclient

import (
	"strings"
	"sync"
	"time"

	"fun-friday-chat/backend/internal/models"
	"fun-friday-chat/backend/pkg/logger"

	"github.com/google/uuid"
)

// DefaultDebounce is the window during which repeated send requests are
// ignored rather than queued.
const DefaultDebounce = 250 * time.Millisecond

// Echo is the optimistic, client-local rendering of a just-sent message.
// It carries a temporary id and the local clock's timestamp; both are
// replaced by authoritative values when the broadcast comes back.
type Echo struct {
	TempID      string
	Text        string
	IsAnonymous bool
	UserID      *uint // may still be unknown on the very first message
	UserName    string
	CreatedAt   time.Time
}

// Bubble is the renderer's handle to one displayed message.
type Bubble interface {
	// Confirm flips the delivery marker from pending to confirmed and
	// replaces the displayed timestamp with the authoritative one.
	Confirm(createdAt time.Time)
}

// Renderer displays messages. The mine flag controls whether a delivery
// marker is shown; markers are a sender-only affordance.
type Renderer interface {
	RenderPending(e Echo) Bubble
	RenderMessage(m models.MessagePayload, mine bool)
}

// SubmitFunc posts a message to the relay. There is no direct response;
// success is observed via the subsequent broadcast.
type SubmitFunc func(text string, anonymous bool) error

// Reconciler pairs each outgoing message's optimistic echo with the
// authoritative broadcast that follows it, so the sender sees exactly one
// bubble per message. At most one echo is outstanding at a time; pairing is
// by recency, not by correlation id.
type Reconciler struct {
	mu          sync.Mutex
	renderer    Renderer
	submit      SubmitFunc
	log         *logger.Logger
	debounce    time.Duration
	userName    string
	userID      *uint
	lastPending Bubble
	lastSend    time.Time
}

// NewReconciler creates a reconciler rendering through renderer and posting
// through submit.
func NewReconciler(renderer Renderer, submit SubmitFunc, userName string, log *logger.Logger) *Reconciler {
	return &Reconciler{
		renderer: renderer,
		submit:   submit,
		log:      log,
		debounce: DefaultDebounce,
		userName: userName,
	}
}

// SetDebounce overrides the send debounce window.
func (r *Reconciler) SetDebounce(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.debounce = d
}

// SetUser records the resolved user id from the join acknowledgement.
func (r *Reconciler) SetUser(id uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.userID = &id
}

// HasPending reports whether an optimistic echo is still unconfirmed.
func (r *Reconciler) HasPending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastPending != nil
}

// Send renders an optimistic echo and submits the message. Empty text and
// sends inside the debounce window are dropped entirely, with no queueing.
// Reports whether the message was actually submitted.
func (r *Reconciler) Send(text string, anonymous bool) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	r.mu.Lock()
	now := time.Now()
	if !r.lastSend.IsZero() && now.Sub(r.lastSend) < r.debounce {
		r.mu.Unlock()
		return false
	}
	r.lastSend = now

	echo := Echo{
		TempID:      "tmp-" + uuid.New().String(),
		Text:        text,
		IsAnonymous: anonymous,
		UserID:      r.userID,
		UserName:    r.userName,
		CreatedAt:   now,
	}
	r.lastPending = r.renderer.RenderPending(echo)
	r.mu.Unlock()

	if err := r.submit(text, anonymous); err != nil {
		// The echo stays pending; a single tick that never upgrades is
		// the visible failure signal.
		r.log.LogError(err, "message submit failed")
	}
	return true
}

// ApplyBroadcast reconciles an authoritative broadcast. The sender's own
// message upgrades the outstanding echo in place instead of rendering a
// second bubble; everything else renders as a new confirmed bubble.
func (r *Reconciler) ApplyBroadcast(m models.MessagePayload) {
	r.mu.Lock()
	mine := m.UserID != nil && r.userID != nil && *m.UserID == *r.userID

	if mine && r.lastPending != nil {
		pending := r.lastPending
		r.lastPending = nil
		r.mu.Unlock()
		pending.Confirm(m.CreatedAt)
		return
	}
	r.mu.Unlock()

	r.renderer.RenderMessage(m, mine)
}
