package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/digital-twin/client/internal/model/chat"
	"github.com/zhouzirui/digital-twin/client/internal/service/responder"
)

// DefaultApology is the assistant entry appended when a turn fails for any reason.
const DefaultApology = "Sorry, I encountered an error. Please try again."

// Responder is the remote collaborator that answers user turns.
type Responder interface {
	Chat(ctx context.Context, req responder.Request) (responder.Reply, error)
}

// Controller owns the transcript, the session identity and the pending flag.
// At most one exchange with the responder is in flight at a time.
type Controller struct {
	responder Responder
	timeout   time.Duration
	apology   string
	now       func() time.Time
	newID     func() string
	logger    zerolog.Logger

	mu       sync.RWMutex
	entries  []chat.Entry
	session  chat.Session
	pending  bool
	watchers map[int]chan struct{}
	nextWID  int
}

// Option customises a Controller.
type Option func(*Controller)

// WithClock overrides the clock used to stamp entries.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithIDGenerator overrides entry id generation.
func WithIDGenerator(newID func() string) Option {
	return func(c *Controller) { c.newID = newID }
}

// WithLogger sets the logger used for exchange diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithRequestTimeout bounds each exchange; zero disables the bound.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(c *Controller) { c.timeout = timeout }
}

// WithApology replaces the failure text.
func WithApology(text string) Option {
	return func(c *Controller) {
		if strings.TrimSpace(text) != "" {
			c.apology = text
		}
	}
}

// NewController bootstraps an idle controller with an empty transcript and no session.
func NewController(r Responder, opts ...Option) *Controller {
	c := &Controller{
		responder: r,
		apology:   DefaultApology,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     newEntryID,
		logger:    log.Logger,
		entries:   make([]chat.Entry, 0, 16),
		watchers:  make(map[int]chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newEntryID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Submit appends the utterance as a user entry and asks the responder for a reply.
// It is a no-op returning accepted=false when the utterance is blank or an
// exchange is already pending. The returned channel closes once the outcome
// (reply or apology) has been applied. The exchange is not bound to ctx
// cancellation; only the request timeout can cut it short.
func (c *Controller) Submit(ctx context.Context, utterance string) (done <-chan struct{}, accepted bool) {
	if strings.TrimSpace(utterance) == "" {
		return nil, false
	}

	c.mu.Lock()
	if c.pending {
		c.mu.Unlock()
		return nil, false
	}
	c.appendLocked(chat.AuthorUser, utterance)
	c.pending = true
	req := responder.Request{Message: utterance, SessionID: c.session.ID}
	c.mu.Unlock()
	c.notify()

	finished := make(chan struct{})
	go c.exchange(context.WithoutCancel(ctx), req, finished)
	return finished, true
}

func (c *Controller) exchange(ctx context.Context, req responder.Request, finished chan<- struct{}) {
	defer close(finished)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	started := c.now()
	reply, err := c.responder.Chat(ctx, req)

	c.mu.Lock()
	if err != nil {
		c.logger.Warn().Err(err).Str("session_id", req.SessionID).Msg("response service call failed")
		c.appendLocked(chat.AuthorAssistant, c.apology)
	} else {
		if !c.session.Known() {
			c.session.ID = reply.SessionID
			c.logger.Debug().Str("session_id", reply.SessionID).Msg("session established")
		}
		c.appendLocked(chat.AuthorAssistant, reply.Response)
		c.logger.Debug().
			Str("session_id", c.session.ID).
			Int("length", len(reply.Response)).
			Dur("elapsed", c.now().Sub(started)).
			Msg("reply received")
	}
	c.pending = false
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) appendLocked(author chat.Author, body string) {
	c.entries = append(c.entries, chat.Entry{
		ID:        c.newID(),
		Author:    author,
		Body:      body,
		CreatedAt: c.now(),
	})
}

// Transcript returns a copy of the entries in insertion order.
func (c *Controller) Transcript() []chat.Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	copied := make([]chat.Entry, len(c.entries))
	copy(copied, c.entries)
	return copied
}

// Pending reports whether an exchange is awaiting its reply.
func (c *Controller) Pending() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pending
}

// HasEntries reports whether anything has been said yet.
func (c *Controller) HasEntries() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries) > 0
}

// SessionID returns the pinned session identifier, if one has been issued.
func (c *Controller) SessionID() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.ID, c.session.Known()
}

// Snapshot returns a consistent copy of the whole conversation state.
func (c *Controller) Snapshot() chat.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := make([]chat.Entry, len(c.entries))
	copy(entries, c.entries)
	return chat.Snapshot{
		Entries:   entries,
		Pending:   c.pending,
		SessionID: c.session.ID,
	}
}

// Subscribe returns a channel that receives a signal after every state change.
// Signals coalesce: a slow reader sees at most one queued notification and
// should re-read Snapshot. The returned func unsubscribes.
func (c *Controller) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	c.mu.Lock()
	id := c.nextWID
	c.nextWID++
	c.watchers[id] = ch
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.watchers, id)
			c.mu.Unlock()
		})
	}
}

func (c *Controller) notify() {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, ch := range c.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
