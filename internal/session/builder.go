// Package session drives the multi-turn exchange between a prompt builder and
// the generative backend.
//
// A Builder owns everything one interactive builder needs: the selection
// tracker, auxiliary options, the transcript, the live conversation and the
// token of the in-flight turn. Builders share nothing, so independent
// instances (for example in tests) never interfere.
//
// Turn lifecycle:
//
//	idle -> sending -> awaiting-response -> idle
//	                \-> aborted (Stop)   -> idle
//	                \-> error            -> idle
//
// Only one turn is in flight at a time. Starting a turn cancels the previous
// one and the latest token wins: a result that arrives for a replaced token
// is dropped without touching the transcript.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"prompttable/internal/backend"
	"prompttable/internal/builder"
	"prompttable/internal/catalog"
	"prompttable/internal/logging"

	"github.com/google/uuid"
)

var (
	// ErrEmptyInput is returned when a turn is requested without text.
	ErrEmptyInput = errors.New("session: empty input")

	// ErrNothingToRegenerate is returned by Regenerate before any turn.
	ErrNothingToRegenerate = errors.New("session: nothing to regenerate")

	// ErrStoppedByUser is the cancellation cause of a stopped turn.
	ErrStoppedByUser = errors.New("session: generation stopped by user")

	// ErrSessionReset is returned by GeneratePlan when the builder was reset
	// while the plan was being generated.
	ErrSessionReset = errors.New("session: reset while request was in flight")

	errSuperseded = errors.New("session: superseded by a newer turn")
	errReset      = errors.New("session: reset")
)

// Option configures a Builder.
type Option func(*Builder)

// WithOptions sets the initial auxiliary options.
func WithOptions(opts builder.Options) Option {
	return func(b *Builder) { b.opts = opts }
}

// WithSearch toggles search grounding on new conversations.
func WithSearch(enabled bool) Option {
	return func(b *Builder) { b.search = enabled }
}

// WithCue sets the callback fired when the selection moves to a media mode.
// It runs with the builder locked and must not call back into it.
func WithCue(cue builder.CueFunc) Option {
	return func(b *Builder) { b.cue = cue }
}

// WithClock overrides the message timestamp source.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// turn is the cancellation token of one in-flight turn.
type turn struct {
	seq     uint64
	cancel  context.CancelCauseFunc
	stopped *Message
}

// turnRequest is the payload of a turn.
type turnRequest struct {
	display string // transcript text of the user message
	prompt  string // outbound text before the mode directive
	image   *backend.Image
}

// Builder is the state holder of one interactive prompt builder.
type Builder struct {
	backend backend.Backend
	search  bool
	cue     builder.CueFunc
	now     func() time.Time

	mu          sync.Mutex
	tracker     *builder.Tracker
	opts        builder.Options
	transcript  []Message
	conv        backend.Conversation
	sessionID   string
	state       State
	current     *turn
	seq         uint64
	epoch       uint64
	lastRequest *turnRequest

	listenersMu sync.Mutex
	listeners   map[int]func(Event)
	nextID      int
}

// New returns an idle builder over backend b.
func New(b backend.Backend, opts ...Option) *Builder {
	s := &Builder{
		backend:   b,
		search:    true,
		opts:      builder.DefaultOptions(),
		now:       time.Now,
		listeners: make(map[int]func(Event)),
	}
	for _, o := range opts {
		o(s)
	}
	s.tracker = builder.NewTracker(s.cue)
	return s
}

// Backend returns the backend the builder talks to.
func (s *Builder) Backend() backend.Backend {
	return s.backend
}

// =============================================================================
// SELECTION & OPTIONS
// =============================================================================

// Toggle flips membership of t in the selection and reports whether it is
// now selected.
func (s *Builder) Toggle(t catalog.Technique) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.Toggle(t)
}

// ClearSelection empties the selection.
func (s *Builder) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracker.Clear()
}

// Selection returns a copy of the current selection.
func (s *Builder) Selection() *builder.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.Selection()
}

// Mode returns the mode derived from the live selection.
func (s *Builder) Mode() builder.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.Mode()
}

// SetOptions replaces the auxiliary options. They seed the next conversation.
func (s *Builder) SetOptions(opts builder.Options) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts = opts
}

// Options returns the auxiliary options.
func (s *Builder) Options() builder.Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts
}

// Request compiles the live selection and options.
func (s *Builder) Request() builder.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return builder.Compile(s.tracker.Selection(), s.opts)
}

// =============================================================================
// TRANSCRIPT & STATE
// =============================================================================

// Transcript returns a copy of the transcript.
func (s *Builder) Transcript() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// State returns the lifecycle state.
func (s *Builder) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Busy reports whether a turn is in flight.
func (s *Builder) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

// SessionID identifies the live conversation, "" when there is none.
func (s *Builder) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Reset cancels in-flight work and discards the transcript and conversation.
// The selection and options are kept.
func (s *Builder) Reset() {
	s.mu.Lock()
	if s.current != nil {
		s.current.cancel(errReset)
		s.current = nil
	}
	s.transcript = nil
	s.conv = nil
	s.sessionID = ""
	s.lastRequest = nil
	s.epoch++
	s.state = StateIdle
	s.mu.Unlock()

	logging.Session("session reset")
	s.emit(Event{Kind: EventReset, State: StateIdle})
}

// Subscribe registers fn for builder events and returns a function that
// removes it. fn runs on the goroutine that caused the event.
func (s *Builder) Subscribe(fn func(Event)) func() {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.listenersMu.Lock()
		defer s.listenersMu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Builder) emit(events ...Event) {
	if len(events) == 0 {
		return
	}
	s.listenersMu.Lock()
	fns := make([]func(Event), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.Unlock()

	for _, ev := range events {
		for _, fn := range fns {
			fn(ev)
		}
	}
}

// newMessageLocked builds a message with a fresh id. Caller holds s.mu.
func (s *Builder) newMessageLocked(role Role, text string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		CreatedAt: s.now(),
	}
}

// appendLocked appends m and returns the event announcing it. Caller holds s.mu.
func (s *Builder) appendLocked(m Message) Event {
	s.transcript = append(s.transcript, m)
	return Event{Kind: EventMessage, State: s.state, Message: &m}
}

// setStateLocked records a transition and returns its event. Caller holds s.mu.
func (s *Builder) setStateLocked(st State) Event {
	if s.state != st {
		logging.SessionDebug("state %s -> %s", s.state, st)
	}
	s.state = st
	return Event{Kind: EventState, State: st}
}
