package session

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/yourorg/checkout-orchestrator/internal/intent"
	"github.com/yourorg/checkout-orchestrator/internal/widget"
)

// ErrSessionClosed is returned when an event or mutation arrives after the
// session's lifetime scope has been canceled (page torn down). The stale
// operation is suppressed; the session is left untouched.
var ErrSessionClosed = errors.New("session: closed")

// ErrWidgetAlreadyAttached is returned on a second widget instantiation for
// the same session. Initialization is idempotent per session: at most one
// widget handle over the session lifetime.
var ErrWidgetAlreadyAttached = errors.New("session: widget already attached")

// Failure records the terminal failure surfaced to the user.
type Failure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Session is the single, non-shared lifecycle object covering one checkout
// attempt. It is created fresh per page visit and never persisted across
// navigations; a retry is an entirely new Session with a fresh widget handle.
type Session struct {
	ID string

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	state   State
	intent  *intent.OrderIntent
	widget  widget.Widget
	ready   bool
	failure *Failure
}

// New creates a Session in Idle, scoped to the given parent context. The
// parent carries the hosting page's lifetime: when it is canceled, every
// pending continuation belonging to this session becomes a no-op.
func New(parent context.Context) *Session {
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		ID:     uuid.NewString(),
		ctx:    ctx,
		cancel: cancel,
		state:  StateIdle,
	}
}

// Context returns the session's lifetime scope. Asynchronous stages pass it
// to outbound calls so teardown also cancels in-flight network work.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Close cancels the session's lifetime scope. Subsequent Apply calls return
// ErrSessionClosed without mutating state.
func (s *Session) Close() {
	s.cancel()
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Apply transitions the session with the given event. It fails with
// ErrSessionClosed if the session scope is canceled, and with
// *InvalidTransitionError if the event is not valid in the current state.
// Only an error-free Apply mutates the session.
func (s *Session) Apply(event Event) error {
	if err := s.ctx.Err(); err != nil {
		return ErrSessionClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := Transition(s.state, event)
	if err != nil {
		return err
	}
	s.state = next
	return nil
}

// BindIntent records the resolved order intent. The intent is immutable once
// bound.
func (s *Session) BindIntent(oi intent.OrderIntent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intent = &oi
}

// Intent returns the bound order intent, or false if none was resolved.
func (s *Session) Intent() (intent.OrderIntent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.intent == nil {
		return intent.OrderIntent{}, false
	}
	return *s.intent, true
}

// AttachWidget stores the instantiated widget handle. The handle is owned
// exclusively by this session; a second attach is rejected.
func (s *Session) AttachWidget(w widget.Widget) error {
	if err := s.ctx.Err(); err != nil {
		return ErrSessionClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.widget != nil {
		return ErrWidgetAlreadyAttached
	}
	s.widget = w
	return nil
}

// Widget returns the attached widget handle, or nil before initialization.
func (s *Session) Widget() widget.Widget {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.widget
}

// MarkReady sets the readiness flag. It is only set after the amount bind
// and both sub-renders have completed.
func (s *Session) MarkReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = true
}

// Ready reports whether payment submission is enabled. Submission requires
// both the readiness flag and the ReadyForPayment state.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready && s.state == StateReadyForPayment
}

// RecordFailure stores the terminal failure surfaced to the user.
func (s *Session) RecordFailure(code, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = &Failure{Code: code, Message: message}
}

// Failure returns the recorded terminal failure, or false if none.
func (s *Session) Failure() (Failure, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure == nil {
		return Failure{}, false
	}
	return *s.failure, true
}
