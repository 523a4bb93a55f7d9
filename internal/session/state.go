// Package session owns the checkout session lifecycle: the finite state
// machine covering one checkout attempt from intent resolution through a
// terminal outcome, the session value that carries the widget handle, and
// the in-memory registry that maps page visits to live sessions.
package session

import "fmt"

// State is the checkout session state.
type State string

const (
	StateIdle             State = "IDLE"
	StateIntentResolved   State = "INTENT_RESOLVED"
	StateWidgetLoading    State = "WIDGET_LOADING"
	StateWidgetReady      State = "WIDGET_READY"
	StateRendering        State = "RENDERING"
	StateReadyForPayment  State = "READY_FOR_PAYMENT"
	StatePaymentRequested State = "PAYMENT_REQUESTED"
	StateConfirmPending   State = "CONFIRM_PENDING"
	StateConfirmed        State = "CONFIRMED"
	StateFailed           State = "FAILED"
	StateError            State = "ERROR"
)

// IsTerminal reports whether no further transitions are possible.
func (s State) IsTerminal() bool {
	return s == StateConfirmed || s == StateFailed || s == StateError
}

func (s State) String() string {
	return string(s)
}

// Event is a checkout lifecycle event applied to the state machine.
type Event string

const (
	EventIntentResolved   Event = "INTENT_RESOLVED"
	EventIntentRejected   Event = "INTENT_REJECTED"
	EventWidgetLoadBegan  Event = "WIDGET_LOAD_BEGAN"
	EventWidgetLoaded     Event = "WIDGET_LOADED"
	EventWidgetLoadFailed Event = "WIDGET_LOAD_FAILED"
	EventRenderBegan      Event = "RENDER_BEGAN"
	EventRenderCompleted  Event = "RENDER_COMPLETED"
	EventRenderFailed     Event = "RENDER_FAILED"
	EventPaymentSubmitted Event = "PAYMENT_SUBMITTED"

	// Redirect-return events. The session handling a redirect is a fresh
	// one instantiated on the return page, so both are valid from Idle.
	EventRedirectSucceeded Event = "REDIRECT_SUCCEEDED"
	EventRedirectFailed    Event = "REDIRECT_FAILED"

	EventConfirmAccepted Event = "CONFIRM_ACCEPTED"
	EventConfirmRejected Event = "CONFIRM_REJECTED"
)

// transitions is the full state machine as data. Next state is a pure
// function of (current state, event); anything absent from the table is an
// invalid transition.
var transitions = map[State]map[Event]State{
	StateIdle: {
		EventIntentResolved:    StateIntentResolved,
		EventIntentRejected:    StateError,
		EventRedirectSucceeded: StateConfirmPending,
		EventRedirectFailed:    StateFailed,
	},
	StateIntentResolved: {
		EventWidgetLoadBegan: StateWidgetLoading,
	},
	StateWidgetLoading: {
		EventWidgetLoaded:     StateWidgetReady,
		EventWidgetLoadFailed: StateError,
	},
	StateWidgetReady: {
		EventRenderBegan: StateRendering,
	},
	StateRendering: {
		EventRenderCompleted: StateReadyForPayment,
		EventRenderFailed:    StateError,
	},
	StateReadyForPayment: {
		EventPaymentSubmitted: StatePaymentRequested,
	},
	StateConfirmPending: {
		EventConfirmAccepted: StateConfirmed,
		EventConfirmRejected: StateFailed,
	},
	// PaymentRequested has no outgoing transitions: the external service
	// owns the page from here, and the redirect back lands on a fresh
	// session. Terminal states likewise have none.
}

// InvalidTransitionError reports an event applied in a state that does not
// accept it.
type InvalidTransitionError struct {
	From  State
	Event Event
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("session: event %s not valid in state %s", e.Event, e.From)
}

// Transition computes the next state for (current, event). It is pure: no
// session is consulted or mutated.
func Transition(current State, event Event) (State, error) {
	if next, ok := transitions[current][event]; ok {
		return next, nil
	}
	return current, &InvalidTransitionError{From: current, Event: event}
}
