// Package dispatch triggers the redirect-based payment request once a
// session's rendering is confirmed ready.
package dispatch

import (
	"errors"
	"fmt"

	"github.com/yourorg/checkout-orchestrator/internal/session"
	"github.com/yourorg/checkout-orchestrator/internal/widget"
)

// ErrNotReady is returned when submit is attempted in any state other than
// exactly ReadyForPayment. The attempt is a no-op.
var ErrNotReady = errors.New("dispatch: session is not ready for payment")

// DispatchError reports a requestPayment call that failed synchronously,
// before any redirect occurred. The session stays in ReadyForPayment and the
// user may retry the submit action; this is recoverable, unlike failures
// that arrive after a successful redirect.
type DispatchError struct {
	Err error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch: payment request failed before redirect: %v", e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// ReturnURLs are the absolute redirect targets handed to the external
// service.
type ReturnURLs struct {
	Success string
	Fail    string
}

// Dispatcher submits payment requests for ready sessions.
type Dispatcher struct {
	returnURLs ReturnURLs
}

// New creates a Dispatcher.
func New(urls ReturnURLs) *Dispatcher {
	if urls.Success == "" || urls.Fail == "" {
		panic("dispatch: both return URLs are required")
	}
	return &Dispatcher{returnURLs: urls}
}

// Dispatch invokes the widget's payment request for the session's bound
// intent. Only a session in exactly ReadyForPayment may dispatch. On success
// the session enters PaymentRequested and the external service owns the page
// from the returned redirect onward.
func (d *Dispatcher) Dispatch(sess *session.Session) (widget.Redirect, error) {
	if err := sess.Context().Err(); err != nil {
		// Torn-down session: no further network calls on its behalf.
		return widget.Redirect{}, session.ErrSessionClosed
	}
	if !sess.Ready() {
		return widget.Redirect{}, ErrNotReady
	}

	oi, ok := sess.Intent()
	if !ok {
		return widget.Redirect{}, ErrNotReady
	}
	w := sess.Widget()
	if w == nil {
		return widget.Redirect{}, ErrNotReady
	}

	redirect, err := w.RequestPayment(sess.Context(), widget.PaymentParams{
		OrderID:       oi.OrderID,
		OrderName:     oi.OrderName,
		CustomerEmail: oi.CustomerEmail,
		SuccessURL:    d.returnURLs.Success,
		FailURL:       d.returnURLs.Fail,
	})
	if err != nil {
		// No redirect happened; the session stays in ReadyForPayment.
		return widget.Redirect{}, &DispatchError{Err: err}
	}

	if err := sess.Apply(session.EventPaymentSubmitted); err != nil {
		return widget.Redirect{}, err
	}
	return redirect, nil
}
