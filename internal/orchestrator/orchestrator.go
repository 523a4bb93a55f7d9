// Package orchestrator drives one checkout session through its lifecycle:
// intent resolution, widget initialization, rendering, payment dispatch, and
// the post-redirect confirmation. Every stage applies its outcome to the
// session's state machine; a torn-down session suppresses all of it.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/yourorg/checkout-orchestrator/internal/confirm"
	"github.com/yourorg/checkout-orchestrator/internal/dispatch"
	"github.com/yourorg/checkout-orchestrator/internal/failcode"
	"github.com/yourorg/checkout-orchestrator/internal/intent"
	"github.com/yourorg/checkout-orchestrator/internal/policy"
	"github.com/yourorg/checkout-orchestrator/internal/reporting"
	"github.com/yourorg/checkout-orchestrator/internal/session"
	"github.com/yourorg/checkout-orchestrator/internal/widget"
)

// Internal failure codes for sessions that never reach the external
// service. Provider codes live in the failcode package.
const (
	codeInvalidIntent = "VALIDATION_ERROR"
	codeWidgetInit    = "WIDGET_INIT_ERROR"
	codeRender        = "RENDER_ERROR"
)

// User-facing messages for pre-redirect failures.
const (
	msgInvalidIntent = "주문 정보가 올바르지 않습니다."
	msgWidgetInit    = "결제 화면을 불러오지 못했습니다."
	msgRender        = "결제 화면 구성 중 오류가 발생했습니다."
)

// Lifecycle stages reported to the retrospective recorder and the recovery
// policy.
const (
	stageIntent   = "intent"
	stageWidget   = "widget"
	stageRender   = "render"
	stageRedirect = "redirect"
	stageConfirm  = "confirm"
)

// Confirmer issues the single server-side confirmation call for a session.
type Confirmer interface {
	Confirm(ctx context.Context, sessionID string, req confirm.Request) (confirm.Result, error)
}

// Config carries the checkout-facing settings the orchestrator needs.
type Config struct {
	ClientKey   string
	CustomerKey string
	Currency    string
}

// Orchestrator owns the checkout flow. One Orchestrator serves many
// sessions; each session is independently owned and never shared.
type Orchestrator struct {
	loader     widget.Loader
	renderer   Renderer
	dispatcher *dispatch.Dispatcher
	confirmer  Confirmer
	recovery   *policy.RecoveryPolicy
	registry   *session.Registry
	recorder   *reporting.Recorder
	cfg        Config
}

// Renderer is the small interface the orchestrator needs from the widget
// renderer.
type Renderer interface {
	Render(ctx context.Context, w widget.Widget, amount widget.Amount) error
}

// New creates an Orchestrator. All collaborators are required.
func New(
	loader widget.Loader,
	rend Renderer,
	dispatcher *dispatch.Dispatcher,
	confirmer Confirmer,
	recovery *policy.RecoveryPolicy,
	registry *session.Registry,
	recorder *reporting.Recorder,
	cfg Config,
) *Orchestrator {
	if loader == nil {
		panic("orchestrator: loader cannot be nil")
	}
	if rend == nil {
		panic("orchestrator: renderer cannot be nil")
	}
	if dispatcher == nil {
		panic("orchestrator: dispatcher cannot be nil")
	}
	if confirmer == nil {
		panic("orchestrator: confirmer cannot be nil")
	}
	if recovery == nil {
		panic("orchestrator: recovery policy cannot be nil")
	}
	if registry == nil {
		panic("orchestrator: session registry cannot be nil")
	}
	if recorder == nil {
		panic("orchestrator: recorder cannot be nil")
	}
	if cfg.CustomerKey == "" {
		cfg.CustomerKey = widget.AnonymousCustomerKey
	}
	if cfg.Currency == "" {
		cfg.Currency = "KRW"
	}
	return &Orchestrator{
		loader:     loader,
		renderer:   rend,
		dispatcher: dispatcher,
		confirmer:  confirmer,
		recovery:   recovery,
		registry:   registry,
		recorder:   recorder,
		cfg:        cfg,
	}
}

// Start runs the checkout entry flow: resolve the intent, load and
// instantiate the widget, bind the amount and render both sub-views. On
// success the returned session is in ReadyForPayment and indexed in the
// registry for the later submit. On failure the session is terminal in
// Error with a recorded user-facing failure, and the returned error names
// the cause.
func (o *Orchestrator) Start(ctx context.Context, params url.Values) (*session.Session, error) {
	tracer := otel.Tracer("orchestrator")
	ctx, span := tracer.Start(ctx, "Checkout.Start")
	defer span.End()

	sessionsStartedTotal.Inc()
	sess := session.New(ctx)

	oi, err := intent.Resolve(params)
	if err != nil {
		o.failStart(sess, session.EventIntentRejected, codeInvalidIntent, msgInvalidIntent, stageIntent)
		return sess, err
	}
	if applyErr := sess.Apply(session.EventIntentResolved); applyErr != nil {
		return sess, applyErr
	}
	sess.BindIntent(oi)

	if applyErr := sess.Apply(session.EventWidgetLoadBegan); applyErr != nil {
		return sess, applyErr
	}
	factory, err := o.loader.Load(sess.Context(), o.cfg.ClientKey)
	if err != nil {
		o.failStart(sess, session.EventWidgetLoadFailed, codeWidgetInit, msgWidgetInit, stageWidget)
		return sess, err
	}
	w, err := factory.Create(sess.Context(), o.cfg.CustomerKey)
	if err != nil {
		o.failStart(sess, session.EventWidgetLoadFailed, codeWidgetInit, msgWidgetInit, stageWidget)
		return sess, err
	}
	if applyErr := sess.Apply(session.EventWidgetLoaded); applyErr != nil {
		return sess, applyErr
	}
	if attachErr := sess.AttachWidget(w); attachErr != nil {
		return sess, attachErr
	}

	if applyErr := sess.Apply(session.EventRenderBegan); applyErr != nil {
		return sess, applyErr
	}
	amount := widget.Amount{Currency: o.cfg.Currency, Value: oi.Amount}
	if err := o.renderer.Render(sess.Context(), w, amount); err != nil {
		o.failStart(sess, session.EventRenderFailed, codeRender, msgRender, stageRender)
		return sess, err
	}
	if applyErr := sess.Apply(session.EventRenderCompleted); applyErr != nil {
		return sess, applyErr
	}
	sess.MarkReady()

	sessionsReadyTotal.Inc()
	o.registry.Put(sess)
	log.Printf("orchestrator: session %s ready for payment (order %s, amount %d)", sess.ID, oi.OrderID, oi.Amount)
	return sess, nil
}

// failStart moves a starting session into its terminal Error state. Apply
// errors here mean the session was torn down mid-flight; the stale failure
// is then dropped without recording.
func (o *Orchestrator) failStart(sess *session.Session, ev session.Event, code, message, stage string) {
	if err := sess.Apply(ev); err != nil {
		log.Printf("orchestrator: session %s teardown suppressed %s: %v", sess.ID, ev, err)
		return
	}
	sess.RecordFailure(code, message)
	o.recordOutcome(sess, reporting.OutcomeError, code, stage)
}

// Submit triggers the redirect-based payment request for a live session.
// Only a session in exactly ReadyForPayment dispatches; a synchronous
// dispatch failure leaves the session usable. A successful dispatch hands
// the page to the external service and evicts the session.
func (o *Orchestrator) Submit(sessionID string) (widget.Redirect, error) {
	sess, err := o.registry.Get(sessionID)
	if err != nil {
		return widget.Redirect{}, err
	}
	redirect, err := o.dispatcher.Dispatch(sess)
	if err != nil {
		return widget.Redirect{}, err
	}
	// The external service owns the page from here; the redirect-back flows
	// run on fresh sessions, so this one is done.
	o.registry.Remove(sess.ID)
	log.Printf("orchestrator: session %s handed off to external service", sess.ID)
	return redirect, nil
}

// SuccessOutcome is the result of handling the success redirect.
type SuccessOutcome struct {
	Session  *session.Session
	Result   confirm.Result
	Recovery policy.RecoveryDecision // meaningful when the confirmation failed
}

// HandleSuccessReturn handles the external service's success redirect. The
// session on the return page is a fresh one; it enters ConfirmPending,
// issues the single confirmation request and terminates in Confirmed or
// Failed.
func (o *Orchestrator) HandleSuccessReturn(ctx context.Context, params url.Values) (SuccessOutcome, error) {
	tracer := otel.Tracer("orchestrator")
	ctx, span := tracer.Start(ctx, "Checkout.Confirm")
	defer span.End()

	sess := session.New(ctx)

	orderID := params.Get("orderId")
	paymentKey := params.Get("paymentKey")
	amount, parseErr := strconv.ParseInt(params.Get("amount"), 10, 64)
	if orderID == "" || paymentKey == "" || parseErr != nil || amount <= 0 {
		// The redirect contract is broken; nothing to confirm. The session
		// fails with our own sentinel, not a provider code.
		if err := sess.Apply(session.EventRedirectSucceeded); err != nil {
			return SuccessOutcome{Session: sess}, err
		}
		result := confirm.Result{Code: failcode.CodeConfirmError, Message: failcode.Classify(failcode.CodeConfirmError)}
		o.failConfirm(sess, result)
		// The echoed amount is unusable here; the policy sees zero.
		return SuccessOutcome{Session: sess, Result: result, Recovery: o.Recovery(result.Code, 0, stageConfirm)},
			fmt.Errorf("orchestrator: malformed success redirect parameters")
	}

	if err := sess.Apply(session.EventRedirectSucceeded); err != nil {
		return SuccessOutcome{Session: sess}, err
	}

	start := time.Now()
	result, err := o.confirmer.Confirm(sess.Context(), sess.ID, confirm.Request{
		OrderID:    orderID,
		Amount:     amount,
		PaymentKey: paymentKey,
	})
	confirmationDurationSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		// Only the duplicate-call guard lands here; treat it as a
		// confirmation failure rather than a silent success.
		result = confirm.Result{Code: failcode.CodeConfirmError, Message: failcode.Classify(failcode.CodeConfirmError)}
	}

	if result.Confirmed {
		if applyErr := sess.Apply(session.EventConfirmAccepted); applyErr != nil {
			return SuccessOutcome{Session: sess, Result: result}, applyErr
		}
		o.recordConfirmed(sess, orderID, amount)
		log.Printf("orchestrator: session %s confirmed order %s (amount %d)", sess.ID, orderID, amount)
		return SuccessOutcome{Session: sess, Result: result}, nil
	}

	o.failConfirm(sess, result)
	return SuccessOutcome{Session: sess, Result: result, Recovery: o.Recovery(result.Code, amount, stageConfirm)}, nil
}

func (o *Orchestrator) failConfirm(sess *session.Session, result confirm.Result) {
	if err := sess.Apply(session.EventConfirmRejected); err != nil {
		log.Printf("orchestrator: session %s teardown suppressed confirm rejection: %v", sess.ID, err)
		return
	}
	sess.RecordFailure(result.Code, result.Message)
	o.recordOutcome(sess, reporting.OutcomeFailed, result.Code, stageConfirm)
}

// FailureOutcome is the result of handling the failure redirect.
type FailureOutcome struct {
	Session  *session.Session
	Failure  session.Failure
	Recovery policy.RecoveryDecision
}

// HandleFailureReturn handles the external service's failure redirect. No
// confirmation is attempted; the fresh session terminates in Failed with
// the classified message for the provider's code.
func (o *Orchestrator) HandleFailureReturn(ctx context.Context, params url.Values) (FailureOutcome, error) {
	sess := session.New(ctx)

	code := params.Get("code")
	message := failcode.Classify(code)

	if err := sess.Apply(session.EventRedirectFailed); err != nil {
		return FailureOutcome{Session: sess}, err
	}
	sess.RecordFailure(code, message)
	o.recordOutcome(sess, reporting.OutcomeFailed, code, stageRedirect)
	log.Printf("orchestrator: session %s failed on redirect with code %s (order %q)", sess.ID, code, params.Get("orderId"))

	return FailureOutcome{
		Session:  sess,
		Failure:  session.Failure{Code: code, Message: message},
		Recovery: o.Recovery(code, 0, stageRedirect),
	}, nil
}

// Recovery evaluates the recovery policy for a failure. Policy evaluation
// errors fall back to the default decision; recovery guidance must never
// mask the underlying payment failure.
func (o *Orchestrator) Recovery(code string, amount int64, stage string) policy.RecoveryDecision {
	decision, err := o.recovery.Evaluate(code, failcode.Known(code), amount, stage)
	if err != nil {
		log.Printf("orchestrator: recovery policy evaluation failed for code %s: %v", code, err)
		return policy.DefaultDecision
	}
	return decision
}

// Teardown closes a live session and drops it from the registry. Pending
// asynchronous work belonging to the session becomes a no-op.
func (o *Orchestrator) Teardown(sessionID string) {
	o.registry.Remove(sessionID)
}

func (o *Orchestrator) recordConfirmed(sess *session.Session, orderID string, amount int64) {
	sessionOutcomesTotal.WithLabelValues("confirmed").Inc()
	o.recorder.Record(reporting.LogEntry{
		SessionID: sess.ID,
		OrderID:   orderID,
		Outcome:   reporting.OutcomeConfirmed,
		Amount:    amount,
		Currency:  o.cfg.Currency,
		Stage:     stageConfirm,
	})
}

func (o *Orchestrator) recordOutcome(sess *session.Session, outcome, code, stage string) {
	switch outcome {
	case reporting.OutcomeFailed:
		sessionOutcomesTotal.WithLabelValues("failed").Inc()
	case reporting.OutcomeError:
		sessionOutcomesTotal.WithLabelValues("error").Inc()
	}
	entry := reporting.LogEntry{
		SessionID:   sess.ID,
		Outcome:     outcome,
		FailureCode: code,
		Stage:       stage,
		Currency:    o.cfg.Currency,
	}
	if oi, ok := sess.Intent(); ok {
		entry.OrderID = oi.OrderID
		entry.Amount = oi.Amount
	}
	o.recorder.Record(entry)
}
