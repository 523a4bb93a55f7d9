// Package mock provides deterministic fakes for the widget capability set,
// enabling state-machine and orchestration tests without any network or
// provider dependency.
package mock

import (
	"context"
	"sync"

	"github.com/yourorg/checkout-orchestrator/internal/widget"
)

// MockWidget is a fake widget. Each capability calls its Func field when set
// and succeeds otherwise. Every invocation is appended to Calls so tests can
// assert operation ordering (amount bind before renders).
type MockWidget struct {
	SetAmountFunc            func(ctx context.Context, amount widget.Amount) error
	RenderPaymentMethodsFunc func(ctx context.Context, target widget.RenderTarget) error
	RenderAgreementFunc      func(ctx context.Context, target widget.RenderTarget) error
	RequestPaymentFunc       func(ctx context.Context, params widget.PaymentParams) (widget.Redirect, error)

	mu    sync.Mutex
	calls []string

	BoundAmount widget.Amount
}

// NewMockWidget creates a MockWidget with default (always succeed) behavior.
func NewMockWidget() *MockWidget {
	return &MockWidget{}
}

func (m *MockWidget) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
}

// Calls returns the capability invocations observed so far, in order.
func (m *MockWidget) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *MockWidget) SetAmount(ctx context.Context, amount widget.Amount) error {
	m.record("SetAmount")
	m.mu.Lock()
	m.BoundAmount = amount
	m.mu.Unlock()
	if m.SetAmountFunc != nil {
		return m.SetAmountFunc(ctx, amount)
	}
	return nil
}

func (m *MockWidget) RenderPaymentMethods(ctx context.Context, target widget.RenderTarget) error {
	m.record("RenderPaymentMethods")
	if m.RenderPaymentMethodsFunc != nil {
		return m.RenderPaymentMethodsFunc(ctx, target)
	}
	return nil
}

func (m *MockWidget) RenderAgreement(ctx context.Context, target widget.RenderTarget) error {
	m.record("RenderAgreement")
	if m.RenderAgreementFunc != nil {
		return m.RenderAgreementFunc(ctx, target)
	}
	return nil
}

func (m *MockWidget) RequestPayment(ctx context.Context, params widget.PaymentParams) (widget.Redirect, error) {
	m.record("RequestPayment")
	if m.RequestPaymentFunc != nil {
		return m.RequestPaymentFunc(ctx, params)
	}
	return widget.Redirect{CheckoutURL: "https://pay.example.com/checkout/" + params.OrderID}, nil
}

// MockFactory creates MockWidgets. CreateFunc overrides the default.
type MockFactory struct {
	CreateFunc func(ctx context.Context, customerKey string) (widget.Widget, error)

	// LastWidget is the most recently created default widget, kept so tests
	// can inspect calls made through the session's handle.
	LastWidget *MockWidget

	// LastCustomerKey records the key passed to Create.
	LastCustomerKey string
}

func (f *MockFactory) Create(ctx context.Context, customerKey string) (widget.Widget, error) {
	f.LastCustomerKey = customerKey
	if f.CreateFunc != nil {
		return f.CreateFunc(ctx, customerKey)
	}
	f.LastWidget = NewMockWidget()
	return f.LastWidget, nil
}

// MockLoader loads MockFactories. LoadFunc overrides the default.
type MockLoader struct {
	LoadFunc func(ctx context.Context, clientKey string) (widget.Factory, error)

	LastFactory   *MockFactory
	LastClientKey string
	LoadCount     int
}

func (l *MockLoader) Load(ctx context.Context, clientKey string) (widget.Factory, error) {
	l.LoadCount++
	l.LastClientKey = clientKey
	if l.LoadFunc != nil {
		return l.LoadFunc(ctx, clientKey)
	}
	l.LastFactory = &MockFactory{}
	return l.LastFactory, nil
}
