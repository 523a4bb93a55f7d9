// Package renderer binds the charge amount to a live widget and renders its
// two sub-views in the order the external widget requires.
package renderer

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/yourorg/checkout-orchestrator/internal/widget"
)

// Default render targets, matching the widget's embedding contract.
var (
	DefaultPaymentMethodsTarget = widget.RenderTarget{Selector: "#payment-method", Variant: "DEFAULT"}
	DefaultAgreementTarget      = widget.RenderTarget{Selector: "#agreement", Variant: "AGREEMENT"}
)

// RenderError reports a sub-view render failure. The session terminates in
// its error state; renders are never retried automatically.
type RenderError struct {
	View string // "payment-methods" or "agreement"
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("renderer: %s view failed: %v", e.View, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// Renderer renders a widget for one resolved amount.
type Renderer struct {
	paymentMethodsTarget widget.RenderTarget
	agreementTarget      widget.RenderTarget
}

// New creates a Renderer with the default render targets.
func New() *Renderer {
	return &Renderer{
		paymentMethodsTarget: DefaultPaymentMethodsTarget,
		agreementTarget:      DefaultAgreementTarget,
	}
}

// NewWithTargets creates a Renderer with custom render targets.
func NewWithTargets(paymentMethods, agreement widget.RenderTarget) *Renderer {
	return &Renderer{
		paymentMethodsTarget: paymentMethods,
		agreementTarget:      agreement,
	}
}

// Render binds the amount, then renders the payment-method and agreement
// views. The amount bind completes strictly before either render begins;
// the two renders depend only on the bind, not on each other, so they run
// concurrently. Both must succeed before the caller may enable submission.
func (r *Renderer) Render(ctx context.Context, w widget.Widget, amount widget.Amount) error {
	if w == nil {
		return fmt.Errorf("renderer: widget handle is nil")
	}

	if err := w.SetAmount(ctx, amount); err != nil {
		return fmt.Errorf("renderer: amount bind failed: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := w.RenderPaymentMethods(gctx, r.paymentMethodsTarget); err != nil {
			return &RenderError{View: "payment-methods", Err: err}
		}
		return nil
	})
	g.Go(func() error {
		if err := w.RenderAgreement(gctx, r.agreementTarget); err != nil {
			return &RenderError{View: "agreement", Err: err}
		}
		return nil
	})
	return g.Wait()
}
