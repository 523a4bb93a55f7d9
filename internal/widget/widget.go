// Package widget defines the narrow capability set this system requires from
// the external payment widget. The widget's internals are opaque: the
// orchestrator only ever loads it, binds an amount, renders its two
// sub-views, and hands control over via a payment request. Production binds
// these interfaces to the provider SDK gateway; tests bind them to a
// deterministic fake.
package widget

import "context"

// AnonymousCustomerKey is the sentinel customer key used when no
// authenticated customer is known at checkout.
const AnonymousCustomerKey = "ANONYMOUS"

// Amount is the charge bound to the widget, in the minor currency unit.
type Amount struct {
	Currency string `json:"currency"`
	Value    int64  `json:"value"`
}

// RenderTarget identifies where and how a widget sub-view is rendered.
type RenderTarget struct {
	Selector string `json:"selector"`
	Variant  string `json:"variant"`
}

// PaymentParams is the payload of the redirect-based payment request. The
// two URLs are the absolute targets the external service redirects to after
// taking over the page.
type PaymentParams struct {
	OrderID       string `json:"orderId"`
	OrderName     string `json:"orderName"`
	CustomerEmail string `json:"customerEmail,omitempty"`
	SuccessURL    string `json:"successUrl"`
	FailURL       string `json:"failUrl"`
}

// Redirect is the external service's checkout hand-off: the URL the user is
// sent to once the payment request is accepted.
type Redirect struct {
	CheckoutURL string `json:"checkoutUrl"`
}

// Widget is the live payment widget handle, owned exclusively by one
// checkout session.
type Widget interface {
	// SetAmount binds the charge amount. It must complete strictly before
	// either render call begins; binding concurrently with rendering is
	// undefined behavior in the external widget.
	SetAmount(ctx context.Context, amount Amount) error

	// RenderPaymentMethods renders the payment-method selection view.
	RenderPaymentMethods(ctx context.Context, target RenderTarget) error

	// RenderAgreement renders the user-agreement view.
	RenderAgreement(ctx context.Context, target RenderTarget) error

	// RequestPayment transfers control to the external service's own
	// UI/redirect flow. A synchronous error means no redirect happened and
	// the session remains usable.
	RequestPayment(ctx context.Context, params PaymentParams) (Redirect, error)
}

// Factory instantiates widgets for individual customers.
type Factory interface {
	Create(ctx context.Context, customerKey string) (Widget, error)
}

// Loader asynchronously loads the external widget library for a client
// credential.
type Loader interface {
	Load(ctx context.Context, clientKey string) (Factory, error)
}
