// Package tosspay binds the widget capability set to the Toss Payments
// widget API over HTTP. Loading the library becomes fetching the widget
// configuration for a client key; the amount bind, the two sub-renders and
// the payment request become calls against the provider's widget-session
// resource. Responses outside 2xx carry a {code, message} error body.
package tosspay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/checkout-orchestrator/internal/widget"
)

const (
	defaultAPIBaseURL = "https://api.tosspayments.com"
	defaultTimeout    = 10 * time.Second
)

// errorBody is the provider's error envelope.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Gateway implements widget.Loader against the provider HTTP API.
type Gateway struct {
	httpClient *http.Client
	apiBaseURL string // overridable for testing
}

// NewGateway creates a Gateway. A nil client gets a default with a timeout.
func NewGateway(client *http.Client) *Gateway {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Gateway{
		httpClient: client,
		apiBaseURL: defaultAPIBaseURL,
	}
}

// NewGatewayWithBaseURL creates a Gateway against a non-default API host.
func NewGatewayWithBaseURL(client *http.Client, baseURL string) *Gateway {
	g := NewGateway(client)
	g.apiBaseURL = baseURL
	return g
}

// Load fetches the widget configuration for the client key. A usable
// response makes the Gateway act as the loaded widget library.
func (g *Gateway) Load(ctx context.Context, clientKey string) (widget.Factory, error) {
	if clientKey == "" {
		return nil, &widget.InitializationError{Stage: "load", Err: fmt.Errorf("tosspay: client key is empty")}
	}

	var cfg struct {
		ClientKey string `json:"clientKey"`
	}
	if err := g.call(ctx, http.MethodGet, "/v1/widget/config", clientKey, nil, &cfg); err != nil {
		return nil, &widget.InitializationError{Stage: "load", Err: err}
	}

	return &factory{gateway: g, clientKey: clientKey}, nil
}

type factory struct {
	gateway   *Gateway
	clientKey string
}

// Create opens a widget session scoped to one customer key.
func (f *factory) Create(ctx context.Context, customerKey string) (widget.Widget, error) {
	if customerKey == "" {
		customerKey = widget.AnonymousCustomerKey
	}

	var created struct {
		SessionID string `json:"sessionId"`
	}
	payload := map[string]string{"customerKey": customerKey}
	if err := f.gateway.call(ctx, http.MethodPost, "/v1/widget/sessions", f.clientKey, payload, &created); err != nil {
		return nil, &widget.InitializationError{Stage: "create", Err: err}
	}
	if created.SessionID == "" {
		return nil, &widget.InitializationError{Stage: "create", Err: fmt.Errorf("tosspay: provider returned no session id")}
	}

	return &tossWidget{gateway: f.gateway, clientKey: f.clientKey, sessionID: created.SessionID}, nil
}

// tossWidget is one live widget session at the provider.
type tossWidget struct {
	gateway   *Gateway
	clientKey string
	sessionID string
}

func (w *tossWidget) SetAmount(ctx context.Context, amount widget.Amount) error {
	path := fmt.Sprintf("/v1/widget/sessions/%s/amount", w.sessionID)
	if err := w.gateway.call(ctx, http.MethodPost, path, w.clientKey, amount, nil); err != nil {
		return fmt.Errorf("tosspay: amount bind failed: %w", err)
	}
	return nil
}

func (w *tossWidget) RenderPaymentMethods(ctx context.Context, target widget.RenderTarget) error {
	path := fmt.Sprintf("/v1/widget/sessions/%s/payment-methods", w.sessionID)
	if err := w.gateway.call(ctx, http.MethodPost, path, w.clientKey, target, nil); err != nil {
		return fmt.Errorf("tosspay: payment-methods render failed: %w", err)
	}
	return nil
}

func (w *tossWidget) RenderAgreement(ctx context.Context, target widget.RenderTarget) error {
	path := fmt.Sprintf("/v1/widget/sessions/%s/agreement", w.sessionID)
	if err := w.gateway.call(ctx, http.MethodPost, path, w.clientKey, target, nil); err != nil {
		return fmt.Errorf("tosspay: agreement render failed: %w", err)
	}
	return nil
}

func (w *tossWidget) RequestPayment(ctx context.Context, params widget.PaymentParams) (widget.Redirect, error) {
	var redirect widget.Redirect
	path := fmt.Sprintf("/v1/widget/sessions/%s/payment-request", w.sessionID)
	if err := w.gateway.call(ctx, http.MethodPost, path, w.clientKey, params, &redirect); err != nil {
		return widget.Redirect{}, fmt.Errorf("tosspay: payment request failed: %w", err)
	}
	if redirect.CheckoutURL == "" {
		return widget.Redirect{}, fmt.Errorf("tosspay: provider returned no checkout URL")
	}
	return redirect, nil
}

// call issues one provider API request and decodes the response into out
// when out is non-nil. Non-2xx responses surface the provider's
// {code, message} body when decodable.
func (g *Gateway) call(ctx context.Context, method, path, clientKey string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.apiBaseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+clientKey)
	req.Header.Set("Idempotency-Key", uuid.NewString())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http call: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var perr errorBody
		if jsonErr := json.Unmarshal(raw, &perr); jsonErr == nil && perr.Code != "" {
			return fmt.Errorf("provider rejected with %s: %s", perr.Code, perr.Message)
		}
		return fmt.Errorf("provider returned HTTP %d: %s", resp.StatusCode, string(raw))
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
