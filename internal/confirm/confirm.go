// Package confirm performs the server-side confirmation step after the
// external payment service redirects back. Exactly one confirmation request
// is issued per session; a non-success response is an authoritative failure
// and is never retried.
package confirm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/yourorg/checkout-orchestrator/internal/confirm/circuitbreaker"
	"github.com/yourorg/checkout-orchestrator/internal/failcode"
)

const breakerEndpoint = "confirm"

// ErrAlreadyIssued is returned when a second confirmation is attempted for
// the same session. No network traffic happens for the duplicate.
var ErrAlreadyIssued = errors.New("confirm: confirmation already issued for this session")

// Request is the confirmation payload sent to the backend endpoint. Amount
// is the value echoed by the success redirect, in the minor currency unit.
type Request struct {
	OrderID    string `json:"orderId"`
	Amount     int64  `json:"amount"`
	PaymentKey string `json:"paymentKey"`
}

// Result is the confirmation outcome: either Confirmed, or a failure with a
// provider code and message.
type Result struct {
	Confirmed bool
	Code      string
	Message   string
}

// failed builds a failure Result, falling back to the classifier message
// when the provider body carried no message.
func failed(code, message string) Result {
	if message == "" {
		message = failcode.Classify(code)
	}
	return Result{Confirmed: false, Code: code, Message: message}
}

// Service issues confirmation requests against the configured backend
// endpoint. It enforces at-most-once delivery per session and fails fast
// when the endpoint's circuit is open.
type Service struct {
	httpClient *http.Client
	endpoint   string
	breaker    *circuitbreaker.CircuitBreaker

	mu     sync.Mutex
	issued map[string]struct{} // session IDs that already had their one attempt
}

// NewService creates a Service. A nil client gets a default with a timeout;
// a nil breaker gets default settings.
func NewService(client *http.Client, endpoint string, breaker *circuitbreaker.CircuitBreaker) *Service {
	if endpoint == "" {
		panic("confirm: endpoint is required")
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if breaker == nil {
		breaker = circuitbreaker.New(circuitbreaker.Config{})
	}
	return &Service{
		httpClient: client,
		endpoint:   endpoint,
		breaker:    breaker,
		issued:     make(map[string]struct{}),
	}
}

// Confirm issues the session's single confirmation request. The latch is
// taken before any network traffic, so even a transport failure consumes the
// session's one attempt; a user-initiated retry starts a new session.
//
// Provider rejections and transport errors are both authoritative failure
// Results, not Go errors. The only error return is the duplicate-call
// guard.
func (s *Service) Confirm(ctx context.Context, sessionID string, req Request) (Result, error) {
	s.mu.Lock()
	if _, dup := s.issued[sessionID]; dup {
		s.mu.Unlock()
		return Result{}, ErrAlreadyIssued
	}
	s.issued[sessionID] = struct{}{}
	s.mu.Unlock()

	if !s.breaker.Allow(breakerEndpoint) {
		return failed(failcode.CodeConfirmError, ""), nil
	}

	body, err := json.Marshal(req)
	if err != nil {
		return failed(failcode.CodeConfirmError, ""), nil
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return failed(failcode.CodeConfirmError, ""), nil
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		s.breaker.RecordFailure(breakerEndpoint)
		return failed(failcode.CodeConfirmError, ""), nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		s.breaker.RecordFailure(breakerEndpoint)
		return failed(failcode.CodeConfirmError, ""), nil
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		s.breaker.RecordSuccess(breakerEndpoint)
		return Result{Confirmed: true}, nil
	}

	// 5xx means the endpoint itself is unhealthy; a 4xx rejection is the
	// endpoint doing its job.
	if resp.StatusCode >= http.StatusInternalServerError {
		s.breaker.RecordFailure(breakerEndpoint)
	} else {
		s.breaker.RecordSuccess(breakerEndpoint)
	}

	var errBody struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if jsonErr := json.Unmarshal(raw, &errBody); jsonErr == nil && errBody.Code != "" {
		return failed(errBody.Code, errBody.Message), nil
	}
	log.Printf("confirm: endpoint returned HTTP %d with undecodable body for session %s", resp.StatusCode, sessionID)
	return failed(failcode.CodeConfirmError, ""), nil
}
