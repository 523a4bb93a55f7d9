package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/checkout-orchestrator/internal/confirm"
	"github.com/yourorg/checkout-orchestrator/internal/dispatch"
	"github.com/yourorg/checkout-orchestrator/internal/monitor"
	"github.com/yourorg/checkout-orchestrator/internal/orchestrator"
	"github.com/yourorg/checkout-orchestrator/internal/orderstore"
	"github.com/yourorg/checkout-orchestrator/internal/policy"
	"github.com/yourorg/checkout-orchestrator/internal/renderer"
	"github.com/yourorg/checkout-orchestrator/internal/reporting"
	"github.com/yourorg/checkout-orchestrator/internal/session"
	widgetmock "github.com/yourorg/checkout-orchestrator/internal/widget/mock"
)

// loopbackConfirmer lets the orchestrator's confirmation calls go through a
// confirm.Service pointed back at this very router, so the contract monitor
// and the order store's amount check are exercised end to end. The service
// can only be built once the test server is listening.
type loopbackConfirmer struct {
	svc *confirm.Service
}

func (l *loopbackConfirmer) Confirm(ctx context.Context, sessionID string, req confirm.Request) (confirm.Result, error) {
	return l.svc.Confirm(ctx, sessionID, req)
}

type testEnv struct {
	ts     *httptest.Server
	store  *orderstore.Store
	loader *widgetmock.MockLoader
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	loader := &widgetmock.MockLoader{}
	store := orderstore.NewStore()
	recorder := reporting.NewRecorder()
	confirmer := &loopbackConfirmer{}

	recovery, err := policy.NewRecoveryPolicy(policy.DefaultRules())
	require.NoError(t, err)
	contractMonitor, err := monitor.NewConfirmRequestMonitor()
	require.NoError(t, err)

	orch := orchestrator.New(
		loader,
		renderer.New(),
		dispatch.New(dispatch.ReturnURLs{
			Success: "http://localhost/checkout/success",
			Fail:    "http://localhost/checkout/fail",
		}),
		confirmer,
		recovery,
		session.NewRegistry(),
		recorder,
		orchestrator.Config{ClientKey: "test_ck_abc"},
	)

	router := setupRouter(newServer(orch, store, contractMonitor, recorder))
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	confirmer.svc = confirm.NewService(ts.Client(), ts.URL+"/api/payments/confirm", nil)

	return &testEnv{ts: ts, store: store, loader: loader}
}

func getJSON(t *testing.T, url string) (int, map[string]interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func postJSON(t *testing.T, url string, payload interface{}) (int, map[string]interface{}) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestStartCheckout_Valid(t *testing.T) {
	env := setupTestEnv(t)

	code, body := getJSON(t, env.ts.URL+"/checkout/start?orderId=ORD1&orderName=Seoul+Tour&amount=22000")
	assert.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, body["sessionId"])
	assert.Equal(t, "READY_FOR_PAYMENT", body["state"])
	assert.Equal(t, "ORD1", body["orderId"])
	assert.Equal(t, float64(22000), body["amount"])

	// The order is registered for the later confirmation's amount check.
	rec, err := env.store.Get("ORD1")
	require.NoError(t, err)
	assert.Equal(t, int64(22000), rec.Amount)
}

func TestStartCheckout_MissingOrderID(t *testing.T) {
	env := setupTestEnv(t)

	code, body := getJSON(t, env.ts.URL+"/checkout/start?orderName=Seoul+Tour&amount=22000")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "ERROR", body["state"])
	failure := body["failure"].(map[string]interface{})
	assert.Equal(t, "주문 정보가 올바르지 않습니다.", failure["message"])
	assert.Equal(t, 0, env.loader.LoadCount, "an invalid intent must not load the widget")
}

func TestSubmit_FullFlowAndDoubleSubmit(t *testing.T) {
	env := setupTestEnv(t)

	_, body := getJSON(t, env.ts.URL+"/checkout/start?orderId=ORD1&orderName=Seoul+Tour&amount=22000")
	sessionID := body["sessionId"].(string)

	code, submitBody := postJSON(t, env.ts.URL+"/checkout/"+sessionID+"/submit", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, submitBody["checkoutUrl"])

	// The session was evicted on dispatch, so a double submit is rejected.
	code, _ = postJSON(t, env.ts.URL+"/checkout/"+sessionID+"/submit", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestSubmit_UnknownSession(t *testing.T) {
	env := setupTestEnv(t)

	code, _ := postJSON(t, env.ts.URL+"/checkout/no-such-session/submit", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestSuccessReturn_ConfirmsEndToEnd(t *testing.T) {
	env := setupTestEnv(t)

	_, _ = getJSON(t, env.ts.URL+"/checkout/start?orderId=ORD1&orderName=Seoul+Tour&amount=22000")

	code, body := getJSON(t, env.ts.URL+"/checkout/success?orderId=ORD1&amount=22000&paymentKey=pk_live_1")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "CONFIRMED", body["status"])

	rec, err := env.store.Get("ORD1")
	require.NoError(t, err)
	assert.Equal(t, "pk_live_1", rec.ConfirmedKey)
}

func TestSuccessReturn_TamperedAmountFailsConfirmation(t *testing.T) {
	env := setupTestEnv(t)

	_, _ = getJSON(t, env.ts.URL+"/checkout/start?orderId=ORD1&orderName=Seoul+Tour&amount=22000")

	// The redirect echoes a different amount than the registered order.
	code, body := getJSON(t, env.ts.URL+"/checkout/success?orderId=ORD1&amount=1000&paymentKey=pk_live_1")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "FAILED", body["status"])
	failure := body["failure"].(map[string]interface{})
	assert.Equal(t, "AMOUNT_MISMATCH", failure["code"])

	rec, err := env.store.Get("ORD1")
	require.NoError(t, err)
	assert.Empty(t, rec.ConfirmedKey, "a tampered confirmation must not mark the order confirmed")
}

func TestSuccessReturn_MalformedParams(t *testing.T) {
	env := setupTestEnv(t)

	code, body := getJSON(t, env.ts.URL+"/checkout/success?orderId=ORD1&amount=abc&paymentKey=pk")
	assert.Equal(t, http.StatusBadRequest, code)
	failure := body["failure"].(map[string]interface{})
	assert.Equal(t, "결제 승인 중 오류가 발생했습니다.", failure["message"])
}

func TestFailReturn_KnownAndUnknownCodes(t *testing.T) {
	env := setupTestEnv(t)

	code, body := getJSON(t, env.ts.URL+"/checkout/fail?code=PAY_PROCESS_CANCELED&orderId=ORD1")
	assert.Equal(t, http.StatusOK, code)
	failure := body["failure"].(map[string]interface{})
	assert.Equal(t, "결제가 취소되었습니다.", failure["message"])
	recovery := body["recovery"].(map[string]interface{})
	assert.Equal(t, true, recovery["offerRetry"])

	_, body = getJSON(t, env.ts.URL+"/checkout/fail?code=XYZ_UNKNOWN")
	failure = body["failure"].(map[string]interface{})
	assert.Equal(t, "결제 중 오류가 발생했습니다.", failure["message"])
}

func TestConfirmEndpoint_ContractViolations(t *testing.T) {
	env := setupTestEnv(t)

	code, body := postJSON(t, env.ts.URL+"/api/payments/confirm", map[string]interface{}{
		"orderId": "ORD1",
		"amount":  "22000", // string, not integer
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_REQUEST", body["code"])
	assert.Contains(t, body["message"], "Validation errors")
}

func TestConfirmEndpoint_UnknownOrder(t *testing.T) {
	env := setupTestEnv(t)

	code, body := postJSON(t, env.ts.URL+"/api/payments/confirm", map[string]interface{}{
		"orderId": "NOPE", "amount": 22000, "paymentKey": "pk",
	})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "ORDER_NOT_FOUND", body["code"])
}

func TestConfirmEndpoint_ReplayIsIdempotent(t *testing.T) {
	env := setupTestEnv(t)
	require.NoError(t, env.store.Register("ORD1", "Seoul Tour", 22000))

	payload := map[string]interface{}{"orderId": "ORD1", "amount": 22000, "paymentKey": "pk_1"}
	code, _ := postJSON(t, env.ts.URL+"/api/payments/confirm", payload)
	assert.Equal(t, http.StatusOK, code)

	// Same payment key again: still confirmed, no state change.
	code, body := postJSON(t, env.ts.URL+"/api/payments/confirm", payload)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "DONE", body["status"])

	// A different payment key for a confirmed order is rejected.
	code, body = postJSON(t, env.ts.URL+"/api/payments/confirm", map[string]interface{}{
		"orderId": "ORD1", "amount": 22000, "paymentKey": "pk_other",
	})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "ALREADY_CONFIRMED", body["code"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := setupTestEnv(t)
	_, _ = getJSON(t, env.ts.URL+"/checkout/start?orderId=ORD1&orderName=Seoul+Tour&amount=22000")

	resp, err := http.Get(env.ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	buf := new(bytes.Buffer)
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "checkout_sessions_started_total")
}

func TestRetrospectiveEndpoint(t *testing.T) {
	env := setupTestEnv(t)
	_, _ = getJSON(t, env.ts.URL+"/checkout/start?orderId=ORD1&orderName=Seoul+Tour&amount=22000")
	_, _ = getJSON(t, env.ts.URL+"/checkout/success?orderId=ORD1&amount=22000&paymentKey=pk_1")

	code, body := getJSON(t, env.ts.URL+"/internal/retrospective")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["confirmedSessions"])
}
