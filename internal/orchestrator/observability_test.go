package orchestrator

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/checkout-orchestrator/internal/confirm"
)

// Metrics live on the default registry, so tests assert deltas rather than
// absolute values.

func TestMetrics_StartIncrementsCounters(t *testing.T) {
	h := newHarness(t)
	startedBefore := testutil.ToFloat64(GetSessionsStartedTotal())
	readyBefore := testutil.ToFloat64(GetSessionsReadyTotal())

	_, err := h.orch.Start(context.Background(), validEntry())
	require.NoError(t, err)

	assert.Equal(t, startedBefore+1, testutil.ToFloat64(GetSessionsStartedTotal()))
	assert.Equal(t, readyBefore+1, testutil.ToFloat64(GetSessionsReadyTotal()))
}

func TestMetrics_InvalidIntentCountsAsError(t *testing.T) {
	h := newHarness(t)
	errorsBefore := testutil.ToFloat64(GetSessionOutcomesTotal().WithLabelValues("error"))
	readyBefore := testutil.ToFloat64(GetSessionsReadyTotal())

	_, err := h.orch.Start(context.Background(), entryParams(map[string]string{"amount": "22000"}))
	require.Error(t, err)

	assert.Equal(t, errorsBefore+1, testutil.ToFloat64(GetSessionOutcomesTotal().WithLabelValues("error")))
	assert.Equal(t, readyBefore, testutil.ToFloat64(GetSessionsReadyTotal()), "a failed start never counts as ready")
}

func TestMetrics_ConfirmationOutcomes(t *testing.T) {
	h := newHarness(t)
	confirmedBefore := testutil.ToFloat64(GetSessionOutcomesTotal().WithLabelValues("confirmed"))
	failedBefore := testutil.ToFloat64(GetSessionOutcomesTotal().WithLabelValues("failed"))

	h.confirmer.On("Confirm", mock.Anything, mock.Anything, mock.Anything).
		Return(confirm.Result{Confirmed: true}, nil).Once()
	_, err := h.orch.HandleSuccessReturn(context.Background(), entryParams(map[string]string{
		"orderId": "ORD-M1", "amount": "1000", "paymentKey": "pk_m1",
	}))
	require.NoError(t, err)

	h.confirmer.On("Confirm", mock.Anything, mock.Anything, mock.Anything).
		Return(confirm.Result{Code: "INVALID_CARD", Message: "유효하지 않은 카드입니다."}, nil).Once()
	_, err = h.orch.HandleSuccessReturn(context.Background(), entryParams(map[string]string{
		"orderId": "ORD-M2", "amount": "1000", "paymentKey": "pk_m2",
	}))
	require.NoError(t, err)

	assert.Equal(t, confirmedBefore+1, testutil.ToFloat64(GetSessionOutcomesTotal().WithLabelValues("confirmed")))
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(GetSessionOutcomesTotal().WithLabelValues("failed")))
}
