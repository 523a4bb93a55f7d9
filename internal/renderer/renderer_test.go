package renderer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/checkout-orchestrator/internal/widget"
	widgetmock "github.com/yourorg/checkout-orchestrator/internal/widget/mock"
)

func TestRender_BindsAmountBeforeRenders(t *testing.T) {
	w := widgetmock.NewMockWidget()

	err := New().Render(context.Background(), w, widget.Amount{Currency: "KRW", Value: 22000})
	require.NoError(t, err)

	calls := w.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "SetAmount", calls[0], "amount bind must be the first widget call")
	assert.ElementsMatch(t, []string{"RenderPaymentMethods", "RenderAgreement"}, calls[1:])
	assert.Equal(t, widget.Amount{Currency: "KRW", Value: 22000}, w.BoundAmount)
}

func TestRender_RendersRunConcurrently(t *testing.T) {
	// Each render blocks until the other has started; the test only
	// completes if both are in flight at once.
	var mu sync.Mutex
	started := make(map[string]chan struct{}, 2)
	started["pm"] = make(chan struct{})
	started["ag"] = make(chan struct{})

	wait := func(self, other string) error {
		mu.Lock()
		close(started[self])
		mu.Unlock()
		select {
		case <-started[other]:
			return nil
		case <-time.After(2 * time.Second):
			return errors.New("peer render never started")
		}
	}

	w := widgetmock.NewMockWidget()
	w.RenderPaymentMethodsFunc = func(ctx context.Context, target widget.RenderTarget) error {
		return wait("pm", "ag")
	}
	w.RenderAgreementFunc = func(ctx context.Context, target widget.RenderTarget) error {
		return wait("ag", "pm")
	}

	err := New().Render(context.Background(), w, widget.Amount{Currency: "KRW", Value: 1000})
	require.NoError(t, err)
}

func TestRender_AmountBindFailureSkipsRenders(t *testing.T) {
	w := widgetmock.NewMockWidget()
	w.SetAmountFunc = func(ctx context.Context, amount widget.Amount) error {
		return errors.New("widget rejected amount")
	}

	err := New().Render(context.Background(), w, widget.Amount{Currency: "KRW", Value: 1000})
	require.Error(t, err)
	assert.Equal(t, []string{"SetAmount"}, w.Calls(), "no render may begin after a failed bind")
}

func TestRender_PaymentMethodsFailure(t *testing.T) {
	w := widgetmock.NewMockWidget()
	w.RenderPaymentMethodsFunc = func(ctx context.Context, target widget.RenderTarget) error {
		return errors.New("embed failed")
	}

	err := New().Render(context.Background(), w, widget.Amount{Currency: "KRW", Value: 1000})
	var rerr *RenderError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "payment-methods", rerr.View)
}

func TestRender_AgreementFailure(t *testing.T) {
	w := widgetmock.NewMockWidget()
	w.RenderAgreementFunc = func(ctx context.Context, target widget.RenderTarget) error {
		return errors.New("embed failed")
	}

	err := New().Render(context.Background(), w, widget.Amount{Currency: "KRW", Value: 1000})
	var rerr *RenderError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "agreement", rerr.View)
}

func TestRender_NilWidget(t *testing.T) {
	err := New().Render(context.Background(), nil, widget.Amount{Currency: "KRW", Value: 1000})
	require.Error(t, err)
}

func TestRender_CustomTargets(t *testing.T) {
	var gotPM, gotAG widget.RenderTarget
	w := widgetmock.NewMockWidget()
	w.RenderPaymentMethodsFunc = func(ctx context.Context, target widget.RenderTarget) error {
		gotPM = target
		return nil
	}
	w.RenderAgreementFunc = func(ctx context.Context, target widget.RenderTarget) error {
		gotAG = target
		return nil
	}

	r := NewWithTargets(
		widget.RenderTarget{Selector: "#pm-box", Variant: "BRANDPAY"},
		widget.RenderTarget{Selector: "#terms", Variant: "AGREEMENT"},
	)
	require.NoError(t, r.Render(context.Background(), w, widget.Amount{Currency: "KRW", Value: 500}))
	assert.Equal(t, "#pm-box", gotPM.Selector)
	assert.Equal(t, "#terms", gotAG.Selector)
}
