package hook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iurnickita/poscashup/internal/hook/config"
	"github.com/iurnickita/poscashup/internal/model"
)

type recorder struct {
	name  string
	calls *[]string
	err   error
	panic bool
}

func (r recorder) OnMovementRecorded(_ context.Context, _ model.RequestContext, _ model.CashMovement) error {
	*r.calls = append(*r.calls, r.name)
	if r.panic {
		panic("boom")
	}
	return r.err
}

func (r recorder) OnBeforeClose(_ context.Context, _ model.Terminal, _ model.Cashup, payload *model.ClosePayload) error {
	*r.calls = append(*r.calls, r.name)
	payload.CashCloseInfo = append(payload.CashCloseInfo, model.CashCloseInfo{PaymentMethodID: r.name})
	return r.err
}

func TestPipelineOrder(t *testing.T) {
	var calls []string
	failing := errors.New("hook failed")
	p := NewPipeline(zap.NewNop(),
		recorder{name: "first", calls: &calls},
		recorder{name: "second", calls: &calls, err: failing},
		recorder{name: "third", calls: &calls},
		struct{}{},
	)

	err := p.MovementRecorded(context.Background(), model.RequestContext{}, model.CashMovement{})
	require.ErrorIs(t, err, failing)
	assert.Equal(t, []string{"first", "second"}, calls)

	calls = nil
	payload := model.ClosePayload{}
	err = p.BeforeClose(context.Background(), model.Terminal{}, model.Cashup{}, &payload)
	require.ErrorIs(t, err, failing)
	assert.Equal(t, []string{"first", "second"}, calls)
	require.Len(t, payload.CashCloseInfo, 2)

	// без обработчиков
	require.NoError(t, p.AfterGrouping(context.Background(), model.Cashup{}, &model.OrderGroupResult{}))
	require.NoError(t, p.CashupClosed(context.Background(), model.RequestContext{}, model.Cashup{}, model.CloseOutcome{}))
}

func TestPipelineRecoversPanic(t *testing.T) {
	var calls []string
	p := NewPipeline(zap.NewNop(), recorder{name: "panicky", calls: &calls, panic: true})

	err := p.MovementRecorded(context.Background(), model.RequestContext{}, model.CashMovement{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
}

func TestWebhook(t *testing.T) {
	var got []WebhookEvent
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var event WebhookEvent
		require.NoError(t, json.Unmarshal(body, &event))
		got = append(got, event)
		w.WriteHeader(status)
	}))
	defer srv.Close()

	w := NewWebhook(config.Config{WebhookURL: srv.URL + "/events", WebhookTimeout: time.Second})
	rc := model.RequestContext{TerminalID: "T1", OrganizationID: "ORG1", UserID: "U1"}

	err := w.OnMovementRecorded(context.Background(), rc, model.CashMovement{
		ID:              "TX1",
		CashupID:        "C1",
		PaymentMethodID: "CASH",
		Direction:       model.MovementDeposit,
		DepositAmount:   decimal.NewFromInt(50),
	})
	require.NoError(t, err)

	status = http.StatusInternalServerError
	err = w.OnCashupClosed(context.Background(), rc, model.Cashup{ID: "C1", TerminalID: "T1"}, model.CloseOutcome{
		CloseResult: model.CloseResult{HasDifference: true},
	})
	require.Error(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, EventMovementRecorded, got[0].Event)
	assert.Equal(t, "TX1", got[0].TransactionID)
	require.NotNil(t, got[0].Amount)
	assert.Equal(t, "50", got[0].Amount.String())
	assert.Equal(t, EventCashupClosed, got[1].Event)
	require.NotNil(t, got[1].CloseResult)
	assert.True(t, got[1].CloseResult.HasDifference)
}
