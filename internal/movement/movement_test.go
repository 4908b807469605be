package movement

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iurnickita/poscashup/internal/apperr"
	"github.com/iurnickita/poscashup/internal/cashup"
	"github.com/iurnickita/poscashup/internal/model"
	"github.com/iurnickita/poscashup/internal/store"
	"github.com/iurnickita/poscashup/internal/store/storetest"
)

type fixture struct {
	store   *store.MemStore
	cashups cashup.Cashups
	ledger  Ledger
}

func newFixture(t *testing.T) fixture {
	f := fixture{
		store:   storetest.NewStore(),
		cashups: cashup.NewCashups(zap.NewNop()),
		ledger:  NewLedger(zap.NewNop()),
	}
	ctx := context.Background()
	storetest.Tx(t, f.store, func(tx store.Tx) error {
		terminal, err := tx.GetTerminal(ctx, storetest.Standalone)
		if err != nil {
			return err
		}
		_, err = f.cashups.Upsert(ctx, tx, storetest.Context(terminal.ID), terminal,
			storetest.Cashup("C1", storetest.Standalone, 0, 0))
		return err
	})
	return f
}

func (f fixture) record(req Request) (Result, error) {
	ctx := context.Background()
	var result Result
	err := f.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		result, err = f.ledger.RecordMovement(ctx, tx, storetest.Context(storetest.Standalone), req)
		return err
	})
	return result, err
}

func (f fixture) movements(t *testing.T) []model.CashMovement {
	t.Helper()
	var movements []model.CashMovement
	storetest.Tx(t, f.store, func(tx store.Tx) error {
		var err error
		movements, err = tx.ListMovements(context.Background(), "C1")
		return err
	})
	return movements
}

func deposit(amount int64) Request {
	return Request{
		CashupID:        "C1",
		PaymentMethodID: storetest.Cash,
		Direction:       model.MovementDeposit,
		Amount:          decimal.NewFromInt(amount),
		Description:     "float",
	}
}

func TestRecordDeposit(t *testing.T) {
	f := newFixture(t)

	result, err := f.record(deposit(50))
	require.NoError(t, err)
	assert.False(t, result.Replayed)
	assert.NotEmpty(t, result.Movement.ID)
	assert.NotEmpty(t, result.Movement.EventID)

	movements := f.movements(t)
	require.Len(t, movements, 1)
	m := movements[0]
	assert.Equal(t, "50", m.DepositAmount.String())
	assert.True(t, m.PaymentAmount.IsZero())
	assert.Equal(t, storetest.Account(storetest.Standalone, storetest.Cash), m.FinancialAccountID)
	assert.Equal(t, storetest.GLDeposit, m.GLItemCode)
	assert.Equal(t, "EUR", m.Currency)
	assert.Equal(t, storetest.User, m.CreatedBy)
	assert.Equal(t, 1, f.store.CountEvents(m.ID))
	assert.Empty(t, f.store.ConversionRates(m.ID))
}

func TestRecordDropWithReason(t *testing.T) {
	f := newFixture(t)

	first, err := f.record(deposit(10))
	require.NoError(t, err)

	req := deposit(20)
	req.Direction = model.MovementDrop
	req.ReasonCode = storetest.ReasonChange
	second, err := f.record(req)
	require.NoError(t, err)

	assert.Equal(t, "20", second.Movement.PaymentAmount.String())
	assert.True(t, second.Movement.DepositAmount.IsZero())
	assert.Equal(t, storetest.GLChange, second.Movement.GLItemCode)
	assert.Greater(t, second.Movement.LineNo, first.Movement.LineNo)

	req.ReasonCode = "UNKNOWN"
	_, err = f.record(req)
	require.ErrorIs(t, err, apperr.ErrUnknownReason)
}

func TestRecordRetryIsSafe(t *testing.T) {
	f := newFixture(t)

	req := deposit(50)
	req.TransactionID = "TX-1"

	first, err := f.record(req)
	require.NoError(t, err)
	second, err := f.record(req)
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.Movement.ID, second.Movement.ID)
	assert.Equal(t, first.Movement.EventID, second.Movement.EventID)
	require.Len(t, f.movements(t), 1)
	assert.Equal(t, 1, f.store.CountEvents("TX-1"))

	// тот же ключ с другой суммой
	req.Amount = decimal.NewFromInt(60)
	_, err = f.record(req)
	require.ErrorIs(t, err, apperr.ErrIdempotencyMismatch)
	require.Len(t, f.movements(t), 1)
}

func TestRecordForeignCurrency(t *testing.T) {
	f := newFixture(t)

	req := deposit(100)
	req.Foreign = &model.ForeignAmount{Currency: "USD", Amount: decimal.RequireFromString("108.50")}
	result, err := f.record(req)
	require.NoError(t, err)

	assert.Equal(t, "USD", result.Movement.ForeignCurrency)
	require.True(t, result.Movement.ForeignAmount.Valid)
	rates := f.store.ConversionRates(result.Movement.ID)
	require.Len(t, rates, 1)
	assert.Equal(t, "EUR", rates[0].FromCurrency)
	assert.Equal(t, "USD", rates[0].ToCurrency)
	assert.Equal(t, "1.085", rates[0].Rate.String())

	// курс задан явно
	req = deposit(10)
	req.Foreign = &model.ForeignAmount{Currency: "USD", Rate: decimal.RequireFromString("1.1")}
	result, err = f.record(req)
	require.NoError(t, err)
	assert.Equal(t, "11", result.Movement.ForeignAmount.Decimal.String())

	// та же валюта, что у счета
	req = deposit(10)
	req.Foreign = &model.ForeignAmount{Currency: "EUR", Amount: decimal.NewFromInt(10)}
	result, err = f.record(req)
	require.NoError(t, err)
	assert.Empty(t, f.store.ConversionRates(result.Movement.ID))

	req = deposit(10)
	req.Foreign = &model.ForeignAmount{Currency: "USD"}
	_, err = f.record(req)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestRecordPreconditions(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name string
		req  func(r *Request)
		err  error
		kind apperr.Kind
	}{
		{name: "zero amount", req: func(r *Request) { r.Amount = decimal.Zero }, kind: apperr.KindValidation},
		{name: "negative amount", req: func(r *Request) { r.Amount = decimal.NewFromInt(-5) }, kind: apperr.KindValidation},
		{name: "bad type", req: func(r *Request) { r.Direction = "refund" }, kind: apperr.KindValidation},
		{name: "too precise amount", req: func(r *Request) { r.Amount = decimal.RequireFromString("10.00005") }, kind: apperr.KindValidation},
		{name: "unknown method", req: func(r *Request) { r.PaymentMethodID = "VOUCHER" }, err: apperr.ErrUnknownPaymentMethod},
		{name: "unknown cashup", req: func(r *Request) { r.CashupID = "C404" }, err: apperr.ErrCashupNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := deposit(5)
			tc.req(&req)
			_, err := f.record(req)
			require.Error(t, err)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
			} else {
				assert.Equal(t, tc.kind, apperr.KindOf(err))
			}
		})
	}
	assert.Empty(t, f.movements(t))

	// лишние нули после запятой допустимы
	req := deposit(5)
	req.Amount = decimal.RequireFromString("10.50000")
	_, err := f.record(req)
	require.NoError(t, err)

	storetest.Tx(t, f.store, func(tx store.Tx) error {
		return f.cashups.MarkProcessed(context.Background(), tx, model.Cashup{ID: "C1"})
	})
	_, err = f.record(deposit(5))
	require.ErrorIs(t, err, apperr.ErrCashupClosed)
}
