// Package movement создает неизменяемые записи внесений и изъятий наличных.
package movement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iurnickita/poscashup/internal/apperr"
	"github.com/iurnickita/poscashup/internal/model"
	"github.com/iurnickita/poscashup/internal/store"
)

type Request struct {
	// TransactionID задает клиент для безопасного повтора. Пустой - генерируется.
	TransactionID   string
	CashupID        string
	PaymentMethodID string
	Direction       model.MovementDirection
	Amount          decimal.Decimal
	Description     string
	ReasonCode      string
	Foreign         *model.ForeignAmount
}

type Result struct {
	Movement model.CashMovement
	// Replayed - запрос уже был выполнен, возвращена существующая запись
	Replayed bool
}

type Ledger interface {
	RecordMovement(ctx context.Context, tx store.Tx, rc model.RequestContext, req Request) (Result, error)
}

type ledger struct {
	zaplog *zap.Logger
}

func NewLedger(zaplog *zap.Logger) Ledger {
	return &ledger{zaplog: zaplog}
}

const (
	// Точность сумм, как в хранилище
	amountScale = 4
	// Точность курса пересчета
	rateScale = 6
)

func validate(req Request) error {
	switch {
	case req.CashupID == "":
		return apperr.Validation("cashupId is required")
	case req.PaymentMethodID == "":
		return apperr.Validation("paymentMethodId is required")
	case !req.Direction.Valid():
		return apperr.Validation(fmt.Sprintf("type must be %q or %q", model.MovementDeposit, model.MovementDrop))
	case !req.Amount.IsPositive():
		return apperr.Validation("amount must be greater than zero")
	case !req.Amount.Equal(req.Amount.Round(amountScale)):
		return apperr.Validation(fmt.Sprintf("amount must have at most %d decimal places", amountScale))
	case req.Foreign != nil && !req.Foreign.Amount.Equal(req.Foreign.Amount.Round(amountScale)):
		return apperr.Validation(fmt.Sprintf("foreignAmount must have at most %d decimal places", amountScale))
	}
	return nil
}

func (l *ledger) RecordMovement(ctx context.Context, tx store.Tx, rc model.RequestContext, req Request) (Result, error) {
	if err := validate(req); err != nil {
		return Result{}, err
	}

	if req.TransactionID != "" {
		existing, err := tx.GetMovement(ctx, req.TransactionID)
		switch {
		case err == nil:
			return l.replay(existing, req)
		case !errors.Is(err, store.ErrNoRows):
			return Result{}, err
		}
	} else {
		req.TransactionID = uuid.NewString()
	}

	cashup, err := tx.GetCashup(ctx, req.CashupID, true)
	if errors.Is(err, store.ErrNoRows) {
		return Result{}, fmt.Errorf("%w: %s", apperr.ErrCashupNotFound, req.CashupID)
	}
	if err != nil {
		return Result{}, err
	}
	if cashup.IsProcessed {
		return Result{}, fmt.Errorf("%w: %s", apperr.ErrCashupClosed, cashup.ID)
	}

	pm, pmCashup, account, err := l.resolvePaymentMethod(ctx, tx, cashup, req.PaymentMethodID)
	if err != nil {
		return Result{}, err
	}

	glItem := pm.GLItemDeposit
	if req.Direction == model.MovementDrop {
		glItem = pm.GLItemDrop
	}
	if req.ReasonCode != "" {
		reason, err := tx.GetMovementReason(ctx, req.ReasonCode)
		if errors.Is(err, store.ErrNoRows) {
			return Result{}, fmt.Errorf("%w: %s", apperr.ErrUnknownReason, req.ReasonCode)
		}
		if err != nil {
			return Result{}, err
		}
		glItem = reason.GLItemCode
	}

	lineNo, err := tx.NextLineNo(ctx, account.ID)
	if err != nil {
		return Result{}, err
	}

	now := time.Now().UTC()
	movement := model.CashMovement{
		ID:                 req.TransactionID,
		CashupID:           cashup.ID,
		PaymentMethodID:    pm.PaymentMethodID,
		FinancialAccountID: account.ID,
		LineNo:             lineNo,
		Direction:          req.Direction,
		DepositAmount:      decimal.Zero,
		PaymentAmount:      decimal.Zero,
		Currency:           account.Currency,
		Description:        req.Description,
		ReasonCode:         req.ReasonCode,
		GLItemCode:         glItem,
		EventID:            uuid.NewString(),
		CreatedAt:          now,
		CreatedBy:          rc.UserID,
	}
	if req.Direction == model.MovementDeposit {
		movement.DepositAmount = req.Amount
	} else {
		movement.PaymentAmount = req.Amount
	}

	rate, err := conversion(req, account)
	if err != nil {
		return Result{}, err
	}
	if rate != nil {
		movement.ForeignCurrency = rate.ToCurrency
		movement.ForeignAmount = decimal.NewNullDecimal(rate.ForeignAmount)
	}

	if err := tx.InsertMovement(ctx, movement); err != nil {
		return Result{}, err
	}

	event := model.CashupEvent{
		ID:                    movement.EventID,
		CashupID:              cashup.ID,
		PaymentMethodCashupID: pmCashup.ID,
		TransactionID:         movement.ID,
		Direction:             movement.Direction,
		Amount:                req.Amount,
		CreatedAt:             now,
	}
	if err := tx.InsertCashupEvent(ctx, event); err != nil {
		return Result{}, err
	}

	if rate != nil {
		rate.ID = uuid.NewString()
		rate.TransactionID = movement.ID
		rate.CreatedAt = now
		if err := tx.InsertConversionRate(ctx, *rate); err != nil {
			return Result{}, err
		}
	}

	l.zaplog.Info("cash movement recorded",
		zap.String("transaction", movement.ID),
		zap.String("cashup", cashup.ID),
		zap.String("paymentMethod", movement.PaymentMethodID),
		zap.String("type", string(movement.Direction)),
		zap.String("amount", req.Amount.String()),
		zap.Int64("lineNo", lineNo))

	return Result{Movement: movement}, nil
}

// replay возвращает уже созданную запись, если повтор совпадает с исходным запросом.
func (l *ledger) replay(existing model.CashMovement, req Request) (Result, error) {
	if existing.CashupID != req.CashupID ||
		existing.PaymentMethodID != req.PaymentMethodID ||
		existing.Direction != req.Direction ||
		!existing.Amount().Equal(req.Amount) {
		return Result{}, fmt.Errorf("%w: %s", apperr.ErrIdempotencyMismatch, existing.ID)
	}
	l.zaplog.Info("cash movement replayed", zap.String("transaction", existing.ID))
	return Result{Movement: existing, Replayed: true}, nil
}

func (l *ledger) resolvePaymentMethod(ctx context.Context, tx store.Tx, cashup model.Cashup, paymentMethodID string) (model.TerminalPaymentMethod, model.PaymentMethodCashup, model.FinancialAccount, error) {
	var (
		pm       model.TerminalPaymentMethod
		pmCashup model.PaymentMethodCashup
		found    bool
	)

	methods, err := tx.ListTerminalPaymentMethods(ctx, cashup.TerminalID)
	if err != nil {
		return pm, pmCashup, model.FinancialAccount{}, err
	}
	for _, m := range methods {
		if m.PaymentMethodID == paymentMethodID {
			pm, found = m, true
			break
		}
	}
	if !found || pm.FinancialAccountID == "" {
		return pm, pmCashup, model.FinancialAccount{}, fmt.Errorf("%w: %s has no financial account on terminal %s",
			apperr.ErrUnknownPaymentMethod, paymentMethodID, cashup.TerminalID)
	}

	rows, err := tx.ListPaymentMethodCashups(ctx, []string{cashup.ID})
	if err != nil {
		return pm, pmCashup, model.FinancialAccount{}, err
	}
	found = false
	for _, row := range rows {
		if row.PaymentMethodID == paymentMethodID {
			pmCashup, found = row, true
			break
		}
	}
	if !found {
		return pm, pmCashup, model.FinancialAccount{}, fmt.Errorf("%w: %s is not part of cashup %s",
			apperr.ErrUnknownPaymentMethod, paymentMethodID, cashup.ID)
	}

	account, err := tx.GetFinancialAccount(ctx, pm.FinancialAccountID)
	if errors.Is(err, store.ErrNoRows) {
		return pm, pmCashup, account, fmt.Errorf("%w: financial account %s", apperr.ErrUnknownPaymentMethod, pm.FinancialAccountID)
	}
	return pm, pmCashup, account, err
}

// conversion фиксирует курс на момент создания записи. Курс задает пересчет из валюты счета
// в иностранную: foreign = amount * rate.
func conversion(req Request, account model.FinancialAccount) (*model.ConversionRate, error) {
	if req.Foreign == nil || req.Foreign.Currency == "" || req.Foreign.Currency == account.Currency {
		return nil, nil
	}

	rate := req.Foreign.Rate
	foreignAmount := req.Foreign.Amount
	switch {
	case rate.IsPositive() && foreignAmount.IsZero():
		foreignAmount = req.Amount.Mul(rate).Round(2)
	case !rate.IsPositive() && foreignAmount.IsPositive():
		rate = foreignAmount.DivRound(req.Amount, rateScale)
	case !rate.IsPositive():
		return nil, apperr.Validation("foreign currency requires an amount or a rate")
	}

	return &model.ConversionRate{
		FromCurrency:  account.Currency,
		ToCurrency:    req.Foreign.Currency,
		Rate:          rate,
		ForeignAmount: foreignAmount,
	}, nil
}
