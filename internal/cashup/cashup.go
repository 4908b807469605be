// Package cashup владеет строками смен и их сумм по способам оплаты.
package cashup

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

type Cashups interface {
	// Upsert создает смену при первом обращении, иначе обновляет накопительные поля.
	// Повторный вызов с тем же payload не меняет состояние.
	Upsert(ctx context.Context, tx store.Tx, rc model.RequestContext, terminal model.Terminal, payload model.Cashup) (model.Cashup, error)
	// Get читает смену вместе со строками способов оплаты и налогами.
	Get(ctx context.Context, tx store.Tx, id string, forUpdate bool) (model.Cashup, error)
	// Current возвращает открытую смену терминала. duplicates > 0 означает
	// нарушение инварианта: открытых смен больше одной.
	Current(ctx context.Context, tx store.Tx, terminalID string, forUpdate bool) (cashup model.Cashup, duplicates int, err error)
	LastProcessed(ctx context.Context, tx store.Tx, terminalID string) (model.Cashup, error)
	MarkProcessed(ctx context.Context, tx store.Tx, cashup model.Cashup) error
}

type cashups struct {
	zaplog *zap.Logger
}

func NewCashups(zaplog *zap.Logger) Cashups {
	return &cashups{zaplog: zaplog}
}

// Пространство имен для детерминированных id налоговых строк
var taxNamespace = uuid.MustParse("6f1c7c1e-5a0e-4d55-9a3b-1c1e2d9b7f40")

func (c *cashups) Upsert(ctx context.Context, tx store.Tx, rc model.RequestContext, terminal model.Terminal, payload model.Cashup) (model.Cashup, error) {
	if payload.ID == "" {
		return model.Cashup{}, apperr.Validation("cashupId is required")
	}

	stored, err := tx.GetCashup(ctx, payload.ID, true)
	switch {
	case errors.Is(err, store.ErrNoRows):
		err = c.create(ctx, tx, rc, terminal, payload)
	case err != nil:
		return model.Cashup{}, err
	default:
		err = c.update(ctx, tx, rc, terminal, stored, payload)
	}
	if err != nil {
		return model.Cashup{}, err
	}

	if err := c.upsertTaxes(ctx, tx, payload); err != nil {
		return model.Cashup{}, err
	}

	return c.Get(ctx, tx, payload.ID, false)
}

func (c *cashups) create(ctx context.Context, tx store.Tx, rc model.RequestContext, terminal model.Terminal, payload model.Cashup) error {
	now := time.Now().UTC()

	cashup := payload
	cashup.TerminalID = terminal.ID
	cashup.ClientID = firstNonEmpty(payload.ClientID, rc.ClientID, terminal.ClientID)
	cashup.OrganizationID = firstNonEmpty(payload.OrganizationID, rc.OrganizationID, terminal.OrganizationID)
	cashup.UserID = firstNonEmpty(payload.UserID, rc.UserID)
	cashup.IsProcessed = false
	cashup.ParentCashupID = ""
	cashup.CloseDate = nil
	cashup.Outcome = nil
	cashup.CreatedAt = now
	cashup.UpdatedAt = now

	err := tx.InsertCashup(ctx, cashup)
	if errors.Is(err, store.ErrAlreadyExists) {
		// параллельное открытие с тем же id, вызывающий повторяет как обновление
		return fmt.Errorf("insert cashup %s: %w", cashup.ID, err)
	}
	if errors.Is(err, store.ErrCurrentCashupExists) {
		c.zaplog.Error("open cashup already exists for terminal",
			zap.String("cashup", cashup.ID),
			zap.String("terminal", terminal.ID))
		return apperr.Wrap(apperr.KindIntegrity, apperr.ErrDataIntegrity,
			fmt.Sprintf("terminal %s already has an open cashup", terminal.ID))
	}
	if err != nil {
		return err
	}

	// Набор способов оплаты фиксируется конфигурацией терминала на момент открытия
	methods, err := tx.ListTerminalPaymentMethods(ctx, terminal.ID)
	if err != nil {
		return err
	}
	for _, pm := range methods {
		row := model.PaymentMethodCashup{
			ID:              uuid.NewString(),
			CashupID:        cashup.ID,
			PaymentMethodID: pm.PaymentMethodID,
			Name:            pm.Name,
			Currency:        pm.Currency,
			Rate:            decimal.NewFromInt(1),
		}
		if sent, ok := payload.PaymentMethod(pm.PaymentMethodID); ok {
			if sent.ID != "" {
				row.ID = sent.ID
			}
			row.StartingCash = sent.StartingCash
			row.PaymentTotals = sent.PaymentTotals
			if sent.Rate.IsPositive() {
				row.Rate = sent.Rate
			}
		}
		if err := tx.InsertPaymentMethodCashup(ctx, row); err != nil {
			return err
		}
	}
	c.skipUnknownMethods(payload, methods)
	return nil
}

func (c *cashups) update(ctx context.Context, tx store.Tx, rc model.RequestContext, terminal model.Terminal, stored model.Cashup, payload model.Cashup) error {
	if stored.TerminalID != terminal.ID {
		c.zaplog.Error("cashup belongs to another terminal",
			zap.String("cashup", stored.ID),
			zap.String("terminal", terminal.ID),
			zap.String("owner", stored.TerminalID))
		return apperr.Wrap(apperr.KindIntegrity, apperr.ErrDataIntegrity,
			fmt.Sprintf("cashup %s belongs to terminal %s", stored.ID, stored.TerminalID))
	}
	if stored.IsProcessed {
		return fmt.Errorf("%w: %s", apperr.ErrCashupClosed, stored.ID)
	}

	// last-write-wins по скалярным полям
	stored.UserID = firstNonEmpty(payload.UserID, rc.UserID, stored.UserID)
	stored.NetSales = payload.NetSales
	stored.GrossSales = payload.GrossSales
	stored.NetReturns = payload.NetReturns
	stored.GrossReturns = payload.GrossReturns
	stored.TotalTransactions = payload.TotalTransactions
	stored.UpdatedAt = time.Now().UTC()
	if err := tx.UpdateCashup(ctx, stored); err != nil {
		return err
	}

	if len(payload.PaymentMethods) == 0 {
		return nil
	}
	rows, err := tx.ListPaymentMethodCashups(ctx, []string{stored.ID})
	if err != nil {
		return err
	}
	existing := make(map[string]model.PaymentMethodCashup, len(rows))
	for _, row := range rows {
		existing[row.PaymentMethodID] = row
	}
	for _, sent := range payload.PaymentMethods {
		row, ok := existing[sent.PaymentMethodID]
		if !ok {
			c.zaplog.Warn("payment method is not part of the cashup, skipped",
				zap.String("cashup", stored.ID),
				zap.String("paymentMethod", sent.PaymentMethodID))
			continue
		}
		row.StartingCash = sent.StartingCash
		row.PaymentTotals = sent.PaymentTotals
		if sent.Rate.IsPositive() {
			row.Rate = sent.Rate
		}
		if err := tx.UpdatePaymentMethodCashup(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

func (c *cashups) skipUnknownMethods(payload model.Cashup, methods []model.TerminalPaymentMethod) {
	for _, sent := range payload.PaymentMethods {
		known := false
		for _, pm := range methods {
			if pm.PaymentMethodID == sent.PaymentMethodID {
				known = true
				break
			}
		}
		if !known {
			c.zaplog.Warn("payment method is not configured for terminal, skipped",
				zap.String("cashup", payload.ID),
				zap.String("paymentMethod", sent.PaymentMethodID))
		}
	}
}

func (c *cashups) upsertTaxes(ctx context.Context, tx store.Tx, payload model.Cashup) error {
	for _, tax := range payload.Taxes {
		tax.CashupID = payload.ID
		if tax.OrderType == "" {
			tax.OrderType = model.OrderTypeSale
		}
		if tax.ID == "" {
			tax.ID = uuid.NewSHA1(taxNamespace, []byte(payload.ID+"/"+tax.OrderType+"/"+tax.Name)).String()
		}
		if err := tx.UpsertCashupTax(ctx, tax); err != nil {
			return err
		}
	}
	return nil
}

func (c *cashups) Get(ctx context.Context, tx store.Tx, id string, forUpdate bool) (model.Cashup, error) {
	cashup, err := tx.GetCashup(ctx, id, forUpdate)
	if errors.Is(err, store.ErrNoRows) {
		return model.Cashup{}, fmt.Errorf("%w: %s", apperr.ErrCashupNotFound, id)
	}
	if err != nil {
		return model.Cashup{}, err
	}
	return c.withDetails(ctx, tx, cashup)
}

func (c *cashups) withDetails(ctx context.Context, tx store.Tx, cashup model.Cashup) (model.Cashup, error) {
	var err error
	if cashup.PaymentMethods, err = tx.ListPaymentMethodCashups(ctx, []string{cashup.ID}); err != nil {
		return model.Cashup{}, err
	}
	if cashup.Taxes, err = tx.ListCashupTaxes(ctx, cashup.ID); err != nil {
		return model.Cashup{}, err
	}
	return cashup, nil
}

func (c *cashups) Current(ctx context.Context, tx store.Tx, terminalID string, forUpdate bool) (model.Cashup, int, error) {
	current, err := tx.ListCurrentCashups(ctx, terminalID, forUpdate)
	if err != nil {
		return model.Cashup{}, 0, err
	}
	if len(current) == 0 {
		return model.Cashup{}, 0, fmt.Errorf("%w: no open cashup for terminal %s", apperr.ErrCashupNotFound, terminalID)
	}
	duplicates := len(current) - 1
	if duplicates > 0 {
		ids := make([]string, 0, len(current))
		for _, cashup := range current {
			ids = append(ids, cashup.ID)
		}
		c.zaplog.Error("terminal has more than one open cashup",
			zap.String("terminal", terminalID),
			zap.Strings("cashups", ids))
	}
	cashup, err := c.withDetails(ctx, tx, current[0])
	return cashup, duplicates, err
}

func (c *cashups) LastProcessed(ctx context.Context, tx store.Tx, terminalID string) (model.Cashup, error) {
	processed, err := tx.ListProcessedCashups(ctx, terminalID, 1)
	if err != nil {
		return model.Cashup{}, err
	}
	if len(processed) == 0 {
		return model.Cashup{}, fmt.Errorf("%w: no processed cashup for terminal %s", apperr.ErrCashupNotFound, terminalID)
	}
	return c.withDetails(ctx, tx, processed[0])
}

func (c *cashups) MarkProcessed(ctx context.Context, tx store.Tx, cashup model.Cashup) error {
	affected, err := tx.MarkProcessed(ctx, cashup)
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, err := tx.GetCashup(ctx, cashup.ID, false); errors.Is(err, store.ErrNoRows) {
			return fmt.Errorf("%w: %s", apperr.ErrCashupNotFound, cashup.ID)
		}
		return fmt.Errorf("%w: %s", apperr.ErrAlreadyProcessed, cashup.ID)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
