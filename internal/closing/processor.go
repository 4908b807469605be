package closing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iurnickita/poscashup/internal/apperr"
	"github.com/iurnickita/poscashup/internal/model"
	"github.com/iurnickita/poscashup/internal/store"
)

// OrderGrouper группирует движения смены перед закрытием.
type OrderGrouper interface {
	Group(ctx context.Context, tx store.Tx, terminal model.Terminal, cashup model.Cashup, payload model.ClosePayload, movementIDs []string) (model.OrderGroupResult, error)
}

// CloseProcessor выполняет итоговый расчет закрытия: расхождения между ожидаемой и пересчитанной суммой.
// Флаг isProcessed не меняет.
type CloseProcessor interface {
	Process(ctx context.Context, tx store.Tx, terminal model.Terminal, cashup model.Cashup, payload model.ClosePayload, movementIDs []string, closeDate time.Time, slaveCashupIDs []string) (model.CloseResult, error)
}

type movementGrouper struct{}

func NewOrderGrouper() OrderGrouper {
	return movementGrouper{}
}

func (movementGrouper) Group(ctx context.Context, tx store.Tx, _ model.Terminal, cashup model.Cashup, _ model.ClosePayload, movementIDs []string) (model.OrderGroupResult, error) {
	// переданные терминалом движения должны принадлежать смене
	for _, id := range movementIDs {
		m, err := tx.GetMovement(ctx, id)
		if errors.Is(err, store.ErrNoRows) {
			return model.OrderGroupResult{}, fmt.Errorf("%w: %s", apperr.ErrMovementNotFound, id)
		}
		if err != nil {
			return model.OrderGroupResult{}, err
		}
		if m.CashupID != cashup.ID {
			return model.OrderGroupResult{}, apperr.Validation(
				fmt.Sprintf("cash movement %s belongs to cashup %s", id, m.CashupID))
		}
	}

	movements, err := tx.ListMovements(ctx, cashup.ID)
	if err != nil {
		return model.OrderGroupResult{}, err
	}

	result := model.OrderGroupResult{
		Groups:      []model.MovementGroup{},
		MovementIDs: make([]string, 0, len(movements)),
	}
	index := make(map[string]int)
	for _, m := range movements {
		i, ok := index[m.PaymentMethodID]
		if !ok {
			i = len(result.Groups)
			index[m.PaymentMethodID] = i
			result.Groups = append(result.Groups, model.MovementGroup{
				PaymentMethodID: m.PaymentMethodID,
				Deposits:        decimal.Zero,
				Drops:           decimal.Zero,
			})
		}
		group := &result.Groups[i]
		group.Movements++
		group.Deposits = group.Deposits.Add(m.DepositAmount)
		group.Drops = group.Drops.Add(m.PaymentAmount)
		result.MovementIDs = append(result.MovementIDs, m.ID)
	}
	return result, nil
}

type cashCloseProcessor struct{}

func NewCloseProcessor() CloseProcessor {
	return cashCloseProcessor{}
}

func (cashCloseProcessor) Process(ctx context.Context, tx store.Tx, _ model.Terminal, cashup model.Cashup, payload model.ClosePayload, _ []string, _ time.Time, _ []string) (model.CloseResult, error) {
	result := model.CloseResult{
		Lines:           make([]model.CloseLine, 0, len(cashup.PaymentMethods)),
		TotalDifference: decimal.Zero,
	}

	for _, pm := range cashup.PaymentMethods {
		expected := pm.Expected()
		line := model.CloseLine{
			PaymentMethodID: pm.PaymentMethodID,
			Currency:        pm.Currency,
			Expected:        expected,
			Counted:         expected,
			AmountToKeep:    decimal.Zero,
		}
		var denominations []model.Denomination
		if info, ok := payload.CloseInfo(pm.PaymentMethodID); ok {
			line.Counted = info.Counted
			line.AmountToKeep = info.AmountToKeep
			denominations = info.Denominations
		}
		line.Difference = line.Counted.Sub(expected)
		line.Deposited = line.Counted.Sub(line.AmountToKeep)

		if err := tx.SetPaymentMethodCount(ctx, cashup.ID, pm.PaymentMethodID, line.Counted, line.AmountToKeep, denominations); err != nil {
			return model.CloseResult{}, err
		}

		rate := pm.Rate
		if !rate.IsPositive() {
			rate = decimal.NewFromInt(1)
		}
		result.TotalDifference = result.TotalDifference.Add(line.Difference.Mul(rate))
		if !line.Difference.IsZero() {
			result.HasDifference = true
		}
		result.Lines = append(result.Lines, line)
	}
	return result, nil
}
