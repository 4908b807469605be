// Package aggregation суммирует строки способов оплаты дочерних смен и переносит суммы в смену мастера.
package aggregation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"

	"go.uber.org/zap"

	"github.com/iurnickita/poscashup/internal/apperr"
	"github.com/iurnickita/poscashup/internal/model"
	"github.com/iurnickita/poscashup/internal/store"
)

type Engine interface {
	// Aggregate суммирует общие способы оплаты всех смен, привязанных к parentCashupID. Только чтение.
	Aggregate(ctx context.Context, tx store.Tx, parentCashupID string) ([]model.PaymentMethodTotal, error)
	// AccumulateIntoMaster прибавляет суммы перечисленных дочерних смен к строкам мастера.
	// Вызывается один раз в транзакции закрытия.
	AccumulateIntoMaster(ctx context.Context, tx store.Tx, masterCashupID string, childCashupIDs []string) ([]model.PaymentMethodTotal, error)
	// SharedMethods возвращает общие способы оплаты терминала.
	SharedMethods(ctx context.Context, tx store.Tx, terminalID string) (map[string]bool, error)
}

type engine struct {
	zaplog *zap.Logger
}

func NewEngine(zaplog *zap.Logger) Engine {
	return &engine{zaplog: zaplog}
}

// Sum группирует строки по способу оплаты. Если shared не nil, учитываются только общие способы.
// Результат упорядочен по идентификатору способа оплаты.
func Sum(rows []model.PaymentMethodCashup, shared map[string]bool) []model.PaymentMethodTotal {
	byMethod := make(map[string]*model.PaymentMethodTotal)
	for _, row := range rows {
		if shared != nil && !shared[row.PaymentMethodID] {
			continue
		}
		total, ok := byMethod[row.PaymentMethodID]
		if !ok {
			total = &model.PaymentMethodTotal{PaymentMethodID: row.PaymentMethodID}
			byMethod[row.PaymentMethodID] = total
		}
		total.PaymentTotals = total.PaymentTotals.Add(row.PaymentTotals)
		total.Cashups++
	}

	totals := make([]model.PaymentMethodTotal, 0, len(byMethod))
	for _, total := range byMethod {
		totals = append(totals, *total)
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].PaymentMethodID < totals[j].PaymentMethodID })
	return totals
}

func (e *engine) SharedMethods(ctx context.Context, tx store.Tx, terminalID string) (map[string]bool, error) {
	methods, err := tx.ListTerminalPaymentMethods(ctx, terminalID)
	if err != nil {
		return nil, err
	}
	shared := make(map[string]bool)
	for _, pm := range methods {
		if pm.IsShared {
			shared[pm.PaymentMethodID] = true
		}
	}
	return shared, nil
}

func (e *engine) parent(ctx context.Context, tx store.Tx, id string, forUpdate bool) (model.Cashup, map[string]bool, error) {
	parent, err := tx.GetCashup(ctx, id, forUpdate)
	if errors.Is(err, store.ErrNoRows) {
		return model.Cashup{}, nil, fmt.Errorf("%w: %s", apperr.ErrCashupNotFound, id)
	}
	if err != nil {
		return model.Cashup{}, nil, err
	}
	shared, err := e.SharedMethods(ctx, tx, parent.TerminalID)
	if err != nil {
		return model.Cashup{}, nil, err
	}
	return parent, shared, nil
}

func (e *engine) Aggregate(ctx context.Context, tx store.Tx, parentCashupID string) ([]model.PaymentMethodTotal, error) {
	_, shared, err := e.parent(ctx, tx, parentCashupID, false)
	if err != nil {
		return nil, err
	}

	children, err := tx.ListChildCashups(ctx, parentCashupID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(children))
	for _, child := range children {
		ids = append(ids, child.ID)
	}

	rows, err := tx.ListPaymentMethodCashups(ctx, ids)
	if err != nil {
		return nil, err
	}
	return Sum(rows, shared), nil
}

func (e *engine) AccumulateIntoMaster(ctx context.Context, tx store.Tx, masterCashupID string, childCashupIDs []string) ([]model.PaymentMethodTotal, error) {
	master, shared, err := e.parent(ctx, tx, masterCashupID, true)
	if err != nil {
		return nil, err
	}

	ids := slices.Clone(childCashupIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	// суммируются только смены, уже привязанные к этому мастеру
	for _, id := range ids {
		child, err := tx.GetCashup(ctx, id, false)
		if errors.Is(err, store.ErrNoRows) {
			return nil, fmt.Errorf("%w: slave cashup %s", apperr.ErrCashupNotFound, id)
		}
		if err != nil {
			return nil, err
		}
		switch child.ParentCashupID {
		case master.ID:
		case "":
			return nil, fmt.Errorf("%w: %s", apperr.ErrSlaveNotAssociated, id)
		default:
			return nil, fmt.Errorf("%w: cashup %s has parent %s", apperr.ErrAssociationConflict, id, child.ParentCashupID)
		}
	}

	rows, err := tx.ListPaymentMethodCashups(ctx, ids)
	if err != nil {
		return nil, err
	}
	totals := Sum(rows, shared)

	applied := totals[:0:0]
	for _, total := range totals {
		affected, err := tx.AddPaymentMethodTotals(ctx, master.ID, total.PaymentMethodID, total.PaymentTotals)
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			e.zaplog.Warn("master cashup has no row for shared payment method, skipped",
				zap.String("cashup", master.ID),
				zap.String("paymentMethod", total.PaymentMethodID))
			continue
		}
		applied = append(applied, total)
	}

	e.zaplog.Info("slave totals accumulated",
		zap.String("cashup", master.ID),
		zap.Strings("slaves", ids),
		zap.Int("paymentMethods", len(applied)))
	return applied, nil
}
