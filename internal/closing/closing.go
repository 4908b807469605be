// Package closing закрывает смену терминала одной транзакцией: суммы слейвов,
// группировка движений, итоговый расчет и перевод смены в обработанные.
package closing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iurnickita/poscashup/internal/aggregation"
	"github.com/iurnickita/poscashup/internal/apperr"
	"github.com/iurnickita/poscashup/internal/approval"
	"github.com/iurnickita/poscashup/internal/cashup"
	"github.com/iurnickita/poscashup/internal/hook"
	"github.com/iurnickita/poscashup/internal/model"
	"github.com/iurnickita/poscashup/internal/store"
)

type Request struct {
	CashupID        string
	CloseDate       time.Time
	Payload         model.ClosePayload
	CashMovementIDs []string
	Approvals       []model.CashupApproval
	SlaveCashupIDs  []string
}

type Result struct {
	Cashup  model.Cashup
	Outcome model.CloseOutcome
	// Replayed - смена уже была закрыта, возвращен сохраненный результат
	Replayed  bool
	Approvals []model.CashupApproval
}

type Orchestrator interface {
	Close(ctx context.Context, rc model.RequestContext, req Request) (Result, error)
}

type Options struct {
	// RequireDifferenceApproval - закрытие с расхождением требует подтверждения cashup.difference
	RequireDifferenceApproval bool
}

type orchestrator struct {
	store     store.Store
	cashups   cashup.Cashups
	engine    aggregation.Engine
	approvals approval.Log
	grouper   OrderGrouper
	processor CloseProcessor
	hooks     *hook.Pipeline
	opts      Options
	zaplog    *zap.Logger
}

func NewOrchestrator(
	st store.Store,
	cashups cashup.Cashups,
	engine aggregation.Engine,
	approvals approval.Log,
	grouper OrderGrouper,
	processor CloseProcessor,
	hooks *hook.Pipeline,
	opts Options,
	zaplog *zap.Logger,
) Orchestrator {
	return &orchestrator{
		store:     st,
		cashups:   cashups,
		engine:    engine,
		approvals: approvals,
		grouper:   grouper,
		processor: processor,
		hooks:     hooks,
		opts:      opts,
		zaplog:    zaplog,
	}
}

func (o *orchestrator) Close(ctx context.Context, rc model.RequestContext, req Request) (Result, error) {
	if req.CashupID == "" {
		return Result{}, apperr.Validation("cashupId is required")
	}
	if req.CloseDate.IsZero() {
		return Result{}, apperr.Validation("cashUpDate is required")
	}

	var processed bool
	err := o.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		processed, err = o.precheck(ctx, tx, rc, req)
		return err
	})
	if err != nil {
		return Result{}, err
	}

	// Подтверждения пишутся отдельной транзакцией и переживают откат закрытия.
	// Повтор закрытия обработанной смены их не пишет.
	var recorded []model.CashupApproval
	if len(req.Approvals) > 0 && !processed {
		err = o.store.WithTx(ctx, func(tx store.Tx) error {
			var err error
			recorded, err = o.approvals.RecordApprovals(ctx, tx, rc, req.CashupID, req.Approvals)
			return err
		})
		if err != nil {
			return Result{}, err
		}
	}

	var result Result
	err = o.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		result, err = o.close(ctx, tx, rc, req)
		return err
	})
	if err != nil {
		o.zaplog.Warn("cashup close rolled back",
			zap.String("cashup", req.CashupID),
			zap.Int("approvalsKept", len(recorded)),
			zap.Error(err))
		return Result{}, err
	}
	result.Approvals = recorded

	if !result.Replayed {
		_ = o.hooks.CashupClosed(ctx, rc, result.Cashup, result.Outcome)
	}
	return result, nil
}

// precheck выполняется до записи подтверждений: черновая выверка по счетам смены
// запрещает закрытие при любых остальных полях, затем терминал и смена должны существовать.
// Возвращает признак уже обработанной смены.
func (o *orchestrator) precheck(ctx context.Context, tx store.Tx, rc model.RequestContext, req Request) (bool, error) {
	terminalID, err := o.terminalID(ctx, tx, rc, req)
	if err != nil {
		return false, err
	}
	if err := o.checkDrafts(ctx, tx, terminalID); err != nil {
		return false, err
	}
	if _, err := o.terminal(ctx, tx, terminalID); err != nil {
		return false, err
	}

	stored, err := tx.GetCashup(ctx, req.CashupID, false)
	switch {
	case errors.Is(err, store.ErrNoRows):
		if req.Payload.Cashup == nil {
			return false, fmt.Errorf("%w: %s", apperr.ErrCashupNotFound, req.CashupID)
		}
		return false, nil
	case err != nil:
		return false, err
	}
	return stored.IsProcessed, nil
}

func (o *orchestrator) terminal(ctx context.Context, tx store.Tx, id string) (model.Terminal, error) {
	terminal, err := tx.GetTerminal(ctx, id)
	if errors.Is(err, store.ErrNoRows) {
		return model.Terminal{}, fmt.Errorf("%w: %s", apperr.ErrTerminalNotFound, id)
	}
	return terminal, err
}

// terminalID определяет терминал смены: по сохраненной смене, затем по payload, затем по контексту запроса.
func (o *orchestrator) terminalID(ctx context.Context, tx store.Tx, rc model.RequestContext, req Request) (string, error) {
	stored, err := tx.GetCashup(ctx, req.CashupID, false)
	switch {
	case err == nil:
		return stored.TerminalID, nil
	case !errors.Is(err, store.ErrNoRows):
		return "", err
	}
	if req.Payload.Cashup != nil && req.Payload.Cashup.TerminalID != "" {
		return req.Payload.Cashup.TerminalID, nil
	}
	if rc.TerminalID == "" {
		return "", apperr.Validation("terminal is required")
	}
	return rc.TerminalID, nil
}

func (o *orchestrator) checkDrafts(ctx context.Context, tx store.Tx, terminalID string) error {
	methods, err := tx.ListTerminalPaymentMethods(ctx, terminalID)
	if err != nil {
		return err
	}
	accounts := make([]string, 0, len(methods))
	for _, pm := range methods {
		if pm.FinancialAccountID != "" {
			accounts = append(accounts, pm.FinancialAccountID)
		}
	}
	drafts, err := tx.CountDraftReconciliations(ctx, accounts)
	if err != nil {
		return err
	}
	if drafts > 0 {
		return fmt.Errorf("%w: terminal %s", apperr.ErrDraftReconciliation, terminalID)
	}
	return nil
}

func (o *orchestrator) close(ctx context.Context, tx store.Tx, rc model.RequestContext, req Request) (Result, error) {
	terminalID, err := o.terminalID(ctx, tx, rc, req)
	if err != nil {
		return Result{}, err
	}
	if err := o.checkDrafts(ctx, tx, terminalID); err != nil {
		return Result{}, err
	}

	terminal, err := o.terminal(ctx, tx, terminalID)
	if err != nil {
		return Result{}, err
	}

	stored, err := tx.GetCashup(ctx, req.CashupID, true)
	switch {
	case errors.Is(err, store.ErrNoRows):
		if req.Payload.Cashup == nil {
			return Result{}, fmt.Errorf("%w: %s", apperr.ErrCashupNotFound, req.CashupID)
		}
	case err != nil:
		return Result{}, err
	case stored.IsProcessed:
		return o.replay(ctx, tx, stored)
	}

	if req.Payload.Cashup != nil {
		payload := *req.Payload.Cashup
		payload.ID = req.CashupID
		if _, err := o.cashups.Upsert(ctx, tx, rc, terminal, payload); err != nil {
			return Result{}, err
		}
	}

	var accumulated []model.PaymentMethodTotal
	if len(req.SlaveCashupIDs) > 0 {
		if terminal.IsMaster {
			accumulated, err = o.engine.AccumulateIntoMaster(ctx, tx, req.CashupID, req.SlaveCashupIDs)
			if err != nil {
				return Result{}, err
			}
		} else {
			o.zaplog.Warn("slave cashups sent for a terminal that is not a master, ignored",
				zap.String("cashup", req.CashupID),
				zap.String("terminal", terminal.ID))
		}
	}

	current, err := o.cashups.Get(ctx, tx, req.CashupID, false)
	if err != nil {
		return Result{}, err
	}

	payload := req.Payload
	_ = o.hooks.BeforeClose(ctx, terminal, current, &payload)

	groups, err := o.grouper.Group(ctx, tx, terminal, current, payload, req.CashMovementIDs)
	if err != nil {
		return Result{}, err
	}
	_ = o.hooks.AfterGrouping(ctx, current, &groups)

	closeResult, err := o.processor.Process(ctx, tx, terminal, current, payload, req.CashMovementIDs, req.CloseDate, req.SlaveCashupIDs)
	if err != nil {
		return Result{}, err
	}
	if terminal.IsMaster {
		closeResult.SlaveCashupIDs = req.SlaveCashupIDs
		closeResult.Accumulated = accumulated
	}

	if closeResult.HasDifference && o.opts.RequireDifferenceApproval {
		approved, err := o.approvals.Has(ctx, tx, current.ID, model.ApprovalTypeCashupDifference)
		if err != nil {
			return Result{}, err
		}
		if !approved {
			return Result{}, fmt.Errorf("%w: total difference %s", apperr.ErrApprovalRequired, closeResult.TotalDifference)
		}
	}

	outcome := model.CloseOutcome{CloseResult: closeResult, OrderGroupResult: groups}
	raw, err := json.Marshal(outcome)
	if err != nil {
		return Result{}, err
	}
	closeDate := req.CloseDate.UTC()
	current.CloseDate = &closeDate
	current.Outcome = raw
	if err := o.cashups.MarkProcessed(ctx, tx, current); err != nil {
		return Result{}, err
	}
	current.IsProcessed = true

	o.zaplog.Info("cashup closed",
		zap.String("cashup", current.ID),
		zap.String("terminal", terminal.ID),
		zap.Int("slaves", len(closeResult.SlaveCashupIDs)),
		zap.String("totalDifference", closeResult.TotalDifference.String()))

	return Result{Cashup: current, Outcome: outcome}, nil
}

// replay отдает результат первого закрытия. Повторный запрос ничего не меняет.
func (o *orchestrator) replay(ctx context.Context, tx store.Tx, stored model.Cashup) (Result, error) {
	cashup, err := o.cashups.Get(ctx, tx, stored.ID, false)
	if err != nil {
		return Result{}, err
	}
	var outcome model.CloseOutcome
	if len(stored.Outcome) > 0 {
		if err := json.Unmarshal(stored.Outcome, &outcome); err != nil {
			return Result{}, err
		}
	}
	o.zaplog.Info("cashup already closed, result replayed", zap.String("cashup", stored.ID))
	return Result{Cashup: cashup, Outcome: outcome, Replayed: true}, nil
}
