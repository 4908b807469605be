package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/iurnickita/poscashup/internal/aggregation"
	"github.com/iurnickita/poscashup/internal/apperr"
	"github.com/iurnickita/poscashup/internal/approval"
	"github.com/iurnickita/poscashup/internal/association"
	"github.com/iurnickita/poscashup/internal/cashup"
	"github.com/iurnickita/poscashup/internal/closing"
	"github.com/iurnickita/poscashup/internal/hook"
	"github.com/iurnickita/poscashup/internal/model"
	"github.com/iurnickita/poscashup/internal/movement"
	"github.com/iurnickita/poscashup/internal/service/config"
	"github.com/iurnickita/poscashup/internal/store"
)

// Service - операции терминала. Каждая выполняется одной транзакцией,
// кроме закрытия, где подтверждения пишутся отдельно.
type Service interface {
	Open(ctx context.Context, rc model.RequestContext, payload model.Cashup) (OpenResult, error)
	RecordMovement(ctx context.Context, rc model.RequestContext, req movement.Request) (movement.Result, error)
	Close(ctx context.Context, rc model.RequestContext, req closing.Request) (closing.Result, error)
	Associate(ctx context.Context, rc model.RequestContext, terminalID string, cashupID string) (AssociateResult, error)
	MasterSummary(ctx context.Context, rc model.RequestContext, terminalID string) (model.MasterSummary, error)
	Snapshot(ctx context.Context, rc model.RequestContext, terminalID string, processed bool) ([]Snapshot, error)
}

type OpenResult struct {
	CashupID       string
	IsProcessed    bool
	ParentCashupID string
	Warning        string
}

type AssociateResult struct {
	CashupID       string
	HasMaster      bool
	ParentCashupID string
	Warning        string
}

type Snapshot struct {
	Cashup    model.Cashup
	Movements []model.CashMovement
}

type service struct {
	cfg          config.Config
	store        store.Store
	cashups      cashup.Cashups
	associator   association.Associator
	engine       aggregation.Engine
	ledger       movement.Ledger
	orchestrator closing.Orchestrator
	hooks        *hook.Pipeline
	zaplog       *zap.Logger
}

func NewService(cfg config.Config, st store.Store, hooks *hook.Pipeline, zaplog *zap.Logger) Service {
	cashups := cashup.NewCashups(zaplog)
	engine := aggregation.NewEngine(zaplog)
	orchestrator := closing.NewOrchestrator(st, cashups, engine, approval.NewLog(),
		closing.NewOrderGrouper(), closing.NewCloseProcessor(), hooks,
		closing.Options{RequireDifferenceApproval: cfg.RequireDifferenceApproval}, zaplog)

	return &service{
		cfg:          cfg,
		store:        st,
		cashups:      cashups,
		associator:   association.NewAssociator(cashups, zaplog),
		engine:       engine,
		ledger:       movement.NewLedger(zaplog),
		orchestrator: orchestrator,
		hooks:        hooks,
		zaplog:       zaplog,
	}
}

func terminal(ctx context.Context, tx store.Tx, id string) (model.Terminal, error) {
	t, err := tx.GetTerminal(ctx, id)
	if errors.Is(err, store.ErrNoRows) {
		return model.Terminal{}, fmt.Errorf("%w: %s", apperr.ErrTerminalNotFound, id)
	}
	return t, err
}

func (service *service) Open(ctx context.Context, rc model.RequestContext, payload model.Cashup) (OpenResult, error) {
	if payload.ID == "" {
		return OpenResult{}, apperr.Validation("cashupId is required")
	}
	if payload.TerminalID == "" {
		payload.TerminalID = rc.TerminalID
	}
	if payload.TerminalID == "" {
		return OpenResult{}, apperr.Validation("terminal is required")
	}

	open := func() (OpenResult, error) {
		var result OpenResult
		err := service.store.WithTx(ctx, func(tx store.Tx) error {
			return service.open(ctx, tx, rc, payload, &result)
		})
		return result, err
	}

	result, err := open()
	// Параллельное открытие с тем же id: повтор в новой транзакции обновит смену
	if errors.Is(err, store.ErrAlreadyExists) {
		service.zaplog.Info("cashup open collided, retrying", zap.String("cashup", payload.ID))
		result, err = open()
	}
	if err != nil {
		return OpenResult{}, err
	}
	return result, nil
}

func (service *service) open(ctx context.Context, tx store.Tx, rc model.RequestContext, payload model.Cashup, result *OpenResult) error {
	t, err := terminal(ctx, tx, payload.TerminalID)
	if err != nil {
		return err
	}

	// повтор открытия после закрытия ничего не меняет
	stored, err := tx.GetCashup(ctx, payload.ID, false)
	if err == nil && stored.IsProcessed {
		*result = OpenResult{CashupID: stored.ID, IsProcessed: true, ParentCashupID: stored.ParentCashupID}
		return nil
	}
	if err != nil && !errors.Is(err, store.ErrNoRows) {
		return err
	}

	c, err := service.cashups.Upsert(ctx, tx, rc, t, payload)
	if err != nil {
		return err
	}
	*result = OpenResult{CashupID: c.ID, ParentCashupID: c.ParentCashupID}

	// Связанная смена слейва обновляется без повторного связывания:
	// мастер мог уже закрыть смену и открыть новую.
	if t.IsSlave() && c.ParentCashupID == "" {
		assoc, err := service.associator.AssociateSlaveWithMaster(ctx, tx, c, t)
		if err != nil {
			return err
		}
		result.ParentCashupID = assoc.ParentCashupID
		result.Warning = assoc.Warning
	}
	return nil
}

func (service *service) RecordMovement(ctx context.Context, rc model.RequestContext, req movement.Request) (movement.Result, error) {
	record := func() (movement.Result, error) {
		var result movement.Result
		err := service.store.WithTx(ctx, func(tx store.Tx) error {
			var err error
			result, err = service.ledger.RecordMovement(ctx, tx, rc, req)
			return err
		})
		return result, err
	}

	result, err := record()
	// Параллельный запрос с тем же ключом или номером строки: повтор в новой транзакции
	if errors.Is(err, store.ErrAlreadyExists) {
		service.zaplog.Info("cash movement collided, retrying", zap.String("transaction", req.TransactionID))
		result, err = record()
	}
	if err != nil {
		return movement.Result{}, err
	}

	if !result.Replayed {
		_ = service.hooks.MovementRecorded(ctx, rc, result.Movement)
	}
	return result, nil
}

func (service *service) Close(ctx context.Context, rc model.RequestContext, req closing.Request) (closing.Result, error) {
	return service.orchestrator.Close(ctx, rc, req)
}

func (service *service) Associate(ctx context.Context, rc model.RequestContext, terminalID string, cashupID string) (AssociateResult, error) {
	if terminalID == "" {
		terminalID = rc.TerminalID
	}
	if terminalID == "" || cashupID == "" {
		return AssociateResult{}, apperr.Validation("pos and cashup are required")
	}

	var result AssociateResult
	err := service.store.WithTx(ctx, func(tx store.Tx) error {
		t, err := terminal(ctx, tx, terminalID)
		if err != nil {
			return err
		}
		c, err := service.cashups.Get(ctx, tx, cashupID, true)
		if err != nil {
			return err
		}
		if c.TerminalID != t.ID {
			return apperr.Validation(fmt.Sprintf("cashup %s belongs to terminal %s", c.ID, c.TerminalID))
		}

		assoc, err := service.associator.AssociateSlaveWithMaster(ctx, tx, c, t)
		if err != nil {
			return err
		}
		result = AssociateResult{
			CashupID:       c.ID,
			HasMaster:      assoc.HasParent,
			ParentCashupID: assoc.ParentCashupID,
			Warning:        assoc.Warning,
		}
		return nil
	})
	if err != nil {
		return AssociateResult{}, err
	}
	return result, nil
}

func (service *service) MasterSummary(ctx context.Context, rc model.RequestContext, terminalID string) (model.MasterSummary, error) {
	if terminalID == "" {
		terminalID = rc.TerminalID
	}

	var summary model.MasterSummary
	err := service.store.WithTx(ctx, func(tx store.Tx) error {
		master, err := terminal(ctx, tx, terminalID)
		if err != nil {
			return err
		}
		if !master.IsMaster {
			return fmt.Errorf("%w: %s", apperr.ErrNotMaster, master.ID)
		}

		current, _, err := service.cashups.Current(ctx, tx, master.ID, false)
		if errors.Is(err, apperr.ErrCashupNotFound) {
			return fmt.Errorf("%w: %s", apperr.ErrNoMasterCashup, master.ID)
		}
		if err != nil {
			return err
		}

		slaves, err := tx.ListSlaveTerminals(ctx, master.ID)
		if err != nil {
			return err
		}
		children, err := tx.ListChildCashups(ctx, current.ID)
		if err != nil {
			return err
		}
		shared, err := service.engine.SharedMethods(ctx, tx, master.ID)
		if err != nil {
			return err
		}

		summary.MasterCashupID = current.ID
		if summary.PaymentMethodSummary, err = service.engine.Aggregate(ctx, tx, current.ID); err != nil {
			return err
		}
		summary.Slaves = make([]model.SlaveSummary, 0, len(slaves))
		for _, slave := range slaves {
			item := model.SlaveSummary{TerminalID: slave.ID, PaymentMethodSummary: []model.PaymentMethodTotal{}}
			var ids []string
			for _, child := range children {
				if child.TerminalID != slave.ID {
					continue
				}
				if !item.HasCashup {
					item.HasCashup = true
					item.CashupID = child.ID
				}
				if !child.IsProcessed {
					item.PendingTransactions++
				}
				ids = append(ids, child.ID)
			}
			if len(ids) > 0 {
				rows, err := tx.ListPaymentMethodCashups(ctx, ids)
				if err != nil {
					return err
				}
				item.PaymentMethodSummary = aggregation.Sum(rows, shared)
			}
			summary.Slaves = append(summary.Slaves, item)
		}
		return nil
	})
	if err != nil {
		return model.MasterSummary{}, err
	}
	return summary, nil
}

func (service *service) Snapshot(ctx context.Context, rc model.RequestContext, terminalID string, processed bool) ([]Snapshot, error) {
	if terminalID == "" {
		terminalID = rc.TerminalID
	}

	var snapshots []Snapshot
	err := service.store.WithTx(ctx, func(tx store.Tx) error {
		t, err := terminal(ctx, tx, terminalID)
		if err != nil {
			return err
		}
		unresolved, err := tx.CountUnresolvedErrors(ctx, t.ID)
		if err != nil {
			return err
		}
		if unresolved > 0 {
			return fmt.Errorf("%w: %d on terminal %s", apperr.ErrUnresolvedErrors, unresolved, t.ID)
		}

		var c model.Cashup
		if processed {
			c, err = service.cashups.LastProcessed(ctx, tx, t.ID)
		} else {
			c, _, err = service.cashups.Current(ctx, tx, t.ID, false)
		}
		if errors.Is(err, apperr.ErrCashupNotFound) {
			snapshots = []Snapshot{}
			return nil
		}
		if err != nil {
			return err
		}

		movements, err := tx.ListMovements(ctx, c.ID)
		if err != nil {
			return err
		}
		snapshots = []Snapshot{{Cashup: c, Movements: movements}}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshots, nil
}
