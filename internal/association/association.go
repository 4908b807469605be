// Package association связывает открытую смену слейва с текущей сменой мастера.
package association

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/iurnickita/poscashup/internal/apperr"
	"github.com/iurnickita/poscashup/internal/cashup"
	"github.com/iurnickita/poscashup/internal/model"
	"github.com/iurnickita/poscashup/internal/store"
)

type Result struct {
	HasParent      bool
	ParentCashupID string
	// Warning заполняется, если у мастера больше одной открытой смены
	Warning string
}

type Associator interface {
	AssociateSlaveWithMaster(ctx context.Context, tx store.Tx, slaveCashup model.Cashup, slaveTerminal model.Terminal) (Result, error)
}

type associator struct {
	cashups cashup.Cashups
	zaplog  *zap.Logger
}

func NewAssociator(cashups cashup.Cashups, zaplog *zap.Logger) Associator {
	return &associator{cashups: cashups, zaplog: zaplog}
}

func (a *associator) AssociateSlaveWithMaster(ctx context.Context, tx store.Tx, slaveCashup model.Cashup, slaveTerminal model.Terminal) (Result, error) {
	if !slaveTerminal.IsSlave() {
		return Result{}, nil
	}

	// Блокировка строки мастера: мастер не закроется, пока идет связывание
	master, duplicates, err := a.cashups.Current(ctx, tx, slaveTerminal.MasterTerminalID, true)
	if errors.Is(err, apperr.ErrCashupNotFound) {
		// мастер еще не открыл смену, повторим позже
		return Result{ParentCashupID: slaveCashup.ParentCashupID, HasParent: slaveCashup.ParentCashupID != ""}, nil
	}
	if err != nil {
		return Result{}, err
	}

	var result Result
	if duplicates > 0 {
		result.Warning = fmt.Sprintf("master terminal %s has %d open cashups, using %s",
			slaveTerminal.MasterTerminalID, duplicates+1, master.ID)
	}

	switch slaveCashup.ParentCashupID {
	case master.ID:
		result.HasParent = true
		result.ParentCashupID = master.ID
		return result, nil
	case "":
	default:
		a.zaplog.Error("slave cashup is bound to another master cashup",
			zap.String("cashup", slaveCashup.ID),
			zap.String("parent", slaveCashup.ParentCashupID),
			zap.String("master", master.ID))
		return Result{}, fmt.Errorf("%w: cashup %s has parent %s, master cashup is %s",
			apperr.ErrAssociationConflict, slaveCashup.ID, slaveCashup.ParentCashupID, master.ID)
	}

	// закрытая смена остается без родителя
	if slaveCashup.IsProcessed {
		a.zaplog.Warn("processed slave cashup is not associated",
			zap.String("cashup", slaveCashup.ID))
		return result, nil
	}

	err = tx.SetParentCashup(ctx, slaveCashup.ID, master.ID)
	if errors.Is(err, store.ErrNoRows) {
		// родитель появился между чтением и записью
		stored, getErr := tx.GetCashup(ctx, slaveCashup.ID, false)
		if getErr != nil {
			return Result{}, getErr
		}
		if stored.ParentCashupID != master.ID {
			return Result{}, fmt.Errorf("%w: cashup %s has parent %s",
				apperr.ErrAssociationConflict, stored.ID, stored.ParentCashupID)
		}
	} else if err != nil {
		return Result{}, err
	}

	a.zaplog.Info("slave cashup associated",
		zap.String("cashup", slaveCashup.ID),
		zap.String("parent", master.ID))

	result.HasParent = true
	result.ParentCashupID = master.ID
	return result, nil
}
