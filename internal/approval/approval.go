// Package approval ведет журнал подтверждений закрытия смены. Записи только добавляются.
package approval

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/iurnickita/poscashup/internal/apperr"
	"github.com/iurnickita/poscashup/internal/model"
	"github.com/iurnickita/poscashup/internal/store"
)

type Log interface {
	RecordApprovals(ctx context.Context, tx store.Tx, rc model.RequestContext, cashupID string, approvals []model.CashupApproval) ([]model.CashupApproval, error)
	// Has сообщает, есть ли для смены подтверждение указанного типа.
	Has(ctx context.Context, tx store.Tx, cashupID string, approvalType string) (bool, error)
}

type log struct{}

func NewLog() Log {
	return log{}
}

func (log) RecordApprovals(ctx context.Context, tx store.Tx, rc model.RequestContext, cashupID string, approvals []model.CashupApproval) ([]model.CashupApproval, error) {
	if cashupID == "" {
		return nil, apperr.Validation("cashupId is required")
	}

	now := time.Now().UTC()
	recorded := make([]model.CashupApproval, 0, len(approvals))
	for _, a := range approvals {
		a.ID = uuid.NewString()
		a.CashupID = cashupID
		if a.UserID == "" {
			a.UserID = rc.UserID
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if err := tx.InsertApproval(ctx, a); err != nil {
			return nil, err
		}
		recorded = append(recorded, a)
	}
	return recorded, nil
}

func (log) Has(ctx context.Context, tx store.Tx, cashupID string, approvalType string) (bool, error) {
	approvals, err := tx.ListApprovals(ctx, cashupID)
	if err != nil {
		return false, err
	}
	return slices.ContainsFunc(approvals, func(a model.CashupApproval) bool {
		return a.ApprovalType == approvalType
	}), nil
}
