package store

import (
	"context"
	"errors"

	"github.com/iurnickita/poscashup/internal/model"
	"github.com/shopspring/decimal"
)

// Store opens transactions. Every terminal call runs inside exactly one WithTx;
// fn returning an error rolls the whole unit back.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

type Tx interface {
	RegistryReader
	CashupWriter
	LedgerWriter
	ApprovalWriter
}

// Реестр терминалов, только чтение (кроме счетчика строк счета)
type RegistryReader interface {
	GetTerminal(ctx context.Context, id string) (model.Terminal, error)
	ListSlaveTerminals(ctx context.Context, masterID string) ([]model.Terminal, error)
	ListTerminalPaymentMethods(ctx context.Context, terminalID string) ([]model.TerminalPaymentMethod, error)
	GetFinancialAccount(ctx context.Context, id string) (model.FinancialAccount, error)
	GetMovementReason(ctx context.Context, code string) (model.MovementReason, error)
	CountDraftReconciliations(ctx context.Context, accountIDs []string) (int, error)
	CountUnresolvedErrors(ctx context.Context, terminalID string) (int, error)
}

type CashupWriter interface {
	GetCashup(ctx context.Context, id string, forUpdate bool) (model.Cashup, error)
	// ListCurrentCashups returns unprocessed cashups of a terminal, newest first.
	ListCurrentCashups(ctx context.Context, terminalID string, forUpdate bool) ([]model.Cashup, error)
	ListProcessedCashups(ctx context.Context, terminalID string, limit int) ([]model.Cashup, error)
	ListChildCashups(ctx context.Context, parentID string) ([]model.Cashup, error)
	InsertCashup(ctx context.Context, cashup model.Cashup) error
	UpdateCashup(ctx context.Context, cashup model.Cashup) error
	SetParentCashup(ctx context.Context, id string, parentID string) error
	MarkProcessed(ctx context.Context, cashup model.Cashup) (int64, error)

	ListPaymentMethodCashups(ctx context.Context, cashupIDs []string) ([]model.PaymentMethodCashup, error)
	InsertPaymentMethodCashup(ctx context.Context, pm model.PaymentMethodCashup) error
	UpdatePaymentMethodCashup(ctx context.Context, pm model.PaymentMethodCashup) error
	AddPaymentMethodTotals(ctx context.Context, cashupID string, paymentMethodID string, delta model.PaymentTotals) (int64, error)
	SetPaymentMethodCount(ctx context.Context, cashupID string, paymentMethodID string, counted decimal.Decimal, keep decimal.Decimal, denominations []model.Denomination) error

	ListCashupTaxes(ctx context.Context, cashupID string) ([]model.CashupTax, error)
	UpsertCashupTax(ctx context.Context, tax model.CashupTax) error
}

type LedgerWriter interface {
	GetMovement(ctx context.Context, id string) (model.CashMovement, error)
	ListMovements(ctx context.Context, cashupID string) ([]model.CashMovement, error)
	// NextLineNo locks the account row and returns its next line number.
	NextLineNo(ctx context.Context, accountID string) (int64, error)
	InsertMovement(ctx context.Context, movement model.CashMovement) error
	InsertCashupEvent(ctx context.Context, event model.CashupEvent) error
	InsertConversionRate(ctx context.Context, rate model.ConversionRate) error
}

type ApprovalWriter interface {
	InsertApproval(ctx context.Context, approval model.CashupApproval) error
	ListApprovals(ctx context.Context, cashupID string) ([]model.CashupApproval, error)
}

var (
	ErrNoRows        = errors.New("no rows")
	ErrAlreadyExists = errors.New("already exists")

	// У терминала уже есть открытая смена с другим id
	ErrCurrentCashupExists = errors.New("terminal already has an open cashup")
)

// Шаг номера строки по счету
const lineNoStep = 10
