package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Контекст запроса терминала. Передается явно во все операции ядра.
type RequestContext struct {
	ClientID       string
	OrganizationID string
	TerminalID     string
	UserID         string
}

// Реестр терминалов (только чтение)

type Terminal struct {
	ID               string
	ClientID         string
	OrganizationID   string
	Name             string
	IsMaster         bool
	MasterTerminalID string
}

func (t Terminal) IsSlave() bool {
	return t.MasterTerminalID != ""
}

type TerminalPaymentMethod struct {
	TerminalID         string
	PaymentMethodID    string
	Name               string
	FinancialAccountID string
	Currency           string
	IsShared           bool
	IsCash             bool
	GLItemDeposit      string
	GLItemDrop         string
}

type FinancialAccount struct {
	ID         string
	Currency   string
	LastLineNo int64
}

type MovementReason struct {
	Code       string
	Name       string
	GLItemCode string
}

const (
	ReconciliationStatusDraft     = "DRAFT"
	ReconciliationStatusConfirmed = "CONFIRMED"
)

type Reconciliation struct {
	ID                 string
	FinancialAccountID string
	Status             string
}

const (
	TerminalErrorStatusUnresolved = "UNRESOLVED"
	TerminalErrorStatusResolved   = "RESOLVED"
)

type TerminalError struct {
	ID         string
	TerminalID string
	Message    string
	Status     string
	CreatedAt  time.Time
}

// Кассовая смена

type Cashup struct {
	ID                string
	ClientID          string
	OrganizationID    string
	TerminalID        string
	UserID            string
	NetSales          decimal.Decimal
	GrossSales        decimal.Decimal
	NetReturns        decimal.Decimal
	GrossReturns      decimal.Decimal
	TotalTransactions int64
	IsProcessed       bool
	ParentCashupID    string
	CloseDate         *time.Time
	Outcome           json.RawMessage
	CreatedAt         time.Time
	UpdatedAt         time.Time

	PaymentMethods []PaymentMethodCashup
	Taxes          []CashupTax
}

// PaymentMethod returns the sub-total row for paymentMethodID.
func (c Cashup) PaymentMethod(paymentMethodID string) (PaymentMethodCashup, bool) {
	for _, pm := range c.PaymentMethods {
		if pm.PaymentMethodID == paymentMethodID {
			return pm, true
		}
	}
	return PaymentMethodCashup{}, false
}

// Накапливаемые суммы по способу оплаты
type PaymentTotals struct {
	Sales    decimal.Decimal `json:"sales"`
	Returns  decimal.Decimal `json:"returns"`
	Deposits decimal.Decimal `json:"deposits"`
	Drops    decimal.Decimal `json:"drops"`
}

func (t PaymentTotals) Add(o PaymentTotals) PaymentTotals {
	return PaymentTotals{
		Sales:    t.Sales.Add(o.Sales),
		Returns:  t.Returns.Add(o.Returns),
		Deposits: t.Deposits.Add(o.Deposits),
		Drops:    t.Drops.Add(o.Drops),
	}
}

func (t PaymentTotals) IsZero() bool {
	return t.Sales.IsZero() && t.Returns.IsZero() && t.Deposits.IsZero() && t.Drops.IsZero()
}

type Denomination struct {
	Value decimal.Decimal `json:"value"`
	Count int64           `json:"count"`
}

type PaymentMethodCashup struct {
	ID              string
	CashupID        string
	PaymentMethodID string
	Name            string
	Currency        string
	Rate            decimal.Decimal
	StartingCash    decimal.Decimal
	PaymentTotals
	AmountToKeep  decimal.NullDecimal
	CountedCash   decimal.NullDecimal
	Denominations []Denomination
}

// Expected is the drawer amount implied by the accumulated totals.
func (pm PaymentMethodCashup) Expected() decimal.Decimal {
	return pm.StartingCash.
		Add(pm.Sales).
		Sub(pm.Returns).
		Add(pm.Deposits).
		Sub(pm.Drops)
}

const (
	OrderTypeSale   = "SALE"
	OrderTypeReturn = "RETURN"
)

type CashupTax struct {
	ID        string
	CashupID  string
	Name      string
	OrderType string
	Amount    decimal.Decimal
}

// Движения денежных средств

type MovementDirection string

const (
	MovementDeposit MovementDirection = "deposit"
	MovementDrop    MovementDirection = "drop"
)

func (d MovementDirection) Valid() bool {
	return d == MovementDeposit || d == MovementDrop
}

type CashMovement struct {
	ID                 string
	CashupID           string
	PaymentMethodID    string
	FinancialAccountID string
	LineNo             int64
	Direction          MovementDirection
	DepositAmount      decimal.Decimal
	PaymentAmount      decimal.Decimal
	Currency           string
	Description        string
	ReasonCode         string
	GLItemCode         string
	ForeignCurrency    string
	ForeignAmount      decimal.NullDecimal
	EventID            string
	CreatedAt          time.Time
	CreatedBy          string
}

// Amount is deposit plus payment; exactly one of them is non-zero.
func (m CashMovement) Amount() decimal.Decimal {
	return m.DepositAmount.Add(m.PaymentAmount)
}

type CashupEvent struct {
	ID                    string
	CashupID              string
	PaymentMethodCashupID string
	TransactionID         string
	Direction             MovementDirection
	Amount                decimal.Decimal
	CreatedAt             time.Time
}

type ConversionRate struct {
	ID            string
	TransactionID string
	FromCurrency  string
	ToCurrency    string
	Rate          decimal.Decimal
	ForeignAmount decimal.Decimal
	CreatedAt     time.Time
}

type ForeignAmount struct {
	Currency string
	Amount   decimal.Decimal
	Rate     decimal.Decimal
}

// Журнал подтверждений

const ApprovalTypeCashupDifference = "cashup.difference"

type CashupApproval struct {
	ID           string
	CashupID     string
	UserID       string
	ApprovalType string
	Message      string
	CreatedAt    time.Time
}

// Агрегация

type PaymentMethodTotal struct {
	PaymentMethodID string `json:"paymentMethodId"`
	PaymentTotals
	Cashups int `json:"cashups"`
}

// Закрытие смены

type CashCloseInfo struct {
	PaymentMethodID string
	Counted         decimal.Decimal
	AmountToKeep    decimal.Decimal
	Denominations   []Denomination
}

type ClosePayload struct {
	Cashup        *Cashup
	CashCloseInfo []CashCloseInfo
}

// CloseInfo returns the counted values submitted for paymentMethodID.
func (p ClosePayload) CloseInfo(paymentMethodID string) (CashCloseInfo, bool) {
	for _, info := range p.CashCloseInfo {
		if info.PaymentMethodID == paymentMethodID {
			return info, true
		}
	}
	return CashCloseInfo{}, false
}

type CloseLine struct {
	PaymentMethodID string          `json:"paymentMethodId"`
	Currency        string          `json:"currency"`
	Expected        decimal.Decimal `json:"expected"`
	Counted         decimal.Decimal `json:"counted"`
	Difference      decimal.Decimal `json:"difference"`
	AmountToKeep    decimal.Decimal `json:"amountToKeep"`
	Deposited       decimal.Decimal `json:"deposited"`
}

type CloseResult struct {
	Lines           []CloseLine          `json:"lines"`
	TotalDifference decimal.Decimal      `json:"totalDifference"`
	HasDifference   bool                 `json:"hasDifference"`
	SlaveCashupIDs  []string             `json:"slaveCashupIds,omitempty"`
	Accumulated     []PaymentMethodTotal `json:"accumulated,omitempty"`
}

type MovementGroup struct {
	PaymentMethodID string          `json:"paymentMethodId"`
	Movements       int             `json:"movements"`
	Deposits        decimal.Decimal `json:"deposits"`
	Drops           decimal.Decimal `json:"drops"`
}

type OrderGroupResult struct {
	Groups      []MovementGroup `json:"groups"`
	MovementIDs []string        `json:"movementIds"`
}

// Результат закрытия, сохраняется вместе со сменой для повторных запросов
type CloseOutcome struct {
	CloseResult      CloseResult      `json:"closeResult"`
	OrderGroupResult OrderGroupResult `json:"orderGroupResult"`
}

// Сводка мастер-терминала

type SlaveSummary struct {
	TerminalID           string
	HasCashup            bool
	CashupID             string
	PendingTransactions  int
	PaymentMethodSummary []PaymentMethodTotal
}

type MasterSummary struct {
	MasterCashupID string
	Slaves         []SlaveSummary
	// Итог по всем привязанным сменам слейвов, только чтение
	PaymentMethodSummary []PaymentMethodTotal
}
