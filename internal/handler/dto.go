package handler

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iurnickita/poscashup/internal/apperr"
	"github.com/iurnickita/poscashup/internal/model"
	"github.com/iurnickita/poscashup/internal/service"
)

const statusOK = 0

type ErrorJSONResponse = apperr.Response

// Смена в формате терминала

type PaymentMethodJSON struct {
	PaymentMethodID string              `json:"paymentMethodId"`
	Name            string              `json:"name,omitempty"`
	Currency        string              `json:"currency,omitempty"`
	Rate            decimal.Decimal     `json:"rate"`
	StartingCash    decimal.Decimal     `json:"startingCash"`
	TotalSales      decimal.Decimal     `json:"totalSales"`
	TotalReturns    decimal.Decimal     `json:"totalReturns"`
	TotalDeposits   decimal.Decimal     `json:"totalDeposits"`
	TotalDrops      decimal.Decimal     `json:"totalDrops"`
	AmountToKeep    decimal.NullDecimal `json:"amountToKeep"`
	TotalCounted    decimal.NullDecimal `json:"totalCounted"`
}

type TaxJSON struct {
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name"`
	OrderType string          `json:"orderType,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
}

type MovementJSON struct {
	ID                 string              `json:"id"`
	PaymentMethodID    string              `json:"paymentMethodId"`
	FinancialAccountID string              `json:"financialAccountId"`
	LineNo             int64               `json:"lineNo"`
	Type               string              `json:"type"`
	Amount             decimal.Decimal     `json:"amount"`
	DepositAmount      decimal.Decimal     `json:"depositAmount"`
	PaymentAmount      decimal.Decimal     `json:"paymentAmount"`
	Currency           string              `json:"currency"`
	Description        string              `json:"description,omitempty"`
	ReasonCode         string              `json:"reasonCode,omitempty"`
	GLItem             string              `json:"glItem,omitempty"`
	ForeignCurrency    string              `json:"foreignCurrency,omitempty"`
	ForeignAmount      decimal.NullDecimal `json:"foreignAmount"`
	EventID            string              `json:"eventId,omitempty"`
	Created            time.Time           `json:"created"`
}

type CashupJSON struct {
	CashupID          string          `json:"cashupId"`
	TerminalID        string          `json:"pos,omitempty"`
	UserID            string          `json:"userId,omitempty"`
	NetSales          decimal.Decimal `json:"netSales"`
	GrossSales        decimal.Decimal `json:"grossSales"`
	NetReturns        decimal.Decimal `json:"netReturns"`
	GrossReturns      decimal.Decimal `json:"grossReturns"`
	TotalTransactions int64           `json:"totalTransactions"`
	IsProcessed       bool            `json:"isprocessed"`
	ParentCashupID    string          `json:"parentCashupId,omitempty"`
	CashUpDate        *time.Time      `json:"cashUpDate,omitempty"`
	Created           time.Time       `json:"created"`

	CashPaymentMethodInfo []PaymentMethodJSON `json:"cashPaymentMethodInfo"`
	CashTaxInfo           []TaxJSON           `json:"cashTaxInfo"`
	CashMgmInfo           []MovementJSON      `json:"cashMgmInfo,omitempty"`
}

func (c CashupJSON) toModel() model.Cashup {
	cashup := model.Cashup{
		ID:                c.CashupID,
		TerminalID:        c.TerminalID,
		UserID:            c.UserID,
		NetSales:          c.NetSales,
		GrossSales:        c.GrossSales,
		NetReturns:        c.NetReturns,
		GrossReturns:      c.GrossReturns,
		TotalTransactions: c.TotalTransactions,
	}
	for _, pm := range c.CashPaymentMethodInfo {
		cashup.PaymentMethods = append(cashup.PaymentMethods, model.PaymentMethodCashup{
			PaymentMethodID: pm.PaymentMethodID,
			Name:            pm.Name,
			Currency:        pm.Currency,
			Rate:            pm.Rate,
			StartingCash:    pm.StartingCash,
			PaymentTotals: model.PaymentTotals{
				Sales:    pm.TotalSales,
				Returns:  pm.TotalReturns,
				Deposits: pm.TotalDeposits,
				Drops:    pm.TotalDrops,
			},
			AmountToKeep: pm.AmountToKeep,
			CountedCash:  pm.TotalCounted,
		})
	}
	for _, tax := range c.CashTaxInfo {
		cashup.Taxes = append(cashup.Taxes, model.CashupTax{
			Name:      tax.Name,
			OrderType: strings.ToUpper(tax.OrderType),
			Amount:    tax.Amount,
		})
	}
	return cashup
}

func cashupJSON(cashup model.Cashup, movements []model.CashMovement) CashupJSON {
	res := CashupJSON{
		CashupID:              cashup.ID,
		TerminalID:            cashup.TerminalID,
		UserID:                cashup.UserID,
		NetSales:              cashup.NetSales,
		GrossSales:            cashup.GrossSales,
		NetReturns:            cashup.NetReturns,
		GrossReturns:          cashup.GrossReturns,
		TotalTransactions:     cashup.TotalTransactions,
		IsProcessed:           cashup.IsProcessed,
		ParentCashupID:        cashup.ParentCashupID,
		CashUpDate:            cashup.CloseDate,
		Created:               cashup.CreatedAt,
		CashPaymentMethodInfo: []PaymentMethodJSON{},
		CashTaxInfo:           []TaxJSON{},
	}
	for _, pm := range cashup.PaymentMethods {
		res.CashPaymentMethodInfo = append(res.CashPaymentMethodInfo, PaymentMethodJSON{
			PaymentMethodID: pm.PaymentMethodID,
			Name:            pm.Name,
			Currency:        pm.Currency,
			Rate:            pm.Rate,
			StartingCash:    pm.StartingCash,
			TotalSales:      pm.Sales,
			TotalReturns:    pm.Returns,
			TotalDeposits:   pm.Deposits,
			TotalDrops:      pm.Drops,
			AmountToKeep:    pm.AmountToKeep,
			TotalCounted:    pm.CountedCash,
		})
	}
	for _, tax := range cashup.Taxes {
		res.CashTaxInfo = append(res.CashTaxInfo, TaxJSON{
			ID:        tax.ID,
			Name:      tax.Name,
			OrderType: tax.OrderType,
			Amount:    tax.Amount,
		})
	}
	if movements != nil {
		res.CashMgmInfo = make([]MovementJSON, 0, len(movements))
		for _, m := range movements {
			res.CashMgmInfo = append(res.CashMgmInfo, movementJSON(m))
		}
	}
	return res
}

func movementJSON(m model.CashMovement) MovementJSON {
	return MovementJSON{
		ID:                 m.ID,
		PaymentMethodID:    m.PaymentMethodID,
		FinancialAccountID: m.FinancialAccountID,
		LineNo:             m.LineNo,
		Type:               string(m.Direction),
		Amount:             m.Amount(),
		DepositAmount:      m.DepositAmount,
		PaymentAmount:      m.PaymentAmount,
		Currency:           m.Currency,
		Description:        m.Description,
		ReasonCode:         m.ReasonCode,
		GLItem:             m.GLItemCode,
		ForeignCurrency:    m.ForeignCurrency,
		ForeignAmount:      m.ForeignAmount,
		EventID:            m.EventID,
		Created:            m.CreatedAt,
	}
}

// Открытие смены

type OpenJSONResponse struct {
	Status         int    `json:"status"`
	CashupID       string `json:"cashupId"`
	IsProcessed    bool   `json:"isprocessed"`
	ParentCashupID string `json:"parentCashupId,omitempty"`
	Warning        string `json:"warning,omitempty"`
}

// Движение денежных средств

type MovementJSONRequest struct {
	ID              string              `json:"id"`
	CashupID        string              `json:"cashupId"`
	PaymentMethodID string              `json:"paymentMethodId"`
	Amount          decimal.Decimal     `json:"amount"`
	Type            string              `json:"type"`
	Description     string              `json:"description"`
	ReasonCode      string              `json:"reasonCode"`
	ForeignCurrency string              `json:"foreignCurrency"`
	ForeignAmount   decimal.NullDecimal `json:"foreignAmount"`
	Rate            decimal.NullDecimal `json:"rate"`
}

func (m MovementJSONRequest) foreign() *model.ForeignAmount {
	if m.ForeignCurrency == "" {
		return nil
	}
	return &model.ForeignAmount{
		Currency: m.ForeignCurrency,
		Amount:   m.ForeignAmount.Decimal,
		Rate:     m.Rate.Decimal,
	}
}

type MovementJSONResponse struct {
	Status        int    `json:"status"`
	TransactionID string `json:"transactionId"`
	EventID       string `json:"eventId"`
	CashupID      string `json:"cashupId"`
	Replayed      bool   `json:"replayed,omitempty"`
}

// Закрытие смены

// CloseDate принимает RFC 3339 или дату без времени.
type CloseDate struct {
	time.Time
}

func (d *CloseDate) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateTime, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t
			return nil
		}
	}
	return &time.ParseError{Layout: time.RFC3339, Value: s, Message: ": unsupported cashUpDate format"}
}

type DenominationJSON struct {
	Value decimal.Decimal `json:"value"`
	Count int64           `json:"count"`
}

type CashCloseInfoJSON struct {
	PaymentMethodID string             `json:"paymentMethodId"`
	Counted         decimal.Decimal    `json:"counted"`
	AmountToKeep    decimal.Decimal    `json:"amountToKeep"`
	Denominations   []DenominationJSON `json:"denominations"`
}

type ApprovalJSON struct {
	Type    string `json:"type"`
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

type CloseJSONRequest struct {
	CashupID       string              `json:"cashupId"`
	CashUpDate     CloseDate           `json:"cashUpDate"`
	Cashup         *CashupJSON         `json:"cashup"`
	CashCloseInfo  []CashCloseInfoJSON `json:"cashCloseInfo"`
	CashMgmtIDs    []string            `json:"cashMgmtIds"`
	SlaveCashupIDs []string            `json:"slaveCashupIds"`
	Approvals      []ApprovalJSON      `json:"approvals"`
}

func (c CloseJSONRequest) payload() model.ClosePayload {
	var payload model.ClosePayload
	if c.Cashup != nil {
		cashup := c.Cashup.toModel()
		if cashup.ID == "" {
			cashup.ID = c.CashupID
		}
		payload.Cashup = &cashup
	}
	for _, info := range c.CashCloseInfo {
		item := model.CashCloseInfo{
			PaymentMethodID: info.PaymentMethodID,
			Counted:         info.Counted,
			AmountToKeep:    info.AmountToKeep,
		}
		for _, d := range info.Denominations {
			item.Denominations = append(item.Denominations, model.Denomination{Value: d.Value, Count: d.Count})
		}
		payload.CashCloseInfo = append(payload.CashCloseInfo, item)
	}
	return payload
}

func (c CloseJSONRequest) approvals() []model.CashupApproval {
	var res []model.CashupApproval
	for _, a := range c.Approvals {
		res = append(res, model.CashupApproval{ApprovalType: a.Type, UserID: a.UserID, Message: a.Message})
	}
	return res
}

type CloseJSONResponse struct {
	Status           int                    `json:"status"`
	CashupID         string                 `json:"cashupId"`
	CloseResult      model.CloseResult      `json:"closeResult"`
	OrderGroupResult model.OrderGroupResult `json:"orderGroupResult"`
	Replayed         bool                   `json:"replayed,omitempty"`
}

// Связь слейва с мастером

type AssociateJSONRequest struct {
	Pos    string `json:"pos"`
	Cashup string `json:"cashup"`
}

type AssociateJSONResponse struct {
	Status         int    `json:"status"`
	CashupID       string `json:"cashupId"`
	HasMaster      bool   `json:"hasMaster"`
	ParentCashupID string `json:"parentCashupId,omitempty"`
	Warning        string `json:"warning,omitempty"`
}

// Сводка мастера

type SlaveJSON struct {
	TerminalID           string                     `json:"terminalId"`
	HasCashup            bool                       `json:"hasCashup"`
	CashupID             string                     `json:"cashupId,omitempty"`
	PendingTransactions  int                        `json:"pendingTransactions"`
	PaymentMethodSummary []model.PaymentMethodTotal `json:"paymentMethodSummary"`
}

type MasterJSONResponse struct {
	Status               int                        `json:"status"`
	MasterCashupID       string                     `json:"masterCashupId"`
	Data                 []SlaveJSON                `json:"data"`
	PaymentMethodSummary []model.PaymentMethodTotal `json:"paymentMethodSummary"`
}

func masterJSON(summary model.MasterSummary) MasterJSONResponse {
	res := MasterJSONResponse{
		Status:               statusOK,
		MasterCashupID:       summary.MasterCashupID,
		Data:                 []SlaveJSON{},
		PaymentMethodSummary: summary.PaymentMethodSummary,
	}
	if res.PaymentMethodSummary == nil {
		res.PaymentMethodSummary = []model.PaymentMethodTotal{}
	}
	for _, slave := range summary.Slaves {
		res.Data = append(res.Data, SlaveJSON{
			TerminalID:           slave.TerminalID,
			HasCashup:            slave.HasCashup,
			CashupID:             slave.CashupID,
			PendingTransactions:  slave.PendingTransactions,
			PaymentMethodSummary: slave.PaymentMethodSummary,
		})
	}
	return res
}

// Состояние смены

type SnapshotJSONResponse struct {
	Status int          `json:"status"`
	Data   []CashupJSON `json:"data"`
}

func snapshotJSON(snapshots []service.Snapshot) SnapshotJSONResponse {
	res := SnapshotJSONResponse{Status: statusOK, Data: []CashupJSON{}}
	for _, s := range snapshots {
		movements := s.Movements
		if movements == nil {
			movements = []model.CashMovement{}
		}
		res.Data = append(res.Data, cashupJSON(s.Cashup, movements))
	}
	return res
}
