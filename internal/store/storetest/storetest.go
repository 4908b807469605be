// Package storetest наполняет хранилище в памяти типовым реестром для тестов.
package storetest

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iurnickita/poscashup/internal/model"
	"github.com/iurnickita/poscashup/internal/store"
)

// Реестр: мастер M с двумя слейвами S1, S2 и отдельный терминал T1.
// CASH общий для мастера и слейвов, CARD нет. Счета в EUR.
const (
	Client = "CL1"
	Org    = "ORG1"
	User   = "U1"

	Master     = "M"
	Slave1     = "S1"
	Slave2     = "S2"
	Standalone = "T1"

	Cash = "CASH"
	Card = "CARD"

	ReasonChange = "CHANGE"
	GLChange     = "GL-CHANGE"
	GLDeposit    = "GL-DEP"
	GLDrop       = "GL-DROP"
)

// Account returns the financial account id of a terminal payment method.
func Account(terminalID string, paymentMethodID string) string {
	return "ACC-" + terminalID + "-" + paymentMethodID
}

func NewStore() *store.MemStore {
	s := store.NewMemStore()

	s.PutTerminal(model.Terminal{ID: Master, ClientID: Client, OrganizationID: Org, Name: "Master", IsMaster: true})
	s.PutTerminal(model.Terminal{ID: Slave1, ClientID: Client, OrganizationID: Org, Name: "Slave 1", MasterTerminalID: Master})
	s.PutTerminal(model.Terminal{ID: Slave2, ClientID: Client, OrganizationID: Org, Name: "Slave 2", MasterTerminalID: Master})
	s.PutTerminal(model.Terminal{ID: Standalone, ClientID: Client, OrganizationID: Org, Name: "Standalone"})

	for _, terminal := range []string{Master, Slave1, Slave2, Standalone} {
		for _, pm := range []string{Cash, Card} {
			s.PutFinancialAccount(model.FinancialAccount{ID: Account(terminal, pm), Currency: "EUR"})
			s.PutPaymentMethod(model.TerminalPaymentMethod{
				TerminalID:         terminal,
				PaymentMethodID:    pm,
				Name:               pm,
				FinancialAccountID: Account(terminal, pm),
				Currency:           "EUR",
				IsShared:           pm == Cash,
				IsCash:             pm == Cash,
				GLItemDeposit:      GLDeposit,
				GLItemDrop:         GLDrop,
			})
		}
	}
	s.PutMovementReason(model.MovementReason{Code: ReasonChange, Name: "Change", GLItemCode: GLChange})
	return s
}

func Context(terminalID string) model.RequestContext {
	return model.RequestContext{ClientID: Client, OrganizationID: Org, TerminalID: terminalID, UserID: User}
}

// Cashup builds an open payload with cash sales and optional card sales.
func Cashup(id string, terminalID string, cashSales int64, cardSales int64) model.Cashup {
	return model.Cashup{
		ID:                id,
		TerminalID:        terminalID,
		NetSales:          decimal.NewFromInt(cashSales + cardSales),
		GrossSales:        decimal.NewFromInt(cashSales + cardSales),
		TotalTransactions: 1,
		PaymentMethods: []model.PaymentMethodCashup{
			{PaymentMethodID: Cash, PaymentTotals: model.PaymentTotals{Sales: decimal.NewFromInt(cashSales)}},
			{PaymentMethodID: Card, PaymentTotals: model.PaymentTotals{Sales: decimal.NewFromInt(cardSales)}},
		},
	}
}

// Tx runs fn in a transaction and fails the test on error.
func Tx(t *testing.T, s store.Store, fn func(tx store.Tx) error) {
	t.Helper()
	require.NoError(t, s.WithTx(context.Background(), fn))
}
