package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iurnickita/poscashup/internal/model"
	"github.com/iurnickita/poscashup/internal/store/config"
)

// testStores возвращает реализации для прогона общих проверок.
// PostgreSQL подключается только при заданном CASHUP_TEST_DSN.
func testStores(t *testing.T) map[string]Store {
	stores := map[string]Store{"memory": NewMemStore()}

	dsn := os.Getenv("CASHUP_TEST_DSN")
	if dsn == "" {
		return stores
	}
	pg, err := NewStore(config.Config{DBDsn: dsn, QueryTimeout: 10 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Close() })
	stores["postgres"] = pg
	return stores
}

func newCashup(terminalID string) model.Cashup {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return model.Cashup{
		ID:             uuid.NewString(),
		ClientID:       "CL",
		OrganizationID: "ORG",
		TerminalID:     terminalID,
		UserID:         "U1",
		NetSales:       decimal.NewFromInt(10),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func uniqueTerminal() string {
	return "T-" + uuid.NewString()[:8]
}

func TestStoreCurrentCashup(t *testing.T) {
	ctx := context.Background()
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			terminal := uniqueTerminal()
			first := newCashup(terminal)

			err := s.WithTx(ctx, func(tx Tx) error {
				return tx.InsertCashup(ctx, first)
			})
			require.NoError(t, err)

			// вторая открытая смена того же терминала
			err = s.WithTx(ctx, func(tx Tx) error {
				return tx.InsertCashup(ctx, newCashup(terminal))
			})
			require.ErrorIs(t, err, ErrCurrentCashupExists)
			require.NotErrorIs(t, err, ErrAlreadyExists)

			// повтор того же id
			err = s.WithTx(ctx, func(tx Tx) error {
				return tx.InsertCashup(ctx, first)
			})
			require.ErrorIs(t, err, ErrAlreadyExists)

			var current []model.Cashup
			err = s.WithTx(ctx, func(tx Tx) error {
				var err error
				current, err = tx.ListCurrentCashups(ctx, terminal, true)
				return err
			})
			require.NoError(t, err)
			require.Len(t, current, 1)
			assert.Equal(t, first.ID, current[0].ID)
			assert.True(t, first.NetSales.Equal(current[0].NetSales))
		})
	}
}

func TestStoreMarkProcessed(t *testing.T) {
	ctx := context.Background()
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			terminal := uniqueTerminal()
			cashup := newCashup(terminal)
			closeDate := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
			cashup.CloseDate = &closeDate
			cashup.Outcome = []byte(`{"closeResult":{}}`)

			var affected []int64
			err := s.WithTx(ctx, func(tx Tx) error {
				if err := tx.InsertCashup(ctx, newCashupWithID(cashup)); err != nil {
					return err
				}
				for i := 0; i < 2; i++ {
					n, err := tx.MarkProcessed(ctx, cashup)
					if err != nil {
						return err
					}
					affected = append(affected, n)
				}
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, []int64{1, 0}, affected)

			var stored model.Cashup
			var processed []model.Cashup
			err = s.WithTx(ctx, func(tx Tx) error {
				var err error
				if stored, err = tx.GetCashup(ctx, cashup.ID, false); err != nil {
					return err
				}
				processed, err = tx.ListProcessedCashups(ctx, terminal, 1)
				return err
			})
			require.NoError(t, err)
			assert.True(t, stored.IsProcessed)
			require.NotNil(t, stored.CloseDate)
			assert.True(t, closeDate.Equal(*stored.CloseDate))
			assert.JSONEq(t, `{"closeResult":{}}`, string(stored.Outcome))
			require.Len(t, processed, 1)

			// после закрытия терминал может открыть новую смену
			err = s.WithTx(ctx, func(tx Tx) error {
				return tx.InsertCashup(ctx, newCashup(terminal))
			})
			require.NoError(t, err)
		})
	}
}

// newCashupWithID сбрасывает поля закрытия, которые пишет только MarkProcessed.
func newCashupWithID(c model.Cashup) model.Cashup {
	c.CloseDate = nil
	c.Outcome = nil
	return c
}

func TestStoreSetParentIsFinal(t *testing.T) {
	ctx := context.Background()
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			master := newCashup(uniqueTerminal())
			other := newCashup(uniqueTerminal())
			slave := newCashup(uniqueTerminal())

			err := s.WithTx(ctx, func(tx Tx) error {
				for _, c := range []model.Cashup{master, other, slave} {
					if err := tx.InsertCashup(ctx, c); err != nil {
						return err
					}
				}
				return tx.SetParentCashup(ctx, slave.ID, master.ID)
			})
			require.NoError(t, err)

			err = s.WithTx(ctx, func(tx Tx) error {
				return tx.SetParentCashup(ctx, slave.ID, other.ID)
			})
			require.ErrorIs(t, err, ErrNoRows)

			var children []model.Cashup
			err = s.WithTx(ctx, func(tx Tx) error {
				var err error
				children, err = tx.ListChildCashups(ctx, master.ID)
				return err
			})
			require.NoError(t, err)
			require.Len(t, children, 1)
			assert.Equal(t, slave.ID, children[0].ID)
			assert.Equal(t, master.ID, children[0].ParentCashupID)
		})
	}
}

func TestStorePaymentMethodTotals(t *testing.T) {
	ctx := context.Background()
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			cashup := newCashup(uniqueTerminal())
			pm := model.PaymentMethodCashup{
				ID:              uuid.NewString(),
				CashupID:        cashup.ID,
				PaymentMethodID: "CASH",
				Name:            "Cash",
				Currency:        "EUR",
				Rate:            decimal.NewFromInt(1),
				StartingCash:    decimal.NewFromInt(100),
			}
			delta := model.PaymentTotals{
				Sales:   decimal.RequireFromString("12.50"),
				Returns: decimal.RequireFromString("2.25"),
			}

			err := s.WithTx(ctx, func(tx Tx) error {
				if err := tx.InsertCashup(ctx, cashup); err != nil {
					return err
				}
				if err := tx.InsertPaymentMethodCashup(ctx, pm); err != nil {
					return err
				}
				for i := 0; i < 2; i++ {
					if _, err := tx.AddPaymentMethodTotals(ctx, cashup.ID, "CASH", delta); err != nil {
						return err
					}
				}
				n, err := tx.AddPaymentMethodTotals(ctx, cashup.ID, "CARD", delta)
				if err != nil {
					return err
				}
				if n != 0 {
					return errors.New("unknown payment method row updated")
				}
				return tx.SetPaymentMethodCount(ctx, cashup.ID, "CASH",
					decimal.NewFromInt(120), decimal.NewFromInt(50),
					[]model.Denomination{{Value: decimal.NewFromInt(20), Count: 6}})
			})
			require.NoError(t, err)

			var rows []model.PaymentMethodCashup
			err = s.WithTx(ctx, func(tx Tx) error {
				var err error
				rows, err = tx.ListPaymentMethodCashups(ctx, []string{cashup.ID})
				return err
			})
			require.NoError(t, err)
			require.Len(t, rows, 1)
			row := rows[0]
			assert.Equal(t, "25", row.Sales.String())
			assert.Equal(t, "4.5", row.Returns.String())
			assert.Equal(t, "120.5", row.Expected().String())
			require.True(t, row.CountedCash.Valid)
			assert.True(t, decimal.NewFromInt(120).Equal(row.CountedCash.Decimal))
			require.Len(t, row.Denominations, 1)
			assert.Equal(t, int64(6), row.Denominations[0].Count)

			// повторная вставка строки способа оплаты
			err = s.WithTx(ctx, func(tx Tx) error {
				pm.ID = uuid.NewString()
				return tx.InsertPaymentMethodCashup(ctx, pm)
			})
			require.ErrorIs(t, err, ErrAlreadyExists)
		})
	}
}

func TestMemStoreRollback(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	s.PutFinancialAccount(model.FinancialAccount{ID: "ACC", Currency: "EUR"})

	cashup := newCashup("T1")
	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx Tx) error {
		if err := tx.InsertCashup(ctx, cashup); err != nil {
			return err
		}
		if _, err := tx.NextLineNo(ctx, "ACC"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = s.WithTx(ctx, func(tx Tx) error {
		_, err := tx.GetCashup(ctx, cashup.ID, false)
		require.ErrorIs(t, err, ErrNoRows)

		// счетчик строк тоже откатился
		lineNo, err := tx.NextLineNo(ctx, "ACC")
		require.NoError(t, err)
		assert.Equal(t, int64(lineNoStep), lineNo)
		return nil
	})
	require.NoError(t, err)
}

func TestMemStoreMovementLines(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	s.PutFinancialAccount(model.FinancialAccount{ID: "ACC", Currency: "EUR"})

	err := s.WithTx(ctx, func(tx Tx) error {
		first, err := tx.NextLineNo(ctx, "ACC")
		require.NoError(t, err)
		second, err := tx.NextLineNo(ctx, "ACC")
		require.NoError(t, err)
		assert.Greater(t, second, first)

		movement := model.CashMovement{
			ID:                 "M1",
			CashupID:           "C1",
			FinancialAccountID: "ACC",
			LineNo:             first,
			Direction:          model.MovementDeposit,
			DepositAmount:      decimal.NewFromInt(5),
		}
		require.NoError(t, tx.InsertMovement(ctx, movement))

		// тот же номер строки по счету
		movement.ID = "M2"
		require.ErrorIs(t, tx.InsertMovement(ctx, movement), ErrAlreadyExists)
		return nil
	})
	require.NoError(t, err)

	err = NewMemStore().WithTx(canceled(), func(tx Tx) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}

func canceled() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}
