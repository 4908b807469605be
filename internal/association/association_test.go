package association

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iurnickita/poscashup/internal/apperr"
	"github.com/iurnickita/poscashup/internal/cashup"
	"github.com/iurnickita/poscashup/internal/model"
	"github.com/iurnickita/poscashup/internal/store"
	"github.com/iurnickita/poscashup/internal/store/storetest"
)

type fixture struct {
	store   *store.MemStore
	cashups cashup.Cashups
	assoc   Associator
}

func newFixture() fixture {
	cashups := cashup.NewCashups(zap.NewNop())
	return fixture{
		store:   storetest.NewStore(),
		cashups: cashups,
		assoc:   NewAssociator(cashups, zap.NewNop()),
	}
}

func (f fixture) open(t *testing.T, id string, terminalID string) {
	t.Helper()
	ctx := context.Background()
	storetest.Tx(t, f.store, func(tx store.Tx) error {
		terminal, err := tx.GetTerminal(ctx, terminalID)
		if err != nil {
			return err
		}
		_, err = f.cashups.Upsert(ctx, tx, storetest.Context(terminalID), terminal, storetest.Cashup(id, terminalID, 0, 0))
		return err
	})
}

func (f fixture) associate(id string, terminalID string) (Result, error) {
	ctx := context.Background()
	var result Result
	err := f.store.WithTx(ctx, func(tx store.Tx) error {
		terminal, err := tx.GetTerminal(ctx, terminalID)
		if err != nil {
			return err
		}
		slave, err := f.cashups.Get(ctx, tx, id, true)
		if err != nil {
			return err
		}
		result, err = f.assoc.AssociateSlaveWithMaster(ctx, tx, slave, terminal)
		return err
	})
	return result, err
}

func (f fixture) parent(t *testing.T, id string) string {
	t.Helper()
	var parent string
	storetest.Tx(t, f.store, func(tx store.Tx) error {
		c, err := tx.GetCashup(context.Background(), id, false)
		parent = c.ParentCashupID
		return err
	})
	return parent
}

func TestAssociateStandalone(t *testing.T) {
	f := newFixture()
	f.open(t, "T1-1", storetest.Standalone)

	result, err := f.associate("T1-1", storetest.Standalone)
	require.NoError(t, err)
	assert.False(t, result.HasParent)
	assert.Empty(t, f.parent(t, "T1-1"))
}

func TestAssociateDeferredUntilMasterOpens(t *testing.T) {
	f := newFixture()
	f.open(t, "S1-1", storetest.Slave1)

	result, err := f.associate("S1-1", storetest.Slave1)
	require.NoError(t, err)
	assert.False(t, result.HasParent)
	assert.Empty(t, f.parent(t, "S1-1"))

	f.open(t, "M-1", storetest.Master)

	result, err = f.associate("S1-1", storetest.Slave1)
	require.NoError(t, err)
	assert.True(t, result.HasParent)
	assert.Equal(t, "M-1", result.ParentCashupID)
	assert.Equal(t, "M-1", f.parent(t, "S1-1"))

	// повторное связывание с тем же мастером ничего не меняет
	result, err = f.associate("S1-1", storetest.Slave1)
	require.NoError(t, err)
	assert.Equal(t, "M-1", result.ParentCashupID)
}

func TestAssociateIsMonotonic(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.open(t, "M-1", storetest.Master)
	f.open(t, "S1-1", storetest.Slave1)

	_, err := f.associate("S1-1", storetest.Slave1)
	require.NoError(t, err)

	// мастер закрывает смену и открывает новую
	storetest.Tx(t, f.store, func(tx store.Tx) error {
		return f.cashups.MarkProcessed(ctx, tx, model.Cashup{ID: "M-1"})
	})
	f.open(t, "M-2", storetest.Master)

	_, err = f.associate("S1-1", storetest.Slave1)
	require.ErrorIs(t, err, apperr.ErrAssociationConflict)
	assert.Equal(t, "M-1", f.parent(t, "S1-1"))
}

func TestAssociateProcessedSlaveIsNotWritten(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.open(t, "S1-1", storetest.Slave1)
	storetest.Tx(t, f.store, func(tx store.Tx) error {
		return f.cashups.MarkProcessed(ctx, tx, model.Cashup{ID: "S1-1"})
	})
	f.open(t, "M-1", storetest.Master)

	result, err := f.associate("S1-1", storetest.Slave1)
	require.NoError(t, err)
	assert.False(t, result.HasParent)
	assert.Empty(t, f.parent(t, "S1-1"))
}
