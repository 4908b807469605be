package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iurnickita/poscashup/internal/apperr"
	"github.com/iurnickita/poscashup/internal/closing"
	"github.com/iurnickita/poscashup/internal/hook"
	"github.com/iurnickita/poscashup/internal/model"
	"github.com/iurnickita/poscashup/internal/movement"
	"github.com/iurnickita/poscashup/internal/service/config"
	"github.com/iurnickita/poscashup/internal/store"
	"github.com/iurnickita/poscashup/internal/store/storetest"
)

type brokenMovementHook struct {
	calls int
}

func (h *brokenMovementHook) OnMovementRecorded(context.Context, model.RequestContext, model.CashMovement) error {
	h.calls++
	return errors.New("downstream unavailable")
}

func newService(t *testing.T, hooks ...any) (Service, *store.MemStore) {
	t.Helper()
	s := storetest.NewStore()
	return NewService(config.Config{}, s, hook.NewPipeline(zap.NewNop(), hooks...), zap.NewNop()), s
}

func TestOpenSlaveAssociates(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	res, err := svc.Open(ctx, storetest.Context(storetest.Slave1), storetest.Cashup("S1-1", "", 10, 0))
	require.NoError(t, err)
	assert.Empty(t, res.ParentCashupID)

	_, err = svc.Open(ctx, storetest.Context(storetest.Master), storetest.Cashup("M-1", "", 0, 0))
	require.NoError(t, err)

	// повторное открытие слейва связывает его с мастером
	res, err = svc.Open(ctx, storetest.Context(storetest.Slave1), storetest.Cashup("S1-1", "", 20, 0))
	require.NoError(t, err)
	assert.Equal(t, "M-1", res.ParentCashupID)
	assert.False(t, res.IsProcessed)

	assoc, err := svc.Associate(ctx, storetest.Context(storetest.Slave1), storetest.Slave1, "S1-1")
	require.NoError(t, err)
	assert.True(t, assoc.HasMaster)
	assert.Equal(t, "M-1", assoc.ParentCashupID)

	_, err = svc.Associate(ctx, storetest.Context(storetest.Slave1), storetest.Slave1, "missing")
	require.ErrorIs(t, err, apperr.ErrCashupNotFound)
	_, err = svc.Associate(ctx, storetest.Context(storetest.Slave1), "nope", "S1-1")
	require.ErrorIs(t, err, apperr.ErrTerminalNotFound)
}

func TestOpenSlaveAfterMasterRotation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	master := storetest.Context(storetest.Master)
	slave := storetest.Context(storetest.Slave1)

	_, err := svc.Open(ctx, master, storetest.Cashup("M-1", "", 0, 0))
	require.NoError(t, err)
	res, err := svc.Open(ctx, slave, storetest.Cashup("S1-1", "", 10, 0))
	require.NoError(t, err)
	require.Equal(t, "M-1", res.ParentCashupID)

	_, err = svc.Close(ctx, master, closing.Request{CashupID: "M-1", CloseDate: time.Now()})
	require.NoError(t, err)
	_, err = svc.Open(ctx, master, storetest.Cashup("M-2", "", 0, 0))
	require.NoError(t, err)

	// слейв продолжает обновлять свою смену, связь с M-1 сохраняется
	res, err = svc.Open(ctx, slave, storetest.Cashup("S1-1", "", 25, 0))
	require.NoError(t, err)
	assert.Equal(t, "M-1", res.ParentCashupID)

	snap, err := svc.Snapshot(ctx, slave, "", false)
	require.NoError(t, err)
	require.Len(t, snap, 1)
	assert.Equal(t, "25", snap[0].Cashup.NetSales.String())
	assert.Equal(t, "M-1", snap[0].Cashup.ParentCashupID)

	// явное связывание по-прежнему сообщает о конфликте
	_, err = svc.Associate(ctx, slave, storetest.Slave1, "S1-1")
	require.ErrorIs(t, err, apperr.ErrAssociationConflict)
}

func TestOpenAfterCloseIsNoop(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	rc := storetest.Context(storetest.Standalone)

	_, err := svc.Open(ctx, rc, storetest.Cashup("C1", "", 10, 0))
	require.NoError(t, err)
	_, err = svc.Close(ctx, rc, closing.Request{CashupID: "C1", CloseDate: time.Now()})
	require.NoError(t, err)

	res, err := svc.Open(ctx, rc, storetest.Cashup("C1", "", 99, 0))
	require.NoError(t, err)
	assert.True(t, res.IsProcessed)

	snap, err := svc.Snapshot(ctx, rc, "", true)
	require.NoError(t, err)
	require.Len(t, snap, 1)
	assert.Equal(t, "10", snap[0].Cashup.NetSales.String())

	snap, err = svc.Snapshot(ctx, rc, "", false)
	require.NoError(t, err)
	assert.Empty(t, snap)
}

// racingStore отдает "смены нет" первым stale чтениям, как будто
// параллельный запрос вставил смену между чтением и вставкой.
type racingStore struct {
	*store.MemStore
	stale int
}

func (s *racingStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.MemStore.WithTx(ctx, func(tx store.Tx) error {
		return fn(staleTx{Tx: tx, stale: &s.stale})
	})
}

type staleTx struct {
	store.Tx
	stale *int
}

func (tx staleTx) GetCashup(ctx context.Context, id string, forUpdate bool) (model.Cashup, error) {
	if *tx.stale > 0 {
		*tx.stale--
		return model.Cashup{}, store.ErrNoRows
	}
	return tx.Tx.GetCashup(ctx, id, forUpdate)
}

func TestOpenConcurrentInsertRetriesAsUpdate(t *testing.T) {
	s := &racingStore{MemStore: storetest.NewStore()}
	svc := NewService(config.Config{}, s, hook.NewPipeline(zap.NewNop()), zap.NewNop())
	ctx := context.Background()
	rc := storetest.Context(storetest.Standalone)

	_, err := svc.Open(ctx, rc, storetest.Cashup("C1", "", 10, 0))
	require.NoError(t, err)

	// оба чтения первой попытки не видят смену, вставка упирается в первичный ключ
	s.stale = 2
	res, err := svc.Open(ctx, rc, storetest.Cashup("C1", "", 30, 0))
	require.NoError(t, err)
	assert.Equal(t, "C1", res.CashupID)
	assert.Zero(t, s.stale)

	snap, err := svc.Snapshot(ctx, rc, "", false)
	require.NoError(t, err)
	require.Len(t, snap, 1)
	assert.Equal(t, "30", snap[0].Cashup.NetSales.String())

	// другая открытая смена терминала остается ошибкой целостности
	_, err = svc.Open(ctx, rc, storetest.Cashup("C2", "", 0, 0))
	require.ErrorIs(t, err, apperr.ErrDataIntegrity)
}

func TestMovementSurvivesHookFailure(t *testing.T) {
	broken := &brokenMovementHook{}
	svc, s := newService(t, broken)
	ctx := context.Background()
	rc := storetest.Context(storetest.Standalone)

	_, err := svc.Open(ctx, rc, storetest.Cashup("C1", "", 0, 0))
	require.NoError(t, err)

	req := movement.Request{
		TransactionID:   "TX-1",
		CashupID:        "C1",
		PaymentMethodID: storetest.Cash,
		Direction:       model.MovementDeposit,
		Amount:          decimal.NewFromInt(50),
	}
	res, err := svc.RecordMovement(ctx, rc, req)
	require.NoError(t, err)
	assert.Equal(t, 1, broken.calls)
	assert.Equal(t, 1, s.CountEvents(res.Movement.ID))

	// повтор не вызывает хуки и не создает записей
	res, err = svc.RecordMovement(ctx, rc, req)
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	assert.Equal(t, 1, broken.calls)

	snap, err := svc.Snapshot(ctx, rc, "", false)
	require.NoError(t, err)
	require.Len(t, snap, 1)
	require.Len(t, snap[0].Movements, 1)
	assert.Equal(t, "TX-1", snap[0].Movements[0].ID)
}

func TestMasterSummary(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.MasterSummary(ctx, storetest.Context(storetest.Master), storetest.Master)
	require.ErrorIs(t, err, apperr.ErrNoMasterCashup)
	_, err = svc.MasterSummary(ctx, storetest.Context(storetest.Slave1), storetest.Slave1)
	require.ErrorIs(t, err, apperr.ErrNotMaster)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.Open(ctx, storetest.Context(storetest.Master), storetest.Cashup("M-1", "", 0, 0))
	require.NoError(t, err)
	_, err = svc.Open(ctx, storetest.Context(storetest.Slave1), storetest.Cashup("S1-1", "", 70, 30))
	require.NoError(t, err)

	summary, err := svc.MasterSummary(ctx, storetest.Context(storetest.Master), "")
	require.NoError(t, err)
	assert.Equal(t, "M-1", summary.MasterCashupID)
	require.Len(t, summary.Slaves, 2)
	require.Len(t, summary.PaymentMethodSummary, 1)
	assert.Equal(t, storetest.Cash, summary.PaymentMethodSummary[0].PaymentMethodID)
	assert.Equal(t, "70", summary.PaymentMethodSummary[0].Sales.String())

	s1 := summary.Slaves[0]
	assert.Equal(t, storetest.Slave1, s1.TerminalID)
	assert.True(t, s1.HasCashup)
	assert.Equal(t, "S1-1", s1.CashupID)
	assert.Equal(t, 1, s1.PendingTransactions)
	require.Len(t, s1.PaymentMethodSummary, 1)
	assert.Equal(t, "70", s1.PaymentMethodSummary[0].Sales.String())

	s2 := summary.Slaves[1]
	assert.Equal(t, storetest.Slave2, s2.TerminalID)
	assert.False(t, s2.HasCashup)
	assert.Empty(t, s2.PaymentMethodSummary)
}

func TestSnapshotBlockedByTerminalErrors(t *testing.T) {
	svc, s := newService(t)
	ctx := context.Background()
	rc := storetest.Context(storetest.Standalone)

	_, err := svc.Open(ctx, rc, storetest.Cashup("C1", "", 0, 0))
	require.NoError(t, err)
	s.PutTerminalError(model.TerminalError{
		ID:         "E1",
		TerminalID: storetest.Standalone,
		Message:    "order sync failed",
		Status:     model.TerminalErrorStatusUnresolved,
	})

	_, err = svc.Snapshot(ctx, rc, "", false)
	require.ErrorIs(t, err, apperr.ErrUnresolvedErrors)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}
