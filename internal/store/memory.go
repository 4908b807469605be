package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iurnickita/poscashup/internal/model"
)

// MemStore хранит данные в памяти. Транзакции сериализуются одной блокировкой,
// при ошибке состояние восстанавливается из снимка.
type MemStore struct {
	mu   sync.Mutex
	data *memData
}

type memData struct {
	terminals       map[string]model.Terminal
	paymentMethods  map[string][]model.TerminalPaymentMethod
	accounts        map[string]model.FinancialAccount
	reasons         map[string]model.MovementReason
	reconciliations map[string]model.Reconciliation
	terminalErrors  map[string]model.TerminalError

	cashups    map[string]model.Cashup
	cashupSeq  map[string]int64
	seq        int64
	pmCashups  map[string]model.PaymentMethodCashup
	taxes      map[string]model.CashupTax
	movements  map[string]model.CashMovement
	events     map[string]model.CashupEvent
	rates      map[string]model.ConversionRate
	approvals  map[string]model.CashupApproval
	approvalNo map[string]int64
}

func NewMemStore() *MemStore {
	return &MemStore{data: &memData{
		terminals:       map[string]model.Terminal{},
		paymentMethods:  map[string][]model.TerminalPaymentMethod{},
		accounts:        map[string]model.FinancialAccount{},
		reasons:         map[string]model.MovementReason{},
		reconciliations: map[string]model.Reconciliation{},
		terminalErrors:  map[string]model.TerminalError{},
		cashups:         map[string]model.Cashup{},
		cashupSeq:       map[string]int64{},
		pmCashups:       map[string]model.PaymentMethodCashup{},
		taxes:           map[string]model.CashupTax{},
		movements:       map[string]model.CashMovement{},
		events:          map[string]model.CashupEvent{},
		rates:           map[string]model.ConversionRate{},
		approvals:       map[string]model.CashupApproval{},
		approvalNo:      map[string]int64{},
	}}
}

func (s *MemStore) Close() error {
	return nil
}

func (s *MemStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(&memTx{d: s.data}); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

// Наполнение реестра. Реестр терминалов ведет внешняя система, здесь его заполняют тесты.

func (s *MemStore) PutTerminal(terminal model.Terminal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.terminals[terminal.ID] = terminal
}

func (s *MemStore) PutPaymentMethod(pm model.TerminalPaymentMethod) {
	s.mu.Lock()
	defer s.mu.Unlock()
	methods := s.data.paymentMethods[pm.TerminalID]
	methods = slices.DeleteFunc(methods, func(m model.TerminalPaymentMethod) bool {
		return m.PaymentMethodID == pm.PaymentMethodID
	})
	s.data.paymentMethods[pm.TerminalID] = append(methods, pm)
}

func (s *MemStore) PutFinancialAccount(account model.FinancialAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.accounts[account.ID] = account
}

func (s *MemStore) PutMovementReason(reason model.MovementReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.reasons[reason.Code] = reason
}

func (s *MemStore) PutReconciliation(rec model.Reconciliation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.reconciliations[rec.ID] = rec
}

func (s *MemStore) PutTerminalError(terminalError model.TerminalError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.terminalErrors[terminalError.ID] = terminalError
}

func (d *memData) clone() *memData {
	return &memData{
		terminals:       cloneMap(d.terminals),
		paymentMethods:  cloneMap(d.paymentMethods),
		accounts:        cloneMap(d.accounts),
		reasons:         cloneMap(d.reasons),
		reconciliations: cloneMap(d.reconciliations),
		terminalErrors:  cloneMap(d.terminalErrors),
		cashups:         cloneMap(d.cashups),
		cashupSeq:       cloneMap(d.cashupSeq),
		seq:             d.seq,
		pmCashups:       cloneMap(d.pmCashups),
		taxes:           cloneMap(d.taxes),
		movements:       cloneMap(d.movements),
		events:          cloneMap(d.events),
		rates:           cloneMap(d.rates),
		approvals:       cloneMap(d.approvals),
		approvalNo:      cloneMap(d.approvalNo),
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	c := make(map[K]V, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

type memTx struct {
	d *memData
}

var (
	_ Store = (*MemStore)(nil)
	_ Tx    = (*memTx)(nil)
)

// Реестр

func (t *memTx) GetTerminal(_ context.Context, id string) (model.Terminal, error) {
	terminal, ok := t.d.terminals[id]
	if !ok {
		return model.Terminal{}, ErrNoRows
	}
	return terminal, nil
}

func (t *memTx) ListSlaveTerminals(_ context.Context, masterID string) ([]model.Terminal, error) {
	var terminals []model.Terminal
	for _, terminal := range t.d.terminals {
		if terminal.MasterTerminalID == masterID {
			terminals = append(terminals, terminal)
		}
	}
	sort.Slice(terminals, func(i, j int) bool { return terminals[i].ID < terminals[j].ID })
	return terminals, nil
}

func (t *memTx) ListTerminalPaymentMethods(_ context.Context, terminalID string) ([]model.TerminalPaymentMethod, error) {
	methods := slices.Clone(t.d.paymentMethods[terminalID])
	sort.Slice(methods, func(i, j int) bool { return methods[i].PaymentMethodID < methods[j].PaymentMethodID })
	return methods, nil
}

func (t *memTx) GetFinancialAccount(_ context.Context, id string) (model.FinancialAccount, error) {
	account, ok := t.d.accounts[id]
	if !ok {
		return model.FinancialAccount{}, ErrNoRows
	}
	return account, nil
}

func (t *memTx) GetMovementReason(_ context.Context, code string) (model.MovementReason, error) {
	reason, ok := t.d.reasons[code]
	if !ok {
		return model.MovementReason{}, ErrNoRows
	}
	return reason, nil
}

func (t *memTx) CountDraftReconciliations(_ context.Context, accountIDs []string) (int, error) {
	count := 0
	for _, rec := range t.d.reconciliations {
		if rec.Status == model.ReconciliationStatusDraft && slices.Contains(accountIDs, rec.FinancialAccountID) {
			count++
		}
	}
	return count, nil
}

func (t *memTx) CountUnresolvedErrors(_ context.Context, terminalID string) (int, error) {
	count := 0
	for _, e := range t.d.terminalErrors {
		if e.TerminalID == terminalID && e.Status == model.TerminalErrorStatusUnresolved {
			count++
		}
	}
	return count, nil
}

// Смены

func (t *memTx) GetCashup(_ context.Context, id string, _ bool) (model.Cashup, error) {
	cashup, ok := t.d.cashups[id]
	if !ok {
		return model.Cashup{}, ErrNoRows
	}
	return cashup, nil
}

// newestFirst сортирует по времени создания, при равенстве по порядку вставки.
func (t *memTx) newestFirst(cashups []model.Cashup) {
	sort.Slice(cashups, func(i, j int) bool {
		if !cashups[i].CreatedAt.Equal(cashups[j].CreatedAt) {
			return cashups[i].CreatedAt.After(cashups[j].CreatedAt)
		}
		return t.d.cashupSeq[cashups[i].ID] > t.d.cashupSeq[cashups[j].ID]
	})
}

func (t *memTx) ListCurrentCashups(_ context.Context, terminalID string, _ bool) ([]model.Cashup, error) {
	var cashups []model.Cashup
	for _, cashup := range t.d.cashups {
		if cashup.TerminalID == terminalID && !cashup.IsProcessed {
			cashups = append(cashups, cashup)
		}
	}
	t.newestFirst(cashups)
	return cashups, nil
}

func (t *memTx) ListProcessedCashups(_ context.Context, terminalID string, limit int) ([]model.Cashup, error) {
	if limit < 1 {
		limit = 1
	}
	var cashups []model.Cashup
	for _, cashup := range t.d.cashups {
		if cashup.TerminalID == terminalID && cashup.IsProcessed {
			cashups = append(cashups, cashup)
		}
	}
	t.newestFirst(cashups)
	if len(cashups) > limit {
		cashups = cashups[:limit]
	}
	return cashups, nil
}

func (t *memTx) ListChildCashups(_ context.Context, parentID string) ([]model.Cashup, error) {
	var cashups []model.Cashup
	for _, cashup := range t.d.cashups {
		if cashup.ParentCashupID == parentID {
			cashups = append(cashups, cashup)
		}
	}
	t.newestFirst(cashups)
	sort.SliceStable(cashups, func(i, j int) bool { return cashups[i].TerminalID < cashups[j].TerminalID })
	return cashups, nil
}

func (t *memTx) InsertCashup(_ context.Context, cashup model.Cashup) error {
	if _, ok := t.d.cashups[cashup.ID]; ok {
		return ErrAlreadyExists
	}
	// аналог частичного уникального индекса cashup_current_uq
	if !cashup.IsProcessed {
		for _, other := range t.d.cashups {
			if other.TerminalID == cashup.TerminalID && !other.IsProcessed {
				return ErrCurrentCashupExists
			}
		}
	}
	cashup.PaymentMethods = nil
	cashup.Taxes = nil
	t.d.seq++
	t.d.cashupSeq[cashup.ID] = t.d.seq
	t.d.cashups[cashup.ID] = cashup
	return nil
}

func (t *memTx) UpdateCashup(_ context.Context, cashup model.Cashup) error {
	stored, ok := t.d.cashups[cashup.ID]
	if !ok {
		return ErrNoRows
	}
	stored.UserID = cashup.UserID
	stored.NetSales = cashup.NetSales
	stored.GrossSales = cashup.GrossSales
	stored.NetReturns = cashup.NetReturns
	stored.GrossReturns = cashup.GrossReturns
	stored.TotalTransactions = cashup.TotalTransactions
	stored.UpdatedAt = cashup.UpdatedAt
	t.d.cashups[cashup.ID] = stored
	return nil
}

func (t *memTx) SetParentCashup(_ context.Context, id string, parentID string) error {
	stored, ok := t.d.cashups[id]
	if !ok || stored.ParentCashupID != "" {
		return ErrNoRows
	}
	stored.ParentCashupID = parentID
	stored.UpdatedAt = time.Now().UTC()
	t.d.cashups[id] = stored
	return nil
}

func (t *memTx) MarkProcessed(_ context.Context, cashup model.Cashup) (int64, error) {
	stored, ok := t.d.cashups[cashup.ID]
	if !ok || stored.IsProcessed {
		return 0, nil
	}
	stored.IsProcessed = true
	stored.CloseDate = cashup.CloseDate
	stored.Outcome = cashup.Outcome
	stored.UpdatedAt = time.Now().UTC()
	t.d.cashups[cashup.ID] = stored
	return 1, nil
}

// Суммы по способам оплаты

func (t *memTx) findPaymentMethodCashup(cashupID string, paymentMethodID string) (model.PaymentMethodCashup, bool) {
	for _, pm := range t.d.pmCashups {
		if pm.CashupID == cashupID && pm.PaymentMethodID == paymentMethodID {
			return pm, true
		}
	}
	return model.PaymentMethodCashup{}, false
}

func (t *memTx) ListPaymentMethodCashups(_ context.Context, cashupIDs []string) ([]model.PaymentMethodCashup, error) {
	var methods []model.PaymentMethodCashup
	for _, pm := range t.d.pmCashups {
		if slices.Contains(cashupIDs, pm.CashupID) {
			pm.Denominations = slices.Clone(pm.Denominations)
			methods = append(methods, pm)
		}
	}
	sort.Slice(methods, func(i, j int) bool {
		if methods[i].CashupID != methods[j].CashupID {
			return methods[i].CashupID < methods[j].CashupID
		}
		return methods[i].PaymentMethodID < methods[j].PaymentMethodID
	})
	return methods, nil
}

func (t *memTx) InsertPaymentMethodCashup(_ context.Context, pm model.PaymentMethodCashup) error {
	if _, ok := t.d.pmCashups[pm.ID]; ok {
		return ErrAlreadyExists
	}
	if _, ok := t.findPaymentMethodCashup(pm.CashupID, pm.PaymentMethodID); ok {
		return ErrAlreadyExists
	}
	pm.Denominations = slices.Clone(pm.Denominations)
	t.d.pmCashups[pm.ID] = pm
	return nil
}

func (t *memTx) UpdatePaymentMethodCashup(_ context.Context, pm model.PaymentMethodCashup) error {
	stored, ok := t.findPaymentMethodCashup(pm.CashupID, pm.PaymentMethodID)
	if !ok {
		return ErrNoRows
	}
	stored.Rate = pm.Rate
	stored.StartingCash = pm.StartingCash
	stored.PaymentTotals = pm.PaymentTotals
	t.d.pmCashups[stored.ID] = stored
	return nil
}

func (t *memTx) AddPaymentMethodTotals(_ context.Context, cashupID string, paymentMethodID string, delta model.PaymentTotals) (int64, error) {
	stored, ok := t.findPaymentMethodCashup(cashupID, paymentMethodID)
	if !ok {
		return 0, nil
	}
	stored.PaymentTotals = stored.PaymentTotals.Add(delta)
	t.d.pmCashups[stored.ID] = stored
	return 1, nil
}

func (t *memTx) SetPaymentMethodCount(_ context.Context, cashupID string, paymentMethodID string, counted decimal.Decimal, keep decimal.Decimal, denominations []model.Denomination) error {
	stored, ok := t.findPaymentMethodCashup(cashupID, paymentMethodID)
	if !ok {
		return ErrNoRows
	}
	stored.CountedCash = decimal.NewNullDecimal(counted)
	stored.AmountToKeep = decimal.NewNullDecimal(keep)
	stored.Denominations = slices.Clone(denominations)
	t.d.pmCashups[stored.ID] = stored
	return nil
}

func (t *memTx) ListCashupTaxes(_ context.Context, cashupID string) ([]model.CashupTax, error) {
	var taxes []model.CashupTax
	for _, tax := range t.d.taxes {
		if tax.CashupID == cashupID {
			taxes = append(taxes, tax)
		}
	}
	sort.Slice(taxes, func(i, j int) bool {
		if taxes[i].OrderType != taxes[j].OrderType {
			return taxes[i].OrderType < taxes[j].OrderType
		}
		return taxes[i].Name < taxes[j].Name
	})
	return taxes, nil
}

func (t *memTx) UpsertCashupTax(_ context.Context, tax model.CashupTax) error {
	if stored, ok := t.d.taxes[tax.ID]; ok && stored.CashupID != tax.CashupID {
		return nil
	}
	t.d.taxes[tax.ID] = tax
	return nil
}

// Движения

func (t *memTx) GetMovement(_ context.Context, id string) (model.CashMovement, error) {
	m, ok := t.d.movements[id]
	if !ok {
		return model.CashMovement{}, ErrNoRows
	}
	return m, nil
}

func (t *memTx) ListMovements(_ context.Context, cashupID string) ([]model.CashMovement, error) {
	var movements []model.CashMovement
	for _, m := range t.d.movements {
		if m.CashupID == cashupID {
			movements = append(movements, m)
		}
	}
	sort.Slice(movements, func(i, j int) bool {
		if !movements[i].CreatedAt.Equal(movements[j].CreatedAt) {
			return movements[i].CreatedAt.Before(movements[j].CreatedAt)
		}
		return movements[i].LineNo < movements[j].LineNo
	})
	return movements, nil
}

func (t *memTx) NextLineNo(_ context.Context, accountID string) (int64, error) {
	account, ok := t.d.accounts[accountID]
	if !ok {
		return 0, ErrNoRows
	}
	account.LastLineNo += lineNoStep
	t.d.accounts[accountID] = account
	return account.LastLineNo, nil
}

func (t *memTx) InsertMovement(_ context.Context, m model.CashMovement) error {
	if _, ok := t.d.movements[m.ID]; ok {
		return ErrAlreadyExists
	}
	for _, other := range t.d.movements {
		if other.FinancialAccountID == m.FinancialAccountID && other.LineNo == m.LineNo {
			return ErrAlreadyExists
		}
	}
	t.d.movements[m.ID] = m
	return nil
}

func (t *memTx) InsertCashupEvent(_ context.Context, e model.CashupEvent) error {
	if _, ok := t.d.events[e.ID]; ok {
		return ErrAlreadyExists
	}
	t.d.events[e.ID] = e
	return nil
}

func (t *memTx) InsertConversionRate(_ context.Context, r model.ConversionRate) error {
	if _, ok := t.d.rates[r.ID]; ok {
		return ErrAlreadyExists
	}
	t.d.rates[r.ID] = r
	return nil
}

// Подтверждения

func (t *memTx) InsertApproval(_ context.Context, a model.CashupApproval) error {
	if _, ok := t.d.approvals[a.ID]; ok {
		return ErrAlreadyExists
	}
	t.d.seq++
	t.d.approvalNo[a.ID] = t.d.seq
	t.d.approvals[a.ID] = a
	return nil
}

func (t *memTx) ListApprovals(_ context.Context, cashupID string) ([]model.CashupApproval, error) {
	var approvals []model.CashupApproval
	for _, a := range t.d.approvals {
		if a.CashupID == cashupID {
			approvals = append(approvals, a)
		}
	}
	sort.Slice(approvals, func(i, j int) bool {
		return t.d.approvalNo[approvals[i].ID] < t.d.approvalNo[approvals[j].ID]
	})
	return approvals, nil
}

// Счетчики для проверок в тестах

// CountEvents returns the number of cashup events linked to transactionID.
func (s *MemStore) CountEvents(transactionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, e := range s.data.events {
		if e.TransactionID == transactionID {
			count++
		}
	}
	return count
}

// ConversionRates returns the rate records captured for transactionID.
func (s *MemStore) ConversionRates(transactionID string) []model.ConversionRate {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rates []model.ConversionRate
	for _, r := range s.data.rates {
		if r.TransactionID == transactionID {
			rates = append(rates, r)
		}
	}
	return rates
}
