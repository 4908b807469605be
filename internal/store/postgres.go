package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"github.com/iurnickita/poscashup/internal/model"
	"github.com/iurnickita/poscashup/internal/store/config"
)

type store struct {
	database *sql.DB
	cfg      config.Config
}

// NewStore подключается к PostgreSQL и создает недостающие таблицы.
func NewStore(cfg config.Config) (Store, error) {
	db, err := sql.Open("pgx", cfg.DBDsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return &store{database: db, cfg: cfg}, nil
}

func (store *store) Close() error {
	return store.database.Close()
}

func (store *store) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	if store.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, store.cfg.QueryTimeout)
		defer cancel()
	}

	sqlTx, err := store.database.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = sqlTx.Rollback() }()

	if err := fn(&pgTx{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

type pgTx struct {
	tx *sql.Tx
}

var _ Tx = (*pgTx)(nil)

// Реестр

func (t *pgTx) GetTerminal(ctx context.Context, id string) (model.Terminal, error) {
	var terminal model.Terminal
	var master sql.NullString
	err := t.tx.QueryRowContext(ctx,
		"SELECT id, client_id, organization_id, name, is_master, master_terminal_id"+
			" FROM terminal"+
			" WHERE id = $1",
		id).Scan(&terminal.ID,
		&terminal.ClientID,
		&terminal.OrganizationID,
		&terminal.Name,
		&terminal.IsMaster,
		&master)
	if err != nil {
		return model.Terminal{}, noRows(err)
	}
	terminal.MasterTerminalID = master.String
	return terminal, nil
}

func (t *pgTx) ListSlaveTerminals(ctx context.Context, masterID string) ([]model.Terminal, error) {
	rows, err := t.tx.QueryContext(ctx,
		"SELECT id, client_id, organization_id, name, is_master, master_terminal_id"+
			" FROM terminal"+
			" WHERE master_terminal_id = $1"+
			" ORDER BY id",
		masterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var terminals []model.Terminal
	for rows.Next() {
		var terminal model.Terminal
		var master sql.NullString
		if err := rows.Scan(&terminal.ID,
			&terminal.ClientID,
			&terminal.OrganizationID,
			&terminal.Name,
			&terminal.IsMaster,
			&master); err != nil {
			return nil, err
		}
		terminal.MasterTerminalID = master.String
		terminals = append(terminals, terminal)
	}
	return terminals, rows.Err()
}

func (t *pgTx) ListTerminalPaymentMethods(ctx context.Context, terminalID string) ([]model.TerminalPaymentMethod, error) {
	rows, err := t.tx.QueryContext(ctx,
		"SELECT terminal_id, payment_method_id, name, financial_account_id, currency,"+
			" is_shared, is_cash, gl_item_deposit, gl_item_drop"+
			" FROM terminal_payment_method"+
			" WHERE terminal_id = $1"+
			" ORDER BY payment_method_id",
		terminalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var methods []model.TerminalPaymentMethod
	for rows.Next() {
		var pm model.TerminalPaymentMethod
		var account sql.NullString
		if err := rows.Scan(&pm.TerminalID,
			&pm.PaymentMethodID,
			&pm.Name,
			&account,
			&pm.Currency,
			&pm.IsShared,
			&pm.IsCash,
			&pm.GLItemDeposit,
			&pm.GLItemDrop); err != nil {
			return nil, err
		}
		pm.FinancialAccountID = account.String
		methods = append(methods, pm)
	}
	return methods, rows.Err()
}

func (t *pgTx) GetFinancialAccount(ctx context.Context, id string) (model.FinancialAccount, error) {
	var account model.FinancialAccount
	err := t.tx.QueryRowContext(ctx,
		"SELECT id, currency, last_line_no FROM financial_account WHERE id = $1",
		id).Scan(&account.ID, &account.Currency, &account.LastLineNo)
	if err != nil {
		return model.FinancialAccount{}, noRows(err)
	}
	return account, nil
}

func (t *pgTx) GetMovementReason(ctx context.Context, code string) (model.MovementReason, error) {
	var reason model.MovementReason
	err := t.tx.QueryRowContext(ctx,
		"SELECT code, name, gl_item_code FROM movement_reason WHERE code = $1",
		code).Scan(&reason.Code, &reason.Name, &reason.GLItemCode)
	if err != nil {
		return model.MovementReason{}, noRows(err)
	}
	return reason, nil
}

func (t *pgTx) CountDraftReconciliations(ctx context.Context, accountIDs []string) (int, error) {
	if len(accountIDs) == 0 {
		return 0, nil
	}
	var count int
	err := t.tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM reconciliation"+
			" WHERE financial_account_id = ANY($1)"+
			"   AND status = $2",
		accountIDs, model.ReconciliationStatusDraft).Scan(&count)
	return count, err
}

func (t *pgTx) CountUnresolvedErrors(ctx context.Context, terminalID string) (int, error) {
	var count int
	err := t.tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM terminal_error"+
			" WHERE terminal_id = $1"+
			"   AND status = $2",
		terminalID, model.TerminalErrorStatusUnresolved).Scan(&count)
	return count, err
}

// Смены

const cashupColumns = "id, client_id, organization_id, terminal_id, user_id," +
	" net_sales, gross_sales, net_returns, gross_returns, total_transactions," +
	" is_processed, parent_cashup_id, close_date, outcome, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCashup(row rowScanner) (model.Cashup, error) {
	var cashup model.Cashup
	var parent sql.NullString
	var closeDate sql.NullTime
	var outcome []byte
	err := row.Scan(&cashup.ID,
		&cashup.ClientID,
		&cashup.OrganizationID,
		&cashup.TerminalID,
		&cashup.UserID,
		&cashup.NetSales,
		&cashup.GrossSales,
		&cashup.NetReturns,
		&cashup.GrossReturns,
		&cashup.TotalTransactions,
		&cashup.IsProcessed,
		&parent,
		&closeDate,
		&outcome,
		&cashup.CreatedAt,
		&cashup.UpdatedAt)
	if err != nil {
		return model.Cashup{}, err
	}
	cashup.ParentCashupID = parent.String
	if closeDate.Valid {
		at := closeDate.Time.UTC()
		cashup.CloseDate = &at
	}
	if len(outcome) > 0 {
		cashup.Outcome = json.RawMessage(outcome)
	}
	cashup.CreatedAt = cashup.CreatedAt.UTC()
	cashup.UpdatedAt = cashup.UpdatedAt.UTC()
	return cashup, nil
}

func (t *pgTx) queryCashups(ctx context.Context, query string, args ...any) ([]model.Cashup, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cashups []model.Cashup
	for rows.Next() {
		cashup, err := scanCashup(rows)
		if err != nil {
			return nil, err
		}
		cashups = append(cashups, cashup)
	}
	return cashups, rows.Err()
}

func (t *pgTx) GetCashup(ctx context.Context, id string, forUpdate bool) (model.Cashup, error) {
	query := "SELECT " + cashupColumns + " FROM cashup WHERE id = $1"
	if forUpdate {
		query += " FOR UPDATE"
	}
	cashup, err := scanCashup(t.tx.QueryRowContext(ctx, query, id))
	if err != nil {
		return model.Cashup{}, noRows(err)
	}
	return cashup, nil
}

func (t *pgTx) ListCurrentCashups(ctx context.Context, terminalID string, forUpdate bool) ([]model.Cashup, error) {
	query := "SELECT " + cashupColumns + " FROM cashup" +
		" WHERE terminal_id = $1" +
		"   AND NOT is_processed" +
		" ORDER BY created_at DESC"
	if forUpdate {
		query += " FOR UPDATE"
	}
	return t.queryCashups(ctx, query, terminalID)
}

func (t *pgTx) ListProcessedCashups(ctx context.Context, terminalID string, limit int) ([]model.Cashup, error) {
	if limit < 1 {
		limit = 1
	}
	return t.queryCashups(ctx,
		"SELECT "+cashupColumns+" FROM cashup"+
			" WHERE terminal_id = $1"+
			"   AND is_processed"+
			" ORDER BY close_date DESC NULLS LAST, created_at DESC"+
			" LIMIT $2",
		terminalID, limit)
}

func (t *pgTx) ListChildCashups(ctx context.Context, parentID string) ([]model.Cashup, error) {
	return t.queryCashups(ctx,
		"SELECT "+cashupColumns+" FROM cashup"+
			" WHERE parent_cashup_id = $1"+
			" ORDER BY terminal_id, created_at DESC",
		parentID)
}

func (t *pgTx) InsertCashup(ctx context.Context, cashup model.Cashup) error {
	_, err := t.tx.ExecContext(ctx,
		"INSERT INTO cashup ("+cashupColumns+")"+
			" VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)",
		cashup.ID,
		cashup.ClientID,
		cashup.OrganizationID,
		cashup.TerminalID,
		cashup.UserID,
		cashup.NetSales,
		cashup.GrossSales,
		cashup.NetReturns,
		cashup.GrossReturns,
		cashup.TotalTransactions,
		cashup.IsProcessed,
		nullIfEmpty(cashup.ParentCashupID),
		nullTime(cashup.CloseDate),
		nullJSON(cashup.Outcome),
		cashup.CreatedAt,
		cashup.UpdatedAt)
	return uniqueViolation(err)
}

// UpdateCashup перезаписывает накапливаемые поля. Связь с мастером и статус не трогает.
func (t *pgTx) UpdateCashup(ctx context.Context, cashup model.Cashup) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE cashup"+
			" SET user_id = $2, net_sales = $3, gross_sales = $4, net_returns = $5,"+
			"     gross_returns = $6, total_transactions = $7, updated_at = $8"+
			" WHERE id = $1",
		cashup.ID,
		cashup.UserID,
		cashup.NetSales,
		cashup.GrossSales,
		cashup.NetReturns,
		cashup.GrossReturns,
		cashup.TotalTransactions,
		cashup.UpdatedAt)
	return affectedOne(res, err)
}

func (t *pgTx) SetParentCashup(ctx context.Context, id string, parentID string) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE cashup SET parent_cashup_id = $2, updated_at = $3"+
			" WHERE id = $1"+
			"   AND parent_cashup_id IS NULL",
		id, parentID, time.Now().UTC())
	return affectedOne(res, err)
}

func (t *pgTx) MarkProcessed(ctx context.Context, cashup model.Cashup) (int64, error) {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE cashup SET is_processed = TRUE, close_date = $2, outcome = $3, updated_at = $4"+
			" WHERE id = $1"+
			"   AND NOT is_processed",
		cashup.ID, nullTime(cashup.CloseDate), nullJSON(cashup.Outcome), time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Суммы по способам оплаты

const paymentMethodColumns = "id, cashup_id, payment_method_id, name, currency, rate, starting_cash," +
	" total_sales, total_returns, total_deposits, total_drops, amount_to_keep, counted_cash, denominations"

func (t *pgTx) ListPaymentMethodCashups(ctx context.Context, cashupIDs []string) ([]model.PaymentMethodCashup, error) {
	if len(cashupIDs) == 0 {
		return nil, nil
	}
	rows, err := t.tx.QueryContext(ctx,
		"SELECT "+paymentMethodColumns+
			" FROM payment_method_cashup"+
			" WHERE cashup_id = ANY($1)"+
			" ORDER BY cashup_id, payment_method_id",
		cashupIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var methods []model.PaymentMethodCashup
	for rows.Next() {
		var pm model.PaymentMethodCashup
		var denominations []byte
		if err := rows.Scan(&pm.ID,
			&pm.CashupID,
			&pm.PaymentMethodID,
			&pm.Name,
			&pm.Currency,
			&pm.Rate,
			&pm.StartingCash,
			&pm.Sales,
			&pm.Returns,
			&pm.Deposits,
			&pm.Drops,
			&pm.AmountToKeep,
			&pm.CountedCash,
			&denominations); err != nil {
			return nil, err
		}
		if len(denominations) > 0 {
			if err := json.Unmarshal(denominations, &pm.Denominations); err != nil {
				return nil, err
			}
		}
		methods = append(methods, pm)
	}
	return methods, rows.Err()
}

func (t *pgTx) InsertPaymentMethodCashup(ctx context.Context, pm model.PaymentMethodCashup) error {
	denominations, err := marshalDenominations(pm.Denominations)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx,
		"INSERT INTO payment_method_cashup ("+paymentMethodColumns+")"+
			" VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)",
		pm.ID,
		pm.CashupID,
		pm.PaymentMethodID,
		pm.Name,
		pm.Currency,
		pm.Rate,
		pm.StartingCash,
		pm.Sales,
		pm.Returns,
		pm.Deposits,
		pm.Drops,
		pm.AmountToKeep,
		pm.CountedCash,
		denominations)
	return uniqueViolation(err)
}

func (t *pgTx) UpdatePaymentMethodCashup(ctx context.Context, pm model.PaymentMethodCashup) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE payment_method_cashup"+
			" SET rate = $3, starting_cash = $4, total_sales = $5, total_returns = $6,"+
			"     total_deposits = $7, total_drops = $8"+
			" WHERE cashup_id = $1"+
			"   AND payment_method_id = $2",
		pm.CashupID,
		pm.PaymentMethodID,
		pm.Rate,
		pm.StartingCash,
		pm.Sales,
		pm.Returns,
		pm.Deposits,
		pm.Drops)
	return affectedOne(res, err)
}

func (t *pgTx) AddPaymentMethodTotals(ctx context.Context, cashupID string, paymentMethodID string, delta model.PaymentTotals) (int64, error) {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE payment_method_cashup"+
			" SET total_sales = total_sales + $3, total_returns = total_returns + $4,"+
			"     total_deposits = total_deposits + $5, total_drops = total_drops + $6"+
			" WHERE cashup_id = $1"+
			"   AND payment_method_id = $2",
		cashupID, paymentMethodID, delta.Sales, delta.Returns, delta.Deposits, delta.Drops)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (t *pgTx) SetPaymentMethodCount(ctx context.Context, cashupID string, paymentMethodID string, counted decimal.Decimal, keep decimal.Decimal, denominations []model.Denomination) error {
	denominationsJSON, err := marshalDenominations(denominations)
	if err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx,
		"UPDATE payment_method_cashup"+
			" SET counted_cash = $3, amount_to_keep = $4, denominations = $5"+
			" WHERE cashup_id = $1"+
			"   AND payment_method_id = $2",
		cashupID, paymentMethodID, counted, keep, denominationsJSON)
	return affectedOne(res, err)
}

func (t *pgTx) ListCashupTaxes(ctx context.Context, cashupID string) ([]model.CashupTax, error) {
	rows, err := t.tx.QueryContext(ctx,
		"SELECT id, cashup_id, name, order_type, amount"+
			" FROM cashup_tax"+
			" WHERE cashup_id = $1"+
			" ORDER BY order_type, name",
		cashupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var taxes []model.CashupTax
	for rows.Next() {
		var tax model.CashupTax
		if err := rows.Scan(&tax.ID, &tax.CashupID, &tax.Name, &tax.OrderType, &tax.Amount); err != nil {
			return nil, err
		}
		taxes = append(taxes, tax)
	}
	return taxes, rows.Err()
}

func (t *pgTx) UpsertCashupTax(ctx context.Context, tax model.CashupTax) error {
	_, err := t.tx.ExecContext(ctx,
		"INSERT INTO cashup_tax (id, cashup_id, name, order_type, amount)"+
			" VALUES ($1, $2, $3, $4, $5)"+
			" ON CONFLICT (id)"+
			" DO UPDATE SET name = EXCLUDED.name, order_type = EXCLUDED.order_type, amount = EXCLUDED.amount"+
			" WHERE cashup_tax.cashup_id = EXCLUDED.cashup_id",
		tax.ID, tax.CashupID, tax.Name, tax.OrderType, tax.Amount)
	return err
}

// Движения

const movementColumns = "id, cashup_id, payment_method_id, financial_account_id, line_no, direction," +
	" deposit_amount, payment_amount, currency, description, reason_code, gl_item_code," +
	" foreign_currency, foreign_amount, event_id, created_at, created_by"

func scanMovement(row rowScanner) (model.CashMovement, error) {
	var m model.CashMovement
	var reason, foreignCurrency sql.NullString
	err := row.Scan(&m.ID,
		&m.CashupID,
		&m.PaymentMethodID,
		&m.FinancialAccountID,
		&m.LineNo,
		&m.Direction,
		&m.DepositAmount,
		&m.PaymentAmount,
		&m.Currency,
		&m.Description,
		&reason,
		&m.GLItemCode,
		&foreignCurrency,
		&m.ForeignAmount,
		&m.EventID,
		&m.CreatedAt,
		&m.CreatedBy)
	if err != nil {
		return model.CashMovement{}, err
	}
	m.ReasonCode = reason.String
	m.ForeignCurrency = foreignCurrency.String
	m.CreatedAt = m.CreatedAt.UTC()
	return m, nil
}

func (t *pgTx) GetMovement(ctx context.Context, id string) (model.CashMovement, error) {
	m, err := scanMovement(t.tx.QueryRowContext(ctx,
		"SELECT "+movementColumns+" FROM cash_movement WHERE id = $1", id))
	if err != nil {
		return model.CashMovement{}, noRows(err)
	}
	return m, nil
}

func (t *pgTx) ListMovements(ctx context.Context, cashupID string) ([]model.CashMovement, error) {
	rows, err := t.tx.QueryContext(ctx,
		"SELECT "+movementColumns+
			" FROM cash_movement"+
			" WHERE cashup_id = $1"+
			" ORDER BY created_at, line_no",
		cashupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []model.CashMovement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func (t *pgTx) NextLineNo(ctx context.Context, accountID string) (int64, error) {
	var lineNo int64
	err := t.tx.QueryRowContext(ctx,
		"UPDATE financial_account SET last_line_no = last_line_no + $2"+
			" WHERE id = $1"+
			" RETURNING last_line_no",
		accountID, lineNoStep).Scan(&lineNo)
	if err != nil {
		return 0, noRows(err)
	}
	return lineNo, nil
}

func (t *pgTx) InsertMovement(ctx context.Context, m model.CashMovement) error {
	_, err := t.tx.ExecContext(ctx,
		"INSERT INTO cash_movement ("+movementColumns+")"+
			" VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)",
		m.ID,
		m.CashupID,
		m.PaymentMethodID,
		m.FinancialAccountID,
		m.LineNo,
		string(m.Direction),
		m.DepositAmount,
		m.PaymentAmount,
		m.Currency,
		m.Description,
		nullIfEmpty(m.ReasonCode),
		m.GLItemCode,
		nullIfEmpty(m.ForeignCurrency),
		m.ForeignAmount,
		m.EventID,
		m.CreatedAt,
		m.CreatedBy)
	return uniqueViolation(err)
}

func (t *pgTx) InsertCashupEvent(ctx context.Context, e model.CashupEvent) error {
	_, err := t.tx.ExecContext(ctx,
		"INSERT INTO cashup_event (id, cashup_id, payment_method_cashup_id, transaction_id, direction, amount, created_at)"+
			" VALUES ($1, $2, $3, $4, $5, $6, $7)",
		e.ID, e.CashupID, e.PaymentMethodCashupID, e.TransactionID, string(e.Direction), e.Amount, e.CreatedAt)
	return uniqueViolation(err)
}

func (t *pgTx) InsertConversionRate(ctx context.Context, r model.ConversionRate) error {
	_, err := t.tx.ExecContext(ctx,
		"INSERT INTO conversion_rate (id, transaction_id, from_currency, to_currency, rate, foreign_amount, created_at)"+
			" VALUES ($1, $2, $3, $4, $5, $6, $7)",
		r.ID, r.TransactionID, r.FromCurrency, r.ToCurrency, r.Rate, r.ForeignAmount, r.CreatedAt)
	return uniqueViolation(err)
}

// Подтверждения

func (t *pgTx) InsertApproval(ctx context.Context, a model.CashupApproval) error {
	_, err := t.tx.ExecContext(ctx,
		"INSERT INTO cashup_approval (id, cashup_id, user_id, approval_type, message, created_at)"+
			" VALUES ($1, $2, $3, $4, $5, $6)",
		a.ID, a.CashupID, a.UserID, a.ApprovalType, a.Message, a.CreatedAt)
	return uniqueViolation(err)
}

func (t *pgTx) ListApprovals(ctx context.Context, cashupID string) ([]model.CashupApproval, error) {
	rows, err := t.tx.QueryContext(ctx,
		"SELECT id, cashup_id, user_id, approval_type, message, created_at"+
			" FROM cashup_approval"+
			" WHERE cashup_id = $1"+
			" ORDER BY created_at",
		cashupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var approvals []model.CashupApproval
	for rows.Next() {
		var a model.CashupApproval
		if err := rows.Scan(&a.ID, &a.CashupID, &a.UserID, &a.ApprovalType, &a.Message, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.CreatedAt = a.CreatedAt.UTC()
		approvals = append(approvals, a)
	}
	return approvals, rows.Err()
}

// Вспомогательные

func noRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNoRows
	}
	return err
}

func uniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		if pgErr.ConstraintName == currentCashupIndex {
			return ErrCurrentCashupExists
		}
		return ErrAlreadyExists
	}
	return err
}

func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNoRows
	}
	return nil
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return *val
}

func nullJSON(val json.RawMessage) any {
	if len(val) == 0 {
		return nil
	}
	return string(val)
}

func marshalDenominations(denominations []model.Denomination) (string, error) {
	if len(denominations) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(denominations)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
