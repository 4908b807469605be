package store

// Частичный уникальный индекс: одна открытая смена на терминал
const currentCashupIndex = "cashup_current_uq"

// Схема базы. Таблицы реестра терминалов наполняются внешней системой,
// ядро их только читает.
var schema = []string{
	// Терминалы и связь мастер -> слейв
	"CREATE TABLE IF NOT EXISTS terminal (" +
		" id VARCHAR (32) PRIMARY KEY," +
		" client_id VARCHAR (32) NOT NULL," +
		" organization_id VARCHAR (32) NOT NULL," +
		" name VARCHAR (60) NOT NULL," +
		" is_master BOOLEAN NOT NULL DEFAULT FALSE," +
		" master_terminal_id VARCHAR (32) REFERENCES terminal (id)" +
		" );",

	"CREATE TABLE IF NOT EXISTS financial_account (" +
		" id VARCHAR (32) PRIMARY KEY," +
		" currency VARCHAR (3) NOT NULL," +
		" last_line_no BIGINT NOT NULL DEFAULT 0" +
		" );",

	// Способы оплаты терминала. is_shared - суммы слейвов переносятся в мастер
	"CREATE TABLE IF NOT EXISTS terminal_payment_method (" +
		" terminal_id VARCHAR (32) NOT NULL REFERENCES terminal (id)," +
		" payment_method_id VARCHAR (60) NOT NULL," +
		" name VARCHAR (60) NOT NULL," +
		" financial_account_id VARCHAR (32) REFERENCES financial_account (id)," +
		" currency VARCHAR (3) NOT NULL," +
		" is_shared BOOLEAN NOT NULL DEFAULT FALSE," +
		" is_cash BOOLEAN NOT NULL DEFAULT FALSE," +
		" gl_item_deposit VARCHAR (60) NOT NULL DEFAULT ''," +
		" gl_item_drop VARCHAR (60) NOT NULL DEFAULT ''," +
		" PRIMARY KEY (terminal_id, payment_method_id)" +
		" );",

	"CREATE TABLE IF NOT EXISTS movement_reason (" +
		" code VARCHAR (60) PRIMARY KEY," +
		" name VARCHAR (60) NOT NULL," +
		" gl_item_code VARCHAR (60) NOT NULL" +
		" );",

	"CREATE TABLE IF NOT EXISTS reconciliation (" +
		" id VARCHAR (32) PRIMARY KEY," +
		" financial_account_id VARCHAR (32) NOT NULL REFERENCES financial_account (id)," +
		" status VARCHAR (10) NOT NULL" +
		" );",

	"CREATE TABLE IF NOT EXISTS terminal_error (" +
		" id VARCHAR (36) PRIMARY KEY," +
		" terminal_id VARCHAR (32) NOT NULL," +
		" message TEXT NOT NULL," +
		" status VARCHAR (10) NOT NULL," +
		" created_at TIMESTAMPTZ NOT NULL" +
		" );",

	// Кассовые смены. id выбирает терминал, повторная отправка не создает новую запись
	"CREATE TABLE IF NOT EXISTS cashup (" +
		" id VARCHAR (36) PRIMARY KEY," +
		" client_id VARCHAR (32) NOT NULL," +
		" organization_id VARCHAR (32) NOT NULL," +
		" terminal_id VARCHAR (32) NOT NULL," +
		" user_id VARCHAR (32) NOT NULL," +
		" net_sales NUMERIC (18,4) NOT NULL DEFAULT 0," +
		" gross_sales NUMERIC (18,4) NOT NULL DEFAULT 0," +
		" net_returns NUMERIC (18,4) NOT NULL DEFAULT 0," +
		" gross_returns NUMERIC (18,4) NOT NULL DEFAULT 0," +
		" total_transactions BIGINT NOT NULL DEFAULT 0," +
		" is_processed BOOLEAN NOT NULL DEFAULT FALSE," +
		" parent_cashup_id VARCHAR (36) REFERENCES cashup (id)," +
		" close_date TIMESTAMPTZ," +
		" outcome JSONB," +
		" created_at TIMESTAMPTZ NOT NULL," +
		" updated_at TIMESTAMPTZ NOT NULL" +
		" );",

	// Не более одной открытой смены на терминал
	"CREATE UNIQUE INDEX IF NOT EXISTS " + currentCashupIndex + " ON cashup (terminal_id) WHERE NOT is_processed;",
	"CREATE INDEX IF NOT EXISTS cashup_parent_idx ON cashup (parent_cashup_id);",

	"CREATE TABLE IF NOT EXISTS payment_method_cashup (" +
		" id VARCHAR (36) PRIMARY KEY," +
		" cashup_id VARCHAR (36) NOT NULL REFERENCES cashup (id)," +
		" payment_method_id VARCHAR (60) NOT NULL," +
		" name VARCHAR (60) NOT NULL," +
		" currency VARCHAR (3) NOT NULL," +
		" rate NUMERIC (18,8) NOT NULL DEFAULT 1," +
		" starting_cash NUMERIC (18,4) NOT NULL DEFAULT 0," +
		" total_sales NUMERIC (18,4) NOT NULL DEFAULT 0," +
		" total_returns NUMERIC (18,4) NOT NULL DEFAULT 0," +
		" total_deposits NUMERIC (18,4) NOT NULL DEFAULT 0," +
		" total_drops NUMERIC (18,4) NOT NULL DEFAULT 0," +
		" amount_to_keep NUMERIC (18,4)," +
		" counted_cash NUMERIC (18,4)," +
		" denominations JSONB NOT NULL DEFAULT '[]'," +
		" UNIQUE (cashup_id, payment_method_id)" +
		" );",

	"CREATE TABLE IF NOT EXISTS cashup_tax (" +
		" id VARCHAR (36) PRIMARY KEY," +
		" cashup_id VARCHAR (36) NOT NULL REFERENCES cashup (id)," +
		" name VARCHAR (60) NOT NULL," +
		" order_type VARCHAR (10) NOT NULL," +
		" amount NUMERIC (18,4) NOT NULL" +
		" );",

	// Движения: записи не редактируются и не удаляются
	"CREATE TABLE IF NOT EXISTS cash_movement (" +
		" id VARCHAR (36) PRIMARY KEY," +
		" cashup_id VARCHAR (36) NOT NULL REFERENCES cashup (id)," +
		" payment_method_id VARCHAR (60) NOT NULL," +
		" financial_account_id VARCHAR (32) NOT NULL REFERENCES financial_account (id)," +
		" line_no BIGINT NOT NULL," +
		" direction VARCHAR (10) NOT NULL," +
		" deposit_amount NUMERIC (18,4) NOT NULL," +
		" payment_amount NUMERIC (18,4) NOT NULL," +
		" currency VARCHAR (3) NOT NULL," +
		" description TEXT NOT NULL," +
		" reason_code VARCHAR (60)," +
		" gl_item_code VARCHAR (60) NOT NULL," +
		" foreign_currency VARCHAR (3)," +
		" foreign_amount NUMERIC (18,4)," +
		" event_id VARCHAR (36) NOT NULL," +
		" created_at TIMESTAMPTZ NOT NULL," +
		" created_by VARCHAR (32) NOT NULL," +
		" UNIQUE (financial_account_id, line_no)" +
		" );",

	"CREATE TABLE IF NOT EXISTS cashup_event (" +
		" id VARCHAR (36) PRIMARY KEY," +
		" cashup_id VARCHAR (36) NOT NULL REFERENCES cashup (id)," +
		" payment_method_cashup_id VARCHAR (36) NOT NULL REFERENCES payment_method_cashup (id)," +
		" transaction_id VARCHAR (36) NOT NULL REFERENCES cash_movement (id)," +
		" direction VARCHAR (10) NOT NULL," +
		" amount NUMERIC (18,4) NOT NULL," +
		" created_at TIMESTAMPTZ NOT NULL" +
		" );",

	"CREATE TABLE IF NOT EXISTS conversion_rate (" +
		" id VARCHAR (36) PRIMARY KEY," +
		" transaction_id VARCHAR (36) NOT NULL REFERENCES cash_movement (id)," +
		" from_currency VARCHAR (3) NOT NULL," +
		" to_currency VARCHAR (3) NOT NULL," +
		" rate NUMERIC (18,8) NOT NULL," +
		" foreign_amount NUMERIC (18,4) NOT NULL," +
		" created_at TIMESTAMPTZ NOT NULL" +
		" );",

	// Журнал подтверждений. Без внешнего ключа: запись делается вне транзакции закрытия
	"CREATE TABLE IF NOT EXISTS cashup_approval (" +
		" id VARCHAR (36) PRIMARY KEY," +
		" cashup_id VARCHAR (36) NOT NULL," +
		" user_id VARCHAR (32) NOT NULL," +
		" approval_type VARCHAR (60) NOT NULL," +
		" message TEXT NOT NULL," +
		" created_at TIMESTAMPTZ NOT NULL" +
		" );",
	"CREATE INDEX IF NOT EXISTS cashup_approval_cashup_idx ON cashup_approval (cashup_id);",
}
