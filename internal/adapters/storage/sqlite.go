package storage

// sqlite.go — ledger persistente de paper trading.
//
// Estrategia:
//   - Un único fichero SQLite (WAL) con cuatro tablas: portfolios, positions,
//     trades (append-only) y daily_snapshots (una fila por portfolio y día).
//   - Cada mutación corre en una transacción BEGIN IMMEDIATE (_txlock=immediate)
//     para que el read-validate-write sea atómico entre procesos.
//   - Schema compatible con bases creadas por versiones anteriores: las columnas
//     nuevas se añaden con ALTER y los errores de "duplicate column" se ignoran.
//   - Timestamps como TEXT UTC de ancho fijo, comparables lexicográficamente.

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alejandrodnm/polypaper/internal/ports"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS portfolios (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    name             TEXT    NOT NULL DEFAULT 'default',
    starting_balance REAL    NOT NULL CHECK(starting_balance > 0),
    cash_balance     REAL    NOT NULL,
    peak_value       REAL    NOT NULL,
    created_at       TEXT    NOT NULL,
    updated_at       TEXT    NOT NULL,
    risk_config      TEXT    NOT NULL,
    active           INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS positions (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    portfolio_id    INTEGER NOT NULL REFERENCES portfolios(id),
    token_id        TEXT    NOT NULL,
    market_question TEXT,
    side            TEXT    NOT NULL CHECK(side IN ('YES','NO')),
    shares          REAL    NOT NULL DEFAULT 0 CHECK(shares >= 0),
    avg_entry       REAL    NOT NULL DEFAULT 0,
    current_price   REAL    NOT NULL DEFAULT 0,
    opened_at       TEXT    NOT NULL,
    updated_at      TEXT    NOT NULL,
    closed          INTEGER NOT NULL DEFAULT 0,
    closed_at       TEXT
);

CREATE TABLE IF NOT EXISTS trades (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    ref             TEXT,
    portfolio_id    INTEGER NOT NULL REFERENCES portfolios(id),
    token_id        TEXT    NOT NULL,
    market_question TEXT,
    side            TEXT    NOT NULL CHECK(side IN ('YES','NO')),
    action          TEXT    NOT NULL CHECK(action IN ('BUY','SELL')),
    shares          REAL    NOT NULL,
    price           REAL    NOT NULL,
    fee             REAL    NOT NULL DEFAULT 0,
    total_cost      REAL    NOT NULL,
    reasoning       TEXT,
    executed_at     TEXT    NOT NULL,
    entry_avg       REAL
);

CREATE TABLE IF NOT EXISTS daily_snapshots (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    portfolio_id    INTEGER NOT NULL REFERENCES portfolios(id),
    date            TEXT    NOT NULL,
    cash_balance    REAL    NOT NULL,
    positions_value REAL    NOT NULL,
    total_value     REAL    NOT NULL,
    daily_pnl       REAL    NOT NULL DEFAULT 0,
    created_at      TEXT,
    UNIQUE(portfolio_id, date)
);
`

// migrations añade columnas que no existen en bases antiguas.
// Cada sentencia se ejecuta por separado; "duplicate column" se ignora.
var migrations = []string{
	`ALTER TABLE trades ADD COLUMN ref TEXT`,
	`ALTER TABLE daily_snapshots ADD COLUMN created_at TEXT`,
}

const indexes = `
CREATE UNIQUE INDEX IF NOT EXISTS idx_portfolios_active ON portfolios(name) WHERE active = 1;
CREATE UNIQUE INDEX IF NOT EXISTS idx_positions_open    ON positions(portfolio_id, token_id, side) WHERE closed = 0;
CREATE UNIQUE INDEX IF NOT EXISTS idx_trades_ref        ON trades(ref) WHERE ref IS NOT NULL;
CREATE INDEX        IF NOT EXISTS idx_trades_executed   ON trades(portfolio_id, executed_at);
CREATE INDEX        IF NOT EXISTS idx_snapshots_date    ON daily_snapshots(portfolio_id, date DESC);
`

// tsLayout es UTC con ancho fijo: el orden de strings coincide con el temporal.
const tsLayout = "2006-01-02T15:04:05.000000Z07:00"

func formatTS(t time.Time) string { return t.UTC().Format(tsLayout) }

func parseTS(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// dbtx es lo común a *sql.DB y *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implementa ports.Ledger sobre una conexión o una transacción.
type queries struct {
	q dbtx
}

// SQLiteStorage implementa ports.LedgerStore usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	*queries
	db *sql.DB
}

var _ ports.LedgerStore = (*SQLiteStorage)(nil)

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada y aplica
// el schema. Acepta "~/" y ":memory:".
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	path, err := expandPath(path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: %w", err)
	}
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("storage.NewSQLiteStorage: create dir for %q: %w", path, err)
		}
	}

	dsn := path + "?_txlock=immediate&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if path != ":memory:" {
		if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
			db.Close()
			return nil, fmt.Errorf("storage.NewSQLiteStorage: enable WAL: %w", err)
		}
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: %w", err)
	}

	return &SQLiteStorage{queries: &queries{q: db}, db: db}, nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil && !strings.Contains(err.Error(), "duplicate column") {
			return fmt.Errorf("migrate %q: %w", m, err)
		}
	}
	if _, err := db.Exec(indexes); err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

// InTx ejecuta fn dentro de una transacción exclusiva. Con una sola
// conexión abierta, fn sólo debe usar el Ledger que recibe.
func (s *SQLiteStorage) InTx(ctx context.Context, fn func(tx ports.Ledger) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.InTx: begin: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&queries{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.InTx: commit: %w", err)
	}
	return nil
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func expandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	}
	return path, nil
}
