// Package sqlite is the persistence sink of §4.F: it subscribes to
// ORDER_REQUEST, ORDER_UPDATE, FILL, and POSITION_UPDATE and writes them
// through an idempotent repository. Writes are best-effort — a failure logs
// a warning and is never propagated back onto the bus.
package sqlite

import (
	"database/sql"
	"fmt"
	"log/slog"

	"trading-systemv1/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/trading.db"
}

// Writer is a single-connection SQLite writer for the core's order, fill,
// position, and snapshot repositories.
type Writer struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New opens (creating if absent) the SQLite database in WAL mode and
// ensures the schema described in §6 exists.
func New(logger *slog.Logger, cfg WriterConfig) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// A single connection matches the single-writer event loop: the
	// position tracker and persistence sink never contend on the file lock.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	logger.Info("sqlite opened", slog.String("path", cfg.DBPath))
	return &Writer{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS orders (
			id          TEXT PRIMARY KEY,
			symbol      TEXT NOT NULL,
			side        TEXT NOT NULL,
			quantity    INTEGER NOT NULL,
			order_type  TEXT NOT NULL,
			limit_price TEXT,
			strategy_id TEXT NOT NULL,
			status      TEXT NOT NULL,
			created_at  INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_orders_symbol ON orders(symbol);
		CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);

		CREATE TABLE IF NOT EXISTS fills (
			id        TEXT PRIMARY KEY,
			order_id  TEXT NOT NULL REFERENCES orders(id),
			symbol    TEXT NOT NULL,
			side      TEXT NOT NULL,
			quantity  INTEGER NOT NULL,
			price     TEXT NOT NULL,
			filled_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_fills_order_id ON fills(order_id);
		CREATE INDEX IF NOT EXISTS idx_fills_symbol ON fills(symbol);

		CREATE TABLE IF NOT EXISTS positions (
			symbol          TEXT PRIMARY KEY,
			quantity        INTEGER NOT NULL,
			avg_entry_price TEXT NOT NULL,
			realized_pnl    TEXT NOT NULL,
			updated_at      INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS portfolio_snapshots (
			id                   INTEGER PRIMARY KEY AUTOINCREMENT,
			total_equity         TEXT NOT NULL,
			total_unrealized_pnl TEXT NOT NULL,
			total_realized_pnl   TEXT NOT NULL,
			snapshot_at          INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_snapshots_at ON portfolio_snapshots(snapshot_at);
	`)
	return err
}

// UpsertOrder idempotently writes an order by id, matching the order
// manager's lifecycle transitions (PENDING -> ... -> terminal).
func (w *Writer) UpsertOrder(o model.OrderRequest) error {
	var limitPrice interface{}
	if o.Type == model.Limit {
		limitPrice = o.LimitPrice.String()
	}
	_, err := w.db.Exec(`
		INSERT INTO orders (id, symbol, side, quantity, order_type, limit_price, strategy_id, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status = excluded.status
	`, o.ID, o.Symbol, string(o.Side), o.Quantity, string(o.Type), limitPrice, o.StrategyID, string(o.Status), o.CreatedAt.Unix())
	return err
}

// updateOrderStatus advances an existing order's status. It is a no-op if
// the order id is unknown (the ORDER_REQUEST write that creates the row may
// not have landed yet under best-effort semantics).
func (w *Writer) updateOrderStatus(orderID string, status model.OrderStatus) error {
	_, err := w.db.Exec(`UPDATE orders SET status = ? WHERE id = ?`, string(status), orderID)
	return err
}

// InsertFill appends an immutable fill record.
func (w *Writer) InsertFill(f model.Fill) error {
	_, err := w.db.Exec(`
		INSERT INTO fills (id, order_id, symbol, side, quantity, price, filled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, f.ID, f.OrderID, f.Symbol, string(f.Side), f.Quantity, f.Price.String(), f.FilledAt.Unix())
	return err
}

// UpsertPosition idempotently writes the current position snapshot by
// symbol, matching the position tracker's latest state.
func (w *Writer) UpsertPosition(p model.Position, updatedAtUnix int64) error {
	_, err := w.db.Exec(`
		INSERT INTO positions (symbol, quantity, avg_entry_price, realized_pnl, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			quantity = excluded.quantity,
			avg_entry_price = excluded.avg_entry_price,
			realized_pnl = excluded.realized_pnl,
			updated_at = excluded.updated_at
	`, p.Symbol, p.Quantity, p.AvgEntryPrice.String(), p.RealizedPnL.String(), updatedAtUnix)
	return err
}

// InsertSnapshot appends a new portfolio snapshot row.
func (w *Writer) InsertSnapshot(s model.PortfolioSnapshot) error {
	_, err := w.db.Exec(`
		INSERT INTO portfolio_snapshots (total_equity, total_unrealized_pnl, total_realized_pnl, snapshot_at)
		VALUES (?, ?, ?, ?)
	`, s.TotalEquity.String(), s.TotalUnrealized.String(), s.TotalRealized.String(), s.SnapshotAt.Unix())
	return err
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
