package sqlite

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"trading-systemv1/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Reader provides read-only access to SQLite for the query surface.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(logger *slog.Logger, dbPath string) (*Reader, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	logger.Info("sqlite reader opened", slog.String("path", dbPath))
	return &Reader{db: db}, nil
}

// Order is the persisted view of an order, read back for the query surface.
func (r *Reader) Order(id string) (model.OrderRequest, bool, error) {
	var o model.OrderRequest
	var limitPrice sql.NullString
	var createdAt int64
	err := r.db.QueryRow(`
		SELECT id, symbol, side, quantity, order_type, limit_price, strategy_id, status, created_at
		FROM orders WHERE id = ?
	`, id).Scan(&o.ID, &o.Symbol, &o.Side, &o.Quantity, &o.Type, &limitPrice, &o.StrategyID, &o.Status, &createdAt)
	if err == sql.ErrNoRows {
		return model.OrderRequest{}, false, nil
	}
	if err != nil {
		return model.OrderRequest{}, false, fmt.Errorf("sqlite read order: %w", err)
	}
	if limitPrice.Valid {
		o.LimitPrice, _ = decimal.NewFromString(limitPrice.String)
	}
	o.CreatedAt = time.Unix(createdAt, 0).UTC()
	return o, true, nil
}

// Orders lists all persisted orders, most recent first.
func (r *Reader) Orders() ([]model.OrderRequest, error) {
	rows, err := r.db.Query(`
		SELECT id, symbol, side, quantity, order_type, limit_price, strategy_id, status, created_at
		FROM orders ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query orders: %w", err)
	}
	defer rows.Close()

	var out []model.OrderRequest
	for rows.Next() {
		var o model.OrderRequest
		var limitPrice sql.NullString
		var createdAt int64
		if err := rows.Scan(&o.ID, &o.Symbol, &o.Side, &o.Quantity, &o.Type, &limitPrice, &o.StrategyID, &o.Status, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite scan order: %w", err)
		}
		if limitPrice.Valid {
			o.LimitPrice, _ = decimal.NewFromString(limitPrice.String)
		}
		o.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, o)
	}
	return out, rows.Err()
}

// FillsByOrder returns all fills recorded against an order id, in fill
// order.
func (r *Reader) FillsByOrder(orderID string) ([]model.Fill, error) {
	rows, err := r.db.Query(`
		SELECT id, order_id, symbol, side, quantity, price, filled_at
		FROM fills WHERE order_id = ? ORDER BY filled_at ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("sqlite query fills: %w", err)
	}
	defer rows.Close()

	var out []model.Fill
	for rows.Next() {
		var f model.Fill
		var price string
		var filledAt int64
		if err := rows.Scan(&f.ID, &f.OrderID, &f.Symbol, &f.Side, &f.Quantity, &price, &filledAt); err != nil {
			return nil, fmt.Errorf("sqlite scan fill: %w", err)
		}
		f.Price, _ = decimal.NewFromString(price)
		f.FilledAt = time.Unix(filledAt, 0).UTC()
		out = append(out, f)
	}
	return out, rows.Err()
}

// LatestSnapshot returns the most recently persisted portfolio snapshot, or
// ok=false if none have been written yet.
func (r *Reader) LatestSnapshot() (model.PortfolioSnapshot, bool, error) {
	var s model.PortfolioSnapshot
	var equity, unrealized, realized string
	var snapAt int64
	err := r.db.QueryRow(`
		SELECT total_equity, total_unrealized_pnl, total_realized_pnl, snapshot_at
		FROM portfolio_snapshots ORDER BY snapshot_at DESC LIMIT 1
	`).Scan(&equity, &unrealized, &realized, &snapAt)
	if err == sql.ErrNoRows {
		return model.PortfolioSnapshot{}, false, nil
	}
	if err != nil {
		return model.PortfolioSnapshot{}, false, fmt.Errorf("sqlite read snapshot: %w", err)
	}
	s.TotalEquity, _ = decimal.NewFromString(equity)
	s.TotalUnrealized, _ = decimal.NewFromString(unrealized)
	s.TotalRealized, _ = decimal.NewFromString(realized)
	s.SnapshotAt = time.Unix(snapAt, 0).UTC()
	return s, true, nil
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
