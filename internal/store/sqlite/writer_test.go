package sqlite

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"

	"trading-systemv1/internal/model"
)

func TestWriter_UpsertOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	w := &Writer{db: db}

	order := model.OrderRequest{
		ID:         "order-1",
		Symbol:     "ACME",
		Side:       model.Buy,
		Quantity:   100,
		Type:       model.Market,
		StrategyID: "mean-reversion",
		CreatedAt:  time.Unix(1_700_000_000, 0).UTC(),
		Status:     model.Pending,
	}

	mock.ExpectExec("INSERT INTO orders").
		WithArgs(order.ID, order.Symbol, string(order.Side), order.Quantity, string(order.Type), nil, order.StrategyID, string(order.Status), order.CreatedAt.Unix()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := w.UpsertOrder(order); err != nil {
		t.Fatalf("UpsertOrder: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestWriter_UpsertOrder_LimitOrderPersistsLimitPrice(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	w := &Writer{db: db}

	order := model.OrderRequest{
		ID:         "order-2",
		Symbol:     "ACME",
		Side:       model.Sell,
		Quantity:   50,
		Type:       model.Limit,
		LimitPrice: decimal.NewFromFloat(101.5),
		StrategyID: "mean-reversion",
		CreatedAt:  time.Unix(1_700_000_001, 0).UTC(),
		Status:     model.Pending,
	}

	mock.ExpectExec("INSERT INTO orders").
		WithArgs(order.ID, order.Symbol, string(order.Side), order.Quantity, string(order.Type), "101.5", order.StrategyID, string(order.Status), order.CreatedAt.Unix()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := w.UpsertOrder(order); err != nil {
		t.Fatalf("UpsertOrder: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestWriter_InsertFill(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	w := &Writer{db: db}

	f := model.Fill{
		ID:       "fill-1",
		OrderID:  "order-1",
		Symbol:   "ACME",
		Side:     model.Buy,
		Quantity: 100,
		Price:    decimal.NewFromFloat(100.25),
		FilledAt: time.Unix(1_700_000_010, 0).UTC(),
	}

	mock.ExpectExec("INSERT INTO fills").
		WithArgs(f.ID, f.OrderID, f.Symbol, string(f.Side), f.Quantity, "100.25", f.FilledAt.Unix()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := w.InsertFill(f); err != nil {
		t.Fatalf("InsertFill: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestWriter_UpsertPosition(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	w := &Writer{db: db}

	p := model.Position{
		Symbol:        "ACME",
		Quantity:      100,
		AvgEntryPrice: decimal.NewFromFloat(100.25),
		RealizedPnL:   decimal.Zero,
	}
	updatedAt := int64(1_700_000_020)

	mock.ExpectExec("INSERT INTO positions").
		WithArgs(p.Symbol, p.Quantity, "100.25", "0", updatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := w.UpsertPosition(p, updatedAt); err != nil {
		t.Fatalf("UpsertPosition: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestWriter_InsertSnapshot(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	w := &Writer{db: db}

	s := model.PortfolioSnapshot{
		TotalEquity:     decimal.NewFromFloat(100_500),
		TotalUnrealized: decimal.NewFromFloat(250),
		TotalRealized:   decimal.NewFromFloat(250),
		SnapshotAt:      time.Unix(1_700_000_030, 0).UTC(),
	}

	mock.ExpectExec("INSERT INTO portfolio_snapshots").
		WithArgs("100500", "250", "250", s.SnapshotAt.Unix()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := w.InsertSnapshot(s); err != nil {
		t.Fatalf("InsertSnapshot: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestWriter_UpdateOrderStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	w := &Writer{db: db}

	mock.ExpectExec("UPDATE orders SET status").
		WithArgs(string(model.Rejected), "order-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := w.updateOrderStatus("order-1", model.Rejected); err != nil {
		t.Fatalf("updateOrderStatus: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
