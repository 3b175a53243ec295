package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"trading-systemv1/internal/bus"
	"trading-systemv1/internal/model"
	"trading-systemv1/internal/portfolio"
	"trading-systemv1/internal/store/sqlite"
)

func newTestReader(t *testing.T) *sqlite.Reader {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	w, err := sqlite.New(nil, sqlite.WriterConfig{DBPath: dbPath})
	if err != nil {
		t.Fatalf("open writer: %v", err)
	}
	defer w.Close()

	order := model.OrderRequest{
		ID:         "order-1",
		Symbol:     "ACME",
		Side:       model.Buy,
		Quantity:   10,
		Type:       model.Market,
		StrategyID: "mean-reversion",
		CreatedAt:  time.Now().UTC(),
		Status:     model.Filled,
	}
	if err := w.UpsertOrder(order); err != nil {
		t.Fatalf("seed order: %v", err)
	}

	fill := model.Fill{
		ID:       "fill-1",
		OrderID:  "order-1",
		Symbol:   "ACME",
		Side:     model.Buy,
		Quantity: 10,
		Price:    decimal.NewFromInt(100),
		FilledAt: time.Now().UTC(),
	}
	if err := w.InsertFill(fill); err != nil {
		t.Fatalf("seed fill: %v", err)
	}

	r, err := sqlite.NewReader(nil, dbPath)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestHandleOrders_ListAndGet(t *testing.T) {
	deps := Deps{Reader: newTestReader(t)}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	rec := httptest.NewRecorder()
	handleOrders(deps)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var orders []model.OrderRequest
	if err := json.Unmarshal(rec.Body.Bytes(), &orders); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(orders) != 1 || orders[0].ID != "order-1" {
		t.Fatalf("unexpected orders: %+v", orders)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/orders/order-1", nil)
	rec = httptest.NewRecorder()
	handleOrders(deps)(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestHandleOrders_NotFound(t *testing.T) {
	deps := Deps{Reader: newTestReader(t)}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/does-not-exist", nil)
	rec := httptest.NewRecorder()
	handleOrders(deps)(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleFills_ByOrder(t *testing.T) {
	deps := Deps{Reader: newTestReader(t)}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/order-1/fills", nil)
	rec := httptest.NewRecorder()
	handleFills(deps)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var fills []model.Fill
	if err := json.Unmarshal(rec.Body.Bytes(), &fills); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(fills) != 1 || fills[0].ID != "fill-1" {
		t.Fatalf("unexpected fills: %+v", fills)
	}
}

func TestHandlePositions_NoPosition(t *testing.T) {
	b := bus.New(nil)
	tracker := portfolio.New(nil, b)
	deps := Deps{Tracker: tracker}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/positions/ACME", nil)
	rec := httptest.NewRecorder()
	handlePositions(deps)(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandlePositions_AfterFill(t *testing.T) {
	b := bus.New(nil)
	tracker := portfolio.New(nil, b)
	tracker.ApplyFill(context.Background(), model.Fill{
		ID: "f1", OrderID: "o1", Symbol: "ACME", Side: model.Buy,
		Quantity: 5, Price: decimal.NewFromInt(100), FilledAt: time.Now().UTC(),
	})
	deps := Deps{Tracker: tracker}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/positions/ACME", nil)
	rec := httptest.NewRecorder()
	handlePositions(deps)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var pos model.Position
	if err := json.Unmarshal(rec.Body.Bytes(), &pos); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if pos.Quantity != 5 {
		t.Fatalf("quantity = %d, want 5", pos.Quantity)
	}
}

func TestHandlePortfolioSnapshot(t *testing.T) {
	b := bus.New(nil)
	tracker := portfolio.New(nil, b)
	deps := Deps{Tracker: tracker}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/portfolio", nil)
	rec := httptest.NewRecorder()
	handlePortfolioSnapshot(deps)(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
