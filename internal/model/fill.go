package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Fill is an immutable record of an executed trade. This core emits exactly
// one fill per accepted order.
type Fill struct {
	ID       string          `json:"id"`
	OrderID  string          `json:"order_id"`
	Symbol   string          `json:"symbol"`
	Side     Side            `json:"side"`
	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	FilledAt time.Time       `json:"filled_at"`
}

// SignedQuantity returns quantity with sign applied (negative for SELL),
// matching the cash-delta and position-delta conventions used throughout
// the position tracker.
func (f Fill) SignedQuantity() int64 {
	if f.Side == Sell {
		return -f.Quantity
	}
	return f.Quantity
}
