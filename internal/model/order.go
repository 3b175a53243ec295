package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderType distinguishes market orders (filled at the current reference
// price) from limit orders (filled at a caller-supplied price).
type OrderType string

const (
	Market OrderType = "MARKET"
	Limit  OrderType = "LIMIT"
)

// OrderStatus is the lifecycle state of an OrderRequest.
//
// PARTIALLY_FILLED is reserved but unreachable in this core: every accepted
// order fills in full with exactly one Fill (§ Open Questions).
type OrderStatus string

const (
	Pending         OrderStatus = "PENDING"
	Submitted       OrderStatus = "SUBMITTED"
	Filled          OrderStatus = "FILLED"
	PartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	Cancelled       OrderStatus = "CANCELLED"
	Rejected        OrderStatus = "REJECTED"
)

// OrderRequest is the intended trade; it is mutated only by the order
// manager and, for PENDING→REJECTED, by the risk manager.
type OrderRequest struct {
	ID          string          `json:"id"`
	Symbol      string          `json:"symbol"`
	Side        Side            `json:"side"`
	Quantity    int64           `json:"quantity"`
	Type        OrderType       `json:"type"`
	LimitPrice  decimal.Decimal `json:"limit_price,omitempty"`
	StrategyID  string          `json:"strategy_id"`
	CreatedAt   time.Time       `json:"created_at"`
	Status      OrderStatus     `json:"status"`
}

// IsTerminal reports whether status can no longer transition.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case Filled, Cancelled, Rejected:
		return true
	default:
		return false
	}
}
