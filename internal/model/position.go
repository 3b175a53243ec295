package model

import "github.com/shopspring/decimal"

// Position is the per-symbol state maintained by the position tracker.
// Exactly one Position exists per symbol ever touched by a fill or a tick
// (a tick for an unknown symbol creates a flat Position carrying the mark).
type Position struct {
	Symbol        string          `json:"symbol"`
	Quantity      int64           `json:"quantity"` // signed; negative = short
	AvgEntryPrice decimal.Decimal `json:"avg_entry_price"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	LastMark      decimal.Decimal `json:"last_mark"`
}

// ZeroPosition returns the default (flat) position for a symbol.
func ZeroPosition(symbol string) Position {
	return Position{
		Symbol:        symbol,
		Quantity:      0,
		AvgEntryPrice: decimal.Zero,
		RealizedPnL:   decimal.Zero,
		UnrealizedPnL: decimal.Zero,
		LastMark:      decimal.Zero,
	}
}

// IsFlat reports whether the position carries no exposure.
func (p Position) IsFlat() bool {
	return p.Quantity == 0
}
