package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PortfolioSnapshot is a point-in-time view of cash, P&L and drawdown,
// produced by the position tracker on demand and pushed to clients at 1Hz.
type PortfolioSnapshot struct {
	Cash            decimal.Decimal `json:"cash"`
	TotalUnrealized decimal.Decimal `json:"total_unrealized"`
	TotalRealized   decimal.Decimal `json:"total_realized"`
	TotalEquity     decimal.Decimal `json:"total_equity"`
	PeakEquity      decimal.Decimal `json:"peak_equity"`
	DrawdownPct     decimal.Decimal `json:"drawdown_pct"`
	SnapshotAt      time.Time       `json:"snapshot_at"`
}
