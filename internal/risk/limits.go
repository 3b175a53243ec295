package risk

import "github.com/shopspring/decimal"

// Limits holds the three configurable pre-trade thresholds described in
// §4.C. cmd/trader builds them from config.Config's MaxOrderValue,
// MaxPositionSize and MaxDrawdownPct fields.
type Limits struct {
	MaxOrderValue   decimal.Decimal
	MaxPositionSize int64
	MaxDrawdownPct  decimal.Decimal
}

// DefaultLimits returns the same thresholds that config.Load uses when the
// environment leaves them unset.
func DefaultLimits() Limits {
	return Limits{
		MaxOrderValue:   decimal.NewFromInt(50_000),
		MaxPositionSize: 1_000,
		MaxDrawdownPct:  decimal.NewFromFloat(0.20),
	}
}
