package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tick represents a single price observation from the feed.
// Prices carry fixed scale(6) decimal precision; they are never floats.
type Tick struct {
	Symbol    string          `json:"symbol"`
	Last      decimal.Decimal `json:"last"`
	Bid       decimal.Decimal `json:"bid"`
	Ask       decimal.Decimal `json:"ask"`
	Volume    int64           `json:"volume"`
	Timestamp time.Time       `json:"timestamp"`
}

// Mid returns the midpoint of bid/ask, falling back to Last if either quote
// is zero (unquoted).
func (t Tick) Mid() decimal.Decimal {
	if t.Bid.IsZero() || t.Ask.IsZero() {
		return t.Last
	}
	return t.Bid.Add(t.Ask).Div(decimal.NewFromInt(2))
}
