package strategy

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"trading-systemv1/internal/model"
)

func tickAt(symbol string, price float64) model.Tick {
	p := decimal.NewFromFloat(price)
	return model.Tick{
		Symbol:    symbol,
		Last:      p,
		Bid:       p,
		Ask:       p,
		Timestamp: time.Now(),
	}
}

// TestMeanReversion_EmptyWindowNeverSignals covers the window-not-full
// boundary: fewer than W ticks must never produce a signal, regardless of
// how extreme the prices are.
func TestMeanReversion_EmptyWindowNeverSignals(t *testing.T) {
	mr := NewMeanReversion("mean-reversion", []string{"ACME"}, 20, 2.0, 1e-9)

	for i := 0; i < 19; i++ {
		if sig := mr.OnTick(tickAt("ACME", 100)); sig != nil {
			t.Fatalf("tick %d: expected no signal before window is full, got %+v", i, sig)
		}
	}
	if sig := mr.OnTick(tickAt("ACME", 1_000_000)); sig == nil {
		t.Fatal("expected the 20th tick to produce a signal now that the window is full")
	}
}

// TestMeanReversion_BuySignalOnSharpDrop reproduces the spec's scenario 1:
// 19 ticks at 100 followed by one at 90 should emit exactly one BUY signal
// with strength 1.0 (|z| saturates the 0..1 scaling).
func TestMeanReversion_BuySignalOnSharpDrop(t *testing.T) {
	mr := NewMeanReversion("mean-reversion", []string{"ACME"}, 20, 2.0, 1e-9)

	var last *model.Signal
	for i := 0; i < 19; i++ {
		last = mr.OnTick(tickAt("ACME", 100))
		if last != nil {
			t.Fatalf("tick %d: unexpected early signal %+v", i, last)
		}
	}

	sig := mr.OnTick(tickAt("ACME", 90))
	if sig == nil {
		t.Fatal("expected a BUY signal on the sharp drop")
	}
	if sig.Side != model.Buy {
		t.Fatalf("expected BUY, got %s", sig.Side)
	}
	if sig.Strength != 1.0 {
		t.Fatalf("expected strength 1.0, got %f", sig.Strength)
	}
	if sig.Symbol != "ACME" {
		t.Fatalf("expected symbol ACME, got %s", sig.Symbol)
	}
}

// TestMeanReversion_SellSignalOnSharpRise is the mirror image: a spike above
// the rolling mean must emit SELL.
func TestMeanReversion_SellSignalOnSharpRise(t *testing.T) {
	mr := NewMeanReversion("mean-reversion", []string{"ACME"}, 20, 2.0, 1e-9)

	for i := 0; i < 19; i++ {
		mr.OnTick(tickAt("ACME", 100))
	}
	sig := mr.OnTick(tickAt("ACME", 110))
	if sig == nil {
		t.Fatal("expected a SELL signal on the sharp rise")
	}
	if sig.Side != model.Sell {
		t.Fatalf("expected SELL, got %s", sig.Side)
	}
}

// TestMeanReversion_ExactlyEntryZNeverSignals checks the strict-inequality
// boundary: a z-score landing precisely on the threshold does not signal.
func TestMeanReversion_ExactlyEntryZNeverSignals(t *testing.T) {
	// Window [100, 100, 100, 104]: mean=101, sample stdev=sqrt(12/3)=2, so
	// the last price's z-score is (104-101)/2 = 1.5 exactly in float
	// arithmetic. With entryZ=1.5 this lands precisely on the threshold.
	exact := NewMeanReversion("mean-reversion", []string{"ACME"}, 4, 1.5, 1e-9)
	for i := 0; i < 3; i++ {
		exact.OnTick(tickAt("ACME", 100))
	}
	if sig := exact.OnTick(tickAt("ACME", 104)); sig != nil {
		t.Fatalf("expected no signal for z == entryZ exactly, got %+v", sig)
	}

	// A zero-variance window (all equal prices) never signals either, since
	// stdev < epsilon short-circuits before any z-score is computed.
	mr := NewMeanReversion("mean-reversion", []string{"ACME"}, 4, 2.0, 1e-9)
	for i := 0; i < 4; i++ {
		mr.OnTick(tickAt("ACME", 100))
	}
	if sig := mr.OnTick(tickAt("ACME", 100)); sig != nil {
		t.Fatalf("expected no signal for a zero-variance window, got %+v", sig)
	}
}

// TestMeanReversion_ResetThenReplayProducesIdenticalSignals verifies the
// round-trip property from §8: resetting and replaying the exact same tick
// sequence reproduces the exact same signal stream.
func TestMeanReversion_ResetThenReplayProducesIdenticalSignals(t *testing.T) {
	mr := NewMeanReversion("mean-reversion", []string{"ACME"}, 20, 2.0, 1e-9)

	prices := make([]float64, 0, 25)
	for i := 0; i < 19; i++ {
		prices = append(prices, 100)
	}
	prices = append(prices, 90, 100, 111, 100, 95, 100)

	run := func() []*model.Signal {
		var sigs []*model.Signal
		for _, p := range prices {
			sigs = append(sigs, mr.OnTick(tickAt("ACME", p)))
		}
		return sigs
	}

	first := run()
	mr.Reset()
	second := run()

	if len(first) != len(second) {
		t.Fatalf("signal stream length mismatch: %d vs %d", len(first), len(second))
	}
	for i := range first {
		a, b := first[i], second[i]
		if (a == nil) != (b == nil) {
			t.Fatalf("tick %d: signal presence mismatch: %+v vs %+v", i, a, b)
		}
		if a == nil {
			continue
		}
		if a.Side != b.Side || a.Strength != b.Strength || a.Symbol != b.Symbol {
			t.Fatalf("tick %d: signal mismatch: %+v vs %+v", i, a, b)
		}
	}
}

// TestMeanReversion_SymbolsAreIsolated ensures one symbol's window never
// leaks into another's z-score computation.
func TestMeanReversion_SymbolsAreIsolated(t *testing.T) {
	mr := NewMeanReversion("mean-reversion", []string{"ACME", "GLOBEX"}, 20, 2.0, 1e-9)

	for i := 0; i < 19; i++ {
		mr.OnTick(tickAt("ACME", 100))
	}
	if sig := mr.OnTick(tickAt("GLOBEX", 90)); sig != nil {
		t.Fatalf("expected no signal for GLOBEX's own (not-yet-full) window, got %+v", sig)
	}
}

func TestMeanReversion_NameAndSymbols(t *testing.T) {
	mr := NewMeanReversion("mean-reversion", []string{"ACME", "GLOBEX"}, 20, 2.0, 1e-9)
	if mr.Name() != "mean-reversion" {
		t.Fatalf("expected name mean-reversion, got %s", mr.Name())
	}
	if len(mr.Symbols()) != 2 {
		t.Fatalf("expected 2 symbols, got %d", len(mr.Symbols()))
	}
}
