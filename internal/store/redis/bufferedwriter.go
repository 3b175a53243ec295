package redis

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"trading-systemv1/internal/model"
)

// pendingWrite represents a write that was buffered during circuit-open
// state.
type pendingWrite struct {
	WriteType string // "snapshot", "last_price"
	Data      []byte // JSON-encoded payload
}

type pricePayload struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// BufferedWriter wraps a Writer with a circuit breaker. During circuit-open
// state, writes are buffered locally and flushed when the circuit closes
// again — the cache is optional, so a Redis outage degrades to "no cache"
// rather than blocking the event loop.
type BufferedWriter struct {
	writer *Writer
	cb     *CircuitBreaker
	ctx    context.Context

	mu     sync.Mutex
	buffer []pendingWrite
	maxBuf int

	OnBuffer func()
	OnFlush  func(count int)
}

// NewBufferedWriter creates a BufferedWriter wrapping the given Writer.
func NewBufferedWriter(ctx context.Context, w *Writer, cb *CircuitBreaker, maxBufferSize int) *BufferedWriter {
	if maxBufferSize <= 0 {
		maxBufferSize = 10000
	}
	bw := &BufferedWriter{
		writer: w,
		cb:     cb,
		ctx:    ctx,
		buffer: make([]pendingWrite, 0, 256),
		maxBuf: maxBufferSize,
	}

	prevCallback := cb.OnStateChange
	cb.OnStateChange = func(from, to State) {
		if prevCallback != nil {
			prevCallback(from, to)
		}
		if to == StateClosed {
			go bw.flush()
		}
	}

	return bw
}

// WriteSnapshot writes the portfolio snapshot through the circuit breaker.
// If the circuit is open, the write is buffered locally rather than lost.
func (bw *BufferedWriter) WriteSnapshot(snap model.PortfolioSnapshot) error {
	err := bw.cb.Execute(func() error {
		return bw.writer.writeSnapshot(bw.ctx, snap)
	})
	if err == ErrCircuitOpen {
		bw.bufferWrite("snapshot", snap)
		return nil
	}
	return err
}

// WriteLastPrice writes a symbol's last price through the circuit breaker.
func (bw *BufferedWriter) WriteLastPrice(symbol, price string) error {
	err := bw.cb.Execute(func() error {
		return bw.writer.writeLastPrice(bw.ctx, symbol, price)
	})
	if err == ErrCircuitOpen {
		bw.bufferWrite("last_price", pricePayload{Symbol: symbol, Price: price})
		return nil
	}
	return err
}

func (bw *BufferedWriter) bufferWrite(writeType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		bw.writer.logger.Warn("buffered writer marshal error", slog.Any("error", err))
		return
	}

	bw.mu.Lock()
	defer bw.mu.Unlock()

	if len(bw.buffer) >= bw.maxBuf {
		bw.buffer = bw.buffer[1:]
	}
	bw.buffer = append(bw.buffer, pendingWrite{WriteType: writeType, Data: data})

	if bw.OnBuffer != nil {
		bw.OnBuffer()
	}
}

// flush replays all buffered writes through the underlying writer.
func (bw *BufferedWriter) flush() {
	bw.mu.Lock()
	if len(bw.buffer) == 0 {
		bw.mu.Unlock()
		return
	}
	toFlush := bw.buffer
	bw.buffer = make([]pendingWrite, 0, 256)
	bw.mu.Unlock()

	flushed := 0
	for _, pw := range toFlush {
		switch pw.WriteType {
		case "snapshot":
			var snap model.PortfolioSnapshot
			if json.Unmarshal(pw.Data, &snap) == nil {
				bw.writer.writeSnapshot(bw.ctx, snap)
			}
		case "last_price":
			var p pricePayload
			if json.Unmarshal(pw.Data, &p) == nil {
				bw.writer.writeLastPrice(bw.ctx, p.Symbol, p.Price)
			}
		}
		flushed++
	}

	bw.writer.logger.Info("buffered writer flushed", slog.Int("count", flushed))
	if bw.OnFlush != nil {
		bw.OnFlush(flushed)
	}
}

// PendingCount returns the number of buffered writes waiting to be flushed.
func (bw *BufferedWriter) PendingCount() int {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	return len(bw.buffer)
}

// Underlying returns the wrapped Writer for direct access.
func (bw *BufferedWriter) Underlying() *Writer {
	return bw.writer
}
