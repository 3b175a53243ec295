package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"trading-systemv1/internal/bus"
	"trading-systemv1/internal/model"
)

// Sink wires the persistence writer to the bus: it subscribes to
// ORDER_REQUEST, ORDER_UPDATE, FILL, and POSITION_UPDATE and writes each
// through the repository described in §6. Every write is best-effort — a
// failure is logged as a warning and the handler returns nil, so a
// persistence outage never blocks the event loop or other subscribers.
type Sink struct {
	logger *slog.Logger
	writer *Writer
}

// NewSink creates a Sink bound to an open Writer and subscribes it to the
// bus events it persists.
func NewSink(logger *slog.Logger, b *bus.Bus, w *Writer) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sink{logger: logger, writer: w}
	b.Subscribe(model.EventOrderRequest, s.onOrderRequest)
	b.Subscribe(model.EventOrderUpdate, s.onOrderUpdate)
	b.Subscribe(model.EventFill, s.onFill)
	b.Subscribe(model.EventPositionUpdate, s.onPositionUpdate)
	return s
}

func (s *Sink) onOrderRequest(ctx context.Context, evt model.Event) error {
	if evt.OrderRequest == nil {
		return fmt.Errorf("persistence sink: ORDER_REQUEST event missing payload")
	}
	if err := s.writer.UpsertOrder(*evt.OrderRequest); err != nil {
		s.logger.Warn("persist order failed", slog.String("order_id", evt.OrderRequest.ID), slog.Any("error", err))
	}
	return nil
}

// onOrderUpdate advances the persisted order's status with a plain UPDATE.
// The new status is carried in the update itself, so no order fetch is
// needed; an update for an order id with no row changes nothing.
func (s *Sink) onOrderUpdate(ctx context.Context, evt model.Event) error {
	if evt.OrderUpdate == nil {
		return fmt.Errorf("persistence sink: ORDER_UPDATE event missing payload")
	}
	if err := s.writer.updateOrderStatus(evt.OrderUpdate.OrderID, evt.OrderUpdate.Status); err != nil {
		s.logger.Warn("persist order status failed", slog.String("order_id", evt.OrderUpdate.OrderID), slog.Any("error", err))
	}
	return nil
}

func (s *Sink) onFill(ctx context.Context, evt model.Event) error {
	if evt.Fill == nil {
		return fmt.Errorf("persistence sink: FILL event missing payload")
	}
	if err := s.writer.InsertFill(*evt.Fill); err != nil {
		s.logger.Warn("persist fill failed", slog.String("fill_id", evt.Fill.ID), slog.Any("error", err))
	}
	return nil
}

func (s *Sink) onPositionUpdate(ctx context.Context, evt model.Event) error {
	if evt.PositionUpdate == nil {
		return fmt.Errorf("persistence sink: POSITION_UPDATE event missing payload")
	}
	if err := s.writer.UpsertPosition(*evt.PositionUpdate, time.Now().UTC().Unix()); err != nil {
		s.logger.Warn("persist position failed", slog.String("symbol", evt.PositionUpdate.Symbol), slog.Any("error", err))
	}
	return nil
}
