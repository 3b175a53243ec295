package model

import "time"

// EventType tags the payload carried by an Event. Each variant has a fixed
// schema — Event is a closed discriminated union, not a duck-typed map.
type EventType string

const (
	EventTick           EventType = "TICK"
	EventSignal         EventType = "SIGNAL"
	EventOrderRequest   EventType = "ORDER_REQUEST"
	EventOrderUpdate    EventType = "ORDER_UPDATE"
	EventFill           EventType = "FILL"
	EventPositionUpdate EventType = "POSITION_UPDATE"
	EventRiskBreach     EventType = "RISK_BREACH"
)

// OrderUpdate carries a status transition for an existing order. Only the
// fields relevant to the transition are populated by the emitter.
type OrderUpdate struct {
	OrderID string      `json:"order_id"`
	Status  OrderStatus `json:"status"`
}

// Event is the envelope published on the bus. Exactly one of the typed
// fields is populated, matching Type.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	Tick           *Tick           `json:"tick,omitempty"`
	Signal         *Signal         `json:"signal,omitempty"`
	OrderRequest   *OrderRequest   `json:"order_request,omitempty"`
	OrderUpdate    *OrderUpdate    `json:"order_update,omitempty"`
	Fill           *Fill           `json:"fill,omitempty"`
	PositionUpdate *Position       `json:"position_update,omitempty"`
	RiskBreach     *RiskBreach     `json:"risk_breach,omitempty"`
}

// NewTickEvent wraps a Tick in its Event envelope.
func NewTickEvent(id string, t Tick) Event {
	return Event{ID: id, Type: EventTick, Timestamp: t.Timestamp, Tick: &t}
}

// NewSignalEvent wraps a Signal in its Event envelope.
func NewSignalEvent(id string, s Signal) Event {
	return Event{ID: id, Type: EventSignal, Timestamp: s.Timestamp, Signal: &s}
}

// NewOrderRequestEvent wraps an OrderRequest in its Event envelope.
func NewOrderRequestEvent(id string, o OrderRequest) Event {
	return Event{ID: id, Type: EventOrderRequest, Timestamp: o.CreatedAt, OrderRequest: &o}
}

// NewOrderUpdateEvent wraps an OrderUpdate in its Event envelope.
func NewOrderUpdateEvent(id string, at time.Time, u OrderUpdate) Event {
	return Event{ID: id, Type: EventOrderUpdate, Timestamp: at, OrderUpdate: &u}
}

// NewFillEvent wraps a Fill in its Event envelope.
func NewFillEvent(id string, f Fill) Event {
	return Event{ID: id, Type: EventFill, Timestamp: f.FilledAt, Fill: &f}
}

// NewPositionUpdateEvent wraps a Position in its Event envelope.
func NewPositionUpdateEvent(id string, at time.Time, p Position) Event {
	return Event{ID: id, Type: EventPositionUpdate, Timestamp: at, PositionUpdate: &p}
}

// NewRiskBreachEvent wraps a RiskBreach in its Event envelope.
func NewRiskBreachEvent(id string, at time.Time, b RiskBreach) Event {
	return Event{ID: id, Type: EventRiskBreach, Timestamp: at, RiskBreach: &b}
}
