// Package notification provides alert delivery to external channels
// (Telegram, webhooks) for trading events. BusBridge is the adapter from
// the bus's RISK_BREACH events to the Notifier interface.
package notification

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"trading-systemv1/internal/bus"
	"trading-systemv1/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier is a simple notifier that logs alerts (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// BusBridge subscribes to RISK_BREACH on the bus and forwards each one to a
// Notifier as an AlertWarning. Delivery failures are logged, never
// propagated back to the bus — a dead webhook must not affect trading.
type BusBridge struct {
	logger   *slog.Logger
	notifier Notifier
}

// NewBusBridge creates a BusBridge and subscribes it to RISK_BREACH.
func NewBusBridge(logger *slog.Logger, b *bus.Bus, notifier Notifier) *BusBridge {
	if logger == nil {
		logger = slog.Default()
	}
	bridge := &BusBridge{logger: logger, notifier: notifier}
	b.Subscribe(model.EventRiskBreach, bridge.onRiskBreach)
	return bridge
}

func (n *BusBridge) onRiskBreach(ctx context.Context, evt model.Event) error {
	if evt.RiskBreach == nil {
		return fmt.Errorf("notification bridge: RISK_BREACH event missing payload")
	}
	alert := Alert{
		Level:   AlertWarning,
		Title:   fmt.Sprintf("risk breach: %s", evt.RiskBreach.Rule),
		Message: evt.RiskBreach.Message,
	}
	if err := n.notifier.Send(ctx, alert); err != nil {
		n.logger.Warn("notification delivery failed", slog.Any("error", err))
	}
	return nil
}
