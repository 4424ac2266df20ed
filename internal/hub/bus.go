package hub

import (
	"context"
	"encoding/json"
	"time"

	"termbridge/internal/market"
	"termbridge/internal/metrics"

	"go.uber.org/zap"
)

const relayTimeout = time.Second

// Relay mirrors broadcast ticks to an external channel.
type Relay interface {
	Publish(ctx context.Context, symbol string, payload []byte) error
}

// Bus fans events out to the registry's sessions.
type Bus struct {
	registry *Registry
	relay    Relay
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

func NewBus(registry *Registry, logger *zap.Logger, m *metrics.Metrics) *Bus {
	return &Bus{registry: registry, logger: logger, metrics: m}
}

// WithRelay mirrors every scoped tick to relay.
func (b *Bus) WithRelay(relay Relay) *Bus {
	b.relay = relay
	return b
}

// Broadcast encodes event once and delivers it to every session interested in
// scope, or to all sessions when scope is empty. Delivery failures are logged
// and otherwise ignored; sessions are never removed here.
func (b *Bus) Broadcast(event any, scope string) {
	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("failed to encode event", zap.String("scope", scope), zap.Error(err))
		return
	}

	for _, s := range b.registry.matching(scope) {
		if err := s.Send(payload); err != nil {
			b.metrics.DeliveryError()
			b.logger.Debug("delivery failed",
				zap.String("session", s.ID()), zap.String("scope", scope), zap.Error(err))
		}
	}

	if tick, ok := event.(market.Tick); ok && scope != "" {
		b.metrics.TickBroadcast(tick.Symbol)
		b.mirror(tick.Symbol, payload)
	}
}

func (b *Bus) mirror(symbol string, payload []byte) {
	if b.relay == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), relayTimeout)
	defer cancel()
	if err := b.relay.Publish(ctx, symbol, payload); err != nil {
		b.metrics.RelayError()
		b.logger.Warn("relay publish failed", zap.String("symbol", symbol), zap.Error(err))
	}
}
