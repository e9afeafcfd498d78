package natsadapter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/fieldgeo/internal/core/domain"
)

// Subscriber implements ports.EventSubscriber. Every replica must see every
// position, so it uses a plain (non-queue) subscription.
type Subscriber struct {
	conn   *nats.Conn
	origin string
	subs   []*nats.Subscription
}

// NewSubscriber creates a subscriber that skips events published with origin.
func NewSubscriber(conn *nats.Conn, origin string) *Subscriber {
	return &Subscriber{conn: conn, origin: origin}
}

// SubscribeAgentPositions delivers positions published by other replicas.
func (s *Subscriber) SubscribeAgentPositions(ctx context.Context, handler func(ctx context.Context, pos domain.AgentPosition) error) error {
	sub, err := s.conn.Subscribe(PositionSubjectAll, func(msg *nats.Msg) {
		event, err := DecodePositionEvent(msg.Data)
		if err != nil {
			slog.Warn("discarding position event", "subject", msg.Subject, "error", err)
			return
		}
		if event.Origin == s.origin {
			return
		}
		if err := handler(ctx, event.Position()); err != nil {
			slog.Debug("replica position rejected", "user_id", event.AgentID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", PositionSubjectAll, err)
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes. The connection is owned by the caller.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
}
