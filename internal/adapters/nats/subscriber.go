package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/prelevements/internal/core/domain"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber opens its own NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := connect(url)
	if err != nil {
		return nil, err
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeSelectionChanges consumes selection events through a durable
// consumer shared by every subscriber process.
func (s *Subscriber) SubscribeSelectionChanges(ctx context.Context, handler func(ctx context.Context, event *domain.SelectionChanged) error) error {
	sub, err := s.js.Subscribe(subjectSelectionAll, func(msg *nats.Msg) {
		var event domain.SelectionChanged
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			// Poison message, redelivery cannot fix it.
			_ = msg.Term()
			return
		}
		if err := handler(ctx, &event); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable("selection-audit"),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// SubscribePointsInvalidated delivers every invalidation to this process.
// The consumer is ephemeral so that each API instance gets its own copy.
func (s *Subscriber) SubscribePointsInvalidated(ctx context.Context, handler func(ctx context.Context, reason string) error) error {
	sub, err := s.js.Subscribe(subjectPointsInvalidate, func(msg *nats.Msg) {
		if err := handler(ctx, string(msg.Data)); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.DeliverNew(),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
