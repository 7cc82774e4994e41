package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/prelevements/internal/core/domain"
)

const (
	subjectSelectionPrefix  = "prelevements.selection."
	subjectSelectionAll     = "prelevements.selection.>"
	subjectPointsInvalidate = "prelevements.points.invalidate"
)

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and makes sure the streams exist.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := connect(url)
	if err != nil {
		return nil, err
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	streams := []nats.StreamConfig{
		{
			Name:      "PRELEVEMENTS_SELECTION",
			Subjects:  []string{subjectSelectionAll},
			Retention: nats.InterestPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "PRELEVEMENTS_POINTS",
			Subjects:  []string{"prelevements.points.>"},
			Retention: nats.LimitsPolicy,
			MaxAge:    1 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist, try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				conn.Close()
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishSelectionChanged publishes a session's selection change.
func (p *Publisher) PublishSelectionChanged(ctx context.Context, event *domain.SelectionChanged) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(subjectSelectionPrefix+event.SessionID, data, nats.Context(ctx))
	return err
}

// PublishPointsInvalidated tells every API instance that the point
// collection changed.
func (p *Publisher) PublishPointsInvalidated(ctx context.Context, reason string) error {
	_, err := p.js.Publish(subjectPointsInvalidate, []byte(reason), nats.Context(ctx))
	return err
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

func connect(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("prelevements"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return conn, nil
}

// Conn returns the underlying connection, for health checks.
func (p *Publisher) Conn() *nats.Conn {
	return p.conn
}
