// Package nats implements the notifier port on NATS JetStream. Quota and
// failover notifications are published to rates.notify.<kind> subjects so
// downstream delivery channels (mail, push, dashboards) can consume them.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/kursd/kursd/internal/port/notifier"
)

const (
	streamName    = "KURSD"
	subjectPrefix = "rates.notify."
	sinkName      = "nats"
)

// Publisher implements notifier.Notifier by publishing to JetStream.
type Publisher struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// Connect establishes a connection to NATS and ensures the notification
// stream exists.
func Connect(ctx context.Context, url string) (*Publisher, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{subjectPrefix + ">"},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("nats connected", "url", url, "stream", streamName)
	return &Publisher{nc: nc, js: js}, nil
}

func (p *Publisher) Name() string { return sinkName }

// Send publishes the notification to rates.notify.<kind>.
func (p *Publisher) Send(ctx context.Context, n notifier.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("nats marshal: %w", err)
	}

	subject := subjectPrefix + string(n.Kind)
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Close shuts down the NATS connection.
func (p *Publisher) Close() error {
	p.nc.Close()
	return nil
}
