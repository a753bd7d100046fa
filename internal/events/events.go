// Package events announces finished conversions to other services.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"media-converter/internal/logging"
	"media-converter/internal/metrics"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is used when no subject is configured.
const DefaultSubject = "media.converted"

// Converted describes one successful conversion.
type Converted struct {
	AttachmentID int64     `json:"attachment_id,omitempty"`
	Source       string    `json:"source"`
	Target       string    `json:"target"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	HappenedAt   time.Time `json:"happened_at"`
}

// Publisher delivers conversion events. Publishing is best effort; a failed
// publish never fails the conversion that triggered it.
type Publisher interface {
	PublishConverted(ctx context.Context, ev Converted) error
	Close()
}

// NopPublisher discards events.
type NopPublisher struct{}

// PublishConverted implements Publisher.
func (NopPublisher) PublishConverted(context.Context, Converted) error { return nil }

// Close implements Publisher.
func (NopPublisher) Close() {}

// NATSPublisher publishes events as JSON on a NATS subject.
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
}

// Connect dials url and returns a publisher for subject.
func Connect(url, subject string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("media-converter"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logging.Warn("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.Info("NATS reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	if subject == "" {
		subject = DefaultSubject
	}
	logging.Info("Publishing conversion events to NATS subject %s", subject)
	return &NATSPublisher{nc: nc, subject: subject}, nil
}

// PublishConverted implements Publisher.
func (p *NATSPublisher) PublishConverted(_ context.Context, ev Converted) error {
	b, err := json.Marshal(ev)
	if err != nil {
		metrics.EventsPublished.WithLabelValues("error").Inc()
		return err
	}
	if err := p.nc.Publish(p.subject, b); err != nil {
		metrics.EventsPublished.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to publish to %s: %w", p.subject, err)
	}
	metrics.EventsPublished.WithLabelValues("success").Inc()
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	if p.nc != nil {
		if err := p.nc.Drain(); err != nil {
			logging.Warn("NATS drain failed: %v", err)
		}
	}
}
