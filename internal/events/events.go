// Package events publishes prediction-completed notifications over NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
)

// PredictionEvent is published once per served prediction request.
type PredictionEvent struct {
	ID              uuid.UUID `json:"id"`
	RequestID       string    `json:"request_id,omitempty"`
	Model           string    `json:"model"`
	ArtifactVersion string    `json:"artifact_version"`
	Rows            int       `json:"rows"`
	CacheHits       int       `json:"cache_hits"`
	Prices          []float64 `json:"prices"`
	Duration        float64   `json:"duration_ms"`
	CreatedAt       time.Time `json:"created_at"`
}

// Publisher sends prediction events.
type Publisher interface {
	Publish(ctx context.Context, evt PredictionEvent) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, PredictionEvent) error { return nil }
func (NopPublisher) Close() error                                  { return nil }

type msgConn interface {
	PublishMsg(m *nats.Msg) error
}

// NATSPublisher publishes JSON events to one subject.
type NATSPublisher struct {
	conn    msgConn
	close   func()
	subject string
}

// NewNATSPublisher connects to the NATS server at url.
func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("resale-engine"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &NATSPublisher{conn: nc, close: nc.Close, subject: subject}, nil
}

// Publish serializes evt as JSON. Trace context from ctx is injected into
// the message headers.
func (p *NATSPublisher) Publish(ctx context.Context, evt PredictionEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := &nats.Msg{
		Subject: p.subject,
		Data:    data,
		Header:  nats.Header{},
	}
	msg.Header.Set("Nats-Msg-Id", evt.ID.String())
	otel.GetTextMapPropagator().Inject(ctx, (*headerCarrier)(msg))

	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", p.subject, err)
	}
	return nil
}

// Close closes the connection.
func (p *NATSPublisher) Close() error {
	if p.close != nil {
		p.close()
	}
	return nil
}

// headerCarrier adapts nats.Msg headers for OTel TextMapCarrier.
type headerCarrier nats.Msg

func (c *headerCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *headerCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *headerCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}
