// Package client holds outbound adapters. The service layer talks to these
// through interfaces it defines itself.
package client

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/ksbdigital/be-spend-approvals/internal/model"
)

// NotificationPublisher publishes workflow events to NATS for consumption by
// the notifications service.
//
// Subject convention: notifications.spend.<event_type>
// Event types: request_submitted, approval_required, request_approved,
//              request_rejected, request_completed, approval_redirected
//
// All publish operations are non-fatal. Errors are logged but never
// propagated, so notification failures never interrupt workflow actions.
type NotificationPublisher struct {
	nc  *nats.Conn
	log zerolog.Logger
}

// NotificationEvent is the JSON schema published to NATS.
type NotificationEvent struct {
	EventType     string         `json:"event_type"`
	RequestID     string         `json:"request_id"`
	RequestNumber string         `json:"request_number"`
	FormType      string         `json:"form_type"`
	Status        string         `json:"status"`
	ActorID       string         `json:"actor_id"`
	Recipients    []string       `json:"recipients"`
	Payload       map[string]any `json:"payload,omitempty"`
}

// Connect dials NATS with reconnect handling and returns a publisher.
func Connect(url, serviceName string, log zerolog.Logger) (*NotificationPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name(serviceName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NotificationPublisher{nc: nc, log: log}, nil
}

// Close drains the connection.
func (p *NotificationPublisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
	}
}

// PublishRequestEvent publishes one workflow event for a request.
func (p *NotificationPublisher) PublishRequestEvent(eventType string, req *model.Request, actorID string, recipients []string) {
	if p.nc == nil || len(recipients) == 0 {
		return
	}

	event := &NotificationEvent{
		EventType:     eventType,
		RequestID:     req.ID,
		RequestNumber: req.RequestNumber,
		FormType:      string(req.FormType),
		Status:        string(req.Status),
		ActorID:       actorID,
		Recipients:    recipients,
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Warn().Err(err).Str("event_type", eventType).Msg("notification: failed to marshal event")
		return
	}

	subject := fmt.Sprintf("notifications.spend.%s", eventType)
	if err := p.nc.Publish(subject, data); err != nil {
		p.log.Warn().Err(err).
			Str("subject", subject).
			Str("request_id", req.ID).
			Msg("notification: failed to publish NATS event (non-fatal)")
		return
	}

	p.log.Debug().
		Str("subject", subject).
		Str("request_id", req.ID).
		Int("recipients", len(recipients)).
		Msg("notification: event published")
}
