package events

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"

	"github.com/sardis-payments/sardis/internal/httpclient"
)

// Publisher emits domain events to registered webhook subscribers over
// httpclient.Client's retrying transport; with no endpoint registered for an
// event type, publishing still structured-logs the event so it's visible in
// the same stream as everything else the service does.
type Publisher struct {
	source    string
	client    *httpclient.Client
	endpoints map[string]string // eventType -> webhook URL
}

// NewPublisher creates a Publisher identifying itself as source (e.g. the
// owning service name) in every envelope it emits.
func NewPublisher(source string) *Publisher {
	return &Publisher{
		source:    source,
		client:    httpclient.NewClient(source+"-events", 5*time.Second),
		endpoints: make(map[string]string),
	}
}

// RegisterEndpoint registers a webhook endpoint for an event type.
func (p *Publisher) RegisterEndpoint(eventType, webhookURL string) {
	p.endpoints[eventType] = webhookURL
}

// Publish emits one event. idempotencyKey should be stable for the
// underlying fact (e.g. the ledger entry id, the anchor id) so a retried
// publish doesn't look like a second occurrence downstream.
func (p *Publisher) Publish(ctx context.Context, eventType, orgID, idempotencyKey string, data map[string]any) error {
	envelope := Envelope{
		EventID:        generateEventID(),
		EventType:      eventType,
		SchemaVersion:  "1.0",
		IdempotencyKey: idempotencyKey,
		Timestamp:      time.Now().UTC(),
		Source:         p.source,
		OrganizationID: orgID,
		Data:           data,
	}

	slog.InfoContext(ctx, "event_published",
		"event_id", envelope.EventID,
		"event_type", envelope.EventType,
		"source", envelope.Source,
	)

	if webhookURL, ok := p.endpoints[eventType]; ok {
		return p.sendWebhook(ctx, webhookURL, envelope)
	}
	return nil
}

func (p *Publisher) sendWebhook(ctx context.Context, url string, envelope Envelope) error {
	resp, err := httpclient.NewRequest(http.MethodPost, url).
		JSON(envelope).
		Header("X-Event-ID", envelope.EventID).
		Header("X-Event-Type", envelope.EventType).
		Context(ctx).
		Execute(p.client)
	if err != nil {
		// A webhook subscriber being unreachable shouldn't fail the
		// operation that produced the event; it's already logged above.
		slog.WarnContext(ctx, "webhook_failed",
			"url", url,
			"event_type", envelope.EventType,
			"error", err,
		)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		slog.WarnContext(ctx, "webhook_error",
			"url", url,
			"event_type", envelope.EventType,
			"status", resp.StatusCode,
		)
	}
	return nil
}

func generateEventID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return "evt_" + hex.EncodeToString(b[:])
}
