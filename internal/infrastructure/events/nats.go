package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/fincore/xs2a-consent-gateway/internal/domain"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const (
	streamName     = "XS2A_CONSENTS"
	subjectPrefix  = "xs2a.consents"
	statusSubject  = subjectPrefix + ".status"
	eventRetention = 24 * time.Hour
)

// Publisher streams consent lifecycle events.
type Publisher interface {
	PublishConsentStatusChanged(ctx context.Context, consentID string, authType domain.AuthType,
		status domain.ConsentStatus, aggregated domain.AggregatedStatus) error
	Close() error
}

// ConsentStatusChangedEvent is the wire envelope for a consent status
// transition driven by authorisation aggregation.
type ConsentStatusChangedEvent struct {
	EventID          string    `json:"eventId"`
	OccurredAt       time.Time `json:"occurredAt"`
	ConsentID        string    `json:"consentId"`
	AuthType         string    `json:"authType"`
	ConsentStatus    string    `json:"consentStatus"`
	AggregatedStatus string    `json:"aggregatedStatus"`
}

type noop struct{}

func (noop) PublishConsentStatusChanged(context.Context, string, domain.AuthType, domain.ConsentStatus, domain.AggregatedStatus) error {
	return nil
}

func (noop) Close() error { return nil }

// NewNoopPublisher returns a publisher that drops every event. Used when no
// NATS URL is configured.
func NewNoopPublisher() Publisher { return noop{} }

type natsPublisher struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	logger *slog.Logger
}

// NewNatsPublisher connects to NATS and ensures the consent event stream
// exists.
func NewNatsPublisher(url string, logger *slog.Logger) (Publisher, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:      streamName,
		Subjects:  []string{subjectPrefix + ".*"},
		Retention: nats.LimitsPolicy,
		MaxAge:    eventRetention,
		Discard:   nats.DiscardOld,
		Storage:   nats.FileStorage,
	})
	if err != nil && err != nats.ErrStreamNameAlreadyInUse {
		nc.Close()
		return nil, fmt.Errorf("failed to create consent event stream: %w", err)
	}

	logger.Info("connected to NATS", "url", url, "stream", streamName)

	return &natsPublisher{nc: nc, js: js, logger: logger}, nil
}

func (p *natsPublisher) PublishConsentStatusChanged(ctx context.Context, consentID string,
	authType domain.AuthType, status domain.ConsentStatus, aggregated domain.AggregatedStatus) error {

	event := ConsentStatusChangedEvent{
		EventID:          uuid.New().String(),
		OccurredAt:       time.Now().UTC(),
		ConsentID:        consentID,
		AuthType:         string(authType),
		ConsentStatus:    string(status),
		AggregatedStatus: string(aggregated),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal consent event: %w", err)
	}

	if _, err := p.js.Publish(statusSubject, payload, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish consent event: %w", err)
	}
	return nil
}

func (p *natsPublisher) Close() error {
	p.nc.Close()
	return nil
}
