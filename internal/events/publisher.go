package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/supportstack/conversation-core/internal/model"
	"github.com/supportstack/conversation-core/pkg/logger"
)

const (
	// StreamName is the name of the support events stream.
	StreamName = "SUPPORT"

	// SubjectPrefix is the prefix for all support event subjects.
	SubjectPrefix = "support"
)

// Publisher emits turn audit records and hand-off notifications. The
// orchestrator talks to this interface so tests can capture events.
type Publisher interface {
	// PublishTurn appends one processed turn to the audit trail.
	PublishTurn(ctx context.Context, event *model.TurnEvent) error

	// PublishHandoff notifies the human hand-off channel. One-way.
	PublishHandoff(ctx context.Context, event *model.HandoffEvent) error
}

// TurnSubject returns the audit subject for a conversation key.
func TurnSubject(key model.ConversationKey) string {
	return fmt.Sprintf("%s.turn.%s.%s", SubjectPrefix, key.Channel, key.UserID)
}

// HandoffSubject returns the hand-off subject for a conversation key.
func HandoffSubject(key model.ConversationKey) string {
	return fmt.Sprintf("%s.handoff.%s.%s", SubjectPrefix, key.Channel, key.UserID)
}

// JetStreamPublisher publishes events durably via JetStream.
type JetStreamPublisher struct {
	client *Client
}

// NewJetStreamPublisher ensures the support stream exists and returns a
// publisher over it.
func NewJetStreamPublisher(ctx context.Context, client *Client) (*JetStreamPublisher, error) {
	js := client.JetStream()

	if _, err := js.Stream(ctx, StreamName); err != nil {
		_, err = js.CreateStream(ctx, jetstream.StreamConfig{
			Name:        StreamName,
			Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
			Retention:   jetstream.LimitsPolicy,
			MaxAge:      90 * 24 * time.Hour,
			Storage:     jetstream.FileStorage,
			Replicas:    1,
			Compression: jetstream.S2Compression,
			Description: "Conversation turn audit trail and human hand-off notifications",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create stream: %w", err)
		}
	}

	return &JetStreamPublisher{client: client}, nil
}

// PublishTurn appends one processed turn to the audit trail.
func (p *JetStreamPublisher) PublishTurn(ctx context.Context, event *model.TurnEvent) error {
	return p.publish(ctx, TurnSubject(event.Key), event)
}

// PublishHandoff notifies the human hand-off channel.
func (p *JetStreamPublisher) PublishHandoff(ctx context.Context, event *model.HandoffEvent) error {
	return p.publish(ctx, HandoffSubject(event.Key), event)
}

func (p *JetStreamPublisher) publish(ctx context.Context, subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := p.client.JetStream().Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// NopPublisher discards events. Wired when NATS is disabled by config.
type NopPublisher struct {
	logger *logger.Logger
}

// NewNopPublisher creates a publisher that logs hand-offs and drops turns.
func NewNopPublisher(log *logger.Logger) *NopPublisher {
	return &NopPublisher{logger: log}
}

// PublishTurn drops the event.
func (p *NopPublisher) PublishTurn(ctx context.Context, event *model.TurnEvent) error {
	return nil
}

// PublishHandoff logs the hand-off so it is never silently lost.
func (p *NopPublisher) PublishHandoff(ctx context.Context, event *model.HandoffEvent) error {
	p.logger.Warn("hand-off notification with events disabled",
		zap.String("conversation_key", event.Key.String()),
		zap.String("reason", event.Reason),
	)
	return nil
}
