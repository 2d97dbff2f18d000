package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/regrant/regrant-auth/core"
)

// LoginTopic carries one message per successful SIWE login
const LoginTopic = "regrant.auth.login"

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
	topic     string
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) *WatermillPublisher {
	return &WatermillPublisher{
		publisher: publisher,
		topic:     LoginTopic,
	}
}

// PublishLogin publishes a login event
func (p *WatermillPublisher) PublishLogin(ctx context.Context, event core.LoginEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("wallet_address", event.WalletAddress)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
