package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/lumenpay/lumenvault/core"
	"github.com/lumenpay/lumenvault/ports"
)

const (
	TopicUserCreated = "lumenpay.auth.user_created"
	TopicLogin       = "lumenpay.auth.login"
)

// UserCreatedEvent is published the first time a public key authenticates
type UserCreatedEvent struct {
	UserID    string    `json:"user_id"`
	PublicKey string    `json:"public_key"`
	CreatedAt time.Time `json:"created_at"`
}

// LoginEvent is published whenever a session token is issued
type LoginEvent struct {
	UserID    string    `json:"user_id"`
	PublicKey string    `json:"public_key"`
	TokenID   string    `json:"token_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) *WatermillPublisher {
	return &WatermillPublisher{publisher: publisher}
}

var _ ports.EventPublisher = (*WatermillPublisher)(nil)

// PublishUserCreated publishes a user created event
func (p *WatermillPublisher) PublishUserCreated(ctx context.Context, user core.User) error {
	return p.publish(ctx, TopicUserCreated, UserCreatedEvent{
		UserID:    user.ID,
		PublicKey: user.PublicKey,
		CreatedAt: user.CreatedAt,
	})
}

// PublishLogin publishes a login event
func (p *WatermillPublisher) PublishLogin(ctx context.Context, identity core.Identity) error {
	return p.publish(ctx, TopicLogin, LoginEvent{
		UserID:    identity.UserID,
		PublicKey: identity.PublicKey,
		TokenID:   identity.TokenID,
		ExpiresAt: identity.ExpiresAt,
	})
}

func (p *WatermillPublisher) publish(ctx context.Context, topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) PublishUserCreated(context.Context, core.User) error { return nil }
func (NopPublisher) PublishLogin(context.Context, core.Identity) error   { return nil }
