package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/layer-3/fluxauth/core"
	"github.com/layer-3/fluxauth/ports"
	"github.com/redis/go-redis/v9"
)

const (
	LoginTopic  = "fluxauth.login"
	LogoutTopic = "fluxauth.logout"
)

// LoginEvent is published after a session is created.
type LoginEvent struct {
	Address   string    `json:"zelid"`
	Phrase    string    `json:"loginPhrase"`
	Tier      core.Tier `json:"privilage"`
	CreatedAt time.Time `json:"createdAt"`
}

// LogoutEvent is published after sessions are removed. Phrase is empty for
// scopes that remove more than one session.
type LogoutEvent struct {
	Address string            `json:"zelid,omitempty"`
	Phrase  string            `json:"loginPhrase,omitempty"`
	Scope   ports.LogoutScope `json:"scope"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher   message.Publisher
	loginTopic  string
	logoutTopic string
}

var _ ports.EventPublisher = (*WatermillPublisher)(nil)

// NewWatermillPublisher creates a new Watermill publisher. An empty prefix
// keeps the default topic names.
func NewWatermillPublisher(publisher message.Publisher, prefix string) *WatermillPublisher {
	return &WatermillPublisher{
		publisher:   publisher,
		loginTopic:  prefix + LoginTopic,
		logoutTopic: prefix + LogoutTopic,
	}
}

// NewRedisStreamPublisher builds a watermill publisher writing to Redis streams.
func NewRedisStreamPublisher(client redis.UniversalClient, logger *slog.Logger) (message.Publisher, error) {
	pub, err := redisstream.NewPublisher(redisstream.PublisherConfig{
		Client: client,
	}, watermill.NewSlogLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create redis stream publisher: %w", err)
	}
	return pub, nil
}

// PublishLogin publishes a login event
func (p *WatermillPublisher) PublishLogin(ctx context.Context, session *core.Session, tier core.Tier) error {
	return p.publish(ctx, p.loginTopic, LoginEvent{
		Address:   session.Address,
		Phrase:    session.Phrase,
		Tier:      tier,
		CreatedAt: session.CreatedAt,
	})
}

// PublishLogout publishes a logout event
func (p *WatermillPublisher) PublishLogout(ctx context.Context, address string, phrase string, scope ports.LogoutScope) error {
	return p.publish(ctx, p.logoutTopic, LogoutEvent{
		Address: address,
		Phrase:  phrase,
		Scope:   scope,
	})
}

func (p *WatermillPublisher) publish(ctx context.Context, topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Close closes the underlying publisher
func (p *WatermillPublisher) Close() error {
	return p.publisher.Close()
}
