package ports

import (
	"context"

	"github.com/layer-3/fluxauth/core"
)

// LogoutScope names which sessions a logout removed.
type LogoutScope string

const (
	LogoutCurrent  LogoutScope = "current"
	LogoutPhrase   LogoutScope = "phrase"
	LogoutAddress  LogoutScope = "address"
	LogoutEveryone LogoutScope = "all"
)

// EventPublisher publishes events to notify other instances
type EventPublisher interface {
	PublishLogin(ctx context.Context, session *core.Session, tier core.Tier) error
	PublishLogout(ctx context.Context, address string, phrase string, scope LogoutScope) error
}

// NopPublisher drops every event. Used when events are disabled.
type NopPublisher struct{}

func (NopPublisher) PublishLogin(context.Context, *core.Session, core.Tier) error { return nil }

func (NopPublisher) PublishLogout(context.Context, string, string, LogoutScope) error { return nil }
