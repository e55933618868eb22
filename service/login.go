package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/fluxauth/core"
	"github.com/layer-3/fluxauth/ports"
)

const loginSucceeded = "Successfully logged in"

// LoginService turns a signed phrase into a session.
type LoginService struct {
	phrases    ports.PhraseStore
	sessions   ports.SessionStore
	verifier   ports.Verifier
	privileges *PrivilegeResolver

	logger  *slog.Logger
	now     func() time.Time
	metrics ports.Metrics
	events  ports.EventPublisher
}

func NewLoginService(
	phrases ports.PhraseStore,
	sessions ports.SessionStore,
	verifier ports.Verifier,
	privileges *PrivilegeResolver,
	opts ...Option,
) *LoginService {
	o := buildOptions("login", opts)
	return &LoginService{
		phrases:    phrases,
		sessions:   sessions,
		verifier:   verifier,
		privileges: privileges,
		logger:     o.logger,
		now:        o.now,
		metrics:    o.metrics,
		events:     o.events,
	}
}

// VerifyLogin validates a signed phrase, consumes it and creates a session.
func (s *LoginService) VerifyLogin(ctx context.Context, address, message, signature string) (*core.LoginResult, error) {
	result, err := s.verifyLogin(ctx, address, message, signature)
	if err != nil {
		e := core.AsError(err)
		s.metrics.LoginAttempt(e.Kind.String())
		if e.Kind == core.KindStorage {
			s.logger.ErrorContext(ctx, "login failed", "zelid", address, "error", err)
		} else {
			s.logger.InfoContext(ctx, "login rejected", "zelid", address, "reason", e.Reason)
		}
		return nil, e
	}
	s.metrics.LoginAttempt("success")
	return result, nil
}

func (s *LoginService) verifyLogin(ctx context.Context, address, message, signature string) (*core.LoginResult, error) {
	now := s.now()

	if err := core.ValidateAddress(address); err != nil {
		return nil, err
	}
	if err := core.ValidateMessageShape(message); err != nil {
		return nil, err
	}
	// A timestamp outside the window is answered without a store lookup.
	if !core.WithinWindow(message, now) {
		return nil, core.Expired()
	}
	if err := core.ValidateSignatureShape(signature); err != nil {
		return nil, err
	}

	phrase, err := s.phrases.GetPhrase(ctx, message)
	if errors.Is(err, core.ErrNotFound) {
		return nil, core.Expired()
	}
	if err != nil {
		return nil, core.Storage(err)
	}
	if phrase.Expired(now) || !core.WithinWindow(phrase.Phrase, now) {
		return nil, core.Expired()
	}

	valid, err := s.verifier.Verify(message, address, signature)
	if err != nil || !valid {
		return nil, core.SignatureInvalid(err)
	}

	// Only one concurrent caller can take the phrase.
	if _, err := s.phrases.TakePhrase(ctx, message); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.Expired()
		}
		return nil, core.Storage(err)
	}

	session := &core.Session{
		ID:        uuid.NewString(),
		Address:   address,
		Phrase:    message,
		Signature: signature,
		CreatedAt: now,
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, core.Storage(err)
	}

	tier := s.privileges.Resolve(address)
	if err := s.events.PublishLogin(ctx, session, tier); err != nil {
		s.logger.WarnContext(ctx, "failed to publish login event", "error", err)
	}
	s.logger.InfoContext(ctx, "user logged in", "zelid", address, "privilage", tier)

	return &core.LoginResult{
		Message:   loginSucceeded,
		Address:   address,
		Phrase:    message,
		Signature: signature,
		Tier:      tier,
	}, nil
}
