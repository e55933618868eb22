package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/layer-3/fluxauth/core"
	"github.com/layer-3/fluxauth/ports"
)

// SessionManager lists and terminates sessions on behalf of an
// authenticated caller.
type SessionManager struct {
	phrases    ports.PhraseStore
	sessions   ports.SessionStore
	verifier   ports.Verifier
	privileges *PrivilegeResolver

	logger  *slog.Logger
	metrics ports.Metrics
	events  ports.EventPublisher
}

func NewSessionManager(
	phrases ports.PhraseStore,
	sessions ports.SessionStore,
	verifier ports.Verifier,
	privileges *PrivilegeResolver,
	opts ...Option,
) *SessionManager {
	o := buildOptions("sessions", opts)
	return &SessionManager{
		phrases:    phrases,
		sessions:   sessions,
		verifier:   verifier,
		privileges: privileges,
		logger:     o.logger,
		metrics:    o.metrics,
		events:     o.events,
	}
}

// Authorize resolves the tier of the caller. A caller without a matching
// session, or whose signature does not cover the session phrase, is
// TierNone. Only storage failures are returned as errors.
func (m *SessionManager) Authorize(ctx context.Context, creds core.Credentials) (core.Tier, error) {
	if creds.Address == "" || creds.Signature == "" {
		return core.TierNone, nil
	}
	session, err := m.sessions.SessionByCredentials(ctx, creds.Address, creds.Signature)
	if errors.Is(err, core.ErrNotFound) {
		return core.TierNone, nil
	}
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to look up session", "error", err)
		return core.TierNone, core.Storage(err)
	}

	valid, err := m.verifier.Verify(session.Phrase, creds.Address, creds.Signature)
	if err != nil || !valid {
		return core.TierNone, nil
	}

	switch {
	case m.privileges.IsAdmin(creds.Address):
		return core.TierAdmin, nil
	case m.privileges.IsTeam(creds.Address):
		return core.TierFluxTeam, nil
	default:
		return core.TierUser, nil
	}
}

// WhoAmI reports the tier of the caller, TierNone when not logged in.
func (m *SessionManager) WhoAmI(ctx context.Context, creds core.Credentials) (core.Tier, error) {
	if creds.Address == "" {
		return core.TierNone, core.Validation(core.ReasonNoCaller)
	}
	if creds.Signature == "" {
		return core.TierNone, core.Validation(core.ReasonNoCallerSignature)
	}
	return m.Authorize(ctx, creds)
}

func (m *SessionManager) requireUser(ctx context.Context, creds core.Credentials) error {
	tier, err := m.Authorize(ctx, creds)
	if err != nil {
		return err
	}
	if !tier.Authenticated() {
		return core.Unauthorized()
	}
	return nil
}

func (m *SessionManager) requireAdmin(ctx context.Context, creds core.Credentials) error {
	tier, err := m.Authorize(ctx, creds)
	if err != nil {
		return err
	}
	if tier != core.TierAdmin {
		return core.Unauthorized()
	}
	return nil
}

// ListActivePhrases returns every outstanding phrase. Admin only.
func (m *SessionManager) ListActivePhrases(ctx context.Context, creds core.Credentials) ([]core.LoginPhrase, error) {
	if err := m.requireAdmin(ctx, creds); err != nil {
		return nil, err
	}
	phrases, err := m.phrases.ListPhrases(ctx)
	if err != nil {
		return nil, core.Storage(err)
	}
	return phrases, nil
}

// ListLoggedUsers returns every session. Admin only.
func (m *SessionManager) ListLoggedUsers(ctx context.Context, creds core.Credentials) ([]core.SessionView, error) {
	if err := m.requireAdmin(ctx, creds); err != nil {
		return nil, err
	}
	sessions, err := m.sessions.ListSessions(ctx)
	if err != nil {
		return nil, core.Storage(err)
	}
	return views(sessions), nil
}

// ListOwnSessions returns the sessions of the caller's address.
func (m *SessionManager) ListOwnSessions(ctx context.Context, creds core.Credentials) ([]core.SessionView, error) {
	if err := m.requireUser(ctx, creds); err != nil {
		return nil, err
	}
	sessions, err := m.sessions.ListSessionsByAddress(ctx, creds.Address)
	if err != nil {
		return nil, core.Storage(err)
	}
	return views(sessions), nil
}

// LogoutCurrent removes the session the caller authenticated with.
func (m *SessionManager) LogoutCurrent(ctx context.Context, creds core.Credentials) error {
	if err := m.requireUser(ctx, creds); err != nil {
		return err
	}
	removed, err := m.sessions.DeleteSession(ctx, creds.Address, creds.Signature)
	if err != nil {
		return core.Storage(err)
	}
	m.loggedOut(ctx, creds.Address, creds.Phrase, ports.LogoutCurrent, boolToInt(removed))
	return nil
}

// LogoutByPhrase removes the session created from phrase. It reports false
// when no such session existed.
func (m *SessionManager) LogoutByPhrase(ctx context.Context, creds core.Credentials, phrase string) (bool, error) {
	if err := m.requireUser(ctx, creds); err != nil {
		return false, err
	}
	removed, err := m.sessions.DeleteSessionByPhrase(ctx, phrase)
	if err != nil {
		return false, core.Storage(err)
	}
	if removed {
		m.loggedOut(ctx, creds.Address, phrase, ports.LogoutPhrase, 1)
	}
	return removed, nil
}

// LogoutAllOfUser removes every session of the caller's address.
func (m *SessionManager) LogoutAllOfUser(ctx context.Context, creds core.Credentials) (int, error) {
	if err := m.requireUser(ctx, creds); err != nil {
		return 0, err
	}
	n, err := m.sessions.DeleteSessionsByAddress(ctx, creds.Address)
	if err != nil {
		return 0, core.Storage(err)
	}
	m.loggedOut(ctx, creds.Address, "", ports.LogoutAddress, n)
	return n, nil
}

// LogoutAllUsers removes every session. Admin only.
func (m *SessionManager) LogoutAllUsers(ctx context.Context, creds core.Credentials) (int, error) {
	if err := m.requireAdmin(ctx, creds); err != nil {
		return 0, err
	}
	n, err := m.sessions.DeleteAllSessions(ctx)
	if err != nil {
		return 0, core.Storage(err)
	}
	m.loggedOut(ctx, "", "", ports.LogoutEveryone, n)
	return n, nil
}

func (m *SessionManager) loggedOut(ctx context.Context, address, phrase string, scope ports.LogoutScope, removed int) {
	m.metrics.Logout(scope, removed)
	m.logger.InfoContext(ctx, "sessions logged out", "zelid", address, "scope", scope, "removed", removed)
	if err := m.events.PublishLogout(ctx, address, phrase, scope); err != nil {
		m.logger.WarnContext(ctx, "failed to publish logout event", "error", err)
	}
}

func views(sessions []core.Session) []core.SessionView {
	out := make([]core.SessionView, len(sessions))
	for i, s := range sessions {
		out[i] = s.View()
	}
	return out
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
