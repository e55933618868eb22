package ports

import (
	"context"

	"github.com/layer-3/fluxauth/core"
)

// PhraseStore holds outstanding login phrases. Expired phrases behave as absent.
type PhraseStore interface {
	CreatePhrase(ctx context.Context, phrase *core.LoginPhrase) error
	// GetPhrase returns core.ErrNotFound when the phrase is unknown or expired.
	GetPhrase(ctx context.Context, phrase string) (*core.LoginPhrase, error)
	// TakePhrase atomically removes and returns the phrase. Of two concurrent
	// callers at most one receives it; the other gets core.ErrNotFound.
	TakePhrase(ctx context.Context, phrase string) (*core.LoginPhrase, error)
	ListPhrases(ctx context.Context) ([]core.LoginPhrase, error)
}

// SessionStore holds authenticated sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, session *core.Session) error
	// SessionByPhrase returns core.ErrNotFound when no session references the phrase.
	SessionByPhrase(ctx context.Context, phrase string) (*core.Session, error)
	// SessionByCredentials returns core.ErrNotFound when no session matches.
	SessionByCredentials(ctx context.Context, address, signature string) (*core.Session, error)
	ListSessions(ctx context.Context) ([]core.Session, error)
	ListSessionsByAddress(ctx context.Context, address string) ([]core.Session, error)
	// DeleteSession removes the session matching the credentials and reports whether one existed.
	DeleteSession(ctx context.Context, address, signature string) (bool, error)
	DeleteSessionByPhrase(ctx context.Context, phrase string) (bool, error)
	DeleteSessionsByAddress(ctx context.Context, address string) (int, error)
	DeleteAllSessions(ctx context.Context) (int, error)
}

// SignatureStore holds signatures handed over by out-of-band signing devices.
type SignatureStore interface {
	CreateSignature(ctx context.Context, signature *core.PendingSignature) error
	// SignatureByIdentifier returns core.ErrNotFound when nothing matches.
	SignatureByIdentifier(ctx context.Context, identifier string) (*core.PendingSignature, error)
}

// Store bundles the three record kinds served by one backend.
type Store interface {
	PhraseStore
	SessionStore
	SignatureStore
	Close() error
}
