package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/layer-3/fluxauth/core"
	"github.com/layer-3/fluxauth/ports"
)

// DefaultPollInterval is the delay between two store checks of a long-poll.
const DefaultPollInterval = 500 * time.Millisecond

const (
	ChannelLogin     = "login"
	ChannelSignature = "signature"
)

// Waiter blocks until a phrase turns into a session or a pending signature
// appears. Both loops stop as soon as ctx is done.
type Waiter struct {
	phrases    ports.PhraseStore
	sessions   ports.SessionStore
	signatures ports.SignatureStore
	privileges *PrivilegeResolver
	interval   time.Duration

	logger  *slog.Logger
	metrics ports.Metrics
}

func NewWaiter(
	phrases ports.PhraseStore,
	sessions ports.SessionStore,
	signatures ports.SignatureStore,
	privileges *PrivilegeResolver,
	interval time.Duration,
	opts ...Option,
) *Waiter {
	o := buildOptions("waiter", opts)
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Waiter{
		phrases:    phrases,
		sessions:   sessions,
		signatures: signatures,
		privileges: privileges,
		interval:   interval,
		logger:     o.logger,
		metrics:    o.metrics,
	}
}

// WaitForSession polls until a session references phrase. It fails with an
// expired error once the phrase is gone and no session appeared, and with a
// storage error when a store query fails. A cancelled ctx returns ctx.Err().
func (w *Waiter) WaitForSession(ctx context.Context, phrase string) (*core.LoginResult, error) {
	w.metrics.WaiterStarted(ChannelLogin)
	defer w.metrics.WaiterFinished(ChannelLogin)

	timer := time.NewTimer(0)
	defer timer.Stop()

	// A login takes the phrase before it inserts the session, so one
	// extra poll is allowed after the phrase disappears.
	phraseGone := false
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}

		session, err := w.sessions.SessionByPhrase(ctx, phrase)
		if err == nil {
			return &core.LoginResult{
				Message:   loginSucceeded,
				Address:   session.Address,
				Phrase:    session.Phrase,
				Signature: session.Signature,
				Tier:      w.privileges.Resolve(session.Address),
			}, nil
		}
		if !errors.Is(err, core.ErrNotFound) {
			return nil, w.storageFailure(ctx, err)
		}

		_, err = w.phrases.GetPhrase(ctx, phrase)
		switch {
		case err == nil:
			phraseGone = false
		case errors.Is(err, core.ErrNotFound):
			if phraseGone {
				return nil, core.Expired()
			}
			phraseGone = true
		default:
			return nil, w.storageFailure(ctx, err)
		}

		timer.Reset(w.interval)
	}
}

// WaitForSignature polls until a pending signature with identifier exists.
// There is no expiry: only ctx or a store failure ends the wait early.
func (w *Waiter) WaitForSignature(ctx context.Context, identifier string) (*core.PendingSignature, error) {
	w.metrics.WaiterStarted(ChannelSignature)
	defer w.metrics.WaiterFinished(ChannelSignature)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}

		sig, err := w.signatures.SignatureByIdentifier(ctx, identifier)
		if err == nil {
			return sig, nil
		}
		if !errors.Is(err, core.ErrNotFound) {
			return nil, w.storageFailure(ctx, err)
		}
		timer.Reset(w.interval)
	}
}

func (w *Waiter) storageFailure(ctx context.Context, err error) error {
	// a store call aborted by cancellation is not a failure
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	w.logger.ErrorContext(ctx, "long-poll store query failed", "error", err)
	return core.Storage(err)
}
