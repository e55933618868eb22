package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/layer-3/fluxauth/core"
	"github.com/layer-3/fluxauth/ports"
)

// SignatureService stores signatures handed over by a signing device.
type SignatureService struct {
	store  ports.SignatureStore
	logger *slog.Logger
	now    func() time.Time
}

func NewSignatureService(store ports.SignatureStore, opts ...Option) *SignatureService {
	o := buildOptions("signatures", opts)
	return &SignatureService{store: store, logger: o.logger, now: o.now}
}

// ProvideSignature validates the shapes and stores the signature under the
// identifier derived from address and message.
func (s *SignatureService) ProvideSignature(ctx context.Context, address, message, signature string) (*core.PendingSignature, error) {
	if err := core.ValidateAddress(address); err != nil {
		return nil, err
	}
	if err := core.ValidateMessageShape(message); err != nil {
		return nil, err
	}
	if err := core.ValidateSignatureShape(signature); err != nil {
		return nil, err
	}

	now := s.now()
	pending := &core.PendingSignature{
		Signature:  signature,
		Identifier: core.Identifier(address, message),
		CreatedAt:  now,
		ExpireAt:   now.Add(core.PhraseTTL),
	}
	if err := s.store.CreateSignature(ctx, pending); err != nil {
		s.logger.ErrorContext(ctx, "failed to store signature", "error", err)
		return nil, core.Storage(err)
	}
	return pending, nil
}
