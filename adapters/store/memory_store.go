package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/layer-3/fluxauth/core"
	"github.com/layer-3/fluxauth/ports"
)

// MemoryStore is an in-memory implementation of the Store interface.
// Expired records are hidden on read and dropped by Sweep.
type MemoryStore struct {
	phrases    map[string]core.LoginPhrase
	sessions   map[string]core.Session // keyed by phrase
	signatures map[string]core.PendingSignature
	now        func() time.Time
	mu         sync.RWMutex
}

var _ ports.Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory store
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := buildOptions(opts)
	return &MemoryStore{
		phrases:    make(map[string]core.LoginPhrase),
		sessions:   make(map[string]core.Session),
		signatures: make(map[string]core.PendingSignature),
		now:        o.now,
	}
}

func (s *MemoryStore) CreatePhrase(ctx context.Context, phrase *core.LoginPhrase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.phrases[phrase.Phrase] = *phrase
	return nil
}

func (s *MemoryStore) GetPhrase(ctx context.Context, phrase string) (*core.LoginPhrase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.phrases[phrase]
	if !ok || p.Expired(s.now()) {
		return nil, core.ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) TakePhrase(ctx context.Context, phrase string) (*core.LoginPhrase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.phrases[phrase]
	if !ok {
		return nil, core.ErrNotFound
	}
	delete(s.phrases, phrase)
	if p.Expired(s.now()) {
		return nil, core.ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) ListPhrases(ctx context.Context) ([]core.LoginPhrase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	out := make([]core.LoginPhrase, 0, len(s.phrases))
	for _, p := range s.phrases {
		if !p.Expired(now) {
			out = append(out, p)
		}
	}
	sortPhrases(out)
	return out, nil
}

func (s *MemoryStore) CreateSession(ctx context.Context, session *core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.Phrase] = *session
	return nil
}

func (s *MemoryStore) SessionByPhrase(ctx context.Context, phrase string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[phrase]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &session, nil
}

func (s *MemoryStore) SessionByCredentials(ctx context.Context, address, signature string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, session := range s.sessions {
		if session.Address == address && session.Signature == signature {
			return &session, nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *MemoryStore) ListSessions(ctx context.Context) ([]core.Session, error) {
	return s.filterSessions(func(core.Session) bool { return true }), nil
}

func (s *MemoryStore) ListSessionsByAddress(ctx context.Context, address string) ([]core.Session, error) {
	return s.filterSessions(func(session core.Session) bool { return session.Address == address }), nil
}

func (s *MemoryStore) filterSessions(keep func(core.Session) bool) []core.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.Session, 0)
	for _, session := range s.sessions {
		if keep(session) {
			out = append(out, session)
		}
	}
	sortSessions(out)
	return out
}

func (s *MemoryStore) DeleteSession(ctx context.Context, address, signature string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for phrase, session := range s.sessions {
		if session.Address == address && session.Signature == signature {
			delete(s.sessions, phrase)
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) DeleteSessionByPhrase(ctx context.Context, phrase string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[phrase]; !ok {
		return false, nil
	}
	delete(s.sessions, phrase)
	return true, nil
}

func (s *MemoryStore) DeleteSessionsByAddress(ctx context.Context, address string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for phrase, session := range s.sessions {
		if session.Address == address {
			delete(s.sessions, phrase)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) DeleteAllSessions(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := len(s.sessions)
	s.sessions = make(map[string]core.Session)
	return removed, nil
}

func (s *MemoryStore) CreateSignature(ctx context.Context, signature *core.PendingSignature) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.signatures[signature.Identifier] = *signature
	return nil
}

func (s *MemoryStore) SignatureByIdentifier(ctx context.Context, identifier string) (*core.PendingSignature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sig, ok := s.signatures[identifier]
	if !ok || sig.Expired(s.now()) {
		return nil, core.ErrNotFound
	}
	return &sig, nil
}

// Sweep drops expired phrases and pending signatures and returns how many
// records were removed.
func (s *MemoryStore) Sweep(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for k, p := range s.phrases {
		if p.Expired(now) {
			delete(s.phrases, k)
			removed++
		}
	}
	for k, sig := range s.signatures {
		if sig.Expired(now) {
			delete(s.signatures, k)
			removed++
		}
	}
	return removed, nil
}

// Close is a no-op for the memory store
func (s *MemoryStore) Close() error {
	return nil
}

func sortSessions(sessions []core.Session) {
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].Phrase < sessions[j].Phrase
		}
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
}

func sortPhrases(phrases []core.LoginPhrase) {
	sort.Slice(phrases, func(i, j int) bool {
		if phrases[i].CreatedAt.Equal(phrases[j].CreatedAt) {
			return phrases[i].Phrase < phrases[j].Phrase
		}
		return phrases[i].CreatedAt.Before(phrases[j].CreatedAt)
	})
}
