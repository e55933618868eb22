package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/layer-3/fluxauth/core"
	"github.com/layer-3/fluxauth/ports"
	"go.etcd.io/bbolt"
)

var (
	phrasesBucket    = []byte("phrases")
	sessionsBucket   = []byte("sessions")
	signaturesBucket = []byte("signatures")
)

// BoltStore implements the Store interface on a local BBolt file. Each
// operation runs in its own transaction, so TakePhrase is atomic.
type BoltStore struct {
	db  *bbolt.DB
	now func() time.Time
}

var _ ports.Store = (*BoltStore)(nil)

// NewBoltStore wraps an open BBolt database and creates the buckets.
func NewBoltStore(db *bbolt.DB, opts ...Option) (*BoltStore, error) {
	o := buildOptions(opts)
	err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{phrasesBucket, sessionsBucket, signaturesBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("creating buckets: %w", err)
	}
	return &BoltStore{db: db, now: o.now}, nil
}

// NewBoltStoreFromFile opens a BBolt database at the given path.
func NewBoltStoreFromFile(path string, opts ...Option) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	s, err := NewBoltStore(db, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying BBolt database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) put(bucket []byte, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), data)
	})
}

func (s *BoltStore) CreatePhrase(ctx context.Context, phrase *core.LoginPhrase) error {
	if err := s.put(phrasesBucket, phrase.Phrase, phrase); err != nil {
		return fmt.Errorf("failed to store phrase: %w", err)
	}
	return nil
}

func (s *BoltStore) GetPhrase(ctx context.Context, phrase string) (*core.LoginPhrase, error) {
	var p core.LoginPhrase
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(phrasesBucket).Get([]byte(phrase))
		if data == nil {
			return core.ErrNotFound
		}
		return json.Unmarshal(data, &p)
	})
	if err != nil {
		return nil, err
	}
	if p.Expired(s.now()) {
		return nil, core.ErrNotFound
	}
	return &p, nil
}

func (s *BoltStore) TakePhrase(ctx context.Context, phrase string) (*core.LoginPhrase, error) {
	var p core.LoginPhrase
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(phrasesBucket)
		data := b.Get([]byte(phrase))
		if data == nil {
			return core.ErrNotFound
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		return b.Delete([]byte(phrase))
	})
	if err != nil {
		return nil, err
	}
	if p.Expired(s.now()) {
		return nil, core.ErrNotFound
	}
	return &p, nil
}

func (s *BoltStore) ListPhrases(ctx context.Context) ([]core.LoginPhrase, error) {
	now := s.now()
	out := make([]core.LoginPhrase, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(phrasesBucket).ForEach(func(_, v []byte) error {
			var p core.LoginPhrase
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			if !p.Expired(now) {
				out = append(out, p)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list phrases: %w", err)
	}
	sortPhrases(out)
	return out, nil
}

func (s *BoltStore) CreateSession(ctx context.Context, session *core.Session) error {
	if err := s.put(sessionsBucket, session.Phrase, session); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (s *BoltStore) SessionByPhrase(ctx context.Context, phrase string) (*core.Session, error) {
	var session core.Session
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(sessionsBucket).Get([]byte(phrase))
		if data == nil {
			return core.ErrNotFound
		}
		return json.Unmarshal(data, &session)
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *BoltStore) SessionByCredentials(ctx context.Context, address, signature string) (*core.Session, error) {
	sessions, err := s.ListSessionsByAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		if sessions[i].Signature == signature {
			return &sessions[i], nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *BoltStore) ListSessions(ctx context.Context) ([]core.Session, error) {
	return s.scanSessions(func(core.Session) bool { return true })
}

func (s *BoltStore) ListSessionsByAddress(ctx context.Context, address string) ([]core.Session, error) {
	return s.scanSessions(func(session core.Session) bool { return session.Address == address })
}

func (s *BoltStore) scanSessions(keep func(core.Session) bool) ([]core.Session, error) {
	out := make([]core.Session, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(sessionsBucket).ForEach(func(_, v []byte) error {
			var session core.Session
			if err := json.Unmarshal(v, &session); err != nil {
				return err
			}
			if keep(session) {
				out = append(out, session)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	sortSessions(out)
	return out, nil
}

// deleteSessions removes every session matching the predicate, stopping after
// limit removals when limit is positive.
func (s *BoltStore) deleteSessions(match func(core.Session) bool, limit int) (int, error) {
	removed := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(sessionsBucket)
		var keys [][]byte
		err := b.ForEach(func(k, v []byte) error {
			if limit > 0 && len(keys) >= limit {
				return nil
			}
			var session core.Session
			if err := json.Unmarshal(v, &session); err != nil {
				return err
			}
			if match(session) {
				keys = append(keys, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete sessions: %w", err)
	}
	return removed, nil
}

func (s *BoltStore) DeleteSession(ctx context.Context, address, signature string) (bool, error) {
	n, err := s.deleteSessions(func(session core.Session) bool {
		return session.Address == address && session.Signature == signature
	}, 1)
	return n > 0, err
}

func (s *BoltStore) DeleteSessionByPhrase(ctx context.Context, phrase string) (bool, error) {
	found := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(sessionsBucket)
		if b.Get([]byte(phrase)) == nil {
			return nil
		}
		found = true
		return b.Delete([]byte(phrase))
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}
	return found, nil
}

func (s *BoltStore) DeleteSessionsByAddress(ctx context.Context, address string) (int, error) {
	return s.deleteSessions(func(session core.Session) bool { return session.Address == address }, 0)
}

func (s *BoltStore) DeleteAllSessions(ctx context.Context) (int, error) {
	return s.deleteSessions(func(core.Session) bool { return true }, 0)
}

func (s *BoltStore) CreateSignature(ctx context.Context, signature *core.PendingSignature) error {
	if err := s.put(signaturesBucket, signature.Identifier, signature); err != nil {
		return fmt.Errorf("failed to store signature: %w", err)
	}
	return nil
}

func (s *BoltStore) SignatureByIdentifier(ctx context.Context, identifier string) (*core.PendingSignature, error) {
	var sig core.PendingSignature
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(signaturesBucket).Get([]byte(identifier))
		if data == nil {
			return core.ErrNotFound
		}
		return json.Unmarshal(data, &sig)
	})
	if err != nil {
		return nil, err
	}
	if sig.Expired(s.now()) {
		return nil, core.ErrNotFound
	}
	return &sig, nil
}

// Sweep deletes expired phrases and pending signatures.
func (s *BoltStore) Sweep(ctx context.Context) (int, error) {
	now := s.now()
	removed := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		n, err := sweepBucket(tx.Bucket(phrasesBucket), func(v []byte) (bool, error) {
			var p core.LoginPhrase
			if err := json.Unmarshal(v, &p); err != nil {
				return false, err
			}
			return p.Expired(now), nil
		})
		if err != nil {
			return err
		}
		removed += n

		n, err = sweepBucket(tx.Bucket(signaturesBucket), func(v []byte) (bool, error) {
			var sig core.PendingSignature
			if err := json.Unmarshal(v, &sig); err != nil {
				return false, err
			}
			return sig.Expired(now), nil
		})
		removed += n
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to sweep: %w", err)
	}
	return removed, nil
}

func sweepBucket(b *bbolt.Bucket, expired func([]byte) (bool, error)) (int, error) {
	var keys [][]byte
	err := b.ForEach(func(k, v []byte) error {
		gone, err := expired(v)
		if err != nil {
			return err
		}
		if gone {
			keys = append(keys, append([]byte(nil), k...))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return 0, err
		}
	}
	return len(keys), nil
}
