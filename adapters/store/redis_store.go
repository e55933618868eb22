package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/layer-3/fluxauth/core"
	"github.com/layer-3/fluxauth/ports"
	"github.com/redis/go-redis/v9"
)

// RedisStore is a Redis implementation of the Store interface. Phrases and
// pending signatures carry a key TTL; sessions live until deleted and are
// indexed by two sets: all sessions and sessions per address.
type RedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

var _ ports.Store = (*RedisStore)(nil)

// NewRedisStore creates a new Redis store
func NewRedisStore(client *redis.Client, opts ...Option) *RedisStore {
	o := buildOptions(opts)
	return &RedisStore{
		client: client,
		prefix: o.prefix,
		now:    o.now,
	}
}

func (s *RedisStore) phraseKey(phrase string) string  { return s.prefix + "phrase:" + phrase }
func (s *RedisStore) sessionKey(phrase string) string { return s.prefix + "session:" + phrase }
func (s *RedisStore) sessionIndexKey() string         { return s.prefix + "sessions" }
func (s *RedisStore) addressIndexKey(address string) string {
	return s.prefix + "sessions:addr:" + address
}
func (s *RedisStore) signatureKey(identifier string) string {
	return s.prefix + "signature:" + identifier
}

func (s *RedisStore) CreatePhrase(ctx context.Context, phrase *core.LoginPhrase) error {
	ttl := phrase.ExpireAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(phrase)
	if err != nil {
		return fmt.Errorf("failed to marshal phrase: %w", err)
	}
	if err := s.client.Set(ctx, s.phraseKey(phrase.Phrase), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store phrase: %w", err)
	}
	return nil
}

func (s *RedisStore) GetPhrase(ctx context.Context, phrase string) (*core.LoginPhrase, error) {
	data, err := s.client.Get(ctx, s.phraseKey(phrase)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get phrase: %w", err)
	}
	return s.decodePhrase(data)
}

func (s *RedisStore) TakePhrase(ctx context.Context, phrase string) (*core.LoginPhrase, error) {
	data, err := s.client.GetDel(ctx, s.phraseKey(phrase)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to take phrase: %w", err)
	}
	return s.decodePhrase(data)
}

func (s *RedisStore) decodePhrase(data []byte) (*core.LoginPhrase, error) {
	var p core.LoginPhrase
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode phrase: %w", err)
	}
	if p.Expired(s.now()) {
		return nil, core.ErrNotFound
	}
	return &p, nil
}

func (s *RedisStore) ListPhrases(ctx context.Context) ([]core.LoginPhrase, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.phraseKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan phrases: %w", err)
	}

	out := make([]core.LoginPhrase, 0, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load phrases: %w", err)
	}
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue // expired between SCAN and MGET
		}
		p, err := s.decodePhrase([]byte(str))
		if errors.Is(err, core.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	sortPhrases(out)
	return out, nil
}

func (s *RedisStore) CreateSession(ctx context.Context, session *core.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.sessionKey(session.Phrase), data, 0)
		pipe.SAdd(ctx, s.sessionIndexKey(), session.Phrase)
		pipe.SAdd(ctx, s.addressIndexKey(session.Address), session.Phrase)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (s *RedisStore) SessionByPhrase(ctx context.Context, phrase string) (*core.Session, error) {
	data, err := s.client.Get(ctx, s.sessionKey(phrase)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	var session core.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &session, nil
}

func (s *RedisStore) SessionByCredentials(ctx context.Context, address, signature string) (*core.Session, error) {
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

func (s *RedisStore) ListSessions(ctx context.Context) ([]core.Session, error) {
	return s.sessionsInSet(ctx, s.sessionIndexKey())
}

func (s *RedisStore) ListSessionsByAddress(ctx context.Context, address string) ([]core.Session, error) {
	return s.sessionsInSet(ctx, s.addressIndexKey(address))
}

func (s *RedisStore) sessionsInSet(ctx context.Context, setKey string) ([]core.Session, error) {
	phrases, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	out := make([]core.Session, 0, len(phrases))
	if len(phrases) == 0 {
		return out, nil
	}

	keys := make([]string, len(phrases))
	for i, p := range phrases {
		keys[i] = s.sessionKey(p)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var session core.Session
		if err := json.Unmarshal([]byte(str), &session); err != nil {
			return nil, fmt.Errorf("failed to decode session: %w", err)
		}
		out = append(out, session)
	}
	sortSessions(out)
	return out, nil
}

func (s *RedisStore) DeleteSession(ctx context.Context, address, signature string) (bool, error) {
	session, err := s.SessionByCredentials(ctx, address, signature)
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return s.DeleteSessionByPhrase(ctx, session.Phrase)
}

func (s *RedisStore) DeleteSessionByPhrase(ctx context.Context, phrase string) (bool, error) {
	data, err := s.client.GetDel(ctx, s.sessionKey(phrase)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete session: %w", err)
	}
	var session core.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return true, fmt.Errorf("failed to decode session: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, s.sessionIndexKey(), phrase)
		pipe.SRem(ctx, s.addressIndexKey(session.Address), phrase)
		return nil
	})
	if err != nil {
		return true, fmt.Errorf("failed to update session index: %w", err)
	}
	return true, nil
}

func (s *RedisStore) DeleteSessionsByAddress(ctx context.Context, address string) (int, error) {
	phrases, err := s.client.SMembers(ctx, s.addressIndexKey(address)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(phrases) == 0 {
		return 0, nil
	}

	var del *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		keys := make([]string, len(phrases))
		members := make([]interface{}, len(phrases))
		for i, p := range phrases {
			keys[i] = s.sessionKey(p)
			members[i] = p
		}
		del = pipe.Del(ctx, keys...)
		pipe.SRem(ctx, s.sessionIndexKey(), members...)
		pipe.Del(ctx, s.addressIndexKey(address))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete sessions: %w", err)
	}
	return int(del.Val()), nil
}

func (s *RedisStore) DeleteAllSessions(ctx context.Context) (int, error) {
	sessions, err := s.ListSessions(ctx)
	if err != nil {
		return 0, err
	}
	if len(sessions) == 0 {
		return 0, s.client.Del(ctx, s.sessionIndexKey()).Err()
	}

	var del *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		keys := make([]string, 0, len(sessions))
		addressKeys := make(map[string]struct{})
		for _, session := range sessions {
			keys = append(keys, s.sessionKey(session.Phrase))
			addressKeys[s.addressIndexKey(session.Address)] = struct{}{}
		}
		del = pipe.Del(ctx, keys...)
		for k := range addressKeys {
			pipe.Del(ctx, k)
		}
		pipe.Del(ctx, s.sessionIndexKey())
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete sessions: %w", err)
	}
	return int(del.Val()), nil
}

func (s *RedisStore) CreateSignature(ctx context.Context, signature *core.PendingSignature) error {
	ttl := signature.ExpireAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(signature)
	if err != nil {
		return fmt.Errorf("failed to marshal signature: %w", err)
	}
	if err := s.client.Set(ctx, s.signatureKey(signature.Identifier), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store signature: %w", err)
	}
	return nil
}

func (s *RedisStore) SignatureByIdentifier(ctx context.Context, identifier string) (*core.PendingSignature, error) {
	data, err := s.client.Get(ctx, s.signatureKey(identifier)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get signature: %w", err)
	}
	var sig core.PendingSignature
	if err := json.Unmarshal(data, &sig); err != nil {
		return nil, fmt.Errorf("failed to decode signature: %w", err)
	}
	if sig.Expired(s.now()) {
		return nil, core.ErrNotFound
	}
	return &sig, nil
}

// Client returns the Redis client so it can be shared with the event publisher
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
