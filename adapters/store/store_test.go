package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/layer-3/fluxauth/core"
	"github.com/layer-3/fluxauth/ports"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type backend struct {
	name string
	open func(t *testing.T, clock *fakeClock) ports.Store
}

func backends() []backend {
	return []backend{
		{name: "memory", open: func(t *testing.T, clock *fakeClock) ports.Store {
			return NewMemoryStore(WithClock(clock.Now))
		}},
		{name: "bolt", open: func(t *testing.T, clock *fakeClock) ports.Store {
			s, err := NewBoltStoreFromFile(filepath.Join(t.TempDir(), "auth.db"), WithClock(clock.Now))
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		}},
		{name: "redis", open: func(t *testing.T, clock *fakeClock) ports.Store {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			s := NewRedisStore(client, WithClock(clock.Now), WithPrefix("test:"))
			t.Cleanup(func() { _ = s.Close() })
			return s
		}},
	}
}

func newPhrase(t *testing.T, now time.Time) *core.LoginPhrase {
	t.Helper()
	p, err := core.NewLoginPhrase(now)
	require.NoError(t, err)
	return p
}

func TestStorePhraseLifecycle(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			clock := newFakeClock()
			s := b.open(t, clock)

			p := newPhrase(t, clock.Now())
			require.NoError(t, s.CreatePhrase(ctx, p))

			got, err := s.GetPhrase(ctx, p.Phrase)
			require.NoError(t, err)
			assert.Equal(t, p.Phrase, got.Phrase)
			assert.True(t, p.ExpireAt.Equal(got.ExpireAt))

			list, err := s.ListPhrases(ctx)
			require.NoError(t, err)
			require.Len(t, list, 1)
			assert.Equal(t, p.Phrase, list[0].Phrase)

			taken, err := s.TakePhrase(ctx, p.Phrase)
			require.NoError(t, err)
			assert.Equal(t, p.Phrase, taken.Phrase)

			_, err = s.TakePhrase(ctx, p.Phrase)
			assert.ErrorIs(t, err, core.ErrNotFound)
			_, err = s.GetPhrase(ctx, p.Phrase)
			assert.ErrorIs(t, err, core.ErrNotFound)
		})
	}
}

func TestStorePhraseExpiry(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			clock := newFakeClock()
			s := b.open(t, clock)

			p := newPhrase(t, clock.Now())
			require.NoError(t, s.CreatePhrase(ctx, p))

			clock.Advance(core.PhraseTTL)

			_, err := s.GetPhrase(ctx, p.Phrase)
			assert.ErrorIs(t, err, core.ErrNotFound)

			list, err := s.ListPhrases(ctx)
			require.NoError(t, err)
			assert.Empty(t, list)

			_, err = s.TakePhrase(ctx, p.Phrase)
			assert.ErrorIs(t, err, core.ErrNotFound)
		})
	}
}

func TestStoreTakePhraseIsSingleUse(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			clock := newFakeClock()
			s := b.open(t, clock)

			p := newPhrase(t, clock.Now())
			require.NoError(t, s.CreatePhrase(ctx, p))

			var wins atomic.Int32
			var wg sync.WaitGroup
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if _, err := s.TakePhrase(ctx, p.Phrase); err == nil {
						wins.Add(1)
					}
				}()
			}
			wg.Wait()

			assert.Equal(t, int32(1), wins.Load())
		})
	}
}

func TestStoreSessions(t *testing.T) {
	const (
		alice = "1AliceAddressxxxxxxxxxxxxxxx"
		bob   = "1BobAddressxxxxxxxxxxxxxxxxx"
	)

	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			clock := newFakeClock()
			s := b.open(t, clock)

			sessions := []*core.Session{
				{ID: "s1", Address: alice, Phrase: "phrase-a1", Signature: "sig-a1", CreatedAt: clock.Now()},
				{ID: "s2", Address: alice, Phrase: "phrase-a2", Signature: "sig-a2", CreatedAt: clock.Now().Add(time.Second)},
				{ID: "s3", Address: bob, Phrase: "phrase-b1", Signature: "sig-b1", CreatedAt: clock.Now().Add(2 * time.Second)},
			}
			for _, session := range sessions {
				require.NoError(t, s.CreateSession(ctx, session))
			}

			got, err := s.SessionByPhrase(ctx, "phrase-a2")
			require.NoError(t, err)
			assert.Equal(t, alice, got.Address)
			assert.Equal(t, "sig-a2", got.Signature)

			_, err = s.SessionByPhrase(ctx, "missing")
			assert.ErrorIs(t, err, core.ErrNotFound)

			got, err = s.SessionByCredentials(ctx, bob, "sig-b1")
			require.NoError(t, err)
			assert.Equal(t, "phrase-b1", got.Phrase)

			_, err = s.SessionByCredentials(ctx, bob, "sig-a1")
			assert.ErrorIs(t, err, core.ErrNotFound)

			all, err := s.ListSessions(ctx)
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, []string{"phrase-a1", "phrase-a2", "phrase-b1"}, phrasesOf(all))

			mine, err := s.ListSessionsByAddress(ctx, alice)
			require.NoError(t, err)
			assert.Equal(t, []string{"phrase-a1", "phrase-a2"}, phrasesOf(mine))

			ok, err := s.DeleteSession(ctx, alice, "sig-a1")
			require.NoError(t, err)
			assert.True(t, ok)
			ok, err = s.DeleteSession(ctx, alice, "sig-a1")
			require.NoError(t, err)
			assert.False(t, ok)

			ok, err = s.DeleteSessionByPhrase(ctx, "phrase-b1")
			require.NoError(t, err)
			assert.True(t, ok)
			ok, err = s.DeleteSessionByPhrase(ctx, "phrase-b1")
			require.NoError(t, err)
			assert.False(t, ok)

			n, err := s.DeleteSessionsByAddress(ctx, alice)
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			all, err = s.ListSessions(ctx)
			require.NoError(t, err)
			assert.Empty(t, all)

			n, err = s.DeleteAllSessions(ctx)
			require.NoError(t, err)
			assert.Equal(t, 0, n)

			for i := 0; i < 2; i++ {
				require.NoError(t, s.CreateSession(ctx, &core.Session{
					ID:        fmt.Sprintf("x%d", i),
					Address:   []string{alice, bob}[i],
					Phrase:    fmt.Sprintf("phrase-x%d", i),
					Signature: fmt.Sprintf("sig-x%d", i),
					CreatedAt: clock.Now(),
				}))
			}
			n, err = s.DeleteAllSessions(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			mine, err = s.ListSessionsByAddress(ctx, bob)
			require.NoError(t, err)
			assert.Empty(t, mine)
		})
	}
}

func TestStoreSignatures(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			clock := newFakeClock()
			s := b.open(t, clock)

			sig := &core.PendingSignature{
				Signature:  "H+sig",
				Identifier: "1Addressxxxxxxxxxxxxxxxxxxxx1234567890abc",
				CreatedAt:  clock.Now(),
				ExpireAt:   clock.Now().Add(core.PhraseTTL),
			}
			require.NoError(t, s.CreateSignature(ctx, sig))

			got, err := s.SignatureByIdentifier(ctx, sig.Identifier)
			require.NoError(t, err)
			assert.Equal(t, "H+sig", got.Signature)

			_, err = s.SignatureByIdentifier(ctx, "unknown")
			assert.ErrorIs(t, err, core.ErrNotFound)

			clock.Advance(core.PhraseTTL + time.Second)
			_, err = s.SignatureByIdentifier(ctx, sig.Identifier)
			assert.ErrorIs(t, err, core.ErrNotFound)
		})
	}
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()

	bolt, err := NewBoltStoreFromFile(filepath.Join(t.TempDir(), "sweep.db"), WithClock(clock.Now))
	require.NoError(t, err)
	defer bolt.Close()

	for _, s := range []interface {
		ports.Store
		Sweeper
	}{NewMemoryStore(WithClock(clock.Now)), bolt} {
		live := newPhrase(t, clock.Now())
		stale := newPhrase(t, clock.Now().Add(-core.PhraseTTL))
		require.NoError(t, s.CreatePhrase(ctx, live))
		require.NoError(t, s.CreatePhrase(ctx, stale))
		require.NoError(t, s.CreateSignature(ctx, &core.PendingSignature{
			Identifier: "old",
			CreatedAt:  clock.Now().Add(-time.Hour),
			ExpireAt:   clock.Now().Add(-time.Minute),
		}))

		n, err := s.Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		_, err = s.GetPhrase(ctx, live.Phrase)
		assert.NoError(t, err)
	}
}

func phrasesOf(sessions []core.Session) []string {
	out := make([]string, len(sessions))
	for i, s := range sessions {
		out[i] = s.Phrase
	}
	return out
}
