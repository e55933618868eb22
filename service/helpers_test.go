package service

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/fluxauth/adapters/store"
	"github.com/layer-3/fluxauth/adapters/verifier"
	"github.com/layer-3/fluxauth/core"
	"github.com/layer-3/fluxauth/ports"
	"github.com/stretchr/testify/require"
)

var errBroken = errors.New("connection refused")

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type account struct {
	key     *ecdsa.PrivateKey
	address string
}

func newAccount(t *testing.T) account {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return account{key: key, address: verifier.AddressFromPubKey(&key.PublicKey, true)}
}

func (a account) sign(t *testing.T, message string) string {
	t.Helper()
	sig, err := verifier.Sign(message, a.key, true)
	require.NoError(t, err)
	return sig
}

func (a account) creds(t *testing.T, phrase string) core.Credentials {
	return core.Credentials{Address: a.address, Signature: a.sign(t, phrase), Phrase: phrase}
}

// countingVerifier records how many times Verify ran.
type countingVerifier struct {
	calls atomic.Int32
	inner ports.Verifier
}

func (v *countingVerifier) Verify(message, address, signature string) (bool, error) {
	v.calls.Add(1)
	return v.inner.Verify(message, address, signature)
}

// faultyStore wraps a MemoryStore and fails selected operations.
type faultyStore struct {
	*store.MemoryStore
	reads     atomic.Int32
	getErr    error
	takeErr   error
	createErr error
	lookupErr error
	sigErr    error
}

func (s *faultyStore) GetPhrase(ctx context.Context, phrase string) (*core.LoginPhrase, error) {
	s.reads.Add(1)
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.MemoryStore.GetPhrase(ctx, phrase)
}

func (s *faultyStore) TakePhrase(ctx context.Context, phrase string) (*core.LoginPhrase, error) {
	if s.takeErr != nil {
		return nil, s.takeErr
	}
	return s.MemoryStore.TakePhrase(ctx, phrase)
}

func (s *faultyStore) CreatePhrase(ctx context.Context, phrase *core.LoginPhrase) error {
	if s.createErr != nil {
		return s.createErr
	}
	return s.MemoryStore.CreatePhrase(ctx, phrase)
}

func (s *faultyStore) SessionByPhrase(ctx context.Context, phrase string) (*core.Session, error) {
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	return s.MemoryStore.SessionByPhrase(ctx, phrase)
}

func (s *faultyStore) SignatureByIdentifier(ctx context.Context, identifier string) (*core.PendingSignature, error) {
	if s.sigErr != nil {
		return nil, s.sigErr
	}
	return s.MemoryStore.SignatureByIdentifier(ctx, identifier)
}

type failingPublisher struct{}

func (failingPublisher) PublishLogin(context.Context, *core.Session, core.Tier) error {
	return errBroken
}

func (failingPublisher) PublishLogout(context.Context, string, string, ports.LogoutScope) error {
	return errBroken
}

type fixture struct {
	clock      *testClock
	store      *faultyStore
	verifier   *countingVerifier
	privileges *PrivilegeResolver
	issuer     *Issuer
	login      *LoginService
	sessions   *SessionManager
	signatures *SignatureService
	waiter     *Waiter

	admin account
	team  account
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		clock:    newTestClock(),
		verifier: &countingVerifier{inner: verifier.NewMessageVerifier()},
		admin:    newAccount(t),
		team:     newAccount(t),
	}
	f.store = &faultyStore{MemoryStore: store.NewMemoryStore(store.WithClock(f.clock.Now))}
	f.privileges = NewPrivilegeResolver(f.team.address, f.admin.address)

	opts = append([]Option{WithClock(f.clock.Now)}, opts...)
	f.issuer = NewIssuer(f.store, nil, opts...)
	f.login = NewLoginService(f.store, f.store, f.verifier, f.privileges, opts...)
	f.sessions = NewSessionManager(f.store, f.store, f.verifier, f.privileges, opts...)
	f.signatures = NewSignatureService(f.store, opts...)
	f.waiter = NewWaiter(f.store, f.store, f.store, f.privileges, 5*time.Millisecond, opts...)
	return f
}

// loginAs issues a phrase, signs it with a and logs in.
func (f *fixture) loginAs(t *testing.T, a account) core.Credentials {
	t.Helper()
	ctx := context.Background()
	phrase, err := f.issuer.IssueEmergencyPhrase(ctx)
	require.NoError(t, err)
	creds := a.creds(t, phrase.Phrase)
	_, err = f.login.VerifyLogin(ctx, creds.Address, creds.Phrase, creds.Signature)
	require.NoError(t, err)
	return creds
}
