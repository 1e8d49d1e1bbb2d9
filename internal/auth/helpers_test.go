package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/workforce-auth/internal/config"
	"github.com/spec-kit/workforce-auth/internal/domain"
)

const (
	testServiceSecret = "services-common-secret"
	callerID          = "5b0d7c4e-8a4a-4b57-9c1e-1f2d3c4b5a69"
	otherID           = "9e3f0a21-6c77-4d0b-8f35-0b6a7e2c1d44"
)

var baseTime = time.Date(2026, time.March, 2, 9, 30, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock { return &testClock{now: baseTime} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		UserJWTSecret:           "user-secret",
		ServiceJWTSecret:        "service-secret",
		ServicesCommonSecret:    testServiceSecret,
		Algorithm:               "HS256",
		UserTokenTTLMinutes:     60 * 24 * 30,
		ServiceTokenTTLMinutes:  60 * 24 * 180,
		IdentityCacheTTLSeconds: 3600,
		BcryptCost:              4,
	}
}

func newTestCodec(t *testing.T, clock *testClock) *TokenCodec {
	t.Helper()
	codec, err := NewTokenCodec(testAuthConfig(), WithClock(clock.Now))
	require.NoError(t, err)
	return codec
}

type directoryStub struct {
	mu    sync.Mutex
	calls int
	users map[string]*domain.IdentitySnapshot
	err   error
}

func (d *directoryStub) LookupByID(_ context.Context, id string) (*domain.IdentitySnapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	user, ok := d.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (d *directoryStub) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type cacheStub struct {
	mu          sync.Mutex
	entries     map[string]domain.IdentitySnapshot
	gets        int
	puts        int
	invalidated []string
	getErr      error
	putErr      error
	lastTTL     time.Duration
}

func newCacheStub() *cacheStub {
	return &cacheStub{entries: make(map[string]domain.IdentitySnapshot)}
}

func (c *cacheStub) Get(_ context.Context, id string) (*domain.IdentitySnapshot, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	snap, ok := c.entries[id]
	if !ok {
		return nil, false, nil
	}
	return &snap, true, nil
}

func (c *cacheStub) Put(_ context.Context, id string, snap *domain.IdentitySnapshot, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	c.lastTTL = ttl
	if c.putErr != nil {
		return c.putErr
	}
	c.entries[id] = *snap
	return nil
}

func (c *cacheStub) Invalidate(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, id)
	delete(c.entries, id)
	return nil
}

func (c *cacheStub) counts() (gets, puts int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gets, c.puts
}

var errConnRefused = errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")

func snapshot(id string, position domain.Position, status domain.UserStatus) *domain.IdentitySnapshot {
	team := int64(7)
	return &domain.IdentitySnapshot{
		ID:          id,
		Email:       string(position) + "@example.com",
		DisplayName: "Test " + string(position),
		Status:      status,
		Position:    position,
		TeamID:      &team,
	}
}

type fixture struct {
	clock      *testClock
	codec      *TokenCodec
	cache      *cacheStub
	directory  *directoryStub
	identifier *Identifier
	guard      *AccessGuard
}

func newFixture(t *testing.T, users ...*domain.IdentitySnapshot) *fixture {
	t.Helper()
	clock := newTestClock()
	codec := newTestCodec(t, clock)
	cache := newCacheStub()
	directory := &directoryStub{users: make(map[string]*domain.IdentitySnapshot)}
	for _, u := range users {
		directory.users[u.ID] = u
	}
	identifier := NewIdentifier(IdentifierDeps{
		Codec:         codec,
		Cache:         cache,
		Directory:     directory,
		CacheTTL:      time.Hour,
		ServiceSecret: testServiceSecret,
	})
	return &fixture{
		clock:      clock,
		codec:      codec,
		cache:      cache,
		directory:  directory,
		identifier: identifier,
		guard:      NewAccessGuard(identifier, nil),
	}
}

func (f *fixture) userHeader(t *testing.T, subject string) string {
	t.Helper()
	token, _, err := f.codec.Issue(domain.TokenKindUser, subject, 0)
	require.NoError(t, err)
	return "Bearer " + token
}

func (f *fixture) serviceHeader(t *testing.T, subject string) string {
	t.Helper()
	token, _, err := f.codec.Issue(domain.TokenKindService, subject, 0)
	require.NoError(t, err)
	return "Bearer " + token
}
