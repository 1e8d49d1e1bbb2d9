package servicetoken

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	jwt "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/workforce-auth/internal/auth"
)

const (
	defaultInterval  = 60 * time.Second
	defaultThreshold = 60 * time.Second
)

// serviceToken is the value held in the manager's slot. A zero expiresAt
// means the token's expiry could not be decoded.
type serviceToken struct {
	raw       string
	expiresAt time.Time
}

// Manager keeps a valid service token for outbound calls and reissues it
// shortly before it expires.
type Manager struct {
	issuer    Issuer
	logger    *zap.Logger
	interval  time.Duration
	threshold time.Duration
	now       func() time.Time

	current atomic.Pointer[serviceToken]
}

// Option customizes a Manager.
type Option func(*Manager)

// WithInterval sets how often the stored token is inspected.
func WithInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithThreshold sets the remaining lifetime below which the token is reissued.
func WithThreshold(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.threshold = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager builds a manager around issuer.
func NewManager(issuer Issuer, logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		issuer:    issuer,
		logger:    logger.Named("servicetoken"),
		interval:  defaultInterval,
		threshold: defaultThreshold,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run acquires a token immediately and then checks it every interval until
// ctx is done. Failures are logged and retried on the next tick.
func (m *Manager) Run(ctx context.Context) error {
	m.check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

// Start runs the manager in its own goroutine. The returned channel is closed
// once Run has returned.
func (m *Manager) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Run(ctx)
	}()
	return done
}

// Token returns the current service token, or "" before the first issuance.
func (m *Manager) Token() string {
	if tok := m.current.Load(); tok != nil {
		return tok.raw
	}
	return ""
}

// ExpiresAt returns the decoded expiry of the current token.
func (m *Manager) ExpiresAt() (time.Time, bool) {
	tok := m.current.Load()
	if tok == nil || tok.expiresAt.IsZero() {
		return time.Time{}, false
	}
	return tok.expiresAt, true
}

// AuthorizationHeader returns the value for the service auth header.
func (m *Manager) AuthorizationHeader() string {
	if tok := m.Token(); tok != "" {
		return "Bearer " + tok
	}
	return ""
}

// Attach adds the service auth header to an outbound request.
func (m *Manager) Attach(agent *fiber.Agent) *fiber.Agent {
	if header := m.AuthorizationHeader(); header != "" {
		agent.Set(auth.ServiceAuthHeader, header)
	}
	return agent
}

func (m *Manager) check(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("service token refresh panicked", zap.Any("panic", r))
		}
	}()

	refreshed, err := m.refreshIfNeeded(ctx)
	switch {
	case err != nil:
		if errors.Is(err, context.Canceled) {
			return
		}
		m.logger.Error("service token refresh failed", zap.Error(err))
	case refreshed:
		exp, _ := m.ExpiresAt()
		m.logger.Info("service token refreshed", zap.Time("expires_at", exp))
	}
}

func (m *Manager) refreshIfNeeded(ctx context.Context) (bool, error) {
	if !m.needsRefresh(m.current.Load()) {
		return false, nil
	}

	raw, err := m.issuer.Issue(ctx)
	if err != nil {
		return false, err
	}
	if raw == "" {
		return false, errors.New("issuer returned an empty token")
	}
	m.store(raw)
	return true, nil
}

func (m *Manager) needsRefresh(tok *serviceToken) bool {
	if tok == nil || tok.expiresAt.IsZero() {
		return true
	}
	return tok.expiresAt.Sub(m.now()) < m.threshold
}

func (m *Manager) store(raw string) {
	tok := &serviceToken{raw: raw}
	exp, err := decodeExpiry(raw)
	if err != nil {
		m.logger.Warn("unable to decode service token expiry", zap.Error(err))
	} else {
		tok.expiresAt = exp
	}
	m.current.Store(tok)
}

// decodeExpiry reads exp without verifying the signature; the manager does
// not hold the service signing secret in every deployment.
func decodeExpiry(raw string) (time.Time, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, errors.New("token has no exp claim")
	}
	return claims.ExpiresAt.Time.UTC(), nil
}
