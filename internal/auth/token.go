package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/workforce-auth/internal/config"
	"github.com/spec-kit/workforce-auth/internal/domain"
)

// TokenCodec issues and verifies HMAC-signed bearer tokens. User and service
// tokens are signed with independent secrets and never cross-validated.
type TokenCodec struct {
	method  *jwt.SigningMethodHMAC
	secrets map[domain.TokenKind][]byte
	ttls    map[domain.TokenKind]time.Duration
	now     func() time.Time
}

// CodecOption customizes a TokenCodec.
type CodecOption func(*TokenCodec)

// WithClock overrides the time source used for issuing and expiry checks.
func WithClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewTokenCodec builds a codec from auth configuration.
func NewTokenCodec(cfg config.AuthConfig, opts ...CodecOption) (*TokenCodec, error) {
	method, ok := jwt.GetSigningMethod(cfg.Algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.Algorithm)
	}
	if cfg.UserJWTSecret == "" || cfg.ServiceJWTSecret == "" {
		return nil, errors.New("token secrets must not be empty")
	}

	codec := &TokenCodec{
		method: method,
		secrets: map[domain.TokenKind][]byte{
			domain.TokenKindUser:    []byte(cfg.UserJWTSecret),
			domain.TokenKindService: []byte(cfg.ServiceJWTSecret),
		},
		ttls: map[domain.TokenKind]time.Duration{
			domain.TokenKindUser:    cfg.UserTokenTTL(),
			domain.TokenKindService: cfg.ServiceTokenTTL(),
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(codec)
	}
	return codec, nil
}

// Issue signs a token for subject. A non-positive ttl uses the kind's default.
func (c *TokenCodec) Issue(kind domain.TokenKind, subject string, ttl time.Duration) (string, time.Time, error) {
	secret, ok := c.secrets[kind]
	if !ok {
		return "", time.Time{}, fmt.Errorf("unknown token kind %q", kind)
	}
	if ttl <= 0 {
		ttl = c.ttls[kind]
	}

	expiresAt := c.now().UTC().Add(ttl).Truncate(time.Second)
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify checks the token against the secret of kind and returns its claims.
// Structure is checked first, then the signature, then expiry; a token whose
// expiry equals now is already expired.
func (c *TokenCodec) Verify(token string, kind domain.TokenKind) (domain.Claims, error) {
	secret, ok := c.secrets[kind]
	if !ok {
		return domain.Claims{}, fmt.Errorf("unknown token kind %q", kind)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)

	var registered jwt.RegisteredClaims
	_, err := parser.ParseWithClaims(token, &registered, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return domain.Claims{}, classifyJWTError(err)
	}
	if registered.Subject == "" {
		return domain.Claims{}, ErrMalformedToken
	}

	return domain.Claims{
		Subject:   registered.Subject,
		ExpiresAt: registered.ExpiresAt.Time.UTC(),
	}, nil
}

// DefaultTTL returns the configured lifetime for kind.
func (c *TokenCodec) DefaultTTL(kind domain.TokenKind) time.Duration {
	return c.ttls[kind]
}

func classifyJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformedToken
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return ErrMissingExpiry
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return ErrMalformedToken
	}
}
