package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/workforce-auth/internal/domain"
	apperrors "github.com/spec-kit/workforce-auth/pkg/util"
)

// Header names shared by every service.
const (
	UserAuthHeader      = "Authorization"
	ServiceAuthHeader   = "X-Service-Auth"
	ServiceSecretHeader = "X-Service-Secret-Key"
)

const cacheWriteTimeout = 2 * time.Second

// UserDirectory resolves a subject id to the user's current attributes.
// Implementations return domain.ErrUserNotFound for unknown ids.
type UserDirectory interface {
	LookupByID(ctx context.Context, id string) (*domain.IdentitySnapshot, error)
}

// IdentityCache stores resolved identities for a bounded time. It never
// consults the directory itself.
type IdentityCache interface {
	Get(ctx context.Context, subjectID string) (*domain.IdentitySnapshot, bool, error)
	Put(ctx context.Context, subjectID string, snapshot *domain.IdentitySnapshot, ttl time.Duration) error
	Invalidate(ctx context.Context, subjectID string) error
}

// Identifier turns bearer headers into verified identities.
type Identifier struct {
	codec         *TokenCodec
	cache         IdentityCache
	directory     UserDirectory
	cacheTTL      time.Duration
	serviceSecret []byte
	logger        *zap.Logger
}

// IdentifierDeps bundles collaborators for NewIdentifier.
type IdentifierDeps struct {
	Codec         *TokenCodec
	Cache         IdentityCache
	Directory     UserDirectory
	CacheTTL      time.Duration
	ServiceSecret string
	Logger        *zap.Logger
}

// NewIdentifier constructs an Identifier.
func NewIdentifier(deps IdentifierDeps) *Identifier {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Identifier{
		codec:         deps.Codec,
		cache:         deps.Cache,
		directory:     deps.Directory,
		cacheTTL:      deps.CacheTTL,
		serviceSecret: []byte(deps.ServiceSecret),
		logger:        logger,
	}
}

// IdentifyUser verifies a user bearer header and resolves the caller, reading
// the cache first and populating it from the directory on a miss.
func (i *Identifier) IdentifyUser(ctx context.Context, header string) (*domain.IdentitySnapshot, error) {
	token, err := bearerToken(header)
	if err != nil {
		return nil, err
	}

	claims, err := i.codec.Verify(token, domain.TokenKindUser)
	if err != nil {
		return nil, err
	}

	subjectID, ok := canonicalSubject(claims.Subject)
	if !ok {
		return nil, ErrSubjectNotFound
	}

	cached, found, err := i.cache.Get(ctx, subjectID)
	if err != nil {
		return nil, apperrors.NewDependencyError("identity cache", err)
	}
	if found {
		return cached, nil
	}

	snapshot, err := i.directory.LookupByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, ErrSubjectNotFound
		}
		return nil, apperrors.NewDependencyError("user directory", err)
	}

	// The write is idempotent, so it may outlive a cancelled request.
	putCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheWriteTimeout)
	defer cancel()
	if err := i.cache.Put(putCtx, subjectID, snapshot, i.cacheTTL); err != nil {
		i.logger.Warn("identity cache write failed", zap.String("subject_id", subjectID), zap.Error(err))
	}

	return snapshot, nil
}

// IdentifyService verifies a service bearer header. The token subject must be
// the shared service secret.
func (i *Identifier) IdentifyService(header string) (bool, error) {
	token, err := bearerToken(header)
	if err != nil {
		return false, err
	}

	claims, err := i.codec.Verify(token, domain.TokenKindService)
	if err != nil {
		return false, err
	}

	if len(i.serviceSecret) == 0 || subtle.ConstantTimeCompare([]byte(claims.Subject), i.serviceSecret) != 1 {
		return false, ErrInvalidServiceCredential
	}
	return true, nil
}

// IdentifyAndAuthorize resolves the caller and checks it may act on target:
// the caller must be active, and either be the target or hold one of roles.
func (i *Identifier) IdentifyAndAuthorize(ctx context.Context, targetSubjectID, header string, roles []domain.Position) (bool, error) {
	identity, err := i.IdentifyUser(ctx, header)
	if err != nil {
		return false, err
	}

	policy := NewPolicy(WithRoles(roles...), RequireActive(), AllowSelf(""))
	if err := policy.authorizeUser(identity, targetSubjectID); err != nil {
		return false, err
	}
	return true, nil
}

// Refresh evicts the cached identity of subjectID. Callers that mutate a user
// must call it so authorization does not run on stale attributes. The id is
// keyed the same way IdentifyUser keys it, whatever its textual form.
func (i *Identifier) Refresh(ctx context.Context, subjectID string) error {
	if canonical, ok := canonicalSubject(subjectID); ok {
		subjectID = canonical
	}
	if err := i.cache.Invalidate(ctx, subjectID); err != nil {
		return apperrors.NewDependencyError("identity cache", fmt.Errorf("invalidate %s: %w", subjectID, err))
	}
	return nil
}

// canonicalSubject returns the lowercase hyphenated form of a uuid subject.
func canonicalSubject(subject string) (string, bool) {
	id, err := uuid.Parse(subject)
	if err != nil {
		return "", false
	}
	return id.String(), true
}

func bearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrNoCredential
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrMalformedHeader
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", ErrMalformedHeader
	}
	return token, nil
}
