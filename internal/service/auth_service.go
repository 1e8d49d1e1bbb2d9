package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/workforce-auth/internal/auth"
	"github.com/spec-kit/workforce-auth/internal/domain"
	"github.com/spec-kit/workforce-auth/internal/repository"
	apperrors "github.com/spec-kit/workforce-auth/pkg/util"
)

// IssuedToken is a freshly signed bearer token.
type IssuedToken struct {
	AccessToken string
	ExpiresAt   time.Time
}

// AuthService issues user and service tokens.
type AuthService struct {
	users         repository.UserRepository
	codec         *auth.TokenCodec
	serviceSecret string
	bcryptCost    int
	logger        *zap.Logger

	equalizerOnce sync.Once
	equalizer     string
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	UserRepo      repository.UserRepository
	Codec         *auth.TokenCodec
	ServiceSecret string
	BcryptCost    int
	Logger        *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:         deps.UserRepo,
		codec:         deps.Codec,
		serviceSecret: deps.ServiceSecret,
		bcryptCost:    deps.BcryptCost,
		logger:        logger,
	}
}

// LoginUser checks an email/password pair and issues a user token. Unknown
// emails and wrong passwords fail identically.
func (s *AuthService) LoginUser(ctx context.Context, email, password string) (*IssuedToken, error) {
	creds, err := s.users.GetCredentialsByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			_ = auth.ComparePassword(s.equalizerHash(), password)
			return nil, auth.ErrInvalidCredentials
		}
		return nil, apperrors.NewDependencyError("user directory", err)
	}

	if creds.PasswordHash == "" {
		_ = auth.ComparePassword(s.equalizerHash(), password)
		return nil, auth.ErrInvalidCredentials
	}
	if err := auth.ComparePassword(creds.PasswordHash, password); err != nil {
		return nil, err
	}

	token, exp, err := s.codec.Issue(domain.TokenKindUser, creds.Identity.ID, 0)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	s.logger.Info("user token issued", zap.String("subject_id", creds.Identity.ID))
	return &IssuedToken{AccessToken: token, ExpiresAt: exp}, nil
}

// equalizerHash is compared against when a login has no stored hash. It uses
// the configured cost so those failures take as long as a wrong password.
func (s *AuthService) equalizerHash() string {
	s.equalizerOnce.Do(func() {
		hash, err := auth.HashPassword("workforce-auth-equalizer", s.bcryptCost)
		if err != nil {
			s.logger.Warn("unable to build login equalizer hash", zap.Error(err))
			return
		}
		s.equalizer = hash
	})
	return s.equalizer
}

// IssueServiceToken exchanges the shared service secret for a service token.
func (s *AuthService) IssueServiceToken(secret string) (*IssuedToken, error) {
	if secret == "" || s.serviceSecret == "" ||
		subtle.ConstantTimeCompare([]byte(secret), []byte(s.serviceSecret)) != 1 {
		return nil, auth.ErrInvalidServiceCredential
	}

	token, exp, err := s.codec.Issue(domain.TokenKindService, s.serviceSecret, 0)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &IssuedToken{AccessToken: token, ExpiresAt: exp}, nil
}
