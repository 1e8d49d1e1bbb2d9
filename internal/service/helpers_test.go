package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/workforce-auth/internal/auth"
	"github.com/spec-kit/workforce-auth/internal/config"
	"github.com/spec-kit/workforce-auth/internal/domain"
)

const (
	commonSecret = "services-common-secret"
	managerID    = "5b0d7c4e-8a4a-4b57-9c1e-1f2d3c4b5a69"
	developerID  = "9e3f0a21-6c77-4d0b-8f35-0b6a7e2c1d44"
	ceoID        = "0c6f9d8e-2b3a-4c5d-8e7f-6a5b4c3d2e1f"
)

type userRepoStub struct {
	mu      sync.Mutex
	users   map[string]*domain.IdentitySnapshot
	hashes  map[string]string
	err     error
	updates int
}

func (r *userRepoStub) LookupByID(_ context.Context, id string) (*domain.IdentitySnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *userRepoStub) GetCredentialsByEmail(_ context.Context, email string) (*domain.UserCredentials, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.users {
		if u.Email == email {
			return &domain.UserCredentials{Identity: *u, PasswordHash: r.hashes[u.ID], HiredAt: time.Now()}, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *userRepoStub) UpdateStatus(_ context.Context, id string, status domain.UserStatus) (*domain.IdentitySnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates++
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	updated := *u
	updated.Status = status
	r.users[id] = &updated
	copied := updated
	return &copied, nil
}

func newRepo(t *testing.T) *userRepoStub {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	require.NoError(t, err)
	return &userRepoStub{
		users: map[string]*domain.IdentitySnapshot{
			managerID:   {ID: managerID, Email: "mira@example.com", Status: domain.UserStatusActive, Position: domain.PositionManager},
			developerID: {ID: developerID, Email: "dev@example.com", Status: domain.UserStatusActive, Position: domain.PositionDeveloper},
			ceoID:       {ID: ceoID, Email: "ceo@example.com", Status: domain.UserStatusActive, Position: domain.PositionCEO},
		},
		hashes: map[string]string{managerID: string(hash)},
	}
}

func newCodec(t *testing.T) *auth.TokenCodec {
	t.Helper()
	codec, err := auth.NewTokenCodec(config.AuthConfig{
		UserJWTSecret:          "user-secret",
		ServiceJWTSecret:       "service-secret",
		ServicesCommonSecret:   commonSecret,
		Algorithm:              "HS256",
		UserTokenTTLMinutes:    60 * 24 * 30,
		ServiceTokenTTLMinutes: 60 * 24 * 180,
	})
	require.NoError(t, err)
	return codec
}
