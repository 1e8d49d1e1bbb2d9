package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/workforce-auth/internal/auth"
	"github.com/spec-kit/workforce-auth/internal/domain"
	"github.com/spec-kit/workforce-auth/internal/events"
	"github.com/spec-kit/workforce-auth/internal/repository"
	apperrors "github.com/spec-kit/workforce-auth/pkg/util"
)

// UserService exposes user reads and the status transitions that affect
// authorization.
type UserService struct {
	users      repository.UserRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewUserService builds the service.
func NewUserService(users repository.UserRepository, dispatcher events.Dispatcher, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: users, dispatcher: dispatcher, logger: logger}
}

// GetUser returns the current snapshot of id.
func (s *UserService) GetUser(ctx context.Context, id string) (*domain.IdentitySnapshot, error) {
	id, err := parseUserID(id)
	if err != nil {
		return nil, err
	}
	user, err := s.users.LookupByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(id, err)
	}
	return user, nil
}

// ChangeStatus moves a user to status and announces the change so cached
// identities are evicted. Admins and the CEO cannot be fired.
func (s *UserService) ChangeStatus(ctx context.Context, actor *auth.Principal, id string, status domain.UserStatus) (*domain.IdentitySnapshot, error) {
	if !status.Valid() {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": status})
	}
	id, err := parseUserID(id)
	if err != nil {
		return nil, err
	}

	current, err := s.users.LookupByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(id, err)
	}

	if status == domain.UserStatusFired {
		if current.Position == domain.PositionAdmin || current.Position == domain.PositionCEO {
			return nil, apperrors.NewForbidden("CEO and admins can't be fired")
		}
		if current.Status == domain.UserStatusFired {
			return nil, apperrors.NewConflict("user already fired", map[string]any{"user_id": id})
		}
	}

	updated, err := s.users.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, mapLookupError(id, err)
	}

	event := events.NewEvent(events.EventIdentityChanged, updated.ID, actorOf(actor), events.IdentityChangedPayload{
		OldStatus: current.Status,
		NewStatus: updated.Status,
	})
	if s.dispatcher != nil {
		if err := s.dispatcher.Publish(ctx, event); err != nil {
			// The write is committed; the cached identity expires on its own ttl.
			s.logger.Error("identity change not propagated",
				zap.String("event_id", event.ID),
				zap.String("subject_id", id),
				zap.Error(err))
		}
	}
	return updated, nil
}

func actorOf(p *auth.Principal) events.Actor {
	if p == nil {
		return events.Actor{}
	}
	actor := events.Actor{Service: p.IsService()}
	if p.Identity != nil {
		id := p.Identity.ID
		actor.UserID = &id
	}
	return actor
}

// parseUserID rejects ids that are not uuids before they reach the directory
// and returns the canonical form used for cache keys.
func parseUserID(id string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", apperrors.NewNotFound("user", map[string]any{"user_id": id})
	}
	return parsed.String(), nil
}

func mapLookupError(id string, err error) error {
	if errors.Is(err, domain.ErrUserNotFound) {
		return apperrors.NewNotFound("user", map[string]any{"user_id": id})
	}
	return apperrors.NewDependencyError("user directory", err)
}
