package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/workforce-auth/internal/events"
)

// IdentityRefresher evicts a cached identity.
type IdentityRefresher interface {
	Refresh(ctx context.Context, subjectID string) error
}

// StartIdentityInvalidation subscribes to identity changes and drops the
// affected subject from the identity cache, so the next request resolves
// fresh attributes from the directory.
func StartIdentityInvalidation(dispatcher events.Dispatcher, refresher IdentityRefresher, logger *zap.Logger) {
	if dispatcher == nil || refresher == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	dispatcher.Subscribe(events.EventIdentityChanged, func(ctx context.Context, event events.Event) error {
		if err := refresher.Refresh(ctx, event.SubjectID); err != nil {
			logger.Error("identity cache invalidation failed",
				zap.String("event_id", event.ID),
				zap.String("subject_id", event.SubjectID),
				zap.Error(err))
			return err
		}
		logger.Debug("identity cache invalidated",
			zap.String("event_id", event.ID),
			zap.String("subject_id", event.SubjectID))
		return nil
	})
}
