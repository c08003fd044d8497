package service

import (
	"context"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// InboxService exposes a user's notifications. It is the only writer of the
// read flag.
type InboxService struct {
	notifications repository.NotificationRepository
	limit         int
	enforceOwner  bool
}

// NewInboxService builds the inbox.
func NewInboxService(notifications repository.NotificationRepository, cfg config.NotificationConfig) *InboxService {
	limit := cfg.InboxLimit
	if limit <= 0 {
		limit = 20
	}
	return &InboxService{
		notifications: notifications,
		limit:         limit,
		enforceOwner:  cfg.EnforceReadOwnership,
	}
}

// List returns the caller's most recent notifications, newest first.
func (s *InboxService) List(ctx context.Context, identity domain.Identity) ([]domain.Notification, error) {
	if err := requireIdentity(identity.UserID); err != nil {
		return nil, err
	}
	list, err := s.notifications.ListByUser(ctx, identity.UserID, s.limit)
	if err != nil {
		return nil, storageError(err, "notification", "")
	}
	if list == nil {
		list = []domain.Notification{}
	}
	return list, nil
}

// UnreadCount returns how many of the caller's notifications are unread.
func (s *InboxService) UnreadCount(ctx context.Context, identity domain.Identity) (int, error) {
	if err := requireIdentity(identity.UserID); err != nil {
		return 0, err
	}
	count, err := s.notifications.CountUnread(ctx, identity.UserID)
	if err != nil {
		return 0, storageError(err, "notification", "")
	}
	return count, nil
}

// MarkRead sets the read flag. Marking an already-read notification succeeds
// without writing. Someone else's notification is reported as missing when
// ownership is enforced.
func (s *InboxService) MarkRead(ctx context.Context, identity domain.Identity, notificationID string) (*domain.Notification, error) {
	if err := requireIdentity(identity.UserID); err != nil {
		return nil, err
	}
	if err := requireID("notification id", notificationID); err != nil {
		return nil, err
	}
	notification, err := s.notifications.GetByID(ctx, notificationID)
	if err != nil {
		return nil, storageError(err, "notification", notificationID)
	}
	if s.enforceOwner && notification.UserID != identity.UserID {
		return nil, apperrors.NewNotFound("notification", map[string]any{"id": notificationID})
	}
	if notification.Read {
		return notification, nil
	}
	if err := s.notifications.MarkRead(ctx, notificationID); err != nil {
		return nil, storageError(err, "notification", notificationID)
	}
	notification.Read = true
	return notification, nil
}
