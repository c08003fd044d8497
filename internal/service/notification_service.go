package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// Notification messages shown in the inbox.
const (
	msgStatusChanged   = "Ticket status changed to %s"
	msgPriorityChanged = "Ticket priority changed to %s"
	msgAssigned        = "A ticket has been assigned to you"
	msgReassigned      = "You have been reassigned a ticket"
	msgCreatedAssigned = "A new ticket has been assigned to you"
)

// DispatchMetrics counts dispatch outcomes.
type DispatchMetrics interface {
	RecordDispatch(outcome string, n int)
}

// NotificationService decides who hears about a ticket change and writes the
// resulting inbox entries.
type NotificationService struct {
	notifications repository.NotificationRepository
	dispatcher    events.Dispatcher
	metrics       DispatchMetrics
	logger        *zap.Logger
	cfg           config.NotificationConfig
	backoff       time.Duration
	now           func() time.Time
}

// NewNotificationService creates the service.
func NewNotificationService(notifications repository.NotificationRepository, dispatcher events.Dispatcher, metrics DispatchMetrics, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		notifications: notifications,
		dispatcher:    dispatcher,
		metrics:       metrics,
		logger:        logger,
		cfg:           cfg,
		backoff:       100 * time.Millisecond,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Plan returns the notification a single log entry calls for, or nil. ticket
// must be the state before the change was applied. Plan does not touch
// storage.
func (n *NotificationService) Plan(ticket *domain.Ticket, entry domain.ActivityLogEntry, actorID string) *domain.Notification {
	notification := planFor(ticket, entry)
	if notification == nil {
		return nil
	}
	if n.cfg.SuppressSelf && notification.UserID == actorID {
		return nil
	}
	return notification
}

// PlanAll plans every entry in order.
func (n *NotificationService) PlanAll(ticket *domain.Ticket, entries []domain.ActivityLogEntry, actorID string) []*domain.Notification {
	if n == nil {
		return nil
	}
	var planned []*domain.Notification
	suppressed := 0
	for _, entry := range entries {
		if candidate := planFor(ticket, entry); candidate != nil {
			if n.cfg.SuppressSelf && candidate.UserID == actorID {
				suppressed++
				continue
			}
			planned = append(planned, candidate)
		}
	}
	n.record("suppressed", suppressed)
	return planned
}

func planFor(ticket *domain.Ticket, entry domain.ActivityLogEntry) *domain.Notification {
	ticketID := ticket.ID
	build := func(recipient string, kind domain.NotificationType, message string) *domain.Notification {
		return &domain.Notification{
			UserID:    recipient,
			TicketID:  &ticketID,
			Type:      kind,
			Message:   message,
			CreatedAt: entry.CreatedAt,
		}
	}

	switch entry.Action {
	case domain.ActionStatusChanged:
		if ticket.AssignedTo == nil || entry.NewValue == nil {
			return nil
		}
		return build(*ticket.AssignedTo, domain.NotificationStatusChanged, fmt.Sprintf(msgStatusChanged, *entry.NewValue))
	case domain.ActionPriorityChanged:
		if ticket.AssignedTo == nil || entry.NewValue == nil {
			return nil
		}
		return build(*ticket.AssignedTo, domain.NotificationPriorityChanged, fmt.Sprintf(msgPriorityChanged, *entry.NewValue))
	case domain.ActionAssigned:
		if entry.NewValue == nil {
			return nil
		}
		return build(*entry.NewValue, domain.NotificationAssigned, msgAssigned)
	case domain.ActionReassigned:
		if entry.NewValue == nil {
			return nil
		}
		return build(*entry.NewValue, domain.NotificationReassigned, msgReassigned)
	case domain.ActionCreated:
		if ticket.AssignedTo == nil {
			return nil
		}
		return build(*ticket.AssignedTo, domain.NotificationAssigned, msgCreatedAssigned)
	}
	return nil
}

// Dispatch persists the planned notifications and announces each one. It must
// only be called once the ticket change is committed. Storage failures are
// retried; a final failure is returned for logging and never affects the
// ticket.
func (n *NotificationService) Dispatch(ctx context.Context, actor events.Actor, notifications []*domain.Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	stamp := n.now()
	for _, notification := range notifications {
		if notification.CreatedAt.IsZero() {
			notification.CreatedAt = stamp
		}
	}

	attempts := n.cfg.DispatchAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
retry:
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = n.notifications.CreateBatch(ctx, notifications); err == nil {
			break
		}
		n.logger.Warn("notification write failed",
			zap.Int("attempt", attempt),
			zap.Int("count", len(notifications)),
			zap.Error(err))
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			break retry
		case <-time.After(n.backoff * time.Duration(attempt)):
		}
	}
	if err != nil {
		n.record("failed", len(notifications))
		return apperrors.NewPersistenceError(err)
	}
	n.record("sent", len(notifications))

	for _, notification := range notifications {
		n.publish(ctx, events.Event{
			Type:     events.EventNotificationCreated,
			TicketID: derefString(notification.TicketID),
			Actor:    actor,
			Payload:  events.NotificationCreatedPayload{Notification: *notification},
		})
	}
	return nil
}

func (n *NotificationService) publish(ctx context.Context, event events.Event) {
	if n.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := n.dispatcher.Publish(ctx, event); err != nil {
		n.logger.Warn("notification fan-out failed",
			zap.String("event_id", event.ID),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}

func (n *NotificationService) record(outcome string, count int) {
	if n.metrics != nil {
		n.metrics.RecordDispatch(outcome, count)
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
