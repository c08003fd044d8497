package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
)

// RealtimePublisher pushes a notification to its recipient's live channel.
type RealtimePublisher interface {
	Publish(ctx context.Context, n domain.Notification) (int64, error)
}

// BrokerPublisher forwards events to an external message broker.
type BrokerPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// RoutingKey is the broker routing key for an event type.
func RoutingKey(eventType events.EventType) string {
	return "ticket." + string(eventType)
}

// StartNotificationWorker subscribes the outbound fan-out handlers. Either
// publisher may be nil, in which case that channel is skipped.
func StartNotificationWorker(dispatcher events.Dispatcher, logger *zap.Logger, realtime RealtimePublisher, broker BrokerPublisher) {
	if dispatcher == nil {
		return
	}
	if realtime != nil {
		dispatcher.Subscribe(events.EventNotificationCreated, pushRealtime(realtime, logger))
	}
	if broker != nil {
		forward := forwardToBroker(broker, logger)
		dispatcher.Subscribe(events.EventTicketCreated, forward)
		dispatcher.Subscribe(events.EventTicketUpdated, forward)
		dispatcher.Subscribe(events.EventTicketDeleted, forward)
		dispatcher.Subscribe(events.EventNotificationCreated, forward)
	}
}

func pushRealtime(publisher RealtimePublisher, logger *zap.Logger) events.EventHandler {
	return func(ctx context.Context, event events.Event) error {
		payload, ok := event.Payload.(events.NotificationCreatedPayload)
		if !ok {
			logger.Warn("unexpected notification payload", zap.String("event_id", event.ID))
			return nil
		}
		receivers, err := publisher.Publish(ctx, payload.Notification)
		if err != nil {
			logger.Warn("realtime push failed",
				zap.String("notification_id", payload.Notification.ID),
				zap.String("user_id", payload.Notification.UserID),
				zap.Error(err))
			return err
		}
		logger.Debug("realtime push",
			zap.String("notification_id", payload.Notification.ID),
			zap.Int64("receivers", receivers))
		return nil
	}
}

func forwardToBroker(publisher BrokerPublisher, logger *zap.Logger) events.EventHandler {
	return func(ctx context.Context, event events.Event) error {
		key := RoutingKey(event.Type)
		if err := publisher.Publish(ctx, key, event); err != nil {
			logger.Warn("broker publish failed",
				zap.String("routing_key", key),
				zap.String("ticket_id", event.TicketID),
				zap.Error(err))
			return err
		}
		return nil
	}
}
