package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// Message is the JSON body pushed to a user's realtime channel.
type Message struct {
	ID        string                  `json:"id"`
	TicketID  *string                 `json:"ticketId,omitempty"`
	Type      domain.NotificationType `json:"type"`
	Message   string                  `json:"message"`
	Read      bool                    `json:"read"`
	CreatedAt time.Time               `json:"createdAt"`
}

// NewMessage converts a persisted notification.
func NewMessage(n domain.Notification) Message {
	return Message{
		ID:        n.ID,
		TicketID:  n.TicketID,
		Type:      n.Type,
		Message:   n.Message,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}

// RedisPublisher fans notifications out over Redis pub/sub, one channel per
// recipient.
type RedisPublisher struct {
	client redis.Cmdable
	prefix string
}

// NewRedisPublisher creates a publisher writing to "<prefix>:<user id>".
func NewRedisPublisher(client redis.Cmdable, prefix string) *RedisPublisher {
	return &RedisPublisher{client: client, prefix: prefix}
}

// Channel returns the channel name for a user.
func (p *RedisPublisher) Channel(userID string) string {
	return p.prefix + ":" + userID
}

// Publish pushes the notification to its recipient's channel. It returns the
// number of subscribers that received it.
func (p *RedisPublisher) Publish(ctx context.Context, n domain.Notification) (int64, error) {
	if p == nil || p.client == nil {
		return 0, nil
	}
	body, err := json.Marshal(NewMessage(n))
	if err != nil {
		return 0, errors.Wrap(err, "encode realtime message")
	}
	receivers, err := p.client.Publish(ctx, p.Channel(n.UserID), string(body)).Result()
	if err != nil {
		return 0, errors.Wrapf(err, "publish to %s", p.Channel(n.UserID))
	}
	return receivers, nil
}
