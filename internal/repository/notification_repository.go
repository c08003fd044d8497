package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// NotificationRepository stores inbox entries. Rows are appended by the
// dispatcher and only the read flag is ever updated.
type NotificationRepository interface {
	CreateBatch(ctx context.Context, notifications []*domain.Notification) error
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id string) error
}

type notificationRepository struct {
	pool DB
}

// NewNotificationRepository builds repository.
func NewNotificationRepository(pool DB) NotificationRepository {
	return &notificationRepository{pool: pool}
}

const notificationColumns = `id::text, user_id::text, ticket_id::text, type, message, read, created_at`

func (r *notificationRepository) CreateBatch(ctx context.Context, notifications []*domain.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	const query = `
        INSERT INTO notifications (user_id, ticket_id, type, message, read, created_at)
        VALUES ($1,$2,$3,$4,$5,COALESCE($6::timestamptz, NOW()))
        RETURNING id::text, created_at`
	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, n := range notifications {
			if err := tx.QueryRow(ctx, query,
				n.UserID,
				n.TicketID,
				n.Type,
				n.Message,
				n.Read,
				timestampArg(n.CreatedAt),
			).Scan(&n.ID, &n.CreatedAt); err != nil {
				return errors.Wrapf(err, "insert %s notification", n.Type)
			}
		}
		return nil
	})
}

func (r *notificationRepository) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id=$1`, id)
	if err != nil {
		return nil, errors.Wrap(err, "get notification")
	}
	list, err := scanNotifications(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &list[0], nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	const query = `SELECT ` + notificationColumns + `
        FROM notifications WHERE user_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list notifications")
	}
	return scanNotifications(rows)
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id=$1 AND NOT read`, userID).Scan(&count)
	return count, errors.Wrap(err, "count unread notifications")
}

// MarkRead is idempotent: an already-read row still counts as affected.
func (r *notificationRepository) MarkRead(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE notifications SET read=TRUE WHERE id=$1`, id)
	if err != nil {
		return errors.Wrap(err, "mark notification read")
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// timestampArg lets the column default apply to an unset time.
func timestampArg(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func scanNotifications(rows pgx.Rows) ([]domain.Notification, error) {
	defer rows.Close()
	var result []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(
			&n.ID,
			&n.UserID,
			&n.TicketID,
			&n.Type,
			&n.Message,
			&n.Read,
			&n.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan notification")
		}
		result = append(result, n)
	}
	return result, errors.Wrap(rows.Err(), "iterate notifications")
}
