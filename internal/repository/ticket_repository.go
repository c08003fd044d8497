package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// TicketFilter scopes ticket listings.
type TicketFilter struct {
	AssignedTo *string
	CreatedBy  *string
	Limit      int
	Offset     int
}

// TicketRepository encapsulates ticket persistence. A ticket is always loaded
// together with its activity log, and log entries are only written in the same
// transaction as the ticket row they belong to.
type TicketRepository interface {
	// Create inserts the ticket and its initial log entries, filling ID and timestamps.
	Create(ctx context.Context, ticket *domain.Ticket) error
	// Update writes the mutable columns and appends entries atomically.
	Update(ctx context.Context, ticket *domain.Ticket, appended []domain.ActivityLogEntry) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	Delete(ctx context.Context, id string) error
}

type ticketRepository struct {
	pool DB
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool DB) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id::text, title, description, status, priority, created_by::text, assigned_to::text, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (title, description, status, priority, created_by, assigned_to, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$7)
        RETURNING id::text, created_at, updated_at`
	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, query,
			ticket.Title,
			ticket.Description,
			ticket.Status,
			ticket.Priority,
			ticket.CreatedBy,
			ticket.AssignedTo,
			ticket.CreatedAt,
		).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt); err != nil {
			return errors.Wrap(err, "insert ticket")
		}
		return appendLogs(ctx, tx, ticket.ID, ticket.ActivityLogs)
	})
	return err
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket, appended []domain.ActivityLogEntry) error {
	const query = `
        UPDATE tickets SET title=$1, description=$2, status=$3, priority=$4, assigned_to=$5, updated_at=$6
        WHERE id=$7`
	return withTx(ctx, r.pool, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, query,
			ticket.Title,
			ticket.Description,
			ticket.Status,
			ticket.Priority,
			ticket.AssignedTo,
			ticket.UpdatedAt,
			ticket.ID,
		)
		if err != nil {
			return errors.Wrap(err, "update ticket")
		}
		if cmd.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return appendLogs(ctx, tx, ticket.ID, appended)
	})
}

func appendLogs(ctx context.Context, tx pgx.Tx, ticketID string, entries []domain.ActivityLogEntry) error {
	const query = `
        INSERT INTO ticket_activity_logs (ticket_id, action, field, old_value, new_value, performed_by, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	for _, entry := range entries {
		if _, err := tx.Exec(ctx, query,
			ticketID,
			entry.Action,
			entry.Field,
			entry.OldValue,
			entry.NewValue,
			entry.PerformedBy,
			entry.CreatedAt,
		); err != nil {
			return errors.Wrapf(err, "append %s log entry", entry.Action)
		}
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, errors.Wrap(err, "get ticket")
	}
	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return nil, pgx.ErrNoRows
	}
	if err := r.attachLogs(ctx, tickets); err != nil {
		return nil, err
	}
	return &tickets[0], nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		clauses = append(clauses, fmt.Sprintf("created_by=$%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list tickets")
	}
	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, err
	}
	if err := r.attachLogs(ctx, tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

func (r *ticketRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return errors.Wrap(err, "delete ticket")
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// attachLogs loads the activity logs of all tickets with a single query.
func (r *ticketRepository) attachLogs(ctx context.Context, tickets []domain.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	ids := make([]string, len(tickets))
	index := make(map[string]int, len(tickets))
	for i := range tickets {
		ids[i] = tickets[i].ID
		index[tickets[i].ID] = i
	}

	const query = `
        SELECT ticket_id::text, action, field, old_value, new_value, performed_by::text, created_at
        FROM ticket_activity_logs WHERE ticket_id = ANY($1::text[]::uuid[]) ORDER BY id ASC`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return errors.Wrap(err, "load activity logs")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ticketID string
			entry    domain.ActivityLogEntry
		)
		if err := rows.Scan(
			&ticketID,
			&entry.Action,
			&entry.Field,
			&entry.OldValue,
			&entry.NewValue,
			&entry.PerformedBy,
			&entry.CreatedAt,
		); err != nil {
			return errors.Wrap(err, "scan activity log")
		}
		i, ok := index[ticketID]
		if !ok {
			continue
		}
		tickets[i].ActivityLogs = append(tickets[i].ActivityLogs, entry)
	}
	return errors.Wrap(rows.Err(), "iterate activity logs")
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	defer rows.Close()
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.Title,
			&ticket.Description,
			&ticket.Status,
			&ticket.Priority,
			&ticket.CreatedBy,
			&ticket.AssignedTo,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan ticket")
		}
		result = append(result, ticket)
	}
	return result, errors.Wrap(rows.Err(), "iterate tickets")
}
