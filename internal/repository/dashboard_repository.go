package repository

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// StatusCounts aggregates tickets per status.
type StatusCounts struct {
	Total    int
	Open     int
	Pending  int
	Resolved int
	Closed   int
}

// AgentCounts is the per-agent row of the admin dashboard.
type AgentCounts struct {
	AgentID string
	Name    string
	StatusCounts
}

// DashboardRepository runs the read-only reporting queries.
type DashboardRepository interface {
	CountByStatus(ctx context.Context, assignedTo *string) (StatusCounts, error)
	CountPerAgent(ctx context.Context) ([]AgentCounts, error)
}

type dashboardRepository struct {
	db *sql.DB
}

// NewDashboardRepository wraps a database/sql handle (see persistence.Postgres.SQLDB).
func NewDashboardRepository(db *sql.DB) DashboardRepository {
	return &dashboardRepository{db: db}
}

const statusCountColumns = `
        COUNT(t.id),
        COUNT(t.id) FILTER (WHERE t.status = 'Open'),
        COUNT(t.id) FILTER (WHERE t.status = 'Pending'),
        COUNT(t.id) FILTER (WHERE t.status = 'Resolved'),
        COUNT(t.id) FILTER (WHERE t.status = 'Closed')`

func (r *dashboardRepository) CountByStatus(ctx context.Context, assignedTo *string) (StatusCounts, error) {
	var counts StatusCounts
	query := `SELECT` + statusCountColumns + ` FROM tickets t`
	args := []any{}
	if assignedTo != nil {
		query += ` WHERE t.assigned_to = $1`
		args = append(args, *assignedTo)
	}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&counts.Total,
		&counts.Open,
		&counts.Pending,
		&counts.Resolved,
		&counts.Closed,
	)
	return counts, errors.Wrap(err, "count tickets by status")
}

// CountPerAgent counts the tickets each agent created, matching how the
// dashboard has always attributed work.
func (r *dashboardRepository) CountPerAgent(ctx context.Context) ([]AgentCounts, error) {
	query := `SELECT u.id::text, u.name,` + statusCountColumns + `
        FROM users u LEFT JOIN tickets t ON t.created_by = u.id
        WHERE u.role = $1
        GROUP BY u.id, u.name
        ORDER BY u.name ASC`
	rows, err := r.db.QueryContext(ctx, query, string(domain.RoleAgent))
	if err != nil {
		return nil, errors.Wrap(err, "count tickets per agent")
	}
	defer rows.Close()

	var result []AgentCounts
	for rows.Next() {
		var row AgentCounts
		if err := rows.Scan(
			&row.AgentID,
			&row.Name,
			&row.Total,
			&row.Open,
			&row.Pending,
			&row.Resolved,
			&row.Closed,
		); err != nil {
			return nil, errors.Wrap(err, "scan agent counts")
		}
		result = append(result, row)
	}
	return result, errors.Wrap(rows.Err(), "iterate agent counts")
}
