package http

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

type memTickets struct {
	mu   sync.Mutex
	rows map[string]*domain.Ticket
}

func (m *memTickets) Create(_ context.Context, t *domain.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = uuid.NewString()
	m.rows[t.ID] = t.Clone()
	return nil
}

func (m *memTickets) Update(_ context.Context, t *domain.Ticket, appended []domain.ActivityLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.rows[t.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	next := t.Clone()
	next.ActivityLogs = append(append([]domain.ActivityLogEntry(nil), stored.ActivityLogs...), appended...)
	m.rows[t.ID] = next
	return nil
}

func (m *memTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.rows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return t.Clone(), nil
}

func (m *memTickets) List(_ context.Context, f repository.TicketFilter) ([]domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Ticket
	for _, t := range m.rows {
		if f.AssignedTo != nil && !t.IsAssignedTo(*f.AssignedTo) {
			continue
		}
		out = append(out, *t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memTickets) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.rows, id)
	return nil
}

type memUsers struct {
	mu   sync.Mutex
	byID map[string]*domain.User
}

func (m *memUsers) Create(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.byID {
		if existing.Email == u.Email {
			u.ID = id
			m.byID[id] = u
			return nil
		}
	}
	u.ID = uuid.NewString()
	m.byID[u.ID] = u
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memUsers) GetByIDs(_ context.Context, ids []string) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.User
	for _, id := range ids {
		if u, ok := m.byID[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *memUsers) ListByRole(_ context.Context, role domain.Role) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.User
	for _, u := range m.byID {
		if u.Role == role {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type memNotifications struct {
	mu   sync.Mutex
	rows []*domain.Notification
}

func (m *memNotifications) CreateBatch(_ context.Context, ns []*domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range ns {
		n.ID = uuid.NewString()
		cp := *n
		m.rows = append(m.rows, &cp)
	}
	return nil
}

func (m *memNotifications) GetByID(_ context.Context, id string) (*domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.rows {
		if n.ID == id {
			cp := *n
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memNotifications) ListByUser(_ context.Context, userID string, limit int) ([]domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Notification
	for i := len(m.rows) - 1; i >= 0 && len(out) < limit; i-- {
		if m.rows[i].UserID == userID {
			out = append(out, *m.rows[i])
		}
	}
	return out, nil
}

func (m *memNotifications) CountUnread(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, n := range m.rows {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (m *memNotifications) MarkRead(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.rows {
		if n.ID == id {
			n.Read = true
			return nil
		}
	}
	return pgx.ErrNoRows
}

type memDashboard struct {
	tickets *memTickets
}

func (m *memDashboard) CountByStatus(ctx context.Context, assignedTo *string) (repository.StatusCounts, error) {
	list, err := m.tickets.List(ctx, repository.TicketFilter{AssignedTo: assignedTo})
	if err != nil {
		return repository.StatusCounts{}, err
	}
	var counts repository.StatusCounts
	for _, t := range list {
		counts.Total++
		switch t.Status {
		case domain.TicketStatusOpen:
			counts.Open++
		case domain.TicketStatusPending:
			counts.Pending++
		case domain.TicketStatusResolved:
			counts.Resolved++
		case domain.TicketStatusClosed:
			counts.Closed++
		}
	}
	return counts, nil
}

func (m *memDashboard) CountPerAgent(context.Context) ([]repository.AgentCounts, error) {
	return nil, nil
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

var errDown = errors.New("connection refused")
