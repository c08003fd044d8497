package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

type fakeTickets struct {
	mu        sync.Mutex
	rows      map[string]*domain.Ticket
	updateErr error
	updates   int
}

func newFakeTickets() *fakeTickets {
	return &fakeTickets{rows: map[string]*domain.Ticket{}}
}

func (f *fakeTickets) Create(_ context.Context, ticket *domain.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ticket.ID = uuid.NewString()
	f.rows[ticket.ID] = ticket.Clone()
	return nil
}

func (f *fakeTickets) Update(_ context.Context, ticket *domain.Ticket, appended []domain.ActivityLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	if f.updateErr != nil {
		return f.updateErr
	}
	stored, ok := f.rows[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	next := ticket.Clone()
	next.ActivityLogs = append(append([]domain.ActivityLogEntry(nil), stored.ActivityLogs...), appended...)
	f.rows[ticket.ID] = next
	return nil
}

func (f *fakeTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.rows[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return stored.Clone(), nil
}

func (f *fakeTickets) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Ticket
	for _, t := range f.rows {
		if filter.AssignedTo != nil && !t.IsAssignedTo(*filter.AssignedTo) {
			continue
		}
		if filter.CreatedBy != nil && t.CreatedBy != *filter.CreatedBy {
			continue
		}
		out = append(out, *t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f *fakeTickets) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeTickets) stored(id string) *domain.Ticket {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id].Clone()
}

type fakeUsers struct {
	byID map[string]*domain.User
}

func newFakeUsers(users ...*domain.User) *fakeUsers {
	f := &fakeUsers{byID: map[string]*domain.User{}}
	for _, u := range users {
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUsers) Create(_ context.Context, user *domain.User) error {
	for _, existing := range f.byID {
		if existing.Email == user.Email {
			user.ID = existing.ID
			f.byID[user.ID] = user
			return nil
		}
	}
	user.ID = uuid.NewString()
	f.byID[user.ID] = user
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range f.byID {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUsers) GetByIDs(_ context.Context, ids []string) ([]domain.User, error) {
	var out []domain.User
	for _, id := range ids {
		if u, ok := f.byID[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeUsers) ListByRole(_ context.Context, role domain.Role) ([]domain.User, error) {
	var out []domain.User
	for _, u := range f.byID {
		if u.Role == role {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type fakeNotifications struct {
	mu        sync.Mutex
	rows      []*domain.Notification
	failTimes int
	err       error
	writes    int
	markReads int
}

func (f *fakeNotifications) CreateBatch(_ context.Context, notifications []*domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	if f.failTimes > 0 {
		f.failTimes--
		return f.err
	}
	for _, n := range notifications {
		n.ID = uuid.NewString()
		cp := *n
		f.rows = append(f.rows, &cp)
	}
	return nil
}

func (f *fakeNotifications) GetByID(_ context.Context, id string) (*domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.rows {
		if n.ID == id {
			cp := *n
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeNotifications) ListByUser(_ context.Context, userID string, limit int) ([]domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Notification
	for i := len(f.rows) - 1; i >= 0 && len(out) < limit; i-- {
		if f.rows[i].UserID == userID {
			out = append(out, *f.rows[i])
		}
	}
	return out, nil
}

func (f *fakeNotifications) CountUnread(_ context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, n := range f.rows {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (f *fakeNotifications) MarkRead(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markReads++
	for _, n := range f.rows {
		if n.ID == id {
			n.Read = true
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (f *fakeNotifications) all() []domain.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Notification, len(f.rows))
	for i, n := range f.rows {
		out[i] = *n
	}
	return out
}

type fakeDashboard struct {
	counts       repository.StatusCounts
	agents       []repository.AgentCounts
	lastAssignee *string
}

func (f *fakeDashboard) CountByStatus(_ context.Context, assignedTo *string) (repository.StatusCounts, error) {
	f.lastAssignee = assignedTo
	return f.counts, nil
}

func (f *fakeDashboard) CountPerAgent(context.Context) ([]repository.AgentCounts, error) {
	return f.agents, nil
}

var (
	adminUser = &domain.User{ID: "11111111-1111-4111-8111-111111111111", Name: "Ada Admin", Email: "admin@example.com", Role: domain.RoleAdmin}
	agentA    = &domain.User{ID: "22222222-2222-4222-8222-222222222222", Name: "Alex Agent", Email: "alex@example.com", Role: domain.RoleAgent}
	agentB    = &domain.User{ID: "33333333-3333-4333-8333-333333333333", Name: "Blake Agent", Email: "blake@example.com", Role: domain.RoleAgent}
)

func identityOf(u *domain.User) domain.Identity {
	return domain.Identity{UserID: u.ID, Role: u.Role}
}

func testNotificationConfig() config.NotificationConfig {
	return config.NotificationConfig{
		SuppressSelf:           true,
		EnforceReadOwnership:   true,
		InboxLimit:             20,
		DispatchAttempts:       3,
		DispatchTimeoutSeconds: 5,
	}
}

type harness struct {
	tickets       *fakeTickets
	users         *fakeUsers
	notifications *fakeNotifications
	dispatcher    events.Dispatcher
	published     []events.Event
	metrics       *observability.Metrics
	notifier      *NotificationService
	svc           *TicketService
	clock         time.Time
}

func newHarness(cfg config.NotificationConfig) *harness {
	h := &harness{
		tickets:       newFakeTickets(),
		users:         newFakeUsers(adminUser, agentA, agentB),
		notifications: &fakeNotifications{},
		dispatcher:    events.NewInMemoryDispatcher(),
		metrics:       observability.NewMetrics(),
		clock:         time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	record := func(_ context.Context, e events.Event) error {
		h.published = append(h.published, e)
		return nil
	}
	for _, et := range []events.EventType{events.EventTicketCreated, events.EventTicketUpdated, events.EventTicketDeleted, events.EventNotificationCreated} {
		h.dispatcher.Subscribe(et, record)
	}
	h.notifier = NewNotificationService(h.notifications, h.dispatcher, h.metrics, zap.NewNop(), cfg)
	h.notifier.backoff = 0
	h.svc = NewTicketService(TicketDependencies{
		TicketRepo: h.tickets,
		UserRepo:   h.users,
		Notifier:   h.notifier,
		Dispatcher: h.dispatcher,
		Logger:     zap.NewNop(),
		Clock: func() time.Time {
			h.clock = h.clock.Add(time.Minute)
			return h.clock
		},
	})
	return h
}

func (h *harness) eventsOf(t events.EventType) []events.Event {
	var out []events.Event
	for _, e := range h.published {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// seedTicket stores a ticket directly, bypassing creation side effects.
func (h *harness) seedTicket(status domain.TicketStatus, priority domain.TicketPriority, assignee *domain.User) *domain.Ticket {
	t := &domain.Ticket{
		Title:       "Printer on fire",
		Description: "Third floor",
		Status:      status,
		Priority:    priority,
		CreatedBy:   adminUser.ID,
		CreatedAt:   h.clock,
		UpdatedAt:   h.clock,
		ActivityLogs: []domain.ActivityLogEntry{
			{Action: domain.ActionCreated, PerformedBy: adminUser.ID, CreatedAt: h.clock},
		},
	}
	if assignee != nil {
		id := assignee.ID
		t.AssignedTo = &id
	}
	_ = h.tickets.Create(context.Background(), t)
	return t
}
