package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// TicketService coordinates ticket workflows. Every mutation commits the
// ticket row and its new log entries together, and only then notifies.
type TicketService struct {
	tickets         repository.TicketRepository
	users           repository.UserRepository
	notifier        *NotificationService
	dispatcher      events.Dispatcher
	logger          *zap.Logger
	dispatchTimeout time.Duration
	now             func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo      repository.TicketRepository
	UserRepo        repository.UserRepository
	Notifier        *NotificationService
	Dispatcher      events.Dispatcher
	Logger          *zap.Logger
	DispatchTimeout time.Duration
	Clock           func() time.Time
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Status      domain.TicketStatus
	Priority    domain.TicketPriority
	AssignedTo  *string
}

// TicketListFilter pages through the tickets visible to a caller.
type TicketListFilter struct {
	Limit  int
	Offset int
}

// TicketDetail is a ticket with its user references resolved.
type TicketDetail struct {
	Ticket   *domain.Ticket
	Creator  *domain.UserRef
	Assignee *domain.UserRef
	Timeline []ActivityView
}

// ActivityView is a log entry with its performer resolved.
type ActivityView struct {
	Entry       domain.ActivityLogEntry
	PerformedBy *domain.UserRef
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	svc := &TicketService{
		tickets:         deps.TicketRepo,
		users:           deps.UserRepo,
		notifier:        deps.Notifier,
		dispatcher:      deps.Dispatcher,
		logger:          deps.Logger,
		dispatchTimeout: deps.DispatchTimeout,
		now:             deps.Clock,
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	if svc.dispatchTimeout <= 0 {
		svc.dispatchTimeout = 5 * time.Second
	}
	if svc.now == nil {
		svc.now = func() time.Time { return time.Now().UTC() }
	}
	return svc
}

// CreateTicket opens a ticket on behalf of the caller. Agents always own what
// they create; admins may name an assignee or leave it empty.
func (s *TicketService) CreateTicket(ctx context.Context, identity domain.Identity, input TicketCreateInput) (*TicketDetail, error) {
	if err := requireIdentity(identity.UserID); err != nil {
		return nil, err
	}

	ticket := &domain.Ticket{
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Status:      input.Status,
		Priority:    input.Priority,
		CreatedBy:   identity.UserID,
	}
	if ticket.Title == "" {
		return nil, apperrors.NewValidationError("title is required", map[string]any{"field": "title"})
	}
	if ticket.Status == "" {
		ticket.Status = domain.TicketStatusOpen
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityMedium
	}
	if !ticket.Status.Valid() {
		return nil, invalidEnum("status", string(ticket.Status))
	}
	if !ticket.Priority.Valid() {
		return nil, invalidEnum("priority", string(ticket.Priority))
	}

	if identity.IsAdmin() {
		if input.AssignedTo != nil {
			if assignee := strings.TrimSpace(*input.AssignedTo); assignee != "" {
				if err := s.ensureAssignable(ctx, assignee); err != nil {
					return nil, err
				}
				ticket.AssignedTo = &assignee
			}
		}
	} else {
		self := identity.UserID
		ticket.AssignedTo = &self
	}

	now := s.now()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	ticket.ActivityLogs = []domain.ActivityLogEntry{creationEntry(identity.UserID, now)}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, storageError(err, "ticket", "")
	}

	planned := s.notifier.PlanAll(ticket, ticket.ActivityLogs, identity.UserID)
	s.afterCommit(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    events.ActorFrom(identity),
		Payload: events.TicketCreatedPayload{
			Title:      ticket.Title,
			Status:     ticket.Status,
			Priority:   ticket.Priority,
			AssignedTo: ticket.AssignedTo,
		},
	}, planned)

	return s.detail(ctx, ticket)
}

// ApplyUpdate applies a partial update. Either the whole change is committed
// with its log entries or nothing is; notifications follow the commit.
func (s *TicketService) ApplyUpdate(ctx context.Context, ticketID string, identity domain.Identity, changes domain.TicketChanges) (*TicketDetail, error) {
	if err := requireIdentity(identity.UserID); err != nil {
		return nil, err
	}
	if err := requireID("ticket id", ticketID); err != nil {
		return nil, err
	}
	if changes.AssignedTo != nil && !identity.IsAdmin() {
		return nil, apperrors.NewForbidden("only admins can assign tickets")
	}

	changes.Normalize()
	switch field := changes.Validate(); field {
	case "":
	case "title":
		return nil, apperrors.NewValidationError("title cannot be empty", map[string]any{"field": field})
	case "status":
		return nil, invalidEnum(field, string(*changes.Status))
	case "priority":
		return nil, invalidEnum(field, string(*changes.Priority))
	default:
		return nil, apperrors.NewValidationError("invalid "+field, map[string]any{"field": field})
	}

	current, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, storageError(err, "ticket", ticketID)
	}
	if changes.AssignedTo != nil && !current.IsAssignedTo(*changes.AssignedTo) {
		if err := s.ensureAssignable(ctx, *changes.AssignedTo); err != nil {
			return nil, err
		}
	}

	now := s.now()
	before := current.Clone()
	entries := DiffChanges(before, changes, identity.UserID, now)
	planned := s.notifier.PlanAll(before, entries, identity.UserID)

	if changes.Title != nil {
		current.Title = *changes.Title
	}
	if changes.Description != nil {
		current.Description = *changes.Description
	}
	if changes.Status != nil {
		current.Status = *changes.Status
	}
	if changes.Priority != nil {
		current.Priority = *changes.Priority
	}
	if changes.AssignedTo != nil {
		assignee := *changes.AssignedTo
		current.AssignedTo = &assignee
	}
	current.UpdatedAt = now

	if err := s.tickets.Update(ctx, current, entries); err != nil {
		return nil, storageError(err, "ticket", ticketID)
	}
	current.ActivityLogs = append(current.ActivityLogs, entries...)

	if len(entries) > 0 {
		s.logger.Info("ticket updated",
			zap.String("ticket_id", current.ID),
			zap.String("performed_by", identity.UserID),
			zap.Int("log_entries", len(entries)),
			zap.Int("notifications", len(planned)))
	}
	s.afterCommit(ctx, events.Event{
		Type:     events.EventTicketUpdated,
		TicketID: current.ID,
		Actor:    events.ActorFrom(identity),
		Payload:  events.TicketUpdatedPayload{Entries: entries},
	}, planned)

	return s.detail(ctx, current)
}

// Assign is the admin shortcut for changing only the assignee.
func (s *TicketService) Assign(ctx context.Context, ticketID string, identity domain.Identity, agentID string) (*TicketDetail, error) {
	if !identity.IsAdmin() {
		return nil, apperrors.NewForbidden("only admins can assign tickets")
	}
	if strings.TrimSpace(agentID) == "" {
		return nil, apperrors.NewValidationError("agent id is required", map[string]any{"field": "agentId"})
	}
	return s.ApplyUpdate(ctx, ticketID, identity, domain.TicketChanges{AssignedTo: &agentID})
}

// GetTicket returns one ticket with its timeline. Agents may only read
// tickets they created or are assigned to.
func (s *TicketService) GetTicket(ctx context.Context, identity domain.Identity, ticketID string) (*TicketDetail, error) {
	if err := requireIdentity(identity.UserID); err != nil {
		return nil, err
	}
	if err := requireID("ticket id", ticketID); err != nil {
		return nil, err
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, storageError(err, "ticket", ticketID)
	}
	if !identity.IsAdmin() && ticket.CreatedBy != identity.UserID && !ticket.IsAssignedTo(identity.UserID) {
		return nil, apperrors.NewForbidden("ticket is not assigned to you")
	}
	return s.detail(ctx, ticket)
}

// ListTickets returns every ticket for admins and only assigned tickets for
// agents, newest first.
func (s *TicketService) ListTickets(ctx context.Context, identity domain.Identity, filter TicketListFilter) ([]TicketDetail, error) {
	if err := requireIdentity(identity.UserID); err != nil {
		return nil, err
	}
	repoFilter := repository.TicketFilter{Limit: filter.Limit, Offset: filter.Offset}
	if !identity.IsAdmin() {
		self := identity.UserID
		repoFilter.AssignedTo = &self
	}
	tickets, err := s.tickets.List(ctx, repoFilter)
	if err != nil {
		return nil, storageError(err, "ticket", "")
	}
	return s.hydrate(ctx, tickets)
}

// DeleteTicket hard-deletes a ticket and its log. Admin only.
func (s *TicketService) DeleteTicket(ctx context.Context, identity domain.Identity, ticketID string) error {
	if err := requireIdentity(identity.UserID); err != nil {
		return err
	}
	if !identity.IsAdmin() {
		return apperrors.NewForbidden("only admins can delete tickets")
	}
	if err := requireID("ticket id", ticketID); err != nil {
		return err
	}
	if err := s.tickets.Delete(ctx, ticketID); err != nil {
		return storageError(err, "ticket", ticketID)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketDeleted,
		TicketID: ticketID,
		Actor:    events.ActorFrom(identity),
	})
	return nil
}

func (s *TicketService) ensureAssignable(ctx context.Context, userID string) error {
	if err := requireID("assignedTo", userID); err != nil {
		return err
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewValidationError("assignee does not exist", map[string]any{"field": "assignedTo", "value": userID})
		}
		return storageError(err, "user", userID)
	}
	return nil
}

// afterCommit announces a committed change and dispatches its notifications.
// It survives cancellation of the request context: the change is already
// durable, so its notifications must still go out.
func (s *TicketService) afterCommit(ctx context.Context, event events.Event, planned []*domain.Notification) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.dispatchTimeout)
	defer cancel()

	s.publishEvent(dctx, event)
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Dispatch(dctx, event.Actor, planned); err != nil {
		s.logger.Error("notification dispatch failed",
			zap.String("ticket_id", event.TicketID),
			zap.String("event", string(event.Type)),
			zap.Int("notifications", len(planned)),
			zap.Error(err))
	}
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event fan-out failed",
			zap.String("event", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}

func (s *TicketService) detail(ctx context.Context, ticket *domain.Ticket) (*TicketDetail, error) {
	details, err := s.hydrate(ctx, []domain.Ticket{*ticket})
	if err != nil {
		return nil, err
	}
	return &details[0], nil
}

// hydrate resolves creator, assignee and performer references with a single
// user lookup. Users that no longer exist stay unresolved.
func (s *TicketService) hydrate(ctx context.Context, tickets []domain.Ticket) ([]TicketDetail, error) {
	seen := map[string]struct{}{}
	var ids []string
	collect := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for i := range tickets {
		collect(tickets[i].CreatedBy)
		if tickets[i].AssignedTo != nil {
			collect(*tickets[i].AssignedTo)
		}
		for _, entry := range tickets[i].ActivityLogs {
			collect(entry.PerformedBy)
		}
	}

	refs := make(map[string]domain.UserRef, len(ids))
	if len(ids) > 0 {
		users, err := s.users.GetByIDs(ctx, ids)
		if err != nil {
			return nil, storageError(err, "user", "")
		}
		for i := range users {
			refs[users[i].ID] = users[i].Ref()
		}
	}
	lookup := func(id string) *domain.UserRef {
		ref, ok := refs[id]
		if !ok {
			return nil
		}
		return &ref
	}

	details := make([]TicketDetail, len(tickets))
	for i := range tickets {
		ticket := &tickets[i]
		detail := TicketDetail{
			Ticket:   ticket,
			Creator:  lookup(ticket.CreatedBy),
			Timeline: make([]ActivityView, len(ticket.ActivityLogs)),
		}
		if ticket.AssignedTo != nil {
			detail.Assignee = lookup(*ticket.AssignedTo)
		}
		for j, entry := range ticket.ActivityLogs {
			detail.Timeline[j] = ActivityView{Entry: entry, PerformedBy: lookup(entry.PerformedBy)}
		}
		details[i] = detail
	}
	return details, nil
}

func invalidEnum(field, value string) error {
	return apperrors.NewValidationError(field+" is not a recognised value", map[string]any{"field": field, "value": value})
}
