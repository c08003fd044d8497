package service

import (
	"context"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

const dashboardRecentLimit = 5

// AdminDashboard summarises the whole desk.
type AdminDashboard struct {
	Counts repository.StatusCounts
	Recent []TicketDetail
	Agents []repository.AgentCounts
}

// AgentDashboard summarises the caller's own queue.
type AgentDashboard struct {
	Counts  repository.StatusCounts
	Tickets []TicketDetail
}

// DashboardService serves the read-only dashboards.
type DashboardService struct {
	stats   repository.DashboardRepository
	tickets *TicketService
}

// NewDashboardService wires the reporting repository with the ticket reader.
func NewDashboardService(stats repository.DashboardRepository, tickets *TicketService) *DashboardService {
	return &DashboardService{stats: stats, tickets: tickets}
}

// Admin returns global counts, the latest tickets and per-agent counts.
func (s *DashboardService) Admin(ctx context.Context, identity domain.Identity) (*AdminDashboard, error) {
	if !identity.IsAdmin() {
		return nil, apperrors.NewForbidden("admin dashboard requires the admin role")
	}
	counts, err := s.stats.CountByStatus(ctx, nil)
	if err != nil {
		return nil, storageError(err, "dashboard", "")
	}
	agents, err := s.stats.CountPerAgent(ctx)
	if err != nil {
		return nil, storageError(err, "dashboard", "")
	}
	recent, err := s.tickets.ListTickets(ctx, identity, TicketListFilter{Limit: dashboardRecentLimit})
	if err != nil {
		return nil, err
	}
	if agents == nil {
		agents = []repository.AgentCounts{}
	}
	return &AdminDashboard{Counts: counts, Recent: recent, Agents: agents}, nil
}

// Agent returns counts and the latest tickets assigned to the caller.
func (s *DashboardService) Agent(ctx context.Context, identity domain.Identity) (*AgentDashboard, error) {
	if identity.Role != domain.RoleAgent {
		return nil, apperrors.NewForbidden("agent dashboard requires the agent role")
	}
	self := identity.UserID
	counts, err := s.stats.CountByStatus(ctx, &self)
	if err != nil {
		return nil, storageError(err, "dashboard", "")
	}
	tickets, err := s.tickets.ListTickets(ctx, identity, TicketListFilter{Limit: dashboardRecentLimit})
	if err != nil {
		return nil, err
	}
	return &AgentDashboard{Counts: counts, Tickets: tickets}, nil
}
