package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

func TestDashboard_Admin(t *testing.T) {
	h := newHarness(testNotificationConfig())
	for i := 0; i < 7; i++ {
		h.seedTicket(domain.TicketStatusOpen, domain.TicketPriorityLow, agentA)
	}
	stats := &fakeDashboard{
		counts: repository.StatusCounts{Total: 7, Open: 7},
		agents: []repository.AgentCounts{{AgentID: agentA.ID, Name: agentA.Name, StatusCounts: repository.StatusCounts{Total: 2}}},
	}
	svc := NewDashboardService(stats, h.svc)

	board, err := svc.Admin(context.Background(), identityOf(adminUser))
	require.NoError(t, err)
	assert.Equal(t, 7, board.Counts.Total)
	assert.Len(t, board.Recent, 5)
	require.Len(t, board.Agents, 1)
	assert.Nil(t, stats.lastAssignee)

	_, err = svc.Admin(context.Background(), identityOf(agentA))
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))
}

func TestDashboard_Agent(t *testing.T) {
	h := newHarness(testNotificationConfig())
	h.seedTicket(domain.TicketStatusOpen, domain.TicketPriorityLow, agentA)
	h.seedTicket(domain.TicketStatusClosed, domain.TicketPriorityLow, agentB)
	stats := &fakeDashboard{counts: repository.StatusCounts{Total: 1, Open: 1}}
	svc := NewDashboardService(stats, h.svc)

	board, err := svc.Agent(context.Background(), identityOf(agentA))
	require.NoError(t, err)
	require.NotNil(t, stats.lastAssignee)
	assert.Equal(t, agentA.ID, *stats.lastAssignee)
	require.Len(t, board.Tickets, 1)
	assert.Equal(t, agentA.ID, *board.Tickets[0].Ticket.AssignedTo)

	_, err = svc.Agent(context.Background(), identityOf(adminUser))
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))
}
