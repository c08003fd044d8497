package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

// DashboardHandler serves the admin and agent dashboards.
type DashboardHandler struct {
	dashboards *service.DashboardService
}

// NewDashboardHandler constructs handler.
func NewDashboardHandler(dashboards *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboards: dashboards}
}

// Admin GET /api/dashboard/admin.
func (h *DashboardHandler) Admin(c *fiber.Ctx) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}
	board, err := h.dashboards.Admin(c.UserContext(), identity)
	if err != nil {
		return err
	}
	agents := make([]dto.AgentStatsResponse, 0, len(board.Agents))
	for _, a := range board.Agents {
		agents = append(agents, dto.AgentStatsResponse{
			ID:      a.AgentID,
			Name:    a.Name,
			Total:   a.Total,
			Open:    a.Open,
			Closed:  a.Closed,
			Pending: a.Pending,
		})
	}
	return c.JSON(fiber.Map{"data": dto.AdminDashboardResponse{
		TotalTickets:    board.Counts.Total,
		OpenTickets:     board.Counts.Open,
		PendingTickets:  board.Counts.Pending,
		ResolvedTickets: board.Counts.Resolved,
		ClosedTickets:   board.Counts.Closed,
		RecentTickets:   ticketResponses(board.Recent),
		Agents:          agents,
	}})
}

// Agent GET /api/dashboard/agent.
func (h *DashboardHandler) Agent(c *fiber.Ctx) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}
	board, err := h.dashboards.Agent(c.UserContext(), identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.AgentDashboardResponse{
		Total:    board.Counts.Total,
		Open:     board.Counts.Open,
		Pending:  board.Counts.Pending,
		Resolved: board.Counts.Resolved,
		Closed:   board.Counts.Closed,
		Tickets:  ticketResponses(board.Tickets),
	}})
}
