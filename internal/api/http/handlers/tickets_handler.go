package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

const maxPageSize = 100

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /api/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	detail, err := h.service.CreateTicket(c.UserContext(), identity, service.TicketCreateInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		AssignedTo:  req.AssignedTo,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketResponse(detail)})
}

// ListTickets GET /api/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 50)
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	details, err := h.service.ListTickets(c.UserContext(), identity, service.TicketListFilter{
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponses(details)})
}

// GetTicket GET /api/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}
	detail, err := h.service.GetTicket(c.UserContext(), identity, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(detail)})
}

// UpdateTicket PUT /api/tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	detail, err := h.service.ApplyUpdate(c.UserContext(), c.Params("id"), identity, req.Changes())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(detail)})
}

// AssignTicket PUT /api/tickets/:id/assign.
func (h *TicketsHandler) AssignTicket(c *fiber.Ctx) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}
	var req dto.AssignTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	detail, err := h.service.Assign(c.UserContext(), c.Params("id"), identity, req.AgentID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(detail)})
}

// DeleteTicket DELETE /api/tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	identity, err := identityFrom(c)
	if err != nil {
		return err
	}
	if err := h.service.DeleteTicket(c.UserContext(), identity, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"message": "ticket deleted"}})
}

func ticketResponses(details []service.TicketDetail) []dto.TicketResponse {
	items := make([]dto.TicketResponse, 0, len(details))
	for i := range details {
		items = append(items, ticketResponse(&details[i]))
	}
	return items
}

func ticketResponse(detail *service.TicketDetail) dto.TicketResponse {
	ticket := detail.Ticket
	logs := make([]dto.ActivityLogResponse, 0, len(detail.Timeline))
	for _, view := range detail.Timeline {
		performer := userRef(view.PerformedBy)
		if performer == nil {
			performer = &dto.UserRef{ID: view.Entry.PerformedBy}
		}
		logs = append(logs, dto.ActivityLogResponse{
			Action:      view.Entry.Action,
			Field:       view.Entry.Field,
			OldValue:    view.Entry.OldValue,
			NewValue:    view.Entry.NewValue,
			PerformedBy: performer,
			CreatedAt:   view.Entry.CreatedAt,
		})
	}

	resp := dto.TicketResponse{
		ID:           ticket.ID,
		Title:        ticket.Title,
		Description:  ticket.Description,
		Status:       ticket.Status,
		Priority:     ticket.Priority,
		CreatedBy:    userRef(detail.Creator),
		AssignedTo:   userRef(detail.Assignee),
		ActivityLogs: logs,
		CreatedAt:    ticket.CreatedAt,
		UpdatedAt:    ticket.UpdatedAt,
	}
	// keep unresolved references visible by id
	if resp.CreatedBy == nil {
		resp.CreatedBy = &dto.UserRef{ID: ticket.CreatedBy}
	}
	if resp.AssignedTo == nil && ticket.AssignedTo != nil {
		resp.AssignedTo = &dto.UserRef{ID: *ticket.AssignedTo}
	}
	return resp
}

func userRef(ref *domain.UserRef) *dto.UserRef {
	if ref == nil {
		return nil
	}
	return &dto.UserRef{ID: ref.ID, Name: ref.Name, Role: ref.Role}
}
