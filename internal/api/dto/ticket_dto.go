package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Status      domain.TicketStatus   `json:"status"`
	Priority    domain.TicketPriority `json:"priority"`
	AssignedTo  *string               `json:"assignedTo"`
}

// UpdateTicketRequest is a partial update; omitted fields stay untouched.
type UpdateTicketRequest struct {
	Title       *string                `json:"title"`
	Description *string                `json:"description"`
	Status      *domain.TicketStatus   `json:"status"`
	Priority    *domain.TicketPriority `json:"priority"`
	AssignedTo  *string                `json:"assignedTo"`
}

// Changes converts the payload into domain changes.
func (r UpdateTicketRequest) Changes() domain.TicketChanges {
	return domain.TicketChanges{
		Title:       r.Title,
		Description: r.Description,
		Status:      r.Status,
		Priority:    r.Priority,
		AssignedTo:  r.AssignedTo,
	}
}

// AssignTicketRequest payload for the assign shortcut.
type AssignTicketRequest struct {
	AgentID string `json:"agentId"`
}

// UserRef is a resolved user reference.
type UserRef struct {
	ID   string      `json:"id"`
	Name string      `json:"name"`
	Role domain.Role `json:"role"`
}

// ActivityLogResponse is one timeline entry.
type ActivityLogResponse struct {
	Action      domain.ActivityAction `json:"action"`
	Field       *string               `json:"field,omitempty"`
	OldValue    *string               `json:"oldValue,omitempty"`
	NewValue    *string               `json:"newValue,omitempty"`
	PerformedBy *UserRef              `json:"performedBy"`
	CreatedAt   time.Time             `json:"createdAt"`
}

// TicketResponse provides full ticket info.
type TicketResponse struct {
	ID           string                `json:"id"`
	Title        string                `json:"title"`
	Description  string                `json:"description"`
	Status       domain.TicketStatus   `json:"status"`
	Priority     domain.TicketPriority `json:"priority"`
	CreatedBy    *UserRef              `json:"createdBy"`
	AssignedTo   *UserRef              `json:"assignedTo"`
	ActivityLogs []ActivityLogResponse `json:"activityLogs"`
	CreatedAt    time.Time             `json:"createdAt"`
	UpdatedAt    time.Time             `json:"updatedAt"`
}
