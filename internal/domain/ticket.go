package domain

import (
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen     TicketStatus = "Open"
	TicketStatusPending  TicketStatus = "Pending"
	TicketStatusResolved TicketStatus = "Resolved"
	TicketStatusClosed   TicketStatus = "Closed"
)

// Valid reports whether s is one of the enumerated statuses.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusPending, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "Low"
	TicketPriorityMedium TicketPriority = "Medium"
	TicketPriorityHigh   TicketPriority = "High"
)

// Valid reports whether p is one of the enumerated priorities.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests. ActivityLogs is owned by the
// ticket and only ever appended to.
type Ticket struct {
	ID           string
	Title        string
	Description  string
	Status       TicketStatus
	Priority     TicketPriority
	CreatedBy    string
	AssignedTo   *string
	ActivityLogs []ActivityLogEntry
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAssignedTo reports whether userID is the current assignee.
func (t *Ticket) IsAssignedTo(userID string) bool {
	return t.AssignedTo != nil && *t.AssignedTo == userID
}

// Clone returns a copy that shares no mutable state with t.
func (t *Ticket) Clone() *Ticket {
	cp := *t
	if t.AssignedTo != nil {
		assignee := *t.AssignedTo
		cp.AssignedTo = &assignee
	}
	cp.ActivityLogs = append([]ActivityLogEntry(nil), t.ActivityLogs...)
	return &cp
}

// TicketChanges is a partial update; nil fields are left untouched.
type TicketChanges struct {
	Title       *string
	Description *string
	Status      *TicketStatus
	Priority    *TicketPriority
	AssignedTo  *string
}

// Normalize trims free-text fields in place.
func (c *TicketChanges) Normalize() {
	if c.Title != nil {
		title := strings.TrimSpace(*c.Title)
		c.Title = &title
	}
	if c.Description != nil {
		desc := strings.TrimSpace(*c.Description)
		c.Description = &desc
	}
	if c.AssignedTo != nil {
		assignee := strings.TrimSpace(*c.AssignedTo)
		if assignee == "" {
			c.AssignedTo = nil
		} else {
			c.AssignedTo = &assignee
		}
	}
}

// Validate returns the name of the first invalid field, or "" when the changes
// are acceptable.
func (c TicketChanges) Validate() string {
	if c.Title != nil && *c.Title == "" {
		return "title"
	}
	if c.Status != nil && !c.Status.Valid() {
		return "status"
	}
	if c.Priority != nil && !c.Priority.Valid() {
		return "priority"
	}
	return ""
}

// Empty reports whether no field is set.
func (c TicketChanges) Empty() bool {
	return c.Title == nil && c.Description == nil && c.Status == nil && c.Priority == nil && c.AssignedTo == nil
}
