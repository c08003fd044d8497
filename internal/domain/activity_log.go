package domain

import "time"

// ActivityAction captures what happened in an activity log entry.
type ActivityAction string

const (
	ActionCreated         ActivityAction = "CREATED"
	ActionStatusChanged   ActivityAction = "STATUS_CHANGED"
	ActionPriorityChanged ActivityAction = "PRIORITY_CHANGED"
	ActionAssigned        ActivityAction = "ASSIGNED"
	ActionReassigned      ActivityAction = "REASSIGNED"
	ActionUpdated         ActivityAction = "UPDATED"
)

// Tracked field names.
const (
	FieldStatus     = "status"
	FieldPriority   = "priority"
	FieldAssignedTo = "assignedTo"
)

// ActivityLogEntry is an immutable audit trail entry owned by a ticket.
type ActivityLogEntry struct {
	Action      ActivityAction
	Field       *string
	OldValue    *string
	NewValue    *string
	PerformedBy string
	CreatedAt   time.Time
}
