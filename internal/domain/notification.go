package domain

import "time"

// NotificationType enumerates in-app notification kinds.
type NotificationType string

const (
	NotificationAssigned        NotificationType = "assigned"
	NotificationStatusChanged   NotificationType = "status_changed"
	NotificationPriorityChanged NotificationType = "priority_changed"
	NotificationComment         NotificationType = "comment"
	NotificationReassigned      NotificationType = "reassigned"
)

// Notification is an inbox entry for a single user.
type Notification struct {
	ID        string
	UserID    string
	TicketID  *string
	Type      NotificationType
	Message   string
	Read      bool
	CreatedAt time.Time
}
