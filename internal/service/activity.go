package service

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// DiffChanges computes the log entries a partial update produces against the
// current ticket state. Only status, priority and assignee are tracked, always
// in that order; unchanged or absent fields produce nothing. It has no side
// effects.
func DiffChanges(current *domain.Ticket, changes domain.TicketChanges, performer string, at time.Time) []domain.ActivityLogEntry {
	var entries []domain.ActivityLogEntry

	if changes.Status != nil && *changes.Status != current.Status {
		entries = append(entries, fieldEntry(domain.ActionStatusChanged, domain.FieldStatus,
			strPtr(string(current.Status)), string(*changes.Status), performer, at))
	}
	if changes.Priority != nil && *changes.Priority != current.Priority {
		entries = append(entries, fieldEntry(domain.ActionPriorityChanged, domain.FieldPriority,
			strPtr(string(current.Priority)), string(*changes.Priority), performer, at))
	}
	if changes.AssignedTo != nil && !current.IsAssignedTo(*changes.AssignedTo) {
		action := domain.ActionReassigned
		var old *string
		if current.AssignedTo == nil {
			action = domain.ActionAssigned
		} else {
			old = strPtr(*current.AssignedTo)
		}
		entries = append(entries, fieldEntry(action, domain.FieldAssignedTo, old, *changes.AssignedTo, performer, at))
	}
	return entries
}

// creationEntry is the single entry every new ticket starts with.
func creationEntry(performer string, at time.Time) domain.ActivityLogEntry {
	return domain.ActivityLogEntry{
		Action:      domain.ActionCreated,
		PerformedBy: performer,
		CreatedAt:   at,
	}
}

func fieldEntry(action domain.ActivityAction, field string, old *string, newValue, performer string, at time.Time) domain.ActivityLogEntry {
	return domain.ActivityLogEntry{
		Action:      action,
		Field:       strPtr(field),
		OldValue:    old,
		NewValue:    strPtr(newValue),
		PerformedBy: performer,
		CreatedAt:   at,
	}
}

func strPtr(s string) *string {
	return &s
}
