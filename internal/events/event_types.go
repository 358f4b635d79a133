package events

import (
	"time"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketUpdated       EventType = "ticket_updated"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketMessageAdded  EventType = "ticket_message_added"
	EventTicketAssigned      EventType = "ticket_assigned"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  int64     `json:"ticket_id"`
	Actor     string    `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Subject      string  `json:"subject"`
	StatusID     int     `json:"status_id"`
	SeverityID   *int    `json:"severity_id,omitempty"`
	SiteID       *int    `json:"site_id,omitempty"`
	ContactEmail *string `json:"contact_email,omitempty"`
}

// TicketUpdatedPayload lists the fields an accepted update changed.
type TicketUpdatedPayload struct {
	Version int      `json:"version"`
	Fields  []string `json:"fields"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus    int     `json:"old_status"`
	NewStatus    int     `json:"new_status"`
	Resolution   *string `json:"resolution,omitempty"`
	ContactEmail *string `json:"contact_email,omitempty"`
}

// TicketAssignedPayload carries the assignee before and after an update;
// a nil Assignee means the ticket was unassigned.
type TicketAssignedPayload struct {
	Previous *string `json:"previous,omitempty"`
	Assignee *string `json:"assignee,omitempty"`
}

// TicketMessageAddedPayload payload.
type TicketMessageAddedPayload struct {
	MessageID   int64  `json:"message_id"`
	SenderCode  string `json:"sender_code"`
	SenderName  string `json:"sender_name"`
	BodyPreview string `json:"body_preview"`
}
