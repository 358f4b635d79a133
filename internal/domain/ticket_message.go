package domain

import "time"

// TicketMessage is one entry of a ticket's conversation thread.
type TicketMessage struct {
	ID         int64
	TicketID   int64
	Message    string
	SenderCode string
	SenderName string
	CreatedAt  time.Time
}

// AttachmentReference stores metadata for files linked to a ticket.
type AttachmentReference struct {
	ID         int64
	TicketID   int64
	Name       string
	WebURL     string
	UploadedAt time.Time
	Binary     bool
}
