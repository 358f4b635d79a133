package domain

import "time"

// TicketHistory is an immutable audit entry written for every field an
// accepted update changes.
type TicketHistory struct {
	ID        int64
	TicketID  int64
	Field     string
	OldValue  *string
	NewValue  *string
	ChangedBy string
	ChangedAt time.Time
	Version   int
}
