package domain

import "time"

// UserProfile summarizes a ticket contact, derived from the tickets they raised.
type UserProfile struct {
	Email        string
	Name         *string
	OpenTickets  int
	TotalTickets int
	LastTicketAt *time.Time
}
