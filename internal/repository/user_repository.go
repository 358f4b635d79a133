package repository

import (
	"context"
	"strings"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/query"
)

// UserRepository derives contact profiles from the tickets they raised.
type UserRepository interface {
	ProfileByEmail(ctx context.Context, email string) (*domain.UserProfile, error)
}

type userRepository struct {
	db DB
}

// NewUserRepository constructs repository.
func NewUserRepository(db DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) ProfileByEmail(ctx context.Context, email string) (*domain.UserProfile, error) {
	const sql = `
        SELECT LOWER(ticket_contact_email), MAX(ticket_contact_name),
               COUNT(*) FILTER (WHERE NOT (ticket_status_id = ANY($2))),
               COUNT(*), MAX(created_date)
        FROM tickets
        WHERE LOWER(ticket_contact_email) = $1
        GROUP BY LOWER(ticket_contact_email)`
	var p domain.UserProfile
	err := r.db.QueryRow(ctx, sql, strings.ToLower(strings.TrimSpace(email)), query.ClosedStatusIDs).Scan(
		&p.Email,
		&p.Name,
		&p.OpenTickets,
		&p.TotalTickets,
		&p.LastTicketAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}
