package repository

import (
	"context"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// AttachmentRepository reads attachment metadata.
type AttachmentRepository interface {
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.AttachmentReference, error)
}

type attachmentRepository struct {
	db DB
}

// NewAttachmentRepository constructs repository.
func NewAttachmentRepository(db DB) AttachmentRepository {
	return &attachmentRepository{db: db}
}

func (r *attachmentRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.AttachmentReference, error) {
	const query = `
        SELECT id, ticket_id, name, web_url, uploaded_at, is_binary
        FROM ticket_attachments WHERE ticket_id=$1 ORDER BY uploaded_at ASC, id ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.AttachmentReference{}
	for rows.Next() {
		var att domain.AttachmentReference
		if err := rows.Scan(
			&att.ID,
			&att.TicketID,
			&att.Name,
			&att.WebURL,
			&att.UploadedAt,
			&att.Binary,
		); err != nil {
			return nil, err
		}
		result = append(result, att)
	}
	return result, rows.Err()
}
