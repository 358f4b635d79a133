package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// TicketResponse is a ticket keyed by view field name, the same names the
// filter and sort vocabulary accepts.
type TicketResponse struct {
	TicketID            int64      `json:"Ticket_ID"`
	Subject             string     `json:"Subject"`
	TicketBody          string     `json:"Ticket_Body"`
	TicketStatusID      int        `json:"Ticket_Status_ID"`
	TicketStatusLabel   *string    `json:"Ticket_Status_Label"`
	SeverityID          *int       `json:"Severity_ID"`
	PriorityLevel       *string    `json:"Priority_Level"`
	SiteID              *int       `json:"Site_ID"`
	SiteLabel           *string    `json:"Site_Label"`
	AssetID             *int       `json:"Asset_ID"`
	AssetLabel          *string    `json:"Asset_Label"`
	TicketCategoryID    *int       `json:"Ticket_Category_ID"`
	TicketCategoryLabel *string    `json:"Ticket_Category_Label"`
	TicketContactName   *string    `json:"Ticket_Contact_Name"`
	TicketContactEmail  *string    `json:"Ticket_Contact_Email"`
	AssignedName        *string    `json:"Assigned_Name"`
	AssignedEmail       *string    `json:"Assigned_Email"`
	AssignedVendorID    *int       `json:"Assigned_Vendor_ID"`
	AssignedVendorName  *string    `json:"Assigned_Vendor_Name"`
	Resolution          *string    `json:"Resolution"`
	Version             int        `json:"Version"`
	CreatedDate         time.Time  `json:"Created_Date"`
	ClosedDate          *time.Time `json:"Closed_Date"`
	LastModified        *time.Time `json:"LastModified"`
	LastModifiedBy      *string    `json:"LastModifiedBy"`
}

// TicketListResponse is one page of tickets.
type TicketListResponse struct {
	Tickets    []TicketResponse `json:"tickets"`
	TotalCount int              `json:"total_count"`
	Returned   int              `json:"returned"`
	Skip       int              `json:"skip"`
	Limit      int              `json:"limit"`
	HasMore    bool             `json:"has_more"`
}

// CreateMessageRequest payload.
type CreateMessageRequest struct {
	Message    string `json:"message"`
	SenderCode string `json:"sender_code"`
	SenderName string `json:"sender_name"`
}

// TicketMessageResponse represents one thread message.
type TicketMessageResponse struct {
	ID         int64     `json:"id"`
	TicketID   int64     `json:"ticket_id"`
	Message    string    `json:"message"`
	SenderCode string    `json:"sender_code"`
	SenderName string    `json:"sender_name"`
	CreatedAt  time.Time `json:"created_at"`
}

// AttachmentResponse metadata.
type AttachmentResponse struct {
	ID         int64     `json:"id"`
	TicketID   int64     `json:"ticket_id"`
	Name       string    `json:"name"`
	WebURL     string    `json:"web_url"`
	UploadedAt time.Time `json:"uploaded_at"`
	Binary     bool      `json:"is_binary"`
}

// TicketHistoryResponse is one audit entry.
type TicketHistoryResponse struct {
	ID        int64     `json:"id"`
	Field     string    `json:"field"`
	OldValue  *string   `json:"old_value"`
	NewValue  *string   `json:"new_value"`
	ChangedBy string    `json:"changed_by"`
	ChangedAt time.Time `json:"changed_at"`
	Version   int       `json:"version"`
}

// UserProfileResponse summarizes a ticket contact.
type UserProfileResponse struct {
	Email        string     `json:"email"`
	Name         *string    `json:"name"`
	OpenTickets  int        `json:"open_tickets"`
	TotalTickets int        `json:"total_tickets"`
	LastTicketAt *time.Time `json:"last_ticket_at"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		TicketID:            t.ID,
		Subject:             t.Subject,
		TicketBody:          t.Body,
		TicketStatusID:      t.StatusID,
		TicketStatusLabel:   t.StatusLabel,
		SeverityID:          t.SeverityID,
		PriorityLevel:       t.PriorityLevel,
		SiteID:              t.SiteID,
		SiteLabel:           t.SiteLabel,
		AssetID:             t.AssetID,
		AssetLabel:          t.AssetLabel,
		TicketCategoryID:    t.CategoryID,
		TicketCategoryLabel: t.CategoryLabel,
		TicketContactName:   t.ContactName,
		TicketContactEmail:  t.ContactEmail,
		AssignedName:        t.AssignedName,
		AssignedEmail:       t.AssignedEmail,
		AssignedVendorID:    t.VendorID,
		AssignedVendorName:  t.VendorName,
		Resolution:          t.Resolution,
		Version:             t.Version,
		CreatedDate:         t.CreatedAt,
		ClosedDate:          t.ClosedAt,
		LastModified:        t.LastModified,
		LastModifiedBy:      t.LastModifiedBy,
	}
}

// NewTicketResponses maps a slice of tickets; never nil.
func NewTicketResponses(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, NewTicketResponse(&tickets[i]))
	}
	return out
}

// NewTicketListResponse builds a page envelope.
func NewTicketListResponse(tickets []domain.Ticket, total, skip, limit int) TicketListResponse {
	return TicketListResponse{
		Tickets:    NewTicketResponses(tickets),
		TotalCount: total,
		Returned:   len(tickets),
		Skip:       skip,
		Limit:      limit,
		HasMore:    skip+len(tickets) < total,
	}
}

// NewMessageResponses maps thread messages.
func NewMessageResponses(msgs []domain.TicketMessage) []TicketMessageResponse {
	out := make([]TicketMessageResponse, 0, len(msgs))
	for i := range msgs {
		out = append(out, NewMessageResponse(&msgs[i]))
	}
	return out
}

// NewMessageResponse maps one message.
func NewMessageResponse(m *domain.TicketMessage) TicketMessageResponse {
	return TicketMessageResponse{
		ID:         m.ID,
		TicketID:   m.TicketID,
		Message:    m.Message,
		SenderCode: m.SenderCode,
		SenderName: m.SenderName,
		CreatedAt:  m.CreatedAt,
	}
}

// NewAttachmentResponses maps attachment metadata.
func NewAttachmentResponses(atts []domain.AttachmentReference) []AttachmentResponse {
	out := make([]AttachmentResponse, 0, len(atts))
	for _, a := range atts {
		out = append(out, AttachmentResponse{
			ID:         a.ID,
			TicketID:   a.TicketID,
			Name:       a.Name,
			WebURL:     a.WebURL,
			UploadedAt: a.UploadedAt,
			Binary:     a.Binary,
		})
	}
	return out
}

// NewHistoryResponses maps audit entries.
func NewHistoryResponses(entries []domain.TicketHistory) []TicketHistoryResponse {
	out := make([]TicketHistoryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, TicketHistoryResponse{
			ID:        e.ID,
			Field:     e.Field,
			OldValue:  e.OldValue,
			NewValue:  e.NewValue,
			ChangedBy: e.ChangedBy,
			ChangedAt: e.ChangedAt,
			Version:   e.Version,
		})
	}
	return out
}

// NewUserProfileResponse maps a profile; nil stays nil.
func NewUserProfileResponse(p *domain.UserProfile) *UserProfileResponse {
	if p == nil {
		return nil
	}
	return &UserProfileResponse{
		Email:        p.Email,
		Name:         p.Name,
		OpenTickets:  p.OpenTickets,
		TotalTickets: p.TotalTickets,
		LastTicketAt: p.LastTicketAt,
	}
}
