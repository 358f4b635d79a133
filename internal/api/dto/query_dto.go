package dto

import (
	"github.com/spec-kit/helpdesk-service/internal/query"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

// EnrichedTicketResponse is a ticket with the related records a query
// asked for.
type EnrichedTicketResponse struct {
	TicketResponse
	Messages    []TicketMessageResponse `json:"messages,omitempty"`
	Attachments []AttachmentResponse    `json:"attachments,omitempty"`
	UserContext *UserProfileResponse    `json:"user_context,omitempty"`
}

// QueryMetadata describes how an advanced query ran.
type QueryMetadata struct {
	Complexity       string               `json:"query_complexity"`
	DataCompleteness float64              `json:"data_completeness"`
	DataDiversity    float64              `json:"data_diversity"`
	ExecutionTimeMs  float64              `json:"execution_time_ms"`
	CacheUsed        bool                 `json:"cache_used"`
	Query            *query.AdvancedQuery `json:"query"`
}

// QueryResultResponse is the advanced query envelope.
type QueryResultResponse struct {
	Tickets      []EnrichedTicketResponse `json:"tickets"`
	TotalCount   int                      `json:"total_count"`
	Returned     int                      `json:"returned"`
	Offset       int                      `json:"offset"`
	Limit        int                      `json:"limit"`
	HasMore      bool                     `json:"has_more"`
	Aggregations *query.Aggregations      `json:"aggregations,omitempty"`
	Metadata     QueryMetadata            `json:"metadata"`
}

// NewQueryResultResponse maps an advanced query result.
func NewQueryResultResponse(r *service.QueryResult) QueryResultResponse {
	tickets := make([]EnrichedTicketResponse, 0, len(r.Tickets))
	for i := range r.Tickets {
		item := &r.Tickets[i]
		enriched := EnrichedTicketResponse{
			TicketResponse: NewTicketResponse(&item.Ticket),
			UserContext:    NewUserProfileResponse(item.UserContext),
		}
		if item.Messages != nil {
			enriched.Messages = NewMessageResponses(item.Messages)
		}
		if item.Attachments != nil {
			enriched.Attachments = NewAttachmentResponses(item.Attachments)
		}
		tickets = append(tickets, enriched)
	}
	return QueryResultResponse{
		Tickets:      tickets,
		TotalCount:   r.TotalCount,
		Returned:     r.Returned,
		Offset:       r.Offset,
		Limit:        r.Limit,
		HasMore:      r.HasMore,
		Aggregations: r.Aggregations,
		Metadata: QueryMetadata{
			Complexity:       r.Complexity,
			DataCompleteness: r.DataCompleteness,
			DataDiversity:    r.DataDiversity,
			ExecutionTimeMs:  r.ExecutionTimeMs,
			CacheUsed:        r.CacheUsed,
			Query:            r.Query,
		},
	}
}
