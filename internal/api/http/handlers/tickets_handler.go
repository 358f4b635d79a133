package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/query"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// pagingParams are consumed by the list endpoint and never treated as filters.
var pagingParams = map[string]bool{"skip": true, "limit": true, "sort": true}

// TicketsHandler serves ticket reads, writes and queries.
type TicketsHandler struct {
	tickets  *service.TicketService
	advanced *service.AdvancedQueryService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, advanced *service.AdvancedQueryService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, advanced: advanced}
}

// ListTickets GET /tickets. Every query parameter other than skip, limit and
// sort is a filter; comma separated values mean any-of.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	filters := map[string]any{}
	c.Context().QueryArgs().VisitAll(func(key, value []byte) {
		name := string(key)
		if pagingParams[name] {
			return
		}
		filters[name] = splitValue(string(value))
	})
	skip := parseInt(c.Query("skip"), 0)
	limit := parseInt(c.Query("limit"), 0)

	tickets, total, err := h.tickets.ListTickets(c.UserContext(), filters, splitList(c.Query("sort")), skip, limit)
	if err != nil {
		return err
	}
	skip, limit = query.NormalizePage(skip, limit)
	return c.JSON(fiber.Map{"data": dto.NewTicketListResponse(tickets, total, skip, limit)})
}

// SearchTickets GET /tickets/search.
func (h *TicketsHandler) SearchTickets(c *fiber.Ctx) error {
	params := query.SearchParams{
		Text:           c.Query("q"),
		User:           c.Query("user"),
		CreatedAfter:   parseTime(c.Query("created_after")),
		CreatedBefore:  parseTime(c.Query("created_before")),
		Days:           parseOptionalInt(c.Query("days")),
		SiteID:         parseOptionalInt(c.Query("site_id")),
		AssignedTo:     c.Query("assigned_to"),
		UnassignedOnly: c.QueryBool("unassigned_only", false),
		Sort:           splitList(c.Query("sort")),
		Order:          c.Query("order"),
		Skip:           parseInt(c.Query("skip"), 0),
		Limit:          parseInt(c.Query("limit"), 0),
	}
	filters := map[string]any{}
	for _, key := range []string{"status", "priority", "category"} {
		if v := c.Query(key); v != "" {
			filters[key] = splitValue(v)
		}
	}
	if len(filters) > 0 {
		params.Filters = filters
	}

	tickets, total, err := h.tickets.SearchTickets(c.UserContext(), params)
	if err != nil {
		return err
	}
	skip, limit := query.NormalizePage(params.Skip, params.Limit)
	return c.JSON(fiber.Map{"data": dto.NewTicketListResponse(tickets, total, skip, limit)})
}

// QueryTickets POST /tickets/query.
func (h *TicketsHandler) QueryTickets(c *fiber.Ctx) error {
	var req query.AdvancedQuery
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result, err := h.advanced.QueryAdvanced(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewQueryResultResponse(result)})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.GetTicket(c.UserContext(), id)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderETag, etag(ticket.Version))
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	fields := map[string]any{}
	if err := c.BodyParser(&fields); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.tickets.CreateTicket(c.UserContext(), fields, auth.ActorFromContext(c))
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderETag, etag(ticket.Version))
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// UpdateTicket PUT /tickets/:id. An If-Match header carries the version the
// caller read.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	changes := map[string]any{}
	if err := c.BodyParser(&changes); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	expected, err := ifMatch(c.Get(fiber.HeaderIfMatch))
	if err != nil {
		return err
	}
	ticket, err := h.tickets.UpdateTicket(c.UserContext(), id, changes, service.UpdateOptions{
		ExpectedVersion: expected,
		ModifiedBy:      auth.ActorFromContext(c),
	})
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderETag, etag(ticket.Version))
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// ListMessages GET /tickets/:id/messages.
func (h *TicketsHandler) ListMessages(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	msgs, err := h.tickets.ListMessages(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewMessageResponses(msgs)})
}

// AddMessage POST /tickets/:id/messages.
func (h *TicketsHandler) AddMessage(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	var req dto.CreateMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	msg, err := h.tickets.AddMessage(c.UserContext(), id, service.MessageInput{
		Message:    req.Message,
		SenderCode: req.SenderCode,
		SenderName: req.SenderName,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewMessageResponse(msg)})
}

// ListAttachments GET /tickets/:id/attachments.
func (h *TicketsHandler) ListAttachments(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	atts, err := h.tickets.ListAttachments(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAttachmentResponses(atts)})
}

// ListHistory GET /tickets/:id/history.
func (h *TicketsHandler) ListHistory(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	entries, err := h.tickets.ListHistory(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewHistoryResponses(entries)})
}

func ticketID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid ticket id", map[string]any{"ticket_id": c.Params("id")})
	}
	return id, nil
}

func etag(version int) string {
	return `"` + strconv.Itoa(version) + `"`
}

// ifMatch parses an If-Match header into an expected version. Weak and
// quoted forms are accepted; "*" and an absent header impose no precondition.
func ifMatch(header string) (*int, error) {
	header = strings.TrimSpace(header)
	if header == "" || header == "*" {
		return nil, nil
	}
	raw := strings.Trim(strings.TrimPrefix(header, "W/"), `"`)
	version, err := strconv.Atoi(raw)
	if err != nil || version < 1 {
		return nil, apperrors.NewValidationError("invalid If-Match header", map[string]any{"if_match": header})
	}
	return &version, nil
}

// splitValue turns "a,b" into a list and leaves single values scalar.
func splitValue(val string) any {
	parts := splitList(val)
	switch len(parts) {
	case 0:
		return val
	case 1:
		return parts[0]
	}
	items := make([]any, len(parts))
	for i, p := range parts {
		items[i] = p
	}
	return items
}

func splitList(val string) []string {
	if strings.TrimSpace(val) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, ok := query.ParseTime(val)
	if !ok {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return parsed
}

func parseOptionalInt(val string) *int {
	if val == "" {
		return nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return nil
	}
	return &parsed
}
