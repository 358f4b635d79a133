package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/query"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// DefaultActor stamps writes that carry no caller identity.
const DefaultActor = "system"

// Update outcomes reported to metrics.
const (
	outcomeApplied  = "applied"
	outcomeNoop     = "noop"
	outcomeRejected = "rejected"
	outcomeConflict = "conflict"
)

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets     repository.TicketRepository
	messages    repository.TicketMessageRepository
	attachments repository.AttachmentRepository
	history     repository.TicketHistoryRepository
	validator   *ticketValidator
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	metrics     *observability.Metrics
	clock       clock.Clock
	slowQuery   time.Duration
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Repositories repository.Repositories
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
	Metrics      *observability.Metrics
	Clock        clock.Clock
	// SlowQuery is the duration above which list queries are logged.
	SlowQuery time.Duration
}

// UpdateOptions carries the caller's preconditions and identity.
type UpdateOptions struct {
	// ExpectedVersion, when set, must equal the stored version.
	ExpectedVersion *int
	ModifiedBy      string
}

// MessageInput describes a new thread message.
type MessageInput struct {
	Message    string
	SenderCode string
	SenderName string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	return &TicketService{
		tickets:     deps.Repositories.Tickets,
		messages:    deps.Repositories.Messages,
		attachments: deps.Repositories.Attachments,
		history:     deps.Repositories.History,
		validator:   &ticketValidator{references: deps.Repositories.References},
		dispatcher:  deps.Dispatcher,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		clock:       deps.Clock,
		slowQuery:   deps.SlowQuery,
	}
}

// ListTickets returns one page of tickets matching semantic filters, plus
// the unpaged total.
func (s *TicketService) ListTickets(ctx context.Context, filters map[string]any, sort []string, skip, limit int) ([]domain.Ticket, int, error) {
	plan := query.BuildList(query.Translate(filters), sort, skip, limit)
	return s.run(ctx, "list", plan)
}

// SearchTickets runs a free-text search with optional filters.
func (s *TicketService) SearchTickets(ctx context.Context, params query.SearchParams) ([]domain.Ticket, int, error) {
	plan := query.BuildSearch(params, s.clock.Now())
	return s.run(ctx, "search", plan)
}

// run executes the page and the count concurrently.
func (s *TicketService) run(ctx context.Context, kind string, plan query.Plan) ([]domain.Ticket, int, error) {
	start := s.clock.Now()
	var (
		tickets []domain.Ticket
		total   int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tickets, err = s.tickets.Find(gctx, plan)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.tickets.Count(gctx, plan.Predicates)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, storeError(err)
	}

	elapsed := s.clock.Since(start)
	s.metrics.ObserveQuery(kind, elapsed)
	if s.slowQuery > 0 && elapsed > s.slowQuery {
		s.logger.Warn("slow ticket query",
			zap.String("kind", kind),
			zap.Duration("elapsed", elapsed),
			zap.Int("predicates", len(plan.Predicates)),
			zap.Int("total", total))
	}
	return tickets, total, nil
}

// GetTicket fetches one ticket by id.
func (s *TicketService) GetTicket(ctx context.Context, id int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, ticketError(id, err)
	}
	return ticket, nil
}

// CreateTicket validates fields with the update rules and stores a new
// ticket at version 1. Status defaults to open.
func (s *TicketService) CreateTicket(ctx context.Context, fields map[string]any, actor string) (*domain.Ticket, error) {
	actor = actorOrDefault(actor)
	now := s.clock.Now().UTC()

	errs := apperrors.FieldErrors{}
	canonical := s.validator.canonicalize(fields, errs)
	if _, ok := canonical["Subject"]; !ok {
		errs.Add("Subject", apperrors.CodeInvalidField, "value is required")
	}
	values, err := s.validator.coerce(ctx, canonical, errs)
	if err != nil {
		return nil, storeError(err)
	}

	ticket := &domain.Ticket{StatusID: domain.StatusOpen}
	changes := s.validator.plan(ticket, values, now, errs)
	if len(errs) > 0 {
		return nil, apperrors.NewFieldValidationError("invalid ticket", errs)
	}
	for _, ch := range changes {
		if err := ticket.SetField(ch.Field, ch.New); err != nil {
			return nil, apperrors.NewInternalError(err)
		}
	}
	ticket.Version = 1
	ticket.CreatedAt = now
	ticket.LastModified = &now
	ticket.LastModifiedBy = &actor

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, storeError(err)
	}
	created, err := s.GetTicket(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: created.ID,
		Actor:    actor,
		Payload: events.TicketCreatedPayload{
			Subject:      created.Subject,
			StatusID:     created.StatusID,
			SeverityID:   created.SeverityID,
			SiteID:       created.SiteID,
			ContactEmail: created.ContactEmail,
		},
	})
	return created, nil
}

// UpdateTicket validates and applies a partial update. An update that
// changes nothing returns the current ticket without writing. Concurrent
// writers are serialized on the version: the loser gets VERSION_CONFLICT.
func (s *TicketService) UpdateTicket(ctx context.Context, id int64, changes map[string]any, opts UpdateOptions) (*domain.Ticket, error) {
	current, err := s.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	if opts.ExpectedVersion != nil && *opts.ExpectedVersion != current.Version {
		s.metrics.RecordTicketUpdate(outcomeConflict)
		return nil, apperrors.NewVersionConflict(id, *opts.ExpectedVersion, current.Version)
	}

	now := s.clock.Now().UTC()
	errs := apperrors.FieldErrors{}
	canonical := s.validator.canonicalize(changes, errs)
	values, err := s.validator.coerce(ctx, canonical, errs)
	if err != nil {
		return nil, storeError(err)
	}
	planned := s.validator.plan(current, values, now, errs)
	if len(errs) > 0 {
		s.metrics.RecordTicketUpdate(outcomeRejected)
		return nil, apperrors.NewFieldValidationError("invalid ticket update", errs)
	}
	if len(planned) == 0 {
		s.metrics.RecordTicketUpdate(outcomeNoop)
		return current, nil
	}

	actor := actorOrDefault(opts.ModifiedBy)
	version, err := s.tickets.UpdateFields(ctx, repository.UpdateCommand{
		TicketID:        id,
		ExpectedVersion: current.Version,
		Changes:         planned,
		ModifiedBy:      actor,
		ModifiedAt:      now,
	})
	if err != nil {
		var conflict *repository.VersionConflictError
		if errors.As(err, &conflict) {
			s.metrics.RecordTicketUpdate(outcomeConflict)
			return nil, apperrors.NewVersionConflict(id, conflict.Expected, conflict.Current)
		}
		return nil, ticketError(id, err)
	}
	s.metrics.RecordTicketUpdate(outcomeApplied)

	updated, err := s.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := make([]string, 0, len(planned))
	for _, ch := range planned {
		fields = append(fields, ch.Field)
		switch ch.Field {
		case "Ticket_Status_ID":
			s.publishEvent(ctx, events.Event{
				Type:     events.EventTicketStatusChanged,
				TicketID: id,
				Actor:    actor,
				Payload: events.TicketStatusChangedPayload{
					OldStatus:    ch.Old.(int),
					NewStatus:    ch.New.(int),
					Resolution:   updated.Resolution,
					ContactEmail: updated.ContactEmail,
				},
			})
		case "Assigned_Email":
			s.publishEvent(ctx, events.Event{
				Type:     events.EventTicketAssigned,
				TicketID: id,
				Actor:    actor,
				Payload: events.TicketAssignedPayload{
					Previous: ch.Old.(*string),
					Assignee: ch.New.(*string),
				},
			})
		}
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketUpdated,
		TicketID: id,
		Actor:    actor,
		Payload:  events.TicketUpdatedPayload{Version: version, Fields: fields},
	})
	s.logger.Info("ticket updated",
		zap.Int64("ticket_id", id),
		zap.Int("version", version),
		zap.Strings("fields", fields),
		zap.String("actor", actor))
	return updated, nil
}

// ListMessages returns the ticket's thread, oldest first.
func (s *TicketService) ListMessages(ctx context.Context, ticketID int64) ([]domain.TicketMessage, error) {
	if _, err := s.GetTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, storeError(err)
	}
	return msgs, nil
}

// AddMessage appends a message to a ticket's thread.
func (s *TicketService) AddMessage(ctx context.Context, ticketID int64, input MessageInput) (*domain.TicketMessage, error) {
	if _, err := s.GetTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	errs := apperrors.FieldErrors{}
	body := Truncate(SanitizeBlock(input.Message), MaxBlockLength)
	if body == "" {
		errs.Add("message", apperrors.CodeInvalidField, "message must not be empty")
	}
	code := SanitizeLine(input.SenderCode)
	if code == "" {
		errs.Add("sender_code", apperrors.CodeInvalidField, "sender code is required")
	}
	name := SanitizeLine(input.SenderName)
	if len([]rune(name)) > MaxLineLength {
		errs.Add("sender_name", apperrors.CodeTooLong, "sender name is too long")
	}
	if len(errs) > 0 {
		return nil, apperrors.NewFieldValidationError("invalid message", errs)
	}

	msg := &domain.TicketMessage{
		TicketID:   ticketID,
		Message:    body,
		SenderCode: code,
		SenderName: name,
		CreatedAt:  s.clock.Now().UTC(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, ticketError(ticketID, err)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketMessageAdded,
		TicketID: ticketID,
		Actor:    code,
		Payload: events.TicketMessageAddedPayload{
			MessageID:   msg.ID,
			SenderCode:  msg.SenderCode,
			SenderName:  msg.SenderName,
			BodyPreview: stringPreview(msg.Message, 120),
		},
	})
	return msg, nil
}

// ListAttachments returns attachment metadata for a ticket.
func (s *TicketService) ListAttachments(ctx context.Context, ticketID int64) ([]domain.AttachmentReference, error) {
	if _, err := s.GetTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	atts, err := s.attachments.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, storeError(err)
	}
	return atts, nil
}

// ListHistory returns the per-field audit trail of a ticket.
func (s *TicketService) ListHistory(ctx context.Context, ticketID int64) ([]domain.TicketHistory, error) {
	if _, err := s.GetTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	history, err := s.history.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, storeError(err)
	}
	return history, nil
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock.Now().UTC()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.Int64("ticket_id", event.TicketID),
			zap.Error(err))
	}
}

// ticketError maps repository errors for a single ticket.
func ticketError(id int64, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
	}
	return storeError(err)
}

// storeError keeps domain and context errors and wraps everything else as
// a store failure.
func storeError(err error) error {
	var domainErr *apperrors.DomainError
	switch {
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return apperrors.NewStoreFailure(err)
}

func actorOrDefault(actor string) string {
	if actor = strings.TrimSpace(actor); actor == "" {
		return DefaultActor
	}
	return actor
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
