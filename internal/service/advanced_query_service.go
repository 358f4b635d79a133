package service

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/query"
	"github.com/spec-kit/helpdesk-service/internal/repository"
)

// enrichmentParallelism bounds concurrent per-ticket enrichment lookups.
const enrichmentParallelism = 8

// EnrichedTicket is a ticket with the related records a query asked for.
type EnrichedTicket struct {
	domain.Ticket
	Messages    []domain.TicketMessage
	Attachments []domain.AttachmentReference
	UserContext *domain.UserProfile
}

// QueryResult is the outcome of an advanced query.
type QueryResult struct {
	Tickets          []EnrichedTicket
	TotalCount       int
	Returned         int
	Offset           int
	Limit            int
	HasMore          bool
	Aggregations     *query.Aggregations
	Complexity       string
	DataCompleteness float64
	DataDiversity    float64
	ExecutionTimeMs  float64
	CacheUsed        bool
	Query            *query.AdvancedQuery
}

// AdvancedQueryService executes multi-dimension queries with enrichment.
type AdvancedQueryService struct {
	tickets     repository.TicketRepository
	messages    repository.TicketMessageRepository
	attachments repository.AttachmentRepository
	users       repository.UserRepository
	logger      *zap.Logger
	metrics     *observability.Metrics
	clock       clock.Clock
}

// AdvancedQueryDependencies bundles collaborators.
type AdvancedQueryDependencies struct {
	Repositories repository.Repositories
	Logger       *zap.Logger
	Metrics      *observability.Metrics
	Clock        clock.Clock
}

// NewAdvancedQueryService constructs the service.
func NewAdvancedQueryService(deps AdvancedQueryDependencies) *AdvancedQueryService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	return &AdvancedQueryService{
		tickets:     deps.Repositories.Tickets,
		messages:    deps.Repositories.Messages,
		attachments: deps.Repositories.Attachments,
		users:       deps.Repositories.Users,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		clock:       deps.Clock,
	}
}

// QueryAdvanced validates q, runs it and enriches the page. User context is
// best effort: a failed profile lookup leaves it empty.
func (s *AdvancedQueryService) QueryAdvanced(ctx context.Context, q query.AdvancedQuery) (*QueryResult, error) {
	start := s.clock.Now()
	if err := q.Normalize(); err != nil {
		return nil, err
	}
	plan := q.Plan()

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
		return nil, storeError(err)
	}

	enriched, err := s.enrich(ctx, &q, tickets)
	if err != nil {
		return nil, err
	}

	elapsed := s.clock.Since(start)
	s.metrics.ObserveQuery("advanced", elapsed)
	return &QueryResult{
		Tickets:          enriched,
		TotalCount:       total,
		Returned:         len(enriched),
		Offset:           q.Offset,
		Limit:            q.Limit,
		HasMore:          q.Offset+len(enriched) < total,
		Aggregations:     query.Aggregate(tickets),
		Complexity:       q.Complexity(len(plan.Predicates)),
		DataCompleteness: query.Completeness(tickets),
		DataDiversity:    query.Diversity(tickets),
		ExecutionTimeMs:  float64(elapsed) / float64(time.Millisecond),
		CacheUsed:        false,
		Query:            &q,
	}, nil
}

func (s *AdvancedQueryService) enrich(ctx context.Context, q *query.AdvancedQuery, tickets []domain.Ticket) ([]EnrichedTicket, error) {
	out := make([]EnrichedTicket, len(tickets))
	for i := range tickets {
		out[i].Ticket = tickets[i]
	}
	if !q.Enriched() {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichmentParallelism)
	for i := range out {
		item := &out[i]
		g.Go(func() error {
			if q.IncludeMessages {
				msgs, err := s.messages.ListByTicket(gctx, item.ID)
				if err != nil {
					return err
				}
				item.Messages = msgs
			}
			if q.IncludeAttachments {
				atts, err := s.attachments.ListByTicket(gctx, item.ID)
				if err != nil {
					return err
				}
				item.Attachments = atts
			}
			if q.IncludeUserContext && item.ContactEmail != nil {
				profile, err := s.users.ProfileByEmail(gctx, *item.ContactEmail)
				switch {
				case err == nil:
					item.UserContext = profile
				case errors.Is(err, repository.ErrNotFound):
				default:
					s.logger.Warn("user context unavailable",
						zap.Int64("ticket_id", item.ID),
						zap.Error(err))
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, storeError(err)
	}
	return out, nil
}
