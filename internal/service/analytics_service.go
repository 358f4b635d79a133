package service

import (
	"context"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/helpdesk-service/internal/cache"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/query"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// Report names, also used as cache key prefixes.
const (
	ReportStatus         = "tickets_by_status"
	ReportOpenBySite     = "open_by_site"
	ReportOpenByAssignee = "open_by_assignee"
	ReportWaitingOnUser  = "waiting_on_user"
	ReportSLABreaches    = "sla_breaches"
	ReportTrend          = "ticket_trend"
	ReportStaff          = "staff_report"
)

// MaxReportDays bounds the window of day-based reports.
const MaxReportDays = 366

// reportDays resolves a requested window: days <= 0 falls back to def and
// larger values are capped at MaxReportDays.
func reportDays(days, def int) int {
	if days <= 0 {
		days = def
	}
	return min(days, MaxReportDays)
}

// SLAReport lists open tickets older than the SLA window, oldest first.
type SLAReport struct {
	Days    int
	Cutoff  time.Time
	Total   int
	Tickets []domain.Ticket
}

// StaffReport summarizes one assignee's workload.
type StaffReport struct {
	AssignedEmail string
	OpenTickets   int
	TotalTickets  int
	ByStatus      []domain.CountBucket
	ByPriority    []domain.CountBucket
}

// AnalyticsService computes reports behind the analytics cache.
type AnalyticsService struct {
	analytics repository.AnalyticsRepository
	tickets   repository.TicketRepository
	cache     *cache.Cache
	logger    *zap.Logger
	clock     clock.Clock
	slaDays   int
	trendDays int
}

// AnalyticsDependencies bundles collaborators.
type AnalyticsDependencies struct {
	Repositories repository.Repositories
	Cache        *cache.Cache
	Logger       *zap.Logger
	Clock        clock.Clock
	SLADays      int
	TrendDays    int
}

// NewAnalyticsService constructs the service.
func NewAnalyticsService(deps AnalyticsDependencies) *AnalyticsService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Cache == nil {
		deps.Cache = cache.New(cache.Options{Clock: deps.Clock, Logger: deps.Logger})
	}
	deps.SLADays = reportDays(deps.SLADays, 2)
	deps.TrendDays = reportDays(deps.TrendDays, 30)
	return &AnalyticsService{
		analytics: deps.Repositories.Analytics,
		tickets:   deps.Repositories.Tickets,
		cache:     deps.Cache,
		logger:    deps.Logger,
		clock:     deps.Clock,
		slaDays:   deps.SLADays,
		trendDays: deps.TrendDays,
	}
}

func openPredicate() query.Predicate {
	return query.In("Ticket_Status_ID", int64sToAny(query.OpenStatusIDs)...)
}

func int64sToAny(ids []int64) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

// TicketsByStatus counts every ticket per status.
func (s *AnalyticsService) TicketsByStatus(ctx context.Context) ([]domain.CountBucket, error) {
	return s.groupCount(ctx, ReportStatus, repository.ByStatus, nil)
}

// OpenBySite counts open tickets per site.
func (s *AnalyticsService) OpenBySite(ctx context.Context) ([]domain.CountBucket, error) {
	return s.groupCount(ctx, ReportOpenBySite, repository.BySite, []query.Predicate{openPredicate()})
}

// OpenByAssignee counts open tickets per assignee; unassigned tickets form
// one bucket with an empty key.
func (s *AnalyticsService) OpenByAssignee(ctx context.Context) ([]domain.CountBucket, error) {
	return s.groupCount(ctx, ReportOpenByAssignee, repository.ByAssignee, []query.Predicate{openPredicate()})
}

// WaitingOnUser counts tickets waiting on a contact, per contact.
func (s *AnalyticsService) WaitingOnUser(ctx context.Context) ([]domain.CountBucket, error) {
	return s.groupCount(ctx, ReportWaitingOnUser, repository.ByContact,
		[]query.Predicate{query.Eq("Ticket_Status_ID", int64(domain.StatusWaiting))})
}

func (s *AnalyticsService) groupCount(ctx context.Context, name string, g repository.Grouping, preds []query.Predicate) ([]domain.CountBucket, error) {
	buckets, err := cache.GetOrCompute(ctx, s.cache, cache.Key(name, nil), 0, func(ctx context.Context) ([]domain.CountBucket, error) {
		return s.analytics.GroupCount(ctx, g, preds)
	})
	if err != nil {
		return nil, s.reportError(name, err)
	}
	return buckets, nil
}

// SLABreaches lists open tickets created more than days ago. days <= 0
// uses the configured window.
func (s *AnalyticsService) SLABreaches(ctx context.Context, days int) (*SLAReport, error) {
	days = reportDays(days, s.slaDays)
	key := cache.Key(ReportSLABreaches, map[string]int{"days": days})
	report, err := cache.GetOrCompute(ctx, s.cache, key, 0, func(ctx context.Context) (*SLAReport, error) {
		cutoff := s.clock.Now().UTC().AddDate(0, 0, -days)
		plan := query.Plan{
			Predicates: []query.Predicate{openPredicate(), query.Lte("Created_Date", cutoff)},
			Order:      []query.Order{{Field: "Created_Date"}, {Field: "Ticket_ID"}},
			Limit:      query.MaxLimit,
		}
		report := &SLAReport{Days: days, Cutoff: cutoff}
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			report.Tickets, err = s.tickets.Find(gctx, plan)
			return err
		})
		g.Go(func() error {
			var err error
			report.Total, err = s.tickets.Count(gctx, plan.Predicates)
			return err
		})
		return report, g.Wait()
	})
	if err != nil {
		return nil, s.reportError(ReportSLABreaches, err)
	}
	return report, nil
}

// Trend returns tickets created per day over the last days, one point per
// day including empty days. days <= 0 uses the configured window.
func (s *AnalyticsService) Trend(ctx context.Context, days int) ([]domain.TrendPoint, error) {
	days = reportDays(days, s.trendDays)
	key := cache.Key(ReportTrend, map[string]int{"days": days})
	points, err := cache.GetOrCompute(ctx, s.cache, key, 0, func(ctx context.Context) ([]domain.TrendPoint, error) {
		today := s.clock.Now().UTC().Truncate(24 * time.Hour)
		since := today.AddDate(0, 0, -(days - 1))
		raw, err := s.analytics.CreatedPerDay(ctx, since)
		if err != nil {
			return nil, err
		}
		counts := make(map[time.Time]int, len(raw))
		for _, p := range raw {
			counts[p.Day.UTC().Truncate(24*time.Hour)] += p.Count
		}
		out := make([]domain.TrendPoint, 0, days)
		for day := since; !day.After(today); day = day.AddDate(0, 0, 1) {
			out = append(out, domain.TrendPoint{Day: day, Count: counts[day]})
		}
		return out, nil
	})
	if err != nil {
		return nil, s.reportError(ReportTrend, err)
	}
	return points, nil
}

// Staff summarizes the tickets assigned to email.
func (s *AnalyticsService) Staff(ctx context.Context, email string) (*StaffReport, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		errs := apperrors.FieldErrors{}
		errs.Add("assigned_email", apperrors.CodeInvalidField, "assignee email is required")
		return nil, apperrors.NewFieldValidationError("invalid staff report request", errs)
	}
	key := cache.Key(ReportStaff, map[string]string{"email": email})
	report, err := cache.GetOrCompute(ctx, s.cache, key, 0, func(ctx context.Context) (*StaffReport, error) {
		assigned := query.EqFold("Assigned_Email", email)
		report := &StaffReport{AssignedEmail: email}
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			report.ByStatus, err = s.analytics.GroupCount(gctx, repository.ByStatus, []query.Predicate{assigned})
			return err
		})
		g.Go(func() error {
			var err error
			report.ByPriority, err = s.analytics.GroupCount(gctx, repository.ByPriority, []query.Predicate{assigned, openPredicate()})
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		for _, b := range report.ByStatus {
			report.TotalTickets += b.Count
		}
		for _, b := range report.ByPriority {
			report.OpenTickets += b.Count
		}
		return report, nil
	})
	if err != nil {
		return nil, s.reportError(ReportStaff, err)
	}
	return report, nil
}

// ClearCache drops every memoized report.
func (s *AnalyticsService) ClearCache(ctx context.Context) error {
	if err := s.cache.Clear(ctx); err != nil {
		return apperrors.NewStoreFailure(err)
	}
	s.logger.Info("analytics cache cleared")
	return nil
}

func (s *AnalyticsService) reportError(name string, err error) error {
	s.logger.Warn("report failed", zap.String("report", name), zap.Error(err))
	return storeError(err)
}
