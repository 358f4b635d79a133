package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/helpdesk-service/internal/cache"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/query"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

type countingAnalytics struct {
	repository.AnalyticsRepository
	calls atomic.Int32
}

func (c *countingAnalytics) GroupCount(ctx context.Context, g repository.Grouping, preds []query.Predicate) ([]domain.CountBucket, error) {
	c.calls.Add(1)
	return c.AnalyticsRepository.GroupCount(ctx, g, preds)
}

func newAnalyticsFixture(t *testing.T) (*fixture, *AnalyticsService, *countingAnalytics) {
	t.Helper()
	f := newFixture(t)
	counting := &countingAnalytics{AnalyticsRepository: f.repos.Analytics}
	repos := f.repos
	repos.Analytics = counting

	c := cache.New(cache.Options{Enabled: true, DefaultTTL: 5 * time.Minute, Clock: f.clock, Logger: zaptest.NewLogger(t)})
	t.Cleanup(c.Close)
	svc := NewAnalyticsService(AnalyticsDependencies{
		Repositories: repos,
		Cache:        c,
		Logger:       zaptest.NewLogger(t),
		Clock:        f.clock,
		SLADays:      2,
		TrendDays:    7,
	})
	return f, svc, counting
}

func TestReportsAreMemoizedUntilExpiry(t *testing.T) {
	f, svc, counting := newAnalyticsFixture(t)
	ctx := context.Background()
	f.create(t, map[string]any{"subject": "a", "site": 1})
	f.create(t, map[string]any{"subject": "b", "site": 1})
	f.create(t, map[string]any{"subject": "c", "site": 2})

	first, err := svc.OpenBySite(ctx)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "Headquarters", first[0].Label)
	assert.Equal(t, 2, first[0].Count)

	f.create(t, map[string]any{"subject": "d", "site": 2})
	second, err := svc.OpenBySite(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), counting.calls.Load())

	f.clock.Add(6 * time.Minute)
	third, err := svc.OpenBySite(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), counting.calls.Load())
	assert.Equal(t, 2, third[1].Count)

	require.NoError(t, svc.ClearCache(ctx))
	_, err = svc.OpenBySite(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(3), counting.calls.Load())
}

func TestSLABreachesAndTrend(t *testing.T) {
	f, svc, _ := newAnalyticsFixture(t)
	ctx := context.Background()
	f.create(t, map[string]any{"subject": "stale"})
	f.clock.Add(3 * 24 * time.Hour)
	f.create(t, map[string]any{"subject": "fresh"})

	report, err := svc.SLABreaches(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Days)
	assert.Equal(t, 1, report.Total)
	require.Len(t, report.Tickets, 1)
	assert.Equal(t, "stale", report.Tickets[0].Subject)

	trend, err := svc.Trend(ctx, 0)
	require.NoError(t, err)
	require.Len(t, trend, 7)
	total := 0
	for _, p := range trend {
		total += p.Count
	}
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, trend[6].Count)
	assert.Equal(t, 1, trend[3].Count)
}

func TestDayWindowsAreCapped(t *testing.T) {
	f, svc, _ := newAnalyticsFixture(t)
	ctx := context.Background()
	f.create(t, map[string]any{"subject": "today"})

	tests := []struct {
		name string
		days int
		want int
	}{
		{"default", 0, 7},
		{"within range", 30, 30},
		{"at cap", MaxReportDays, MaxReportDays},
		{"above cap", 5_000_000, MaxReportDays},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trend, err := svc.Trend(ctx, tt.days)
			require.NoError(t, err)
			assert.Len(t, trend, tt.want)
		})
	}

	report, err := svc.SLABreaches(ctx, 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, MaxReportDays, report.Days)
}

func TestStaffReport(t *testing.T) {
	f, svc, _ := newAnalyticsFixture(t)
	ctx := context.Background()
	f.create(t, map[string]any{"subject": "a", "assignee": "ops@example.com", "priority": 1})
	f.create(t, map[string]any{"subject": "b", "assignee": "OPS@example.com", "status": 3, "resolution": "done"})
	f.create(t, map[string]any{"subject": "c", "assignee": "other@example.com"})

	report, err := svc.Staff(ctx, " Ops@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", report.AssignedEmail)
	assert.Equal(t, 2, report.TotalTickets)
	assert.Equal(t, 1, report.OpenTickets)

	_, err = svc.Staff(ctx, "  ")
	fieldErrors(t, err)
}

func TestReferenceServiceCachesLookups(t *testing.T) {
	f := newFixture(t)
	svc := NewReferenceService(f.repos.References, cache.New(cache.Options{Enabled: true, Clock: f.clock}))
	ctx := context.Background()

	statuses, err := svc.Statuses(ctx)
	require.NoError(t, err)
	assert.Len(t, statuses, 8)

	site := 2
	assets, err := svc.Assets(ctx, &site)
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, "Label Printer", assets[0].Label)

	all, err := svc.Assets(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	f.store.AddVendor(domain.Vendor{ID: 2, Name: "Northwind Repairs"})
	vendors, err := svc.Vendors(ctx)
	require.NoError(t, err)
	require.Len(t, vendors, 2)
	assert.Equal(t, "Acme Field Services", vendors[0].Name)
}

func TestResolveTerms(t *testing.T) {
	svc := NewReferenceService(newFixture(t).repos.References, nil)

	id, err := svc.Resolve(" Status ", "resolved")
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)

	id, err = svc.Resolve("priority", "4")
	require.NoError(t, err)
	assert.Equal(t, int64(4), id)

	_, err = svc.Resolve("status", "open")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeAmbiguousSemantic))
	_, err = svc.Resolve("priority", "urgent")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnknownSemantic))
	_, err = svc.Resolve("status", "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))
	_, err = svc.Resolve("category", "network")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))
}
