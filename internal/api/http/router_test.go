package http

import (
	"bytes"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/cache"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/repository/memory"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

type respHeaders struct {
	etag string
}

type testServer struct {
	app    *fiber.App
	tokens *auth.TokenManager
	clock  *clock.Mock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zaptest.NewLogger(t)
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	repos := memory.NewSeeded().Repositories()
	metrics := observability.NewMetrics()

	analyticsCache := cache.New(cache.Options{Enabled: true, Clock: clk, Logger: logger, Metrics: metrics})
	t.Cleanup(analyticsCache.Close)

	tickets := service.NewTicketService(service.TicketDependencies{
		Repositories: repos,
		Dispatcher:   events.NewInMemoryDispatcher(),
		Logger:       logger,
		Metrics:      metrics,
		Clock:        clk,
	})
	advanced := service.NewAdvancedQueryService(service.AdvancedQueryDependencies{Repositories: repos, Logger: logger, Metrics: metrics, Clock: clk})
	analytics := service.NewAnalyticsService(service.AnalyticsDependencies{Repositories: repos, Cache: analyticsCache, Logger: logger, Clock: clk})
	tokens := auth.NewTokenManager("test-secret", 60, clk)

	app := NewApp("helpdesk-test")
	Setup(app, logger, time.Second, RouteConfig{
		Health:    handlers.NewHealthHandler("helpdesk-test", "test", "memory", nil),
		Tickets:   handlers.NewTicketsHandler(tickets, advanced),
		Reference: handlers.NewReferenceHandler(service.NewReferenceService(repos.References, analyticsCache)),
		Analytics: handlers.NewAnalyticsHandler(analytics),
		Actor:     auth.NewActorMiddleware(tokens, "system"),
		Metrics:   metrics,
	})
	return &testServer{app: app, tokens: tokens, clock: clk}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) (int, respHeaders, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &env))
	}
	return resp.StatusCode, respHeaders{etag: resp.Header.Get(fiber.HeaderETag)}, env
}


func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func TestTicketLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)

	status, hdr, env := s.do(t, "POST", "/tickets", map[string]any{
		"subject":  "Printer jam",
		"body":     "<b>Tray 2</b> is stuck",
		"site":     2,
		"priority": "high",
	}, nil)
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, `"1"`, hdr.etag)
	created := decode[dto.TicketResponse](t, env)
	assert.Equal(t, "Printer jam", created.Subject)
	assert.Equal(t, "Tray 2 is stuck", created.TicketBody)
	require.NotNil(t, created.SiteLabel)
	assert.Equal(t, "Warehouse", *created.SiteLabel)
	require.NotNil(t, created.LastModifiedBy)
	assert.Equal(t, "system", *created.LastModifiedBy)

	s.clock.Add(time.Hour)
	token, _, err := s.tokens.GenerateToken("agent.kim", "Kim")
	require.NoError(t, err)
	status, hdr, env = s.do(t, "PUT", "/tickets/1", map[string]any{
		"status":     "closed",
		"resolution": "Cleared the tray",
	}, map[string]string{"If-Match": `"1"`, "Authorization": "Bearer " + token})
	require.Equal(t, fiber.StatusOK, status, "%+v", env.Error)
	assert.Equal(t, `"2"`, hdr.etag)
	closed := decode[dto.TicketResponse](t, env)
	assert.Equal(t, 3, closed.TicketStatusID)
	require.NotNil(t, closed.ClosedDate)
	assert.Equal(t, s.clock.Now().UTC(), closed.ClosedDate.UTC())
	assert.Equal(t, "agent.kim", *closed.LastModifiedBy)

	status, _, env = s.do(t, "PUT", "/tickets/1", map[string]any{"subject": "stale write"},
		map[string]string{"If-Match": `"1"`})
	require.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, apperrors.CodeVersionConflict, env.Error.Code)
	assert.EqualValues(t, 2, env.Error.Details["current_version"])

	status, _, env = s.do(t, "GET", "/tickets/1/history", nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	history := decode[[]dto.TicketHistoryResponse](t, env)
	fields := make([]string, 0, len(history))
	for _, h := range history {
		fields = append(fields, h.Field)
		assert.Equal(t, "agent.kim", h.ChangedBy)
	}
	assert.ElementsMatch(t, []string{"Closed_Date", "Resolution", "Ticket_Status_ID"}, fields)
}

func TestUpdateRejectionsOverHTTP(t *testing.T) {
	s := newTestServer(t)
	status, _, _ := s.do(t, "POST", "/tickets", map[string]any{"subject": "VPN down"}, nil)
	require.Equal(t, fiber.StatusCreated, status)

	status, _, env := s.do(t, "PUT", "/tickets/1", map[string]any{"shoe_size": 42, "status": "closed"}, nil)
	require.Equal(t, fiber.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, apperrors.CodeValidationFailed, env.Error.Code)
	fields, ok := env.Error.Details["fields"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, fields, "shoe_size")
	assert.Contains(t, fields, "Resolution")

	status, _, env = s.do(t, "PUT", "/tickets/1", map[string]any{"subject": "x"}, map[string]string{"If-Match": "soon"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, apperrors.CodeValidationFailed, env.Error.Code)

	status, _, env = s.do(t, "PUT", "/tickets/42", map[string]any{"subject": "x"}, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, apperrors.CodeNotFound, env.Error.Code)

	status, _, env = s.do(t, "GET", "/tickets/abc", nil, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, apperrors.CodeValidationFailed, env.Error.Code)

	status, _, env = s.do(t, "GET", "/tickets/1", nil, map[string]string{"Authorization": "Bearer forged"})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, apperrors.CodeUnauthorized, env.Error.Code)

	status, _, env = s.do(t, "GET", "/no-such-route", nil, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, apperrors.CodeNotFound, env.Error.Code)
}

func TestListSearchAndQueryOverHTTP(t *testing.T) {
	s := newTestServer(t)
	for _, body := range []map[string]any{
		{"subject": "Printer offline", "site": 1},
		{"subject": "Laptop battery", "site": 1, "priority": "low"},
		{"subject": "Printer toner", "site": 2},
	} {
		s.clock.Add(time.Minute)
		status, _, _ := s.do(t, "POST", "/tickets", body, nil)
		require.Equal(t, fiber.StatusCreated, status)
	}

	status, _, env := s.do(t, "GET", "/tickets?site=1&status=open&limit=1", nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	page := decode[dto.TicketListResponse](t, env)
	assert.Equal(t, 2, page.TotalCount)
	assert.Equal(t, 1, page.Returned)
	assert.True(t, page.HasMore)
	assert.Equal(t, int64(2), page.Tickets[0].TicketID)

	status, _, env = s.do(t, "GET", "/tickets/search?q=printer&order=oldest", nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	page = decode[dto.TicketListResponse](t, env)
	require.Equal(t, 2, page.TotalCount)
	assert.Equal(t, int64(1), page.Tickets[0].TicketID)

	status, _, env = s.do(t, "POST", "/tickets/query", map[string]any{
		"text_search":      "printer",
		"site_filter":      []int{1, 2},
		"sort_by":          []map[string]string{{"field": "Ticket_ID", "direction": "desc"}},
		"include_messages": true,
	}, nil)
	require.Equal(t, fiber.StatusOK, status, "%+v", env.Error)
	result := decode[dto.QueryResultResponse](t, env)
	assert.Equal(t, 2, result.TotalCount)
	assert.Equal(t, int64(3), result.Tickets[0].TicketID)
	require.NotNil(t, result.Aggregations)
	assert.Equal(t, 1, result.Aggregations.SiteBreakdown["Warehouse"])

	status, _, env = s.do(t, "POST", "/tickets/query", map[string]any{"custom_filters": map[string]any{"Shoe_Size": 1}}, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, apperrors.CodeValidationFailed, env.Error.Code)
}

func TestMessagesReferenceAnalyticsAndProbes(t *testing.T) {
	s := newTestServer(t)
	status, _, _ := s.do(t, "POST", "/tickets", map[string]any{"subject": "Switch flapping", "site": 1}, nil)
	require.Equal(t, fiber.StatusCreated, status)

	status, _, env := s.do(t, "POST", "/tickets/1/messages", dto.CreateMessageRequest{Message: "Looking now", SenderCode: "agent"}, nil)
	require.Equal(t, fiber.StatusCreated, status, "%+v", env.Error)
	msg := decode[dto.TicketMessageResponse](t, env)
	assert.Equal(t, "Looking now", msg.Message)

	status, _, env = s.do(t, "GET", "/tickets/1/messages", nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, decode[[]dto.TicketMessageResponse](t, env), 1)

	status, _, env = s.do(t, "GET", "/tickets/1/attachments", nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, decode[[]dto.AttachmentResponse](t, env))

	status, _, env = s.do(t, "GET", "/reference/assets?site_id=2", nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	assets := decode[[]dto.ReferenceItem](t, env)
	require.Len(t, assets, 1)
	assert.Equal(t, "Label Printer", assets[0].Label)

	status, _, env = s.do(t, "GET", "/reference/vendors", nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	vendors := decode[[]dto.ReferenceItem](t, env)
	require.Len(t, vendors, 1)
	assert.Equal(t, "Acme Field Services", vendors[0].Label)

	status, _, env = s.do(t, "GET", "/analytics/open-by-site", nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	buckets := decode[[]dto.CountBucketResponse](t, env)
	require.Len(t, buckets, 1)
	assert.Equal(t, "Headquarters", buckets[0].Label)

	status, _, env = s.do(t, "GET", "/analytics/trend?days=3", nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	trend := decode[[]dto.TrendPointResponse](t, env)
	require.Len(t, trend, 3)
	assert.Equal(t, "2024-05-01", trend[2].Day)

	status, _, _ = s.do(t, "DELETE", "/analytics/cache", nil, nil)
	assert.Equal(t, fiber.StatusNoContent, status)

	status, _, env = s.do(t, "GET", "/analytics/staff", nil, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, apperrors.CodeValidationFailed, env.Error.Code)

	status, _, _ = s.do(t, "GET", "/health/live", nil, nil)
	assert.Equal(t, fiber.StatusOK, status)
	status, _, _ = s.do(t, "GET", "/health/ready", nil, nil)
	assert.Equal(t, fiber.StatusOK, status)

	req := httptest.NewRequest("GET", "/metrics", nil)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "helpdesk_")
}

func TestResolveSemanticTerms(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		path   string
		status int
		code   string
		id     int64
	}{
		{"closed", "/reference/resolve?field=status&value=closed", fiber.StatusOK, "", 3},
		{"priority name", "/reference/resolve?field=priority&value=High", fiber.StatusOK, "", 2},
		{"ambiguous", "/reference/resolve?field=status&value=in_progress", fiber.StatusUnprocessableEntity, apperrors.CodeAmbiguousSemantic, 0},
		{"unknown", "/reference/resolve?field=status&value=limbo", fiber.StatusUnprocessableEntity, apperrors.CodeUnknownSemantic, 0},
		{"bad field", "/reference/resolve?field=site&value=hq", fiber.StatusBadRequest, apperrors.CodeValidationFailed, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _, env := s.do(t, "GET", tt.path, nil, nil)
			require.Equal(t, tt.status, status)
			if tt.code != "" {
				require.NotNil(t, env.Error)
				assert.Equal(t, tt.code, env.Error.Code)
				return
			}
			assert.Equal(t, tt.id, decode[dto.ResolvedTermResponse](t, env).ID)
		})
	}

	_, _, env := s.do(t, "GET", "/reference/resolve?field=status&value=in_progress", nil, nil)
	require.NotNil(t, env.Error)
	assert.Equal(t, []any{float64(2), float64(5)}, env.Error.Details["candidates"])
}
