package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

func TestParseSort(t *testing.T) {
	tests := []struct {
		name   string
		tokens []string
		want   []Order
	}{
		{"plain ascending", []string{"Subject"}, []Order{{Field: "Subject"}}},
		{"leading dash", []string{"-Created_Date"}, []Order{{Field: "Created_Date", Desc: true}}},
		{"trailing word", []string{"Created_Date desc"}, []Order{{Field: "Created_Date", Desc: true}}},
		{"trailing word wins", []string{"-Created_Date asc"}, []Order{{Field: "Created_Date"}}},
		{"case insensitive field", []string{"site_id DESC"}, []Order{{Field: "Site_ID", Desc: true}}},
		{"unknown dropped", []string{"Nope", "-Ticket_ID"}, []Order{{Field: "Ticket_ID", Desc: true}}},
		{"bad direction dropped", []string{"Subject sideways"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSort(tt.tokens))
		})
	}
}

func TestBuildListDefaults(t *testing.T) {
	plan := BuildList(nil, []string{"Bogus"}, -3, 0)
	assert.Equal(t, []Order{{Field: "Ticket_ID", Desc: true}}, plan.Order)
	assert.Equal(t, 0, plan.Offset)
	assert.Equal(t, DefaultLimit, plan.Limit)
	assert.Empty(t, plan.Predicates)
}

func TestBuildListAppendsTiebreaker(t *testing.T) {
	plan := BuildList(nil, []string{"-Created_Date"}, 0, 10)
	assert.Equal(t, []Order{{Field: "Created_Date", Desc: true}, {Field: "Ticket_ID", Desc: true}}, plan.Order)
}

func TestBuildListPredicates(t *testing.T) {
	criteria := FilterCriteria{
		{Field: "Ticket_Status_ID", Value: []any{int64(1), float64(2), "x"}},
		{Field: "Site_ID", Value: "2"},
		{Field: "Severity_ID", Value: "urgent"},
		{Field: "Assigned_Email", Value: nil},
		{Field: "NotAColumn", Value: 1},
	}
	plan := BuildList(criteria, nil, 0, 10)
	require.Len(t, plan.Predicates, 4)
	assert.Equal(t, In("Ticket_Status_ID", int64(1), int64(2)), plan.Predicates[0])
	assert.Equal(t, Eq("Site_ID", int64(2)), plan.Predicates[1])
	assert.Equal(t, Never(), plan.Predicates[2])
	assert.Equal(t, IsNull("Assigned_Email"), plan.Predicates[3])
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\% off\_`, EscapeLike("50% off_"))
	assert.Equal(t, `a\\b`, EscapeLike(`a\b`))
	assert.Equal(t, "plain", EscapeLike("plain"))
}

func TestBuildSearch(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	days := 7
	site := 3
	plan := BuildSearch(SearchParams{
		Text:           "  printer  ",
		User:           "Alice@Example.com",
		Filters:        map[string]any{"status": "closed"},
		Days:           &days,
		SiteID:         &site,
		UnassignedOnly: true,
		Order:          "oldest",
		Limit:          5000,
	}, now)

	require.Len(t, plan.Predicates, 6)
	assert.Equal(t, TextPredicate("printer", SearchFields), plan.Predicates[0])
	assert.Equal(t, OpOr, plan.Predicates[1].Op)
	assert.Len(t, plan.Predicates[1].Any, 4)
	assert.Equal(t, Eq("Site_ID", int64(3)), plan.Predicates[2])
	assert.Equal(t, Eq("Ticket_Status_ID", int64(3)), plan.Predicates[3])
	assert.Equal(t, IsNull("Assigned_Email"), plan.Predicates[4])
	assert.Equal(t, Gte("Created_Date", now.AddDate(0, 0, -7)), plan.Predicates[5])
	assert.Equal(t, []Order{{Field: "Created_Date"}, {Field: "Ticket_ID", Desc: true}}, plan.Order)
	assert.Equal(t, MaxLimit, plan.Limit)
}

func TestBuildSearchCreatedAfterBeatsDays(t *testing.T) {
	after := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	days := 1
	plan := BuildSearch(SearchParams{CreatedAfter: &after, Days: &days}, time.Now())
	require.Len(t, plan.Predicates, 1)
	assert.Equal(t, Gte("Created_Date", after), plan.Predicates[0])
	assert.Equal(t, "Created_Date", plan.Order[0].Field)
	assert.True(t, plan.Order[0].Desc)
}

func TestSearchMatchesLiterally(t *testing.T) {
	tickets := []domain.Ticket{
		{ID: 1, Subject: "Get 50% off_ today"},
		{ID: 2, Subject: "Get 50 percent off now"},
		{ID: 3, Subject: "other", Body: "the 50% OFF_ coupon"},
	}
	plan := BuildSearch(SearchParams{Text: "50% off_"}, time.Now())
	var matched []int64
	for i := range tickets {
		if plan.Matches(&tickets[i]) {
			matched = append(matched, tickets[i].ID)
		}
	}
	assert.Equal(t, []int64{1, 3}, matched)
}

func TestSortTicketsNullsFollowPostgres(t *testing.T) {
	one, two := 1, 2
	tickets := []domain.Ticket{{ID: 1}, {ID: 2, SiteID: &two}, {ID: 3, SiteID: &one}}

	SortTickets(tickets, []Order{{Field: "Site_ID"}})
	assert.Equal(t, []int64{3, 2, 1}, ids(tickets))

	SortTickets(tickets, []Order{{Field: "Site_ID", Desc: true}})
	assert.Equal(t, []int64{1, 2, 3}, ids(tickets))
}

func ids(tickets []domain.Ticket) []int64 {
	out := make([]int64, len(tickets))
	for i := range tickets {
		out[i] = tickets[i].ID
	}
	return out
}
