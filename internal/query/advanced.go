package query

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

const (
	DefaultAdvancedLimit = 100
	MaxAdvancedLimit     = 500
)

// Complexity buckets.
const (
	ComplexitySimple  = "simple"
	ComplexityMedium  = "medium"
	ComplexityComplex = "complex"
)

// DateRange bounds Created_Date, both ends inclusive.
type DateRange struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// SortField is one key of an advanced query sort.
type SortField struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

// AdvancedQuery is a multi-dimension ticket query with optional enrichment.
type AdvancedQuery struct {
	TextSearch         string         `json:"text_search,omitempty"`
	SearchFields       []string       `json:"search_fields,omitempty"`
	DateRange          *DateRange     `json:"date_range,omitempty"`
	CreatedAfter       *time.Time     `json:"created_after,omitempty"`
	CreatedBefore      *time.Time     `json:"created_before,omitempty"`
	StatusFilter       []any          `json:"status_filter,omitempty"`
	PriorityFilter     []any          `json:"priority_filter,omitempty"`
	AssignedTo         []string       `json:"assigned_to,omitempty"`
	UnassignedOnly     bool           `json:"unassigned_only,omitempty"`
	SiteFilter         []int          `json:"site_filter,omitempty"`
	AssetFilter        []int          `json:"asset_filter,omitempty"`
	CategoryFilter     []int          `json:"category_filter,omitempty"`
	ContactEmail       []string       `json:"contact_email,omitempty"`
	ContactName        string         `json:"contact_name,omitempty"`
	CustomFilters      map[string]any `json:"custom_filters,omitempty"`
	SortBy             []SortField    `json:"sort_by,omitempty"`
	Limit              int            `json:"limit,omitempty"`
	Offset             int            `json:"offset,omitempty"`
	IncludeMessages    bool           `json:"include_messages,omitempty"`
	IncludeAttachments bool           `json:"include_attachments,omitempty"`
	IncludeUserContext bool           `json:"include_user_context,omitempty"`
}

// Normalize validates the query strictly and fills defaults. Unknown field
// names are rejected, never ignored. A limit above MaxAdvancedLimit is
// clamped. Canonical names are written to fresh slices, so slices shared
// with the caller are left untouched.
func (q *AdvancedQuery) Normalize() error {
	errs := apperrors.FieldErrors{}

	if len(q.SearchFields) == 0 {
		q.SearchFields = SearchFields
	}
	q.SearchFields = append([]string(nil), q.SearchFields...)
	for i, name := range q.SearchFields {
		f, ok := Lookup(name)
		if !ok || !f.Text {
			errs.Add("search_fields", apperrors.CodeUnknownField, fmt.Sprintf("%q is not a searchable field", name))
			continue
		}
		q.SearchFields[i] = f.Name
	}

	for name := range q.CustomFilters {
		if _, ok := Lookup(name); !ok {
			errs.Add("custom_filters."+name, apperrors.CodeUnknownField, fmt.Sprintf("%q is not a queryable field", name))
		}
	}

	if len(q.SortBy) == 0 {
		q.SortBy = []SortField{{Field: "Created_Date", Direction: "desc"}}
	}
	q.SortBy = append([]SortField(nil), q.SortBy...)
	for i, s := range q.SortBy {
		f, ok := Lookup(s.Field)
		if !ok {
			errs.Add("sort_by", apperrors.CodeUnknownField, fmt.Sprintf("%q is not a sortable field", s.Field))
			continue
		}
		dir := strings.ToLower(strings.TrimSpace(s.Direction))
		switch dir {
		case "":
			dir = "asc"
		case "asc", "desc":
		default:
			errs.Add("sort_by", apperrors.CodeInvalidField, fmt.Sprintf("direction %q must be asc or desc", s.Direction))
			continue
		}
		q.SortBy[i] = SortField{Field: f.Name, Direction: dir}
	}

	if q.DateRange != nil && q.DateRange.Start != nil && q.DateRange.End != nil && q.DateRange.Start.After(*q.DateRange.End) {
		errs.Add("date_range", apperrors.CodeInvalidField, "start must not be after end")
	}

	if q.Offset < 0 {
		errs.Add("offset", apperrors.CodeInvalidField, "offset must be zero or positive")
	}
	switch {
	case q.Limit <= 0:
		q.Limit = DefaultAdvancedLimit
	case q.Limit > MaxAdvancedLimit:
		q.Limit = MaxAdvancedLimit
	}

	if len(errs) > 0 {
		return apperrors.NewFieldValidationError("invalid advanced query", errs)
	}
	return nil
}

// Plan renders the query into a store plan. Each non-empty dimension adds
// exactly one predicate. Call Normalize first.
func (q *AdvancedQuery) Plan() Plan {
	var preds []Predicate

	if text := strings.TrimSpace(q.TextSearch); text != "" {
		preds = append(preds, TextPredicate(text, q.SearchFields))
	}
	if q.DateRange != nil {
		if q.DateRange.Start != nil {
			preds = append(preds, Gte("Created_Date", q.DateRange.Start.UTC()))
		}
		if q.DateRange.End != nil {
			preds = append(preds, Lte("Created_Date", q.DateRange.End.UTC()))
		}
	}
	if q.CreatedAfter != nil {
		preds = append(preds, Gte("Created_Date", q.CreatedAfter.UTC()))
	}
	if q.CreatedBefore != nil {
		preds = append(preds, Lte("Created_Date", q.CreatedBefore.UTC()))
	}
	if len(q.StatusFilter) > 0 {
		preds = append(preds, statusGroup(q.StatusFilter))
	}
	if len(q.PriorityFilter) > 0 {
		preds = append(preds, priorityGroup(q.PriorityFilter))
	}
	if len(q.AssignedTo) > 0 {
		preds = append(preds, In("Assigned_Email", stringsToAny(q.AssignedTo)...))
	}
	if q.UnassignedOnly {
		preds = append(preds, IsNull("Assigned_Email"))
	}
	if len(q.SiteFilter) > 0 {
		preds = append(preds, In("Site_ID", intsToAny(q.SiteFilter)...))
	}
	if len(q.AssetFilter) > 0 {
		preds = append(preds, In("Asset_ID", intsToAny(q.AssetFilter)...))
	}
	if len(q.CategoryFilter) > 0 {
		preds = append(preds, In("Ticket_Category_ID", intsToAny(q.CategoryFilter)...))
	}
	if len(q.ContactEmail) > 0 {
		preds = append(preds, In("Ticket_Contact_Email", stringsToAny(q.ContactEmail)...))
	}
	if name := strings.TrimSpace(q.ContactName); name != "" {
		preds = append(preds, Contains("Ticket_Contact_Name", name))
	}
	if len(q.CustomFilters) > 0 {
		names := make([]string, 0, len(q.CustomFilters))
		for name := range q.CustomFilters {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if f, ok := Lookup(name); ok {
				preds = append(preds, criterionPredicate(f, q.CustomFilters[name]))
			}
		}
	}

	order := make([]Order, 0, len(q.SortBy)+1)
	for _, s := range q.SortBy {
		order = append(order, Order{Field: s.Field, Desc: s.Direction == "desc"})
	}

	return Plan{
		Predicates: preds,
		Order:      withTiebreaker(order),
		Offset:     q.Offset,
		Limit:      q.Limit,
	}
}

// Enriched reports whether any enrichment flag is set.
func (q *AdvancedQuery) Enriched() bool {
	return q.IncludeMessages || q.IncludeAttachments || q.IncludeUserContext
}

// Complexity classifies the query from its predicate count: free text
// weighs 2, each predicate 1, any enrichment 3.
func (q *AdvancedQuery) Complexity(predicateCount int) string {
	score := predicateCount
	if strings.TrimSpace(q.TextSearch) != "" {
		score += 2
	}
	if q.Enriched() {
		score += 3
	}
	switch {
	case score <= 3:
		return ComplexitySimple
	case score <= 7:
		return ComplexityMedium
	}
	return ComplexityComplex
}

// statusGroup ORs ids, semantic terms and label fragments into one predicate.
func statusGroup(values []any) Predicate {
	var alts []Predicate
	for _, v := range values {
		if id, ok := toInt64(v); ok {
			alts = append(alts, Eq("Ticket_Status_ID", id))
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		if ids, ok := statusTerms[normalizeTerm(s)]; ok {
			alts = append(alts, In("Ticket_Status_ID", int64s(ids)...))
			continue
		}
		alts = append(alts, Contains("Ticket_Status_Label", s))
	}
	if len(alts) == 0 {
		return Never()
	}
	return Or(alts...)
}

func priorityGroup(values []any) Predicate {
	var alts []Predicate
	for _, v := range values {
		if id, ok := toInt64(v); ok {
			alts = append(alts, Eq("Severity_ID", id))
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		if id, ok := PriorityLevelID(s); ok {
			alts = append(alts, Eq("Severity_ID", id))
			continue
		}
		alts = append(alts, EqFold("Priority_Level", s))
	}
	if len(alts) == 0 {
		return Never()
	}
	return Or(alts...)
}

func stringsToAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func intsToAny(ns []int) []any {
	out := make([]any, len(ns))
	for i, n := range ns {
		out[i] = int64(n)
	}
	return out
}

// Aggregations are label counts over one result page.
type Aggregations struct {
	StatusBreakdown   map[string]int `json:"status_breakdown"`
	PriorityBreakdown map[string]int `json:"priority_breakdown"`
	SiteBreakdown     map[string]int `json:"site_breakdown"`
	CategoryBreakdown map[string]int `json:"category_breakdown"`
	TotalResults      int            `json:"total_results"`
}

// Aggregate counts the page's tickets per status, priority, site and
// category label. It returns nil for an empty page.
func Aggregate(tickets []domain.Ticket) *Aggregations {
	if len(tickets) == 0 {
		return nil
	}
	agg := &Aggregations{
		StatusBreakdown:   map[string]int{},
		PriorityBreakdown: map[string]int{},
		SiteBreakdown:     map[string]int{},
		CategoryBreakdown: map[string]int{},
		TotalResults:      len(tickets),
	}
	for i := range tickets {
		t := &tickets[i]
		agg.StatusBreakdown[labelOr(t.StatusLabel, "Unknown")]++
		agg.PriorityBreakdown[labelOr(t.PriorityLevel, "Medium")]++
		agg.SiteBreakdown[labelOr(t.SiteLabel, "Unknown")]++
		agg.CategoryBreakdown[labelOr(t.CategoryLabel, "Unknown")]++
	}
	return agg
}

// Completeness is the share of non-null Subject, Ticket_Body, Created_Date
// and Ticket_Status_Label cells across the page.
func Completeness(tickets []domain.Ticket) float64 {
	if len(tickets) == 0 {
		return 0
	}
	present := 0
	for i := range tickets {
		t := &tickets[i]
		if t.Subject != "" {
			present++
		}
		if t.Body != "" {
			present++
		}
		if !t.CreatedAt.IsZero() {
			present++
		}
		if t.StatusLabel != nil {
			present++
		}
	}
	return float64(present) / float64(len(tickets)*4)
}

// Diversity is the distinct status, priority and site label count over ten,
// capped at one.
func Diversity(tickets []domain.Ticket) float64 {
	if len(tickets) == 0 {
		return 0
	}
	statuses, priorities, sites := map[string]bool{}, map[string]bool{}, map[string]bool{}
	for i := range tickets {
		t := &tickets[i]
		if t.StatusLabel != nil && *t.StatusLabel != "" {
			statuses[*t.StatusLabel] = true
		}
		if t.PriorityLevel != nil && *t.PriorityLevel != "" {
			priorities[*t.PriorityLevel] = true
		}
		if t.SiteLabel != nil && *t.SiteLabel != "" {
			sites[*t.SiteLabel] = true
		}
	}
	score := float64(len(statuses)+len(priorities)+len(sites)) / 10
	if score > 1 {
		return 1
	}
	return score
}

func labelOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}
