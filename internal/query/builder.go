package query

import (
	"strings"
	"time"
)

const (
	DefaultSortField = "Ticket_ID"
	DefaultLimit     = 10
	MaxLimit         = 500
)

// ParseSort parses sort tokens of the form ["-"]field[" " ("asc"|"desc")].
// A trailing direction word wins over a leading "-". Tokens naming unknown
// fields or carrying a malformed direction are dropped.
func ParseSort(tokens []string) []Order {
	var out []Order
	for _, token := range tokens {
		if o, ok := parseSortToken(token); ok {
			out = append(out, o)
		}
	}
	return out
}

func parseSortToken(token string) (Order, bool) {
	token = strings.TrimSpace(token)
	desc := false
	if strings.HasPrefix(token, "-") {
		desc = true
		token = strings.TrimSpace(token[1:])
	}
	parts := strings.Fields(token)
	switch len(parts) {
	case 1:
	case 2:
		switch strings.ToLower(parts[1]) {
		case "asc":
			desc = false
		case "desc":
			desc = true
		default:
			return Order{}, false
		}
	default:
		return Order{}, false
	}
	f, ok := Lookup(parts[0])
	if !ok {
		return Order{}, false
	}
	return Order{Field: f.Name, Desc: desc}, true
}

// withTiebreaker appends a descending identifier key unless one is present,
// so pages are stable across calls.
func withTiebreaker(order []Order) []Order {
	for _, o := range order {
		if o.Field == DefaultSortField {
			return order
		}
	}
	return append(order, Order{Field: DefaultSortField, Desc: true})
}

// CriteriaPredicates turns filter criteria into predicates. Criteria on
// unknown fields are dropped; values that cannot be coerced to the field
// type produce a never-matching predicate.
func CriteriaPredicates(criteria FilterCriteria) []Predicate {
	var out []Predicate
	for _, c := range criteria {
		f, ok := Lookup(c.Field)
		if !ok {
			continue
		}
		out = append(out, criterionPredicate(f, c.Value))
	}
	return out
}

func criterionPredicate(f Field, value any) Predicate {
	if value == nil {
		return IsNull(f.Name)
	}
	if items, ok := AsList(value); ok {
		coerced := make([]any, 0, len(items))
		for _, item := range items {
			if v, ok := f.Coerce(item); ok {
				coerced = append(coerced, v)
			}
		}
		if len(coerced) == 0 {
			return Never()
		}
		return In(f.Name, coerced...)
	}
	v, ok := f.Coerce(value)
	if !ok {
		return Never()
	}
	return Eq(f.Name, v)
}

// BuildList assembles a listing plan. Missing or empty sort falls back to
// descending identifier order.
func BuildList(criteria FilterCriteria, sort []string, skip, limit int) Plan {
	order := ParseSort(sort)
	if len(order) == 0 {
		order = []Order{{Field: DefaultSortField, Desc: true}}
	}
	return Plan{
		Predicates: CriteriaPredicates(criteria),
		Order:      withTiebreaker(order),
		Offset:     normalizeSkip(skip),
		Limit:      normalizeLimit(limit),
	}
}

// SearchParams describes a free-text ticket search.
type SearchParams struct {
	Text string
	// Filters are semantic filter terms, see Translate.
	Filters        map[string]any
	User           string
	CreatedAfter   *time.Time
	CreatedBefore  *time.Time
	Days           *int
	SiteID         *int
	AssignedTo     string
	UnassignedOnly bool
	Sort           []string
	// Order is "newest" or "oldest"; used only when Sort is empty.
	Order string
	Skip  int
	Limit int
}

// SearchFields are matched by free-text search.
var SearchFields = []string{"Subject", "Ticket_Body"}

// TextPredicate matches term literally, case-insensitively, in any of fields.
func TextPredicate(term string, fields []string) Predicate {
	alts := make([]Predicate, 0, len(fields))
	for _, name := range fields {
		alts = append(alts, Contains(name, term))
	}
	return Or(alts...)
}

// BuildSearch assembles a search plan. now anchors the Days look-back.
func BuildSearch(p SearchParams, now time.Time) Plan {
	var preds []Predicate

	if text := strings.TrimSpace(p.Text); text != "" {
		preds = append(preds, TextPredicate(text, SearchFields))
	}
	if user := strings.TrimSpace(p.User); user != "" {
		preds = append(preds, Or(
			EqFold("Ticket_Contact_Name", user),
			EqFold("Ticket_Contact_Email", user),
			EqFold("Assigned_Name", user),
			EqFold("Assigned_Email", user),
		))
	}

	filters := make(map[string]any, len(p.Filters)+2)
	for k, v := range p.Filters {
		filters[k] = v
	}
	if p.SiteID != nil {
		filters["Site_ID"] = *p.SiteID
	}
	if assigned := strings.TrimSpace(p.AssignedTo); assigned != "" {
		filters["Assigned_Email"] = assigned
	}
	preds = append(preds, CriteriaPredicates(Translate(filters))...)

	if p.UnassignedOnly {
		preds = append(preds, IsNull("Assigned_Email"))
	}
	if p.CreatedAfter != nil {
		preds = append(preds, Gte("Created_Date", p.CreatedAfter.UTC()))
	} else if p.Days != nil && *p.Days >= 0 {
		preds = append(preds, Gte("Created_Date", now.UTC().AddDate(0, 0, -*p.Days)))
	}
	if p.CreatedBefore != nil {
		preds = append(preds, Lte("Created_Date", p.CreatedBefore.UTC()))
	}

	order := ParseSort(p.Sort)
	if len(p.Sort) == 0 || len(order) == 0 {
		order = []Order{{Field: "Created_Date", Desc: !strings.EqualFold(p.Order, "oldest")}}
	}

	return Plan{
		Predicates: preds,
		Order:      withTiebreaker(order),
		Offset:     normalizeSkip(p.Skip),
		Limit:      normalizeLimit(p.Limit),
	}
}

// EscapeLike escapes LIKE metacharacters so user input matches literally
// under ESCAPE '\'.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// NormalizePage returns the offset and limit a plan would use for skip and
// limit.
func NormalizePage(skip, limit int) (int, int) {
	return normalizeSkip(skip), normalizeLimit(limit)
}

func normalizeSkip(skip int) int {
	if skip < 0 {
		return 0
	}
	return skip
}

func normalizeLimit(limit int) int {
	switch {
	case limit < 1:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}
