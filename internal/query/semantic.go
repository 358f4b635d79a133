package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// Canonical status id sets. Every status synonym resolves through this one
// table.
var (
	OpenStatusIDs   = []int64{domain.StatusOpen, domain.StatusInProgress, domain.StatusWaiting, domain.StatusEscalated, domain.StatusPending, domain.StatusScheduled}
	ClosedStatusIDs = []int64{domain.StatusClosed}
)

var statusTerms = map[string][]int64{
	"open":        OpenStatusIDs,
	"closed":      ClosedStatusIDs,
	"resolved":    ClosedStatusIDs,
	"in_progress": {domain.StatusInProgress, domain.StatusEscalated},
	"progress":    {domain.StatusInProgress, domain.StatusEscalated},
	"waiting":     {domain.StatusWaiting},
	"pending":     {domain.StatusPending},
}

var priorityNames = map[string]string{
	"critical": "Critical",
	"high":     "High",
	"medium":   "Medium",
	"low":      "Low",
}

var priorityLevelIDs = map[string]int64{
	"Critical": domain.SeverityCritical,
	"High":     domain.SeverityHigh,
	"Medium":   domain.SeverityMedium,
	"Low":      domain.SeverityLow,
}

// IsClosedStatus reports whether id is a terminal status.
func IsClosedStatus(id int) bool {
	for _, closed := range ClosedStatusIDs {
		if int64(id) == closed {
			return true
		}
	}
	return false
}

// PriorityLevelID maps a priority name ("high", "High") to its severity id.
func PriorityLevelID(name string) (int64, bool) {
	label, ok := priorityNames[normalizeTerm(name)]
	if !ok {
		return 0, false
	}
	id, ok := priorityLevelIDs[label]
	return id, ok
}

// Criterion is one field filter. Value is a scalar or a []any meaning IN.
type Criterion struct {
	Field string
	Value any
}

// FilterCriteria is an ordered list of field filters.
type FilterCriteria []Criterion

// Translate rewrites friendly filter keys to concrete fields and id sets.
// Unrecognized keys and values pass through unchanged. Keys are processed
// in sorted order so the output is deterministic.
func Translate(raw map[string]any) FilterCriteria {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(FilterCriteria, 0, len(keys))
	for _, key := range keys {
		value := raw[key]
		switch strings.ToLower(key) {
		case "status", "ticket_status":
			out = append(out, Criterion{Field: "Ticket_Status_ID", Value: resolveEach(value, resolveStatus)})
		case "priority", "priority_level", "severity":
			out = append(out, Criterion{Field: "Severity_ID", Value: resolveEach(value, resolvePriority)})
		case "assignee", "assignee_email":
			out = append(out, Criterion{Field: "Assigned_Email", Value: value})
		case "assignee_name":
			out = append(out, Criterion{Field: "Assigned_Name", Value: value})
		case "category":
			out = append(out, Criterion{Field: "Ticket_Category_ID", Value: value})
		case "site":
			out = append(out, Criterion{Field: "Site_ID", Value: value})
		default:
			out = append(out, Criterion{Field: key, Value: value})
		}
	}
	return out
}

func resolveStatus(v any) []any {
	s, ok := v.(string)
	if !ok {
		return []any{v}
	}
	if ids, ok := statusTerms[normalizeTerm(s)]; ok {
		return int64s(ids)
	}
	return []any{s}
}

func resolvePriority(v any) []any {
	s, ok := v.(string)
	if !ok {
		return []any{v}
	}
	if id, ok := PriorityLevelID(s); ok {
		return []any{id}
	}
	return []any{s}
}

// resolveEach maps a scalar or list element-wise and flattens the result,
// dropping duplicates while keeping first occurrence order. A scalar that
// resolves to exactly one value stays scalar.
func resolveEach(v any, resolve func(any) []any) any {
	items, isList := AsList(v)
	if !isList {
		items = []any{v}
	}
	seen := map[string]bool{}
	var out []any
	for _, item := range items {
		for _, r := range resolve(item) {
			k := fmt.Sprintf("%T:%v", r, r)
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, r)
		}
	}
	if !isList && len(out) == 1 {
		return out[0]
	}
	return out
}

// AsList reports whether v is a list value and returns its elements.
func AsList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	case []int:
		out := make([]any, len(l))
		for i, n := range l {
			out[i] = int64(n)
		}
		return out, true
	case []int64:
		return int64s(l), true
	case []float64:
		out := make([]any, len(l))
		for i, n := range l {
			out[i] = n
		}
		return out, true
	}
	return nil, false
}

func int64s(ids []int64) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

func normalizeTerm(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

// SemanticErrorKind distinguishes strict translation failures.
type SemanticErrorKind int

const (
	SemanticAmbiguous SemanticErrorKind = iota
	SemanticUnknown
)

// SemanticError is returned by TranslateStrict when a term does not resolve
// to exactly one id.
type SemanticError struct {
	Kind       SemanticErrorKind
	Field      string
	Value      any
	Candidates []int64
}

func (e *SemanticError) Error() string {
	if e.Kind == SemanticAmbiguous {
		return fmt.Sprintf("%s value %v is ambiguous: matches %v", e.Field, e.Value, e.Candidates)
	}
	return fmt.Sprintf("%s value %v has no mapping", e.Field, e.Value)
}

// TranslateStrict resolves a status or priority term to a single id. Numeric
// values pass through; terms naming several ids or none fail.
func TranslateStrict(field string, value any) (int64, error) {
	var resolve func(any) ([]int64, bool)
	switch strings.ToLower(field) {
	case "status", "ticket_status", "ticket_status_id":
		resolve = strictStatus
	case "priority", "priority_level", "severity", "severity_id":
		resolve = strictPriority
	default:
		return 0, &SemanticError{Kind: SemanticUnknown, Field: field, Value: value}
	}

	items, isList := AsList(value)
	if !isList {
		items = []any{value}
	}
	var ids []int64
	seen := map[int64]bool{}
	for _, item := range items {
		resolved, ok := resolve(item)
		if !ok {
			return 0, &SemanticError{Kind: SemanticUnknown, Field: field, Value: item}
		}
		for _, id := range resolved {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	switch len(ids) {
	case 0:
		return 0, &SemanticError{Kind: SemanticUnknown, Field: field, Value: value}
	case 1:
		return ids[0], nil
	}
	return 0, &SemanticError{Kind: SemanticAmbiguous, Field: field, Value: value, Candidates: ids}
}

func strictStatus(v any) ([]int64, bool) {
	if n, ok := toInt64(v); ok {
		return []int64{n.(int64)}, true
	}
	s, ok := v.(string)
	if !ok {
		return nil, false
	}
	ids, ok := statusTerms[normalizeTerm(s)]
	return ids, ok
}

func strictPriority(v any) ([]int64, bool) {
	if n, ok := toInt64(v); ok {
		return []int64{n.(int64)}, true
	}
	s, ok := v.(string)
	if !ok {
		return nil, false
	}
	if id, ok := PriorityLevelID(s); ok {
		return []int64{id}, true
	}
	return nil, false
}
