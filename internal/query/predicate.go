package query

import (
	"sort"
	"strings"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// Op is a predicate operator.
type Op int

const (
	OpEq Op = iota
	OpIn
	OpIsNull
	OpGte
	OpLte
	// OpContains is a case-insensitive literal substring match.
	OpContains
	// OpEqFold is a case-insensitive equality match.
	OpEqFold
	OpOr
	// OpNever matches nothing. Filters whose value cannot be coerced to the
	// field type render to it.
	OpNever
)

// Predicate is one condition of a Plan. Values hold coerced field values.
type Predicate struct {
	Op     Op
	Field  string
	Values []any
	Any    []Predicate
}

// Order is one sort key.
type Order struct {
	Field string
	Desc  bool
}

// Plan is an executable, store-agnostic query over the expanded ticket view.
// All predicates are AND-combined.
type Plan struct {
	Predicates []Predicate
	Order      []Order
	Offset     int
	Limit      int
}

// Eq builds an equality predicate.
func Eq(field string, v any) Predicate { return Predicate{Op: OpEq, Field: field, Values: []any{v}} }

// In builds a membership predicate.
func In(field string, vs ...any) Predicate { return Predicate{Op: OpIn, Field: field, Values: vs} }

// IsNull builds a null check.
func IsNull(field string) Predicate { return Predicate{Op: OpIsNull, Field: field} }

// Gte builds a lower bound.
func Gte(field string, v any) Predicate { return Predicate{Op: OpGte, Field: field, Values: []any{v}} }

// Lte builds an upper bound.
func Lte(field string, v any) Predicate { return Predicate{Op: OpLte, Field: field, Values: []any{v}} }

// Contains builds a literal case-insensitive substring match.
func Contains(field, term string) Predicate {
	return Predicate{Op: OpContains, Field: field, Values: []any{term}}
}

// EqFold builds a case-insensitive equality match.
func EqFold(field, v string) Predicate {
	return Predicate{Op: OpEqFold, Field: field, Values: []any{v}}
}

// Or groups alternatives.
func Or(ps ...Predicate) Predicate { return Predicate{Op: OpOr, Any: ps} }

// Never matches no row.
func Never() Predicate { return Predicate{Op: OpNever} }

// Match evaluates the predicate against a ticket in memory.
func (p Predicate) Match(t *domain.Ticket) bool {
	switch p.Op {
	case OpOr:
		for _, sub := range p.Any {
			if sub.Match(t) {
				return true
			}
		}
		return false
	case OpNever:
		return false
	}

	f, ok := Lookup(p.Field)
	if !ok {
		return false
	}
	v := f.Value(t)
	if p.Op == OpIsNull {
		return v == nil
	}
	if v == nil || len(p.Values) == 0 {
		return false
	}

	switch p.Op {
	case OpEq:
		c, ok := compare(v, p.Values[0])
		return ok && c == 0
	case OpIn:
		for _, want := range p.Values {
			if c, ok := compare(v, want); ok && c == 0 {
				return true
			}
		}
		return false
	case OpGte:
		c, ok := compare(v, p.Values[0])
		return ok && c >= 0
	case OpLte:
		c, ok := compare(v, p.Values[0])
		return ok && c <= 0
	case OpContains:
		s, ok1 := v.(string)
		term, ok2 := p.Values[0].(string)
		return ok1 && ok2 && strings.Contains(strings.ToLower(s), strings.ToLower(term))
	case OpEqFold:
		s, ok1 := v.(string)
		want, ok2 := p.Values[0].(string)
		return ok1 && ok2 && strings.EqualFold(strings.TrimSpace(s), strings.TrimSpace(want))
	}
	return false
}

// Matches reports whether the ticket satisfies every predicate of the plan.
func (p Plan) Matches(t *domain.Ticket) bool {
	for _, pred := range p.Predicates {
		if !pred.Match(t) {
			return false
		}
	}
	return true
}

// SortTickets orders tickets in place. Nulls sort last ascending and first
// descending, as in PostgreSQL.
func SortTickets(tickets []domain.Ticket, order []Order) {
	type key struct {
		field Field
		desc  bool
	}
	keys := make([]key, 0, len(order))
	for _, o := range order {
		if f, ok := Lookup(o.Field); ok {
			keys = append(keys, key{field: f, desc: o.Desc})
		}
	}
	sort.SliceStable(tickets, func(i, j int) bool {
		for _, k := range keys {
			a, b := k.field.Value(&tickets[i]), k.field.Value(&tickets[j])
			switch {
			case a == nil && b == nil:
				continue
			case a == nil:
				return k.desc
			case b == nil:
				return !k.desc
			}
			c, ok := compare(a, b)
			if !ok || c == 0 {
				continue
			}
			if k.desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func compare(a, b any) (int, bool) {
	switch av := a.(type) {
	case int64:
		bv, ok := b.(int64)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return av.Compare(bv), true
	}
	return 0, false
}
