package repository

import (
	"fmt"
	"strings"

	"github.com/spec-kit/helpdesk-service/internal/query"
)

const ticketView = "v_ticket_master_expanded"

// ticketColumns is the scan order of scanTicket.
const ticketColumns = `ticket_id, subject, ticket_body, ticket_status_id, ticket_status_label,
       severity_id, priority_level, site_id, site_label, asset_id, asset_label,
       ticket_category_id, ticket_category_label, ticket_contact_name, ticket_contact_email,
       assigned_name, assigned_email, assigned_vendor_id, assigned_vendor_name, resolution,
       version, created_date, closed_date, last_modified, last_modified_by`

// sqlBuilder renders query plans with positional placeholders.
type sqlBuilder struct {
	args []any
}

func (b *sqlBuilder) bind(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *sqlBuilder) where(preds []query.Predicate) string {
	if len(preds) == 0 {
		return ""
	}
	clauses := make([]string, 0, len(preds))
	for _, p := range preds {
		clauses = append(clauses, b.predicate(p))
	}
	return " WHERE " + strings.Join(clauses, " AND ")
}

func (b *sqlBuilder) predicate(p query.Predicate) string {
	switch p.Op {
	case query.OpNever:
		return "FALSE"
	case query.OpOr:
		if len(p.Any) == 0 {
			return "FALSE"
		}
		alts := make([]string, 0, len(p.Any))
		for _, sub := range p.Any {
			alts = append(alts, b.predicate(sub))
		}
		return "(" + strings.Join(alts, " OR ") + ")"
	}

	f, ok := query.Lookup(p.Field)
	if !ok {
		return "FALSE"
	}
	col := f.Column
	if p.Op == query.OpIsNull {
		return col + " IS NULL"
	}
	if len(p.Values) == 0 {
		return "FALSE"
	}

	switch p.Op {
	case query.OpEq:
		return fmt.Sprintf("%s = %s", col, b.bind(p.Values[0]))
	case query.OpIn:
		placeholders := make([]string, len(p.Values))
		for i, v := range p.Values {
			placeholders[i] = b.bind(v)
		}
		return fmt.Sprintf("%s IN (%s)", col, strings.Join(placeholders, ","))
	case query.OpGte:
		return fmt.Sprintf("%s >= %s", col, b.bind(p.Values[0]))
	case query.OpLte:
		return fmt.Sprintf("%s <= %s", col, b.bind(p.Values[0]))
	case query.OpContains:
		term, _ := p.Values[0].(string)
		return fmt.Sprintf(`%s ILIKE %s ESCAPE '\'`, col, b.bind("%"+query.EscapeLike(term)+"%"))
	case query.OpEqFold:
		v, _ := p.Values[0].(string)
		return fmt.Sprintf("LOWER(TRIM(%s)) = %s", col, b.bind(strings.ToLower(strings.TrimSpace(v))))
	}
	return "FALSE"
}

func orderBy(order []query.Order) string {
	if len(order) == 0 {
		return ""
	}
	keys := make([]string, 0, len(order))
	for _, o := range order {
		f, ok := query.Lookup(o.Field)
		if !ok {
			continue
		}
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		keys = append(keys, f.Column+" "+dir)
	}
	if len(keys) == 0 {
		return ""
	}
	return " ORDER BY " + strings.Join(keys, ", ")
}

// renderFind renders a paged select over the expanded view.
func renderFind(plan query.Plan) (string, []any) {
	var b sqlBuilder
	sql := fmt.Sprintf("SELECT %s FROM %s%s%s LIMIT %d OFFSET %d",
		ticketColumns, ticketView, b.where(plan.Predicates), orderBy(plan.Order), plan.Limit, plan.Offset)
	return sql, b.args
}

// renderCount renders the unpaged count for the same predicates.
func renderCount(preds []query.Predicate) (string, []any) {
	var b sqlBuilder
	sql := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", ticketView, b.where(preds))
	return sql, b.args
}
