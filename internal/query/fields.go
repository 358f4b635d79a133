package query

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// Kind is the value type of a queryable field.
type Kind int

const (
	KindInt Kind = iota
	KindString
	KindTime
)

// Field describes one queryable column of the expanded ticket view.
type Field struct {
	Name   string
	Column string
	Kind   Kind
	// Text marks fields eligible for substring search.
	Text  bool
	Value func(t *domain.Ticket) any
}

var fields = []Field{
	{Name: "Ticket_ID", Column: "ticket_id", Kind: KindInt, Value: func(t *domain.Ticket) any { return t.ID }},
	{Name: "Subject", Column: "subject", Kind: KindString, Text: true, Value: func(t *domain.Ticket) any { return t.Subject }},
	{Name: "Ticket_Body", Column: "ticket_body", Kind: KindString, Text: true, Value: func(t *domain.Ticket) any { return t.Body }},
	{Name: "Ticket_Status_ID", Column: "ticket_status_id", Kind: KindInt, Value: func(t *domain.Ticket) any { return int64(t.StatusID) }},
	{Name: "Ticket_Status_Label", Column: "ticket_status_label", Kind: KindString, Text: true, Value: func(t *domain.Ticket) any { return str(t.StatusLabel) }},
	{Name: "Severity_ID", Column: "severity_id", Kind: KindInt, Value: func(t *domain.Ticket) any { return num(t.SeverityID) }},
	{Name: "Priority_Level", Column: "priority_level", Kind: KindString, Value: func(t *domain.Ticket) any { return str(t.PriorityLevel) }},
	{Name: "Site_ID", Column: "site_id", Kind: KindInt, Value: func(t *domain.Ticket) any { return num(t.SiteID) }},
	{Name: "Site_Label", Column: "site_label", Kind: KindString, Text: true, Value: func(t *domain.Ticket) any { return str(t.SiteLabel) }},
	{Name: "Asset_ID", Column: "asset_id", Kind: KindInt, Value: func(t *domain.Ticket) any { return num(t.AssetID) }},
	{Name: "Asset_Label", Column: "asset_label", Kind: KindString, Text: true, Value: func(t *domain.Ticket) any { return str(t.AssetLabel) }},
	{Name: "Ticket_Category_ID", Column: "ticket_category_id", Kind: KindInt, Value: func(t *domain.Ticket) any { return num(t.CategoryID) }},
	{Name: "Ticket_Category_Label", Column: "ticket_category_label", Kind: KindString, Text: true, Value: func(t *domain.Ticket) any { return str(t.CategoryLabel) }},
	{Name: "Ticket_Contact_Name", Column: "ticket_contact_name", Kind: KindString, Text: true, Value: func(t *domain.Ticket) any { return str(t.ContactName) }},
	{Name: "Ticket_Contact_Email", Column: "ticket_contact_email", Kind: KindString, Text: true, Value: func(t *domain.Ticket) any { return str(t.ContactEmail) }},
	{Name: "Assigned_Name", Column: "assigned_name", Kind: KindString, Text: true, Value: func(t *domain.Ticket) any { return str(t.AssignedName) }},
	{Name: "Assigned_Email", Column: "assigned_email", Kind: KindString, Text: true, Value: func(t *domain.Ticket) any { return str(t.AssignedEmail) }},
	{Name: "Assigned_Vendor_ID", Column: "assigned_vendor_id", Kind: KindInt, Value: func(t *domain.Ticket) any { return num(t.VendorID) }},
	{Name: "Assigned_Vendor_Name", Column: "assigned_vendor_name", Kind: KindString, Text: true, Value: func(t *domain.Ticket) any { return str(t.VendorName) }},
	{Name: "Resolution", Column: "resolution", Kind: KindString, Text: true, Value: func(t *domain.Ticket) any { return str(t.Resolution) }},
	{Name: "Version", Column: "version", Kind: KindInt, Value: func(t *domain.Ticket) any { return int64(t.Version) }},
	{Name: "Created_Date", Column: "created_date", Kind: KindTime, Value: func(t *domain.Ticket) any { return t.CreatedAt }},
	{Name: "Closed_Date", Column: "closed_date", Kind: KindTime, Value: func(t *domain.Ticket) any { return ts(t.ClosedAt) }},
	{Name: "LastModified", Column: "last_modified", Kind: KindTime, Value: func(t *domain.Ticket) any { return ts(t.LastModified) }},
	{Name: "LastModifiedBy", Column: "last_modified_by", Kind: KindString, Value: func(t *domain.Ticket) any { return str(t.LastModifiedBy) }},
}

var fieldIndex = func() map[string]int {
	idx := make(map[string]int, len(fields))
	for i, f := range fields {
		idx[strings.ToLower(f.Name)] = i
	}
	return idx
}()

// Lookup resolves an external field name, case-insensitively.
func Lookup(name string) (Field, bool) {
	i, ok := fieldIndex[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Field{}, false
	}
	return fields[i], true
}

// Names lists the allow-listed field names in sorted order.
func Names() []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, f.Name)
	}
	sort.Strings(out)
	return out
}

// Coerce converts v to the field's canonical Go type: int64, string or
// time.Time. It reports false when v cannot represent a value of the field.
func (f Field) Coerce(v any) (any, bool) {
	switch f.Kind {
	case KindInt:
		return toInt64(v)
	case KindString:
		switch s := v.(type) {
		case string:
			return s, true
		case int, int64, float64:
			if n, ok := toInt64(s); ok {
				return strconv.FormatInt(n.(int64), 10), true
			}
		}
		return nil, false
	case KindTime:
		return toTime(v)
	}
	return nil, false
}

func toInt64(v any) (any, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.IsNaN(n) {
			return nil, false
		}
		return int64(n), true
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return nil, false
		}
		return parsed, true
	}
	return nil, false
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"}

// ParseTime accepts RFC 3339 timestamps and plain dates.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}

func toTime(v any) (any, bool) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), true
	case *time.Time:
		if t == nil {
			return nil, false
		}
		return t.UTC(), true
	case string:
		parsed, ok := ParseTime(t)
		if !ok {
			return nil, false
		}
		return parsed, true
	}
	return nil, false
}

func str(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func num(i *int) any {
	if i == nil {
		return nil
	}
	return int64(*i)
}

func ts(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
