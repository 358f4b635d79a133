package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/query"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

const (
	MaxLineLength  = 255
	MaxBlockLength = 8000
	truncateMarker = " [truncated]"
)

// immutableFields are silently stripped from write requests.
var immutableFields = map[string]bool{
	"Ticket_ID":      true,
	"Created_Date":   true,
	"Closed_Date":    true,
	"Version":        true,
	"LastModified":   true,
	"LastModifiedBy": true,
}

// updateAliases maps the short write vocabulary onto view fields.
var updateAliases = map[string]string{
	"subject":        "Subject",
	"body":           "Ticket_Body",
	"status":         "Ticket_Status_ID",
	"priority":       "Severity_ID",
	"severity":       "Severity_ID",
	"site":           "Site_ID",
	"site_id":        "Site_ID",
	"asset":          "Asset_ID",
	"asset_id":       "Asset_ID",
	"category":       "Ticket_Category_ID",
	"category_id":    "Ticket_Category_ID",
	"contact_name":   "Ticket_Contact_Name",
	"contact_email":  "Ticket_Contact_Email",
	"assignee":       "Assigned_Email",
	"assignee_email": "Assigned_Email",
	"assignee_name":  "Assigned_Name",
	"vendor_id":      "Assigned_Vendor_ID",
	"resolution":     "Resolution",
	"id":             "Ticket_ID",
	"version":        "Version",
	"created_date":   "Created_Date",
	"closed_date":    "Closed_Date",
}

var (
	markupPattern  = regexp.MustCompile(`<[^>]*>`)
	controlPattern = regexp.MustCompile("[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]")
	spacePattern   = regexp.MustCompile(`[ \t\f\v]+`)
	blankLines     = regexp.MustCompile(`\n{3,}`)
	emailPattern   = regexp.MustCompile(`^[A-Za-z0-9._%+'-]+@[A-Za-z0-9-]+(\.[A-Za-z0-9-]+)*\.[A-Za-z]{2,}$`)
)

type ticketValidator struct {
	references repository.ReferenceRepository
}

// canonicalize resolves request keys to writable fields. Immutable keys are
// dropped; unknown keys and alias collisions are reported in errs.
func (v *ticketValidator) canonicalize(raw map[string]any, errs apperrors.FieldErrors) map[string]any {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(raw))
	for _, key := range keys {
		field, ok := resolveUpdateKey(key)
		if !ok {
			errs.Add(key, apperrors.CodeUnknownField, fmt.Sprintf("%q is not an updatable field", key))
			continue
		}
		if immutableFields[field] {
			continue
		}
		if prior, seen := out[field]; seen && !reflect.DeepEqual(prior, raw[key]) {
			errs.Add(field, apperrors.CodeInvalidField, fmt.Sprintf("conflicting values given for %s", field))
			continue
		}
		out[field] = raw[key]
	}
	return out
}

func resolveUpdateKey(key string) (string, bool) {
	if alias, ok := updateAliases[strings.ToLower(strings.TrimSpace(key))]; ok {
		return alias, true
	}
	f, ok := query.Lookup(key)
	if !ok {
		return "", false
	}
	if immutableFields[f.Name] || repository.Writable(f.Name) {
		return f.Name, true
	}
	return "", false
}

// coerce validates each canonical value and converts it to the typed
// representation domain.Ticket.SetField accepts.
func (v *ticketValidator) coerce(ctx context.Context, fields map[string]any, errs apperrors.FieldErrors) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for field, raw := range fields {
		var (
			value any
			err   error
		)
		switch field {
		case "Subject":
			value, err = requiredLine(raw)
		case "Ticket_Body":
			value, err = bodyText(raw)
		case "Resolution":
			value, err = blockText(raw)
		case "Ticket_Contact_Name", "Assigned_Name":
			value, err = optionalLine(raw)
		case "Ticket_Contact_Email", "Assigned_Email":
			value, err = optionalEmail(raw)
		case "Ticket_Status_ID":
			value, err = v.status(ctx, raw)
		case "Severity_ID":
			value, err = severity(raw)
		case "Site_ID":
			value, err = v.reference(ctx, repository.RefSite, raw)
		case "Asset_ID":
			value, err = v.reference(ctx, repository.RefAsset, raw)
		case "Ticket_Category_ID":
			value, err = v.reference(ctx, repository.RefCategory, raw)
		case "Assigned_Vendor_ID":
			value, err = v.reference(ctx, repository.RefVendor, raw)
		default:
			errs.Add(field, apperrors.CodeUnknownField, fmt.Sprintf("%s is not writable", field))
			continue
		}
		if err != nil {
			var fe *fieldError
			if errors.As(err, &fe) {
				errs.Add(field, fe.code, fe.message)
				continue
			}
			return nil, err
		}
		out[field] = value
	}
	return out, nil
}

// fieldError is a per-field rejection; any other error aborts validation.
type fieldError struct {
	code    string
	message string
}

func (e *fieldError) Error() string { return e.message }

func reject(code, format string, args ...any) error {
	return &fieldError{code: code, message: fmt.Sprintf(format, args...)}
}

func (v *ticketValidator) status(ctx context.Context, raw any) (any, error) {
	if raw == nil {
		return nil, reject(apperrors.CodeInvalidField, "status is required")
	}
	id, err := semanticID("status", raw)
	if err != nil {
		return nil, err
	}
	exists, err := v.references.Exists(ctx, repository.RefStatus, int(id))
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, reject(apperrors.CodeReferenceNotFound, "status %d does not exist", id)
	}
	return int(id), nil
}

func severity(raw any) (any, error) {
	if raw == nil {
		return (*int)(nil), nil
	}
	id, err := semanticID("priority", raw)
	if err != nil {
		return nil, err
	}
	if id < domain.SeverityCritical || id > domain.SeverityLow {
		return nil, reject(apperrors.CodeInvalidField, "severity must be between %d and %d", domain.SeverityCritical, domain.SeverityLow)
	}
	n := int(id)
	return &n, nil
}

// semanticID accepts numeric ids or semantic terms that resolve to exactly
// one id.
func semanticID(field string, raw any) (int64, error) {
	if id, ok := integer(raw); ok {
		return id, nil
	}
	id, err := query.TranslateStrict(field, raw)
	if err == nil {
		return id, nil
	}
	var se *query.SemanticError
	if !errors.As(err, &se) {
		return 0, err
	}
	if se.Kind == query.SemanticAmbiguous {
		return 0, reject(apperrors.CodeAmbiguousSemantic, "%q matches several values %v; use an id", fmt.Sprint(raw), se.Candidates)
	}
	return 0, reject(apperrors.CodeUnknownSemantic, "%q is not a known %s", fmt.Sprint(raw), field)
}

func (v *ticketValidator) reference(ctx context.Context, table repository.ReferenceTable, raw any) (any, error) {
	if raw == nil {
		return (*int)(nil), nil
	}
	id, ok := integer(raw)
	if !ok {
		return nil, reject(apperrors.CodeInvalidField, "expected an integer id, got %v", raw)
	}
	exists, err := v.references.Exists(ctx, table, int(id))
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, reject(apperrors.CodeReferenceNotFound, "%s id %d does not exist", table, id)
	}
	n := int(id)
	return &n, nil
}

func integer(raw any) (int64, bool) {
	f, _ := query.Lookup("Ticket_ID")
	v, ok := f.Coerce(raw)
	if !ok {
		return 0, false
	}
	return v.(int64), true
}

func text(raw any) (string, error) {
	s, ok := raw.(string)
	if !ok {
		return "", reject(apperrors.CodeInvalidField, "expected a string, got %T", raw)
	}
	return s, nil
}

func requiredLine(raw any) (any, error) {
	if raw == nil {
		return nil, reject(apperrors.CodeInvalidField, "value is required")
	}
	s, err := text(raw)
	if err != nil {
		return nil, err
	}
	s = SanitizeLine(s)
	if s == "" {
		return nil, reject(apperrors.CodeInvalidField, "value must not be empty")
	}
	if utf8.RuneCountInString(s) > MaxLineLength {
		return nil, reject(apperrors.CodeTooLong, "value exceeds %d characters", MaxLineLength)
	}
	return s, nil
}

func optionalLine(raw any) (any, error) {
	if raw == nil {
		return (*string)(nil), nil
	}
	s, err := text(raw)
	if err != nil {
		return nil, err
	}
	s = SanitizeLine(s)
	if s == "" {
		return (*string)(nil), nil
	}
	if utf8.RuneCountInString(s) > MaxLineLength {
		return nil, reject(apperrors.CodeTooLong, "value exceeds %d characters", MaxLineLength)
	}
	return &s, nil
}

func optionalEmail(raw any) (any, error) {
	if raw == nil {
		return (*string)(nil), nil
	}
	s, err := text(raw)
	if err != nil {
		return nil, err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return (*string)(nil), nil
	}
	if len(s) > MaxLineLength || !emailPattern.MatchString(s) {
		return nil, reject(apperrors.CodeInvalidField, "%q is not a valid email address", s)
	}
	return &s, nil
}

func blockText(raw any) (any, error) {
	if raw == nil {
		return (*string)(nil), nil
	}
	s, err := text(raw)
	if err != nil {
		return nil, err
	}
	s = Truncate(SanitizeBlock(s), MaxBlockLength)
	if s == "" {
		return (*string)(nil), nil
	}
	return &s, nil
}

func bodyText(raw any) (any, error) {
	if raw == nil {
		return "", nil
	}
	s, err := text(raw)
	if err != nil {
		return nil, err
	}
	return Truncate(SanitizeBlock(s), MaxBlockLength), nil
}

// SanitizeLine strips markup and control characters and collapses all
// whitespace to single spaces.
func SanitizeLine(s string) string {
	s = markupPattern.ReplaceAllString(s, "")
	s = controlPattern.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

// SanitizeBlock is SanitizeLine for multi-line text: line breaks survive,
// at most one blank line in a row.
func SanitizeBlock(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = markupPattern.ReplaceAllString(s, "")
	s = controlPattern.ReplaceAllString(s, "")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spacePattern.ReplaceAllString(line, " "))
	}
	s = blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(s)
}

// Truncate caps s at max runes, marker included.
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	keep := max - utf8.RuneCountInString(truncateMarker)
	runes := []rune(s)
	return strings.TrimRightFunc(string(runes[:keep]), func(r rune) bool { return r == ' ' || r == '\n' }) + truncateMarker
}

// plan applies the status rules and diffs values against current. It
// returns only the fields whose value actually changes.
func (v *ticketValidator) plan(current *domain.Ticket, values map[string]any, now time.Time, errs apperrors.FieldErrors) []repository.FieldChange {
	wasClosed := query.IsClosedStatus(current.StatusID)

	if raw, ok := values["Ticket_Status_ID"]; ok {
		next := raw.(int)
		switch {
		case wasClosed && !query.IsClosedStatus(next):
			errs.Add("Ticket_Status_ID", apperrors.CodeIllegalTransition, "closed tickets cannot be reopened")
		case wasClosed:
			delete(values, "Ticket_Status_ID")
		default:
			if query.IsClosedStatus(next) {
				resolution := current.Resolution
				if r, ok := values["Resolution"]; ok {
					resolution = r.(*string)
				}
				if resolution == nil || strings.TrimSpace(*resolution) == "" {
					errs.Add("Resolution", apperrors.CodeResolutionRequired, "closing a ticket requires a resolution")
				} else {
					closedAt := now
					values["Closed_Date"] = &closedAt
				}
			}
		}
	}
	if r, ok := values["Resolution"]; ok && wasClosed && r.(*string) == nil {
		errs.Add("Resolution", apperrors.CodeResolutionRequired, "a closed ticket keeps its resolution")
	}
	if len(errs) > 0 {
		return nil
	}

	fields := make([]string, 0, len(values))
	for field := range values {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	changes := make([]repository.FieldChange, 0, len(fields))
	for _, field := range fields {
		old, _ := current.FieldValue(field)
		if reflect.DeepEqual(old, values[field]) {
			continue
		}
		changes = append(changes, repository.FieldChange{Field: field, Old: old, New: values[field]})
	}
	return changes
}
