package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/query"
)

// FieldChange is one column assignment of an update, with the prior value
// kept for the audit trail.
type FieldChange struct {
	Field string
	Old   any
	New   any
}

// UpdateCommand is a conditional update: it applies only while the row is
// still at ExpectedVersion.
type UpdateCommand struct {
	TicketID        int64
	ExpectedVersion int
	Changes         []FieldChange
	ModifiedBy      string
	ModifiedAt      time.Time
}

// writableColumns maps updatable view fields to ticket table columns.
var writableColumns = map[string]string{
	"Subject":              "subject",
	"Ticket_Body":          "ticket_body",
	"Ticket_Status_ID":     "ticket_status_id",
	"Severity_ID":          "severity_id",
	"Site_ID":              "site_id",
	"Asset_ID":             "asset_id",
	"Ticket_Category_ID":   "ticket_category_id",
	"Ticket_Contact_Name":  "ticket_contact_name",
	"Ticket_Contact_Email": "ticket_contact_email",
	"Assigned_Name":        "assigned_name",
	"Assigned_Email":       "assigned_email",
	"Assigned_Vendor_ID":   "assigned_vendor_id",
	"Resolution":           "resolution",
	"Closed_Date":          "closed_date",
}

// Writable reports whether field can be assigned through UpdateFields.
func Writable(field string) bool {
	_, ok := writableColumns[field]
	return ok
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Find(ctx context.Context, plan query.Plan) ([]domain.Ticket, error)
	Count(ctx context.Context, preds []query.Predicate) (int, error)
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	Create(ctx context.Context, ticket *domain.Ticket) error
	// UpdateFields applies cmd atomically, bumps the version by one, and
	// writes one history row per change. It returns the new version.
	UpdateFields(ctx context.Context, cmd UpdateCommand) (int, error)
}

type ticketRepository struct {
	db DB
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db DB) TicketRepository {
	return &ticketRepository{db: db}
}

func (r *ticketRepository) Find(ctx context.Context, plan query.Plan) ([]domain.Ticket, error) {
	sql, args := renderFind(plan)
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) Count(ctx context.Context, preds []query.Predicate) (int, error) {
	sql, args := renderCount(preds)
	var total int
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE ticket_id = $1", ticketColumns, ticketView)
	ticket, err := scanTicket(r.db.QueryRow(ctx, sql, id))
	if err != nil {
		return nil, notFound(err)
	}
	return ticket, nil
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const sql = `
        INSERT INTO tickets (subject, ticket_body, ticket_status_id, severity_id, site_id, asset_id,
            ticket_category_id, ticket_contact_name, ticket_contact_email, assigned_name, assigned_email,
            assigned_vendor_id, resolution, version, created_date, last_modified, last_modified_by)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
        RETURNING ticket_id`
	return r.db.QueryRow(ctx, sql,
		ticket.Subject,
		ticket.Body,
		ticket.StatusID,
		ticket.SeverityID,
		ticket.SiteID,
		ticket.AssetID,
		ticket.CategoryID,
		ticket.ContactName,
		ticket.ContactEmail,
		ticket.AssignedName,
		ticket.AssignedEmail,
		ticket.VendorID,
		ticket.Resolution,
		ticket.Version,
		ticket.CreatedAt,
		ticket.LastModified,
		ticket.LastModifiedBy,
	).Scan(&ticket.ID)
}

func (r *ticketRepository) UpdateFields(ctx context.Context, cmd UpdateCommand) (version int, err error) {
	if len(cmd.Changes) == 0 {
		return 0, errors.New("update without changes")
	}

	sets := make([]string, 0, len(cmd.Changes)+3)
	args := make([]any, 0, len(cmd.Changes)+4)
	for _, ch := range cmd.Changes {
		col, ok := writableColumns[ch.Field]
		if !ok {
			return 0, fmt.Errorf("field %s is not writable", ch.Field)
		}
		args = append(args, ch.New)
		sets = append(sets, fmt.Sprintf("%s=$%d", col, len(args)))
	}
	args = append(args, cmd.ModifiedAt)
	sets = append(sets, fmt.Sprintf("last_modified=$%d", len(args)))
	args = append(args, cmd.ModifiedBy)
	sets = append(sets, fmt.Sprintf("last_modified_by=$%d", len(args)))
	sets = append(sets, "version=version+1")
	args = append(args, cmd.TicketID, cmd.ExpectedVersion)

	sql := fmt.Sprintf("UPDATE tickets SET %s WHERE ticket_id=$%d AND version=$%d RETURNING version",
		strings.Join(sets, ", "), len(args)-1, len(args))

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = tx.QueryRow(ctx, sql, args...).Scan(&version); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return 0, err
		}
		var current int
		if lookupErr := tx.QueryRow(ctx, `SELECT version FROM tickets WHERE ticket_id=$1`, cmd.TicketID).Scan(&current); lookupErr != nil {
			err = notFound(lookupErr)
			return 0, err
		}
		err = &VersionConflictError{TicketID: cmd.TicketID, Expected: cmd.ExpectedVersion, Current: current}
		return 0, err
	}

	const historySQL = `
        INSERT INTO ticket_history (ticket_id, field_name, old_value, new_value, changed_by, changed_at, version)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`
	for _, ch := range cmd.Changes {
		if _, err = tx.Exec(ctx, historySQL,
			cmd.TicketID, ch.Field, HistoryValue(ch.Old), HistoryValue(ch.New), cmd.ModifiedBy, cmd.ModifiedAt, version,
		); err != nil {
			return 0, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, err
	}
	return version, nil
}

// HistoryValue renders a field value for the audit trail; nil stays nil.
func HistoryValue(v any) *string {
	switch t := v.(type) {
	case nil:
		return nil
	case *string:
		return t
	case *int:
		if t == nil {
			return nil
		}
		s := fmt.Sprint(*t)
		return &s
	case *time.Time:
		if t == nil {
			return nil
		}
		s := t.UTC().Format(time.RFC3339)
		return &s
	case time.Time:
		s := t.UTC().Format(time.RFC3339)
		return &s
	}
	s := fmt.Sprint(v)
	return &s
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var t domain.Ticket
	if err := row.Scan(
		&t.ID,
		&t.Subject,
		&t.Body,
		&t.StatusID,
		&t.StatusLabel,
		&t.SeverityID,
		&t.PriorityLevel,
		&t.SiteID,
		&t.SiteLabel,
		&t.AssetID,
		&t.AssetLabel,
		&t.CategoryID,
		&t.CategoryLabel,
		&t.ContactName,
		&t.ContactEmail,
		&t.AssignedName,
		&t.AssignedEmail,
		&t.VendorID,
		&t.VendorName,
		&t.Resolution,
		&t.Version,
		&t.CreatedAt,
		&t.ClosedAt,
		&t.LastModified,
		&t.LastModifiedBy,
	); err != nil {
		return nil, err
	}
	return &t, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	result := []domain.Ticket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}
	return result, rows.Err()
}
