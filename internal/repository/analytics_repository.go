package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/query"
)

// Grouping names the key and label fields an aggregate groups by.
type Grouping struct {
	Key   string
	Label string
}

// Groupings used by the reports.
var (
	ByStatus   = Grouping{Key: "Ticket_Status_ID", Label: "Ticket_Status_Label"}
	BySite     = Grouping{Key: "Site_ID", Label: "Site_Label"}
	ByAssignee = Grouping{Key: "Assigned_Email", Label: "Assigned_Name"}
	ByContact  = Grouping{Key: "Ticket_Contact_Email", Label: "Ticket_Contact_Name"}
	ByPriority = Grouping{Key: "Severity_ID", Label: "Priority_Level"}
	ByCategory = Grouping{Key: "Ticket_Category_ID", Label: "Ticket_Category_Label"}
)

// AnalyticsRepository executes aggregate queries.
type AnalyticsRepository interface {
	GroupCount(ctx context.Context, g Grouping, preds []query.Predicate) ([]domain.CountBucket, error)
	CreatedPerDay(ctx context.Context, since time.Time) ([]domain.TrendPoint, error)
}

type analyticsRepository struct {
	db DB
}

// NewAnalyticsRepository constructs repository.
func NewAnalyticsRepository(db DB) AnalyticsRepository {
	return &analyticsRepository{db: db}
}

func (r *analyticsRepository) GroupCount(ctx context.Context, g Grouping, preds []query.Predicate) ([]domain.CountBucket, error) {
	key, ok := query.Lookup(g.Key)
	if !ok {
		return nil, fmt.Errorf("unknown grouping field %q", g.Key)
	}
	label, ok := query.Lookup(g.Label)
	if !ok {
		return nil, fmt.Errorf("unknown grouping field %q", g.Label)
	}

	var b sqlBuilder
	sql := fmt.Sprintf(`SELECT COALESCE(CAST(%[1]s AS TEXT), ''), COALESCE(MAX(%[2]s), ''), COUNT(*)
        FROM %[3]s%[4]s GROUP BY %[1]s ORDER BY COUNT(*) DESC, 1 ASC`,
		key.Column, label.Column, ticketView, b.where(preds))

	rows, err := r.db.Query(ctx, sql, b.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.CountBucket{}
	for rows.Next() {
		var bucket domain.CountBucket
		if err := rows.Scan(&bucket.Key, &bucket.Label, &bucket.Count); err != nil {
			return nil, err
		}
		if bucket.Label == "" {
			bucket.Label = "Unknown"
		}
		result = append(result, bucket)
	}
	return result, rows.Err()
}

func (r *analyticsRepository) CreatedPerDay(ctx context.Context, since time.Time) ([]domain.TrendPoint, error) {
	const sql = `
        SELECT date_trunc('day', created_date) AS day, COUNT(*)
        FROM tickets WHERE created_date >= $1
        GROUP BY day ORDER BY day ASC`
	rows, err := r.db.Query(ctx, sql, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.TrendPoint{}
	for rows.Next() {
		var p domain.TrendPoint
		if err := rows.Scan(&p.Day, &p.Count); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}
