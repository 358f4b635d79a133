package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

// CountBucketResponse is one group of a count report.
type CountBucketResponse struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// TrendPointResponse is a daily creation count.
type TrendPointResponse struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// SLAReportResponse lists tickets past the SLA window.
type SLAReportResponse struct {
	Days    int              `json:"days"`
	Cutoff  time.Time        `json:"cutoff"`
	Total   int              `json:"total"`
	Tickets []TicketResponse `json:"tickets"`
}

// StaffReportResponse summarizes one assignee.
type StaffReportResponse struct {
	AssignedEmail string                `json:"assigned_email"`
	OpenTickets   int                   `json:"open_tickets"`
	TotalTickets  int                   `json:"total_tickets"`
	ByStatus      []CountBucketResponse `json:"by_status"`
	ByPriority    []CountBucketResponse `json:"by_priority"`
}

// ReferenceItem is one row of a lookup table.
type ReferenceItem struct {
	ID     int    `json:"id"`
	Label  string `json:"label"`
	SiteID *int   `json:"site_id,omitempty"`
}

// NewCountBuckets maps report buckets.
func NewCountBuckets(buckets []domain.CountBucket) []CountBucketResponse {
	out := make([]CountBucketResponse, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, CountBucketResponse{Key: b.Key, Label: b.Label, Count: b.Count})
	}
	return out
}

// NewTrend maps trend points; days render as YYYY-MM-DD.
func NewTrend(points []domain.TrendPoint) []TrendPointResponse {
	out := make([]TrendPointResponse, 0, len(points))
	for _, p := range points {
		out = append(out, TrendPointResponse{Day: p.Day.UTC().Format(time.DateOnly), Count: p.Count})
	}
	return out
}

// NewSLAReport maps an SLA report.
func NewSLAReport(r *service.SLAReport) SLAReportResponse {
	return SLAReportResponse{
		Days:    r.Days,
		Cutoff:  r.Cutoff,
		Total:   r.Total,
		Tickets: NewTicketResponses(r.Tickets),
	}
}

// NewStaffReport maps a staff report.
func NewStaffReport(r *service.StaffReport) StaffReportResponse {
	return StaffReportResponse{
		AssignedEmail: r.AssignedEmail,
		OpenTickets:   r.OpenTickets,
		TotalTickets:  r.TotalTickets,
		ByStatus:      NewCountBuckets(r.ByStatus),
		ByPriority:    NewCountBuckets(r.ByPriority),
	}
}

// NewStatusItems maps status rows.
func NewStatusItems(rows []domain.Status) []ReferenceItem {
	out := make([]ReferenceItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, ReferenceItem{ID: r.ID, Label: r.Label})
	}
	return out
}

// NewSeverityItems maps priority rows.
func NewSeverityItems(rows []domain.Severity) []ReferenceItem {
	out := make([]ReferenceItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, ReferenceItem{ID: r.ID, Label: r.Level})
	}
	return out
}

// NewSiteItems maps site rows.
func NewSiteItems(rows []domain.Site) []ReferenceItem {
	out := make([]ReferenceItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, ReferenceItem{ID: r.ID, Label: r.Label})
	}
	return out
}

// NewAssetItems maps asset rows.
func NewAssetItems(rows []domain.Asset) []ReferenceItem {
	out := make([]ReferenceItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, ReferenceItem{ID: r.ID, Label: r.Label, SiteID: r.SiteID})
	}
	return out
}

// NewCategoryItems maps category rows.
func NewCategoryItems(rows []domain.Category) []ReferenceItem {
	out := make([]ReferenceItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, ReferenceItem{ID: r.ID, Label: r.Label})
	}
	return out
}

// NewVendorItems maps vendor rows.
func NewVendorItems(rows []domain.Vendor) []ReferenceItem {
	out := make([]ReferenceItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, ReferenceItem{ID: r.ID, Label: r.Name})
	}
	return out
}

// ResolvedTermResponse is a semantic term resolved to one id.
type ResolvedTermResponse struct {
	Field string `json:"field"`
	Value string `json:"value"`
	ID    int64  `json:"id"`
}
