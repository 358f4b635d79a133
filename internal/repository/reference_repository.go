package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// ReferenceTable names a lookup table that tickets point into.
type ReferenceTable string

const (
	RefStatus   ReferenceTable = "ticket_statuses"
	RefSeverity ReferenceTable = "priorities"
	RefSite     ReferenceTable = "sites"
	RefAsset    ReferenceTable = "assets"
	RefCategory ReferenceTable = "ticket_categories"
	RefVendor   ReferenceTable = "vendors"
)

var referenceKeys = map[ReferenceTable]string{
	RefStatus:   "id",
	RefSeverity: "id",
	RefSite:     "id",
	RefAsset:    "id",
	RefCategory: "id",
	RefVendor:   "id",
}

// ReferenceRepository reads lookup tables.
type ReferenceRepository interface {
	Exists(ctx context.Context, table ReferenceTable, id int) (bool, error)
	Statuses(ctx context.Context) ([]domain.Status, error)
	Severities(ctx context.Context) ([]domain.Severity, error)
	Sites(ctx context.Context) ([]domain.Site, error)
	Assets(ctx context.Context, siteID *int) ([]domain.Asset, error)
	Categories(ctx context.Context) ([]domain.Category, error)
	Vendors(ctx context.Context) ([]domain.Vendor, error)
}

type referenceRepository struct {
	db DB
}

// NewReferenceRepository constructs repository.
func NewReferenceRepository(db DB) ReferenceRepository {
	return &referenceRepository{db: db}
}

func (r *referenceRepository) Exists(ctx context.Context, table ReferenceTable, id int) (bool, error) {
	key, ok := referenceKeys[table]
	if !ok {
		return false, fmt.Errorf("unknown reference table %q", table)
	}
	var exists bool
	sql := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE %s=$1)", table, key)
	if err := r.db.QueryRow(ctx, sql, id).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *referenceRepository) Statuses(ctx context.Context) ([]domain.Status, error) {
	rows, err := r.db.Query(ctx, `SELECT id, label FROM ticket_statuses ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Status, error) {
		var s domain.Status
		err := row.Scan(&s.ID, &s.Label)
		return s, err
	})
}

func (r *referenceRepository) Severities(ctx context.Context) ([]domain.Severity, error) {
	rows, err := r.db.Query(ctx, `SELECT id, level FROM priorities ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Severity, error) {
		var s domain.Severity
		err := row.Scan(&s.ID, &s.Level)
		return s, err
	})
}

func (r *referenceRepository) Sites(ctx context.Context) ([]domain.Site, error) {
	rows, err := r.db.Query(ctx, `SELECT id, label FROM sites ORDER BY label`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Site, error) {
		var s domain.Site
		err := row.Scan(&s.ID, &s.Label)
		return s, err
	})
}

func (r *referenceRepository) Assets(ctx context.Context, siteID *int) ([]domain.Asset, error) {
	sql := `SELECT id, label, site_id FROM assets`
	args := []any{}
	if siteID != nil {
		args = append(args, *siteID)
		sql += " WHERE site_id=$1"
	}
	rows, err := r.db.Query(ctx, sql+" ORDER BY label", args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Asset, error) {
		var a domain.Asset
		err := row.Scan(&a.ID, &a.Label, &a.SiteID)
		return a, err
	})
}

func (r *referenceRepository) Categories(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.db.Query(ctx, `SELECT id, label FROM ticket_categories ORDER BY label`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Category, error) {
		var c domain.Category
		err := row.Scan(&c.ID, &c.Label)
		return c, err
	})
}

func (r *referenceRepository) Vendors(ctx context.Context) ([]domain.Vendor, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name FROM vendors ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Vendor, error) {
		var v domain.Vendor
		err := row.Scan(&v.ID, &v.Name)
		return v, err
	})
}
