package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/query"
)

var viewColumns = []string{
	"ticket_id", "subject", "ticket_body", "ticket_status_id", "ticket_status_label",
	"severity_id", "priority_level", "site_id", "site_label", "asset_id", "asset_label",
	"ticket_category_id", "ticket_category_label", "ticket_contact_name", "ticket_contact_email",
	"assigned_name", "assigned_email", "assigned_vendor_id", "assigned_vendor_name", "resolution",
	"version", "created_date", "closed_date", "last_modified", "last_modified_by",
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func addTicketRow(rows *pgxmock.Rows, id int64, subject string, status int, created time.Time) *pgxmock.Rows {
	return rows.AddRow(
		id, subject, "body", status, strPtr("Open"),
		intPtr(2), strPtr("High"), intPtr(1), strPtr("Headquarters"), nil, nil,
		nil, nil, strPtr("Dana"), strPtr("dana@example.com"),
		nil, nil, nil, nil, nil,
		1, created, nil, nil, nil,
	)
}

func TestTicketRepositoryFind(t *testing.T) {
	mock := newMock(t)
	repo := NewTicketRepository(mock)
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	rows := mock.NewRows(viewColumns)
	addTicketRow(rows, 12, "Printer jam", 1, created)
	addTicketRow(rows, 11, "VPN down", 1, created.Add(-time.Hour))

	mock.ExpectQuery(`(?s)SELECT ticket_id, .+ FROM v_ticket_master_expanded WHERE ticket_status_id IN \(\$1,\$2\) ORDER BY ticket_id DESC LIMIT 10 OFFSET 20`).
		WithArgs(int64(1), int64(2)).
		WillReturnRows(rows)

	plan := query.Plan{
		Predicates: []query.Predicate{query.In("Ticket_Status_ID", int64(1), int64(2))},
		Order:      []query.Order{{Field: "Ticket_ID", Desc: true}},
		Offset:     20,
		Limit:      10,
	}
	tickets, err := repo.Find(context.Background(), plan)
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.Equal(t, int64(12), tickets[0].ID)
	assert.Equal(t, "Printer jam", tickets[0].Subject)
	require.NotNil(t, tickets[0].PriorityLevel)
	assert.Equal(t, "High", *tickets[0].PriorityLevel)
	assert.Nil(t, tickets[0].AssetID)
	assert.Equal(t, created, tickets[0].CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRepositoryFindEscapesLikeTerms(t *testing.T) {
	mock := newMock(t)
	repo := NewTicketRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE (subject ILIKE $1 ESCAPE '\' OR ticket_body ILIKE $2 ESCAPE '\')`)).
		WithArgs(`%50\% off\_%`, `%50\% off\_%`).
		WillReturnRows(mock.NewRows(viewColumns))

	plan := query.Plan{
		Predicates: []query.Predicate{query.TextPredicate("50% off_", query.SearchFields)},
		Limit:      10,
	}
	tickets, err := repo.Find(context.Background(), plan)
	require.NoError(t, err)
	assert.Empty(t, tickets)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRepositoryCount(t *testing.T) {
	mock := newMock(t)
	repo := NewTicketRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM v_ticket_master_expanded WHERE LOWER(TRIM(assigned_email)) = $1 AND assigned_vendor_id IS NULL`)).
		WithArgs("ops@example.com").
		WillReturnRows(mock.NewRows([]string{"count"}).AddRow(4))

	total, err := repo.Count(context.Background(), []query.Predicate{
		query.EqFold("Assigned_Email", " Ops@Example.com "),
		query.IsNull("Assigned_Vendor_ID"),
	})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRepositoryNeverMatches(t *testing.T) {
	sql, args := renderCount([]query.Predicate{query.Never(), query.Or()})
	assert.Equal(t, "SELECT COUNT(*) FROM v_ticket_master_expanded WHERE FALSE AND FALSE", sql)
	assert.Empty(t, args)
}

func TestTicketRepositoryGetByIDNotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewTicketRepository(mock)

	mock.ExpectQuery(`(?s)SELECT .+ FROM v_ticket_master_expanded WHERE ticket_id = \$1`).
		WithArgs(int64(404)).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRepositoryUpdateFields(t *testing.T) {
	now := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	cmd := UpdateCommand{
		TicketID:        7,
		ExpectedVersion: 2,
		Changes: []FieldChange{
			{Field: "Subject", Old: "Old subject", New: "New subject"},
			{Field: "Severity_ID", Old: intPtr(3), New: intPtr(1)},
		},
		ModifiedBy: "alice",
		ModifiedAt: now,
	}
	updateSQL := regexp.QuoteMeta(`UPDATE tickets SET subject=$1, severity_id=$2, last_modified=$3, last_modified_by=$4, version=version+1 WHERE ticket_id=$5 AND version=$6 RETURNING version`)
	historySQL := regexp.QuoteMeta(`INSERT INTO ticket_history`)
	versionSQL := regexp.QuoteMeta(`SELECT version FROM tickets WHERE ticket_id=$1`)

	t.Run("applies and records history", func(t *testing.T) {
		mock := newMock(t)
		repo := NewTicketRepository(mock)

		mock.ExpectBegin()
		mock.ExpectQuery(updateSQL).
			WithArgs("New subject", intPtr(1), now, "alice", int64(7), 2).
			WillReturnRows(mock.NewRows([]string{"version"}).AddRow(3))
		mock.ExpectExec(historySQL).
			WithArgs(int64(7), "Subject", strPtr("Old subject"), strPtr("New subject"), "alice", now, 3).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(historySQL).
			WithArgs(int64(7), "Severity_ID", strPtr("3"), strPtr("1"), "alice", now, 3).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()

		version, err := repo.UpdateFields(context.Background(), cmd)
		require.NoError(t, err)
		assert.Equal(t, 3, version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale version", func(t *testing.T) {
		mock := newMock(t)
		repo := NewTicketRepository(mock)

		mock.ExpectBegin()
		mock.ExpectQuery(updateSQL).WillReturnError(pgx.ErrNoRows)
		mock.ExpectQuery(versionSQL).
			WithArgs(int64(7)).
			WillReturnRows(mock.NewRows([]string{"version"}).AddRow(5))
		mock.ExpectRollback()

		_, err := repo.UpdateFields(context.Background(), cmd)
		require.ErrorIs(t, err, ErrVersionConflict)
		var conflict *VersionConflictError
		require.True(t, errors.As(err, &conflict))
		assert.Equal(t, 2, conflict.Expected)
		assert.Equal(t, 5, conflict.Current)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing ticket", func(t *testing.T) {
		mock := newMock(t)
		repo := NewTicketRepository(mock)

		mock.ExpectBegin()
		mock.ExpectQuery(updateSQL).WillReturnError(pgx.ErrNoRows)
		mock.ExpectQuery(versionSQL).WithArgs(int64(7)).WillReturnError(pgx.ErrNoRows)
		mock.ExpectRollback()

		_, err := repo.UpdateFields(context.Background(), cmd)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("history failure rolls back", func(t *testing.T) {
		mock := newMock(t)
		repo := NewTicketRepository(mock)

		mock.ExpectBegin()
		mock.ExpectQuery(updateSQL).WillReturnRows(mock.NewRows([]string{"version"}).AddRow(3))
		mock.ExpectExec(historySQL).WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		_, err := repo.UpdateFields(context.Background(), cmd)
		assert.EqualError(t, err, "disk full")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects unknown column", func(t *testing.T) {
		mock := newMock(t)
		repo := NewTicketRepository(mock)

		_, err := repo.UpdateFields(context.Background(), UpdateCommand{
			TicketID: 7, Changes: []FieldChange{{Field: "Ticket_ID", New: 9}},
		})
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestReferenceRepositoryExists(t *testing.T) {
	mock := newMock(t)
	repo := NewReferenceRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM sites WHERE id=$1)`)).
		WithArgs(99).
		WillReturnRows(mock.NewRows([]string{"exists"}).AddRow(false))

	ok, err := repo.Exists(context.Background(), RefSite, 99)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.Exists(context.Background(), ReferenceTable("users"), 1)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReferenceRepositoryVendors(t *testing.T) {
	mock := newMock(t)
	repo := NewReferenceRepository(mock)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, name FROM vendors ORDER BY name`)).
		WillReturnRows(mock.NewRows([]string{"id", "name"}).AddRow(2, "Acme Field Services").AddRow(1, "Northwind Repairs"))

	vendors, err := repo.Vendors(context.Background())
	require.NoError(t, err)
	require.Len(t, vendors, 2)
	assert.Equal(t, "Acme Field Services", vendors[0].Name)
	assert.Equal(t, 2, vendors[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyticsRepositoryGroupCount(t *testing.T) {
	mock := newMock(t)
	repo := NewAnalyticsRepository(mock)

	mock.ExpectQuery(`(?s)SELECT COALESCE\(CAST\(site_id AS TEXT\), ''\), COALESCE\(MAX\(site_label\), ''\), COUNT\(\*\).+WHERE ticket_status_id IN \(\$1,\$2\).+GROUP BY site_id`).
		WithArgs(int64(1), int64(2)).
		WillReturnRows(mock.NewRows([]string{"key", "label", "count"}).
			AddRow("1", "Headquarters", 4).
			AddRow("", "", 2))

	buckets, err := repo.GroupCount(context.Background(), BySite, []query.Predicate{query.In("Ticket_Status_ID", int64(1), int64(2))})
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	assert.Equal(t, "Headquarters", buckets[0].Label)
	assert.Equal(t, 4, buckets[0].Count)
	assert.Equal(t, "Unknown", buckets[1].Label)
	assert.NoError(t, mock.ExpectationsWereMet())
}
