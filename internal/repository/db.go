package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound reports a missing row.
var ErrNotFound = errors.New("record not found")

// ErrVersionConflict matches every *VersionConflictError.
var ErrVersionConflict = errors.New("version conflict")

// VersionConflictError reports that the row's version moved past the one the
// caller read.
type VersionConflictError struct {
	TicketID int64
	Expected int
	Current  int
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("ticket %d: expected version %d, found %d", e.TicketID, e.Expected, e.Current)
}

func (e *VersionConflictError) Is(target error) bool {
	return target == ErrVersionConflict
}

// DB is the subset of the pgx pool API the stores use.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repositories bundles every store the services need.
type Repositories struct {
	Tickets     TicketRepository
	References  ReferenceRepository
	Messages    TicketMessageRepository
	Attachments AttachmentRepository
	History     TicketHistoryRepository
	Users       UserRepository
	Analytics   AnalyticsRepository
}

// NewPostgresRepositories builds pgx-backed stores over db.
func NewPostgresRepositories(db DB) Repositories {
	return Repositories{
		Tickets:     NewTicketRepository(db),
		References:  NewReferenceRepository(db),
		Messages:    NewTicketMessageRepository(db),
		Attachments: NewAttachmentRepository(db),
		History:     NewTicketHistoryRepository(db),
		Users:       NewUserRepository(db),
		Analytics:   NewAnalyticsRepository(db),
	}
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
