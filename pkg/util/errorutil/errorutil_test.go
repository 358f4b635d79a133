package errorutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{"domain error passes through", NewNotFound("ticket", nil), CodeNotFound, http.StatusNotFound},
		{"wrapped domain error", fmt.Errorf("ctx: %w", NewConflict("x", nil)), CodeConflict, http.StatusConflict},
		{"no rows", pgx.ErrNoRows, CodeNotFound, http.StatusNotFound},
		{"deadline", context.DeadlineExceeded, CodeRequestTimeout, http.StatusGatewayTimeout},
		{"pg error", &pgconn.PgError{Code: "23503"}, CodeStoreFailure, http.StatusServiceUnavailable},
		{"anything else", errors.New("boom"), CodeInternalError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToDomainError(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantStatus, got.HTTPStatus)
		})
	}
	assert.Nil(t, ToDomainError(nil))
}

func TestNewStoreFailureKeepsDiagnosticsWithoutStatement(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:           "23503",
		Message:        "insert or update on table violates foreign key constraint",
		Detail:         "Key (site_id)=(99) is not present in table \"sites\".",
		TableName:      "tickets",
		ColumnName:     "site_id",
		ConstraintName: "tickets_site_id_fkey",
		InternalQuery:  "UPDATE tickets SET site_id = 99",
	}
	de := ToDomainError(fmt.Errorf("update ticket: %w", pgErr))

	assert.Equal(t, CodeStoreFailure, de.Code)
	assert.Equal(t, "site_id", de.Details["column"])
	assert.Equal(t, "tickets_site_id_fkey", de.Details["constraint"])
	assert.Equal(t, "23503", de.Details["sqlstate"])
	for _, v := range de.Details {
		assert.NotContains(t, fmt.Sprint(v), "UPDATE tickets")
	}
}

func TestFieldErrorsFirstRejectionWins(t *testing.T) {
	fields := FieldErrors{}
	fields.Add("Subject", CodeTooLong, "too long")
	fields.Add("Subject", CodeInvalidField, "ignored")

	err := NewFieldValidationError("invalid update", fields)
	assert.True(t, HasCode(err, CodeValidationFailed))

	de := ToDomainError(err)
	got, ok := de.Details["fields"].(FieldErrors)
	require.True(t, ok)
	assert.Equal(t, CodeTooLong, got["Subject"].Code)
}

func TestVersionConflictDetails(t *testing.T) {
	de := ToDomainError(NewVersionConflict(7, 2, 3))
	assert.Equal(t, http.StatusConflict, de.HTTPStatus)
	assert.Equal(t, CodeVersionConflict, de.Code)
	assert.Equal(t, 3, de.Details["current_version"])
}
