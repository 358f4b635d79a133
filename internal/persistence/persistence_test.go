package persistence

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/helpdesk-service/internal/config"
)

func writeMigrations(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "archive"), 0o700))
	return dir
}

func TestRunMigrationsAppliesInOrder(t *testing.T) {
	dir := writeMigrations(t, map[string]string{
		"002_views.sql": "CREATE VIEW b AS SELECT 1;",
		"001_init.sql":  "CREATE TABLE a (id INT);",
		"README.md":     "not sql",
	})

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE a (id INT);")).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE VIEW b AS SELECT 1;")).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, RunMigrations(context.Background(), mock, dir, zaptest.NewLogger(t)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrationsStopsOnFailure(t *testing.T) {
	dir := writeMigrations(t, map[string]string{
		"001_init.sql": "CREATE TABLE a (id INT);",
		"002_bad.sql":  "CREATE NONSENSE;",
		"003_more.sql": "CREATE TABLE c (id INT);",
	})

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	mock.ExpectExec("CREATE TABLE a").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE NONSENSE").WillReturnError(errors.New("syntax error"))

	err = RunMigrations(context.Background(), mock, dir, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "002_bad.sql")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrationsWithoutPool(t *testing.T) {
	assert.NoError(t, RunMigrations(context.Background(), nil, "does-not-matter", zaptest.NewLogger(t)))
}

func TestRepositoryMigrationsAreDiscoverable(t *testing.T) {
	files, err := MigrationFiles(filepath.Join("..", "..", "migrations"))
	require.NoError(t, err)
	assert.Contains(t, files, "001_init.sql")
}

func TestDisabledBackends(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	pg, err := NewPostgres(ctx, config.PostgresConfig{}, logger)
	require.NoError(t, err)
	assert.False(t, pg.Enabled())
	assert.NoError(t, pg.Ping(ctx))
	pg.Close()

	rdb := NewRedis(ctx, config.RedisConfig{}, logger)
	assert.Nil(t, rdb)
	assert.NoError(t, rdb.Ping(ctx))
	rdb.Close()
}
