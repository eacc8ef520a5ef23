package database

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func migrationFS() fstest.MapFS {
	return fstest.MapFS{
		"0001_init.up.sql":    {Data: []byte("CREATE TABLE rooms (id UUID PRIMARY KEY);")},
		"0001_init.down.sql":  {Data: []byte("DROP TABLE rooms;")},
		"0002_notes.up.sql":   {Data: []byte("ALTER TABLE rooms ADD COLUMN note TEXT;")},
		"0002_notes.down.sql": {Data: []byte("ALTER TABLE rooms DROP COLUMN note;")},
	}
}

func expectPrologue(mock sqlmock.Sqlmock, applied ...string) {
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_lock(hashtext($1))`)).WithArgs(migrationLockKey).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	rows := sqlmock.NewRows([]string{"version"})
	for _, v := range applied {
		rows.AddRow(v)
	}
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT version FROM schema_migrations`)).WillReturnRows(rows)
}

func TestMigrateAppliesPendingInOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectPrologue(mock, "0001_init")
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("ALTER TABLE rooms ADD COLUMN note TEXT;")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO schema_migrations (version) VALUES ($1)`)).WithArgs("0002_notes").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_unlock(hashtext($1))`)).WithArgs(migrationLockKey).WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err := Migrate(context.Background(), sqlx.NewDb(db, "postgres"), migrationFS(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"0002_notes"}, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateRollsBackFailedFile(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectPrologue(mock)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE rooms")).WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()
	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_unlock(hashtext($1))`)).WithArgs(migrationLockKey).WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err := Migrate(context.Background(), sqlx.NewDb(db, "postgres"), migrationFS(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0001_init")
	assert.Empty(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDSNCarriesLockTimeout(t *testing.T) {
	dsn := DSN(configFixture())
	assert.Contains(t, dsn, "timezone=UTC")
	assert.Contains(t, dsn, "options='-c lock_timeout=5000'")
}
