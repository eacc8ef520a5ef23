package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/room-reservation-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

var userRowColumns = []string{"id", "user_no", "name", "email", "password_hash", "user_type", "department_id", "active", "last_login", "date_joined", "updated_at"}

func TestFindByUserNo(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(userRowColumns).
		AddRow("1", "20231234", "Kim", "kim@example.com", "hash", string(models.UserTypeUndergraduate), 3, true, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + userColumns + " FROM users WHERE user_no = $1 LIMIT 1")).
		WithArgs("20231234").
		WillReturnRows(rows)

	user, err := repo.FindByUserNo(context.Background(), "20231234")
	require.NoError(t, err)
	assert.Equal(t, "Kim", user.Name)
	require.NotNil(t, user.DepartmentID)
	assert.Equal(t, int64(3), *user.DepartmentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByUserNoMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery("FROM users WHERE user_no").WillReturnError(sql.ErrNoRows)
	_, err := repo.FindByUserNo(context.Background(), "x")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestCreateRefreshToken(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.CreateRefreshToken(context.Background(), &models.RefreshToken{ID: "1", UserID: "u1", Token: "digest", ExpiresAt: time.Now(), CreatedAt: time.Now()})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListUsersWithFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	ut := models.UserTypeFaculty
	listRows := sqlmock.NewRows(userRowColumns).
		AddRow("1", "F001", "Lee", "lee@example.com", "hash", string(ut), nil, true, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + userColumns + " FROM users WHERE 1=1 AND user_type = $1 AND (LOWER(user_no) LIKE $2 OR LOWER(name) LIKE $2 OR LOWER(email) LIKE $2) ORDER BY date_joined DESC LIMIT 20 OFFSET 0")).
		WithArgs(ut, "%lee%").
		WillReturnRows(listRows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE 1=1 AND user_type = $1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	users, total, err := repo.List(context.Background(), models.UserFilter{UserType: &ut, Search: "Lee"})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkCreateCommitsAll(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	users := []*models.User{{UserNo: "a"}, {UserNo: "b"}}
	require.NoError(t, repo.BulkCreate(context.Background(), users))
	assert.NotEmpty(t, users[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkCreateRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO users").WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	err := repo.BulkCreate(context.Background(), []*models.User{{UserNo: "a"}, {UserNo: "a"}})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeactivateByUserNos(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET active = FALSE, updated_at = $2 WHERE user_no = ANY($1) AND active = TRUE")).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.DeactivateByUserNos(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = repo.DeactivateByUserNos(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPurgeRefreshTokens(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("DELETE FROM refresh_tokens WHERE expires_at < \\$1").WillReturnResult(sqlmock.NewResult(0, 5))
	n, err := repo.PurgeRefreshTokens(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}
