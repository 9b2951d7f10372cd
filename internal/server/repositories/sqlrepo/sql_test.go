package sqlrepo

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/msgbox/internal/common"
	"github.com/dmitrijs2005/msgbox/internal/server/models"
	"github.com/dmitrijs2005/msgbox/internal/server/repositories"
)

var (
	_ repositories.Repository[models.User]    = (*Repository[models.User])(nil)
	_ repositories.Repository[models.Message] = (*Repository[models.Message])(nil)
)

const userCols = `id, username, password_hash, role, login_time, created_at`

func newUsersWithMock(t *testing.T) (*Repository[models.User], sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return New(db, Postgres, repositories.UserSchema), mock, db
}

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "username", "password_hash", "role", "login_time", "created_at"})
}

func TestFindByID_Found(t *testing.T) {
	repo, mock, db := newUsersWithMock(t)
	defer db.Close()

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	q := `(?s)^SELECT\s+` + regexp.QuoteMeta(userCols) + `\s+FROM\s+users\s+WHERE\s+id\s*=\s*\$1$`
	mock.ExpectQuery(q).WithArgs("u-1").
		WillReturnRows(userRows().AddRow("u-1", "alice", "h", "user", nil, created))

	got, err := repo.FindByID(context.Background(), "u-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, &models.User{ID: "u-1", Username: "alice", PasswordHash: "h", Role: models.RoleUser, CreatedAt: created}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByID_NotFoundIsNil(t *testing.T) {
	repo, mock, db := newUsersWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+id`).WithArgs("nope").WillReturnRows(userRows())

	got, err := repo.FindByID(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFindByID_DBError(t *testing.T) {
	repo, mock, db := newUsersWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+users`).WillReturnError(errors.New("db down"))

	_, err := repo.FindByID(context.Background(), "x")
	require.Error(t, err)
	assert.Regexp(t, `db error: .*db down`, err.Error())
}

func TestFindAll_OrdersBySeq(t *testing.T) {
	repo, mock, db := newUsersWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`(?s)^SELECT\s+.+\s+FROM\s+users\s+ORDER\s+BY\s+seq$`).
		WillReturnRows(userRows().
			AddRow("1", "alice", "h", "admin", now, now).
			AddRow("2", "bob", "h", "user", nil, now))

	got, err := repo.FindAll(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "alice", got[0].Username)
	assert.Equal(t, models.RoleAdmin, got[0].Role)
	require.NotNil(t, got[0].LoginTime)
	assert.Nil(t, got[1].LoginTime)
}

func TestFindByField(t *testing.T) {
	repo, mock, db := newUsersWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)WHERE\s+username\s*=\s*\$1\s+ORDER\s+BY\s+seq$`).WithArgs("alice").
		WillReturnRows(userRows().AddRow("1", "alice", "h", "user", nil, time.Now()))

	got, err := repo.FindByField(context.Background(), models.UserUsername, "alice")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = repo.FindByField(context.Background(), "email", "x")
	assert.ErrorIs(t, err, common.ErrUnknownField)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_ChecksUniqueInTx(t *testing.T) {
	repo, mock, db := newUsersWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)^SELECT\s+COUNT\(\*\)\s+FROM\s+users\s+WHERE\s+id\s*=\s*\$1\s+OR\s+username\s*=\s*\$2$`).
		WithArgs("u-1", "alice").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+users\s+\(`+regexp.QuoteMeta(userCols)+`\)\s+VALUES\s+\(\$1, \$2, \$3, \$4, \$5, \$6\)$`).
		WithArgs("u-1", "alice", "h", "user", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	u := &models.User{ID: "u-1", Username: "alice", PasswordHash: "h", Role: models.RoleUser, CreatedAt: time.Now()}
	require.NoError(t, repo.Save(context.Background(), u))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_AssignsID(t *testing.T) {
	repo, mock, db := newUsersWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT\s+COUNT`).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`INSERT\s+INTO\s+users`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	u := &models.User{Username: "alice", Role: models.RoleUser}
	require.NoError(t, repo.Save(context.Background(), u))
	assert.Len(t, u.ID, 36)
}

func TestSave_DuplicateRollsBack(t *testing.T) {
	repo, mock, db := newUsersWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT\s+COUNT`).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	err := repo.Save(context.Background(), &models.User{ID: "u-2", Username: "alice"})
	assert.ErrorIs(t, err, common.ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_UniqueViolationFromDriver(t *testing.T) {
	repo, mock, db := newUsersWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT\s+COUNT`).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`INSERT\s+INTO\s+users`).WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	err := repo.Save(context.Background(), &models.User{ID: "u-3", Username: "alice"})
	assert.ErrorIs(t, err, common.ErrAlreadyExists)
}

func TestUpdate_BuildsDynamicSet(t *testing.T) {
	repo, mock, db := newUsersWithMock(t)
	defer db.Close()

	at := time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`(?s)^UPDATE\s+users\s+SET\s+login_time\s*=\s*\$1,\s*role\s*=\s*\$2\s+WHERE\s+id\s*=\s*\$3$`).
		WithArgs(at, "admin", "u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.Update(context.Background(), "u-1", repositories.Fields{
		models.UserRole:      "admin",
		models.UserLoginTime: at,
	})
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_MissingRowAndBadField(t *testing.T) {
	repo, mock, db := newUsersWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE\s+users`).WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Update(context.Background(), "gone", repositories.Fields{models.UserRole: "admin"})
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.Update(context.Background(), "u-1", repositories.Fields{"id": "x"})
	assert.ErrorIs(t, err, common.ErrUnknownField)
}

func TestDelete(t *testing.T) {
	repo, mock, db := newUsersWithMock(t)
	defer db.Close()

	q := `(?s)^DELETE\s+FROM\s+users\s+WHERE\s+id\s*=\s*\$1$`
	mock.ExpectExec(q).WithArgs("u-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("u-1").WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Delete(context.Background(), "u-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Delete(context.Background(), "u-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDialectByName(t *testing.T) {
	d, err := DialectByName("postgres")
	require.NoError(t, err)
	assert.Equal(t, "pgx", d.Driver)

	d, err = DialectByName("sqlite")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.Driver)

	_, err = DialectByName("oracle")
	assert.Error(t, err)
}
