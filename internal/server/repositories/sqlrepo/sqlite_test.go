package sqlrepo

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/msgbox/internal/common"
	"github.com/dmitrijs2005/msgbox/internal/server/migrations"
	"github.com/dmitrijs2005/msgbox/internal/server/models"
	"github.com/dmitrijs2005/msgbox/internal/server/repositories"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	goose.SetBaseFS(migrations.Migrations)
	require.NoError(t, goose.SetDialect(SQLite.Goose))
	require.NoError(t, goose.UpContext(context.Background(), db, "sqlite"))
	return db
}

func TestSQLite_UserRoundTrip(t *testing.T) {
	db := openSQLite(t)
	repo := New(db, SQLite, repositories.UserSchema)
	ctx := context.Background()

	u := &models.User{Username: "alice", PasswordHash: "h", Role: models.RoleUser, CreatedAt: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)}
	require.NoError(t, repo.Save(ctx, u))

	got, err := repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.Username, got.Username)
	assert.True(t, u.CreatedAt.Equal(got.CreatedAt))
	assert.Nil(t, got.LoginTime)

	assert.ErrorIs(t, repo.Save(ctx, &models.User{Username: "alice", CreatedAt: time.Now()}), common.ErrAlreadyExists)

	login := time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)
	ok, err := repo.Update(ctx, u.ID, repositories.Fields{models.UserLoginTime: login})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err = repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LoginTime)
	assert.True(t, login.Equal(*got.LoginTime))
	assert.Equal(t, models.RoleUser, got.Role, "untouched columns keep their values")
}

func TestSQLite_MessagesOrderAndReadFlag(t *testing.T) {
	db := openSQLite(t)
	repo := New(db, SQLite, repositories.MessageSchema)
	ctx := context.Background()

	// ids sort opposite to insertion order
	for i, id := range []string{"c", "b", "a"} {
		require.NoError(t, repo.Save(ctx, &models.Message{
			ID: id, Recipient: "bob", Sender: "alice", Text: fmt.Sprint(i),
			SendTime: time.Date(2024, 1, 1, 0, 0, i, 0, time.UTC),
		}))
	}

	unread, err := repo.FindByField(ctx, models.MessageRead, false)
	require.NoError(t, err)
	require.Len(t, unread, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{unread[0].ID, unread[1].ID, unread[2].ID})

	ok, err := repo.Update(ctx, "b", repositories.Fields{models.MessageRead: true, models.MessageReadTime: time.Now().UTC()})
	require.NoError(t, err)
	require.True(t, ok)

	unread, err = repo.FindByField(ctx, models.MessageRead, false)
	require.NoError(t, err)
	assert.Len(t, unread, 2)

	b, err := repo.FindByID(ctx, "b")
	require.NoError(t, err)
	assert.True(t, b.Read)
	assert.NotNil(t, b.ReadTime)

	ok, err = repo.Delete(ctx, "b")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.Delete(ctx, "b")
	require.NoError(t, err)
	assert.False(t, ok)
}
