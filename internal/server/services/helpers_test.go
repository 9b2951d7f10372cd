package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/msgbox/internal/server/auth"
	"github.com/dmitrijs2005/msgbox/internal/server/models"
	"github.com/dmitrijs2005/msgbox/internal/server/repositories"
	"github.com/dmitrijs2005/msgbox/internal/server/repositories/repomanager"
)

// -------- test fakes --------

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

var errBoom = errors.New("boom")

type brokenRepo[T any] struct{}

func (brokenRepo[T]) FindByID(context.Context, string) (*T, error)           { return nil, errBoom }
func (brokenRepo[T]) FindAll(context.Context) ([]*T, error)                  { return nil, errBoom }
func (brokenRepo[T]) FindByField(context.Context, string, any) ([]*T, error) { return nil, errBoom }
func (brokenRepo[T]) Save(context.Context, *T) error                         { return errBoom }
func (brokenRepo[T]) Update(context.Context, string, repositories.Fields) (bool, error) {
	return false, errBoom
}
func (brokenRepo[T]) Delete(context.Context, string) (bool, error) { return false, errBoom }

type brokenManager struct{}

func (brokenManager) Users() repositories.Repository[models.User] { return brokenRepo[models.User]{} }
func (brokenManager) Messages() repositories.Repository[models.Message] {
	return brokenRepo[models.Message]{}
}
func (brokenManager) Ping(context.Context) error { return errBoom }
func (brokenManager) Close() error               { return nil }

// -------- helpers --------

type fixture struct {
	rm      repomanager.RepositoryManager
	users   *UserService
	mailbox *MailboxService
	clock   *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	rm, err := repomanager.NewJSONRepositoryManager(t.TempDir())
	require.NoError(t, err)
	return newFixtureWith(t, rm)
}

func newFixtureWith(t *testing.T, rm repomanager.RepositoryManager) *fixture {
	t.Helper()
	clock := newFakeClock()
	return &fixture{
		rm:      rm,
		users:   NewUserService(rm, auth.NewHasher(bcrypt.MinCost), DefaultLimits, clock.Now),
		mailbox: NewMailboxService(rm, NewIDGenerator(20, clock.Now), DefaultLimits, clock.Now),
		clock:   clock,
	}
}

func (f *fixture) mustCreate(t *testing.T, name string, role models.Role) *models.User {
	t.Helper()
	u, err := f.users.Create(context.Background(), name, "pw-"+name, role)
	require.NoError(t, err)
	return u
}

func (f *fixture) send(ctx context.Context, to, from, body string) (*models.Message, error) {
	return f.mailbox.Enqueue(ctx, f.users.Exists, to, from, body)
}
