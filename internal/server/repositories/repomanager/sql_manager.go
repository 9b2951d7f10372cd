package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/msgbox/internal/server/migrations"
	"github.com/dmitrijs2005/msgbox/internal/server/models"
	"github.com/dmitrijs2005/msgbox/internal/server/repositories"
	"github.com/dmitrijs2005/msgbox/internal/server/repositories/sqlrepo"
)

// SQLRepositoryManager owns a connection pool and vends table-backed repositories.
type SQLRepositoryManager struct {
	db       *sql.DB
	dialect  sqlrepo.Dialect
	users    *sqlrepo.Repository[models.User]
	messages *sqlrepo.Repository[models.Message]
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// sqlOpen is a seam for testing sql.Open.
var sqlOpen = sql.Open

// NewSQLRepositoryManager wraps an already opened pool. The manager takes
// ownership of db and closes it in Close.
func NewSQLRepositoryManager(db *sql.DB, dialect sqlrepo.Dialect) *SQLRepositoryManager {
	return &SQLRepositoryManager{
		db:       db,
		dialect:  dialect,
		users:    sqlrepo.New(db, dialect, repositories.UserSchema),
		messages: sqlrepo.New(db, dialect, repositories.MessageSchema),
	}
}

// OpenSQLRepositoryManager opens the pool for backend, checks connectivity
// and applies the embedded migrations.
func OpenSQLRepositoryManager(ctx context.Context, backend, dsn string) (*SQLRepositoryManager, error) {
	dialect, err := sqlrepo.DialectByName(backend)
	if err != nil {
		return nil, err
	}
	if dsn == "" {
		return nil, fmt.Errorf("%s backend: dsn is required", dialect.Name)
	}

	db, err := sqlOpen(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s backend: %w", dialect.Name, err)
	}
	if dialect.Name == sqlrepo.SQLite.Name {
		// one writer at a time; also keeps in-memory databases alive
		db.SetMaxOpenConns(1)
	}

	m := NewSQLRepositoryManager(db, dialect)
	if err := m.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := m.RunMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s backend: migrations: %w", dialect.Name, err)
	}
	return m, nil
}

// RunMigrations sets up goose with the embedded migrations of the dialect
// and runs them against the pool.
func (m *SQLRepositoryManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(m.dialect.Goose); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, m.db, m.dialect.Name); err != nil {
		return err
	}
	return nil
}

func (m *SQLRepositoryManager) Users() repositories.Repository[models.User] { return m.users }

func (m *SQLRepositoryManager) Messages() repositories.Repository[models.Message] {
	return m.messages
}

func (m *SQLRepositoryManager) Ping(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%s backend: %w", m.dialect.Name, err)
	}
	return nil
}

func (m *SQLRepositoryManager) Close() error { return m.db.Close() }
