// Package repomanager resolves the configured storage backend once at
// startup and vends the repositories the services depend on.
package repomanager

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/msgbox/internal/server/models"
	"github.com/dmitrijs2005/msgbox/internal/server/repositories"
)

// Backend names accepted by Open.
const (
	BackendJSON     = "json"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

type RepositoryManager interface {
	Users() repositories.Repository[models.User]
	Messages() repositories.Repository[models.Message]
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
	// Close releases resources owned by the manager.
	Close() error
}

// Options selects and locates a backend.
type Options struct {
	Backend string
	// DataDir holds the collection files of the json backend.
	DataDir string
	// DSN is the connection string of the relational backends.
	DSN string
}

// Open builds the manager for opts.Backend.
func Open(ctx context.Context, opts Options) (RepositoryManager, error) {
	switch opts.Backend {
	case BackendJSON, "file":
		m, err := NewJSONRepositoryManager(opts.DataDir)
		if err != nil {
			return nil, err
		}
		return m, nil
	case BackendPostgres, BackendSQLite:
		m, err := OpenSQLRepositoryManager(ctx, opts.Backend, opts.DSN)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}
