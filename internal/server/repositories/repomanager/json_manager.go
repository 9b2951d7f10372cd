package repomanager

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/msgbox/internal/filex"
	"github.com/dmitrijs2005/msgbox/internal/server/models"
	"github.com/dmitrijs2005/msgbox/internal/server/repositories"
	"github.com/dmitrijs2005/msgbox/internal/server/repositories/jsonrepo"
)

// JSONRepositoryManager keeps every collection in <dir>/<collection>.json.
type JSONRepositoryManager struct {
	dir      string
	users    *jsonrepo.Repository[models.User]
	messages *jsonrepo.Repository[models.Message]
}

// NewJSONRepositoryManager creates dir when needed and binds the collections to it.
func NewJSONRepositoryManager(dir string) (*JSONRepositoryManager, error) {
	if dir == "" {
		return nil, fmt.Errorf("json backend: data dir is required")
	}
	dir, err := filex.EnsureDir(dir)
	if err != nil {
		return nil, fmt.Errorf("json backend: %w", err)
	}

	users, err := jsonrepo.New(filepath.Join(dir, repositories.UserSchema.Name+".json"), repositories.UserSchema)
	if err != nil {
		return nil, err
	}
	messages, err := jsonrepo.New(filepath.Join(dir, repositories.MessageSchema.Name+".json"), repositories.MessageSchema)
	if err != nil {
		return nil, err
	}
	return &JSONRepositoryManager{dir: dir, users: users, messages: messages}, nil
}

func (m *JSONRepositoryManager) Users() repositories.Repository[models.User] { return m.users }

func (m *JSONRepositoryManager) Messages() repositories.Repository[models.Message] {
	return m.messages
}

// Ping checks that the data directory is still there.
func (m *JSONRepositoryManager) Ping(ctx context.Context) error {
	fi, err := os.Stat(m.dir)
	if err != nil {
		return fmt.Errorf("json backend: %w", err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("json backend: %s is not a directory", m.dir)
	}
	return nil
}

func (m *JSONRepositoryManager) Close() error { return nil }
