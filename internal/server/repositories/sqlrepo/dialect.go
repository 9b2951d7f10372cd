package sqlrepo

import (
	"fmt"

	"github.com/dmitrijs2005/msgbox/internal/dbx"
)

// Dialect captures the driver-specific bits of the relational backend.
type Dialect struct {
	// Name is the configuration value selecting the dialect.
	Name string
	// Driver is the database/sql driver name.
	Driver string
	// Goose is the migration dialect understood by goose.
	Goose string
	// Placeholder is the bind marker style.
	Placeholder dbx.Placeholder
}

var (
	Postgres = Dialect{Name: "postgres", Driver: "pgx", Goose: "postgres", Placeholder: dbx.Dollar}
	SQLite   = Dialect{Name: "sqlite", Driver: "sqlite", Goose: "sqlite3", Placeholder: dbx.Question}
)

// DialectByName resolves a configured backend name.
func DialectByName(name string) (Dialect, error) {
	switch name {
	case Postgres.Name, "postgresql", "pgx":
		return Postgres, nil
	case SQLite.Name, "sqlite3":
		return SQLite, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported sql dialect %q", name)
	}
}
