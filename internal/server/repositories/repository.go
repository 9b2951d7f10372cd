// Package repositories defines the storage contract shared by every backend
// and the schemas that map msgbox models to flat records.
package repositories

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/msgbox/internal/common"
)

// Fields is a flat record or a partial record keyed by column name.
type Fields map[string]any

// Repository is the uniform CRUD contract over one collection.
//
// Lookups of absent records return (nil, nil). Update and Delete report
// whether a record was affected; a missing id is not an error.
type Repository[T any] interface {
	FindByID(ctx context.Context, id string) (*T, error)
	FindAll(ctx context.Context) ([]*T, error)
	FindByField(ctx context.Context, field string, value any) ([]*T, error)
	Save(ctx context.Context, item *T) error
	Update(ctx context.Context, id string, fields Fields) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// Schema describes how records of type T are persisted.
type Schema[T any] struct {
	// Name is the collection (file key or table) name.
	Name string
	// Columns lists persisted fields in storage order; the first is the id.
	Columns []string
	// Unique lists columns that must not repeat across records.
	Unique []string

	Encode func(item *T) Fields
	Decode func(rec Fields) (*T, error)
	ID     func(item *T) string
	SetID  func(item *T, id string)
}

// IDColumn is the name of the primary key column.
func (s Schema[T]) IDColumn() string { return s.Columns[0] }

// HasColumn reports whether name is a persisted column.
func (s Schema[T]) HasColumn(name string) bool {
	for _, c := range s.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// CheckUpdate validates a partial record: every key must be a column and
// the id can not be changed.
func (s Schema[T]) CheckUpdate(fields Fields) error {
	if len(fields) == 0 {
		return fmt.Errorf("%s: empty update", s.Name)
	}
	for k := range fields {
		if !s.HasColumn(k) || k == s.IDColumn() {
			return fmt.Errorf("%s.%s: %w", s.Name, k, common.ErrUnknownField)
		}
	}
	return nil
}

// CheckField validates a lookup column.
func (s Schema[T]) CheckField(field string) error {
	if !s.HasColumn(field) {
		return fmt.Errorf("%s.%s: %w", s.Name, field, common.ErrUnknownField)
	}
	return nil
}
