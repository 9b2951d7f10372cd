// Package jsonrepo implements repositories.Repository over flat JSON files.
// Each file holds one collection as {"<name>": [record, ...]}. Every call
// loads the whole collection, mutates it in memory, and rewrites the file
// through a temporary file and rename.
//
// Access is serialized per file within the process. Separate processes
// sharing a file are not coordinated and may lose updates.
package jsonrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/msgbox/internal/common"
	"github.com/dmitrijs2005/msgbox/internal/filex"
	"github.com/dmitrijs2005/msgbox/internal/server/repositories"
)

var (
	locksMu sync.Mutex
	locks   = map[string]*sync.Mutex{}
)

func fileLock(path string) *sync.Mutex {
	locksMu.Lock()
	defer locksMu.Unlock()
	l, ok := locks[path]
	if !ok {
		l = &sync.Mutex{}
		locks[path] = l
	}
	return l
}

// Repository stores one collection in one JSON file.
type Repository[T any] struct {
	path   string
	schema repositories.Schema[T]
	mu     *sync.Mutex
}

// New returns a repository for schema stored at path. The file is created
// on the first write.
func New[T any](path string, schema repositories.Schema[T]) (*Repository[T], error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("file error: %w", err)
	}
	return &Repository[T]{path: abs, schema: schema, mu: fileLock(abs)}, nil
}

// Path returns the backing file.
func (r *Repository[T]) Path() string { return r.path }

type record = map[string]any

func (r *Repository[T]) load() ([]record, error) {
	b, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file error: %w", err)
	}
	if len(b) == 0 {
		return nil, nil
	}

	var doc map[string][]record
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("file error: %s: %w", r.path, err)
	}
	return doc[r.schema.Name], nil
}

func (r *Repository[T]) store(recs []record) error {
	if recs == nil {
		recs = []record{}
	}
	b, err := json.MarshalIndent(map[string][]record{r.schema.Name: recs}, "", "  ")
	if err != nil {
		return fmt.Errorf("file error: %w", err)
	}

	if err := filex.WriteFileAtomic(r.path, b, 0o644); err != nil {
		return fmt.Errorf("file error: %w", err)
	}
	return nil
}

func (r *Repository[T]) decodeAll(recs []record) ([]*T, error) {
	out := make([]*T, 0, len(recs))
	for _, rec := range recs {
		item, err := r.schema.Decode(rec)
		if err != nil {
			return nil, fmt.Errorf("file error: %w", err)
		}
		out = append(out, item)
	}
	return out, nil
}

func (r *Repository[T]) indexOf(recs []record, id string) int {
	col := r.schema.IDColumn()
	for i, rec := range recs {
		if s, ok := rec[col].(string); ok && s == id {
			return i
		}
	}
	return -1
}

// normalize converts a Go value into what encoding/json produces when the
// value is read back, so in-memory and loaded records compare equal.
func normalize(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository[T]) encode(item *T) (record, error) {
	fields := r.schema.Encode(item)
	rec := make(record, len(fields))
	for k, v := range fields {
		n, err := normalize(v)
		if err != nil {
			return nil, fmt.Errorf("file error: %s: %w", k, err)
		}
		rec[k] = n
	}
	return rec, nil
}

func (r *Repository[T]) FindByID(ctx context.Context, id string) (*T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	recs, err := r.load()
	if err != nil {
		return nil, err
	}
	i := r.indexOf(recs, id)
	if i < 0 {
		return nil, nil
	}
	item, err := r.schema.Decode(recs[i])
	if err != nil {
		return nil, fmt.Errorf("file error: %w", err)
	}
	return item, nil
}

func (r *Repository[T]) FindAll(ctx context.Context) ([]*T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	recs, err := r.load()
	if err != nil {
		return nil, err
	}
	return r.decodeAll(recs)
}

func (r *Repository[T]) FindByField(ctx context.Context, field string, value any) ([]*T, error) {
	if err := r.schema.CheckField(field); err != nil {
		return nil, err
	}
	want, err := normalize(value)
	if err != nil {
		return nil, fmt.Errorf("file error: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	recs, err := r.load()
	if err != nil {
		return nil, err
	}
	matched := make([]record, 0, len(recs))
	for _, rec := range recs {
		if reflect.DeepEqual(rec[field], want) {
			matched = append(matched, rec)
		}
	}
	return r.decodeAll(matched)
}

// Save appends item, assigning a fresh id when it has none. Duplicate ids
// and values of unique columns yield common.ErrAlreadyExists.
func (r *Repository[T]) Save(ctx context.Context, item *T) error {
	if r.schema.ID(item) == "" {
		r.schema.SetID(item, uuid.NewString())
	}
	rec, err := r.encode(item)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	recs, err := r.load()
	if err != nil {
		return err
	}
	if r.indexOf(recs, r.schema.ID(item)) >= 0 {
		return fmt.Errorf("%s id %s: %w", r.schema.Name, r.schema.ID(item), common.ErrAlreadyExists)
	}
	for _, col := range r.schema.Unique {
		for _, existing := range recs {
			if reflect.DeepEqual(existing[col], rec[col]) {
				return fmt.Errorf("%s.%s: %w", r.schema.Name, col, common.ErrAlreadyExists)
			}
		}
	}

	return r.store(append(recs, rec))
}

// Update merges fields into the stored record with the given id.
func (r *Repository[T]) Update(ctx context.Context, id string, fields repositories.Fields) (bool, error) {
	if err := r.schema.CheckUpdate(fields); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	recs, err := r.load()
	if err != nil {
		return false, err
	}
	i := r.indexOf(recs, id)
	if i < 0 {
		return false, nil
	}
	for k, v := range fields {
		n, err := normalize(v)
		if err != nil {
			return false, fmt.Errorf("file error: %s: %w", k, err)
		}
		recs[i][k] = n
	}
	if err := r.store(recs); err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes the record with the given id. Deleting an absent id
// returns false without error.
func (r *Repository[T]) Delete(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	recs, err := r.load()
	if err != nil {
		return false, err
	}
	i := r.indexOf(recs, id)
	if i < 0 {
		return false, nil
	}
	if err := r.store(append(recs[:i], recs[i+1:]...)); err != nil {
		return false, err
	}
	return true, nil
}
