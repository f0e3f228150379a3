// Package store is the persistence core: JSON-array files guarded by a named
// exclusive lock. Every mutating operation follows the same shape (acquire
// the lock for the backing resource, re-read the current array, apply the
// change, write the full array back) so concurrent writers can never lose
// each other's updates.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"jewelry-backend/internal/apperror"
)

// Locker serializes access to named resources. Implementations must release
// the lock on every exit path, including when fn fails.
type Locker interface {
	// WithExclusive runs fn while holding the exclusive lock for resource.
	// It returns fn's error, or a contention error if the lock could not be
	// acquired within the implementation's retry budget.
	WithExclusive(ctx context.Context, resource string, fn func() error) error
}

// ReadArray loads a JSON array of T from path. A missing or empty file reads
// as an empty slice (first-run bootstrap); content that is present but not a
// well-formed array surfaces a corruption error distinct from not-found.
func ReadArray[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []T{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []T{}, nil
	}
	var records []T
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, apperror.Wrap(apperror.KindCorruption,
			fmt.Sprintf("stored data in %s is not a valid record array", filepath.Base(path)), err)
	}
	return records, nil
}

// WriteArray serializes records as a pretty-printed JSON array and overwrites
// path with it. The caller is expected to hold the resource lock.
func WriteArray[T any](path string, records []T) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal records for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Collection binds a Locker to one JSON-array file and exposes the two access
// modes the domain layer needs: unlocked snapshot reads and lock-guarded
// read-modify-write updates.
type Collection[T any] struct {
	locker Locker
	path   string
}

// NewCollection creates a collection over the file at path. The lock resource
// name is the file's base name, so collections over the same file contend on
// the same lock.
func NewCollection[T any](locker Locker, path string) *Collection[T] {
	return &Collection[T]{locker: locker, path: path}
}

// Path returns the backing file path.
func (c *Collection[T]) Path() string { return c.path }

// Resource returns the lock resource name for the collection.
func (c *Collection[T]) Resource() string { return filepath.Base(c.path) }

// Snapshot reads the current records without taking the lock. Snapshots are
// fine for listings and pre-validation but must never be the basis for a
// write decision; Update re-reads under the lock for that.
func (c *Collection[T]) Snapshot() ([]T, error) {
	return ReadArray[T](c.path)
}

// Update acquires the collection's lock, re-reads the current records, applies
// fn, and persists fn's result. If fn returns an error nothing is written and
// the error propagates; the lock is released either way.
func (c *Collection[T]) Update(ctx context.Context, fn func(records []T) ([]T, error)) error {
	return c.locker.WithExclusive(ctx, c.Resource(), func() error {
		records, err := ReadArray[T](c.path)
		if err != nil {
			return err
		}
		next, err := fn(records)
		if err != nil {
			return err
		}
		return WriteArray(c.path, next)
	})
}
