// Package docstore is the document persistence layer behind the storefront.
//
// Every entity type lives in one named collection, stored as a single JSON
// array. A Backend moves those arrays to and from durable storage; a
// Collection decodes them into typed records and answers queries in memory.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Backend stores one JSON array per collection name.
//
// Read returns nil when the collection has never been written. Update runs a
// read-modify-write cycle that no other Update on the same collection can
// interleave with; fn receives the current body and returns the new one, or
// nil to leave the collection untouched.
type Backend interface {
	Read(ctx context.Context, collection string) ([]byte, error)
	Update(ctx context.Context, collection string, fn func(current []byte) ([]byte, error)) error
	Close() error
}

// FileBackend keeps each collection in <dir>/<collection>.json.
type FileBackend struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileBackend{
		dir:   dir,
		locks: make(map[string]*sync.RWMutex),
	}, nil
}

func (b *FileBackend) Dir() string {
	return b.dir
}

func (b *FileBackend) path(collection string) string {
	return filepath.Join(b.dir, collection+".json")
}

func (b *FileBackend) lock(collection string) *sync.RWMutex {
	b.mu.Lock()
	defer b.mu.Unlock()

	l, ok := b.locks[collection]
	if !ok {
		l = &sync.RWMutex{}
		b.locks[collection] = l
	}
	return l
}

func (b *FileBackend) Read(ctx context.Context, collection string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l := b.lock(collection)
	l.RLock()
	defer l.RUnlock()

	return b.read(collection)
}

func (b *FileBackend) read(collection string) ([]byte, error) {
	data, err := os.ReadFile(b.path(collection))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", collection, err)
	}
	return data, nil
}

func (b *FileBackend) Update(ctx context.Context, collection string, fn func([]byte) ([]byte, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l := b.lock(collection)
	l.Lock()
	defer l.Unlock()

	current, err := b.read(collection)
	if err != nil {
		return err
	}

	next, err := fn(current)
	if err != nil {
		return err
	}
	if next == nil {
		return nil
	}

	return b.write(collection, next)
}

// write replaces the collection file through a temp file and rename so a
// crash never leaves a half-written array behind.
func (b *FileBackend) write(collection string, data []byte) error {
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmp, err := os.CreateTemp(b.dir, collection+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", collection, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", collection, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", collection, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", collection, err)
	}

	if err := os.Rename(tmpName, b.path(collection)); err != nil {
		return fmt.Errorf("replace %s: %w", collection, err)
	}
	return nil
}

func (b *FileBackend) Close() error {
	return nil
}
