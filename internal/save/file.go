package save

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// FileBackend stores one JSON file per key under a base directory.
type FileBackend struct {
	dir    string
	mu     sync.Mutex
	logger *zap.Logger
}

var _ Backend = (*FileBackend)(nil)

// NewFileBackend creates the base directory if needed.
func NewFileBackend(dir string, logger *zap.Logger) (*FileBackend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create save directory %s: %w", dir, err)
	}
	return &FileBackend{dir: dir, logger: logger.Named("FileBackend")}, nil
}

func (f *FileBackend) path(key string) string {
	name := strings.NewReplacer(":", "_", "/", "_", "\\", "_").Replace(key)
	return filepath.Join(f.dir, name+".json")
}

func (f *FileBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, true, nil
}

// Write applies puts then deletes. When a step fails, every file already
// touched by the batch is restored to its previous content.
func (f *FileBackend) Write(_ context.Context, batch Batch) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	type undo struct {
		path    string
		prev    []byte
		existed bool
	}
	var applied []undo
	snapshot := func(p string) (undo, error) {
		prev, err := os.ReadFile(p)
		if errors.Is(err, fs.ErrNotExist) {
			return undo{path: p}, nil
		}
		if err != nil {
			return undo{}, err
		}
		return undo{path: p, prev: prev, existed: true}, nil
	}
	rollback := func() {
		for i := len(applied) - 1; i >= 0; i-- {
			u := applied[i]
			var err error
			if u.existed {
				err = writeFileAtomic(u.path, u.prev)
			} else {
				err = os.Remove(u.path)
				if errors.Is(err, fs.ErrNotExist) {
					err = nil
				}
			}
			if err != nil {
				f.logger.Error("Failed to roll back save record", zap.String("path", u.path), zap.Error(err))
			}
		}
	}

	for _, r := range batch.Puts {
		p := f.path(r.Key)
		u, err := snapshot(p)
		if err == nil {
			err = writeFileAtomic(p, r.Value)
		}
		if err != nil {
			rollback()
			return fmt.Errorf("failed to write %s: %w", r.Key, err)
		}
		applied = append(applied, u)
	}
	for _, k := range batch.Deletes {
		p := f.path(k)
		u, err := snapshot(p)
		if err == nil && u.existed {
			err = os.Remove(p)
		}
		if err != nil {
			rollback()
			return fmt.Errorf("failed to delete %s: %w", k, err)
		}
		if u.existed {
			applied = append(applied, u)
		}
	}
	return nil
}

func (f *FileBackend) Close() error { return nil }

// writeFileAtomic writes data to a temp file in the same directory and
// renames it over path, so readers see either the old or the new content.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
