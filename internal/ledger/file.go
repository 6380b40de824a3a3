package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// FileStore keeps the ledger as a JSON array of strings in a single file.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load(_ context.Context) (*Ledger, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Info("ledger file not found, starting empty", "path", s.path)
			return New(), nil
		}
		return nil, fmt.Errorf("%w: read %s: %w", ErrLoad, s.path, err)
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrLoad, s.path, err)
	}
	if ids == nil {
		return nil, fmt.Errorf("%w: decode %s: not a JSON array", ErrLoad, s.path)
	}

	l := New(ids...)
	slog.Debug("ledger loaded", "path", s.path, "entries", l.Len())
	return l, nil
}

// Save replaces the file with the full ledger. The content is written to a
// temporary file in the same directory and renamed over the target, so readers
// only ever observe the previous or the new ledger.
func (s *FileStore) Save(_ context.Context, l *Ledger) error {
	data, err := json.MarshalIndent(l.IDs(), "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrSave, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create dir %s: %w", ErrSave, dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %w", ErrSave, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write %s: %w", ErrSave, tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: sync %s: %w", ErrSave, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", ErrSave, tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("%w: chmod %s: %w", ErrSave, tmpName, err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("%w: replace %s: %w", ErrSave, s.path, err)
	}

	return nil
}
