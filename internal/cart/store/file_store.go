package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	carterrors "github.com/abgdnv/shopcart/internal/cart/errors"
)

var validSlotName = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// FileStore keeps every slot in its own <key>.json file inside a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed and returns a store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) path(key string) (string, error) {
	if !validSlotName.MatchString(key) {
		return "", fmt.Errorf("invalid slot name %q", key)
	}
	return filepath.Join(f.dir, key+".json"), nil
}

func (f *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := f.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, carterrors.ErrSlotNotFound
		}
		return nil, fmt.Errorf("%w %s: %w", carterrors.ErrReadSlot, key, err)
	}
	return data, nil
}

// Put writes to a temporary file and renames it over the slot so readers never see a partial write.
func (f *FileStore) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := f.path(key)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w %s: %w", carterrors.ErrWriteSlot, key, err)
	}
	tmpName := tmp.Name()
	if err := writeSynced(tmp, value); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w %s: %w", carterrors.ErrWriteSlot, key, err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w %s: %w", carterrors.ErrWriteSlot, key, err)
	}
	return nil
}

// writeSynced writes value, flushes it to disk and closes f.
// The data must be durable before the rename publishes it.
func writeSynced(f *os.File, value []byte) error {
	if _, err := f.Write(value); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (f *FileStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w %s: %w", carterrors.ErrDeleteSlot, key, err)
	}
	return nil
}
