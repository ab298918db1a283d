package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"itemstore/internal/item/model"
	"itemstore/pkg/logger"
)

// FileRepository keeps the collection as a JSON array in a single file.
// Saves go to a temp file in the same directory which is then renamed over
// the document, so readers never see a partial write.
type FileRepository struct {
	path string
}

func NewFileRepository(path string) (*FileRepository, error) {
	if path == "" {
		return nil, fmt.Errorf("file repository: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &FileRepository{path: path}, nil
}

// Path returns the document location.
func (r *FileRepository) Path() string {
	return r.path
}

func (r *FileRepository) Load(_ context.Context) (model.Collection, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.Collection{}, nil
		}
		logger.Sugar.Errorf("Failed to read %s: %v", r.path, err)
		return nil, fmt.Errorf("%w: read %s: %v", model.ErrCorruptStore, r.path, err)
	}
	items, err := decodeCollection(data)
	if err != nil {
		logger.Sugar.Errorf("Failed to parse %s: %v", r.path, err)
		return nil, err
	}
	return items, nil
}

func (r *FileRepository) Save(_ context.Context, items model.Collection) error {
	data, err := EncodeCollection(items)
	if err != nil {
		return err
	}
	if err := r.writeAtomic(data); err != nil {
		logger.Sugar.Errorf("Failed to save %s: %v", r.path, err)
		return fmt.Errorf("%w: %v", model.ErrPersistenceFailure, err)
	}
	return nil
}

func (r *FileRepository) writeAtomic(data []byte) (err error) {
	dir, base := filepath.Split(r.path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Chmod(0o644); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), r.path)
}

func (r *FileRepository) Close() error { return nil }
