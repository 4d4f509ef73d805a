package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aspirant2018/niqatech-backend/internal/config"
)

type Storage interface {
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Upload(ctx context.Context, key string, data io.Reader) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// FileSystem is implemented by storages whose objects are plain files that
// can be edited in place.
type FileSystem interface {
	Path(key string) (string, error)
}

// New builds the storage selected by cfg.Driver.
func New(cfg config.StorageConfig) (Storage, error) {
	switch cfg.Driver {
	case config.StorageLocal:
		return NewLocalStorage(cfg.Local.Root)
	case config.StorageS3:
		return NewS3Storage(cfg.S3)
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

// UploadKey is the object key of a user's uploaded workbook.
func UploadKey(userID, fileID, ext string) string {
	return path.Join("uploads", userID, fileID+strings.ToLower(ext))
}

func cleanKey(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "\\") {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return strings.TrimPrefix(clean, "/"), nil
}
