package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	cfg "github.com/kingst/foodlog/internal/config"
)

var (
	ErrNotFound  = errors.New("blob not found")
	ErrInvalidID = errors.New("invalid blob id")
)

// BlobStore persists raw image bytes keyed by meal id.
// Every call reports success or failure; callers decide whether a failure is fatal.
type BlobStore interface {
	// Save writes (or overwrites) the blob for id
	Save(id string, data []byte) error

	// Load returns the blob for id or ErrNotFound
	Load(id string) ([]byte, error)

	// Delete removes the blob for id; deleting a missing blob is not an error
	Delete(id string) error

	// Filename is the deterministic name the blob is stored under
	Filename(id string) string
}

// Filename maps a meal id to its blob name: <id>.jpg
func Filename(id string) string {
	return id + ".jpg"
}

func checkID(id string) error {
	if id == "" || id != filepath.Base(id) || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// New creates the blob store selected by BLOB_BACKEND
func New(c *cfg.Config) (BlobStore, error) {
	switch c.BlobBackend {
	case "s3":
		slog.Info("initializing S3 blob storage",
			"bucket", c.S3Bucket,
			"region", c.S3Region,
			"endpoint", c.S3Endpoint,
		)
		return NewS3Storage(S3Config{
			Region:    c.S3Region,
			Bucket:    c.S3Bucket,
			AccessKey: c.S3AccessKey,
			SecretKey: c.S3SecretKey,
			Endpoint:  c.S3Endpoint,
			Prefix:    "meal_images",
		})
	case "local", "":
		slog.Info("initializing local blob storage", "dir", c.ImagesDir())
		return NewLocalStorage(c.ImagesDir()), nil
	default:
		return nil, fmt.Errorf("unknown blob backend: %s", c.BlobBackend)
	}
}
