package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/natefinch/atomic"
)

// LocalStorage keeps one file per meal inside a dedicated directory.
// The directory is created lazily on first write.
type LocalStorage struct {
	mu  sync.Mutex
	dir string
}

func NewLocalStorage(dir string) *LocalStorage {
	return &LocalStorage{dir: dir}
}

func (s *LocalStorage) Filename(id string) string {
	return Filename(id)
}

func (s *LocalStorage) path(id string) string {
	return filepath.Join(s.dir, Filename(id))
}

// Save writes the blob atomically so a crash never leaves a torn image behind
func (s *LocalStorage) Save(id string, data []byte) error {
	if err := checkID(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.MkdirAll(s.dir, 0o755)
	if err != nil {
		return fmt.Errorf("failed to create image directory: %w", err)
	}

	err = atomic.WriteFile(s.path(id), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}

	return nil
}

func (s *LocalStorage) Load(id string) ([]byte, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	return data, nil
}

func (s *LocalStorage) Delete(id string) error {
	if err := checkID(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(id))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete image: %w", err)
	}

	return nil
}
