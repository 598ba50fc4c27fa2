package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSupported(t *testing.T) {
	assert.True(t, IsSupported("/photos/lunch.JPG"))
	assert.True(t, IsSupported("dinner.webp"))
	assert.False(t, IsSupported(".lunch.jpg"))
	assert.False(t, IsSupported("lunch.jpg~"))
	assert.False(t, IsSupported("notes.txt"))
}

func TestSettledOrder(t *testing.T) {
	now := time.Now()
	pending := map[string]time.Time{
		"b":     now.Add(-2 * time.Second),
		"a":     now.Add(-3 * time.Second),
		"fresh": now,
	}
	assert.Equal(t, []string{"a", "b"}, settled(pending, now, time.Second))
}

func TestRunProcessesDroppedPhotos(t *testing.T) {
	dir := t.TempDir()

	var mu sync.Mutex
	var seen []string
	w := New(dir, 50*time.Millisecond, func(ctx context.Context, path string) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, filepath.Base(path))
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lunch.jpg"), []byte{0xFF, 0xD8, 0xFF}, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-errCh)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"lunch.jpg"}, seen)
}
