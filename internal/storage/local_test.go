package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageLifecycle(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "meal_images")
	s := NewLocalStorage(dir)

	_, err := s.Load("m1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Save("m1", []byte("first")))
	require.NoError(t, s.Save("m1", []byte("second")))

	data, err := s.Load("m1")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data)

	_, err = os.Stat(filepath.Join(dir, "m1.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "m1.jpg", s.Filename("m1"))

	require.NoError(t, s.Delete("m1"))
	require.NoError(t, s.Delete("m1"))

	_, err = s.Load("m1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStorageRejectsPathIDs(t *testing.T) {
	s := NewLocalStorage(t.TempDir())

	for _, id := range []string{"", ".", "..", "../escape", "a/b", `a\b`} {
		assert.ErrorIs(t, s.Save(id, []byte("x")), ErrInvalidID, id)
		assert.ErrorIs(t, s.Delete(id), ErrInvalidID, id)
	}
}

func TestLocalStorageSaveFailure(t *testing.T) {
	parent := t.TempDir()
	blocker := filepath.Join(parent, "meal_images")
	require.NoError(t, os.WriteFile(blocker, []byte("not a directory"), 0o644))

	s := NewLocalStorage(blocker)
	assert.Error(t, s.Save("m1", []byte("x")))
}
