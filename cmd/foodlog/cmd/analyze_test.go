package cmd

import (
	"bufio"
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kingst/foodlog/internal/app"
	"github.com/kingst/foodlog/internal/config"
	"github.com/kingst/foodlog/internal/devserver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T, token string) (*app.App, string) {
	t.Helper()

	remote := httptest.NewServer(devserver.New(devserver.Config{
		Secret: "secret",
		Tokens: []string{"session-token"},
	}).Handler())
	t.Cleanup(remote.Close)

	dir := t.TempDir()
	a, err := app.New(&config.Config{
		DataDir:       filepath.Join(dir, "data"),
		StoreDriver:   "json",
		BlobBackend:   "local",
		APIBaseURL:    remote.URL,
		HTTPTimeout:   5 * time.Second,
		MaxImageBytes: 3_750_000,
		SessionToken:  token,
		RetentionDays: 7,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 16, 16)), nil))
	photo := filepath.Join(dir, "lunch.jpg")
	require.NoError(t, os.WriteFile(photo, buf.Bytes(), 0o644))

	return a, photo
}

func input(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}

func TestCaptureSavesAfterConfirmation(t *testing.T) {
	a, photo := newTestApp(t, "session-token")
	var out bytes.Buffer

	err := capture(context.Background(), a, photo, captureOptions{}, input("y\n"), &out)
	require.NoError(t, err)

	meals := a.MealService.Meals()
	require.Len(t, meals, 1)
	assert.Equal(t, 450, meals[0].CaloriesInKcal)
	assert.Contains(t, out.String(), "Grilled chicken salad")
	assert.Contains(t, out.String(), "Saved meal "+meals[0].ID)
}

func TestCaptureDiscardByDefault(t *testing.T) {
	a, photo := newTestApp(t, "session-token")
	var out bytes.Buffer

	err := capture(context.Background(), a, photo, captureOptions{}, input("\n"), &out)
	require.NoError(t, err)

	assert.Empty(t, a.MealService.Meals())
	assert.Contains(t, out.String(), "Discarded.")
}

func TestCaptureWithOverrides(t *testing.T) {
	a, photo := newTestApp(t, "session-token")
	desc := "Half a salad"
	calories := 1225

	opts := captureOptions{yes: true}
	opts.changes.Description = &desc
	opts.changes.Calories = &calories

	var out bytes.Buffer
	require.NoError(t, capture(context.Background(), a, photo, opts, input(""), &out))

	meals := a.MealService.Meals()
	require.Len(t, meals, 1)
	assert.Equal(t, "Half a salad", meals[0].Description)
	assert.Equal(t, 1225, meals[0].CaloriesInKcal)
	assert.Contains(t, out.String(), "1,225 kcal")
}

func TestCaptureUnauthenticated(t *testing.T) {
	a, photo := newTestApp(t, "stale-token")
	var out bytes.Buffer

	err := capture(context.Background(), a, photo, captureOptions{yes: true}, input(""), &out)
	require.EqualError(t, err, "Not authenticated")

	assert.Equal(t, "idle", string(a.Workflow.State().Status))
	assert.Empty(t, a.MealService.Meals())
}
