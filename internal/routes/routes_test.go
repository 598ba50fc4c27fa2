package routes

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kingst/foodlog/internal/app"
	"github.com/kingst/foodlog/internal/config"
	"github.com/kingst/foodlog/internal/devserver"
	"github.com/kingst/foodlog/internal/model"
	"github.com/kingst/foodlog/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for x := range 32 {
		for y := range 24 {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: 120, B: uint8(y * 10), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func newAPI(t *testing.T) (*httptest.Server, *app.App) {
	t.Helper()

	remote := httptest.NewServer(devserver.New(devserver.Config{
		Secret: "secret",
		Tokens: []string{"session-token"},
	}).Handler())
	t.Cleanup(remote.Close)

	cfg := &config.Config{
		AppEnv:             "development",
		DataDir:            t.TempDir(),
		StoreDriver:        "json",
		BlobBackend:        "local",
		APIBaseURL:         remote.URL,
		HTTPTimeout:        5 * time.Second,
		MaxImageBytes:      3_750_000,
		SessionToken:       "session-token",
		RetentionDays:      7,
		AnalysisRateLimit:  10,
		AnalysisRateWindow: time.Minute,
	}
	a, err := app.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	api := httptest.NewServer(SetupRoutes(a))
	t.Cleanup(api.Close)
	return api, a
}

func do(t *testing.T, method, url string, body io.Reader) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func waitForStatus(t *testing.T, api *httptest.Server, want workflow.Status) workflow.State {
	t.Helper()
	var state workflow.State
	require.Eventually(t, func() bool {
		resp := do(t, http.MethodGet, api.URL+"/v1/analysis", nil)
		state = decode[workflow.State](t, resp)
		return state.Status == want
	}, 5*time.Second, 20*time.Millisecond)
	return state
}

func TestAnalyzeEditConfirm(t *testing.T) {
	api, _ := newAPI(t)
	photo := testJPEG(t)

	resp := do(t, http.MethodPost, api.URL+"/v1/analysis", bytes.NewReader(photo))
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	state := waitForStatus(t, api, workflow.StatusPendingConfirmation)
	assert.Equal(t, 450, state.Pending.Calories)
	assert.Equal(t, model.ConfidenceHigh, state.Pending.Confidence)

	resp = do(t, http.MethodGet, api.URL+"/v1/analysis/preview", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))

	resp = do(t, http.MethodPost, api.URL+"/v1/analysis", bytes.NewReader(photo))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = do(t, http.MethodPatch, api.URL+"/v1/analysis", strings.NewReader(`{"calories":500,"description":"Chicken salad"}`))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodPatch, api.URL+"/v1/analysis", strings.NewReader(`{"protein":-1}`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPost, api.URL+"/v1/analysis/confirm", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	meal := decode[model.MealRecord](t, resp)
	assert.Equal(t, 500, meal.CaloriesInKcal)

	resp = do(t, http.MethodGet, api.URL+"/v1/meals", nil)
	meals := decode[[]model.MealRecord](t, resp)
	require.Len(t, meals, 1)
	assert.Equal(t, "Chicken salad", meals[0].Description)
	assert.Equal(t, 40, meals[0].CarbohydratesInGrams)
	require.NotNil(t, meals[0].ImageFilename)
	assert.Equal(t, meal.ID+".jpg", *meals[0].ImageFilename)

	resp = do(t, http.MethodGet, api.URL+"/v1/meals/"+meal.ID+"/image", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stored, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, photo, stored)

	resp = do(t, http.MethodGet, api.URL+"/v1/totals", nil)
	totals := decode[model.DailyTotals](t, resp)
	assert.Equal(t, 500, totals.Calories)
	assert.Equal(t, 1500, totals.CaloriesRemaining)

	resp = do(t, http.MethodPost, api.URL+"/v1/analysis/confirm", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCancelLeavesHistoryEmpty(t *testing.T) {
	api, a := newAPI(t)

	resp := do(t, http.MethodPost, api.URL+"/v1/analysis", bytes.NewReader(testJPEG(t)))
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	waitForStatus(t, api, workflow.StatusPendingConfirmation)

	resp = do(t, http.MethodPost, api.URL+"/v1/analysis/cancel", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, workflow.StatusIdle, decode[workflow.State](t, resp).Status)

	assert.Empty(t, a.MealService.Meals())
}

func TestRejectsNonImageUpload(t *testing.T) {
	api, _ := newAPI(t)

	resp := do(t, http.MethodPost, api.URL+"/v1/analysis", strings.NewReader("not an image"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMealEditAndDelete(t *testing.T) {
	api, a := newAPI(t)
	_, err := a.MealService.Add(&model.MealRecord{
		ID:             "m1",
		Date:           time.Now(),
		Description:    "Toast",
		CaloriesInKcal: 200,
	})
	require.NoError(t, err)

	resp := do(t, http.MethodPut, api.URL+"/v1/meals/m1", strings.NewReader(`{"description":"Toast with jam","caloriesInKcal":260}`))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[model.MealRecord](t, resp)
	assert.Equal(t, "Toast with jam", updated.Description)
	assert.Equal(t, 260, updated.CaloriesInKcal)

	resp = do(t, http.MethodPut, api.URL+"/v1/meals/missing", strings.NewReader(`{}`))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodDelete, api.URL+"/v1/meals/m1", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = do(t, http.MethodDelete, api.URL+"/v1/meals/m1", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, http.MethodGet, api.URL+"/v1/meals/m1/image", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Empty(t, a.MealService.Meals())
}

func TestGoals(t *testing.T) {
	api, _ := newAPI(t)

	resp := do(t, http.MethodGet, api.URL+"/v1/goals", nil)
	assert.Equal(t, model.DefaultGoals, decode[model.DailyGoals](t, resp))

	resp = do(t, http.MethodPut, api.URL+"/v1/goals", strings.NewReader(`{"calories":1800,"carbohydrates":120,"protein":140}`))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodPut, api.URL+"/v1/goals", strings.NewReader(`{"calories":0,"carbohydrates":120,"protein":140}`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodGet, api.URL+"/v1/goals", nil)
	assert.Equal(t, model.DailyGoals{Calories: 1800, Carbohydrates: 120, Protein: 140}, decode[model.DailyGoals](t, resp))
}

func TestEventsStream(t *testing.T) {
	api, _ := newAPI(t)

	wsURL := "ws" + strings.TrimPrefix(api.URL, "http") + "/v1/analysis/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var state workflow.State
	require.NoError(t, conn.ReadJSON(&state))
	assert.Equal(t, workflow.StatusIdle, state.Status)

	resp := do(t, http.MethodPost, api.URL+"/v1/analysis", bytes.NewReader(testJPEG(t)))
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for state.Status != workflow.StatusPendingConfirmation {
		require.NoError(t, conn.ReadJSON(&state))
	}
	assert.Equal(t, "Grilled chicken salad", state.Pending.Description)
}

func TestHealthAndMetrics(t *testing.T) {
	api, _ := newAPI(t)

	resp := do(t, http.MethodGet, api.URL+"/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	do(t, http.MethodGet, api.URL+"/v1/meals", nil)
	resp = do(t, http.MethodGet, api.URL+"/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `foodlog_http_requests_total{method="GET",path="/v1/meals",status="200"}`)
}
