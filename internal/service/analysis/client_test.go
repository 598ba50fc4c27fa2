package analysis

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/kingst/foodlog/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeService counts calls per step and lets each test override a step's response.
type fakeService struct {
	server *httptest.Server

	slotCalls    atomic.Int32
	uploadCalls  atomic.Int32
	analyzeCalls atomic.Int32

	slot    http.HandlerFunc
	upload  http.HandlerFunc
	analyze http.HandlerFunc

	uploaded      []byte
	uploadAuth    string
	uploadType    string
	analyzedImage string
}

func newFakeService(t *testing.T) *fakeService {
	t.Helper()
	f := &fakeService{}

	f.slot = func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"upload_url":"`+f.server.URL+`/upload/abc.jpg","image_id":"abc.jpg"}`)
	}
	f.upload = func(w http.ResponseWriter, r *http.Request) {
		f.uploaded, _ = io.ReadAll(r.Body)
		f.uploadAuth = r.Header.Get("Authorization")
		f.uploadType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}
	f.analyze = func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.analyzedImage = r.PathValue("id")
		_, _ = io.WriteString(w, `{"calories":450,"carbohydrates_grams":40,"protein_grams":20,"description":"Grilled chicken salad","image_id":"abc.jpg","confidence":"high"}`)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/food/upload_url", func(w http.ResponseWriter, r *http.Request) {
		f.slotCalls.Add(1)
		f.slot(w, r)
	})
	mux.HandleFunc("PUT /upload/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.uploadCalls.Add(1)
		f.upload(w, r)
	})
	mux.HandleFunc("GET /v1/food/analyze/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.analyzeCalls.Add(1)
		f.analyze(w, r)
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeService) counts() [3]int32 {
	return [3]int32{f.slotCalls.Load(), f.uploadCalls.Load(), f.analyzeCalls.Load()}
}

func TestAnalyzeRunsAllSteps(t *testing.T) {
	f := newFakeService(t)
	client := NewClient(f.server.URL, f.server.Client())

	result, err := client.Analyze(context.Background(), []byte{1, 2, 3, 4, 5}, "good-token")
	require.NoError(t, err)

	assert.Equal(t, 450, result.Calories)
	assert.Equal(t, 40, result.CarbohydratesGrams)
	assert.Equal(t, 20, result.ProteinGrams)
	assert.Equal(t, "Grilled chicken salad", result.Description)
	assert.Equal(t, "high", result.Confidence)

	assert.Equal(t, [3]int32{1, 1, 1}, f.counts())
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, f.uploaded)
	assert.Equal(t, "image/jpeg", f.uploadType)
	assert.Empty(t, f.uploadAuth, "upload step is unauthenticated")
	assert.Equal(t, "abc.jpg", f.analyzedImage)
}

func TestAnalyzeStopsWhenSlotUnauthorized(t *testing.T) {
	f := newFakeService(t)
	client := NewClient(f.server.URL, f.server.Client())

	_, err := client.Analyze(context.Background(), []byte("img"), "expired")
	require.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Equal(t, [3]int32{1, 0, 0}, f.counts())
	assert.Equal(t, "Not authenticated", Message(err))
}

func TestAnalyzeSlotFailureReason(t *testing.T) {
	f := newFakeService(t)
	client := NewClient(f.server.URL, f.server.Client())

	f.slot = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":"daily quota exceeded"}`)
	}
	_, err := client.Analyze(context.Background(), []byte("img"), "good-token")

	var uploadErr *UploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.Equal(t, "daily quota exceeded", uploadErr.Reason)
	assert.Equal(t, "Upload failed: daily quota exceeded", Message(err))
	assert.Equal(t, [3]int32{1, 0, 0}, f.counts())

	f.slot = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `<html>oops</html>`)
	}
	_, err = client.Analyze(context.Background(), []byte("img"), "good-token")
	assert.Equal(t, "Upload failed: Unknown error", Message(err))
}

func TestAnalyzeUploadFailureStopsBeforeAnalysis(t *testing.T) {
	f := newFakeService(t)
	client := NewClient(f.server.URL, f.server.Client())

	f.upload = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}
	_, err := client.Analyze(context.Background(), []byte("img"), "good-token")

	assert.Equal(t, "Upload failed: Upload returned status 403", Message(err))
	assert.Equal(t, [3]int32{1, 1, 0}, f.counts())
}

func TestAnalyzeFailureReasons(t *testing.T) {
	f := newFakeService(t)
	client := NewClient(f.server.URL, f.server.Client())

	f.analyze = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"error":"No food detected in image"}`)
	}
	_, err := client.Analyze(context.Background(), []byte("img"), "good-token")

	var analysisErr *AnalysisError
	require.ErrorAs(t, err, &analysisErr)
	assert.Equal(t, "No food detected in image", Message(err))

	f.analyze = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}
	_, err = client.Analyze(context.Background(), []byte("img"), "good-token")
	assert.Equal(t, "Analysis failed", Message(err))

	f.analyze = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}
	_, err = client.Analyze(context.Background(), []byte("img"), "good-token")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestAnalyzeInvalidUploadTarget(t *testing.T) {
	f := newFakeService(t)
	client := NewClient(f.server.URL, f.server.Client())

	f.slot = func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"upload_url":"not a url","image_id":"abc.jpg"}`)
	}
	_, err := client.Analyze(context.Background(), []byte("img"), "good-token")

	require.ErrorIs(t, err, ErrInvalidRequestTarget)
	assert.Equal(t, "Invalid URL", Message(err))
	assert.Equal(t, [3]int32{1, 0, 0}, f.counts())
}

func TestAnalyzeNetworkError(t *testing.T) {
	f := newFakeService(t)
	client := NewClient(f.server.URL, f.server.Client())
	f.server.Close()

	_, err := client.Analyze(context.Background(), []byte("img"), "good-token")

	var networkErr *NetworkError
	require.ErrorAs(t, err, &networkErr)
	assert.Contains(t, Message(err), "Network error: ")
}

func TestAnalyzeCancelledContext(t *testing.T) {
	f := newFakeService(t)
	client := NewClient(f.server.URL, f.server.Client())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Analyze(ctx, []byte("img"), "good-token")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, [3]int32{0, 0, 0}, f.counts())
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "", Message(nil))
	assert.Equal(t, "Failed to process image", Message(validation.ErrImageDecode))
	assert.Equal(t, "boom", Message(errors.New("boom")))
}

func TestUploadSlotMethodIsConfigurable(t *testing.T) {
	var slotCalls atomic.Int32
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("GET /v1/food/upload_url", func(w http.ResponseWriter, r *http.Request) {
		slotCalls.Add(1)
		_, _ = io.WriteString(w, `{"upload_url":"`+srv.URL+`/upload/abc.jpg","image_id":"abc.jpg"}`)
	})

	_, err := NewClient(srv.URL, nil).RequestUploadSlot(context.Background(), "good-token")
	var uploadErr *UploadError
	require.ErrorAs(t, err, &uploadErr, "POST is not routed")
	assert.Equal(t, int32(0), slotCalls.Load())

	slot, err := NewClient(srv.URL, nil).WithSlotMethod("get").RequestUploadSlot(context.Background(), "good-token")
	require.NoError(t, err)
	assert.Equal(t, "abc.jpg", slot.ImageID)
	assert.Equal(t, int32(1), slotCalls.Load())
}
