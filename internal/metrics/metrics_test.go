package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrumentHandlerUsesRouteTemplate(t *testing.T) {
	r := mux.NewRouter()
	r.Use(InstrumentHandler)
	r.HandleFunc("/v1/meals/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	counter := httpRequests.WithLabelValues(http.MethodDelete, "/v1/meals/{id}", "204")
	before := testutil.ToFloat64(counter)

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/meals/"+id, nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}

func TestRecordStep(t *testing.T) {
	ok := pipelineSteps.WithLabelValues("upload", "ok")
	failed := pipelineSteps.WithLabelValues("upload", "error")
	okBefore, failedBefore := testutil.ToFloat64(ok), testutil.ToFloat64(failed)

	RecordStep("upload", 20*time.Millisecond, nil)
	RecordStep("upload", 20*time.Millisecond, errors.New("boom"))
	RecordStep("upload", 20*time.Millisecond, nil)

	assert.Equal(t, okBefore+2, testutil.ToFloat64(ok))
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(failed))
}

func TestHandlerExposesStoreCounters(t *testing.T) {
	RecordPruned(3)
	RecordBlobFailure("delete")
	RecordPersistFailure()

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "foodlog_records_pruned_total")
	assert.Contains(t, string(body), `foodlog_records_blob_failures_total{op="delete"}`)
	assert.Contains(t, string(body), "foodlog_records_persist_failures_total")
}
