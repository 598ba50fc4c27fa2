package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/kingst/foodlog/internal/service"
)

func decodeJSON(body io.ReadCloser, dst any) error {
	defer body.Close()
	dec := json.NewDecoder(io.LimitReader(body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(data)
	if err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// markDegraded flags a response whose local writes did not all succeed.
// The mutation itself has been applied.
func markDegraded(w http.ResponseWriter, report *service.Report) {
	if report != nil && report.Degraded() {
		w.Header().Set("X-Storage-Degraded", "true")
	}
}
