package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kingst/foodlog/internal/session"
	"github.com/kingst/foodlog/internal/validation"
	"github.com/kingst/foodlog/internal/workflow"
	"golang.org/x/oauth2"
)

const pingInterval = 25 * time.Second

var upgrader = websocket.Upgrader{
	// The API only listens for the local UI.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type AnalysisHandler struct {
	workflow *workflow.Workflow
	tokens   oauth2.TokenSource
}

func NewAnalysisHandler(wf *workflow.Workflow, tokens oauth2.TokenSource) *AnalysisHandler {
	return &AnalysisHandler{
		workflow: wf,
		tokens:   tokens,
	}
}

// Start accepts the raw photo as the request body and begins the analysis.
// The caller's bearer token is forwarded when present; otherwise the
// configured session token is used.
func (h *AnalysisHandler) Start(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, int64(validation.MealImageConstraints.MaxSize)))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "Image too large")
		return
	}

	err = validation.ValidateImage(data, validation.MealImageConstraints)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		token, err = session.BearerToken(h.tokens)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
	}

	err = h.workflow.Start(context.WithoutCancel(r.Context()), data, token)
	if errors.Is(err, workflow.ErrAnalysisInProgress) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		slog.Error("failed to start analysis", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to start analysis")
		return
	}

	writeJSON(w, http.StatusAccepted, h.workflow.State())
}

func (h *AnalysisHandler) State(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.workflow.State())
}

func (h *AnalysisHandler) Preview(w http.ResponseWriter, r *http.Request) {
	state := h.workflow.State()
	if state.Pending == nil || len(state.Pending.Preview) == 0 {
		writeError(w, http.StatusNotFound, "No pending analysis")
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(state.Pending.Preview))
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(state.Pending.Preview)
}

func (h *AnalysisHandler) Edit(w http.ResponseWriter, r *http.Request) {
	var changes workflow.Changes
	err := decodeJSON(r.Body, &changes)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err = h.workflow.Edit(changes)
	switch {
	case errors.Is(err, workflow.ErrNoPendingAnalysis):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, h.workflow.State())
}

func (h *AnalysisHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	meal, report, err := h.workflow.Confirm()
	if errors.Is(err, workflow.ErrNoPendingAnalysis) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		slog.Error("failed to confirm meal", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to save meal")
		return
	}

	markDegraded(w, report)
	writeJSON(w, http.StatusCreated, meal)
}

func (h *AnalysisHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.workflow.Cancel()
	writeJSON(w, http.StatusOK, h.workflow.State())
}

func (h *AnalysisHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.workflow.ClearError()
	writeJSON(w, http.StatusOK, h.workflow.State())
}

// Events streams every workflow state change over a websocket, starting with
// the current state.
func (h *AnalysisHandler) Events(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	states, stop := h.workflow.Subscribe()
	defer stop()

	// read loop ends on client close/error
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case state, ok := <-states:
			if !ok {
				return
			}
			err := conn.WriteJSON(state)
			if err != nil {
				slog.Debug("websocket write failed", "error", err)
				return
			}
		case <-ping.C:
			err := conn.WriteMessage(websocket.PingMessage, nil)
			if err != nil {
				return
			}
		}
	}
}
