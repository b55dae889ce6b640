package worker

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/hbarnett99/so-you-made-a-mix/internal/server"
)

type dispatchRequest struct {
	JobID string `json:"jobId"`
}

// Handler exposes the worker over HTTP.
type Handler struct {
	worker *Worker
}

// NewHandler serves w.
func NewHandler(w *Worker) *Handler {
	return &Handler{worker: w}
}

// Register implements [server.Handler].
func (h *Handler) Register(r server.Router) {
	r.Handle(http.MethodGet, "/health", http.HandlerFunc(h.health))
	r.Handle(http.MethodPost, "/download-playlist", http.HandlerFunc(h.accept))
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	server.WriteJSON(w, http.StatusOK, map[string]any{"status": "ok", "active": h.worker.Active()})
}

// accept answers 202 for a new job and for one already running, so a retried dispatch is harmless.
func (h *Handler) accept(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		server.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.JobID) == "" {
		server.WriteError(w, http.StatusBadRequest, "jobId is required")
		return
	}

	h.worker.Accept(req.JobID)
	server.WriteJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}
