package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/hbarnett99/so-you-made-a-mix/internal/jobs"
	"github.com/hbarnett99/so-you-made-a-mix/internal/models"
	"github.com/hbarnett99/so-you-made-a-mix/internal/shared"
)

// maxUpdateBody caps worker progress reports.
const maxUpdateBody = 1 << 20

// Enhancer builds an enhanced playlist.
type Enhancer interface {
	Resolve(ctx context.Context, playlistID string) (*models.EnhancedPlaylist, error)
}

// Orchestrator starts and cancels jobs.
type Orchestrator interface {
	StartJob(ctx context.Context, playlistID string) (*jobs.StartResult, error)
	Cancel(jobID string) (*models.DownloadJob, error)
}

// APIHandler serves the playlist and download endpoints.
type APIHandler struct {
	enhancer     Enhancer
	store        jobs.Store
	orchestrator Orchestrator
	delivery     *jobs.Delivery
	logger       *log.Logger
}

// NewAPIHandler wires the handler dependencies.
func NewAPIHandler(enhancer Enhancer, store jobs.Store, orchestrator Orchestrator, delivery *jobs.Delivery, logger *log.Logger) *APIHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &APIHandler{
		enhancer:     enhancer,
		store:        store,
		orchestrator: orchestrator,
		delivery:     delivery,
		logger:       logger,
	}
}

// Register implements [Handler].
func (h *APIHandler) Register(r Router) {
	r.Handle(http.MethodGet, "/health", http.HandlerFunc(h.health))
	r.Handle(http.MethodGet, "/playlist/{id}", http.HandlerFunc(h.getPlaylist))
	r.Handle(http.MethodPost, "/download/start", http.HandlerFunc(h.startDownload))
	r.Handle(http.MethodGet, "/download/status/{jobId}", http.HandlerFunc(h.getStatus))
	r.Handle(http.MethodPost, "/download/status/{jobId}/update", http.HandlerFunc(h.updateStatus))
	r.Handle(http.MethodPost, "/download/cancel/{jobId}", http.HandlerFunc(h.cancel))
	r.Handle(http.MethodGet, "/download/file/{jobId}", http.HandlerFunc(h.downloadFile))
	r.Handle("", "/", http.HandlerFunc(notFound))
}

func notFound(w http.ResponseWriter, r *http.Request) {
	WriteError(w, http.StatusNotFound, "not found")
}

func (h *APIHandler) health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// getPlaylist returns 404 for any failure to load the playlist, including catalog auth and lookup errors.
func (h *APIHandler) getPlaylist(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	playlist, err := h.enhancer.Resolve(r.Context(), id)
	if err != nil {
		h.logger.Warn("playlist unavailable", "id", id, "error", err)
		if errors.Is(err, shared.ErrInvalidInput) {
			respondError(w, err)
			return
		}
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, playlist)
}

type startRequest struct {
	PlaylistID string `json:"playlistId"`
}

type startResponse struct {
	JobID       string `json:"jobId"`
	TotalTracks int    `json:"totalTracks"`
	Message     string `json:"message"`
}

func (h *APIHandler) startDownload(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUpdateBody)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PlaylistID == "" {
		WriteError(w, http.StatusBadRequest, "playlistId is required")
		return
	}

	res, err := h.orchestrator.StartJob(r.Context(), req.PlaylistID)
	if err != nil {
		respondError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, startResponse{
		JobID:       res.JobID,
		TotalTracks: res.TotalTracks,
		Message:     "Download job started",
	})
}

func (h *APIHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := h.store.Get(r.PathValue("jobId"))
	if !ok {
		WriteError(w, http.StatusNotFound, shared.ErrJobNotFound.Error())
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

func (h *APIHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("jobId")

	var update models.JobUpdate
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUpdateBody)).Decode(&update); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if update.IsEmpty() {
		WriteError(w, http.StatusBadRequest, "update has no fields")
		return
	}
	if update.Status != nil && !update.Status.IsValid() {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", *update.Status))
		return
	}

	job, err := h.store.Update(id, jobs.UpdatesFrom(update)...)
	if err != nil {
		respondError(w, err)
		return
	}

	h.logger.Debug("job updated", "job", id, "status", job.Status, "progress", job.Progress.Current, "total", job.Progress.Total)
	WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *APIHandler) cancel(w http.ResponseWriter, r *http.Request) {
	if _, err := h.orchestrator.Cancel(r.PathValue("jobId")); err != nil {
		respondError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// downloadFile streams the archive once. The file is removed when the response ends, whether or not the
// client read all of it. HEAD reports the headers and leaves the archive staged.
func (h *APIHandler) downloadFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("jobId")

	if r.Method == http.MethodHead {
		filename, size, err := h.delivery.Stat(id)
		if err != nil {
			respondError(w, err)
			return
		}
		setArchiveHeaders(w, filename, size)
		w.WriteHeader(http.StatusOK)
		return
	}

	archive, err := h.delivery.Open(id)
	if err != nil {
		respondError(w, err)
		return
	}
	defer func() {
		if err := archive.Close(); err != nil {
			h.logger.Warn("failed to clean up archive", "job", id, "error", err)
		}
	}()

	setArchiveHeaders(w, archive.Filename, archive.Size)
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, archive); err != nil {
		h.logger.Warn("archive stream interrupted", "job", id, "error", err)
	}
}

func setArchiveHeaders(w http.ResponseWriter, filename string, size int64) {
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
}
