package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hbarnett99/so-you-made-a-mix/internal/services"
	"github.com/hbarnett99/so-you-made-a-mix/internal/shared"
)

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes {"error": msg}.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps domain errors to the HTTP status returned to clients.
func statusFor(err error) int {
	var authErr *services.AuthError
	var lookupErr *services.LookupError

	switch {
	case errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrNoDownloadableTracks):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrJobNotFound),
		errors.Is(err, shared.ErrArchiveNotFound),
		errors.Is(err, shared.ErrPlaylistNotFound),
		errors.As(err, &authErr),
		errors.As(err, &lookupErr):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with the status from [statusFor].
//
// Sentinel-only errors keep their own text so the zero-match message reaches clients verbatim.
func respondError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if errors.Is(err, shared.ErrNoDownloadableTracks) {
		msg = shared.ErrNoDownloadableTracks.Error()
	}
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	WriteError(w, status, msg)
}
