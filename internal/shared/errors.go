package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed = fmt.Errorf("authentication failed")

	// Catalog errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrLookupFailed       = fmt.Errorf("catalog lookup failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")
	ErrTrackNotFound      = fmt.Errorf("track not found")

	// Job errors
	ErrNoDownloadableTracks = fmt.Errorf("No downloadable tracks found in playlist")
	ErrJobNotFound          = fmt.Errorf("job not found")
	ErrArchiveNotFound      = fmt.Errorf("archive not found")
	ErrInvalidTransition    = fmt.Errorf("invalid job status transition")
	ErrWorkerDispatch       = fmt.Errorf("worker dispatch failed")
	ErrJobCancelled         = fmt.Errorf("job cancelled")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
