// HTTP clients for the server API and the archive worker
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/hbarnett99/so-you-made-a-mix/internal/models"
	"github.com/hbarnett99/so-you-made-a-mix/internal/shared"
)

// StartResponse is the body of a successful POST /download/start.
type StartResponse struct {
	JobID       string `json:"jobId"`
	TotalTracks int    `json:"totalTracks"`
	Message     string `json:"message"`
}

type errorBody struct {
	Error string `json:"error"`
}

// APIService talks to the playlist/download HTTP API. The worker reports progress through it and the CLI
// reads job state with it.
type APIService struct {
	baseURL    string
	httpClient *http.Client
	retry      shared.RetryPolicy
}

// NewAPIService creates a new API client for baseURL.
func NewAPIService(baseURL string, client *http.Client, retry shared.RetryPolicy) *APIService {
	if baseURL == "" {
		baseURL = "http://localhost:3000"
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &APIService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
		retry:      retry,
	}
}

// GetPlaylist fetches the enhanced playlist with match results.
func (a *APIService) GetPlaylist(ctx context.Context, playlistID string) (*models.EnhancedPlaylist, error) {
	var p models.EnhancedPlaylist
	err := a.do(ctx, http.MethodGet, "/playlist/"+url.PathEscape(playlistID), nil, &p, shared.ErrPlaylistNotFound)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetJob fetches the current state of a download job.
func (a *APIService) GetJob(ctx context.Context, jobID string) (*models.DownloadJob, error) {
	var job models.DownloadJob
	err := a.do(ctx, http.MethodGet, "/download/status/"+url.PathEscape(jobID), nil, &job, shared.ErrJobNotFound)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// StartDownload asks the server to start an archive job for a playlist.
func (a *APIService) StartDownload(ctx context.Context, playlistID string) (*StartResponse, error) {
	var resp StartResponse
	body := map[string]string{"playlistId": playlistID}
	if err := a.do(ctx, http.MethodPost, "/download/start", body, &resp, shared.ErrPlaylistNotFound); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CancelJob asks the server to cancel a running job.
func (a *APIService) CancelJob(ctx context.Context, jobID string) error {
	return a.do(ctx, http.MethodPost, "/download/cancel/"+url.PathEscape(jobID), nil, nil, shared.ErrJobNotFound)
}

// DownloadArchive streams a completed job's zip into w and returns the filename the server suggested.
//
// The server deletes the archive once served, so the request is never retried.
func (a *APIService) DownloadArchive(ctx context.Context, jobID string, w io.Writer) (string, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/download/file/"+url.PathEscape(jobID), nil)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode == http.StatusNotFound {
			return "", 0, fmt.Errorf("%w: %s", shared.ErrArchiveNotFound, apiErrorMessage(body))
		}
		return "", 0, fmt.Errorf("%w: status %d: %s", shared.ErrAPIRequest, resp.StatusCode, apiErrorMessage(body))
	}

	filename := jobID + ".zip"
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		filename = params["filename"]
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return filename, n, fmt.Errorf("failed to read archive: %w", err)
	}
	return filename, n, nil
}

// ReportProgress posts a partial job update.
//
// Returns [shared.ErrJobCancelled] when the server refuses the update because the job already reached a
// terminal state, which is how a worker learns it was cancelled.
func (a *APIService) ReportProgress(ctx context.Context, jobID string, update models.JobUpdate) error {
	return a.do(ctx, http.MethodPost, "/download/status/"+url.PathEscape(jobID)+"/update", update, nil, shared.ErrJobNotFound)
}

// do sends a JSON request with the retry policy. 5xx and transport failures are retried; 4xx are mapped
// to sentinel errors and returned immediately.
func (a *APIService) do(ctx context.Context, method, path string, in, out any, notFound error) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	return a.retry.Do(ctx, func(ctx context.Context) error {
		status, body, err := send(ctx, a.httpClient, method, a.baseURL+path, payload)
		if err != nil {
			return err
		}

		switch {
		case status == http.StatusNotFound:
			return shared.Permanent(fmt.Errorf("%w: %s", notFound, apiErrorMessage(body)))
		case status == http.StatusConflict:
			return shared.Permanent(fmt.Errorf("%w: %s", shared.ErrJobCancelled, apiErrorMessage(body)))
		case status == http.StatusBadRequest:
			msg := apiErrorMessage(body)
			if msg == shared.ErrNoDownloadableTracks.Error() {
				return shared.Permanent(shared.ErrNoDownloadableTracks)
			}
			return shared.Permanent(fmt.Errorf("%w: %s", shared.ErrInvalidInput, msg))
		case status < 200 || status >= 300:
			apiErr := fmt.Errorf("%w: status %d: %s", shared.ErrAPIRequest, status, apiErrorMessage(body))
			if retryable(status) {
				return apiErr
			}
			return shared.Permanent(apiErr)
		}

		if out == nil {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return shared.Permanent(fmt.Errorf("failed to decode response: %w", err))
		}
		return nil
	})
}

// WorkerClient hands jobs to the archive worker.
type WorkerClient struct {
	baseURL    string
	httpClient *http.Client
	retry      shared.RetryPolicy
}

// NewWorkerClient creates a dispatch client for the worker at baseURL.
func NewWorkerClient(baseURL string, client *http.Client, retry shared.RetryPolicy) *WorkerClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &WorkerClient{baseURL: strings.TrimRight(baseURL, "/"), httpClient: client, retry: retry}
}

// Dispatch posts {jobId} to the worker. Any failure after retries wraps [shared.ErrWorkerDispatch].
func (w *WorkerClient) Dispatch(ctx context.Context, jobID string) error {
	if w.baseURL == "" {
		return fmt.Errorf("%w: worker URL not configured", shared.ErrWorkerDispatch)
	}

	payload, err := json.Marshal(map[string]string{"jobId": jobID})
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrWorkerDispatch, err)
	}

	err = w.retry.Do(ctx, func(ctx context.Context) error {
		status, body, err := send(ctx, w.httpClient, http.MethodPost, w.baseURL+"/download-playlist", payload)
		if err != nil {
			return err
		}
		if status >= 200 && status < 300 {
			return nil
		}
		dispatchErr := fmt.Errorf("worker responded %d: %s", status, apiErrorMessage(body))
		if retryable(status) {
			return dispatchErr
		}
		return shared.Permanent(dispatchErr)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %v", shared.ErrWorkerDispatch, err)
	}
	return nil
}

func send(ctx context.Context, client *http.Client, method, fullURL string, payload []byte) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return 0, nil, shared.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func apiErrorMessage(body []byte) string {
	var e errorBody
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return e.Error
	}
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return msg
	}
	return "no response body"
}
