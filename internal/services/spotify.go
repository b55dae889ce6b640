// Spotify API implementation of [PlaylistSource]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/hbarnett99/so-you-made-a-mix/internal/models"
	"github.com/hbarnett99/so-you-made-a-mix/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"
)

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type externalIDs struct {
	ISRC string `json:"isrc"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Artists      []SpotifyArtist `json:"artists"`
	Album        SpotifyAlbum    `json:"album"`
	DurationMS   int             `json:"duration_ms"`
	Explicit     bool            `json:"explicit"`
	ExternalIDs  externalIDs     `json:"external_ids"`
	ExternalURLs externalURLs    `json:"external_urls"`
	Popularity   int             `json:"popularity"`
	IsLocal      bool            `json:"is_local"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	ReleaseDate string         `json:"release_date"`
	Images      []SpotifyImage `json:"images"`
}

type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// SpotifyPlaylistTrack represents a track within a playlist context. Track is nil for removed or local entries.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyPaginatedTracks is one page of playlist entries.
type SpotifyPaginatedTracks struct {
	Items  []SpotifyPlaylistTrack `json:"items"`
	Total  int                    `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
	Next   *string                `json:"next"`
}

// SpotifyPlaylist represents a Spotify playlist with its first page of tracks.
type SpotifyPlaylist struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name"`
	Description  string                 `json:"description"`
	Owner        Owner                  `json:"owner"`
	Public       bool                   `json:"public"`
	Tracks       SpotifyPaginatedTracks `json:"tracks"`
	Images       []SpotifyImage         `json:"images"`
	ExternalURLs externalURLs           `json:"external_urls"`
}

type spotifyError struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// SpotifyService implements [PlaylistSource] with an app-only client-credentials token.
type SpotifyService struct {
	baseURL    string
	httpClient *http.Client
	retry      shared.RetryPolicy
	logger     *log.Logger
	missing    bool
}

// SpotifyOption configures a [SpotifyService].
type SpotifyOption func(*spotifyOptions)

type spotifyOptions struct {
	httpClient *http.Client
	retry      shared.RetryPolicy
	logger     *log.Logger
}

// WithSpotifyHTTPClient sets the base HTTP client used for both token and API requests.
func WithSpotifyHTTPClient(client *http.Client) SpotifyOption {
	return func(o *spotifyOptions) { o.httpClient = client }
}

// WithSpotifyRetry sets the retry policy for API calls.
func WithSpotifyRetry(p shared.RetryPolicy) SpotifyOption {
	return func(o *spotifyOptions) { o.retry = p }
}

// WithSpotifyLogger sets the logger.
func WithSpotifyLogger(l *log.Logger) SpotifyOption {
	return func(o *spotifyOptions) { o.logger = l }
}

// NewSpotifyService creates a Spotify client. The token is fetched on first use and renewed by the transport.
func NewSpotifyService(cfg shared.SpotifyConfig, opts ...SpotifyOption) *SpotifyService {
	o := spotifyOptions{retry: shared.DefaultRetryPolicy(), logger: log.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = spotifyTokenURL
	}
	baseURL := strings.TrimRight(cfg.APIBase, "/")
	if baseURL == "" {
		baseURL = spotifyBaseURL
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	ctx := context.Background()
	if o.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
	}

	return &SpotifyService{
		baseURL:    baseURL,
		httpClient: cc.Client(ctx),
		retry:      o.retry,
		logger:     o.logger,
		missing:    cfg.ClientID == "" || cfg.ClientSecret == "",
	}
}

// Name returns the service name.
func (s *SpotifyService) Name() string {
	return "Spotify"
}

// ExportPlaylist fetches playlist metadata and follows the tracks paging links until every entry is loaded.
//
// Removed and local entries (no track object) are skipped.
func (s *SpotifyService) ExportPlaylist(ctx context.Context, playlistID string) (*models.PlaylistExport, error) {
	if strings.TrimSpace(playlistID) == "" {
		return nil, fmt.Errorf("%w: playlist id is required", shared.ErrInvalidInput)
	}

	var sp SpotifyPlaylist
	if err := s.doRequest(ctx, s.baseURL+"/playlists/"+url.PathEscape(playlistID), &sp); err != nil {
		return nil, err
	}

	export := &models.PlaylistExport{
		Playlist: models.Playlist{
			ID:          sp.ID,
			Name:        sp.Name,
			Description: sp.Description,
			Owner:       sp.Owner.DisplayName,
			Public:      sp.Public,
			URL:         sp.ExternalURLs.Spotify,
			TrackCount:  sp.Tracks.Total,
		},
		Items: make([]models.PlaylistItem, 0, sp.Tracks.Total),
	}
	if len(sp.Images) > 0 {
		export.Playlist.Image = sp.Images[0].URL
	}

	page := sp.Tracks
	for {
		for _, item := range page.Items {
			if item.Track == nil || item.Track.ID == "" {
				continue
			}
			export.Items = append(export.Items, models.PlaylistItem{AddedAt: item.AddedAt, Track: item.Track.toModel()})
		}

		if page.Next == nil || *page.Next == "" {
			break
		}

		next := *page.Next
		page = SpotifyPaginatedTracks{}
		if err := s.doRequest(ctx, next, &page); err != nil {
			return nil, fmt.Errorf("failed to load tracks page: %w", err)
		}
	}

	s.logger.Debug("exported playlist", "id", playlistID, "tracks", len(export.Items))
	return export, nil
}

func (t SpotifyTrack) toModel() models.Track {
	artists := make([]models.Artist, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = models.Artist{ID: a.ID, Name: a.Name}
	}

	album := models.Album{ID: t.Album.ID, Title: t.Album.Name, ReleaseDate: t.Album.ReleaseDate}
	if len(t.Album.Images) > 0 {
		album.Cover = t.Album.Images[0].URL
	}

	return models.Track{
		ID:         t.ID,
		Name:       t.Name,
		Artists:    artists,
		Album:      album,
		ISRC:       t.ExternalIDs.ISRC,
		DurationMS: t.DurationMS,
		Explicit:   t.Explicit,
		Popularity: t.Popularity,
		URL:        t.ExternalURLs.Spotify,
	}
}

// doRequest performs an authenticated GET against an absolute API URL.
func (s *SpotifyService) doRequest(ctx context.Context, apiURL string, result any) error {
	if s.missing {
		return &AuthError{Message: "Spotify credentials not configured"}
	}

	return s.retry.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
		if err != nil {
			return shared.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Accept", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			var re *oauth2.RetrieveError
			if errors.As(err, &re) {
				return classifyExchangeError(err)
			}
			return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return shared.Permanent(shared.ErrPlaylistNotFound)
		case resp.StatusCode == http.StatusUnauthorized:
			return shared.Permanent(&AuthError{Status: resp.StatusCode, Message: spotifyErrorMessage(body)})
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			apiErr := fmt.Errorf("%w: spotify status %d: %s", shared.ErrAPIRequest, resp.StatusCode, spotifyErrorMessage(body))
			if retryable(resp.StatusCode) {
				return apiErr
			}
			return shared.Permanent(apiErr)
		}

		if err := json.Unmarshal(body, result); err != nil {
			return shared.Permanent(fmt.Errorf("failed to decode response: %w", err))
		}
		return nil
	})
}

func spotifyErrorMessage(body []byte) string {
	var e spotifyError
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return strings.TrimSpace(string(body))
}
