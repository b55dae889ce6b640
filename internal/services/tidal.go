// TIDAL API implementation of [CatalogMatcher]
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/hbarnett99/so-you-made-a-mix/internal/models"
	"github.com/hbarnett99/so-you-made-a-mix/internal/shared"
)

const (
	tidalAccept       = "application/vnd.tidal.v1+json"
	tidalMaxBatchSize = 20

	// A single code often maps to several releases (single, album, compilation).
	tidalVersionsPerCode = 5
	tidalMaxSearchLimit  = 100
)

// flexibleID accepts ids encoded as JSON strings or numbers.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexibleID(n.String())
	return nil
}

// TidalImage is one rendition of an album cover.
type TidalImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// TidalArtist is a credited artist.
type TidalArtist struct {
	ID   flexibleID `json:"id"`
	Name string     `json:"name"`
}

// TidalAlbum is the album summary embedded in a track.
type TidalAlbum struct {
	ID          flexibleID   `json:"id"`
	Title       string       `json:"title"`
	ReleaseDate string       `json:"releaseDate"`
	ImageCover  []TidalImage `json:"imageCover"`
}

// TidalTrack is a track as returned by the TIDAL API.
type TidalTrack struct {
	ID           flexibleID    `json:"id"`
	Title        string        `json:"title"`
	ISRC         string        `json:"isrc"`
	Explicit     bool          `json:"explicit"`
	AudioQuality string        `json:"audioQuality"`
	Album        TidalAlbum    `json:"album"`
	Artists      []TidalArtist `json:"artists"`
	Duration     int           `json:"duration"`
	Popularity   float64       `json:"popularity"`
	URL          string        `json:"url"`
}

// TidalSearchResponse is the envelope of a track search.
type TidalSearchResponse struct {
	Tracks struct {
		Items []TidalTrack `json:"items"`
	} `json:"tracks"`
}

type tidalError struct {
	Status      int    `json:"status"`
	SubStatus   int    `json:"subStatus"`
	UserMessage string `json:"userMessage"`
}

// Candidate converts the API track to a [models.CandidateTrack].
func (t TidalTrack) Candidate() models.CandidateTrack {
	artists := make([]models.Artist, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = models.Artist{ID: string(a.ID), Name: a.Name}
	}

	album := models.Album{ID: string(t.Album.ID), Title: t.Album.Title, ReleaseDate: t.Album.ReleaseDate}
	if len(t.Album.ImageCover) > 0 {
		album.Cover = t.Album.ImageCover[0].URL
	}

	return models.CandidateTrack{
		ID:           string(t.ID),
		Title:        t.Title,
		Artists:      artists,
		ISRC:         models.NormalizeCode(t.ISRC),
		Duration:     t.Duration,
		AudioQuality: t.AudioQuality,
		URL:          t.URL,
		Explicit:     t.Explicit,
		Popularity:   t.Popularity,
		Album:        album,
	}
}

// TidalService implements [CatalogMatcher] against the TIDAL API.
type TidalService struct {
	baseURL     string
	countryCode string
	auth        TokenProvider
	httpClient  *http.Client
	retry       shared.RetryPolicy
	logger      *log.Logger
}

// TidalOption configures a [TidalService].
type TidalOption func(*TidalService)

// WithTidalHTTPClient sets the HTTP client for API calls.
func WithTidalHTTPClient(client *http.Client) TidalOption {
	return func(s *TidalService) { s.httpClient = client }
}

// WithTidalRetry sets the retry policy for lookups.
func WithTidalRetry(p shared.RetryPolicy) TidalOption {
	return func(s *TidalService) { s.retry = p }
}

// WithTidalLogger sets the logger.
func WithTidalLogger(l *log.Logger) TidalOption {
	return func(s *TidalService) { s.logger = l }
}

// NewTidalService creates a TIDAL client authenticating through auth.
func NewTidalService(cfg shared.TidalConfig, auth TokenProvider, opts ...TidalOption) *TidalService {
	s := &TidalService{
		baseURL:     strings.TrimRight(cfg.APIBase, "/"),
		countryCode: cfg.CountryCode,
		auth:        auth,
		httpClient:  http.DefaultClient,
		retry:       shared.DefaultRetryPolicy(),
		logger:      log.Default(),
	}
	if s.countryCode == "" {
		s.countryCode = "US"
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the service name.
func (s *TidalService) Name() string {
	return "TIDAL"
}

// MaxBatchSize returns the largest code set [TidalService.LookupByCodes] accepts.
func (s *TidalService) MaxBatchSize() int {
	return tidalMaxBatchSize
}

// LookupByCode searches for one ISRC and returns the first result, or nil on "not found".
func (s *TidalService) LookupByCode(ctx context.Context, code string) (*models.CandidateTrack, error) {
	code = models.NormalizeCode(code)
	if code == "" {
		return nil, fmt.Errorf("%w: empty code", shared.ErrInvalidInput)
	}

	var resp TidalSearchResponse
	found, err := s.doRequest(ctx, "/v2/searchresults/tracks", url.Values{
		"query": {"isrc:" + code},
		"limit": {"1"},
	}, &resp)
	if err != nil || !found || len(resp.Tracks.Items) == 0 {
		return nil, err
	}

	c := resp.Tracks.Items[0].Candidate()
	return &c, nil
}

// LookupByCodes searches for several ISRCs with one disjunctive query.
//
// Results are keyed by the code each returned track reports, so ordering and duplicates in the response
// do not matter. A "not found" response yields an empty map. When the response fills the requested limit,
// extra versions of one code may have crowded others out, so codes still missing are looked up singly.
func (s *TidalService) LookupByCodes(ctx context.Context, codes []string) (map[string]*models.CandidateTrack, error) {
	wanted := make(map[string]bool, len(codes))
	terms := make([]string, 0, len(codes))
	for _, code := range codes {
		code = models.NormalizeCode(code)
		if code == "" || wanted[code] {
			continue
		}
		wanted[code] = true
		terms = append(terms, "isrc:"+code)
	}

	result := make(map[string]*models.CandidateTrack, len(terms))
	if len(terms) == 0 {
		return result, nil
	}
	if len(terms) > tidalMaxBatchSize {
		return nil, fmt.Errorf("%w: %d codes exceeds batch size %d", shared.ErrInvalidInput, len(terms), tidalMaxBatchSize)
	}

	limit := min(len(terms)*tidalVersionsPerCode, tidalMaxSearchLimit)

	var resp TidalSearchResponse
	found, err := s.doRequest(ctx, "/v2/searchresults/tracks", url.Values{
		"query": {strings.Join(terms, " OR ")},
		"limit": {strconv.Itoa(limit)},
	}, &resp)
	if err != nil || !found {
		return result, err
	}

	for _, item := range resp.Tracks.Items {
		c := item.Candidate()
		if !wanted[c.ISRC] {
			continue
		}
		if _, seen := result[c.ISRC]; !seen {
			result[c.ISRC] = &c
		}
	}

	if len(resp.Tracks.Items) < limit {
		return result, nil
	}

	for code := range wanted {
		if _, ok := result[code]; ok {
			continue
		}
		s.logger.Debug("batch result truncated, looking up code singly", "code", code)
		c, err := s.LookupByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		if c != nil {
			result[code] = c
		}
	}

	return result, nil
}

// TrackByID fetches a single track by catalog id, or nil on "not found".
func (s *TidalService) TrackByID(ctx context.Context, id string) (*models.CandidateTrack, error) {
	var track TidalTrack
	found, err := s.doRequest(ctx, "/v2/tracks/"+url.PathEscape(id), url.Values{}, &track)
	if err != nil || !found {
		return nil, err
	}
	c := track.Candidate()
	return &c, nil
}

// doRequest performs an authenticated GET, retrying transient failures.
//
// Returns found=false on 404. Other non-2xx statuses become a [LookupError] carrying the API's userMessage.
func (s *TidalService) doRequest(ctx context.Context, endpoint string, params url.Values, result any) (bool, error) {
	params.Set("countryCode", s.countryCode)
	apiURL := s.baseURL + endpoint + "?" + params.Encode()

	found := true
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		token, err := s.auth.Token(ctx)
		if err != nil {
			return shared.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
		if err != nil {
			return shared.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", tidalAccept)

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			found = false
			return nil
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			lookupErr := &LookupError{Status: resp.StatusCode, Message: tidalErrorMessage(body)}
			if retryable(resp.StatusCode) {
				return lookupErr
			}
			return shared.Permanent(lookupErr)
		}

		if err := json.Unmarshal(body, result); err != nil {
			return shared.Permanent(fmt.Errorf("%w: failed to decode response: %v", shared.ErrLookupFailed, err))
		}
		return nil
	})
	if err != nil {
		s.logger.Debug("tidal request failed", "endpoint", endpoint, "error", err)
		var authErr *AuthError
		if errors.As(err, &authErr) {
			return false, err
		}
		var lookupErr *LookupError
		if !errors.As(err, &lookupErr) && !errors.Is(err, shared.ErrLookupFailed) {
			err = fmt.Errorf("%w: %v", shared.ErrLookupFailed, err)
		}
		return false, err
	}

	return found, nil
}

func tidalErrorMessage(body []byte) string {
	var e tidalError
	if err := json.Unmarshal(body, &e); err == nil && e.UserMessage != "" {
		return e.UserMessage
	}
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return msg
	}
	return "unknown error"
}
