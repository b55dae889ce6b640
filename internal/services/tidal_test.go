package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/hbarnett99/so-you-made-a-mix/internal/shared"
)

type staticToken struct {
	token string
	err   error
	calls int
}

func (s *staticToken) Token(ctx context.Context) (string, error) {
	s.calls++
	return s.token, s.err
}

func tidalTrackJSON(id, isrc, title string) map[string]any {
	return map[string]any{
		"id":           id,
		"title":        title,
		"isrc":         isrc,
		"audioQuality": "LOSSLESS",
		"duration":     215,
		"url":          "https://tidal.com/browse/track/" + id,
		"artists":      []map[string]any{{"id": 7, "name": "Artist"}},
		"album": map[string]any{
			"id":          99,
			"title":       "Album",
			"releaseDate": "2020-01-01",
			"imageCover":  []map[string]any{{"url": "https://img/cover.jpg", "width": 640, "height": 640}},
		},
	}
}

func newTidalTestService(t *testing.T, handler http.HandlerFunc) (*TidalService, *staticToken) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	auth := &staticToken{token: "test-token"}
	svc := NewTidalService(
		shared.TidalConfig{APIBase: server.URL + "/", CountryCode: "GB"},
		auth,
		WithTidalRetry(fastRetry()),
	)
	return svc, auth
}

func TestTidalService(t *testing.T) {
	t.Run("LookupByCode", func(t *testing.T) {
		t.Run("Found", func(t *testing.T) {
			svc, _ := newTidalTestService(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v2/searchresults/tracks" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				if got := r.URL.Query().Get("query"); got != "isrc:USRC17607839" {
					t.Errorf("expected isrc query, got %s", got)
				}
				if got := r.URL.Query().Get("limit"); got != "1" {
					t.Errorf("expected limit 1, got %s", got)
				}
				if got := r.URL.Query().Get("countryCode"); got != "GB" {
					t.Errorf("expected countryCode GB, got %s", got)
				}
				if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
					t.Errorf("unexpected auth header %s", got)
				}
				if got := r.Header.Get("Accept"); got != tidalAccept {
					t.Errorf("unexpected accept header %s", got)
				}

				json.NewEncoder(w).Encode(map[string]any{
					"tracks": map[string]any{"items": []any{tidalTrackJSON("123", "USRC17607839", "Song")}},
				})
			})

			c, err := svc.LookupByCode(context.Background(), "usrc17607839")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if c == nil {
				t.Fatal("expected candidate")
			}
			if c.ID != "123" || c.ISRC != "USRC17607839" || c.AudioQuality != "LOSSLESS" {
				t.Errorf("unexpected candidate %+v", c)
			}
			if c.Album.ID != "99" || c.Album.Cover != "https://img/cover.jpg" {
				t.Errorf("unexpected album %+v", c.Album)
			}
			if len(c.Artists) != 1 || c.Artists[0].ID != "7" {
				t.Errorf("unexpected artists %+v", c.Artists)
			}
		})

		t.Run("Not Found Returns Nil", func(t *testing.T) {
			svc, _ := newTidalTestService(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			})

			c, err := svc.LookupByCode(context.Background(), "USRC00000000")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if c != nil {
				t.Errorf("expected nil candidate, got %+v", c)
			}
		})

		t.Run("Empty Result Returns Nil", func(t *testing.T) {
			svc, _ := newTidalTestService(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"tracks":{"items":[]}}`))
			})

			c, err := svc.LookupByCode(context.Background(), "USRC00000000")
			if err != nil || c != nil {
				t.Errorf("expected nil, nil; got %+v, %v", c, err)
			}
		})

		t.Run("Upstream Error Carries Message", func(t *testing.T) {
			calls := 0
			svc, _ := newTidalTestService(t, func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"status":400,"subStatus":1002,"userMessage":"Invalid query"}`))
			})

			_, err := svc.LookupByCode(context.Background(), "BAD")

			var lookupErr *LookupError
			if !errors.As(err, &lookupErr) {
				t.Fatalf("expected LookupError, got %v", err)
			}
			if lookupErr.Message != "Invalid query" || lookupErr.Status != 400 {
				t.Errorf("unexpected error %+v", lookupErr)
			}
			if !errors.Is(err, shared.ErrLookupFailed) {
				t.Error("expected ErrLookupFailed")
			}
			if calls != 1 {
				t.Errorf("expected client error not to be retried, got %d calls", calls)
			}
		})

		t.Run("Rate Limited Is Retried", func(t *testing.T) {
			calls := 0
			svc, _ := newTidalTestService(t, func(w http.ResponseWriter, r *http.Request) {
				calls++
				if calls == 1 {
					w.WriteHeader(http.StatusTooManyRequests)
					return
				}
				json.NewEncoder(w).Encode(map[string]any{
					"tracks": map[string]any{"items": []any{tidalTrackJSON("1", "AAA", "x")}},
				})
			})

			c, err := svc.LookupByCode(context.Background(), "AAA")
			if err != nil || c == nil {
				t.Fatalf("expected candidate after retry, got %v", err)
			}
			if calls != 2 {
				t.Errorf("expected 2 calls, got %d", calls)
			}
		})

		t.Run("Auth Failure Is Not Retried", func(t *testing.T) {
			calls := 0
			svc, auth := newTidalTestService(t, func(w http.ResponseWriter, r *http.Request) {
				calls++
			})
			auth.err = &AuthError{Message: "TIDAL credentials not configured"}

			_, err := svc.LookupByCode(context.Background(), "AAA")
			if !errors.Is(err, shared.ErrAuthFailed) {
				t.Errorf("expected auth error, got %v", err)
			}
			if calls != 0 || auth.calls != 1 {
				t.Errorf("expected no request and one token attempt, got %d / %d", calls, auth.calls)
			}
		})
	})

	t.Run("LookupByCodes", func(t *testing.T) {
		t.Run("Keys By Reported Code", func(t *testing.T) {
			svc, _ := newTidalTestService(t, func(w http.ResponseWriter, r *http.Request) {
				q := r.URL.Query().Get("query")
				if q != "isrc:AAA OR isrc:BBB OR isrc:CCC" {
					t.Errorf("unexpected query %q", q)
				}
				if got := r.URL.Query().Get("limit"); got != "15" {
					t.Errorf("expected limit 15, got %s", got)
				}
				// reversed order, an unrequested code, and a duplicate
				json.NewEncoder(w).Encode(map[string]any{
					"tracks": map[string]any{"items": []any{
						tidalTrackJSON("3", "ccc", "C"),
						tidalTrackJSON("9", "ZZZ", "Z"),
						tidalTrackJSON("1", "AAA", "A"),
						tidalTrackJSON("4", "CCC", "C2"),
					}},
				})
			})

			got, err := svc.LookupByCodes(context.Background(), []string{"aaa", "BBB", "CCC", "AAA", ""})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("expected 2 results, got %d", len(got))
			}
			if got["AAA"].ID != "1" {
				t.Errorf("expected AAA -> 1, got %s", got["AAA"].ID)
			}
			if got["CCC"].ID != "3" {
				t.Errorf("expected first CCC result, got %s", got["CCC"].ID)
			}
			if _, ok := got["BBB"]; ok {
				t.Error("BBB should be absent")
			}
			if _, ok := got["ZZZ"]; ok {
				t.Error("unrequested code should be dropped")
			}
		})

		t.Run("Extra Versions Do Not Crowd Out Codes", func(t *testing.T) {
			catalog := map[string]int{"AAA": 2, "BBB": 1}
			var calls int
			svc, _ := newTidalTestService(t, func(w http.ResponseWriter, r *http.Request) {
				calls++
				items := limitedCatalogSearch(t, catalog, r)
				json.NewEncoder(w).Encode(map[string]any{"tracks": map[string]any{"items": items}})
			})

			got, err := svc.LookupByCodes(context.Background(), []string{"AAA", "BBB"})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got["AAA"] == nil || got["BBB"] == nil {
				t.Fatalf("expected both codes, got %v", got)
			}
			if calls != 1 {
				t.Errorf("expected a single request, got %d", calls)
			}
		})

		t.Run("Truncated Response Rechecks Missing Codes", func(t *testing.T) {
			catalog := map[string]int{"AAA": 30, "BBB": 1, "CCC": 0}
			var queries []string
			svc, _ := newTidalTestService(t, func(w http.ResponseWriter, r *http.Request) {
				queries = append(queries, r.URL.Query().Get("query"))
				items := limitedCatalogSearch(t, catalog, r)
				json.NewEncoder(w).Encode(map[string]any{"tracks": map[string]any{"items": items}})
			})

			got, err := svc.LookupByCodes(context.Background(), []string{"AAA", "BBB", "CCC"})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got["AAA"] == nil {
				t.Error("expected AAA from the batch")
			}
			if got["BBB"] == nil || got["BBB"].ID != "BBB-0" {
				t.Errorf("expected BBB from a single lookup, got %v", got["BBB"])
			}
			if _, ok := got["CCC"]; ok {
				t.Error("CCC is not in the catalog")
			}
			// one batch, then BBB and CCC singly
			if len(queries) != 3 {
				t.Errorf("expected 3 requests, got %d: %v", len(queries), queries)
			}
		})

		t.Run("Not Found Yields Empty Map", func(t *testing.T) {
			svc, _ := newTidalTestService(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			})

			got, err := svc.LookupByCodes(context.Background(), []string{"AAA"})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got == nil || len(got) != 0 {
				t.Errorf("expected empty map, got %v", got)
			}
		})

		t.Run("Server Error Fails", func(t *testing.T) {
			svc, _ := newTidalTestService(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"userMessage":"backend down"}`))
			})

			_, err := svc.LookupByCodes(context.Background(), []string{"AAA"})
			var lookupErr *LookupError
			if !errors.As(err, &lookupErr) || lookupErr.Message != "backend down" {
				t.Errorf("expected LookupError with message, got %v", err)
			}
		})

		t.Run("Over Batch Size", func(t *testing.T) {
			svc, _ := newTidalTestService(t, func(w http.ResponseWriter, r *http.Request) {
				t.Error("no request expected")
			})

			codes := make([]string, svc.MaxBatchSize()+1)
			for i := range codes {
				codes[i] = "C" + strings.Repeat("X", i+1)
			}
			if _, err := svc.LookupByCodes(context.Background(), codes); !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})

		t.Run("No Codes Makes No Request", func(t *testing.T) {
			svc, auth := newTidalTestService(t, func(w http.ResponseWriter, r *http.Request) {
				t.Error("no request expected")
			})

			got, err := svc.LookupByCodes(context.Background(), []string{"", "  "})
			if err != nil || len(got) != 0 {
				t.Errorf("expected empty result, got %v, %v", got, err)
			}
			if auth.calls != 0 {
				t.Error("expected no token request")
			}
		})
	})

	t.Run("TrackByID", func(t *testing.T) {
		svc, _ := newTidalTestService(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/v2/tracks/42" {
				json.NewEncoder(w).Encode(tidalTrackJSON("42", "AAA", "Answer"))
				return
			}
			w.WriteHeader(http.StatusNotFound)
		})

		c, err := svc.TrackByID(context.Background(), "42")
		if err != nil || c == nil || c.Title != "Answer" {
			t.Fatalf("unexpected result %+v, %v", c, err)
		}

		c, err = svc.TrackByID(context.Background(), "43")
		if err != nil || c != nil {
			t.Errorf("expected nil, nil for missing track; got %+v, %v", c, err)
		}
	})
}

// limitedCatalogSearch answers an isrc search from catalog (code -> number of versions), returning at most
// limit items in query order.
func limitedCatalogSearch(t *testing.T, catalog map[string]int, r *http.Request) []any {
	t.Helper()
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		t.Fatalf("bad limit: %v", err)
	}

	var items []any
	for _, term := range strings.Split(r.URL.Query().Get("query"), " OR ") {
		code := strings.TrimPrefix(term, "isrc:")
		for v := range catalog[code] {
			if len(items) == limit {
				return items
			}
			items = append(items, tidalTrackJSON(fmt.Sprintf("%s-%d", code, v), code, code))
		}
	}
	return items
}
