package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hbarnett99/so-you-made-a-mix/internal/shared"
)

func spotifyTrackJSON(id, isrc string) map[string]any {
	return map[string]any{
		"id":            id,
		"name":          "Track " + id,
		"duration_ms":   200000,
		"explicit":      false,
		"popularity":    50,
		"external_ids":  map[string]string{"isrc": isrc},
		"external_urls": map[string]string{"spotify": "https://open.spotify.com/track/" + id},
		"artists":       []map[string]string{{"id": "a1", "name": "Artist"}},
		"album": map[string]any{
			"id":           "al1",
			"name":         "Album",
			"release_date": "2021-05-01",
			"images":       []map[string]any{{"url": "https://img/album.jpg", "width": 640, "height": 640}},
		},
	}
}

// newSpotifyTestServer serves a token endpoint and a two-page playlist.
func newSpotifyTestServer(t *testing.T) (*httptest.Server, *int) {
	t.Helper()
	tokenCalls := 0

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"sp-token","token_type":"Bearer","expires_in":3600}`))
	})

	mux.HandleFunc("/v1/playlists/pl1", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sp-token" {
			t.Errorf("unexpected auth header %q", got)
		}
		next := server.URL + "/v1/playlists/pl1/tracks?offset=2&limit=2"
		json.NewEncoder(w).Encode(map[string]any{
			"id":            "pl1",
			"name":          "Road Trip",
			"description":   "songs",
			"public":        true,
			"owner":         map[string]string{"id": "u1", "display_name": "Holly"},
			"images":        []map[string]any{{"url": "https://img/pl.jpg"}},
			"external_urls": map[string]string{"spotify": "https://open.spotify.com/playlist/pl1"},
			"tracks": map[string]any{
				"total": 4,
				"limit": 2,
				"items": []any{
					map[string]any{"added_at": "2024-01-01T00:00:00Z", "track": spotifyTrackJSON("t1", "usrc1")},
					map[string]any{"added_at": "2024-01-02T00:00:00Z", "track": nil},
				},
				"next": next,
			},
		})
	})

	mux.HandleFunc("/v1/playlists/pl1/tracks", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("offset") != "2" {
			t.Errorf("expected offset 2, got %s", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"total":  4,
			"offset": 2,
			"items": []any{
				map[string]any{"added_at": "2024-01-03T00:00:00Z", "track": spotifyTrackJSON("t3", "")},
				map[string]any{"added_at": "2024-01-04T00:00:00Z", "track": spotifyTrackJSON("t4", "USRC4")},
			},
			"next": nil,
		})
	})

	return server, &tokenCalls
}

func newSpotifyTestService(url string, cfg shared.SpotifyConfig) *SpotifyService {
	if cfg.TokenURL == "" {
		cfg.TokenURL = url + "/token"
	}
	cfg.APIBase = url + "/v1"
	return NewSpotifyService(cfg, WithSpotifyRetry(fastRetry()))
}

func TestSpotifyService(t *testing.T) {
	creds := shared.SpotifyConfig{ClientID: "cid", ClientSecret: "csecret"}

	t.Run("Name", func(t *testing.T) {
		if got := NewSpotifyService(creds).Name(); got != "Spotify" {
			t.Errorf("expected service name 'Spotify', got %s", got)
		}
	})

	t.Run("ExportPlaylist", func(t *testing.T) {
		t.Run("Follows Pagination", func(t *testing.T) {
			server, tokenCalls := newSpotifyTestServer(t)
			svc := newSpotifyTestService(server.URL, creds)

			export, err := svc.ExportPlaylist(context.Background(), "pl1")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			p := export.Playlist
			if p.Name != "Road Trip" || p.Owner != "Holly" || p.TrackCount != 4 || p.Image != "https://img/pl.jpg" {
				t.Errorf("unexpected playlist %+v", p)
			}

			tracks := export.Tracks()
			if len(tracks) != 3 {
				t.Fatalf("expected 3 tracks (null entry skipped), got %d", len(tracks))
			}
			for i, id := range []string{"t1", "t3", "t4"} {
				if tracks[i].ID != id {
					t.Errorf("track %d: expected %s, got %s", i, id, tracks[i].ID)
				}
			}
			if tracks[0].ISRC != "usrc1" || !tracks[0].HasCode() {
				t.Errorf("expected code on first track, got %q", tracks[0].ISRC)
			}
			if tracks[1].HasCode() {
				t.Error("expected second track to have no code")
			}
			if tracks[0].Album.Cover != "https://img/album.jpg" || tracks[0].URL == "" {
				t.Errorf("unexpected track mapping %+v", tracks[0])
			}
			if export.Items[2].AddedAt != "2024-01-04T00:00:00Z" {
				t.Errorf("unexpected added_at %s", export.Items[2].AddedAt)
			}
			if *tokenCalls != 1 {
				t.Errorf("expected token to be reused across pages, got %d exchanges", *tokenCalls)
			}
		})

		t.Run("Not Found", func(t *testing.T) {
			server, _ := newSpotifyTestServer(t)
			svc := newSpotifyTestService(server.URL, creds)

			_, err := svc.ExportPlaylist(context.Background(), "missing")
			if !errors.Is(err, shared.ErrPlaylistNotFound) {
				t.Errorf("expected ErrPlaylistNotFound, got %v", err)
			}
		})

		t.Run("Empty ID", func(t *testing.T) {
			svc := NewSpotifyService(creds)
			if _, err := svc.ExportPlaylist(context.Background(), " "); !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})

		t.Run("Missing Credentials", func(t *testing.T) {
			server, tokenCalls := newSpotifyTestServer(t)
			svc := newSpotifyTestService(server.URL, shared.SpotifyConfig{})

			_, err := svc.ExportPlaylist(context.Background(), "pl1")
			if !errors.Is(err, shared.ErrAuthFailed) {
				t.Errorf("expected ErrAuthFailed, got %v", err)
			}
			if *tokenCalls != 0 {
				t.Errorf("expected no token exchange, got %d", *tokenCalls)
			}
		})

		t.Run("Rejected Credentials", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":"invalid_client","error_description":"Invalid client"}`))
			}))
			defer server.Close()

			svc := newSpotifyTestService(server.URL, creds)
			_, err := svc.ExportPlaylist(context.Background(), "pl1")

			var authErr *AuthError
			if !errors.As(err, &authErr) {
				t.Fatalf("expected AuthError, got %v", err)
			}
			if authErr.Message != "Invalid client" {
				t.Errorf("unexpected message %q", authErr.Message)
			}
		})

		t.Run("Server Error Is Retried", func(t *testing.T) {
			calls := 0
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/token" {
					w.Header().Set("Content-Type", "application/json")
					w.Write([]byte(`{"access_token":"x","token_type":"Bearer","expires_in":3600}`))
					return
				}
				calls++
				w.WriteHeader(http.StatusBadGateway)
				fmt.Fprint(w, `{"error":{"status":502,"message":"bad gateway"}}`)
			}))
			defer server.Close()

			svc := newSpotifyTestService(server.URL, creds)
			_, err := svc.ExportPlaylist(context.Background(), "pl1")
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
			if calls != fastRetry().MaxAttempts {
				t.Errorf("expected %d attempts, got %d", fastRetry().MaxAttempts, calls)
			}
		})
	})
}
