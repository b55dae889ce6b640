package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hbarnett99/so-you-made-a-mix/internal/shared"
	"golang.org/x/oauth2"
)

type mockExchanger struct {
	calls int
	ttl   int64
	err   error
}

func (m *mockExchanger) Exchange(ctx context.Context) (*oauth2.Token, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &oauth2.Token{AccessToken: fmt.Sprintf("token-%d", m.calls), ExpiresIn: m.ttl}, nil
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

var testTidalConfig = shared.TidalConfig{
	ClientID:     "id",
	ClientSecret: "secret",
	AuthURL:      "http://auth.invalid/token",
}

func fastRetry() shared.RetryPolicy {
	return shared.RetryPolicy{MaxAttempts: 3, Timeout: time.Second, InitialInterval: time.Millisecond}
}

func TestAuthCache(t *testing.T) {
	t.Run("Reuses Token Within Buffer", func(t *testing.T) {
		clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
		x := &mockExchanger{ttl: 3600}
		cache := NewAuthCache(testTidalConfig, WithExchanger(x), WithClock(clock.Now))

		first, err := cache.Token(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		clock.Advance(3000 * time.Second)
		second, err := cache.Token(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if first != second {
			t.Errorf("expected cached token %s, got %s", first, second)
		}
		if x.calls != 1 {
			t.Errorf("expected 1 exchange, got %d", x.calls)
		}
	})

	t.Run("Refreshes Past Expiry Minus Buffer", func(t *testing.T) {
		clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
		x := &mockExchanger{ttl: 3600}
		cache := NewAuthCache(testTidalConfig, WithExchanger(x), WithClock(clock.Now))

		first, _ := cache.Token(context.Background())
		clock.Advance(3600 * time.Second)
		second, err := cache.Token(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if first == second {
			t.Error("expected a fresh token")
		}
		if x.calls != 2 {
			t.Errorf("expected 2 exchanges, got %d", x.calls)
		}
		if want := clock.Now().Add(time.Hour); !cache.Expiry().Equal(want) {
			t.Errorf("expected expiry %v, got %v", want, cache.Expiry())
		}
	})

	t.Run("Boundary At Buffer Edge", func(t *testing.T) {
		clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
		x := &mockExchanger{ttl: 3600}
		cache := NewAuthCache(testTidalConfig, WithExchanger(x), WithClock(clock.Now))

		cache.Token(context.Background())
		clock.Advance(3300 * time.Second)
		cache.Token(context.Background())

		if x.calls != 2 {
			t.Errorf("expected refresh exactly at expiry - 5m, got %d exchanges", x.calls)
		}
	})

	t.Run("Missing Expiry Falls Back To Default TTL", func(t *testing.T) {
		clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
		x := &mockExchanger{}
		cache := NewAuthCache(testTidalConfig,
			WithExchanger(x),
			WithClock(clock.Now),
			WithAuthLogger(log.New(io.Discard)),
		)

		first, _ := cache.Token(context.Background())
		clock.Advance(defaultTokenTTL - tokenRefreshBuffer - time.Second)
		second, err := cache.Token(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if first != second || x.calls != 1 {
			t.Errorf("expected token reuse with 1 exchange, got %s/%s after %d", first, second, x.calls)
		}
		if want := clock.t.Add(tokenRefreshBuffer + time.Second); !cache.Expiry().Equal(want) {
			t.Errorf("expected expiry %v, got %v", want, cache.Expiry())
		}
	})

	t.Run("Missing Credentials", func(t *testing.T) {
		x := &mockExchanger{ttl: 3600}
		cache := NewAuthCache(shared.TidalConfig{AuthURL: "http://auth.invalid"}, WithExchanger(x))

		_, err := cache.Token(context.Background())

		var authErr *AuthError
		if !errors.As(err, &authErr) {
			t.Fatalf("expected AuthError, got %v", err)
		}
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Error("expected error to wrap ErrAuthFailed")
		}
		if x.calls != 0 {
			t.Errorf("expected no exchange, got %d", x.calls)
		}
	})

	t.Run("Client Credentials Exchange", func(t *testing.T) {
		var calls int
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			user, pass, ok := r.BasicAuth()
			if !ok || user != "id" || pass != "secret" {
				t.Errorf("expected basic auth id:secret, got %s:%s (%v)", user, pass, ok)
			}
			if err := r.ParseForm(); err != nil {
				t.Fatalf("failed to parse form: %v", err)
			}
			if got := r.PostForm.Get("grant_type"); got != "client_credentials" {
				t.Errorf("expected grant_type client_credentials, got %s", got)
			}

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"access_token": "live-token",
				"token_type":   "Bearer",
				"expires_in":   3600,
			})
		}))
		defer server.Close()

		cfg := testTidalConfig
		cfg.AuthURL = server.URL
		cache := NewAuthCache(cfg, WithAuthRetry(fastRetry()))

		for i := 0; i < 3; i++ {
			token, err := cache.Token(context.Background())
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if token != "live-token" {
				t.Errorf("expected live-token, got %s", token)
			}
		}
		if calls != 1 {
			t.Errorf("expected 1 exchange request, got %d", calls)
		}
	})

	t.Run("Rejected Exchange Carries Status", func(t *testing.T) {
		var calls int
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{
				"error":             "invalid_client",
				"error_description": "bad client secret",
			})
		}))
		defer server.Close()

		cfg := testTidalConfig
		cfg.AuthURL = server.URL
		cache := NewAuthCache(cfg, WithAuthRetry(fastRetry()))

		_, err := cache.Token(context.Background())

		var authErr *AuthError
		if !errors.As(err, &authErr) {
			t.Fatalf("expected AuthError, got %v", err)
		}
		if authErr.Status != http.StatusUnauthorized {
			t.Errorf("expected status 401, got %d", authErr.Status)
		}
		if authErr.Message != "bad client secret" {
			t.Errorf("expected upstream message, got %q", authErr.Message)
		}
		if calls != 1 {
			t.Errorf("expected rejected exchange not to be retried, got %d calls", calls)
		}
	})

	t.Run("Server Errors Are Retried", func(t *testing.T) {
		var calls int
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls < 2 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access_token":"second","token_type":"Bearer","expires_in":3600}`))
		}))
		defer server.Close()

		cfg := testTidalConfig
		cfg.AuthURL = server.URL
		cache := NewAuthCache(cfg, WithAuthRetry(fastRetry()))

		token, err := cache.Token(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if token != "second" || calls != 2 {
			t.Errorf("expected second attempt to succeed, got %s after %d calls", token, calls)
		}
	})
}
