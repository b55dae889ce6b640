package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hbarnett99/so-you-made-a-mix/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	// tokenRefreshBuffer is how long before expiry a cached token stops being handed out.
	tokenRefreshBuffer = 5 * time.Minute
	// defaultTokenTTL applies when the exchange response carries no expiry.
	defaultTokenTTL = time.Hour
)

// TokenExchanger performs one client-credentials exchange.
type TokenExchanger interface {
	Exchange(ctx context.Context) (*oauth2.Token, error)
}

// clientCredentialsExchanger exchanges through [clientcredentials.Config] with HTTP Basic client auth.
type clientCredentialsExchanger struct {
	config     *clientcredentials.Config
	httpClient *http.Client
}

func (e *clientCredentialsExchanger) Exchange(ctx context.Context) (*oauth2.Token, error) {
	if e.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
	}
	return e.config.Token(ctx)
}

// AuthCache hands out a bearer token for the target catalog, renewing it once the cached one is within
// [tokenRefreshBuffer] of expiry.
//
// Concurrent callers that both observe a stale token may both exchange; the last write wins.
type AuthCache struct {
	exchanger TokenExchanger
	retry     shared.RetryPolicy
	now       func() time.Time
	logger    *log.Logger
	missing   bool

	mu     sync.Mutex
	token  string
	expiry time.Time
}

// AuthOption configures an [AuthCache].
type AuthOption func(*AuthCache)

// WithExchanger replaces the client-credentials exchange.
func WithExchanger(x TokenExchanger) AuthOption {
	return func(c *AuthCache) { c.exchanger = x }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) AuthOption {
	return func(c *AuthCache) { c.now = now }
}

// WithAuthLogger sets the logger.
func WithAuthLogger(l *log.Logger) AuthOption {
	return func(c *AuthCache) { c.logger = l }
}

// WithAuthRetry sets the retry policy for the exchange.
func WithAuthRetry(p shared.RetryPolicy) AuthOption {
	return func(c *AuthCache) { c.retry = p }
}

// WithAuthHTTPClient sets the HTTP client used for the exchange.
func WithAuthHTTPClient(client *http.Client) AuthOption {
	return func(c *AuthCache) {
		if x, ok := c.exchanger.(*clientCredentialsExchanger); ok {
			x.httpClient = client
		}
	}
}

// NewAuthCache creates a cache exchanging cfg's client credentials at cfg.AuthURL.
func NewAuthCache(cfg shared.TidalConfig, opts ...AuthOption) *AuthCache {
	c := &AuthCache{
		exchanger: &clientCredentialsExchanger{config: &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.AuthURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		}},
		retry:   shared.DefaultRetryPolicy(),
		now:     time.Now,
		logger:  log.Default(),
		missing: cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.AuthURL == "",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the cached token while now < expiry - 5m, and otherwise exchanges for a new one.
func (c *AuthCache) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	now := c.now()
	if c.token != "" && now.Before(c.expiry.Add(-tokenRefreshBuffer)) {
		token := c.token
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	if c.missing {
		return "", &AuthError{Message: "TIDAL credentials not configured"}
	}

	var tok *oauth2.Token
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		t, err := c.exchanger.Exchange(ctx)
		if err != nil {
			return classifyExchangeError(err)
		}
		tok = t
		return nil
	})
	if err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) {
			return "", authErr
		}
		return "", &AuthError{Message: err.Error()}
	}

	ttl := time.Duration(tok.ExpiresIn) * time.Second
	if ttl <= 0 && !tok.Expiry.IsZero() {
		ttl = tok.Expiry.Sub(now)
	}
	if ttl <= 0 {
		c.logger.Warn("token response carried no expiry, assuming default", "ttl", defaultTokenTTL)
		ttl = defaultTokenTTL
	}

	c.mu.Lock()
	c.token = tok.AccessToken
	c.expiry = now.Add(ttl)
	c.mu.Unlock()

	return tok.AccessToken, nil
}

// Expiry returns the absolute expiry of the cached token, zero when nothing is cached.
func (c *AuthCache) Expiry() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expiry
}

// classifyExchangeError converts an exchange failure to an [AuthError], marking client errors permanent.
func classifyExchangeError(err error) error {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) || re.Response == nil {
		return err
	}

	msg := re.ErrorDescription
	if msg == "" {
		msg = re.ErrorCode
	}
	if msg == "" {
		msg = strings.TrimSpace(string(re.Body))
	}

	authErr := &AuthError{Status: re.Response.StatusCode, Message: msg}
	if retryable(authErr.Status) {
		return authErr
	}
	return shared.Permanent(authErr)
}
