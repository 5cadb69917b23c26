package auth

import (
	"context"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/agentvault/a2a-core/pkg/a2a"
)

// safetyMargin is subtracted from a token's expires_in before it is
// considered stale, per spec §4.4 ("minus a safety margin (>= 30 s)").
const safetyMargin = 30 * time.Second

// defaultExpiresIn is used when the token endpoint omits expires_in (spec
// §4.4 "default 300 s if absent").
const defaultExpiresIn = 300 * time.Second

type cachedToken struct {
	accessToken string
	expiresAt   time.Time
}

// tokenCache caches OAuth2 Client Credentials tokens per (service_id,
// token_url), exchanging via golang.org/x/oauth2/clientcredentials for the
// actual POST but managing its own expiry-minus-margin and
// invalidate-once semantics on top, since x/oauth2's own cache cannot be
// force-invalidated from outside (needed for the 401-retry flow, spec §8
// scenario 4).
type tokenCache struct {
	mu      sync.Mutex
	entries map[string]cachedToken
	now     func() time.Time
}

func newTokenCache() *tokenCache {
	return &tokenCache{
		entries: map[string]cachedToken{},
		now:     time.Now,
	}
}

func cacheKey(serviceID, tokenURL string) string {
	return serviceID + "|" + tokenURL
}

func (c *tokenCache) get(ctx context.Context, serviceID, tokenURL, clientID, clientSecret string, scopes []string) (string, error) {
	key := cacheKey(serviceID, tokenURL)

	c.mu.Lock()
	if entry, ok := c.entries[key]; ok && c.now().Before(entry.expiresAt) {
		c.mu.Unlock()
		return entry.accessToken, nil
	}
	c.mu.Unlock()

	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       scopes,
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	tok, err := cfg.Token(ctx)
	if err != nil {
		return "", &a2a.AuthError{Reason: "token-exchange-failed", Err: err}
	}

	expiresIn := defaultExpiresIn
	if !tok.Expiry.IsZero() {
		if d := time.Until(tok.Expiry); d > 0 {
			expiresIn = d
		}
	}
	expiresAt := c.now().Add(expiresIn - safetyMargin)

	c.mu.Lock()
	c.entries[key] = cachedToken{accessToken: tok.AccessToken, expiresAt: expiresAt}
	c.mu.Unlock()

	return tok.AccessToken, nil
}

func (c *tokenCache) invalidate(serviceID, tokenURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, cacheKey(serviceID, tokenURL))
}

// advance is a test hook: it is not part of the exported API.
func (c *tokenCache) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	base := c.now
	c.now = func() time.Time { return base().Add(d) }
}
