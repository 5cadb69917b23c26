package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func contextBg() context.Context { return context.Background() }

// tokenServer spins up a Client Credentials token endpoint that returns a
// fresh, incrementing access token on every request and counts how many
// times it was hit, so tests can assert cache reuse vs. re-exchange.
func tokenServer(t *testing.T, expiresIn int) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"tok-%d","token_type":"bearer","expires_in":%d}`, n, expiresIn)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestTokenCacheExchangesAndReuses(t *testing.T) {
	srv, hits := tokenServer(t, 3600)

	c := newTokenCache()
	tok1, err := c.get(contextBg(), "svc", srv.URL, "cid", "secret", nil)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	tok2, err := c.get(contextBg(), "svc", srv.URL, "cid", "secret", nil)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if tok1 != tok2 {
		t.Fatalf("expected cached token reuse, got %q then %q", tok1, tok2)
	}
	if *hits != 1 {
		t.Fatalf("expected exactly one token exchange, got %d", *hits)
	}
}

func TestTokenCacheDefaultExpiresInWhenAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"tok-noexp","token_type":"bearer"}`)
	}))
	t.Cleanup(srv.Close)

	c := newTokenCache()
	tok, err := c.get(contextBg(), "svc", srv.URL, "cid", "secret", nil)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if tok != "tok-noexp" {
		t.Fatalf("unexpected token %q", tok)
	}

	key := cacheKey("svc", srv.URL)
	entry := c.entries[key]
	wantMin := c.now().Add(defaultExpiresIn - safetyMargin - time.Second)
	wantMax := c.now().Add(defaultExpiresIn - safetyMargin + time.Second)
	if entry.expiresAt.Before(wantMin) || entry.expiresAt.After(wantMax) {
		t.Fatalf("expected expiry near default-minus-margin, got %v", entry.expiresAt)
	}
}

func TestTokenCacheExpiresAndReExchanges(t *testing.T) {
	srv, hits := tokenServer(t, 60)

	c := newTokenCache()
	if _, err := c.get(contextBg(), "svc", srv.URL, "cid", "secret", nil); err != nil {
		t.Fatalf("get: %v", err)
	}
	c.advance(2 * time.Minute)

	if _, err := c.get(contextBg(), "svc", srv.URL, "cid", "secret", nil); err != nil {
		t.Fatalf("get: %v", err)
	}
	if *hits != 2 {
		t.Fatalf("expected re-exchange after expiry, got %d hits", *hits)
	}
}

func TestTokenCacheInvalidateForcesReExchange(t *testing.T) {
	srv, hits := tokenServer(t, 3600)

	c := newTokenCache()
	if _, err := c.get(contextBg(), "svc", srv.URL, "cid", "secret", nil); err != nil {
		t.Fatalf("get: %v", err)
	}
	c.invalidate("svc", srv.URL)
	if _, err := c.get(contextBg(), "svc", srv.URL, "cid", "secret", nil); err != nil {
		t.Fatalf("get: %v", err)
	}
	if *hits != 2 {
		t.Fatalf("expected invalidate to force a fresh exchange, got %d hits", *hits)
	}
}

func TestResolverGetOAuthTokenMissingCredentials(t *testing.T) {
	r, err := New(Config{})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	if _, err := r.GetOAuthToken(contextBg(), "unknown", "https://example.invalid/token", nil); err == nil {
		t.Fatalf("expected error when no oauth credentials are configured")
	}
}

func TestResolverGetOAuthTokenAndInvalidateRetryFlow(t *testing.T) {
	srv, hits := tokenServer(t, 3600)

	t.Setenv("AGENTVAULT_OAUTH_SVC_CLIENT_ID", "cid")
	t.Setenv("AGENTVAULT_OAUTH_SVC_CLIENT_SECRET", "secret")

	r, err := New(Config{})
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	tok1, err := r.GetOAuthToken(contextBg(), "svc", srv.URL, nil)
	if err != nil {
		t.Fatalf("get token: %v", err)
	}

	// Simulate a 401 from the remote agent: invalidate once and retry.
	r.InvalidateOAuthToken("svc", srv.URL)
	tok2, err := r.GetOAuthToken(contextBg(), "svc", srv.URL, nil)
	if err != nil {
		t.Fatalf("get token after invalidate: %v", err)
	}

	if tok1 == tok2 {
		t.Fatalf("expected a fresh token after invalidation")
	}
	if *hits != 2 {
		t.Fatalf("expected exactly 2 exchanges (initial + post-invalidate retry), got %d", *hits)
	}
}
