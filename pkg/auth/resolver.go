// Package auth implements the layered credential resolver (file -> env ->
// OS keychain) and OAuth2 Client Credentials token cache described in
// spec §4.2.
package auth

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/agentvault/a2a-core/pkg/a2a"
)

// Source identifies which layer satisfied a lookup.
type Source string

const (
	SourceFile     Source = "file"
	SourceEnv      Source = "env"
	SourceKeychain Source = "keychain"
	SourceNone     Source = ""
)

// Config controls resolver construction.
type Config struct {
	// EnvPrefix is the prefix env vars are matched under; defaults to
	// "AGENTVAULT" per spec §4.2/§6.
	EnvPrefix string
	// CredentialFile, if set, is parsed once at construction (.env or
	// .json, detected by extension).
	CredentialFile string
	// KeychainEnabled toggles whether keychain lookups are attempted at
	// all (spec §9 "Keychain optionality").
	KeychainEnabled bool
	// Keychain, if set, overrides the default OS-backed keychain (for
	// tests and environments without one).
	Keychain Keychain
}

// Resolver maps a lowercased service_id to API keys or OAuth client
// credential pairs, consulting file, env, and (lazily) keychain sources in
// that priority order.
type Resolver struct {
	envPrefix string

	fileKeys    map[string]string   // service_id -> api key
	fileOAuth   map[string][2]string // service_id -> [clientID, clientSecret]
	envKeys     map[string]string
	envOAuth    map[string][2]string

	keychainEnabled bool
	keychain        Keychain

	mu            sync.Mutex
	keychainCache map[string]string   // "key:<id>" / "oauth_id:<id>" / "oauth_secret:<id>"
	sourceCache   map[string]Source

	tokens *tokenCache
}

// New constructs a Resolver, snapshotting the file and env sources
// immediately (spec §4.2 "Env and file are snapshotted at construction").
func New(cfg Config) (*Resolver, error) {
	prefix := cfg.EnvPrefix
	if prefix == "" {
		prefix = "AGENTVAULT"
	}

	r := &Resolver{
		envPrefix:       prefix,
		fileKeys:        map[string]string{},
		fileOAuth:       map[string][2]string{},
		keychainEnabled: cfg.KeychainEnabled,
		keychain:        cfg.Keychain,
		keychainCache:   map[string]string{},
		sourceCache:     map[string]Source{},
		tokens:          newTokenCache(),
	}
	if r.keychainEnabled && r.keychain == nil {
		r.keychain = osKeychain{}
	}

	if cfg.CredentialFile != "" {
		keys, oauthPairs, err := loadFile(cfg.CredentialFile, prefix)
		if err != nil {
			return nil, err
		}
		r.fileKeys, r.fileOAuth = keys, oauthPairs
	}

	r.envKeys, r.envOAuth = loadEnv(prefix)

	return r, nil
}

func norm(serviceID string) string { return strings.ToLower(serviceID) }

// GetAPIKey returns the API key for serviceID, or "" if absent from every
// enabled source (spec §4.2 "Read-through misses are non-fatal").
func (r *Resolver) GetAPIKey(serviceID string) string {
	id := norm(serviceID)

	if v, ok := r.fileKeys[id]; ok {
		r.recordSource(id, "key", SourceFile)
		return v
	}
	if v, ok := r.envKeys[id]; ok {
		r.recordSource(id, "key", SourceEnv)
		return v
	}
	if r.keychainEnabled {
		if v, ok := r.keychainAPIKey(id); ok {
			r.recordSource(id, "key", SourceKeychain)
			return v
		}
	}
	return ""
}

// GetOAuthPair returns (clientID, clientSecret) for serviceID from the
// first layer, in the declared priority, that holds both halves; halves
// from different layers are never combined. It returns ok=false otherwise.
func (r *Resolver) GetOAuthPair(serviceID string) (clientID, clientSecret string, ok bool) {
	id := norm(serviceID)

	if pair, found := r.fileOAuth[id]; found && pair[0] != "" && pair[1] != "" {
		r.recordSource(id, "oauth", SourceFile)
		return pair[0], pair[1], true
	}
	if pair, found := r.envOAuth[id]; found && pair[0] != "" && pair[1] != "" {
		r.recordSource(id, "oauth", SourceEnv)
		return pair[0], pair[1], true
	}
	if r.keychainEnabled {
		if cid, cs, found := r.keychainOAuthPair(id); found {
			r.recordSource(id, "oauth", SourceKeychain)
			return cid, cs, true
		}
	}
	return "", "", false
}

// SourceOf reports which layer last satisfied a lookup for serviceID, for
// either "key" or "oauth" kind. Returns SourceNone if never resolved.
func (r *Resolver) SourceOf(serviceID, kind string) Source {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sourceCache[norm(serviceID)+":"+kind]
}

func (r *Resolver) recordSource(id, kind string, src Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sourceCache[id+":"+kind] = src
}

func (r *Resolver) keychainAPIKey(id string) (string, bool) {
	r.mu.Lock()
	if v, ok := r.keychainCache["key:"+id]; ok {
		r.mu.Unlock()
		return v, v != ""
	}
	r.mu.Unlock()

	v, err := r.keychain.Get("agentvault:"+id, id)
	if err != nil {
		if !isNotFound(err) {
			slog.Warn("keychain lookup failed, degrading to miss", "service_id", id, "error", err)
		}
		return "", false
	}
	r.mu.Lock()
	r.keychainCache["key:"+id] = v
	r.mu.Unlock()
	return v, true
}

func (r *Resolver) keychainOAuthPair(id string) (clientID, clientSecret string, ok bool) {
	r.mu.Lock()
	cachedID, okID := r.keychainCache["oauth_id:"+id]
	cachedSecret, okSecret := r.keychainCache["oauth_secret:"+id]
	r.mu.Unlock()
	if okID && okSecret {
		return cachedID, cachedSecret, cachedID != "" && cachedSecret != ""
	}

	cid, errID := r.keychain.Get("agentvault:oauth:"+id, "clientId")
	if errID != nil {
		if !isNotFound(errID) {
			slog.Warn("keychain oauth clientId lookup failed, degrading to miss", "service_id", id, "error", errID)
		}
		return "", "", false
	}
	cs, errSecret := r.keychain.Get("agentvault:oauth:"+id, "clientSecret")
	if errSecret != nil {
		if !isNotFound(errSecret) {
			slog.Warn("keychain oauth clientSecret lookup failed, degrading to miss", "service_id", id, "error", errSecret)
		}
		return "", "", false
	}
	r.mu.Lock()
	r.keychainCache["oauth_id:"+id] = cid
	r.keychainCache["oauth_secret:"+id] = cs
	r.mu.Unlock()
	return cid, cs, true
}

// SetAPIKeyInKeychain stores an API key in the OS keychain. Keychain
// backend failures here are fatal (spec §4.2).
func (r *Resolver) SetAPIKeyInKeychain(serviceID, value string) error {
	if !r.keychainEnabled {
		return &a2a.KeyMgmtError{Op: "set_api_key", Err: errKeychainDisabled}
	}
	id := norm(serviceID)
	if err := r.keychain.Set("agentvault:"+id, id, value); err != nil {
		return &a2a.KeyMgmtError{Op: "set_api_key", Err: err}
	}
	r.mu.Lock()
	r.keychainCache["key:"+id] = value
	r.mu.Unlock()
	return nil
}

// SetOAuthPairInKeychain stores an OAuth client credential pair in the OS
// keychain.
func (r *Resolver) SetOAuthPairInKeychain(serviceID, clientID, clientSecret string) error {
	if !r.keychainEnabled {
		return &a2a.KeyMgmtError{Op: "set_oauth_pair", Err: errKeychainDisabled}
	}
	id := norm(serviceID)
	if err := r.keychain.Set("agentvault:oauth:"+id, "clientId", clientID); err != nil {
		return &a2a.KeyMgmtError{Op: "set_oauth_pair", Err: err}
	}
	if err := r.keychain.Set("agentvault:oauth:"+id, "clientSecret", clientSecret); err != nil {
		return &a2a.KeyMgmtError{Op: "set_oauth_pair", Err: err}
	}
	r.mu.Lock()
	r.keychainCache["oauth_id:"+id] = clientID
	r.keychainCache["oauth_secret:"+id] = clientSecret
	r.mu.Unlock()
	return nil
}

// GetOAuthToken returns a cached or freshly exchanged bearer token for
// (serviceID, tokenURL), honoring expires_in minus a safety margin (spec
// §4.4, §8).
func (r *Resolver) GetOAuthToken(ctx context.Context, serviceID, tokenURL string, scopes []string) (string, error) {
	clientID, clientSecret, ok := r.GetOAuthPair(serviceID)
	if !ok {
		return "", &a2a.AuthError{Reason: "no-oauth-credentials"}
	}
	return r.tokens.get(ctx, serviceID, tokenURL, clientID, clientSecret, scopes)
}

// InvalidateOAuthToken drops any cached token for (serviceID, tokenURL) so
// the next GetOAuthToken call forces a fresh exchange (spec §4.4 "On 401
// ... invalidate the cached token once and retry").
func (r *Resolver) InvalidateOAuthToken(serviceID, tokenURL string) {
	r.tokens.invalidate(serviceID, tokenURL)
}
