package card

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/agentvault/a2a-core/pkg/a2a"
)

// LoaderConfig controls the network behavior of FromURL.
type LoaderConfig struct {
	// Timeout bounds the whole fetch, including redirects.
	Timeout time.Duration
	// MaxRedirects bounds same-scheme redirect following (spec §4.1).
	MaxRedirects int
	// HTTPClient, if set, overrides the client FromURL constructs.
	HTTPClient *http.Client
}

// DefaultLoaderConfig mirrors the teacher's AgentCardResolver defaults
// (pkg/a2a/client.go), tightened to the spec's "small bounded number of
// redirects" requirement.
func DefaultLoaderConfig() LoaderConfig {
	return LoaderConfig{
		Timeout:      10 * time.Second,
		MaxRedirects: 3,
	}
}

// FromDict validates obj (already decoded into an AgentCard) and returns it
// or a CardValidationError.
func FromDict(c AgentCard) (*AgentCard, error) {
	if err := Validate(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// FromFile loads and validates an AgentCard from a JSON file on disk.
func FromFile(path string) (*AgentCard, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &a2a.CardIOError{Path: path, Err: err}
	}

	var c AgentCard
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, &a2a.CardValidationError{Issues: []a2a.CardIssue{{Path: "<root>", Reason: fmt.Sprintf("malformed JSON: %v", err)}}}
	}
	return FromDict(c)
}

// FromURL fetches and validates an AgentCard over HTTP(S), following at
// most cfg.MaxRedirects same-scheme redirects within cfg.Timeout (spec
// §4.1).
func FromURL(ctx context.Context, url string, cfg LoaderConfig) (*AgentCard, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultLoaderConfig().Timeout
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = DefaultLoaderConfig().MaxRedirects
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	// CheckRedirect runs on every hop the stdlib client follows; we cap
	// the count and forbid cross-scheme redirects ourselves since the
	// stdlib only tracks the count.
	originalScheme := schemeOf(url)
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) > cfg.MaxRedirects {
			return fmt.Errorf("stopped after %d redirects", cfg.MaxRedirects)
		}
		if schemeOf(req.URL.String()) != originalScheme {
			return fmt.Errorf("refusing cross-scheme redirect to %s", req.URL)
		}
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &a2a.CardFetchError{URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, &a2a.CardFetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &a2a.CardFetchError{URL: url, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var c AgentCard
	if err := json.NewDecoder(resp.Body).Decode(&c); err != nil {
		return nil, &a2a.CardValidationError{Issues: []a2a.CardIssue{{Path: "<root>", Reason: fmt.Sprintf("malformed JSON: %v", err)}}}
	}
	return FromDict(c)
}

func schemeOf(rawURL string) string {
	for i := 0; i < len(rawURL); i++ {
		if rawURL[i] == ':' {
			return rawURL[:i]
		}
	}
	return ""
}

// IsValidationError reports whether err is (or wraps) a CardValidationError.
func IsValidationError(err error) bool {
	var v *a2a.CardValidationError
	return errors.As(err, &v)
}
