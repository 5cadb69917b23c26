package card

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func validCard() AgentCard {
	return AgentCard{
		SchemaVersion:   "1.0",
		HumanReadableID: "acme/helper",
		Name:            "Helper",
		Provider:        Provider{Name: "Acme"},
		AgentVersion:    "1.0.0",
		URL:             "https://helper.acme.example/a2a",
		Capabilities: Capabilities{
			A2AVersion:            "1.0",
			SupportedMessageParts: []string{"text"},
		},
		AuthSchemes: []AuthScheme{{Kind: SchemeNone}},
	}
}

func TestFromDictValid(t *testing.T) {
	c, err := FromDict(validCard())
	if err != nil {
		t.Fatalf("expected valid card, got %v", err)
	}
	if c.HumanReadableID != "acme/helper" {
		t.Fatalf("unexpected hri: %s", c.HumanReadableID)
	}
}

func TestFromDictRejectsNonHTTPS(t *testing.T) {
	c := validCard()
	c.URL = "http://helper.acme.example/a2a"
	if _, err := FromDict(c); err == nil {
		t.Fatalf("expected non-HTTPS production URL to be rejected")
	}
}

func TestFromDictAllowsLocalhostHTTP(t *testing.T) {
	c := validCard()
	c.URL = "http://localhost:8080/a2a"
	if _, err := FromDict(c); err != nil {
		t.Fatalf("expected localhost HTTP to be allowed, got %v", err)
	}
}

func TestFromDictRejectsBadHRI(t *testing.T) {
	c := validCard()
	c.HumanReadableID = "NotNamespaced"
	if _, err := FromDict(c); err == nil {
		t.Fatalf("expected malformed HRI to be rejected")
	}
}

func TestFromDictRequiresAuthScheme(t *testing.T) {
	c := validCard()
	c.AuthSchemes = nil
	if _, err := FromDict(c); err == nil {
		t.Fatalf("expected missing auth_schemes to be rejected")
	}
}

func TestFromFileRoundTrip(t *testing.T) {
	c := validCard()
	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(t.TempDir(), "card.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	loaded, err := FromFile(path)
	if err != nil {
		t.Fatalf("FromFile: %v", err)
	}
	if loaded.Name != c.Name {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}
}

func TestFromFileMissing(t *testing.T) {
	if _, err := FromFile("/nonexistent/path/card.json"); err == nil {
		t.Fatalf("expected IO error for missing file")
	}
}

func TestFromURLFetchesAndValidates(t *testing.T) {
	c := validCard()
	c.URL = "http://localhost/a2a"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(c)
	}))
	defer srv.Close()

	loaded, err := FromURL(context.Background(), srv.URL, DefaultLoaderConfig())
	if err != nil {
		t.Fatalf("FromURL: %v", err)
	}
	if loaded.HumanReadableID != c.HumanReadableID {
		t.Fatalf("unexpected card: %+v", loaded)
	}
}

func TestFromURLNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := FromURL(context.Background(), srv.URL, DefaultLoaderConfig()); err == nil {
		t.Fatalf("expected fetch error on non-200 response")
	}
}
