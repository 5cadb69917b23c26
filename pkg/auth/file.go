package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// loadFile parses a credential file in either the flat .env-style format
// or the JSON object format (spec §6), detected by extension.
func loadFile(path, prefix string) (keys map[string]string, oauthPairs map[string][2]string, err error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return loadJSONFile(path)
	default:
		return loadFlatFile(path, prefix)
	}
}

// loadFlatFile parses one KEY=VALUE per line (# comments, blank lines
// ignored) via github.com/joho/godotenv, the pack's .env parser
// (kadirpekel-hector's config/env.go). API keys are bare `<id>=value`
// lines; OAuth halves reuse the AGENTVAULT_OAUTH_<id>_CLIENT_ID /
// _CLIENT_SECRET naming spec §4.2 specifies even inside the file.
func loadFlatFile(path, prefix string) (map[string]string, map[string][2]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, map[string][2]string{}, nil
		}
		return nil, nil, fmt.Errorf("read credential file %s: %w", path, err)
	}

	entries, err := godotenv.Unmarshal(string(raw))
	if err != nil {
		return nil, nil, fmt.Errorf("parse credential file %s: %w", path, err)
	}

	keys := map[string]string{}
	oauthPairs := map[string][2]string{}
	oauthPrefix := prefix + "_OAUTH_"

	for name, value := range entries {
		switch {
		case strings.HasSuffix(name, "_CLIENT_ID") && strings.HasPrefix(name, oauthPrefix):
			id := strings.ToLower(strings.TrimSuffix(strings.TrimPrefix(name, oauthPrefix), "_CLIENT_ID"))
			pair := oauthPairs[id]
			pair[0] = value
			oauthPairs[id] = pair
		case strings.HasSuffix(name, "_CLIENT_SECRET") && strings.HasPrefix(name, oauthPrefix):
			id := strings.ToLower(strings.TrimSuffix(strings.TrimPrefix(name, oauthPrefix), "_CLIENT_SECRET"))
			pair := oauthPairs[id]
			pair[1] = value
			oauthPairs[id] = pair
		default:
			keys[strings.ToLower(name)] = value
		}
	}
	return keys, oauthPairs, nil
}

// jsonCredentialEntry mirrors spec §6's JSON credential file shape:
// service_id -> (string | {apiKey?, oauth?: {clientId, clientSecret}}).
type jsonCredentialEntry struct {
	APIKey string `json:"apiKey"`
	OAuth  *struct {
		ClientID     string `json:"clientId"`
		ClientSecret string `json:"clientSecret"`
	} `json:"oauth"`
}

func loadJSONFile(path string) (map[string]string, map[string][2]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, map[string][2]string{}, nil
		}
		return nil, nil, fmt.Errorf("read credential file %s: %w", path, err)
	}

	var asStrings map[string]json.RawMessage
	if err := json.Unmarshal(raw, &asStrings); err != nil {
		return nil, nil, fmt.Errorf("parse credential file %s: %w", path, err)
	}

	keys := map[string]string{}
	oauthPairs := map[string][2]string{}

	for id, rawVal := range asStrings {
		id = strings.ToLower(id)

		var plain string
		if err := json.Unmarshal(rawVal, &plain); err == nil {
			keys[id] = plain
			continue
		}

		var entry jsonCredentialEntry
		if err := json.Unmarshal(rawVal, &entry); err != nil {
			return nil, nil, fmt.Errorf("credential file %s: entry %q is neither a string nor an object", path, id)
		}
		if entry.APIKey != "" {
			keys[id] = entry.APIKey
		}
		if entry.OAuth != nil {
			oauthPairs[id] = [2]string{entry.OAuth.ClientID, entry.OAuth.ClientSecret}
		}
	}
	return keys, oauthPairs, nil
}
