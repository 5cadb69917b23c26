package auth

import (
	"os"
	"strings"
)

// loadEnv snapshots the process environment into the key/oauth caches
// spec §4.2's storage table describes: AGENTVAULT_KEY_<ID>,
// AGENTVAULT_OAUTH_<ID>_CLIENT_ID, AGENTVAULT_OAUTH_<ID>_CLIENT_SECRET.
func loadEnv(prefix string) (keys map[string]string, oauthPairs map[string][2]string) {
	keys = map[string]string{}
	oauthPairs = map[string][2]string{}

	keyPrefix := prefix + "_KEY_"
	oauthPrefix := prefix + "_OAUTH_"

	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		applyEnvVar(name, value, keyPrefix, oauthPrefix, keys, oauthPairs)
	}
	return keys, oauthPairs
}

func applyEnvVar(name, value, keyPrefix, oauthPrefix string, keys map[string]string, oauthPairs map[string][2]string) {
	switch {
	case strings.HasPrefix(name, keyPrefix):
		id := strings.ToLower(strings.TrimPrefix(name, keyPrefix))
		keys[id] = value

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
	}
}
