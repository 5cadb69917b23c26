package auth

import "testing"

func TestApplyEnvVarKey(t *testing.T) {
	keys := map[string]string{}
	oauthPairs := map[string][2]string{}
	applyEnvVar("AGENTVAULT_KEY_WEATHER", "secret123", "AGENTVAULT_KEY_", "AGENTVAULT_OAUTH_", keys, oauthPairs)

	if keys["weather"] != "secret123" {
		t.Fatalf("expected lowercased key id, got %#v", keys)
	}
}

func TestApplyEnvVarOAuthPair(t *testing.T) {
	keys := map[string]string{}
	oauthPairs := map[string][2]string{}

	applyEnvVar("AGENTVAULT_OAUTH_BILLING_CLIENT_ID", "cid", "AGENTVAULT_KEY_", "AGENTVAULT_OAUTH_", keys, oauthPairs)
	applyEnvVar("AGENTVAULT_OAUTH_BILLING_CLIENT_SECRET", "secret", "AGENTVAULT_KEY_", "AGENTVAULT_OAUTH_", keys, oauthPairs)

	pair, ok := oauthPairs["billing"]
	if !ok || pair[0] != "cid" || pair[1] != "secret" {
		t.Fatalf("unexpected oauth pairs: %#v", oauthPairs)
	}
}

func TestApplyEnvVarIgnoresUnrelated(t *testing.T) {
	keys := map[string]string{}
	oauthPairs := map[string][2]string{}
	applyEnvVar("PATH", "/usr/bin", "AGENTVAULT_KEY_", "AGENTVAULT_OAUTH_", keys, oauthPairs)

	if len(keys) != 0 || len(oauthPairs) != 0 {
		t.Fatalf("expected unrelated vars to be ignored, got keys=%#v oauth=%#v", keys, oauthPairs)
	}
}

func TestLoadEnvSnapshotsProcessEnv(t *testing.T) {
	t.Setenv("AGENTVAULT_KEY_ECHO", "v1")
	keys, _ := loadEnv("AGENTVAULT")
	if keys["echo"] != "v1" {
		t.Fatalf("expected loadEnv to pick up process env, got %#v", keys)
	}
}
