package config

import (
	"strings"
	"testing"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("BOT_TOKEN", "bot-token")
	t.Setenv("ENGINE_API_KEY", "engine-key")
	t.Setenv("GITHUB_TOKEN", "gh-token")
	t.Setenv("GITHUB_REPO", "acme/api")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error = %v", err)
	}
	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want :8080", cfg.BindAddr)
	}
	if cfg.EngineCLIPath == "" {
		t.Fatalf("EngineCLIPath empty, want default")
	}
	if !cfg.AllowAllGuilds() {
		t.Fatalf("AllowAllGuilds = false with no allow-list")
	}
}

func TestLoadReportsEveryMissingCredential(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("ENGINE_API_KEY", "")
	t.Setenv("GITHUB_TOKEN", "gh-token")
	t.Setenv("GITHUB_REPO", "acme/api")

	_, err := Load()
	if err == nil {
		t.Fatalf("Load error = nil, want missing credentials")
	}
	msg := err.Error()
	for _, key := range []string{"BOT_TOKEN", "ENGINE_API_KEY"} {
		if !strings.Contains(msg, key) {
			t.Fatalf("error %q missing %s", msg, key)
		}
	}
	if strings.Contains(msg, "GITHUB_TOKEN is required") {
		t.Fatalf("error %q flags a variable that was set", msg)
	}
}

func TestLoadParsesGuildAllowList(t *testing.T) {
	setRequired(t)
	t.Setenv("ALLOWED_GUILD_IDS", "123, 456 ,,789")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error = %v", err)
	}
	want := []string{"123", "456", "789"}
	if len(cfg.AllowedGuildIDs) != len(want) {
		t.Fatalf("AllowedGuildIDs = %v, want %v", cfg.AllowedGuildIDs, want)
	}
	for i := range want {
		if cfg.AllowedGuildIDs[i] != want[i] {
			t.Fatalf("AllowedGuildIDs = %v, want %v", cfg.AllowedGuildIDs, want)
		}
	}
	if cfg.AllowAllGuilds() {
		t.Fatalf("AllowAllGuilds = true with allow-list set")
	}
}

func TestLoadBadDurationFails(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_SHUTDOWN_TIMEOUT", "soon")
	if _, err := Load(); err == nil {
		t.Fatalf("Load error = nil, want duration parse failure")
	}
}
