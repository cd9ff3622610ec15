package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Config contains all runtime settings for the bot.
type Config struct {
	BotToken     string
	EngineAPIKey string
	GitHubToken  string
	GitHubRepo   string

	// AllowedGuildIDs limits which conversation spaces the bot serves.
	// Empty means every space is allowed; Load flags that so main can warn.
	AllowedGuildIDs []string

	WakeWord      string
	EngineCLIPath string
	GatewayURL    string

	BindAddr         string
	MetricsNamespace string
	ShutdownTimeout  time.Duration

	RateLimitDBPath string
	DatabaseURL     string
	MemoryDir       string
}

// Load reads environment variables, reporting every missing required
// credential rather than stopping at the first.
func Load() (Config, error) {
	cfg := Config{
		BotToken:         strings.TrimSpace(os.Getenv("BOT_TOKEN")),
		EngineAPIKey:     strings.TrimSpace(os.Getenv("ENGINE_API_KEY")),
		GitHubToken:      strings.TrimSpace(os.Getenv("GITHUB_TOKEN")),
		GitHubRepo:       strings.TrimSpace(os.Getenv("GITHUB_REPO")),
		AllowedGuildIDs:  splitList(os.Getenv("ALLOWED_GUILD_IDS")),
		WakeWord:         envOrDefault("WAKE_WORD", "@bobby"),
		EngineCLIPath:    envOrDefault("ENGINE_CLI_PATH", "claude"),
		GatewayURL:       strings.TrimSpace(os.Getenv("GATEWAY_URL")),
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "bobby"),
		ShutdownTimeout:  15 * time.Second,
		RateLimitDBPath:  envOrDefault("RATE_LIMIT_DB", "data/rate_limits.db"),
		DatabaseURL:      strings.TrimSpace(os.Getenv("DATABASE_URL")),
		MemoryDir:        envOrDefault("MEMORY_DIR", "memory"),
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}

	var missing []error
	for _, req := range []struct{ key, value, purpose string }{
		{"BOT_TOKEN", cfg.BotToken, "chat platform bot credential"},
		{"ENGINE_API_KEY", cfg.EngineAPIKey, "analysis engine credential"},
		{"GITHUB_TOKEN", cfg.GitHubToken, "source control credential"},
		{"GITHUB_REPO", cfg.GitHubRepo, "target repository (owner/name)"},
	} {
		if req.value == "" {
			missing = append(missing, fmt.Errorf("%s is required: %s", req.key, req.purpose))
		}
	}
	if len(missing) > 0 {
		return Config{}, errors.Join(missing...)
	}

	return cfg, nil
}

// AllowAllGuilds reports whether no space allow-list is configured.
func (c Config) AllowAllGuilds() bool {
	return len(c.AllowedGuildIDs) == 0
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}
