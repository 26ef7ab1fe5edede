package config

import (
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	Board   BoardConfig
	Orbit   OrbitConfig
	Storage StorageConfig
	Poll    PollConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port int
	// AdminToken guards the transcript admin endpoints. Empty disables them.
	AdminToken string
}

// BoardConfig identifies the board in the external chat workspace: which
// topic its messages land in and which user they are attributed to.
type BoardConfig struct {
	TopicID   int64
	UserID    int64
	UserEmail string
	UserName  string
}

// OrbitConfig points the outbound relay at the external AI service.
type OrbitConfig struct {
	BaseURL    string
	NotifyPath string
	APIKeyName string
	APIKeyVal  string
}

type StorageConfig struct {
	DataDir string
}

type PollConfig struct {
	IntervalMS  int
	MaxAttempts int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 3001,
		},
		Board: BoardConfig{
			TopicID:   22,
			UserID:    865,
			UserEmail: "board@bigob.local",
			UserName:  "BigO Board",
		},
		Orbit: OrbitConfig{
			BaseURL:    "https://gotoorbit.io",
			NotifyPath: "/api/external/notify",
			APIKeyName: "bigob",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Poll: PollConfig{
			IntervalMS:  2000,
			MaxAttempts: 30,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a .env file (if present), the platform-native
// backend, environment variables, and the platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.bigob.app) and the Orbit
// API key falls back to macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/bigob/config.json
// and secrets come from environment variables or the local secrets file.
//
// Environment variables (BIGOB_*) override backend values on all platforms.
func Load() (Config, error) {
	// Missing .env is the normal case.
	_ = godotenv.Load()
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts secret-store access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	// Try the platform secret store for the Orbit key if still empty. The
	// relay works without it only if the upstream does not check keys.
	if cfg.Orbit.APIKeyVal == "" {
		if key, err := kc.Get("bigob", "orbit_api_key"); err == nil && key != "" {
			cfg.Orbit.APIKeyVal = key
		}
	}

	return cfg, nil
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainExec(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
