package config

import (
	"testing"
)

// mapBackend is an in-memory ConfigBackend for tests.
type mapBackend struct {
	data map[string]any
}

func (b *mapBackend) GetString(key string) (string, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return "", false, nil
	}
	return v.(string), true, nil
}

func (b *mapBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return 0, false, nil
	}
	return v.(int), true, nil
}

func (b *mapBackend) SetString(key, val string) error { b.data[key] = val; return nil }
func (b *mapBackend) SetInt(key string, val int) error { b.data[key] = val; return nil }
func (b *mapBackend) Delete(key string) error          { delete(b.data, key); return nil }

// mockKeychain is a test double for the keychain interface.
type mockKeychain struct {
	value string
	err   error
}

func (m mockKeychain) Get(service, account string) (string, error) {
	return m.value, m.err
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		if s.env != "" {
			t.Setenv(s.env, "")
		}
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := loadWith(&mapBackend{data: map[string]any{}}, mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 3001 {
		t.Errorf("Server.Port = %d, want 3001", cfg.Server.Port)
	}
	if cfg.Board.TopicID != 22 {
		t.Errorf("Board.TopicID = %d, want 22", cfg.Board.TopicID)
	}
	if cfg.Board.UserID != 865 {
		t.Errorf("Board.UserID = %d, want 865", cfg.Board.UserID)
	}
	if cfg.Orbit.BaseURL != "https://gotoorbit.io" {
		t.Errorf("Orbit.BaseURL = %q", cfg.Orbit.BaseURL)
	}
	if cfg.Orbit.NotifyPath != "/api/external/notify" {
		t.Errorf("Orbit.NotifyPath = %q", cfg.Orbit.NotifyPath)
	}
	if cfg.Poll.IntervalMS != 2000 {
		t.Errorf("Poll.IntervalMS = %d, want 2000", cfg.Poll.IntervalMS)
	}
	if cfg.Poll.MaxAttempts != 30 {
		t.Errorf("Poll.MaxAttempts = %d, want 30", cfg.Poll.MaxAttempts)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
}

func TestBackendValuesApplied(t *testing.T) {
	clearEnv(t)

	b := &mapBackend{data: map[string]any{
		"server.port":      5000,
		"board.topic_id":   77,
		"orbit.base_url":   "http://localhost:9000",
		"poll.interval_ms": 100,
	}}

	cfg, err := loadWith(b, mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Board.TopicID != 77 {
		t.Errorf("Board.TopicID = %d, want 77", cfg.Board.TopicID)
	}
	if cfg.Orbit.BaseURL != "http://localhost:9000" {
		t.Errorf("Orbit.BaseURL = %q", cfg.Orbit.BaseURL)
	}
	if cfg.Poll.IntervalMS != 100 {
		t.Errorf("Poll.IntervalMS = %d, want 100", cfg.Poll.IntervalMS)
	}
}

func TestEnvOverridesBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("BIGOB_SERVER_PORT", "6001")
	t.Setenv("BIGOB_ORBIT_API_KEY_VAL", "env-secret")

	b := &mapBackend{data: map[string]any{"server.port": 5000}}

	cfg, err := loadWith(b, mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 6001 {
		t.Errorf("Server.Port = %d, want env override 6001", cfg.Server.Port)
	}
	if cfg.Orbit.APIKeyVal != "env-secret" {
		t.Errorf("Orbit.APIKeyVal = %q, want env-secret", cfg.Orbit.APIKeyVal)
	}
}

func TestInvalidEnvIntegerKeepsDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("BIGOB_SERVER_PORT", "not-a-number")

	cfg, err := loadWith(&mapBackend{data: map[string]any{}}, mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 3001 {
		t.Errorf("Server.Port = %d, want default 3001", cfg.Server.Port)
	}
}

func TestKeychainFallbackForOrbitKey(t *testing.T) {
	clearEnv(t)

	kc := mockKeychain{value: "keychain-secret"}
	cfg, err := loadWith(&mapBackend{data: map[string]any{}}, kc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Orbit.APIKeyVal != "keychain-secret" {
		t.Errorf("Orbit.APIKeyVal = %q, want keychain-secret", cfg.Orbit.APIKeyVal)
	}
}

func TestShowAllMasksSecrets(t *testing.T) {
	cfg := defaults()
	cfg.Orbit.APIKeyVal = "super-secret"

	for _, info := range ShowAll(cfg) {
		if info.Key == "orbit.api_key_val" {
			if info.Value != "(set)" {
				t.Errorf("secret value = %q, want (set)", info.Value)
			}
			return
		}
	}
	t.Fatal("orbit.api_key_val not listed")
}

func TestSetKeyRejectsSecretsAndUnknownKeys(t *testing.T) {
	if err := SetKey("orbit.api_key_val", "x"); err == nil {
		t.Error("expected error setting a secret key")
	}
	if err := SetKey("no.such.key", "x"); err == nil {
		t.Error("expected error for unknown key")
	}
}
