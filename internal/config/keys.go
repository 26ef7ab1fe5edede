package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "BIGOB_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.admin_token", typ: kString, env: "BIGOB_ADMIN_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.AdminToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.AdminToken },
	},
	{
		key: "board.topic_id", typ: kInt, env: "BIGOB_BOARD_TOPIC_ID",
		apply:   func(cfg *Config, v any) { cfg.Board.TopicID = int64(v.(int)) },
		extract: func(cfg Config) any { return cfg.Board.TopicID },
	},
	{
		key: "board.user_id", typ: kInt, env: "BIGOB_BOARD_USER_ID",
		apply:   func(cfg *Config, v any) { cfg.Board.UserID = int64(v.(int)) },
		extract: func(cfg Config) any { return cfg.Board.UserID },
	},
	{
		key: "board.user_email", typ: kString, env: "BIGOB_BOARD_USER_EMAIL",
		apply:   func(cfg *Config, v any) { cfg.Board.UserEmail = v.(string) },
		extract: func(cfg Config) any { return cfg.Board.UserEmail },
	},
	{
		key: "board.user_name", typ: kString, env: "BIGOB_BOARD_USER_NAME",
		apply:   func(cfg *Config, v any) { cfg.Board.UserName = v.(string) },
		extract: func(cfg Config) any { return cfg.Board.UserName },
	},
	{
		key: "orbit.base_url", typ: kString, env: "BIGOB_ORBIT_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Orbit.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Orbit.BaseURL },
	},
	{
		key: "orbit.notify_path", typ: kString, env: "BIGOB_ORBIT_NOTIFY_PATH",
		apply:   func(cfg *Config, v any) { cfg.Orbit.NotifyPath = v.(string) },
		extract: func(cfg Config) any { return cfg.Orbit.NotifyPath },
	},
	{
		key: "orbit.api_key_name", typ: kString, env: "BIGOB_ORBIT_API_KEY_NAME",
		apply:   func(cfg *Config, v any) { cfg.Orbit.APIKeyName = v.(string) },
		extract: func(cfg Config) any { return cfg.Orbit.APIKeyName },
	},
	{
		key: "orbit.api_key_val", typ: kString, env: "BIGOB_ORBIT_API_KEY_VAL",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Orbit.APIKeyVal = v.(string) },
		extract: func(cfg Config) any { return cfg.Orbit.APIKeyVal },
	},
	{
		key: "storage.data_dir", typ: kString, env: "BIGOB_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "poll.interval_ms", typ: kInt, env: "BIGOB_POLL_INTERVAL_MS",
		apply:   func(cfg *Config, v any) { cfg.Poll.IntervalMS = v.(int) },
		extract: func(cfg Config) any { return cfg.Poll.IntervalMS },
	},
	{
		key: "poll.max_attempts", typ: kInt, env: "BIGOB_POLL_MAX_ATTEMPTS",
		apply:   func(cfg *Config, v any) { cfg.Poll.MaxAttempts = v.(int) },
		extract: func(cfg Config) any { return cfg.Poll.MaxAttempts },
	},
	{
		key: "log.level", typ: kString, env: "BIGOB_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
