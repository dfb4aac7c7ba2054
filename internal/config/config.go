package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"
)

type Config struct {
	DataDir       string `json:"data_dir"`
	LogLevel      string `json:"log_level"`
	MaxConcurrent int    `json:"max_concurrent"`
	Backend       struct {
		BaseURL    string `json:"base_url"`
		APIKey     string `json:"api_key"`
		StreamAddr string `json:"stream_addr"`
	} `json:"backend"`
	Search struct {
		CacheTTLSec     int     `json:"cache_ttl_sec"`
		CacheMaxEntries int     `json:"cache_max_entries"`
		DebounceMs      int     `json:"debounce_ms"`
		AutoSearch      bool    `json:"auto_search"`
		RecentLimit     int     `json:"recent_limit"`
		DefaultTopK     int     `json:"default_top_k"`
		MinSimilarity   float64 `json:"min_similarity"`
	} `json:"search"`
	Analysis struct {
		Model          string `json:"model"`
		MaxInputTokens int    `json:"max_input_tokens"`
	} `json:"analysis"`
	HTTP struct {
		Enabled bool   `json:"enabled"`
		Listen  string `json:"listen"`
	} `json:"http"`
	Telegram struct {
		Token  string `json:"token"`
		ChatID int64  `json:"chat_id"`
	} `json:"telegram"`
	Maintenance struct {
		SweepSchedule        string `json:"sweep_schedule"`
		StalePendingSchedule string `json:"stale_pending_schedule"`
		StalePendingAfterSec int    `json:"stale_pending_after_sec"`
	} `json:"maintenance"`
}

// Load reads the config file at path, applying defaults for missing
// fields and environment overrides on top. A missing file is created
// with defaults. The file may contain // comments and trailing commas.
func Load(path string) (*Config, error) {
	cfg := &Config{
		DataDir:       filepath.Join(os.Getenv("HOME"), ".parley"),
		MaxConcurrent: 2,
	}
	cfg.LogLevel = "info"
	cfg.Backend.BaseURL = "http://localhost:8787"
	cfg.Backend.StreamAddr = "localhost:8788"
	cfg.Search.CacheTTLSec = 300
	cfg.Search.CacheMaxEntries = 50
	cfg.Search.DebounceMs = 300
	cfg.Search.AutoSearch = true
	cfg.Search.RecentLimit = 10
	cfg.Search.DefaultTopK = 10
	cfg.Search.MinSimilarity = 0.35
	cfg.Analysis.Model = "gpt-4o-mini"
	cfg.Analysis.MaxInputTokens = 8000
	cfg.HTTP.Enabled = true
	cfg.HTTP.Listen = "127.0.0.1:8790"
	cfg.Maintenance.SweepSchedule = "@every 1m"
	cfg.Maintenance.StalePendingSchedule = "@every 5m"
	cfg.Maintenance.StalePendingAfterSec = 120

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if apiKey := os.Getenv("PARLEY_API_KEY"); apiKey != "" {
		cfg.Backend.APIKey = apiKey
	}
	if baseURL := os.Getenv("PARLEY_BASE_URL"); baseURL != "" {
		cfg.Backend.BaseURL = baseURL
	}
	if streamAddr := os.Getenv("PARLEY_STREAM_ADDR"); streamAddr != "" {
		cfg.Backend.StreamAddr = streamAddr
	}
	if tgToken := os.Getenv("TELEGRAM_BOT_TOKEN"); tgToken != "" {
		cfg.Telegram.Token = tgToken
	}

	return cfg, nil
}

// Save writes the config to path atomically, creating parent directories
// as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// ToMap converts the config to a nested map via a JSON round trip, so
// keys match the file's snake_case names.
func ToMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal config map: %w", err)
	}
	return m, nil
}

// ListValues returns every config value keyed by its dot-separated path.
// With mask set, secret values are shown as "***" plus their last four
// characters.
func ListValues(cfg *Config, mask bool) (map[string]any, error) {
	m, err := ToMap(cfg)
	if err != nil {
		return nil, err
	}
	flat := Flatten(m)
	if mask {
		flat = MaskSecrets(flat)
	}
	return flat, nil
}

// GetValue returns the value for the dot-separated key in the config
// file at path. The raw file is consulted rather than the parsed
// struct, so keys set outside the known schema are still readable. A
// missing file is created with defaults first.
func GetValue(path, key string) (any, error) {
	if _, err := Load(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(jsonc.ToJSON(data), &m); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	flat := Flatten(m)
	val, ok := flat[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	return val, nil
}

// SetValue updates one dot-separated key in the config file at path. The
// value is parsed as JSON where possible (numbers, booleans), falling
// back to a plain string. Keys not present in the file are created.
func SetValue(path, key, value string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var m map[string]any
	if err := json.Unmarshal(jsonc.ToJSON(data), &m); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	var parsed any
	if err := json.Unmarshal([]byte(value), &parsed); err != nil {
		parsed = value
	}

	flat := Flatten(m)
	flat[key] = parsed
	nested := Unflatten(flat)

	out, err := json.MarshalIndent(nested, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	out = append(out, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, out, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}
