package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Defaults mirror the hosted-model setup the service was written against.
// The API key default is a placeholder and must be overridden by the operator.
const (
	DefaultBaseURL = "https://api-inference.huggingface.co"
	DefaultModel   = "HuggingFaceH4/zephyr-7b-beta"
	DefaultAPIKey  = "use-your-own-API-key-here"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig   `json:"basic_config"`
	Backend     BackendConfig `json:"backend"`
	Storage     StorageConfig `json:"storage"`
	Redis       RedisConfig   `json:"redis"`
}

type BasicConfig struct {
	ServerAddress string `json:"server_address"`
}

// BackendConfig selects the hosted generation model and how to reach it.
type BackendConfig struct {
	BaseURL        string `json:"base_url"`
	Model          string `json:"model"`
	APIKey         string `json:"api_key"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// StorageConfig picks the persistence backend. Driver "json" keeps
// credentials and transcripts in two flat files; "sqlite3" and "mysql"
// use the relational backend instead.
type StorageConfig struct {
	Driver      string `json:"driver"`
	UsersFile   string `json:"users_file"`
	HistoryFile string `json:"history_file"`
	DSN         string `json:"dsn"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	Host        string `json:"host"`
	Port        int    `json:"port"`
	DBName      string `json:"db_name"`
	Params      string `json:"params"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// Timeout returns the generation request timeout.
func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(b.TimeoutSeconds) * time.Second
}

// Load reads configuration from the provided path (defaults to config.json).
// A missing file is not an error: the defaults plus environment overrides
// are enough to run against the hosted backend.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path == "" {
		path = "config.json"
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err == nil {
		defer file.Close()
		if err := json.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
		baseDir := filepath.Dir(absPath)
		if cfg.Storage.UsersFile != "" && !filepath.IsAbs(cfg.Storage.UsersFile) {
			cfg.Storage.UsersFile = filepath.Join(baseDir, cfg.Storage.UsersFile)
		}
		if cfg.Storage.HistoryFile != "" && !filepath.IsAbs(cfg.Storage.HistoryFile) {
			cfg.Storage.HistoryFile = filepath.Join(baseDir, cfg.Storage.HistoryFile)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}

	applyEnv(cfg)

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "json"
	}
	if cfg.Storage.UsersFile == "" {
		cfg.Storage.UsersFile = "users.json"
	}
	if cfg.Storage.HistoryFile == "" {
		cfg.Storage.HistoryFile = "chat_history.json"
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		BasicConfig: BasicConfig{ServerAddress: ":8090"},
		Backend: BackendConfig{
			BaseURL: DefaultBaseURL,
			Model:   DefaultModel,
			APIKey:  DefaultAPIKey,
		},
	}
}

// applyEnv overlays the operator environment on top of file values. HF_API_KEY
// keeps its historical name; the rest are namespaced under SYNBOT_.
func applyEnv(cfg *Config) {
	if v := os.Getenv("HF_API_KEY"); v != "" {
		cfg.Backend.APIKey = v
	}
	if v := os.Getenv("SYNBOT_MODEL"); v != "" {
		cfg.Backend.Model = v
	}
	if v := os.Getenv("SYNBOT_BACKEND_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv("SYNBOT_ADDR"); v != "" {
		cfg.BasicConfig.ServerAddress = v
	}
	if v := os.Getenv("SYNBOT_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
}
