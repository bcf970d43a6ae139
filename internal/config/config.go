// Package config resolves runtime configuration from an optional YAML file
// with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration accepts "10s" style values in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts to the standard library duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config stores runtime configuration for voxnote.
type Config struct {
	Provider     string             `yaml:"provider"`
	Deepgram     DeepgramConfig     `yaml:"deepgram"`
	Whisper      WhisperConfig      `yaml:"whisper"`
	Retry        RetryConfig        `yaml:"retry"`
	Connectivity ConnectivityConfig `yaml:"connectivity"`
	Rules        RulesConfig        `yaml:"rules"`
	Storage      StorageConfig      `yaml:"storage"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	Status       StatusConfig       `yaml:"status"`
}

type DeepgramConfig struct {
	APIKey      string `yaml:"api_key"`
	APIBaseURL  string `yaml:"api_base_url"`
	Model       string `yaml:"model"`
	Language    string `yaml:"language"`
	SmartFormat bool   `yaml:"smart_format"`
}

type WhisperConfig struct {
	APIKey     string   `yaml:"api_key"`
	APIBaseURL string   `yaml:"api_base_url"`
	Model      string   `yaml:"model"`
	Language   string   `yaml:"language"`
	Timeout    Duration `yaml:"timeout"`
}

type RetryConfig struct {
	Policy string `yaml:"policy"`
}

type ConnectivityConfig struct {
	ProbeAddr     string   `yaml:"probe_addr"`
	ProbeInterval Duration `yaml:"probe_interval"`
	ProbeTimeout  Duration `yaml:"probe_timeout"`
}

type RulesConfig struct {
	Path           string `yaml:"path"`
	IterationLimit int    `yaml:"iteration_limit"`
}

type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	DataDir      string `yaml:"data_dir"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type StatusConfig struct {
	HistoryLimit int `yaml:"history_limit"`
}

// Load reads the YAML config file (VOXNOTE_CONFIG or
// ~/.config/voxnote/config.yaml), applies environment overrides, and fills in
// defaults. A missing file is not an error.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}

	path := envOrDefault("VOXNOTE_CONFIG", filepath.Join(home, ".config", "voxnote", "config.yaml"))
	cfg, err := loadFile(path)
	if err != nil {
		return Config{}, err
	}

	applyEnv(&cfg)
	applyDefaults(&cfg, home)

	if cfg.Provider != "deepgram" && cfg.Provider != "whisper" {
		return Config{}, fmt.Errorf("unknown transcription provider %q", cfg.Provider)
	}
	return cfg, nil
}

func loadFile(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Provider = envOrDefault("VOXNOTE_PROVIDER", cfg.Provider)

	cfg.Deepgram.APIKey = envOrDefault("DEEPGRAM_API_KEY", cfg.Deepgram.APIKey)
	cfg.Deepgram.APIBaseURL = envOrDefault("DEEPGRAM_API_BASE", cfg.Deepgram.APIBaseURL)
	cfg.Deepgram.Model = envOrDefault("DEEPGRAM_MODEL", cfg.Deepgram.Model)
	cfg.Deepgram.Language = envOrDefault("DEEPGRAM_LANGUAGE", cfg.Deepgram.Language)
	cfg.Deepgram.SmartFormat = envOrDefaultBool("DEEPGRAM_SMART_FORMAT", cfg.Deepgram.SmartFormat)

	cfg.Whisper.APIKey = envOrDefault("WHISPER_API_KEY", cfg.Whisper.APIKey)
	cfg.Whisper.APIBaseURL = envOrDefault("WHISPER_API_BASE", cfg.Whisper.APIBaseURL)
	cfg.Whisper.Model = envOrDefault("WHISPER_MODEL", cfg.Whisper.Model)
	cfg.Whisper.Language = envOrDefault("WHISPER_LANGUAGE", cfg.Whisper.Language)

	cfg.Retry.Policy = envOrDefault("VOXNOTE_RETRY_POLICY", cfg.Retry.Policy)
	cfg.Connectivity.ProbeAddr = envOrDefault("VOXNOTE_PROBE_ADDR", cfg.Connectivity.ProbeAddr)
	if ms := envOrDefaultInt("VOXNOTE_PROBE_INTERVAL_MS", 0); ms > 0 {
		cfg.Connectivity.ProbeInterval = Duration(time.Duration(ms) * time.Millisecond)
	}

	cfg.Rules.Path = envOrDefault("VOXNOTE_RULES_FILE", cfg.Rules.Path)
	cfg.Storage.DatabasePath = envOrDefault("VOXNOTE_DB_PATH", cfg.Storage.DatabasePath)
	cfg.Storage.DataDir = envOrDefault("VOXNOTE_DATA_DIR", cfg.Storage.DataDir)

	cfg.Metrics.Enabled = envOrDefaultBool("VOXNOTE_METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Metrics.Addr = envOrDefault("VOXNOTE_METRICS_ADDR", cfg.Metrics.Addr)
}

func applyDefaults(cfg *Config, home string) {
	if cfg.Provider == "" {
		cfg.Provider = "deepgram"
	}
	if cfg.Deepgram.APIBaseURL == "" {
		cfg.Deepgram.APIBaseURL = "https://api.deepgram.com/v1"
	}
	if cfg.Deepgram.Model == "" {
		cfg.Deepgram.Model = "nova-2"
	}
	if cfg.Whisper.APIBaseURL == "" {
		cfg.Whisper.APIBaseURL = "https://api.openai.com/v1"
	}
	if cfg.Whisper.Model == "" {
		cfg.Whisper.Model = "whisper-1"
	}
	if cfg.Whisper.Timeout <= 0 {
		cfg.Whisper.Timeout = Duration(2 * time.Minute)
	}
	if cfg.Retry.Policy == "" {
		cfg.Retry.Policy = "remote_api"
	}
	if cfg.Connectivity.ProbeAddr == "" {
		cfg.Connectivity.ProbeAddr = "1.1.1.1:443"
	}
	if cfg.Connectivity.ProbeInterval <= 0 {
		cfg.Connectivity.ProbeInterval = Duration(10 * time.Second)
	}
	if cfg.Connectivity.ProbeTimeout <= 0 {
		cfg.Connectivity.ProbeTimeout = Duration(3 * time.Second)
	}
	if cfg.Rules.Path == "" {
		cfg.Rules.Path = filepath.Join(home, ".config", "voxnote", "substitutions.rules")
	}
	if cfg.Rules.IterationLimit <= 0 {
		cfg.Rules.IterationLimit = 30
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = filepath.Join(home, ".local", "share", "voxnote")
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = filepath.Join(cfg.Storage.DataDir, "voxnote.db")
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = "127.0.0.1:9464"
	}
	if cfg.Status.HistoryLimit <= 0 {
		cfg.Status.HistoryLimit = 100
	}
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
