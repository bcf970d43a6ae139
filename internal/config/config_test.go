package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, home string, content string) string {
	t.Helper()
	path := filepath.Join(home, ".config", "voxnote", "config.yaml")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	return path
}

func clearVoxnoteEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"VOXNOTE_CONFIG", "VOXNOTE_PROVIDER", "VOXNOTE_RETRY_POLICY",
		"VOXNOTE_PROBE_ADDR", "VOXNOTE_PROBE_INTERVAL_MS", "VOXNOTE_RULES_FILE",
		"VOXNOTE_DB_PATH", "VOXNOTE_DATA_DIR", "VOXNOTE_METRICS_ENABLED", "VOXNOTE_METRICS_ADDR",
		"DEEPGRAM_API_KEY", "DEEPGRAM_API_BASE", "DEEPGRAM_MODEL", "DEEPGRAM_LANGUAGE", "DEEPGRAM_SMART_FORMAT",
		"WHISPER_API_KEY", "WHISPER_API_BASE", "WHISPER_MODEL", "WHISPER_LANGUAGE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	clearVoxnoteEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Provider != "deepgram" {
		t.Fatalf("unexpected provider: %q", cfg.Provider)
	}
	if cfg.Deepgram.Model != "nova-2" || cfg.Deepgram.APIBaseURL != "https://api.deepgram.com/v1" {
		t.Fatalf("unexpected deepgram defaults: %+v", cfg.Deepgram)
	}
	if cfg.Retry.Policy != "remote_api" {
		t.Fatalf("unexpected retry policy: %q", cfg.Retry.Policy)
	}
	if cfg.Connectivity.ProbeInterval.Std() != 10*time.Second {
		t.Fatalf("unexpected probe interval: %v", cfg.Connectivity.ProbeInterval)
	}
	if cfg.Storage.DatabasePath != filepath.Join(home, ".local", "share", "voxnote", "voxnote.db") {
		t.Fatalf("unexpected database path: %q", cfg.Storage.DatabasePath)
	}
	if cfg.Status.HistoryLimit != 100 {
		t.Fatalf("unexpected history limit: %d", cfg.Status.HistoryLimit)
	}
}

func TestLoadReadsYAMLFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	clearVoxnoteEnv(t)

	writeConfigFile(t, home, `
provider: whisper
whisper:
  api_key: file-key
  model: whisper-large
  timeout: 90s
retry:
  policy: network
connectivity:
  probe_addr: example.com:443
  probe_interval: 30s
metrics:
  enabled: true
  addr: 127.0.0.1:9999
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Provider != "whisper" {
		t.Fatalf("unexpected provider: %q", cfg.Provider)
	}
	if cfg.Whisper.APIKey != "file-key" || cfg.Whisper.Model != "whisper-large" {
		t.Fatalf("unexpected whisper config: %+v", cfg.Whisper)
	}
	if cfg.Whisper.Timeout.Std() != 90*time.Second {
		t.Fatalf("unexpected timeout: %v", cfg.Whisper.Timeout)
	}
	if cfg.Retry.Policy != "network" {
		t.Fatalf("unexpected retry policy: %q", cfg.Retry.Policy)
	}
	if cfg.Connectivity.ProbeAddr != "example.com:443" || cfg.Connectivity.ProbeInterval.Std() != 30*time.Second {
		t.Fatalf("unexpected connectivity config: %+v", cfg.Connectivity)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Addr != "127.0.0.1:9999" {
		t.Fatalf("unexpected metrics config: %+v", cfg.Metrics)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	clearVoxnoteEnv(t)

	writeConfigFile(t, home, `
provider: whisper
deepgram:
  api_key: file-key
`)
	t.Setenv("VOXNOTE_PROVIDER", "deepgram")
	t.Setenv("DEEPGRAM_API_KEY", "env-key")
	t.Setenv("VOXNOTE_PROBE_INTERVAL_MS", "2500")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Provider != "deepgram" {
		t.Fatalf("env must override file provider, got %q", cfg.Provider)
	}
	if cfg.Deepgram.APIKey != "env-key" {
		t.Fatalf("env must override file key, got %q", cfg.Deepgram.APIKey)
	}
	if cfg.Connectivity.ProbeInterval.Std() != 2500*time.Millisecond {
		t.Fatalf("unexpected probe interval: %v", cfg.Connectivity.ProbeInterval)
	}
}

func TestLoadConfigPathOverride(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	clearVoxnoteEnv(t)

	alt := filepath.Join(t.TempDir(), "alt.yaml")
	if err := os.WriteFile(alt, []byte("provider: whisper\n"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	t.Setenv("VOXNOTE_CONFIG", alt)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Provider != "whisper" {
		t.Fatalf("expected provider from alternate file, got %q", cfg.Provider)
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	clearVoxnoteEnv(t)
	t.Setenv("VOXNOTE_PROVIDER", "siri")

	if _, err := Load(); err == nil {
		t.Fatalf("expected unknown provider error")
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	clearVoxnoteEnv(t)
	writeConfigFile(t, home, "provider: [broken")

	if _, err := Load(); err == nil {
		t.Fatalf("expected parse error")
	}
}
