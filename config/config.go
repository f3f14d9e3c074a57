package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type ProxyConfig struct {
	Listen         string `toml:"listen"`
	Upstream       string `toml:"upstream"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Timeout returns the upstream timeout of the forwarding proxy.
func (p ProxyConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// FileConfig mirrors config.toml.
type FileConfig struct {
	DataDirectory         string      `toml:"data_directory"`
	StorageBackend        string      `toml:"storage_backend"`
	DefaultSystemRole     string      `toml:"default_system_role,omitempty"`
	RequestTimeoutSeconds int         `toml:"request_timeout_seconds"`
	Proxy                 ProxyConfig `toml:"proxy"`
}

type Config struct {
	DataDirectory     string
	StorageBackend    string
	DefaultSystemRole string
	RequestTimeout    time.Duration
	Proxy             ProxyConfig

	// Session-only overrides of the persisted settings record.
	APIKeyOverride  string
	APIBaseOverride string
	ModelOverride   string

	KeyBindings *KeyBindingsConfig
}

var Debug = false

// DebugLog never is nil. It discards everything until InitDebugLog enables it.
var DebugLog = slog.New(slog.NewTextHandler(io.Discard, nil))

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

func (c *Config) applyEnvOverrides() {
	if dataDir := os.Getenv("SEEKCHAT_DATA_DIR"); dataDir != "" {
		c.DataDirectory = dataDir
	}
	if backend := os.Getenv("SEEKCHAT_STORAGE"); backend != "" {
		c.StorageBackend = backend
	}
	if key := os.Getenv("SEEKCHAT_API_KEY"); key != "" {
		c.APIKeyOverride = key
	}
	if base := os.Getenv("SEEKCHAT_API_BASE"); base != "" {
		c.APIBaseOverride = base
	}
	if model := os.Getenv("SEEKCHAT_MODEL"); model != "" {
		c.ModelOverride = model
	}
	if key := os.Getenv("SEEKCHAT_PROXY_API_KEY"); key != "" {
		c.Proxy.APIKey = key
	}
	if timeout := os.Getenv("SEEKCHAT_REQUEST_TIMEOUT"); timeout != "" {
		if secs, err := strconv.Atoi(timeout); err == nil && secs >= 0 {
			c.RequestTimeout = time.Duration(secs) * time.Second
		}
	}
}

func CheckDebug() bool {
	debug := os.Getenv("SEEKCHAT_DEBUG")
	return debug == "true" || debug == "1"
}

// InitDebugLog points DebugLog at <dataDir>/debug.log when SEEKCHAT_DEBUG is set.
// The returned function closes the log file.
func InitDebugLog(dataDir string) func() {
	if !CheckDebug() {
		return func() {}
	}

	Debug = true
	logPath := filepath.Join(dataDir, "debug.log")

	// 0600: prompts and responses end up in here
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not open debug log at %s: %v\n", logPath, err)
		return func() {}
	}

	DebugLog = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: true,
	}))
	DebugLog.Info("debug logging started", "path", logPath, "SEEKCHAT_DEBUG", os.Getenv("SEEKCHAT_DEBUG"))

	return func() {
		_ = f.Close()
	}
}

// loadDotEnv loads ./.env when present. Variables already set in the
// environment win.
func loadDotEnv() {
	if !FileExists(".env") {
		return
	}
	if err := godotenv.Load(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env: %v\n", err)
	}
}

func fromFileConfig(fc *FileConfig) *Config {
	return &Config{
		DataDirectory:     fc.DataDirectory,
		StorageBackend:    fc.StorageBackend,
		DefaultSystemRole: fc.DefaultSystemRole,
		RequestTimeout:    time.Duration(fc.RequestTimeoutSeconds) * time.Second,
		Proxy:             fc.Proxy,
	}
}

func Load() (*Config, error) {
	loadDotEnv()

	fileCfg, err := LoadFileConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg := fromFileConfig(fileCfg)
	cfg.applyEnvOverrides()

	if cfg.DataDirectory == "" {
		cfg.DataDirectory = GetDefaultDataDir()
	}
	if cfg.StorageBackend == "" {
		cfg.StorageBackend = BackendFile
	}
	if cfg.StorageBackend != BackendFile && cfg.StorageBackend != BackendSQLite {
		return nil, fmt.Errorf("unknown storage backend: %q", cfg.StorageBackend)
	}

	dataDir := cfg.DataDir()
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	if err := EnsureDataDirPermissions(dataDir); err != nil {
		return nil, fmt.Errorf("failed to set data directory permissions: %w", err)
	}

	keys, err := LoadKeybindings(GetConfigDir())
	if err != nil {
		return nil, err
	}
	cfg.KeyBindings = keys

	return cfg, nil
}
