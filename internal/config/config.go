// Package config handles loading and managing mboxbrowser configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
)

// IndexConfig controls how MBOX files are indexed.
type IndexConfig struct {
	Cache            bool     `toml:"cache"`             // Persist indexes between runs
	CacheDir         string   `toml:"cache_dir"`         // Default: <home>/cache
	StrictSeparators bool     `toml:"strict_separators"` // Require a date on "From " lines
	SkipMalformed    bool     `toml:"skip_malformed"`    // Skip instead of placeholder
	LabelHeaders     []string `toml:"label_headers"`     // Headers labels are read from
	MaxMessageBytes  int64    `toml:"max_message_bytes"` // Header block limit per message
}

// SearchConfig controls query evaluation.
type SearchConfig struct {
	DefaultLimit int `toml:"default_limit"` // Results returned when no limit is given
	Workers      int `toml:"workers"`       // Concurrent body readers (0 = NumCPU)
}

// ServerConfig holds HTTP API server configuration.
type ServerConfig struct {
	APIPort        int      `toml:"api_port"`         // HTTP server port (default: 8080)
	BindAddr       string   `toml:"bind_addr"`        // Bind address (default: 127.0.0.1)
	APIKey         string   `toml:"api_key"`          // API authentication key
	CORSOrigins    []string `toml:"cors_origins"`     // Allowed CORS origins
	RateLimitRPS   float64  `toml:"rate_limit_rps"`   // Requests per second per client
	RateLimitBurst int      `toml:"rate_limit_burst"` // Burst size per client
}

// IsLoopback reports whether the server binds to a loopback address only.
func (s ServerConfig) IsLoopback() bool {
	switch s.BindAddr {
	case "127.0.0.1", "localhost", "::1":
		return true
	}
	return false
}

// ValidateSecure rejects configurations that expose the API beyond the
// local machine without an API key.
func (s ServerConfig) ValidateSecure() error {
	if !s.IsLoopback() && s.APIKey == "" {
		return fmt.Errorf("bind_addr %q exposes the API without api_key; set [server] api_key or bind to 127.0.0.1", s.BindAddr)
	}
	return nil
}

// Config represents the mboxbrowser configuration.
type Config struct {
	Index  IndexConfig  `toml:"index"`
	Search SearchConfig `toml:"search"`
	Server ServerConfig `toml:"server"`

	// Computed paths (not from config file)
	HomeDir    string `toml:"-"`
	ConfigPath string `toml:"-"`
}

// DefaultHome returns the default mboxbrowser home directory.
// Respects MBOXBROWSER_HOME environment variable.
func DefaultHome() string {
	if h := os.Getenv("MBOXBROWSER_HOME"); h != "" {
		return expandPath(h)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mboxbrowser"
	}
	return filepath.Join(home, ".mboxbrowser")
}

// NewDefaultConfig returns a configuration with default values rooted at
// DefaultHome.
func NewDefaultConfig() *Config {
	return newConfig(DefaultHome())
}

func newConfig(homeDir string) *Config {
	return &Config{
		HomeDir:    homeDir,
		ConfigPath: filepath.Join(homeDir, "config.toml"),
		Index: IndexConfig{
			Cache:           true,
			CacheDir:        filepath.Join(homeDir, "cache"),
			MaxMessageBytes: 128 << 20,
		},
		Search: SearchConfig{
			DefaultLimit: 500,
		},
		Server: ServerConfig{
			APIPort:        8080,
			BindAddr:       "127.0.0.1",
			RateLimitRPS:   20,
			RateLimitBurst: 40,
		},
	}
}

// Load reads the configuration.
//
// path is an explicit config file (--config); it must exist, and the home
// directory becomes its parent. Otherwise homeDir (--home) or DefaultHome is
// used and <home>/config.toml is optional.
func Load(path, homeDir string) (*Config, error) {
	explicit := path != ""
	switch {
	case explicit:
		path = expandPath(path)
		if homeDir == "" {
			homeDir = filepath.Dir(path)
		}
	case homeDir != "":
		homeDir = expandPath(homeDir)
		path = filepath.Join(homeDir, "config.toml")
	default:
		homeDir = DefaultHome()
		path = filepath.Join(homeDir, "config.toml")
	}

	cfg := newConfig(homeDir)
	cfg.ConfigPath = path

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if explicit {
				return nil, fmt.Errorf("config file not found: %s", path)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("stat config: %w", err)
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, decodeError(err)
	}

	cfg.Index.CacheDir = expandPath(cfg.Index.CacheDir)
	if !filepath.IsAbs(cfg.Index.CacheDir) && md.IsDefined("index", "cache_dir") {
		cfg.Index.CacheDir = filepath.Join(filepath.Dir(path), cfg.Index.CacheDir)
	}

	return cfg, nil
}

// decodeError adds a hint for the most common TOML mistake on Windows:
// unescaped backslashes in double-quoted paths.
func decodeError(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "invalid escape") || strings.Contains(msg, "hexadecimal digits") {
		return fmt.Errorf("decode config: %w\n  hint: use forward slashes (C:/Users/me/mail) or single quotes ('C:\\Users\\me\\mail') for Windows paths", err)
	}
	return fmt.Errorf("decode config: %w", err)
}

// expandPath expands a leading ~ to the user's home directory. On Windows,
// surrounding quotes left by CMD are stripped first.
func expandPath(path string) string {
	if runtime.GOOS == "windows" && len(path) >= 2 {
		if (path[0] == '\'' && path[len(path)-1] == '\'') || (path[0] == '"' && path[len(path)-1] == '"') {
			path = path[1 : len(path)-1]
		}
	}
	if path == "" || path[0] != '~' {
		return path
	}
	if len(path) > 1 && path[1] != '/' && path[1] != filepath.Separator {
		// ~user is not supported
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
