package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("MBOXBROWSER_HOME", tmpDir)

	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := &Config{
		HomeDir:    tmpDir,
		ConfigPath: filepath.Join(tmpDir, "config.toml"),
		Index: IndexConfig{
			Cache:           true,
			CacheDir:        filepath.Join(tmpDir, "cache"),
			MaxMessageBytes: 128 << 20,
		},
		Search: SearchConfig{DefaultLimit: 500},
		Server: ServerConfig{
			APIPort:        8080,
			BindAddr:       "127.0.0.1",
			RateLimitRPS:   20,
			RateLimitBurst: 40,
		},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadWithConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("MBOXBROWSER_HOME", tmpDir)

	configContent := `
[index]
cache = false
strict_separators = true
skip_malformed = true
label_headers = ["X-Gmail-Labels", "X-Folder"]

[search]
default_limit = 50
workers = 3

[server]
api_port = 9090
api_key = "test-secret-key"
cors_origins = ["http://localhost:5173"]
`
	if err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(configContent), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Index.Cache {
		t.Error("Index.Cache = true, want false")
	}
	if !cfg.Index.StrictSeparators || !cfg.Index.SkipMalformed {
		t.Errorf("Index = %+v", cfg.Index)
	}
	if diff := cmp.Diff([]string{"X-Gmail-Labels", "X-Folder"}, cfg.Index.LabelHeaders); diff != "" {
		t.Errorf("LabelHeaders mismatch (-want +got):\n%s", diff)
	}
	if cfg.Search.DefaultLimit != 50 || cfg.Search.Workers != 3 {
		t.Errorf("Search = %+v", cfg.Search)
	}
	if cfg.Server.APIPort != 9090 || cfg.Server.APIKey != "test-secret-key" {
		t.Errorf("Server = %+v", cfg.Server)
	}
	// Unset keys keep their defaults.
	if cfg.Server.BindAddr != "127.0.0.1" || cfg.Index.MaxMessageBytes != 128<<20 {
		t.Errorf("defaults lost: bind=%q max=%d", cfg.Server.BindAddr, cfg.Index.MaxMessageBytes)
	}
}

func TestLoadExplicitPathNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.toml", "")
	if err == nil {
		t.Fatal("Load with explicit nonexistent path should return error")
	}
	if got := err.Error(); !strings.Contains(got, "config file not found") {
		t.Errorf("error = %q, want it to contain %q", got, "config file not found")
	}
}

func TestLoadExplicitPathDerivedHomeDir(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")
	if err := os.WriteFile(configPath, []byte("[search]\nworkers = 2\n"), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(configPath, "")
	if err != nil {
		t.Fatalf("Load(%q) failed: %v", configPath, err)
	}
	if cfg.HomeDir != tmpDir {
		t.Errorf("HomeDir = %q, want %q", cfg.HomeDir, tmpDir)
	}
	if want := filepath.Join(tmpDir, "cache"); cfg.Index.CacheDir != want {
		t.Errorf("Index.CacheDir = %q, want %q", cfg.Index.CacheDir, want)
	}
}

func TestLoadRelativeCacheDir(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")
	if err := os.WriteFile(configPath, []byte("[index]\ncache_dir = \"idx\"\n"), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(configPath, "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if want := filepath.Join(tmpDir, "idx"); cfg.Index.CacheDir != want {
		t.Errorf("Index.CacheDir = %q, want %q", cfg.Index.CacheDir, want)
	}
}

func TestLoadWithHomeDir(t *testing.T) {
	homeDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(homeDir, "config.toml"), []byte("[server]\napi_port = 7000\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("", homeDir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HomeDir != homeDir {
		t.Errorf("HomeDir = %q, want %q", cfg.HomeDir, homeDir)
	}
	if cfg.Server.APIPort != 7000 {
		t.Errorf("Server.APIPort = %d, want 7000", cfg.Server.APIPort)
	}
}

func TestLoadBackslashErrorHint(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("MBOXBROWSER_HOME", tmpDir)

	content := "[index]\ncache_dir = \"C:\\Games\\mboxbrowser\"\n"
	if err := os.WriteFile(filepath.Join(tmpDir, "config.toml"), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	_, err := Load("", "")
	if err == nil {
		t.Fatal("Load should fail on TOML backslash error")
	}
	for _, want := range []string{"hint:", "forward slashes", "single quotes"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should contain %q, got: %s", want, err)
		}
	}
}

func TestServerConfigValidateSecure(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ServerConfig
		wantErr bool
	}{
		{"loopback without key", ServerConfig{BindAddr: "127.0.0.1"}, false},
		{"localhost without key", ServerConfig{BindAddr: "localhost"}, false},
		{"all interfaces without key", ServerConfig{BindAddr: "0.0.0.0"}, true},
		{"all interfaces with key", ServerConfig{BindAddr: "0.0.0.0", APIKey: "k"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.ValidateSecure()
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSecure() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("failed to get user home dir: %v", err)
	}

	tests := []struct {
		name     string
		input    string
		expected string
		unixOnly bool
	}{
		{"empty string", "", "", false},
		{"just tilde", "~", home, false},
		{"tilde with slash and path", "~/foo", filepath.Join(home, "foo"), false},
		{"tilde user notation not expanded", "~user", "~user", false},
		{"nested path after tilde", "~/foo/bar/baz", filepath.Join(home, "foo/bar/baz"), false},
		{"relative path unchanged", "relative/path", "relative/path", false},
		{"absolute path unchanged", "/var/mail/inbox", "/var/mail/inbox", true},
		{"tilde in middle not expanded", "/home/~user/foo", "/home/~user/foo", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.unixOnly && runtime.GOOS == "windows" {
				t.Skip("skipping Unix-specific path test on Windows")
			}
			if got := expandPath(tt.input); got != tt.expected {
				t.Errorf("expandPath(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
