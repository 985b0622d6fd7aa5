// Package config loads YAML configuration from ~/.quill/config.yaml
// (overridable via QUILL_CONFIG). A default file is written on first run so
// users have something to edit.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/quillab/quill"
)

// Config holds every user-tunable setting.
type Config struct {
	// GeminiAPIKey authenticates completion requests. The GEMINI_API_KEY
	// environment variable takes precedence.
	GeminiAPIKey string `yaml:"gemini_api_key"`
	// Model names the Gemini model; empty selects the built-in default.
	Model string `yaml:"model"`

	// GateURL points at the usage gate service. Empty disables gating.
	GateURL   string `yaml:"gate_url"`
	GateToken string `yaml:"gate_token"`

	DefaultMode string `yaml:"default_mode"`
	DefaultTone string `yaml:"default_tone"`
	AutoInsert  bool   `yaml:"auto_insert"`
	Demo        bool   `yaml:"demo"`

	// ExcludedApps are glob patterns matched against the focused app's name
	// and bundle identifier. Matching apps are never captured.
	ExcludedApps []string `yaml:"excluded_apps"`

	// HistoryPath locates the run history database.
	HistoryPath string `yaml:"history_path"`
}

// Mode returns the configured default mode.
func (c Config) Mode() quill.Mode {
	if c.DefaultMode == "" {
		return quill.ModeCompose
	}
	return quill.Mode(c.DefaultMode)
}

// Tone returns the configured default tone.
func (c Config) Tone() quill.Tone {
	return quill.Tone(c.DefaultTone)
}

// APIKey resolves the Gemini credential, preferring the environment.
func (c Config) APIKey() string {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		return key
	}
	return c.GeminiAPIKey
}

// Load reads the config file at path, or the default location when path is
// empty. A missing file is created with defaults rather than treated as an
// error.
func Load(path string) (Config, error) {
	path = resolvePath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Config{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := Default()
			if err := writeDefault(path, cfg); err != nil {
				return Config{}, err
			}
			return cfg, nil
		}
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return hydrateDefaults(cfg), nil
}

// Default returns the configuration written on first run.
func Default() Config {
	return Config{
		DefaultMode: string(quill.ModeCompose),
		AutoInsert:  true,
		ExcludedApps: []string{
			"1password*",
			"*keychain*",
			"Bitwarden",
		},
		HistoryPath: filepath.Join(userHomeDir(), ".quill", "history.db"),
	}
}

func hydrateDefaults(cfg Config) Config {
	if cfg.DefaultMode == "" {
		cfg.DefaultMode = string(quill.ModeCompose)
	}
	if cfg.HistoryPath == "" {
		cfg.HistoryPath = filepath.Join(userHomeDir(), ".quill", "history.db")
	}
	return cfg
}

func resolvePath(path string) string {
	if path != "" {
		return expandPath(path)
	}
	if custom := os.Getenv("QUILL_CONFIG"); custom != "" {
		return expandPath(custom)
	}
	return filepath.Join(userHomeDir(), ".quill", "config.yaml")
}

func writeDefault(path string, cfg Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

func expandPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if len(path) > 1 && path[:2] == "~/" {
		return filepath.Join(userHomeDir(), path[2:])
	}
	return filepath.Clean(path)
}

func userHomeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}
