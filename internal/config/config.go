package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/marcelocantos/codebook/internal/chat"
)

// Config holds the global codebook configuration.
type Config struct {
	// TempPath is the root under which generated programs are written.
	TempPath  string                    `yaml:"temp_path"`
	StateDir  string                    `yaml:"state_dir"`
	Chat      ChatConfig                `yaml:"chat"`
	Audit     AuditConfig               `yaml:"audit"`
	Log       LogConfig                 `yaml:"log"`
	Languages map[string]LanguageConfig `yaml:"languages"`
}

// ChatConfig selects the assistant behind chat cells.
type ChatConfig struct {
	Provider string   `yaml:"provider"` // openai, gemini or command
	Model    string   `yaml:"model"`
	URL      string   `yaml:"url"`
	APIKey   string   `yaml:"api_key"`
	OrgID    string   `yaml:"org_id"`
	Timeout  string   `yaml:"timeout"`
	Command  []string `yaml:"command"`
}

// DefaultChatTimeout is used when no timeout is configured.
const DefaultChatTimeout = 60 * time.Second

// TimeoutDuration parses the configured timeout or returns the default.
func (c *ChatConfig) TimeoutDuration() time.Duration {
	if c.Timeout != "" {
		if d, err := time.ParseDuration(c.Timeout); err == nil {
			return d
		}
	}
	return DefaultChatTimeout
}

// Options converts the section for chat.New.
func (c *ChatConfig) Options() chat.Options {
	return chat.Options{
		Provider: c.Provider,
		Model:    c.Model,
		URL:      c.URL,
		APIKey:   c.APIKey,
		OrgID:    c.OrgID,
		Timeout:  c.TimeoutDuration(),
		Command:  c.Command,
	}
}

// AuditConfig controls the execution log.
type AuditConfig struct {
	Path    string `yaml:"path"`
	Enabled bool   `yaml:"enabled"`
}

// LogConfig controls the binary's logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// LanguageConfig overrides a language's toolchain.
type LanguageConfig struct {
	Binary string `yaml:"binary"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	share := filepath.Join(home, ".local", "share", "codebook")
	return &Config{
		TempPath: filepath.Join(os.TempDir(), "codebook"),
		StateDir: filepath.Join(share, "state"),
		Audit: AuditConfig{
			Path:    filepath.Join(share, "audit.jsonl"),
			Enabled: true,
		},
		Log: LogConfig{Level: "warn"},
	}
}

// ConfigPath returns the standard config file path.
func ConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "codebook", "config.yaml")
}

// Load reads the standard config file and a .env file in the working
// directory. If neither exists the defaults apply.
func Load() (*Config, error) {
	return LoadFrom(ConfigPath(), ".env")
}

// LoadFrom reads the config at path, then applies environment overrides.
// Variables from dotenv are used only where the process environment does
// not set them. Missing files are not errors.
func LoadFrom(path, dotenv string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("read config: %w", err)
	}

	getenv, err := envLookup(dotenv)
	if err != nil {
		return nil, err
	}
	cfg.applyEnv(getenv)

	cfg.TempPath = expandHome(cfg.TempPath)
	cfg.StateDir = expandHome(cfg.StateDir)
	cfg.Audit.Path = expandHome(cfg.Audit.Path)
	return cfg, nil
}

func envLookup(dotenv string) (func(string) string, error) {
	vals := map[string]string{}
	if dotenv != "" {
		m, err := godotenv.Read(dotenv)
		switch {
		case err == nil:
			vals = m
		case !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("read %s: %w", dotenv, err)
		}
	}
	return func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return vals[key]
	}, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.TempPath, "CODEBOOK_TEMP_PATH")
	set(&c.Chat.Provider, "CODEBOOK_CHAT_PROVIDER")

	switch strings.ToLower(c.Chat.Provider) {
	case "gemini":
		set(&c.Chat.APIKey, "GEMINI_API_KEY")
	case "", "openai":
		set(&c.Chat.APIKey, "OPENAI_API_KEY")
		set(&c.Chat.OrgID, "OPENAI_ORG_ID")
		set(&c.Chat.Model, "OPENAI_MODEL")
	}
}

// Binaries returns the configured toolchain overrides by language id.
func (c *Config) Binaries() map[string]string {
	out := make(map[string]string, len(c.Languages))
	for lang, lc := range c.Languages {
		if lc.Binary != "" {
			out[strings.ToLower(lang)] = expandHome(lc.Binary)
		}
	}
	return out
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, p[1:])
	}
	return p
}
