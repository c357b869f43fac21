// Package config loads gitscape configuration from a TOML file with
// environment-variable overrides. Environment always wins, so deployments
// can keep secrets out of the config file entirely.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the resolved application configuration.
type Config struct {
	GitHub  GitHub  `toml:"github"`
	OpenAI  OpenAI  `toml:"openai"`
	Server  Server  `toml:"server"`
	Cache   CacheCf `toml:"cache"`
	Archive Archive `toml:"archive"`
}

// GitHub holds commit-source settings.
type GitHub struct {
	Token string `toml:"token"`
}

// OpenAI holds summarizer settings.
type OpenAI struct {
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
	BaseURL string `toml:"base_url"`
}

// Server holds API server settings.
type Server struct {
	Addr string `toml:"addr"`

	// APIKey, when set, is required on every request via the X-API-Key
	// header. Empty disables authentication.
	APIKey string `toml:"api_key"`

	// CORSOrigins lists allowed origins for browser clients.
	CORSOrigins []string `toml:"cors_origins"`
}

// CacheCf holds cache-backend settings.
type CacheCf struct {
	// Backend is "file", "redis", or "none".
	Backend string `toml:"backend"`
	Dir     string `toml:"dir"`
	Redis   string `toml:"redis_url"`
}

// Archive holds summary-archive settings.
type Archive struct {
	// Backend is "file", "mongo", or "none".
	Backend string `toml:"backend"`
	Dir     string `toml:"dir"`
	Mongo   string `toml:"mongo_url"`
}

// DefaultAddr is the API listen address when none is configured.
const DefaultAddr = ":8000"

// DefaultPath returns the default config file location.
func DefaultPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "gitscape", "config.toml")
	}
	return ""
}

// Load reads the config file at path and applies environment overrides.
// A missing file is not an error; overrides still apply to the zero config.
// An empty path uses [DefaultPath].
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path == "" {
		path = DefaultPath()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setFromEnv(&c.GitHub.Token, "GITHUB_TOKEN")
	setFromEnv(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	setFromEnv(&c.OpenAI.Model, "OPENAI_MODEL")
	setFromEnv(&c.OpenAI.BaseURL, "OPENAI_BASE_URL")
	setFromEnv(&c.Server.APIKey, "GITSCAPE_API_KEY")
	setFromEnv(&c.Server.Addr, "GITSCAPE_ADDR")
	setFromEnv(&c.Cache.Redis, "GITSCAPE_REDIS_URL")
	setFromEnv(&c.Archive.Mongo, "GITSCAPE_MONGO_URL")
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "file"
	}
	if c.Archive.Backend == "" {
		c.Archive.Backend = "file"
	}
}

func setFromEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
