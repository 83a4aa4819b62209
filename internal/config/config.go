// Package config resolves server settings from defaults, an optional TOML
// file, TODOLISTS_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultAddr       = "127.0.0.1:4567"
	DefaultStore      = "memory"
	DefaultSessionTTL = "336h"
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "text"
)

type Config struct {
	Addr          string `toml:"addr"`
	Store         string `toml:"store"` // memory|sqlite
	DBPath        string `toml:"db_path"`
	SessionTTL    string `toml:"session_ttl"`
	SecretFile    string `toml:"secret_file"`
	SecureCookies bool   `toml:"secure_cookies"`
	CSRF          bool   `toml:"csrf"`
	Compress      bool   `toml:"compress"`
	Markdown      bool   `toml:"markdown"`
	LogLevel      string `toml:"log_level"`
	LogFormat     string `toml:"log_format"`
}

func Default() Config {
	return Config{
		Addr:       DefaultAddr,
		Store:      DefaultStore,
		SessionTTL: DefaultSessionTTL,
		CSRF:       true,
		Compress:   true,
		LogLevel:   DefaultLogLevel,
		LogFormat:  DefaultLogFormat,
	}
}

// DataDir is where the sqlite file and the cookie secret live by default.
func DataDir() (string, error) {
	if v := strings.TrimSpace(os.Getenv("TODOLISTS_HOME")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".todolists"), nil
}

// LoadFile decodes path over cfg. Keys absent from the file keep their value.
func LoadFile(cfg *Config, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("config: %s: %w", path, err)
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		keys := make([]string, 0, len(undec))
		for _, k := range undec {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("config: %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// ApplyEnv overrides cfg from TODOLISTS_* variables.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) error {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		*dst = b
		return nil
	}

	str("TODOLISTS_ADDR", &cfg.Addr)
	str("TODOLISTS_STORE", &cfg.Store)
	str("TODOLISTS_DB", &cfg.DBPath)
	str("TODOLISTS_SESSION_TTL", &cfg.SessionTTL)
	str("TODOLISTS_SECRET_FILE", &cfg.SecretFile)
	str("TODOLISTS_LOG_LEVEL", &cfg.LogLevel)
	str("TODOLISTS_LOG_FORMAT", &cfg.LogFormat)
	return errors.Join(
		boolean("TODOLISTS_SECURE_COOKIES", &cfg.SecureCookies),
		boolean("TODOLISTS_CSRF", &cfg.CSRF),
		boolean("TODOLISTS_COMPRESS", &cfg.Compress),
		boolean("TODOLISTS_MARKDOWN", &cfg.Markdown),
	)
}

// Finalize fills derived paths and validates the result.
func (c *Config) Finalize() error {
	c.Addr = strings.TrimSpace(c.Addr)
	c.Store = strings.ToLower(strings.TrimSpace(c.Store))
	if c.Addr == "" {
		return errors.New("config: addr is empty")
	}
	if c.Store != "memory" && c.Store != "sqlite" {
		return fmt.Errorf("config: invalid store %q (expected memory|sqlite)", c.Store)
	}
	if _, err := c.TTL(); err != nil {
		return err
	}
	if c.Store == "sqlite" && strings.TrimSpace(c.DBPath) == "" {
		dir, err := DataDir()
		if err != nil {
			return err
		}
		c.DBPath = filepath.Join(dir, "sessions.sqlite")
	}
	if strings.TrimSpace(c.SecretFile) == "" {
		dir, err := DataDir()
		if err != nil {
			return err
		}
		c.SecretFile = filepath.Join(dir, "secret.key")
	}
	return nil
}

func (c Config) TTL() (time.Duration, error) {
	s := strings.TrimSpace(c.SessionTTL)
	if s == "" {
		s = DefaultSessionTTL
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("config: session_ttl: %w", err)
	}
	if d <= 0 {
		return 0, errors.New("config: session_ttl must be positive")
	}
	return d, nil
}
