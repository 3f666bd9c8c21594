// Package config loads client configuration from a TOML file with
// environment variable overrides.
//
// Lookup order, lowest to highest precedence:
//   - built-in defaults
//   - ~/.chatterm/config.toml
//   - CHATTERM_API_URL / CHATTERM_SOCKET_URL
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	// DefaultAPIURL targets a locally running server (cmd/server).
	DefaultAPIURL = "http://localhost:9876"

	configDirName  = ".chatterm"
	configFileName = "config.toml"
)

// Config holds everything the client needs to reach its backend.
type Config struct {
	// APIURL is the base of the REST surface; /api/v1 is appended by the
	// gateway.
	APIURL string `toml:"api_url"`

	// SocketURL overrides the live-update endpoint. Empty means "derive
	// from APIURL": same host, ws/wss scheme, /ws path.
	SocketURL string `toml:"socket_url"`
}

// Dir returns the per-user directory holding config and session files,
// creating it if needed.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	dir := filepath.Join(home, configDirName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}
	return dir, nil
}

// Load reads the config file if present, applies env overrides and
// validates the result. A missing file is not an error.
func Load() (*Config, error) {
	cfg := &Config{APIURL: DefaultAPIURL}

	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, configFileName)
	if _, err := toml.DecodeFile(path, cfg); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if v := os.Getenv("CHATTERM_API_URL"); v != "" {
		cfg.APIURL = v
	}
	if v := os.Getenv("CHATTERM_SOCKET_URL"); v != "" {
		cfg.SocketURL = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configured endpoints are well-formed URLs with
// the expected schemes.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid api_url %q", c.APIURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api_url must be http or https, got %q", u.Scheme)
	}
	if c.SocketURL != "" {
		su, err := url.Parse(c.SocketURL)
		if err != nil || su.Scheme == "" || su.Host == "" {
			return fmt.Errorf("invalid socket_url %q", c.SocketURL)
		}
		if su.Scheme != "ws" && su.Scheme != "wss" {
			return fmt.Errorf("socket_url must be ws or wss, got %q", su.Scheme)
		}
	}
	return nil
}

// ResolveSocketURL returns the live-update endpoint, deriving it from the
// API endpoint when no explicit override is configured.
func (c *Config) ResolveSocketURL() string {
	if c.SocketURL != "" {
		return c.SocketURL
	}
	ws := c.APIURL
	switch {
	case strings.HasPrefix(ws, "https://"):
		ws = "wss://" + strings.TrimPrefix(ws, "https://")
	case strings.HasPrefix(ws, "http://"):
		ws = "ws://" + strings.TrimPrefix(ws, "http://")
	}
	return strings.TrimRight(ws, "/") + "/ws"
}
