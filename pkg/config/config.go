// Package config provides application configuration for gemweb, read from
// environment variables with an optional YAML selector-override file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all process configuration.
type Config struct {
	// Addr is the HTTP listen address, e.g. ":8080".
	Addr string

	// StateDir holds the browser profile, login flag, and transcript logs.
	StateDir string

	// TargetURL is the chat UI this process automates.
	TargetURL string

	// Headless controls the normal launch mode. Login always runs headed.
	Headless bool

	// ReplyTimeout bounds one submit/await cycle unless the request
	// overrides it.
	ReplyTimeout time.Duration

	// LoginWait bounds the interactive login flow.
	LoginWait time.Duration

	// QueueMaxWait bounds how long queued requests are held while a
	// re-login is in progress before failing.
	QueueMaxWait time.Duration

	// PollInterval is the reply stabilization polling cadence.
	PollInterval time.Duration

	// StablePolls is the number of consecutive unchanged polls after which
	// a reply is considered finished.
	StablePolls int

	// PromptCharLimit rejects conversations that flatten beyond the UI's
	// input capacity.
	PromptCharLimit int

	// SelectorFile optionally points at a YAML file overriding the DOM
	// selectors (see selectors.go).
	SelectorFile string

	// TranscriptLog enables per-run exchange logging under StateDir.
	TranscriptLog bool
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	stateDir := getEnv("GEMWEB_STATE_DIR", "")
	if stateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		stateDir = filepath.Join(home, ".gemweb")
	}

	cfg := &Config{
		Addr:            getEnv("GEMWEB_ADDR", ":8080"),
		StateDir:        stateDir,
		TargetURL:       getEnv("GEMWEB_TARGET_URL", "https://gemini.google.com/app"),
		Headless:        getEnvBool("GEMWEB_HEADLESS", true),
		ReplyTimeout:    getEnvDuration("GEMWEB_REPLY_TIMEOUT", 5*time.Minute),
		LoginWait:       getEnvDuration("GEMWEB_LOGIN_WAIT", 5*time.Minute),
		QueueMaxWait:    getEnvDuration("GEMWEB_QUEUE_MAX_WAIT", 2*time.Minute),
		PollInterval:    getEnvDuration("GEMWEB_POLL_INTERVAL", 300*time.Millisecond),
		StablePolls:     getEnvInt("GEMWEB_STABLE_POLLS", 3),
		PromptCharLimit: getEnvInt("GEMWEB_PROMPT_CHAR_LIMIT", 200_000),
		SelectorFile:    getEnv("GEMWEB_SELECTOR_FILE", ""),
		TranscriptLog:   getEnvBool("GEMWEB_TRANSCRIPT_LOG", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required fields hold usable values.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("GEMWEB_ADDR cannot be empty")
	}
	if c.TargetURL == "" {
		return fmt.Errorf("GEMWEB_TARGET_URL cannot be empty")
	}
	if !strings.HasPrefix(c.TargetURL, "http://") && !strings.HasPrefix(c.TargetURL, "https://") {
		return fmt.Errorf("GEMWEB_TARGET_URL must be an http(s) URL, got %q", c.TargetURL)
	}
	if c.ReplyTimeout <= 0 {
		return fmt.Errorf("GEMWEB_REPLY_TIMEOUT must be > 0")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("GEMWEB_POLL_INTERVAL must be > 0")
	}
	if c.StablePolls <= 0 {
		return fmt.Errorf("GEMWEB_STABLE_POLLS must be > 0")
	}
	if c.PromptCharLimit <= 0 {
		return fmt.Errorf("GEMWEB_PROMPT_CHAR_LIMIT must be > 0")
	}
	return nil
}

// ProfileDir returns the browser profile directory under the state dir.
func (c *Config) ProfileDir() string {
	return filepath.Join(c.StateDir, "chrome-profile")
}

// LogDir returns the transcript log directory under the state dir.
func (c *Config) LogDir() string {
	return filepath.Join(c.StateDir, "logs")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
