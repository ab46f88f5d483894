// Package config builds the process configuration from the environment
// once at startup. There is no runtime reconfiguration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// defaultOperators may use the kill command unless PAPERBOT_OPERATORS
// overrides the list.
var defaultOperators = []string{"tahonermann", "sbuettner"}

// Config is passed by pointer to every component that needs it.
type Config struct {
	// Document feed.
	FeedURL      string
	FeedCacheDir string

	// Chat transport.
	MattermostURL    string
	MattermostScheme string
	MattermostPort   int
	MattermostToken  string

	// Cursor persistence.
	CursorDBPath string

	// Usernames allowed to terminate the bot.
	Operators []string

	// zap level name: debug, info, warn, error.
	LogLevel string
}

// FromEnv reads and validates the configuration.
func FromEnv() (*Config, error) {
	cfg := &Config{
		FeedURL:          os.Getenv("PAPER_INDEX_URL"),
		FeedCacheDir:     envOr("PAPER_INDEX_CACHE", "./data/feed-cache"),
		MattermostURL:    os.Getenv("MATTERMOST_URL"),
		MattermostScheme: envOr("MATTERMOST_SCHEME", "https"),
		MattermostToken:  os.Getenv("MATTERMOST_TOKEN"),
		CursorDBPath:     envOr("PAPERBOT_CURSOR_DB", "./data/cursors.db"),
		Operators:        defaultOperators,
		LogLevel:         envOr("PAPERBOT_LOG_LEVEL", "info"),
	}

	port := envOr("MATTERMOST_PORT", "443")
	p, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("MATTERMOST_PORT: %w", err)
	}
	cfg.MattermostPort = p

	if ops := os.Getenv("PAPERBOT_OPERATORS"); ops != "" {
		cfg.Operators = nil
		for _, op := range strings.Split(ops, ",") {
			if op = strings.TrimSpace(op); op != "" {
				cfg.Operators = append(cfg.Operators, op)
			}
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.FeedURL == "" {
		return fmt.Errorf("PAPER_INDEX_URL is required")
	}
	if c.MattermostURL == "" {
		return fmt.Errorf("MATTERMOST_URL is required")
	}
	if c.MattermostToken == "" {
		return fmt.Errorf("MATTERMOST_TOKEN is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
