package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"time"

	"inbox/internal/models"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerURL     string
	CacheFile     string
	CacheCodec    string
	UserID        string
	UserName      string
	IsAdmin       bool
	Mode          string
	TypingTimeout time.Duration
	DialTimeout   time.Duration
	LogFile       string
	LogFormat     string
	LogLevel      string
	RelayAddr     string
	AdminAddr     string
	RelayRate     float64
	RelayBurst    int
}

// LoadEnvFile merges a dotenv file into the environment. Variables already
// set win. A missing file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func Load(requireIdentity bool) (*Config, error) {
	typingTimeout, err := time.ParseDuration(getEnv("INBOX_TYPING_TIMEOUT", "3s"))
	if err != nil {
		return nil, fmt.Errorf("INBOX_TYPING_TIMEOUT: %w", err)
	}
	dialTimeout, err := time.ParseDuration(getEnv("INBOX_DIAL_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("INBOX_DIAL_TIMEOUT: %w", err)
	}
	isAdmin, err := strconv.ParseBool(getEnv("INBOX_IS_ADMIN", "false"))
	if err != nil {
		return nil, fmt.Errorf("INBOX_IS_ADMIN: %w", err)
	}
	relayRate, err := strconv.ParseFloat(getEnv("RELAY_RATE", "20"), 64)
	if err != nil {
		return nil, fmt.Errorf("RELAY_RATE: %w", err)
	}
	relayBurst, err := strconv.Atoi(getEnv("RELAY_BURST", "40"))
	if err != nil {
		return nil, fmt.Errorf("RELAY_BURST: %w", err)
	}

	cfg := &Config{
		ServerURL:     getEnv("INBOX_SERVER_URL", "wss://chat.example.com/socket"),
		CacheFile:     getEnv("INBOX_CACHE_FILE", "inbox.db"),
		CacheCodec:    getEnv("INBOX_CACHE_CODEC", "json"),
		UserID:        os.Getenv("INBOX_USER_ID"),
		UserName:      os.Getenv("INBOX_USER_NAME"),
		IsAdmin:       isAdmin,
		Mode:          getEnv("INBOX_MODE", "page"),
		TypingTimeout: typingTimeout,
		DialTimeout:   dialTimeout,
		LogFile:       getEnv("INBOX_LOG_FILE", "inbox.log"),
		LogFormat:     getEnv("LOG_FORMAT", "text"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		RelayAddr:     getEnv("RELAY_ADDR", ":8080"),
		AdminAddr:     getEnv("RELAY_ADMIN_ADDR", "localhost:8081"),
		RelayRate:     relayRate,
		RelayBurst:    relayBurst,
	}

	if err := cfg.Validate(requireIdentity); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration. The identity is only needed by
// commands that connect.
func (c *Config) Validate(requireIdentity bool) error {
	if requireIdentity {
		if c.UserID == "" {
			return fmt.Errorf("INBOX_USER_ID is required")
		}
		if c.UserName == "" {
			return fmt.Errorf("INBOX_USER_NAME is required")
		}
		u, err := url.Parse(c.ServerURL)
		if err != nil {
			return fmt.Errorf("INBOX_SERVER_URL: %w", err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return fmt.Errorf("INBOX_SERVER_URL must use ws or wss, got %q", u.Scheme)
		}
	}

	switch c.CacheCodec {
	case "json", "msgpack":
	default:
		return fmt.Errorf("INBOX_CACHE_CODEC must be json or msgpack, got %q", c.CacheCodec)
	}

	switch c.Mode {
	case "page", "widget":
	default:
		return fmt.Errorf("INBOX_MODE must be page or widget, got %q", c.Mode)
	}

	if c.TypingTimeout <= 0 {
		return fmt.Errorf("INBOX_TYPING_TIMEOUT must be greater than 0")
	}

	if c.DialTimeout <= 0 {
		return fmt.Errorf("INBOX_DIAL_TIMEOUT must be greater than 0")
	}

	if c.RelayRate <= 0 || c.RelayBurst <= 0 {
		return fmt.Errorf("RELAY_RATE and RELAY_BURST must be greater than 0")
	}

	return nil
}

func (c *Config) Identity() models.Identity {
	return models.Identity{
		ID:      c.UserID,
		Name:    c.UserName,
		IsAdmin: c.IsAdmin,
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
