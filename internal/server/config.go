package server

import (
	"fmt"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
)

// ChatMode selects the broadcast scope model.
type ChatMode string

const (
	// ModeGlobal runs a single process-wide conversation: history is pushed
	// on connect and every broadcast targets all registered connections.
	ModeGlobal ChatMode = "global"
	// ModeConversations scopes history and broadcasts to the conversation a
	// connection has joined.
	ModeConversations ChatMode = "conversations"
)

// StoreBackend selects the message store implementation.
type StoreBackend string

const (
	BackendMemory StoreBackend = "memory"
	BackendBadger StoreBackend = "badger"
)

// RateLimitConfig defines per-connection inbound frame throttling.
type RateLimitConfig struct {
	Burst          int           `env:"RATE_LIMIT_BURST,default=5"`
	RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL,default=1s"`
}

// Config holds the runtime settings of the service.
//
// ALLOWED_ORIGINS is read as one comma-separated string and split during
// sanitize: go-env only splits slice fields on "|", and a comma cannot be
// expressed as a separator tag option since the tag itself is comma-delimited.
type Config struct {
	Port            string        `env:"SERVER_PORT,default=:8080"`
	Origins         string        `env:"ALLOWED_ORIGINS"`
	AllowedOrigins  []string
	MaxMessageSize  int64         `env:"MAX_MESSAGE_SIZE,default=4096"`
	Mode            ChatMode      `env:"CHAT_MODE,default=conversations"`
	Backend         StoreBackend  `env:"STORE_BACKEND,default=memory"`
	BadgerPath      string        `env:"BADGER_PATH,default=data/messages"`
	LogLevel        string        `env:"LOG_LEVEL,default=info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	RateLimit       RateLimitConfig

	originSet       map[string]struct{}
	allowAllOrigins bool
}

// LoadConfig reads the configuration from the environment, applying defaults
// and sanitizing out-of-range values.
func LoadConfig() (*Config, error) {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.sanitize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// NewConfig returns a Config populated with defaults, without consulting the
// environment. Used by tests and as a baseline for embedding callers.
func NewConfig() *Config {
	cfg := &Config{
		Port:            ":8080",
		AllowedOrigins:  []string{"http://localhost:8080"},
		MaxMessageSize:  4096,
		Mode:            ModeConversations,
		Backend:         BackendMemory,
		BadgerPath:      "data/messages",
		LogLevel:        "info",
		ShutdownTimeout: 10 * time.Second,
		RateLimit: RateLimitConfig{
			Burst:          5,
			RefillInterval: time.Second,
		},
	}
	// Defaults are always valid.
	_ = cfg.sanitize()
	return cfg
}

func (c *Config) sanitize() error {
	if c.Port == "" {
		c.Port = ":8080"
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 4096
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 5
	}
	if c.RateLimit.RefillInterval <= 0 {
		c.RateLimit.RefillInterval = time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}

	switch c.Mode {
	case ModeGlobal, ModeConversations:
	case "":
		c.Mode = ModeConversations
	default:
		return fmt.Errorf("load config: unknown chat mode %q", c.Mode)
	}

	switch c.Backend {
	case BackendMemory, BackendBadger:
	case "":
		c.Backend = BackendMemory
	default:
		return fmt.Errorf("load config: unknown store backend %q", c.Backend)
	}

	if c.Origins != "" {
		c.AllowedOrigins = strings.Split(c.Origins, ",")
	}
	normalized, allowAll := normalizeOrigins(c.AllowedOrigins)
	c.AllowedOrigins = normalized
	c.allowAllOrigins = allowAll
	c.originSet = make(map[string]struct{}, len(normalized))
	for _, origin := range normalized {
		c.originSet[origin] = struct{}{}
	}
	return nil
}
