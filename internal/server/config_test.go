package server

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	req := require.New(t)

	cfg, err := LoadConfig()
	req.NoError(err)
	req.Equal(":8080", cfg.Port)
	req.Equal(ModeConversations, cfg.Mode)
	req.Equal(BackendMemory, cfg.Backend)
	req.Equal(int64(4096), cfg.MaxMessageSize)
	req.Equal(5, cfg.RateLimit.Burst)
	req.Equal(time.Second, cfg.RateLimit.RefillInterval)
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	req := require.New(t)
	t.Setenv("SERVER_PORT", ":9999")
	t.Setenv("CHAT_MODE", "global")
	t.Setenv("STORE_BACKEND", "badger")
	t.Setenv("BADGER_PATH", "/tmp/parley-test")
	t.Setenv("ALLOWED_ORIGINS", "https://chat.example.com, http://LOCALHOST:3000")
	t.Setenv("MAX_MESSAGE_SIZE", "1024")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")

	cfg, err := LoadConfig()
	req.NoError(err)
	req.Equal(":9999", cfg.Port)
	req.Equal(ModeGlobal, cfg.Mode)
	req.Equal(BackendBadger, cfg.Backend)
	req.Equal("/tmp/parley-test", cfg.BadgerPath)
	req.Equal(int64(1024), cfg.MaxMessageSize)
	req.Equal(2*time.Second, cfg.RateLimit.RefillInterval)
	req.ElementsMatch(
		[]string{"https://chat.example.com", "http://localhost:3000"},
		cfg.AllowedOrigins,
	)

	// The split and normalized list must actually admit each listed origin.
	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Origin", "http://localhost:3000")
	req.True(cfg.originAllowed(r))
	r.Header.Set("Origin", "https://other.example.com")
	req.False(cfg.originAllowed(r))
}

func TestLoadConfig_Rejects_Unknown_Mode_And_Backend(t *testing.T) {
	t.Setenv("CHAT_MODE", "multicast")
	_, err := LoadConfig()
	require.Error(t, err)

	t.Setenv("CHAT_MODE", "global")
	t.Setenv("STORE_BACKEND", "mongodb")
	_, err = LoadConfig()
	require.Error(t, err)
}

func TestSanitize_Repairs_Invalid_Values(t *testing.T) {
	req := require.New(t)

	cfg := &Config{
		Port:           "",
		MaxMessageSize: -1,
		RateLimit:      RateLimitConfig{Burst: 0, RefillInterval: 0},
	}
	req.NoError(cfg.sanitize())
	req.Equal(":8080", cfg.Port)
	req.Equal(int64(4096), cfg.MaxMessageSize)
	req.Equal(5, cfg.RateLimit.Burst)
	req.Equal(time.Second, cfg.RateLimit.RefillInterval)
	req.Equal(ModeConversations, cfg.Mode)
	req.Equal(BackendMemory, cfg.Backend)
}

func TestOriginAllowed(t *testing.T) {
	req := require.New(t)
	cfg := NewConfig()
	cfg.AllowedOrigins = []string{"https://Chat.Example.com", " ", "not a url"}
	req.NoError(cfg.sanitize())

	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Origin", "https://chat.example.com")
	req.True(cfg.originAllowed(r))

	r.Header.Set("Origin", "https://evil.example.com")
	req.False(cfg.originAllowed(r))

	r.Header.Del("Origin")
	req.False(cfg.originAllowed(r))
}

func TestOriginAllowed_Wildcard(t *testing.T) {
	req := require.New(t)
	cfg := NewConfig()
	cfg.AllowedOrigins = []string{"*"}
	req.NoError(cfg.sanitize())

	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Origin", "https://anywhere.example.com")
	req.True(cfg.originAllowed(r))

	// Even with the wildcard, a missing Origin header is rejected.
	r.Header.Del("Origin")
	req.False(cfg.originAllowed(r))
}
