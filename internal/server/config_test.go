package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, "127.0.0.1", cfg.Address)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, ":8081", cfg.HTTPPort)
	assert.Equal(t, []string{"http://localhost:8081"}, cfg.AllowedOrigins)
	assert.Equal(t, 4096, cfg.MaxLineLength)
	assert.Zero(t, cfg.MaxClients)
	assert.Equal(t, 10*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("CHAT_ADDRESS", "0.0.0.0")
	t.Setenv("CHAT_PORT", "9000")
	t.Setenv("HTTP_PORT", ":9001")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("MAX_LINE_LENGTH", "128")
	t.Setenv("MAX_CLIENTS", "50")
	t.Setenv("WRITE_TIMEOUT", "3")
	t.Setenv("SHUTDOWN_TIMEOUT", "7")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := NewConfigFromEnv()

	assert.Equal(t, "0.0.0.0", cfg.Address)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, ":9001", cfg.HTTPPort)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, 128, cfg.MaxLineLength)
	assert.Equal(t, 50, cfg.MaxClients)
	assert.Equal(t, 3*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 7*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestNewConfigFromEnvInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		check func(t *testing.T, cfg *Config)
	}{
		{"port not a number", "CHAT_PORT", "eighty", func(t *testing.T, cfg *Config) {
			assert.Equal(t, 8080, cfg.Port)
		}},
		{"port out of range", "CHAT_PORT", "70000", func(t *testing.T, cfg *Config) {
			assert.Equal(t, 8080, cfg.Port)
		}},
		{"zero line length", "MAX_LINE_LENGTH", "0", func(t *testing.T, cfg *Config) {
			assert.Equal(t, 4096, cfg.MaxLineLength)
		}},
		{"negative clients", "MAX_CLIENTS", "-1", func(t *testing.T, cfg *Config) {
			assert.Zero(t, cfg.MaxClients)
		}},
		{"zero write timeout", "WRITE_TIMEOUT", "0", func(t *testing.T, cfg *Config) {
			assert.Equal(t, 10*time.Second, cfg.WriteTimeout)
		}},
		{"garbage shutdown timeout", "SHUTDOWN_TIMEOUT", "soon", func(t *testing.T, cfg *Config) {
			assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			tt.check(t, NewConfigFromEnv())
		})
	}
}

func TestGatewayCanBeDisabled(t *testing.T) {
	for _, value := range []string{"off", "OFF"} {
		t.Setenv("HTTP_PORT", value)
		assert.Empty(t, NewConfigFromEnv().HTTPPort, value)
	}
}

func TestConfigSanitize(t *testing.T) {
	cfg := Config{Port: -5, MaxLineLength: -1, MaxClients: -3}.sanitize()

	assert.Equal(t, defaultAddress, cfg.Address)
	assert.Equal(t, defaultPort, cfg.Port)
	assert.Equal(t, defaultMaxLineLength, cfg.MaxLineLength)
	assert.Zero(t, cfg.MaxClients)
	assert.Equal(t, defaultWriteTimeout, cfg.WriteTimeout)
	assert.Equal(t, defaultShutdownTimeout, cfg.ShutdownTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestConfigSanitizeCopiesOrigins(t *testing.T) {
	origins := []string{"https://a.example.com"}
	cfg := Config{AllowedOrigins: origins}.sanitize()

	origins[0] = "https://changed.example.com"
	assert.Equal(t, []string{"https://a.example.com"}, cfg.AllowedOrigins)
}
