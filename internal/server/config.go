// Package server provides configuration helpers that define runtime defaults,
// validation, and environment loading for the chat server.
package server

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Tyrowin/linechat/internal/logging"
)

// Config holds the server configuration settings.
type Config struct {
	// Address and Port of the TCP listener.
	Address string
	Port    int

	// HTTPPort is the listen address of the WebSocket gateway. Empty
	// disables the gateway.
	HTTPPort       string
	AllowedOrigins []string

	// MaxLineLength bounds a single client line in bytes.
	MaxLineLength int
	// MaxClients caps concurrently connected clients; 0 means no limit.
	MaxClients int

	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	LogLevel        string
}

const (
	defaultAddress         = "127.0.0.1"
	defaultPort            = 8080
	defaultHTTPPort        = ":8081"
	defaultMaxLineLength   = 4096
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 10 * time.Second

	gatewayDisabled = "off"
)

func defaultConfig() Config {
	return Config{
		Address:  defaultAddress,
		Port:     defaultPort,
		HTTPPort: defaultHTTPPort,
		AllowedOrigins: []string{
			"http://localhost:8081",
		},
		MaxLineLength:   defaultMaxLineLength,
		WriteTimeout:    defaultWriteTimeout,
		ShutdownTimeout: defaultShutdownTimeout,
		LogLevel:        logging.DefaultLevel,
	}
}

// sanitize replaces out-of-range values with defaults.
func (c Config) sanitize() Config {
	if c.Address == "" {
		c.Address = defaultAddress
	}
	if c.Port < 0 || c.Port > 65535 {
		c.Port = defaultPort
	}
	if c.MaxLineLength <= 0 {
		c.MaxLineLength = defaultMaxLineLength
	}
	if c.MaxClients < 0 {
		c.MaxClients = 0
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	if c.LogLevel == "" {
		c.LogLevel = logging.DefaultLevel
	}
	c.AllowedOrigins = append([]string(nil), c.AllowedOrigins...)
	return c
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Falls back to default values if environment variables are not set or invalid.
func NewConfigFromEnv() *Config {
	cfg := defaultConfig()

	if addr := os.Getenv("CHAT_ADDRESS"); addr != "" {
		cfg.Address = addr
	}

	if port := os.Getenv("CHAT_PORT"); port != "" {
		cfg.Port = parsePort(port, cfg.Port)
	}

	if httpPort := os.Getenv("HTTP_PORT"); httpPort != "" {
		if strings.EqualFold(httpPort, gatewayDisabled) {
			cfg.HTTPPort = ""
		} else {
			cfg.HTTPPort = httpPort
		}
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}

	if maxLine := os.Getenv("MAX_LINE_LENGTH"); maxLine != "" {
		cfg.MaxLineLength = parsePositiveInt(maxLine, cfg.MaxLineLength)
	}

	// MAX_CLIENTS=0 is meaningful (no limit), so zero is accepted here.
	if maxClients := os.Getenv("MAX_CLIENTS"); maxClients != "" {
		if parsed, err := strconv.Atoi(maxClients); err == nil && parsed >= 0 {
			cfg.MaxClients = parsed
		}
	}

	if timeout := os.Getenv("WRITE_TIMEOUT"); timeout != "" {
		cfg.WriteTimeout = parseSeconds(timeout, cfg.WriteTimeout)
	}

	if timeout := os.Getenv("SHUTDOWN_TIMEOUT"); timeout != "" {
		cfg.ShutdownTimeout = parseSeconds(timeout, cfg.ShutdownTimeout)
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	return &cfg
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parsePort(value string, defaultValue int) int {
	if port, err := strconv.Atoi(value); err == nil && port >= 0 && port <= 65535 {
		return port
	}
	return defaultValue
}

func parsePositiveInt(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parseSeconds(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
