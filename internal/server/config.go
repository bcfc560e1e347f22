// Package server provides configuration helpers that define runtime
// defaults, validation, and origin policy for the chat relay service.
package server

import (
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the server configuration settings including the origin
// allow-list for WebSocket upgrades.
type Config struct {
	Port            string        `envconfig:"SERVER_PORT" default:":3500"`
	AllowedOrigins  []string      `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5500,http://127.0.0.1:5500"`
	PublicDir       string        `envconfig:"PUBLIC_DIR" default:"./public"`
	MaxMessageSize  int64         `envconfig:"MAX_MESSAGE_SIZE" default:"4096"`
	SendBufferSize  int           `envconfig:"SEND_BUFFER_SIZE" default:"256"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`
}

var (
	configMu     sync.RWMutex
	activeConfig Config
	activePolicy originPolicy
)

func init() {
	SetConfig(nil)
}

func defaultConfig() Config {
	return Config{
		Port: ":3500",
		AllowedOrigins: []string{
			"http://localhost:5500",
			"http://127.0.0.1:5500",
		},
		PublicDir:       "./public",
		MaxMessageSize:  4096,
		SendBufferSize:  256,
		ShutdownTimeout: 5 * time.Second,
	}
}

func sanitizeConfig(cfg Config) Config {
	if cfg.Port == "" {
		cfg.Port = ":3500"
	}
	if cfg.PublicDir == "" {
		cfg.PublicDir = "./public"
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 4096
	}
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = 256
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}

	policy := newOriginPolicy(cfg.AllowedOrigins)
	cfg.AllowedOrigins = policy.origins()

	configMu.Lock()
	defer configMu.Unlock()

	activeConfig = cfg
	activePolicy = policy
	return cfg
}

// SetConfig applies the provided configuration. Passing nil resets to defaults.
func SetConfig(cfg *Config) {
	if cfg == nil {
		sanitizeConfig(defaultConfig())
		return
	}

	sanitized := Config{
		Port:            cfg.Port,
		AllowedOrigins:  append([]string(nil), cfg.AllowedOrigins...),
		PublicDir:       cfg.PublicDir,
		MaxMessageSize:  cfg.MaxMessageSize,
		SendBufferSize:  cfg.SendBufferSize,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}
	sanitizeConfig(sanitized)
}

func currentConfig() Config {
	configMu.RLock()
	defer configMu.RUnlock()

	cfg := activeConfig
	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

func currentPolicy() originPolicy {
	configMu.RLock()
	defer configMu.RUnlock()

	return activePolicy
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config instance from environment variables,
// falling back to the struct-tag defaults for anything unset.
func NewConfigFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
