// Package server provides configuration helpers that define runtime defaults,
// validation, and environment bindings for the relay service.
package server

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Tyrowin/roomrelay/internal/relay"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the server configuration settings including security controls.
type Config struct {
	Env             string
	LogLevel        string
	Port            string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration

	MaxMessageSize int64
	RateLimit      RateLimitConfig
	Echo           bool
	SendTimeout    time.Duration
	SendQueue      int
	PongWait       time.Duration
}

const (
	defaultPort            = ":8080"
	defaultOrigin          = "http://localhost:8080"
	defaultMaxMessageSize  = 4096
	defaultBurst           = 5
	defaultRefillInterval  = time.Second
	defaultSendTimeout     = 5 * time.Second
	defaultSendQueue       = 256
	defaultPongWait        = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

// envBindings maps configuration keys to the environment variables that
// override them.
var envBindings = map[string]string{
	"app.env":                          "APP_ENV",
	"log.level":                        "LOG_LEVEL",
	"server.port":                      "SERVER_PORT",
	"server.allowed_origins":           "ALLOWED_ORIGINS",
	"server.shutdown_timeout":          "SHUTDOWN_TIMEOUT",
	"relay.max_message_size":           "MAX_MESSAGE_SIZE",
	"relay.rate_limit.burst":           "RATE_LIMIT_BURST",
	"relay.rate_limit.refill_interval": "RATE_LIMIT_REFILL_INTERVAL",
	"relay.echo":                       "RELAY_ECHO",
	"relay.send_timeout":               "SEND_TIMEOUT",
	"relay.send_queue":                 "SEND_QUEUE",
	"relay.pong_wait":                  "PONG_WAIT",
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	return &Config{
		Env:             "dev",
		LogLevel:        "info",
		Port:            defaultPort,
		AllowedOrigins:  []string{defaultOrigin},
		ShutdownTimeout: defaultShutdownTimeout,
		MaxMessageSize:  defaultMaxMessageSize,
		RateLimit: RateLimitConfig{
			Burst:          defaultBurst,
			RefillInterval: defaultRefillInterval,
		},
		Echo:        true,
		SendTimeout: defaultSendTimeout,
		SendQueue:   defaultSendQueue,
		PongWait:    defaultPongWait,
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	def := NewConfig()

	v.SetDefault("app.env", def.Env)
	v.SetDefault("log.level", def.LogLevel)
	v.SetDefault("server.port", def.Port)
	v.SetDefault("server.allowed_origins", strings.Join(def.AllowedOrigins, ","))
	v.SetDefault("server.shutdown_timeout", def.ShutdownTimeout.String())
	v.SetDefault("relay.max_message_size", def.MaxMessageSize)
	v.SetDefault("relay.rate_limit.burst", def.RateLimit.Burst)
	v.SetDefault("relay.rate_limit.refill_interval", int(def.RateLimit.RefillInterval/time.Second))
	v.SetDefault("relay.echo", def.Echo)
	v.SetDefault("relay.send_timeout", def.SendTimeout.String())
	v.SetDefault("relay.send_queue", def.SendQueue)
	v.SetDefault("relay.pong_wait", def.PongWait.String())

	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}
	return v
}

// LoadConfig reads the configuration from the optional file at path (yaml,
// json or toml; empty path skips it) and from the environment. Environment
// variables take precedence over the file. Invalid values fall back to their
// defaults.
func LoadConfig(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}
	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	def := NewConfig()
	cfg := &Config{
		Env:             strings.ToLower(strings.TrimSpace(v.GetString("app.env"))),
		LogLevel:        strings.ToLower(strings.TrimSpace(v.GetString("log.level"))),
		Port:            strings.TrimSpace(v.GetString("server.port")),
		AllowedOrigins:  originsValue(v.Get("server.allowed_origins")),
		ShutdownTimeout: durationValue(v.GetString("server.shutdown_timeout"), def.ShutdownTimeout),
		MaxMessageSize:  v.GetInt64("relay.max_message_size"),
		RateLimit: RateLimitConfig{
			Burst:          v.GetInt("relay.rate_limit.burst"),
			RefillInterval: time.Duration(v.GetInt("relay.rate_limit.refill_interval")) * time.Second,
		},
		Echo:        v.GetBool("relay.echo"),
		SendTimeout: durationValue(v.GetString("relay.send_timeout"), def.SendTimeout),
		SendQueue:   v.GetInt("relay.send_queue"),
		PongWait:    durationValue(v.GetString("relay.pong_wait"), def.PongWait),
	}
	return sanitizeConfig(cfg)
}

// sanitizeConfig replaces missing or out-of-range values with defaults.
func sanitizeConfig(cfg *Config) *Config {
	def := NewConfig()

	if cfg.Env == "" {
		cfg.Env = def.Env
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	if cfg.Port == "" {
		cfg.Port = def.Port
	}
	if !strings.Contains(cfg.Port, ":") {
		cfg.Port = ":" + cfg.Port
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = def.RateLimit.Burst
	}
	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = def.RateLimit.RefillInterval
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = def.SendTimeout
	}
	if cfg.SendQueue <= 0 {
		cfg.SendQueue = def.SendQueue
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = def.PongWait
	}
	return cfg
}

// SessionConfig derives the relay session settings.
func (c *Config) SessionConfig() relay.SessionConfig {
	return relay.SessionConfig{
		Echo: c.Echo,
		RateLimit: relay.RateLimit{
			Burst:          c.RateLimit.Burst,
			RefillInterval: c.RateLimit.RefillInterval,
		},
	}
}

// ClientConfig derives the per-connection transport settings.
func (c *Config) ClientConfig() relay.ClientConfig {
	return relay.ClientConfig{
		MaxMessageSize: c.MaxMessageSize,
		SendQueue:      c.SendQueue,
		PongWait:       c.PongWait,
	}
}

// originsValue accepts either a comma separated string (environment) or a
// list (config file).
func originsValue(raw any) []string {
	switch val := raw.(type) {
	case string:
		return parseOrigins(val)
	case []string:
		return parseOrigins(strings.Join(val, ","))
	case []any:
		parts := make([]string, 0, len(val))
		for _, p := range val {
			if s, ok := p.(string); ok {
				parts = append(parts, s)
			}
		}
		return parseOrigins(strings.Join(parts, ","))
	default:
		return nil
	}
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func durationValue(value string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && d > 0 {
		return d
	}
	return defaultValue
}
