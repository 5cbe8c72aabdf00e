// Package config provides configuration management for chatmark using Viper
// for loading from files, environment variables and command-line flags.
//
// The configuration system supports YAML files, environment variable
// overrides with the CHATMARK_ prefix and validation. It covers the chat
// server, the markdown renderer's styling, chat history storage, alerts,
// logging and the file watcher.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/chatmark/internal/markdown"
)

type Config struct {
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Render  RenderConfig  `yaml:"render" mapstructure:"render"`
	Chat    ChatConfig    `yaml:"chat" mapstructure:"chat"`
	Alerts  AlertsConfig  `yaml:"alerts" mapstructure:"alerts"`
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Watch   WatchConfig   `yaml:"watch" mapstructure:"watch"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" mapstructure:"port"`
	Host            string        `yaml:"host" mapstructure:"host"`
	Open            bool          `yaml:"open" mapstructure:"open"`
	NoOpen          bool          `yaml:"no-open" mapstructure:"no-open"`
	AllowedOrigins  []string      `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	Environment     string        `yaml:"environment" mapstructure:"environment"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	RateLimit       RateLimit     `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// RateLimit applies per client to HTTP requests and to chat messages.
type RateLimit struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	Burst             int  `yaml:"burst" mapstructure:"burst"`
}

type RenderConfig struct {
	GFM     bool             `yaml:"gfm" mapstructure:"gfm"`
	Classes markdown.Classes `yaml:"classes" mapstructure:"classes"`
}

type ChatConfig struct {
	StoreDSN        string `yaml:"store_dsn" mapstructure:"store_dsn"`
	MaxImages       int    `yaml:"max_images" mapstructure:"max_images"`
	MaxMessageBytes int64  `yaml:"max_message_bytes" mapstructure:"max_message_bytes"`
	HistoryLimit    int    `yaml:"history_limit" mapstructure:"history_limit"`
	SendBuffer      int    `yaml:"send_buffer" mapstructure:"send_buffer"`
}

type AlertsConfig struct {
	TTL       time.Duration `yaml:"ttl" mapstructure:"ttl"`
	MaxAlerts int           `yaml:"max_alerts" mapstructure:"max_alerts"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce" mapstructure:"debounce"`
	Ignore   []string      `yaml:"ignore" mapstructure:"ignore"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			Host:            "localhost",
			Open:            true,
			Environment:     "development",
			MaxBodyBytes:    1 << 20,
			ReadTimeout:     15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimit: RateLimit{
				Enabled:           true,
				RequestsPerMinute: 120,
				Burst:             20,
			},
		},
		Render: RenderConfig{
			GFM:     true,
			Classes: markdown.DefaultClasses(),
		},
		Chat: ChatConfig{
			StoreDSN:        "memory://",
			MaxImages:       5,
			MaxMessageBytes: 64 << 10,
			HistoryLimit:    50,
			SendBuffer:      256,
		},
		Alerts: AlertsConfig{
			TTL:       3 * time.Second,
			MaxAlerts: 100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Watch: WatchConfig{
			Debounce: 300 * time.Millisecond,
			Ignore:   []string{".git", "node_modules"},
		},
	}
}

// SetDefaults registers every key with v so that environment variables
// and Unmarshal see the full key set.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.open", d.Server.Open)
	v.SetDefault("server.no-open", d.Server.NoOpen)
	v.SetDefault("server.environment", d.Server.Environment)
	v.SetDefault("server.max_body_bytes", d.Server.MaxBodyBytes)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.rate_limit.enabled", d.Server.RateLimit.Enabled)
	v.SetDefault("server.rate_limit.requests_per_minute", d.Server.RateLimit.RequestsPerMinute)
	v.SetDefault("server.rate_limit.burst", d.Server.RateLimit.Burst)

	v.SetDefault("render.gfm", d.Render.GFM)
	v.SetDefault("render.classes.link", d.Render.Classes.Link)
	v.SetDefault("render.classes.list_item", d.Render.Classes.ListItem)
	v.SetDefault("render.classes.list_unordered", d.Render.Classes.ListUnordered)
	v.SetDefault("render.classes.list_ordered", d.Render.Classes.ListOrdered)
	v.SetDefault("render.classes.code_container", d.Render.Classes.CodeContainer)
	v.SetDefault("render.classes.code_language", d.Render.Classes.CodeLanguage)
	v.SetDefault("render.classes.inline_code", d.Render.Classes.InlineCode)

	v.SetDefault("chat.store_dsn", d.Chat.StoreDSN)
	v.SetDefault("chat.max_images", d.Chat.MaxImages)
	v.SetDefault("chat.max_message_bytes", d.Chat.MaxMessageBytes)
	v.SetDefault("chat.history_limit", d.Chat.HistoryLimit)
	v.SetDefault("chat.send_buffer", d.Chat.SendBuffer)

	v.SetDefault("alerts.ttl", d.Alerts.TTL)
	v.SetDefault("alerts.max_alerts", d.Alerts.MaxAlerts)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)

	v.SetDefault("watch.debounce", d.Watch.Debounce)
	v.SetDefault("watch.ignore", d.Watch.Ignore)
}

// EnvKeyReplacer maps config keys to CHATMARK_ environment variable names,
// e.g. server.no-open to CHATMARK_SERVER_NO_OPEN.
func EnvKeyReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_", "-", "_")
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom unmarshals and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Slices set through the environment arrive as a single string.
	if v.IsSet("server.allowed_origins") && len(config.Server.AllowedOrigins) == 0 {
		config.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}
	if v.IsSet("watch.ignore") && len(config.Watch.Ignore) == 0 {
		config.Watch.Ignore = v.GetStringSlice("watch.ignore")
	}

	// Override open if no-open was set explicitly
	if v.GetBool("server.no-open") {
		config.Server.Open = false
	}

	if err := Validate(&config).Err(); err != nil {
		return nil, err
	}

	return &config, nil
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "" || c.Server.Environment == "development"
}
