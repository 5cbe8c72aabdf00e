package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chaterrors "github.com/conneroisu/chatmark/internal/errors"
	"github.com/conneroisu/chatmark/internal/markdown"
)

func TestLoadFrom(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(v *viper.Viper)
		expectError bool
		check       func(t *testing.T, cfg *Config)
	}{
		{
			name:  "defaults",
			setup: func(v *viper.Viper) {},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, Default(), cfg)
			},
		},
		{
			name: "overrides",
			setup: func(v *viper.Viper) {
				v.Set("server.port", 3000)
				v.Set("server.host", "0.0.0.0")
				v.Set("chat.store_dsn", "sqlite://./data/chat.db")
				v.Set("alerts.ttl", "5s")
				v.Set("render.classes.link", "link")
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 3000, cfg.Server.Port)
				assert.Equal(t, "0.0.0.0", cfg.Server.Host)
				assert.Equal(t, "sqlite://./data/chat.db", cfg.Chat.StoreDSN)
				assert.Equal(t, 5*time.Second, cfg.Alerts.TTL)
				assert.Equal(t, "link", cfg.Render.Classes.Link)
				assert.Equal(t, markdown.DefaultClasses().InlineCode, cfg.Render.Classes.InlineCode)
			},
		},
		{
			name: "no-open flag override",
			setup: func(v *viper.Viper) {
				v.Set("server.open", true)
				v.Set("server.no-open", true)
			},
			check: func(t *testing.T, cfg *Config) {
				assert.False(t, cfg.Server.Open)
			},
		},
		{
			name: "invalid viper config",
			setup: func(v *viper.Viper) {
				v.Set("server.port", "invalid_port")
			},
			expectError: true,
		},
		{
			name: "validation failure",
			setup: func(v *viper.Viper) {
				v.Set("chat.max_images", 0)
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			tt.setup(v)

			cfg, err := LoadFrom(v)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, cfg)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoad_GlobalViper(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("logging.level", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFrom_Environment(t *testing.T) {
	t.Setenv("CHATMARK_SERVER_PORT", "9090")
	t.Setenv("CHATMARK_SERVER_ALLOWED_ORIGINS", "https://a.example.com https://b.example.com")
	t.Setenv("CHATMARK_CHAT_HISTORY_LIMIT", "20")

	v := viper.New()
	v.SetEnvPrefix("CHATMARK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(EnvKeyReplacer())

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 20, cfg.Chat.HistoryLimit)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.AllowedOrigins)
}

func TestLoadFrom_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".chatmark.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 4000
  allowed_origins:
    - https://chat.example.com
chat:
  store_dsn: sqlite://history.db
  max_images: 3
render:
  gfm: false
  classes:
    inline_code: "font-mono"
logging:
  format: json
`), 0o600))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, []string{"https://chat.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 3, cfg.Chat.MaxImages)
	assert.False(t, cfg.Render.GFM)
	assert.Equal(t, "font-mono", cfg.Render.Classes.InlineCode)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name         string
		mutate       func(c *Config)
		errorField   string
		warningField string
	}{
		{name: "default is valid", mutate: func(c *Config) {}},
		{name: "negative port", mutate: func(c *Config) { c.Server.Port = -1 }, errorField: "server.port"},
		{name: "port too large", mutate: func(c *Config) { c.Server.Port = 70000 }, errorField: "server.port"},
		{name: "privileged port", mutate: func(c *Config) { c.Server.Port = 80 }, warningField: "server.port"},
		{name: "host injection", mutate: func(c *Config) { c.Server.Host = "localhost; rm -rf /" }, errorField: "server.host"},
		{name: "any interface", mutate: func(c *Config) { c.Server.Host = "0.0.0.0" }, warningField: "server.host"},
		{name: "unknown environment", mutate: func(c *Config) { c.Server.Environment = "staging" }, errorField: "server.environment"},
		{name: "origin with path", mutate: func(c *Config) { c.Server.AllowedOrigins = []string{"https://a.com/chat"} }, errorField: "server.allowed_origins"},
		{name: "origin without scheme", mutate: func(c *Config) { c.Server.AllowedOrigins = []string{"a.com"} }, errorField: "server.allowed_origins"},
		{name: "wildcard in development", mutate: func(c *Config) { c.Server.AllowedOrigins = []string{"*"} }, warningField: "server.allowed_origins"},
		{
			name: "wildcard in production",
			mutate: func(c *Config) {
				c.Server.Environment = "production"
				c.Server.AllowedOrigins = []string{"*"}
			},
			errorField: "server.allowed_origins",
		},
		{name: "rate limit without rate", mutate: func(c *Config) { c.Server.RateLimit.RequestsPerMinute = 0 }, errorField: "server.rate_limit.requests_per_minute"},
		{
			name: "disabled rate limit ignores values",
			mutate: func(c *Config) {
				c.Server.RateLimit.Enabled = false
				c.Server.RateLimit.Burst = 0
			},
		},
		{name: "zero body", mutate: func(c *Config) { c.Server.MaxBodyBytes = 0 }, errorField: "server.max_body_bytes"},
		{name: "quote in class", mutate: func(c *Config) { c.Render.Classes.Link = `x" onclick="y` }, errorField: "render.classes.link"},
		{name: "empty class falls back", mutate: func(c *Config) { c.Render.Classes.Link = "" }},
		{name: "postgres store", mutate: func(c *Config) { c.Chat.StoreDSN = "postgres://x" }, errorField: "chat.store_dsn"},
		{name: "sqlite without path", mutate: func(c *Config) { c.Chat.StoreDSN = "sqlite://" }, errorField: "chat.store_dsn"},
		{name: "too many images", mutate: func(c *Config) { c.Chat.MaxImages = 50 }, errorField: "chat.max_images"},
		{name: "history limit", mutate: func(c *Config) { c.Chat.HistoryLimit = 0 }, errorField: "chat.history_limit"},
		{name: "send buffer", mutate: func(c *Config) { c.Chat.SendBuffer = 0 }, errorField: "chat.send_buffer"},
		{name: "alert ttl", mutate: func(c *Config) { c.Alerts.TTL = 0 }, errorField: "alerts.ttl"},
		{name: "log level", mutate: func(c *Config) { c.Logging.Level = "loud" }, errorField: "logging.level"},
		{name: "log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, errorField: "logging.format"},
		{name: "debounce", mutate: func(c *Config) { c.Watch.Debounce = -time.Second }, errorField: "watch.debounce"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			result := Validate(cfg)

			if tt.errorField == "" {
				assert.True(t, result.Valid, result.String())
				assert.NoError(t, result.Err())
			} else {
				assert.False(t, result.Valid)
				require.NotEmpty(t, result.Errors)
				assert.Equal(t, tt.errorField, result.Errors[0].Field)
			}

			if tt.warningField != "" {
				require.True(t, result.HasWarnings())
				assert.Equal(t, tt.warningField, result.Warnings[0].Field)
			}
		})
	}
}

func TestValidationResult_Err(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = -1
	cfg.Chat.MaxImages = 0

	err := Validate(cfg).Err()
	require.Error(t, err)
	assert.True(t, chaterrors.IsType(err, chaterrors.ErrorTypeConfig))
	assert.Equal(t, chaterrors.ErrCodeConfigInvalid, chaterrors.Code(err))
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "chat.max_images")
}

func TestValidationResult_String(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 70000
	cfg.Server.Host = "0.0.0.0"

	out := Validate(cfg).String()
	assert.Contains(t, out, "Validation errors:")
	assert.Contains(t, out, "server.port")
	assert.Contains(t, out, "hint: Use a port between 1024-65535")
	assert.Contains(t, out, "Validation warnings:")
}

func TestIsDevelopment(t *testing.T) {
	cfg := Default()
	assert.True(t, cfg.IsDevelopment())
	cfg.Server.Environment = ""
	assert.True(t, cfg.IsDevelopment())
	cfg.Server.Environment = "production"
	assert.False(t, cfg.IsDevelopment())
}
