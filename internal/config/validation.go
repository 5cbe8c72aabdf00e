package config

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"

	chaterrors "github.com/conneroisu/chatmark/internal/errors"
	"github.com/conneroisu/chatmark/internal/logging"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	if len(vr.Errors) > 0 {
		builder.WriteString("Validation errors:\n")
		for _, err := range vr.Errors {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", err.Field, err.Message))
			for _, suggestion := range err.Suggestions {
				builder.WriteString(fmt.Sprintf("    hint: %s\n", suggestion))
			}
		}
	}

	if len(vr.Warnings) > 0 {
		builder.WriteString("Validation warnings:\n")
		for _, warning := range vr.Warnings {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", warning.Field, warning.Message))
			for _, suggestion := range warning.Suggestions {
				builder.WriteString(fmt.Sprintf("    hint: %s\n", suggestion))
			}
		}
	}

	return builder.String()
}

// Err folds the errors into a single config ChatError, or nil. Warnings
// never fail loading.
func (vr *ValidationResult) Err() error {
	if !vr.HasErrors() {
		return nil
	}

	var collection chaterrors.ValidationErrorCollection
	for _, e := range vr.Errors {
		collection.AddField(e.Field, e.Value, e.Message)
	}
	return chaterrors.WrapConfig(collection.ToChatError(), chaterrors.ErrCodeConfigInvalid, "invalid configuration")
}

func (vr *ValidationResult) addError(field string, value interface{}, message string, suggestions ...string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Value: value, Message: message, Suggestions: suggestions})
}

func (vr *ValidationResult) addWarning(field string, value interface{}, message string, suggestions ...string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Value: value, Message: message, Suggestions: suggestions})
}

var environments = []string{"development", "production", "test"}

// classTokens matches what the HTML sanitizer lets through in class attributes.
var classTokens = regexp.MustCompile(`^[\p{L}\p{N}\s_:./#+-]*$`)

var hostnamePattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

// Validate checks every section and collects all problems instead of
// stopping at the first.
func Validate(config *Config) *ValidationResult {
	result := &ValidationResult{
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	validateServer(&config.Server, result)
	validateRender(&config.Render, result)
	validateChat(&config.Chat, result)
	validateAlerts(&config.Alerts, result)
	validateLogging(&config.Logging, result)
	validateWatch(&config.Watch, result)

	result.Valid = !result.HasErrors()
	return result
}

func validateServer(config *ServerConfig, result *ValidationResult) {
	// Port 0 asks the OS for a free port, which tests rely on.
	if config.Port < 0 || config.Port > 65535 {
		result.addError("server.port", config.Port,
			fmt.Sprintf("port %d is not in valid range 0-65535", config.Port),
			"Use a port between 1024-65535 for non-privileged access")
	} else if config.Port > 0 && config.Port < 1024 {
		result.addWarning("server.port", config.Port, "privileged port may require root")
	}

	if config.Host != "" {
		if err := validateHostname(config.Host); err != nil {
			result.addError("server.host", config.Host, err.Error(), "Use 'localhost' for local development")
		} else if config.Host == "0.0.0.0" || config.Host == "::" {
			result.addWarning("server.host", config.Host, "server will accept connections from any interface")
		}
	}

	if config.Environment != "" && !contains(environments, config.Environment) {
		result.addError("server.environment", config.Environment,
			"unknown environment", "Use one of: "+strings.Join(environments, ", "))
	}

	for _, origin := range config.AllowedOrigins {
		if origin == "*" {
			if config.Environment == "production" {
				result.addError("server.allowed_origins", origin, "wildcard origin is not allowed in production")
			} else {
				result.addWarning("server.allowed_origins", origin, "wildcard origin accepts any site")
			}
			continue
		}
		u, err := url.Parse(origin)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" || (u.Path != "" && u.Path != "/") {
			result.addError("server.allowed_origins", origin,
				"origin must be scheme://host[:port]", "Example: https://chat.example.com")
		}
	}

	if config.MaxBodyBytes <= 0 {
		result.addError("server.max_body_bytes", config.MaxBodyBytes, "must be positive")
	}
	if config.ReadTimeout < 0 {
		result.addError("server.read_timeout", config.ReadTimeout, "must not be negative")
	}
	if config.ShutdownTimeout < 0 {
		result.addError("server.shutdown_timeout", config.ShutdownTimeout, "must not be negative")
	}
	if config.RateLimit.Enabled {
		if config.RateLimit.RequestsPerMinute <= 0 {
			result.addError("server.rate_limit.requests_per_minute", config.RateLimit.RequestsPerMinute, "must be positive when rate limiting is enabled")
		}
		if config.RateLimit.Burst <= 0 {
			result.addError("server.rate_limit.burst", config.RateLimit.Burst, "must be positive when rate limiting is enabled")
		}
	}
}

func validateRender(config *RenderConfig, result *ValidationResult) {
	classes := map[string]string{
		"render.classes.link":           config.Classes.Link,
		"render.classes.list_item":      config.Classes.ListItem,
		"render.classes.list_unordered": config.Classes.ListUnordered,
		"render.classes.list_ordered":   config.Classes.ListOrdered,
		"render.classes.code_container": config.Classes.CodeContainer,
		"render.classes.code_language":  config.Classes.CodeLanguage,
		"render.classes.inline_code":    config.Classes.InlineCode,
	}
	for field, value := range classes {
		if !classTokens.MatchString(value) {
			result.addError(field, value, "class list contains characters the sanitizer would strip",
				"Use letters, digits, spaces and _ : . / # + -")
		}
	}
}

func validateChat(config *ChatConfig, result *ValidationResult) {
	switch {
	case config.StoreDSN == "" || config.StoreDSN == "memory://":
	case strings.HasPrefix(config.StoreDSN, "sqlite://"):
		if strings.TrimPrefix(config.StoreDSN, "sqlite://") == "" {
			result.addError("chat.store_dsn", config.StoreDSN, "sqlite dsn has no path",
				"Example: sqlite://./data/chat.db")
		}
	default:
		result.addError("chat.store_dsn", config.StoreDSN, "unsupported store",
			"Use memory:// or sqlite://<path>")
	}

	if config.MaxImages < 1 || config.MaxImages > 20 {
		result.addError("chat.max_images", config.MaxImages, "must be between 1 and 20")
	}
	if config.MaxMessageBytes <= 0 {
		result.addError("chat.max_message_bytes", config.MaxMessageBytes, "must be positive")
	}
	if config.HistoryLimit < 1 || config.HistoryLimit > 1000 {
		result.addError("chat.history_limit", config.HistoryLimit, "must be between 1 and 1000")
	}
	if config.SendBuffer < 1 {
		result.addError("chat.send_buffer", config.SendBuffer, "must be at least 1")
	}
}

func validateAlerts(config *AlertsConfig, result *ValidationResult) {
	if config.TTL <= 0 {
		result.addError("alerts.ttl", config.TTL, "must be positive", "The UI default is 3s")
	}
	if config.MaxAlerts < 0 {
		result.addError("alerts.max_alerts", config.MaxAlerts, "must not be negative")
	}
}

func validateLogging(config *LoggingConfig, result *ValidationResult) {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		result.addError("logging.level", config.Level, err.Error(), "Use debug, info, warn or error")
	}
	switch config.Format {
	case "text", "json":
	default:
		result.addError("logging.format", config.Format, "unknown log format", "Use text or json")
	}
}

func validateWatch(config *WatchConfig, result *ValidationResult) {
	if config.Debounce < 0 {
		result.addError("watch.debounce", config.Debounce, "must not be negative")
	}
}

func validateHostname(host string) error {
	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
	for _, char := range dangerousChars {
		if strings.Contains(host, char) {
			return fmt.Errorf("contains dangerous character: %s", char)
		}
	}

	if net.ParseIP(host) != nil {
		return nil
	}

	if !hostnamePattern.MatchString(host) {
		return fmt.Errorf("invalid hostname format")
	}

	return nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
