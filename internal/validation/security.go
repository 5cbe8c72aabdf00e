// Package validation provides input validation for chat traffic, file paths
// and browser-open URLs.
package validation

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	chaterrors "github.com/conneroisu/chatmark/internal/errors"
)

// activityID matches identifiers accepted as chat room names.
var activityID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// ValidateActivityID checks that id is usable as a chat room key and URL
// path segment.
func ValidateActivityID(id string) error {
	if !activityID.MatchString(id) {
		return chaterrors.ErrInvalidActivity(id)
	}
	return nil
}

// ValidatePath validates a file path to prevent path traversal attacks
func ValidatePath(path string) error {
	if path == "" {
		return chaterrors.ErrInvalidPath("path cannot be empty")
	}

	cleanPath := filepath.Clean(path)

	if strings.Contains(cleanPath, "..") {
		return chaterrors.ErrPathTraversal(path)
	}

	restrictedPaths := []string{
		"/etc/passwd",
		"/etc/shadow",
		"/proc/",
		"/sys/",
		"/dev/",
		"/boot/",
	}

	cleanPathLower := strings.ToLower(cleanPath)
	for _, restricted := range restrictedPaths {
		if strings.HasPrefix(cleanPathLower, restricted) {
			return chaterrors.NewSecurityError(chaterrors.ErrCodeInvalidPath,
				"access to restricted path denied: "+path)
		}
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "<", ">"}
	for _, char := range dangerousChars {
		if strings.Contains(path, char) {
			return chaterrors.NewSecurityError(chaterrors.ErrCodeInvalidPath,
				"path contains dangerous character: "+char)
		}
	}

	return nil
}

// ValidateOrigin validates a WebSocket origin for CSRF protection.
// Entries in allowedOrigins may be full origins, bare host[:port] values or
// "*", which accepts any http or https origin.
func ValidateOrigin(origin string, allowedOrigins []string) error {
	if origin == "" {
		return chaterrors.ErrInvalidOrigin("origin header is required")
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return chaterrors.ErrInvalidOrigin(origin)
	}

	if originURL.Scheme != "http" && originURL.Scheme != "https" {
		return chaterrors.ErrInvalidOrigin(
			fmt.Sprintf("%s (only http and https are allowed)", origin))
	}

	for _, allowed := range allowedOrigins {
		if allowed == "*" || origin == allowed || originURL.Host == allowed {
			return nil
		}
	}

	return chaterrors.ErrInvalidOrigin(origin)
}

// ValidateFileExtension validates file extensions against an allowlist
func ValidateFileExtension(filename string, allowedExtensions []string) error {
	if filename == "" {
		return chaterrors.ErrInvalidPath("filename cannot be empty")
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return chaterrors.ErrInvalidPath(filename + " has no extension")
	}

	for _, allowed := range allowedExtensions {
		if ext == strings.ToLower(allowed) {
			return nil
		}
	}

	return chaterrors.ErrInvalidPath(fmt.Sprintf("file extension '%s' is not allowed", ext))
}

// SanitizeInput removes null bytes and control characters other than common
// whitespace from user input.
func SanitizeInput(input string) string {
	var sanitized strings.Builder
	sanitized.Grow(len(input))
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' || r == '\r' {
			sanitized.WriteRune(r)
		}
	}

	return sanitized.String()
}
