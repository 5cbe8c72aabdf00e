package validation

import (
	"fmt"
	"net/url"
	"strings"

	chaterrors "github.com/conneroisu/chatmark/internal/errors"
)

// shellDangerous lists characters that must never reach a browser-open
// command line.
var shellDangerous = []string{";", "&", "|", "`", "$", "(", ")", "<", ">", "\"", "'", "\\", "\n", "\r"}

// MaxImageURLLength bounds image attachment URLs.
const MaxImageURLLength = 2048

// ValidateURL validates URLs for browser auto-open functionality.
// Only absolute http/https URLs free of shell metacharacters pass.
func ValidateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return chaterrors.WrapValidation(err, chaterrors.ErrCodeInvalidURL, "invalid URL")
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return chaterrors.NewValidationError(chaterrors.ErrCodeInvalidURL,
			fmt.Sprintf("invalid URL scheme: %s (only http/https allowed)", parsed.Scheme))
	}

	for _, char := range shellDangerous {
		if strings.Contains(rawURL, char) {
			return chaterrors.NewSecurityError(chaterrors.ErrCodeInvalidURL,
				"URL contains dangerous character: "+char)
		}
	}

	if strings.Contains(rawURL, " ") {
		return chaterrors.NewSecurityError(chaterrors.ErrCodeInvalidURL,
			"URL contains spaces (possible command injection attempt)")
	}

	if parsed.Host == "" {
		return chaterrors.NewValidationError(chaterrors.ErrCodeInvalidURL, "URL must have a valid hostname")
	}

	return nil
}

// ValidateImageURL validates an image attachment on a chat message. Images
// are stored and echoed back to clients, so only absolute http/https URLs
// without credentials or control characters are accepted.
func ValidateImageURL(rawURL string) error {
	if rawURL == "" {
		return chaterrors.NewValidationError(chaterrors.ErrCodeInvalidURL, "image URL is empty")
	}
	if len(rawURL) > MaxImageURLLength {
		return chaterrors.NewValidationError(chaterrors.ErrCodeInvalidURL,
			fmt.Sprintf("image URL exceeds %d characters", MaxImageURLLength))
	}

	for _, r := range rawURL {
		if r < 0x20 || r == 0x7f || r == ' ' || r == '"' || r == '<' || r == '>' {
			return chaterrors.NewValidationError(chaterrors.ErrCodeInvalidURL,
				"image URL contains invalid characters")
		}
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return chaterrors.WrapValidation(err, chaterrors.ErrCodeInvalidURL, "invalid image URL")
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return chaterrors.NewValidationError(chaterrors.ErrCodeInvalidURL,
			fmt.Sprintf("invalid image URL scheme: %q", parsed.Scheme))
	}
	if parsed.Host == "" {
		return chaterrors.NewValidationError(chaterrors.ErrCodeInvalidURL, "image URL must have a hostname")
	}
	if parsed.User != nil {
		return chaterrors.NewSecurityError(chaterrors.ErrCodeInvalidURL, "image URL must not carry credentials")
	}

	return nil
}
