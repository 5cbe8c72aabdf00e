package chat

import (
	"encoding/json"
	"strings"

	chaterrors "github.com/conneroisu/chatmark/internal/errors"
	"github.com/conneroisu/chatmark/internal/validation"
)

// DefaultMaxImages caps the images kept per message.
const DefaultMaxImages = 5

// Frame is an inbound WebSocket frame.
type Frame struct {
	Message string   `json:"message"`
	Images  []string `json:"images,omitempty"`
}

// RejectedImage is an image URL dropped during normalization.
type RejectedImage struct {
	URL    string
	Reason error
}

// ParseFrame decodes a client frame. Unknown fields are ignored.
func ParseFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, chaterrors.WrapValidation(err, chaterrors.ErrCodeInvalidFrame, "malformed chat frame")
	}
	return f, nil
}

// Normalize trims the message, strips control characters and keeps at most
// maxImages valid image URLs. Images past the cap are ignored without being
// reported; invalid ones are returned as rejected. A frame left with neither
// text nor images is an error.
func (f Frame) Normalize(maxImages int) (Frame, []RejectedImage, error) {
	if maxImages <= 0 {
		maxImages = DefaultMaxImages
	}

	out := Frame{
		Message: strings.TrimSpace(validation.SanitizeInput(f.Message)),
	}

	candidates := f.Images
	if len(candidates) > maxImages {
		candidates = candidates[:maxImages]
	}

	var rejected []RejectedImage
	for _, raw := range candidates {
		u := strings.TrimSpace(raw)
		if err := validation.ValidateImageURL(u); err != nil {
			rejected = append(rejected, RejectedImage{URL: raw, Reason: err})
			continue
		}
		out.Images = append(out.Images, u)
	}

	if out.Message == "" && len(out.Images) == 0 {
		return Frame{}, rejected, chaterrors.ErrEmptyMessage()
	}
	return out, rejected, nil
}
