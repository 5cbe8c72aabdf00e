// Package chat holds the chat message model, the WebSocket frame formats and
// the history stores messages are persisted to.
package chat

import (
	"time"

	"github.com/conneroisu/chatmark/internal/alert"
)

// Anonymous is the identity used when no upstream proxy supplied one.
const Anonymous = "anonymous"

// Message is one chat message in an activity room. Body is the raw text as
// the sender typed it; rendered HTML is derived on read and never stored.
type Message struct {
	ID         string    `json:"id"`
	ActivityID string    `json:"activity_id"`
	SenderID   string    `json:"user_id"`
	SenderName string    `json:"name"`
	Body       string    `json:"message"`
	Images     []string  `json:"images"`
	Timestamp  time.Time `json:"timestamp"`
}

// Frame types sent to WebSocket clients.
const (
	FrameMessage = "message"
	FrameAlert   = "alert"
)

// OutboundMessage is the frame broadcast to a room for every stored message
// and returned by the history endpoint.
type OutboundMessage struct {
	Type       string    `json:"type"`
	ID         string    `json:"id"`
	ActivityID string    `json:"activity_id"`
	UserID     string    `json:"user_id"`
	Name       string    `json:"name"`
	Message    string    `json:"message"`
	HTML       string    `json:"html"`
	Images     []string  `json:"images"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewOutboundMessage pairs a stored message with its rendered HTML.
func NewOutboundMessage(m Message, html string) OutboundMessage {
	images := m.Images
	if images == nil {
		images = []string{}
	}
	return OutboundMessage{
		Type:       FrameMessage,
		ID:         m.ID,
		ActivityID: m.ActivityID,
		UserID:     m.SenderID,
		Name:       m.SenderName,
		Message:    m.Body,
		HTML:       html,
		Images:     images,
		Timestamp:  m.Timestamp,
	}
}

// OutboundAlert carries an alert to the clients of a room.
type OutboundAlert struct {
	Type  string      `json:"type"`
	Alert alert.Alert `json:"alert"`
}

// NewOutboundAlert wraps a for sending.
func NewOutboundAlert(a alert.Alert) OutboundAlert {
	return OutboundAlert{Type: FrameAlert, Alert: a}
}
