package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/conneroisu/chatmark/internal/alert"
	"github.com/conneroisu/chatmark/internal/chat"
	chaterrors "github.com/conneroisu/chatmark/internal/errors"
	"github.com/conneroisu/chatmark/internal/logging"
	"github.com/conneroisu/chatmark/internal/validation"
	"github.com/conneroisu/chatmark/internal/version"
)

type renderRequest struct {
	Message string `json:"message"`
}

type renderResponse struct {
	HTML string `json:"html"`
}

type historyResponse struct {
	ActivityID string                 `json:"activity_id"`
	Messages   []chat.OutboundMessage `json:"messages"`
}

type alertsResponse struct {
	Alerts []alert.Alert `json:"alerts"`
}

type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	storeCheck := map[string]interface{}{"status": "healthy"}
	if err := s.store.Ping(r.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
		storeCheck = map[string]interface{}{"status": "unhealthy", "message": chaterrors.PublicMessage(err)}
		s.logger.Warn(r.Context(), err, "Chat store health check failed")
	}

	health := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"version":   version.GetShortVersion(),
		"checks": map[string]interface{}{
			"server": map[string]interface{}{"status": "healthy", "message": "HTTP server operational"},
			"store":  storeCheck,
			"hub":    map[string]interface{}{"status": "healthy", "clients": s.hub.Clients()},
			"alerts": map[string]interface{}{"status": "healthy", "visible": len(s.notifier.Visible())},
		},
	}

	writeJSON(w, code, health)
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.Server.MaxBodyBytes)

	var req renderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.fail(w, r, chaterrors.NewValidationError(chaterrors.ErrCodeMessageTooLarge, "request body too large"))
			return
		}
		s.fail(w, r, chaterrors.WrapValidation(err, chaterrors.ErrCodeInvalidFrame, "malformed render request"))
		return
	}

	writeJSON(w, http.StatusOK, renderResponse{HTML: s.render(r.Context(), req.Message)})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	activity := r.PathValue("activity")
	if err := validation.ValidateActivityID(activity); err != nil {
		s.fail(w, r, err)
		return
	}

	limit := s.config.Chat.HistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.fail(w, r, chaterrors.NewValidationError(chaterrors.ErrCodeValidationFailed, "limit must be a positive integer"))
			return
		}
		limit = min(n, limit)
	}

	messages, err := s.store.List(r.Context(), activity, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	out := make([]chat.OutboundMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, chat.NewOutboundMessage(m, s.render(r.Context(), m.Body)))
	}

	writeJSON(w, http.StatusOK, historyResponse{ActivityID: activity, Messages: out})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, alertsResponse{Alerts: s.notifier.Visible()})
}

func (s *Server) handleDismissAlert(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.notifier.Hide(id) {
		s.fail(w, r, chaterrors.NewNotFoundError("ERR_ALERT_NOT_FOUND", "alert not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	activity := r.PathValue("activity")
	if err := validation.ValidateActivityID(activity); err != nil {
		s.fail(w, r, err)
		return
	}

	messages, err := s.store.List(r.Context(), activity, s.config.Chat.HistoryLimit)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	// The store returns newest first; the page reads top to bottom.
	items := make([]chat.OutboundMessage, len(messages))
	for i, m := range messages {
		items[len(messages)-1-i] = chat.NewOutboundMessage(m, s.render(r.Context(), m.Body))
	}

	page := pageData{
		ActivityID:  activity,
		Identity:    identityFrom(r),
		Messages:    items,
		Alerts:      s.notifier.Visible(),
		Development: s.config.IsDevelopment(),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := transcriptPage(page).Render(r.Context(), w); err != nil {
		s.logger.Error(r.Context(), err, "Failed to render transcript page", "room", activity)
	}
}

func (s *Server) handleScript(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write([]byte(chatScript))
}

// fail logs server-side failures and security rejections, then writes the
// error response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case chaterrors.HTTPStatus(err) >= http.StatusInternalServerError:
		fields := []interface{}{"path", r.URL.Path}
		if cause := chaterrors.ExtractCause(err); cause != nil && cause != err {
			fields = append(fields, "cause", cause.Error())
		}
		s.logger.Error(r.Context(), err, "Request failed", append(fields, errorFields(err)...)...)
	case chaterrors.IsSecurityError(err):
		details := chaterrors.GetErrorContext(err)
		details["path"] = r.URL.Path
		details["ip"] = getClientIP(r)
		logging.LogSecurityEvent(r.Context(), s.logger, "request_rejected", details)
	}
	writeError(w, err)
}

// errorFields flattens the context carried by err into sorted log fields.
func errorFields(err error) []interface{} {
	ctx := chaterrors.GetErrorContext(err)
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	fields := make([]interface{}, 0, 2*len(keys))
	for _, k := range keys {
		fields = append(fields, k, ctx[k])
	}
	return fields
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes err as {"error":{"code","message"}} without leaking
// internal details.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, chaterrors.HTTPStatus(err), errorResponse{Error: errorDetail{
		Code:    chaterrors.Code(err),
		Message: chaterrors.PublicMessage(err),
	}})
}
