// Package server implements the chat HTTP surface: the render API, chat
// history, per-activity WebSocket rooms, transcript pages, alerts and
// metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/conneroisu/chatmark/internal/alert"
	"github.com/conneroisu/chatmark/internal/chat"
	"github.com/conneroisu/chatmark/internal/config"
	chaterrors "github.com/conneroisu/chatmark/internal/errors"
	"github.com/conneroisu/chatmark/internal/logging"
	"github.com/conneroisu/chatmark/internal/markdown"
	"github.com/conneroisu/chatmark/internal/validation"
)

// Deps are the collaborators a Server uses. Nil fields are built from the
// configuration. The Server takes ownership of Store and Notifier and
// closes them on Shutdown.
type Deps struct {
	Logger   logging.Logger
	Renderer *markdown.Renderer
	Store    chat.Store
	Notifier *alert.Notifier
}

// Server serves chat rooms and the render API.
type Server struct {
	config   *config.Config
	logger   logging.Logger
	renderer *markdown.Renderer
	store    chat.Store
	notifier *alert.Notifier
	hub      *Hub
	metrics  *Metrics
	security *SecurityConfig
	limiter  *RateLimiter

	handlerOnce sync.Once
	handler     http.Handler

	// ctx lives until Shutdown and bounds the hub and every WebSocket client.
	ctx    context.Context
	cancel context.CancelFunc

	httpServer  *http.Server
	addr        net.Addr
	serverMutex sync.RWMutex
	isShutdown  bool

	alertTargets sync.Map // alert id -> *Client
	unsubscribe  func()
	shutdownOnce sync.Once
}

// identity is the sender as asserted by the upstream proxy.
type identity struct {
	ID   string
	Name string
}

// New creates a chat server and starts its hub. Call Shutdown to release it.
func New(cfg *config.Config, deps Deps) (*Server, error) {
	cfg = withDefaults(cfg)

	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logger.WithComponent("server")

	renderer := deps.Renderer
	if renderer == nil {
		renderer = markdown.New(markdown.WithClasses(cfg.Render.Classes), markdown.WithGFM(cfg.Render.GFM))
	}

	store := deps.Store
	if store == nil {
		var err error
		store, err = chat.Open(context.Background(), cfg.Chat.StoreDSN)
		if err != nil {
			return nil, err
		}
	}

	notifier := deps.Notifier
	if notifier == nil {
		notifier = alert.New(cfg.Alerts.TTL, alert.WithMaxAlerts(cfg.Alerts.MaxAlerts))
	}

	metrics := NewMetrics()
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		config:   cfg,
		logger:   logger,
		renderer: renderer,
		store:    store,
		notifier: notifier,
		metrics:  metrics,
		hub:      newHub(logger.WithComponent("hub"), metrics),
		security: SecurityConfigFromAppConfig(cfg, logger),
		limiter:  NewRateLimiter(cfg.Server.RateLimit, logger),
		ctx:      ctx,
		cancel:   cancel,
	}
	s.unsubscribe = notifier.Subscribe(s.onAlert)

	go s.hub.run(ctx)
	go s.pruneAlerts(ctx, time.Minute)

	return s, nil
}

// withDefaults copies cfg and fills zero values the server cannot run with.
func withDefaults(cfg *config.Config) *config.Config {
	d := config.Default()
	if cfg == nil {
		return d
	}
	c := *cfg
	if c.Server.MaxBodyBytes <= 0 {
		c.Server.MaxBodyBytes = d.Server.MaxBodyBytes
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = d.Server.ShutdownTimeout
	}
	if c.Chat.MaxImages <= 0 {
		c.Chat.MaxImages = d.Chat.MaxImages
	}
	if c.Chat.MaxMessageBytes <= 0 {
		c.Chat.MaxMessageBytes = d.Chat.MaxMessageBytes
	}
	if c.Chat.HistoryLimit <= 0 {
		c.Chat.HistoryLimit = d.Chat.HistoryLimit
	}
	if c.Chat.SendBuffer <= 0 {
		c.Chat.SendBuffer = d.Chat.SendBuffer
	}
	return &c
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	s.handlerOnce.Do(func() {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /health", s.handleHealth)
		mux.Handle("GET /metrics", s.metrics.Handler())
		mux.HandleFunc("POST /api/render", s.handleRender)
		mux.HandleFunc("GET /api/chat/{activity}/messages", s.handleHistory)
		mux.HandleFunc("GET /api/alerts", s.handleAlerts)
		mux.HandleFunc("POST /api/alerts/{id}/dismiss", s.handleDismissAlert)
		mux.HandleFunc("GET /ws/chat/{activity}", s.handleWebSocket)
		mux.HandleFunc("GET /chat/{activity}", s.handleTranscript)
		mux.HandleFunc("GET /static/chat.js", s.handleScript)

		s.handler = s.addMiddleware(mux)
	})
	return s.handler
}

// Start listens on the configured address and serves until ctx is done or
// Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Server.Host, strconv.Itoa(s.config.Server.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return chaterrors.NewNetworkError("ERR_LISTEN", "cannot listen on "+addr, err)
	}

	if s.config.Server.Open && !s.config.Server.NoOpen {
		go s.openBrowser(fmt.Sprintf("http://%s", ln.Addr().String()))
	}

	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done or Shutdown is called.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.serverMutex.Lock()
	if s.isShutdown {
		s.serverMutex.Unlock()
		_ = ln.Close()
		return http.ErrServerClosed
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.config.Server.ReadTimeout,
		ErrorLog:          logging.NewStdLogger(s.logger, logging.LevelWarn),
		BaseContext:       func(net.Listener) context.Context { return s.ctx },
	}
	s.addr = ln.Addr()
	server := s.httpServer
	s.serverMutex.Unlock()

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(shutdownCtx, err, "Shutdown failed")
		}
	})
	defer stop()

	s.logger.Info(ctx, "Chat server listening", "addr", ln.Addr().String())
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return chaterrors.NewNetworkError("ERR_SERVE", "server error", err)
	}
	return nil
}

// Addr returns the listening address once Serve has started.
func (s *Server) Addr() net.Addr {
	s.serverMutex.RLock()
	defer s.serverMutex.RUnlock()
	return s.addr
}

// Shutdown stops the HTTP server, disconnects every client and closes the
// notifier and store. It is safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		var errs []error
		s.logger.Info(ctx, "Shutting down chat server")

		s.serverMutex.Lock()
		s.isShutdown = true
		server := s.httpServer
		s.serverMutex.Unlock()

		// Cancelling first makes the hub close every client right away.
		s.cancel()
		if server != nil {
			errs = append(errs, server.Shutdown(ctx))
		}

		select {
		case <-s.hub.done:
		case <-ctx.Done():
			errs = append(errs, ctx.Err())
		}

		s.unsubscribe()
		s.limiter.Stop()
		s.notifier.Close()
		errs = append(errs, s.store.Close())
		shutdownErr = chaterrors.CombineErrors(errs...)
	})

	return shutdownErr
}

// handleInbound validates, stores, renders and broadcasts one client frame.
func (s *Server) handleInbound(ctx context.Context, c *Client, data []byte) {
	if res := s.limiter.Check("ws:" + c.identity.ID + "@" + c.remoteIP); !res.Allowed {
		s.metrics.rateLimited.WithLabelValues("websocket").Inc()
		s.raiseAlert(ctx, c, chaterrors.NewValidationError("RATE_LIMIT_EXCEEDED", "you are sending messages too quickly"))
		return
	}

	frame, err := chat.ParseFrame(data)
	if err != nil {
		s.logger.Warn(ctx, err, "Rejected chat frame", "room", c.room, "user", c.identity.ID)
		s.raiseAlert(ctx, c, err)
		return
	}

	frame, rejected, err := frame.Normalize(s.config.Chat.MaxImages)
	for _, img := range rejected {
		s.metrics.rejectedImages.Inc()
		s.logger.Warn(ctx, img.Reason, "Image attachment dropped",
			"room", c.room, "user", c.identity.ID, "url", logging.SanitizeForLog(img.URL))
	}
	if len(rejected) > 0 {
		s.notify(c, alert.LevelWarning, fmt.Sprintf("%d image(s) could not be attached", len(rejected)))
	}
	if err != nil {
		s.raiseAlert(ctx, c, err)
		return
	}

	msg := &chat.Message{
		ActivityID: c.room,
		SenderID:   c.identity.ID,
		SenderName: c.identity.Name,
		Body:       frame.Message,
		Images:     frame.Images,
	}
	if err := s.store.Append(ctx, msg); err != nil {
		s.logger.Error(ctx, err, "Failed to store chat message", "room", c.room)
		s.raiseAlert(ctx, c, err)
		return
	}
	s.metrics.messages.Inc()

	payload, err := json.Marshal(chat.NewOutboundMessage(*msg, s.render(ctx, msg.Body)))
	if err != nil {
		s.logger.Error(ctx, err, "Failed to encode chat message", "room", c.room)
		return
	}
	s.hub.Broadcast(c.room, payload)
}

// render runs the markdown pipeline and records metrics.
func (s *Server) render(ctx context.Context, body string) string {
	op := logging.StartOperation(s.logger, "render")
	start := time.Now()
	html := s.renderer.Render(body)
	s.metrics.observeRender(start, html)
	op.End(ctx, "input_bytes", len(body), "output_bytes", len(html))
	return html
}

// raiseAlert turns err into an error alert for the client that caused it.
func (s *Server) raiseAlert(ctx context.Context, c *Client, err error) {
	level := alert.LevelError
	if chaterrors.IsRecoverable(err) {
		level = alert.LevelWarning
	}
	s.logger.Debug(ctx, "Raising alert", "room", c.room, "code", chaterrors.Code(err))
	s.notify(c, level, chaterrors.PublicMessage(err))
}

// notify raises an alert for c alone. The target is recorded and the alert
// frame queued before the expiry timer starts, so the hide frame always
// follows the show frame.
func (s *Server) notify(c *Client, level alert.Level, content string) {
	a := s.notifier.Add(level, content, alert.BeforeSchedule(func(a alert.Alert) {
		s.alertTargets.Store(a.ID, c)
		payload, err := json.Marshal(chat.NewOutboundAlert(a))
		if err != nil {
			return
		}
		s.hub.sendTo(c, payload)
	}))
	if !a.Visible {
		s.alertTargets.Delete(a.ID)
	}
}

// onAlert forwards expiry and dismissal of client alerts to that client.
// Additions are pushed by notify directly.
func (s *Server) onAlert(a alert.Alert) {
	if a.Visible {
		return
	}
	target, ok := s.alertTargets.LoadAndDelete(a.ID)
	if !ok {
		return
	}
	payload, err := json.Marshal(chat.NewOutboundAlert(a))
	if err != nil {
		return
	}
	s.hub.sendTo(target.(*Client), payload)
}

func (s *Server) pruneAlerts(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.notifier.Prune(); n > 0 {
				s.logger.Debug(ctx, "Pruned hidden alerts", "count", n)
			}
		}
	}
}

// identityFrom reads the sender identity set by the authenticating proxy.
func identityFrom(r *http.Request) identity {
	id := cleanHeader(r.Header.Get("X-User-ID"))
	name := cleanHeader(r.Header.Get("X-User-Name"))
	if id == "" {
		id = chat.Anonymous
	}
	if name == "" {
		name = id
	}
	return identity{ID: id, Name: name}
}

func cleanHeader(v string) string {
	v = strings.Join(strings.Fields(validation.SanitizeInput(v)), " ")
	for utf8.RuneCountInString(v) > 64 {
		_, size := utf8.DecodeLastRuneInString(v)
		v = v[:len(v)-size]
	}
	return v
}

func (s *Server) openBrowser(url string) {
	time.Sleep(100 * time.Millisecond)

	if err := validation.ValidateURL(url); err != nil {
		s.logger.Warn(s.ctx, err, "Browser open failed due to invalid URL")
		return
	}

	var err error
	switch runtime.GOOS {
	case "linux":
		err = exec.Command("xdg-open", url).Start()
	case "windows":
		err = exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	case "darwin":
		err = exec.Command("open", url).Start()
	default:
		err = fmt.Errorf("unsupported platform")
	}

	if err != nil {
		s.logger.Warn(s.ctx, err, "Failed to open browser")
	}
}
