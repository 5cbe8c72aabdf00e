package server

import (
	"bufio"
	"net"
	"net/http"
	"time"
)

// addMiddleware wraps handler with request logging, CORS, rate limiting and
// security headers, outermost first.
func (s *Server) addMiddleware(handler http.Handler) http.Handler {
	securityHandler := SecurityMiddleware(s.security)(handler)

	if s.config.Server.RateLimit.Enabled {
		securityHandler = RateLimitMiddleware(s.limiter, s.metrics)(securityHandler)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		origin := r.Header.Get("Origin")
		if s.isAllowedOrigin(origin) {
			rec.Header().Set("Access-Control-Allow-Origin", origin)
			rec.Header().Add("Vary", "Origin")
		} else if s.config.IsDevelopment() {
			// Only allow wildcard in development
			rec.Header().Set("Access-Control-Allow-Origin", "*")
		}

		rec.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		rec.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-User-ID, X-User-Name")

		if r.Method == http.MethodOptions {
			rec.WriteHeader(http.StatusNoContent)
		} else {
			securityHandler.ServeHTTP(rec, r)
		}

		s.metrics.observeRequest(r.Method, rec.status)
		s.logger.Debug(r.Context(), "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

// isAllowedOrigin checks if the origin is in the allowed origins list
func (s *Server) isAllowedOrigin(origin string) bool {
	if origin == "" {
		return false
	}

	for _, allowed := range s.config.Server.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}

	return false
}

// statusRecorder captures the response status. It keeps Hijack reachable
// so WebSocket upgrades pass through.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	r.status = http.StatusSwitchingProtocols
	r.wroteHeader = true
	return http.NewResponseController(r.ResponseWriter).Hijack()
}

func (r *statusRecorder) Flush() {
	_ = http.NewResponseController(r.ResponseWriter).Flush()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
