// Package middleware provides HTTP middleware for the folio server: request
// logging, panic recovery, security headers, CSRF protection, rate limiting
// and the session-driven access gate.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// responseWriter records the status and body size of a response.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	bytes      int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.statusCode = http.StatusOK
		rw.written = true
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

// Flush lets the interaction stream push events through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		if !rw.written {
			rw.statusCode = http.StatusOK
			rw.written = true
		}
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController, which
// the stream uses to lift the write deadline.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// quiet reports paths whose successful requests are only logged at debug
// level: health probes and static assets.
func quiet(path string) bool {
	return path == "/health" || strings.HasPrefix(path, "/static/")
}

// levelFor picks the log level for a finished request.
func levelFor(path string, status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case quiet(path) && status < 400:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// Logger records method, path, status, response size, duration and remote
// address for every request.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		slog.Log(r.Context(), levelFor(r.URL.Path, wrapped.statusCode), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"bytes", wrapped.bytes,
			"duration", time.Since(start).String(),
			"remote", r.RemoteAddr,
		)
	})
}
