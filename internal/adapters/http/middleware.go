package httpadapter

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"
)

const (
	requestIDHeader = "X-Request-Id"
	maxRequestIDLen = 128
)

// requestInfo rides in the request context. Handlers deeper in the chain fill in the
// session they resolved so the access log and panic log can report it.
type requestInfo struct {
	id        string
	sessionID string
}

type requestInfoKey struct{}

func infoFromContext(ctx context.Context) *requestInfo {
	if ctx == nil {
		return nil
	}
	info, _ := ctx.Value(requestInfoKey{}).(*requestInfo)
	return info
}

func requestIDFromContext(ctx context.Context) string {
	if info := infoFromContext(ctx); info != nil {
		return info.id
	}
	return ""
}

func sessionIDFromContext(ctx context.Context) string {
	if info := infoFromContext(ctx); info != nil {
		return info.sessionID
	}
	return ""
}

// annotateSession records the session a request operates on. Handlers run on the
// middleware's goroutine, so no locking is needed.
func annotateSession(ctx context.Context, sessionID string) {
	if info := infoFromContext(ctx); info != nil {
		info.sessionID = sessionID
	}
}

// requestIDMiddleware propagates a caller's X-Request-Id when it is a plain token and
// mints a UUID otherwise; the id ends up in log lines and error bodies.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if !validRequestID(id) {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestInfoKey{}, &requestInfo{id: id})))
	})
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.', c == ':':
		default:
			return false
		}
	}
	return true
}

func accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(recorder, r)

		attrs := []any{
			"request_id", requestIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.statusCode,
			"duration_ms", float64(time.Since(start).Microseconds()) / 1000.0,
			"bytes", recorder.bytesWritten,
			"remote_addr", remoteHost(r.RemoteAddr),
		}
		if sessionID := sessionIDFromContext(r.Context()); sessionID != "" {
			attrs = append(attrs, "session_id", sessionID)
		}
		slog.Log(r.Context(), levelForStatus(recorder.statusCode), "http_request", attrs...)
	})
}

func levelForStatus(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

func remoteHost(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// recoverMiddleware logs a handler panic with its stack and answers 500.
func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var catcher panics.Catcher
		catcher.Try(func() { next.ServeHTTP(w, r) })
		recovered := catcher.Recovered()
		if recovered == nil {
			return
		}
		slog.Error("http_panic",
			"request_id", requestIDFromContext(r.Context()),
			"session_id", sessionIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"panic", recovered.Value,
			"stack", string(recovered.Stack),
		)
		writeErrorMessage(w, r, http.StatusInternalServerError, "internal error")
	})
}

// statusRecorder remembers the status and body size for the access log. Unwrap lets
// http.ResponseController reach the underlying writer.
type statusRecorder struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytesWritten += n
	return n, err
}

func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
