// Package trace assigns request ids and writes the access log.
package trace

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"bolso/internal/log"
)

// HeaderRequestID carries the request id in and out.
const HeaderRequestID = "X-Request-ID"

const maxIncomingIDLength = 64

type ctxKey struct{}

type Middleware struct {
	logger    *log.Logger
	extractIP func(*http.Request) string

	total  int64
	failed int64
}

func NewMiddleware(logger *log.Logger, extractIP func(*http.Request) string) *Middleware {
	return &Middleware{logger: logger.WithComponent(log.ComponentHTTP), extractIP: extractIP}
}

// Middleware tags the request with an id, stores a request-scoped logger in
// the context and logs the request when it completes.
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := incomingID(r.Header.Get(HeaderRequestID))
		if requestID == "" {
			requestID = GenerateRequestID()
		}
		w.Header().Set(HeaderRequestID, requestID)

		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}

		reqLogger := m.logger.With(log.FieldRequestID, requestID)
		ctx := context.WithValue(r.Context(), ctxKey{}, requestID)
		ctx = log.WithLogger(ctx, reqLogger)
		r = r.WithContext(ctx)

		atomic.AddInt64(&m.total, 1)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		fields := log.NewFields().
			WithClientIP(clientIP).
			WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent")).
			WithHTTPResponse(rw.statusCode, time.Since(start).Milliseconds())

		switch {
		case rw.statusCode >= 500:
			atomic.AddInt64(&m.failed, 1)
			reqLogger.ErrorContext(ctx, "HTTP request completed", fields.ToSlice()...)
		case rw.statusCode >= 400:
			reqLogger.WarnContext(ctx, "HTTP request completed", fields.ToSlice()...)
		default:
			reqLogger.InfoContext(ctx, "HTTP request completed", fields.ToSlice()...)
		}
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// incomingID accepts a caller-provided id when it is short and printable.
func incomingID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > maxIncomingIDLength {
		return ""
	}
	for _, r := range id {
		if r < 0x21 || r > 0x7e {
			return ""
		}
	}
	return id
}

func GenerateRequestID() string {
	return "req_" + uuid.NewString()
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKey{}).(string); ok {
		return id
	}
	return ""
}

// Counts returns the requests served and how many ended in a 5xx.
func (m *Middleware) Counts() (total, failed int64) {
	return atomic.LoadInt64(&m.total), atomic.LoadInt64(&m.failed)
}
