package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kislikjeka/moneyledger/pkg/logger"
)

// errCapture keeps the body of error responses so the failure reason lands
// in the access log
type errCapture struct {
	chimiddleware.WrapResponseWriter
	buf bytes.Buffer
}

func (e *errCapture) Write(b []byte) (int, error) {
	if e.Status() >= http.StatusBadRequest && e.buf.Len() < 1024 {
		e.buf.Write(b)
	}
	return e.WrapResponseWriter.Write(b)
}

func (e *errCapture) errorCode() (msg, code string) {
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if json.Unmarshal(e.buf.Bytes(), &body) != nil {
		return "", ""
	}
	return body.Error, body.Code
}

// Logger writes one access log line per request. Health checks are logged at debug.
func Logger(log *logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ec := &errCapture{WrapResponseWriter: chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)}
			start := time.Now()

			reqID := chimiddleware.GetReqID(r.Context())
			if reqID != "" {
				w.Header().Set("X-Request-Id", reqID)
				r = r.WithContext(context.WithValue(r.Context(), logger.RequestIDKey, reqID))
			}

			defer func() {
				status := ec.Status()
				attrs := []any{
					"method", r.Method,
					"path", r.URL.Path,
					"status", status,
					"bytes", ec.BytesWritten(),
					"duration_ms", time.Since(start).Milliseconds(),
					"remote_addr", clientIP(r),
				}
				// chi fills the pattern in while routing
				if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
					attrs = append(attrs, "route", rctx.RoutePattern())
				}
				if reqID != "" {
					attrs = append(attrs, "request_id", reqID)
				}
				if status >= http.StatusBadRequest {
					if msg, code := ec.errorCode(); code != "" {
						attrs = append(attrs, "error", msg, "code", code)
					}
				}

				switch {
				case status >= http.StatusInternalServerError:
					log.Error("HTTP request", attrs...)
				case status >= http.StatusBadRequest:
					log.Warn("HTTP request", attrs...)
				case isHealthCheck(r.URL.Path):
					log.Debug("HTTP request", attrs...)
				default:
					log.Info("HTTP request", attrs...)
				}
			}()

			next.ServeHTTP(ec, r)
		}
		return http.HandlerFunc(fn)
	}
}

func isHealthCheck(path string) bool {
	return strings.HasPrefix(path, "/health") || path == "/metrics"
}
