package middleware

import (
	"bufio"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/bellhop-dev/bellhop/internal/xcontext"
	"github.com/bellhop-dev/bellhop/internal/xslog"
)

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack passes through to the underlying writer so the websocket
// upgrade can take over the TCP connection.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return hj.Hijack()
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		requestID, _ := xcontext.GetRequestID(r.Context())
		attrs := []any{
			xslog.RequestID(requestID),
			xslog.RequestMethod(r),
			xslog.RequestPath(r),
			xslog.HTTPStatus(wrapped.status),
			xslog.Duration(time.Since(start)),
		}
		if xcontext.IsShutdownInProgress(r.Context()) {
			attrs = append(attrs, slog.Bool("shutdown", true))
		}
		xslog.FromContext(r.Context()).InfoContext(r.Context(), "http request", attrs...)
	})
}
