package middleware

import (
	"net/http"

	"github.com/bellhop-dev/bellhop/internal/xcontext"
)

// ShutdownContext marks requests whose base context was already cancelled
// by a server shutdown, so downstream logging can tell a shutdown-aborted
// request from a client disconnect.
func ShutdownContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if ctx.Err() != nil {
			r = r.WithContext(xcontext.SetShutdownInProgress(ctx, true))
		}
		next.ServeHTTP(w, r)
	})
}
