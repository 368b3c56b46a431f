package middleware

import (
	"net/http"
	"strings"

	"github.com/bellhop-dev/bellhop/internal/apperr"
	"github.com/bellhop-dev/bellhop/internal/auth"
	"github.com/bellhop-dev/bellhop/internal/xcontext"
	"github.com/bellhop-dev/bellhop/internal/xhttp"
	"github.com/bellhop-dev/bellhop/internal/xslog"
)

// BearerAuth validates the Authorization header and sets the resolved user
// ID in the request context. userId is never taken from the query string.
func BearerAuth(validator auth.TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := xslog.FromContext(r.Context())

			token, err := extractBearerToken(r.Header.Get("Authorization"))
			if err != nil {
				xhttp.WriteError(w, apperr.Unauthorized(apperr.CodeAuthFailed, err.Error()))
				return
			}

			userID, err := validator.Validate(r.Context(), token)
			if err != nil {
				logger.WarnContext(r.Context(), "token validation failed",
					xslog.RequestPath(r),
					xslog.Error(err),
				)
				xhttp.WriteError(w, apperr.Unauthorized(apperr.CodeAuthFailed, "invalid or expired token"))
				return
			}

			ctx := xcontext.SetUserID(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractBearerToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", auth.ErrMissingToken
	}

	token, found := strings.CutPrefix(authHeader, "Bearer ")
	if !found || token == "" {
		return "", auth.ErrInvalidToken
	}

	return token, nil
}
