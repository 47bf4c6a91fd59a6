package middleware

import (
	"context"
	"net/http"

	"go.uber.org/zap"
)

type Toucher interface {
	Touch(ctx context.Context, username string) error
}

// LastSeenMiddleware records the activity of the authenticated caller once
// the request is served. Failed requests (500) are not recorded.
func LastSeenMiddleware(users Toucher, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := wrap(w)
			next.ServeHTTP(rw, r)

			if rw.statusCode == http.StatusInternalServerError {
				return
			}
			p, ok := GetPrincipal(r)
			if !ok || p.Username == "" {
				return
			}
			if err := users.Touch(r.Context(), p.Username); err != nil {
				logger.Warnw("failed to update last seen", "username", p.Username, "error", err)
			}
		})
	}
}
