package middleware

import (
	"context"
	"net/http"
	"strings"

	"notebook-server/internal/domain"
	"notebook-server/pkg/jwt"
	"notebook-server/pkg/response"
)

type contextKey string

const principalKey contextKey = "principal"

// AuthMiddleware accepts access tokens only and stores the caller's
// principal in the request context.
func AuthMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.Unauthorized(w, "Missing authorization header")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				response.Unauthorized(w, "Invalid authorization header format")
				return
			}

			claims, err := jwt.ValidateTokenType(parts[1], jwtSecret, jwt.TypeAccess)
			if err != nil {
				response.Unauthorized(w, "Invalid or expired token")
				return
			}

			ctx := WithPrincipal(r.Context(), domain.Principal{
				UserID:   claims.UserID,
				Username: claims.Username(),
				IsAdmin:  claims.IsAdmin,
			})
			setRequestUser(ctx, claims.Username())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects callers without the admin claim.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := GetPrincipal(r); !ok || !p.IsAdmin {
			response.Forbidden(w, domain.ErrForbidden.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFromContext(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(principalKey).(domain.Principal)
	return p, ok
}

func GetPrincipal(r *http.Request) (domain.Principal, bool) {
	return PrincipalFromContext(r.Context())
}

// Username reports the authenticated username carried by ctx. It is the
// identity source of the version recorder.
func Username(ctx context.Context) (string, bool) {
	p, ok := PrincipalFromContext(ctx)
	if !ok || p.Username == "" {
		return "", false
	}
	return p.Username, true
}
