package middleware

import (
	"mime"
	"net/http"

	"notebook-server/pkg/response"
)

const MissingJSONMessage = "Missing JSON in request"

// RequireJSON rejects requests whose body is not declared as JSON.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "application/json" || r.Body == nil || r.Body == http.NoBody {
			response.BadRequest(w, MissingJSONMessage)
			return
		}
		next.ServeHTTP(w, r)
	})
}
