package handler

import (
	"net/http"

	"notebook-server/internal/config"
	"notebook-server/internal/middleware"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type Handlers struct {
	Auth   *AuthHandler
	Notes  *NoteHandler
	Users  *UserHandler
	Health *HealthHandler
}

// NewRouter mounts every route under /api/v1. Everything but the auth
// endpoints requires an access token.
func NewRouter(h Handlers, jwtSecret string, cors config.CORSConfig, users middleware.Toucher, logger *zap.SugaredLogger) *mux.Router {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	r := mux.NewRouter()

	r.Use(middleware.LoggerMiddleware(logger))
	r.Use(middleware.CORSMiddleware(
		cors.AllowedOrigins,
		cors.AllowedMethods,
		cors.AllowedHeaders,
	))

	api := r.PathPrefix("/api/v1").Subrouter()

	api.Handle("/auth/login", jsonBody(h.Auth.Login)).Methods("POST", "OPTIONS")
	api.Handle("/auth/refresh", jsonBody(h.Auth.Refresh)).Methods("POST", "OPTIONS")

	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.AuthMiddleware(jwtSecret))
	protected.Use(middleware.LastSeenMiddleware(users, logger))

	protected.Handle("/note", jsonBody(h.Notes.Create)).Methods("POST", "OPTIONS")
	protected.Handle("/note", jsonBody(h.Notes.Update)).Methods("PUT", "OPTIONS")
	protected.HandleFunc("/note/{id:[0-9]+}", h.Notes.Get).Methods("GET", "OPTIONS")
	protected.HandleFunc("/note/{id:[0-9]+}/versions", h.Notes.Versions).Methods("GET", "OPTIONS")
	protected.HandleFunc("/note/{id:[0-9]+}", h.Notes.Delete).Methods("DELETE", "OPTIONS")
	protected.HandleFunc("/notes", h.Notes.List).Methods("GET", "OPTIONS")

	protected.Handle("/user", admin(jsonBody(h.Users.Create))).Methods("POST", "OPTIONS")
	protected.Handle("/user", jsonBody(h.Users.Modify)).Methods("PUT", "OPTIONS")
	protected.Handle("/user/admin", admin(jsonBody(h.Users.SetAdmin))).Methods("PUT", "OPTIONS")
	protected.HandleFunc("/user", h.Users.Get).Methods("GET", "OPTIONS")
	protected.Handle("/user", admin(jsonBody(h.Users.Delete))).Methods("DELETE", "OPTIONS")
	protected.Handle("/users", admin(http.HandlerFunc(h.Users.List))).Methods("GET", "OPTIONS")

	r.HandleFunc("/health", h.Health.Health).Methods("GET")
	r.HandleFunc("/", h.Health.Root).Methods("GET")

	return r
}

func jsonBody(fn http.HandlerFunc) http.Handler {
	return middleware.RequireJSON(fn)
}

func admin(next http.Handler) http.Handler {
	return middleware.RequireAdmin(next)
}
