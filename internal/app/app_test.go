package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"notebook-server/internal/config"
	"notebook-server/internal/domain"
	"notebook-server/internal/repository/migrations"
	"notebook-server/internal/service"

	"github.com/alicebob/miniredis/v2"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{Env: config.EnvTesting},
		Database: config.DatabaseConfig{
			Driver:      "sqlite3",
			URI:         filepath.Join(t.TempDir(), "notebook.db"),
			AutoMigrate: true,
		},
		JWT: config.JWTConfig{
			Secret:                 "app-test-secret",
			Expiration:             time.Minute,
			RefreshTokenExpiration: time.Hour,
		},
		Cache: config.CacheConfig{
			TTL:              time.Hour,
			OperationTimeout: time.Second,
		},
		CORS:     config.CORSConfig{AllowedOrigins: "*"},
		Security: config.SecurityConfig{BcryptCost: 4},
	}
}

func TestNew_MigratesAndServes(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer a.Close()

	if err := migrations.CheckDBMigrationStatus(a.DB, migrations.DialectSQLite); err != nil {
		t.Errorf("expected a current schema, got %v", err)
	}

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 from /health, got %d", rec.Code)
	}
}

func TestNew_RequiresMigratedSchema(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.AutoMigrate = false

	if _, err := New(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected an error for an unmigrated database")
	}
}

func TestNew_WithCache(t *testing.T) {
	s := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Cache.Enabled = true
	cfg.Cache.Addr = s.Addr()

	a, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer a.Close()

	user, err := a.Users.Create(context.Background(), &domain.CreateUserRequest{Username: "alice", Email: "alice@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("Create user failed: %v", err)
	}
	actor := domain.Principal{UserID: user.ID, Username: "alice"}
	note, err := a.Notes.Create(context.Background(), actor, &domain.CreateNoteRequest{Title: "cached"})
	if err != nil {
		t.Fatalf("Create note failed: %v", err)
	}
	if _, err := a.Notes.Get(context.Background(), actor, note.ID); err != nil {
		t.Fatalf("Get note failed: %v", err)
	}
	if !s.Exists("notes.1") {
		t.Error("expected the note to be cached")
	}
}

func TestNew_UnreachableCache(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Enabled = true
	cfg.Cache.Addr = "127.0.0.1:1"

	if _, err := New(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected an error for an unreachable cache")
	}
}

func TestNew_SystemIdentityOutsideRequests(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer a.Close()

	user, _ := a.Users.Create(context.Background(), &domain.CreateUserRequest{Username: "alice", Email: "alice@example.com", Password: "pw"})
	actor := domain.Principal{UserID: user.ID, Username: "alice"}
	note, _ := a.Notes.Create(context.Background(), actor, &domain.CreateNoteRequest{Title: "first"})
	if _, err := a.Notes.Update(context.Background(), service.SystemPrincipal, &domain.UpdateNoteRequest{ID: note.ID, Title: "second"}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	history, err := a.Notes.Versions(context.Background(), actor, note.ID)
	if err != nil {
		t.Fatalf("Versions failed: %v", err)
	}
	if len(history) != 1 || history[0].ModifiedBy != "system" {
		t.Errorf("expected one version modified by system, got %+v", history)
	}
}
