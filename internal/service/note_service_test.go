package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"notebook-server/internal/cache"
	"notebook-server/internal/domain"
	"notebook-server/internal/repository"
	"notebook-server/internal/testutil"
	"notebook-server/internal/versioning"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type actorKey struct{}

func withActor(ctx context.Context, actor domain.Principal) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func actorName(ctx context.Context) (string, bool) {
	actor, ok := ctx.Value(actorKey{}).(domain.Principal)
	return actor.Username, ok
}

type testEnv struct {
	store *repository.Store
	clock *testutil.StubClock
	users *UserService
	notes *NoteService
}

func newTestEnv(t *testing.T, noteCache cache.NoteCache) *testEnv {
	t.Helper()
	clock := testutil.FixedClock()
	store := repository.NewStore(testutil.NewTestDB(t), clock, nil, versioning.NewRecorder(actorName, clock, nil))
	return &testEnv{
		store: store,
		clock: clock,
		users: NewUserService(store, noteCache, clock, bcrypt.MinCost, nil),
		notes: NewNoteService(store, noteCache, nil),
	}
}

func (e *testEnv) principal(t *testing.T, username string, admin bool) domain.Principal {
	t.Helper()
	user, err := e.users.Create(context.Background(), &domain.CreateUserRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "password",
	})
	if err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	if admin {
		if _, err := e.users.SetAdmin(context.Background(), SystemPrincipal, username, true); err != nil {
			t.Fatalf("failed to grant admin: %v", err)
		}
	}
	return domain.Principal{UserID: user.ID, Username: username, IsAdmin: admin}
}

func strPtr(s string) *string { return &s }

func TestNoteService_Create(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := env.principal(t, "alice", false)

	tests := []struct {
		name    string
		actor   domain.Principal
		req     *domain.CreateNoteRequest
		wantErr error
	}{
		{
			name:  "valid note",
			actor: alice,
			req:   &domain.CreateNoteRequest{Title: "Some title", Text: strPtr("some text")},
		},
		{
			name:    "empty title",
			actor:   alice,
			req:     &domain.CreateNoteRequest{Title: "", Text: strPtr("some text")},
			wantErr: domain.ErrEmptyTitle,
		},
		{
			name:    "blank title",
			actor:   alice,
			req:     &domain.CreateNoteRequest{Title: "   "},
			wantErr: domain.ErrEmptyTitle,
		},
		{
			name:    "unknown creator",
			actor:   domain.Principal{UserID: 999, Username: "ghost"},
			req:     &domain.CreateNoteRequest{Title: "x"},
			wantErr: domain.ErrInvalidOwner,
		},
		{
			name:    "no creator",
			actor:   domain.Principal{},
			req:     &domain.CreateNoteRequest{Title: "x"},
			wantErr: domain.ErrInvalidOwner,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			note, err := env.notes.Create(withActor(context.Background(), tt.actor), tt.actor, tt.req)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if note.ID == 0 {
				t.Error("expected note ID to be assigned")
			}
			if note.VersionNum != 1 {
				t.Errorf("expected version 1, got %d", note.VersionNum)
			}
			if note.CreatedBy != tt.actor.UserID {
				t.Errorf("expected owner %d, got %d", tt.actor.UserID, note.CreatedBy)
			}
		})
	}
}

func TestNoteService_UpdateArchivesVersions(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := env.principal(t, "alice", false)
	ctx := withActor(context.Background(), alice)

	note, err := env.notes.Create(ctx, alice, &domain.CreateNoteRequest{Title: "Untitled"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	for _, title := range []string{"version 1 text", "version 2 text"} {
		env.clock.Advance(time.Minute)
		if _, err := env.notes.Update(ctx, alice, &domain.UpdateNoteRequest{ID: note.ID, Title: title}); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
	}

	got, err := env.notes.Get(ctx, alice, note.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.VersionNum != 3 {
		t.Errorf("expected version 3, got %d", got.VersionNum)
	}
	if len(got.Versions) != 2 || got.Versions[0] != 1 || got.Versions[1] != 2 {
		t.Errorf("expected versions [1 2], got %v", got.Versions)
	}

	history, err := env.notes.Versions(ctx, alice, note.ID)
	if err != nil {
		t.Fatalf("Versions failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 archived versions, got %d", len(history))
	}
	if history[0].Title != "Untitled" || history[0].ModifiedBy != "alice" {
		t.Errorf("unexpected first version %+v", history[0])
	}
	if history[1].Title != "version 1 text" {
		t.Errorf("expected second version title %q, got %q", "version 1 text", history[1].Title)
	}
}

func TestNoteService_UpdateWithoutChangesKeepsVersion(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := env.principal(t, "alice", false)

	note, _ := env.notes.Create(context.Background(), alice, &domain.CreateNoteRequest{Title: "same", Text: strPtr("same")})
	updated, err := env.notes.Update(context.Background(), alice, &domain.UpdateNoteRequest{ID: note.ID, Title: "same", Text: strPtr("same")})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.VersionNum != 1 {
		t.Errorf("expected version 1, got %d", updated.VersionNum)
	}
}

func TestNoteService_UpdateErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := env.principal(t, "alice", false)
	bob := env.principal(t, "bob", false)
	note, _ := env.notes.Create(context.Background(), alice, &domain.CreateNoteRequest{Title: "mine"})

	tests := []struct {
		name    string
		actor   domain.Principal
		req     *domain.UpdateNoteRequest
		wantErr error
	}{
		{"unknown note", alice, &domain.UpdateNoteRequest{ID: note.ID + 100, Title: "x"}, domain.ErrNoteNotFound},
		{"empty title", alice, &domain.UpdateNoteRequest{ID: note.ID, Title: ""}, domain.ErrEmptyTitle},
		{"someone else's note", bob, &domain.UpdateNoteRequest{ID: note.ID, Title: "x"}, domain.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.notes.Update(context.Background(), tt.actor, tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNoteService_AdminAccess(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := env.principal(t, "alice", false)
	admin := env.principal(t, "root", true)
	note, _ := env.notes.Create(context.Background(), alice, &domain.CreateNoteRequest{Title: "mine"})

	updated, err := env.notes.Update(withActor(context.Background(), admin), admin, &domain.UpdateNoteRequest{ID: note.ID, Title: "moderated"})
	if err != nil {
		t.Fatalf("admin update failed: %v", err)
	}
	if updated.CreatedBy != alice.UserID {
		t.Errorf("expected owner to stay %d, got %d", alice.UserID, updated.CreatedBy)
	}

	history, err := env.notes.Versions(context.Background(), alice, note.ID)
	if err != nil {
		t.Fatalf("Versions failed: %v", err)
	}
	if len(history) != 1 || history[0].ModifiedBy != "root" {
		t.Errorf("expected one version modified by root, got %+v", history)
	}
}

func TestNoteService_List(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := env.principal(t, "alice", false)
	bob := env.principal(t, "bob", false)
	admin := env.principal(t, "root", true)

	for _, title := range []string{"a1", "a2", "a3"} {
		env.notes.Create(context.Background(), alice, &domain.CreateNoteRequest{Title: title})
	}
	env.notes.Create(context.Background(), bob, &domain.CreateNoteRequest{Title: "b1"})

	tests := []struct {
		name      string
		actor     domain.Principal
		query     domain.ListQuery
		wantTotal int
		wantItems int
	}{
		{"own notes", alice, domain.ListQuery{}, 3, 3},
		{"paged", alice, domain.ListQuery{Page: 2, PerPage: 2}, 3, 1},
		{"other user", bob, domain.ListQuery{}, 1, 1},
		{"admin sees all", admin, domain.ListQuery{}, 4, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := env.notes.List(context.Background(), tt.actor, tt.query)
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if page.Total != tt.wantTotal || len(page.EntityList) != tt.wantItems {
				t.Errorf("expected %d/%d, got %d/%d", tt.wantItems, tt.wantTotal, len(page.EntityList), page.Total)
			}
		})
	}

	_, err := env.notes.List(context.Background(), alice, domain.ListQuery{Order: &domain.Order{Column: "versions"}})
	if !errors.Is(err, domain.ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery, got %v", err)
	}
}

func TestNoteService_Delete(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := env.principal(t, "alice", false)
	bob := env.principal(t, "bob", false)
	note, _ := env.notes.Create(context.Background(), alice, &domain.CreateNoteRequest{Title: "mine"})

	if err := env.notes.Delete(context.Background(), bob, note.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if err := env.notes.Delete(context.Background(), alice, note.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := env.notes.Get(context.Background(), alice, note.ID); !errors.Is(err, domain.ErrNoteNotFound) {
		t.Errorf("expected ErrNoteNotFound, got %v", err)
	}
}

func TestNoteService_CachedReads(t *testing.T) {
	s := miniredis.RunT(t)
	client, err := cache.NewClient(context.Background(), s.Addr(), "", "", time.Second)
	if err != nil {
		t.Fatalf("failed to connect to cache: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	env := newTestEnv(t, cache.NewRedisNoteCache(client, time.Hour, time.Second, zap.NewNop().Sugar()))
	alice := env.principal(t, "alice", false)
	bob := env.principal(t, "bob", false)
	note, _ := env.notes.Create(context.Background(), alice, &domain.CreateNoteRequest{Title: "cached"})

	if _, err := env.notes.Get(context.Background(), alice, note.ID); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !s.Exists("notes.1") {
		t.Fatal("expected note to be cached")
	}

	if _, err := env.notes.Get(context.Background(), bob, note.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("expected cached read to enforce ownership, got %v", err)
	}

	if _, err := env.notes.Update(context.Background(), alice, &domain.UpdateNoteRequest{ID: note.ID, Title: "changed"}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if s.Exists("notes.1") {
		t.Error("expected update to invalidate the cached note")
	}

	got, err := env.notes.Get(context.Background(), alice, note.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Title != "changed" || got.VersionNum != 2 {
		t.Errorf("expected fresh note, got %q v%d", got.Title, got.VersionNum)
	}
}

func TestNoteService_CachedReadsAfterOwnerDeleted(t *testing.T) {
	s := miniredis.RunT(t)
	client, err := cache.NewClient(context.Background(), s.Addr(), "", "", time.Second)
	if err != nil {
		t.Fatalf("failed to connect to cache: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	env := newTestEnv(t, cache.NewRedisNoteCache(client, time.Hour, time.Second, zap.NewNop().Sugar()))
	admin := env.principal(t, "root", true)
	alice := env.principal(t, "alice", false)
	note, err := env.notes.Create(context.Background(), alice, &domain.CreateNoteRequest{Title: "secret"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := env.notes.Get(context.Background(), alice, note.ID); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !s.Exists(fmt.Sprintf("notes.%d", note.ID)) {
		t.Fatal("expected note to be cached")
	}

	if _, err := env.users.Delete(context.Background(), admin, "alice"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if s.Exists(fmt.Sprintf("notes.%d", note.ID)) {
		t.Error("expected deleting the owner to invalidate the cached note")
	}

	if _, err := env.notes.Get(context.Background(), admin, note.ID); !errors.Is(err, domain.ErrNoteNotFound) {
		t.Errorf("expected ErrNoteNotFound for a note of a deleted user, got %v", err)
	}
}
