package cache

import (
	"context"
	"testing"
	"time"

	"notebook-server/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"
)

func newTestCache(t *testing.T) (NoteCache, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)

	client, err := NewClient(context.Background(), s.Addr(), "", "", time.Second)
	if err != nil {
		t.Fatalf("failed to connect to cache: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return NewRedisNoteCache(client, time.Hour, time.Second, zap.NewNop().Sugar()), s
}

func TestRedisNoteCache_SetGet(t *testing.T) {
	c, s := newTestCache(t)
	ctx := context.Background()

	if _, ok := c.Get(ctx, 1); ok {
		t.Fatal("expected miss on empty cache")
	}

	text := "body"
	c.Set(ctx, &domain.NoteResponse{ID: 1, CreatedBy: 2, Title: "title", Text: &text, VersionNum: 3, Versions: []int{1, 2}})

	if !s.Exists("notes.1") {
		t.Fatal("expected key notes.1 to be set")
	}
	if ttl := s.TTL("notes.1"); ttl != time.Hour {
		t.Errorf("expected ttl 1h, got %v", ttl)
	}

	got, ok := c.Get(ctx, 1)
	if !ok {
		t.Fatal("expected hit")
	}
	if got.Title != "title" || got.CreatedBy != 2 || got.VersionNum != 3 || len(got.Versions) != 2 {
		t.Errorf("unexpected cached note %+v", got)
	}
	if got.Text == nil || *got.Text != "body" {
		t.Errorf("expected text body, got %v", got.Text)
	}
}

func TestRedisNoteCache_Invalidate(t *testing.T) {
	c, s := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, &domain.NoteResponse{ID: 5, Title: "t"})
	c.Invalidate(ctx, 5)

	if s.Exists("notes.5") {
		t.Error("expected key to be removed")
	}
	if _, ok := c.Get(ctx, 5); ok {
		t.Error("expected miss after invalidation")
	}
}

func TestRedisNoteCache_InvalidatedNoteIsNotRewritten(t *testing.T) {
	c, s := newTestCache(t)
	ctx := context.Background()

	stale := &domain.NoteResponse{ID: 7, Title: "before update", VersionNum: 1}
	c.Set(ctx, stale)
	c.Invalidate(ctx, 7)

	// A read that loaded the note before the update finishes afterwards.
	c.Set(ctx, stale)
	if s.Exists("notes.7") {
		t.Fatal("expected stale read-through write to be refused")
	}
	if _, ok := c.Get(ctx, 7); ok {
		t.Error("expected miss after invalidation")
	}

	s.FastForward(invalidationGuard)
	c.Set(ctx, &domain.NoteResponse{ID: 7, Title: "after update", VersionNum: 2})
	got, ok := c.Get(ctx, 7)
	if !ok {
		t.Fatal("expected note to be cached once the guard expired")
	}
	if got.Title != "after update" {
		t.Errorf("expected fresh note, got %q", got.Title)
	}
}

func TestRedisNoteCache_CorruptedEntryIsMiss(t *testing.T) {
	c, s := newTestCache(t)

	if err := s.Set("notes.9", "not json"); err != nil {
		t.Fatalf("failed to seed cache: %v", err)
	}
	if _, ok := c.Get(context.Background(), 9); ok {
		t.Error("expected miss for corrupted entry")
	}
}

func TestRedisNoteCache_UnavailableIsMiss(t *testing.T) {
	c, s := newTestCache(t)
	s.Close()

	ctx := context.Background()
	c.Set(ctx, &domain.NoteResponse{ID: 1})
	if _, ok := c.Get(ctx, 1); ok {
		t.Error("expected miss when cache is down")
	}
}

func TestNewClient_Unreachable(t *testing.T) {
	s := miniredis.RunT(t)
	addr := s.Addr()
	s.Close()

	if _, err := NewClient(context.Background(), addr, "", "", 200*time.Millisecond); err == nil {
		t.Error("expected ping error")
	}
}

func TestNopNoteCache(t *testing.T) {
	c := NewNopNoteCache()
	ctx := context.Background()
	c.Set(ctx, &domain.NoteResponse{ID: 1})
	if _, ok := c.Get(ctx, 1); ok {
		t.Error("expected nop cache to miss")
	}
	c.Invalidate(ctx, 1)
}
