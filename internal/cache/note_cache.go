package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"notebook-server/internal/domain"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	noteKey  = "notes.%d"
	guardKey = "notes.%d.invalidated"
)

// invalidationGuard is how long an invalidated note refuses read-through
// writes. A read that started before the invalidation can not write its
// stale result back inside this window.
const invalidationGuard = 5 * time.Second

// setUnlessGuarded writes KEYS[1] unless the guard KEYS[2] exists.
// ARGV[1] is the value, ARGV[2] the ttl in milliseconds (0 for none).
var setUnlessGuarded = redis.NewScript(`
if redis.call("EXISTS", KEYS[2]) == 1 then
	return 0
end
if tonumber(ARGV[2]) > 0 then
	redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
else
	redis.call("SET", KEYS[1], ARGV[1])
end
return 1
`)

// NoteCache is a read-through cache for rendered notes. Failures are logged
// and reported as misses; callers always fall back to the database.
type NoteCache interface {
	Get(ctx context.Context, id int64) (*domain.NoteResponse, bool)
	Set(ctx context.Context, note *domain.NoteResponse)
	Invalidate(ctx context.Context, id int64)
}

type redisNoteCache struct {
	client  *redis.Client
	ttl     time.Duration
	timeout time.Duration
	logger  *zap.SugaredLogger
}

func NewRedisNoteCache(client *redis.Client, ttl, timeout time.Duration, logger *zap.SugaredLogger) NoteCache {
	return &redisNoteCache{
		client:  client,
		ttl:     ttl,
		timeout: timeout,
		logger:  logger,
	}
}

// NewClient connects to redis and verifies the connection.
func NewClient(ctx context.Context, addr, user, pass string, timeout time.Duration) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: user,
		Password: pass,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping cache: %w", err)
	}
	return client, nil
}

func key(id int64) string {
	return fmt.Sprintf(noteKey, id)
}

func guard(id int64) string {
	return fmt.Sprintf(guardKey, id)
}

func (c *redisNoteCache) Get(ctx context.Context, id int64) (*domain.NoteResponse, bool) {
	opCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	data, err := c.client.Get(opCtx, key(id)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Errorw("failed to get note from cache", "note_id", id, "error", err)
		}
		return nil, false
	}

	var note domain.NoteResponse
	if err := json.Unmarshal([]byte(data), &note); err != nil {
		c.logger.Errorw("failed to parse cached note", "key", key(id), "error", err)
		return nil, false
	}
	return &note, true
}

func (c *redisNoteCache) Set(ctx context.Context, note *domain.NoteResponse) {
	data, err := json.Marshal(note)
	if err != nil {
		c.logger.Errorw("failed to encode note for cache", "note_id", note.ID, "error", err)
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	keys := []string{key(note.ID), guard(note.ID)}
	written, err := setUnlessGuarded.Run(opCtx, c.client, keys, data, c.ttl.Milliseconds()).Int()
	if err != nil {
		c.logger.Errorw("failed to set note into cache", "note_id", note.ID, "error", err)
		return
	}
	if written == 0 {
		c.logger.Debugw("note recently invalidated, not cached", "note_id", note.ID)
	}
}

// Invalidate drops the cached note and blocks read-through writes for it
// during invalidationGuard.
func (c *redisNoteCache) Invalidate(ctx context.Context, id int64) {
	opCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	_, err := c.client.TxPipelined(opCtx, func(pipe redis.Pipeliner) error {
		pipe.Del(opCtx, key(id))
		pipe.Set(opCtx, guard(id), 1, invalidationGuard)
		return nil
	})
	if err != nil {
		c.logger.Errorw("failed to invalidate cached note", "note_id", id, "error", err)
	}
}

type nopNoteCache struct{}

// NewNopNoteCache returns a cache that never holds anything.
func NewNopNoteCache() NoteCache { return nopNoteCache{} }

func (nopNoteCache) Get(context.Context, int64) (*domain.NoteResponse, bool) { return nil, false }
func (nopNoteCache) Set(context.Context, *domain.NoteResponse)              {}
func (nopNoteCache) Invalidate(context.Context, int64)                      {}
