package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lawha-app/lawha/backend/internal/model/collab"
)

// RedisStore persists snapshots in Redis so versions survive restarts.
// Layout: `project:{id}:snapshots` holds metadata JSON newest first, and
// `snapshot:{id}` holds the full payload. Retention trims the list and
// deletes the evicted payload keys.
type RedisStore struct {
	client *redis.Client
	cap    int
}

// NewRedisStore connects to Redis at the given URL and verifies the
// connection before returning.
func NewRedisStore(redisURL string, cap int) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, cap), nil
}

// NewRedisStoreWithClient wraps an existing Redis client.
func NewRedisStoreWithClient(client *redis.Client, cap int) *RedisStore {
	if cap <= 0 {
		cap = 50
	}
	return &RedisStore{client: client, cap: cap}
}

func (s *RedisStore) listKey(projectID string) string {
	return "project:" + projectID + ":snapshots"
}

func (s *RedisStore) snapKey(snapshotID string) string {
	return "snapshot:" + snapshotID
}

// Save stores the snapshot payload and prepends its metadata to the
// project list, trimming past the cap.
func (s *RedisStore) Save(ctx context.Context, snap collab.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	meta, err := json.Marshal(snap.Meta())
	if err != nil {
		return fmt.Errorf("marshal snapshot meta: %w", err)
	}

	if err := s.client.Set(ctx, s.snapKey(snap.ID), payload, 0).Err(); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	if err := s.client.LPush(ctx, s.listKey(snap.ProjectID), meta).Err(); err != nil {
		return fmt.Errorf("index snapshot: %w", err)
	}

	// Oldest-first eviction: pop metadata past the cap and delete its payload.
	for {
		n, err := s.client.LLen(ctx, s.listKey(snap.ProjectID)).Result()
		if err != nil {
			return fmt.Errorf("snapshot list length: %w", err)
		}
		if n <= int64(s.cap) {
			return nil
		}
		evicted, err := s.client.RPop(ctx, s.listKey(snap.ProjectID)).Result()
		if err != nil {
			return fmt.Errorf("evict snapshot: %w", err)
		}
		var old collab.Snapshot
		if err := json.Unmarshal([]byte(evicted), &old); err == nil && old.ID != "" {
			if err := s.client.Del(ctx, s.snapKey(old.ID)).Err(); err != nil {
				return fmt.Errorf("delete evicted snapshot: %w", err)
			}
		}
	}
}

// List returns the project's snapshot metadata, newest first.
func (s *RedisStore) List(ctx context.Context, projectID string) ([]collab.Snapshot, error) {
	entries, err := s.client.LRange(ctx, s.listKey(projectID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	out := make([]collab.Snapshot, 0, len(entries))
	for _, entry := range entries {
		var meta collab.Snapshot
		if err := json.Unmarshal([]byte(entry), &meta); err != nil {
			return nil, fmt.Errorf("unmarshal snapshot meta: %w", err)
		}
		out = append(out, meta)
	}
	return out, nil
}

// Get returns the full snapshot by id.
func (s *RedisStore) Get(ctx context.Context, snapshotID string) (collab.Snapshot, error) {
	payload, err := s.client.Get(ctx, s.snapKey(snapshotID)).Result()
	if err == redis.Nil {
		return collab.Snapshot{}, ErrSnapshotNotFound
	}
	if err != nil {
		return collab.Snapshot{}, fmt.Errorf("get snapshot: %w", err)
	}

	var snap collab.Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return collab.Snapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snap, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
