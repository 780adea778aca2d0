package render

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const indexKeyPrefix = "countdown:render:"

// RenderRecord is the metadata stored for the most recent render of a name.
type RenderRecord struct {
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	Passed     bool      `json:"passed"`
	Frames     int       `json:"frames"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	SizeBytes  int64     `json:"size_bytes"`
	TargetTime time.Time `json:"target_time"`
	RenderedAt time.Time `json:"rendered_at"`
}

// RenderIndex keeps render metadata in Redis with a TTL. It is informational
// only: a hit never skips a render.
type RenderIndex struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRenderIndexFromClient creates a render index from an existing client
func NewRenderIndexFromClient(client *redis.Client, ttl time.Duration) *RenderIndex {
	return &RenderIndex{
		client: client,
		ttl:    ttl,
	}
}

// Close closes the Redis connection
func (r *RenderIndex) Close() error {
	return r.client.Close()
}

// Ping tests the Redis connection
func (r *RenderIndex) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// buildKey creates the index key for name
func buildKey(name string) string {
	// Clean key to remove any potential path separators
	return indexKeyPrefix + strings.ReplaceAll(name, "/", "_")
}

// Record stores rec under its name, replacing any previous record.
func (r *RenderIndex) Record(ctx context.Context, rec *RenderRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal render record: %w", err)
	}

	key := buildKey(rec.Name)
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s in Redis: %w", key, err)
	}
	return nil
}

// Lookup returns the record for name, if one exists.
func (r *RenderIndex) Lookup(ctx context.Context, name string) (*RenderRecord, bool, error) {
	key := buildKey(name)

	result, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get key %s from Redis: %w", key, err)
	}

	var rec RenderRecord
	if err := json.Unmarshal(result, &rec); err != nil {
		return nil, false, fmt.Errorf("failed to decode render record %s: %w", key, err)
	}
	return &rec, true, nil
}

// Forget removes the record for name.
func (r *RenderIndex) Forget(ctx context.Context, name string) error {
	if err := r.client.Del(ctx, buildKey(name)).Err(); err != nil {
		return fmt.Errorf("failed to delete render record %s: %w", name, err)
	}
	return nil
}

// Count returns the number of indexed renders
func (r *RenderIndex) Count(ctx context.Context) (int64, error) {
	pattern := indexKeyPrefix + "*"

	var count int64
	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()

	for iter.Next(ctx) {
		count++
	}

	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to count keys with pattern %s: %w", pattern, err)
	}

	return count, nil
}
