// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// render.go caches rendered markdown documents in Valkey so a post page
// does not re-run the goldmark pipeline on every request. Entries are
// keyed by post ID and the post's updated_at, so an edited post misses
// the cache even before the old entry is invalidated.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"folio/internal/markdown"
)

const (
	// renderKeyPrefix is the Valkey key prefix for rendered documents.
	renderKeyPrefix = "render:"

	// DefaultRenderTTL is how long a rendered document stays cached.
	DefaultRenderTTL = 1 * time.Hour
)

// RenderCache stores rendered post bodies in Valkey.
type RenderCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRenderCache creates a render cache backed by the given Valkey client.
func NewRenderCache(client *redis.Client, ttl time.Duration) *RenderCache {
	if ttl == 0 {
		ttl = DefaultRenderTTL
	}
	return &RenderCache{client: client, ttl: ttl}
}

// RenderKey returns the cache key for one version of a post body.
func RenderKey(postID uuid.UUID, version time.Time) string {
	return fmt.Sprintf("%s%s:%d", renderKeyPrefix, postID, version.UnixNano())
}

// Get returns the cached document for the post version, if present.
func (rc *RenderCache) Get(ctx context.Context, postID uuid.UUID, version time.Time) (*markdown.Document, bool) {
	key := RenderKey(postID, version)
	val, err := rc.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		slog.Warn("render cache get error", "key", key, "error", err)
		return nil, false
	}

	var doc markdown.Document
	if err := json.Unmarshal(val, &doc); err != nil {
		slog.Warn("render cache decode error", "key", key, "error", err)
		return nil, false
	}
	slog.Debug("render cache hit", "key", key)
	return &doc, true
}

// Set stores a rendered document. Degraded documents are not cached so
// the next request retries the conversion.
func (rc *RenderCache) Set(ctx context.Context, postID uuid.UUID, version time.Time, doc markdown.Document) {
	if doc.Degraded {
		return
	}
	key := RenderKey(postID, version)
	payload, err := json.Marshal(doc)
	if err != nil {
		slog.Warn("render cache encode error", "key", key, "error", err)
		return
	}
	if err := rc.client.Set(ctx, key, payload, rc.ttl).Err(); err != nil {
		slog.Warn("render cache set error", "key", key, "error", err)
	}
}

// Invalidate removes every cached version of a post.
func (rc *RenderCache) Invalidate(ctx context.Context, postID uuid.UUID) {
	pattern := fmt.Sprintf("%s%s:*", renderKeyPrefix, postID)
	var cursor uint64
	for {
		keys, next, err := rc.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			slog.Warn("render cache scan error", "post_id", postID, "error", err)
			return
		}
		if len(keys) > 0 {
			if err := rc.client.Del(ctx, keys...).Err(); err != nil {
				slog.Warn("render cache delete error", "post_id", postID, "error", err)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	slog.Debug("render cache invalidated", "post_id", postID)
}
