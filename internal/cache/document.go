// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// document.go provides a Valkey-backed cache of published documents.
// Only plain published reads are cached: the document service bypasses
// the cache for drafts and for calls with fields, populate or filters.
// Every write that changes a published version drops all cached locales
// of that document.
package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"docpress/internal/metrics"
	"docpress/internal/models"
)

const (
	// docKeyPrefix is the Valkey key prefix for cached documents.
	docKeyPrefix = "doc:"

	// DefaultDocumentTTL is how long a published document stays cached.
	DefaultDocumentTTL = 5 * time.Minute

	scanCount = 100
)

// InvalidationLog records cache invalidations. store.CacheLogStore
// implements it.
type InvalidationLog interface {
	Log(ctx context.Context, uid, documentID, action string)
}

// DocumentCache manages published document caching in Valkey. Cache
// failures are logged and treated as misses.
type DocumentCache struct {
	client *redis.Client
	ttl    time.Duration
	log    InvalidationLog
	logger *zap.SugaredLogger
}

// NewDocumentCache creates a document cache backed by the given Valkey
// client. A zero ttl uses DefaultDocumentTTL. log and logger may be nil.
func NewDocumentCache(client *redis.Client, ttl time.Duration, log InvalidationLog, logger *zap.SugaredLogger) *DocumentCache {
	if ttl == 0 {
		ttl = DefaultDocumentTTL
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &DocumentCache{client: client, ttl: ttl, log: log, logger: logger}
}

// Key returns the cache key of one published document version.
func Key(uid, documentID, locale string) string {
	return docKeyPrefix + uid + ":" + documentID + ":" + locale
}

// Get returns the cached published version of a document.
func (c *DocumentCache) Get(ctx context.Context, uid, documentID, locale string) (*models.Document, bool) {
	key := Key(uid, documentID, locale)
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheResults.WithLabelValues(metrics.ResultMiss).Inc()
		return nil, false
	}
	if err != nil {
		metrics.CacheResults.WithLabelValues(metrics.ResultError).Inc()
		c.logger.Warnw("document cache get error", "key", key, "error", err)
		return nil, false
	}

	var doc models.Document
	if err := json.Unmarshal(val, &doc); err != nil {
		metrics.CacheResults.WithLabelValues(metrics.ResultError).Inc()
		c.logger.Warnw("document cache decode error", "key", key, "error", err)
		return nil, false
	}
	metrics.CacheResults.WithLabelValues(metrics.ResultHit).Inc()
	c.logger.Debugw("document cache hit", "key", key)
	return &doc, true
}

// Set stores a published document version with the configured TTL.
func (c *DocumentCache) Set(ctx context.Context, uid string, doc *models.Document) {
	key := Key(uid, doc.DocumentID, doc.Locale)
	b, err := json.Marshal(doc)
	if err != nil {
		c.logger.Warnw("document cache encode error", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, b, c.ttl).Err(); err != nil {
		c.logger.Warnw("document cache set error", "key", key, "error", err)
	}
}

// Invalidate removes every cached locale of a document and records the
// invalidation.
func (c *DocumentCache) Invalidate(ctx context.Context, uid, documentID, action string) {
	pattern := docKeyPrefix + escapeGlob(uid) + ":" + escapeGlob(documentID) + ":*"
	deleted := c.deleteMatching(ctx, pattern)
	if c.log != nil {
		c.log.Log(ctx, uid, documentID, action)
	}
	c.logger.Debugw("document cache invalidated",
		"uid", uid,
		"documentId", documentID,
		"action", action,
		"deleted", deleted,
	)
}

// InvalidateAll removes all cached documents. Used after schema changes,
// since any rendered document could be affected.
func (c *DocumentCache) InvalidateAll(ctx context.Context) {
	if deleted := c.deleteMatching(ctx, docKeyPrefix+"*"); deleted > 0 {
		c.logger.Infow("document cache fully cleared", "deleted", deleted)
	}
}

func (c *DocumentCache) deleteMatching(ctx context.Context, pattern string) int {
	var cursor uint64
	var deleted int
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, scanCount).Result()
		if err != nil {
			c.logger.Warnw("document cache scan error", "pattern", pattern, "error", err)
			return deleted
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.logger.Warnw("document cache bulk delete error", "error", err)
			} else {
				deleted += len(keys)
				metrics.CacheInvalidations.Add(float64(len(keys)))
			}
		}
		cursor = next
		if cursor == 0 {
			return deleted
		}
	}
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// escapeGlob quotes the SCAN MATCH metacharacters in s.
func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}
