// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// cache_log.go records document cache invalidations in the database for
// audit and debugging. Each entry captures which document was dropped
// from the read cache, when, and by which operation.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// CacheLogStore handles cache invalidation log operations.
type CacheLogStore struct {
	db     *sqlx.DB
	logger *zap.SugaredLogger
}

// NewCacheLogStore creates a new CacheLogStore. A nil logger discards
// write failures.
func NewCacheLogStore(db *sqlx.DB, logger *zap.SugaredLogger) *CacheLogStore {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &CacheLogStore{db: db, logger: logger}
}

// Log records a cache invalidation event. Logging is best-effort: a failed
// insert is reported and otherwise ignored.
func (s *CacheLogStore) Log(ctx context.Context, uid, documentID, action string) {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO cache_invalidation_log (uid, document_id, action)
		VALUES (?, ?, ?)
	`), uid, documentID, action)
	if err != nil {
		s.logger.Warnw("failed to log cache invalidation",
			"uid", uid,
			"document_id", documentID,
			"action", action,
			"error", err,
		)
		return
	}
	s.logger.Debugw("cache invalidation logged",
		"uid", uid,
		"document_id", documentID,
		"action", action,
	)
}

// RecentEntries returns the most recent invalidation events, newest first.
func (s *CacheLogStore) RecentEntries(ctx context.Context, limit int) ([]CacheLogEntry, error) {
	var entries []CacheLogEntry
	err := s.db.SelectContext(ctx, &entries, s.db.Rebind(`
		SELECT id, uid, document_id, action, invalidated_at
		FROM cache_invalidation_log
		ORDER BY invalidated_at DESC, id DESC
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, fmt.Errorf("query cache log: %w", err)
	}
	return entries, nil
}

// CacheLogEntry represents a single cache invalidation event.
type CacheLogEntry struct {
	ID            int64     `db:"id"`
	UID           string    `db:"uid"`
	DocumentID    string    `db:"document_id"`
	Action        string    `db:"action"`
	InvalidatedAt time.Time `db:"invalidated_at"`
}
